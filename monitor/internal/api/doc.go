// Package api serves the monitor's read-only REST API under /api/v1.
//
//	GET /api/v1/health                  fleet-wide status counts
//	GET /api/v1/engines                 every engine with diagnostics
//	GET /api/v1/engines/{id}            one engine
//	GET /api/v1/engines/{id}/history    stored observations (?limit=N)
//	GET /api/v1/alerts                  firing and recently resolved alerts
//	GET /api/v1/pipeline                last scrape of the pipeline metrics
//	GET /api/v1/snapshot                everything above in one payload
//
// All responses are JSON. Errors use {"error": "..."}.
package api
