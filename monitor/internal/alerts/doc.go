// Package alerts evaluates per-engine rules against each polled fleet and
// delivers firing/resolved notifications to webhooks (slack, teams, http).
package alerts
