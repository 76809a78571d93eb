package api

import (
	"github.com/rulstream/rulstream/monitor/internal/alerts"
	"github.com/rulstream/rulstream/monitor/internal/health"
	"github.com/rulstream/rulstream/monitor/internal/scraper"
	"github.com/rulstream/rulstream/monitor/internal/store"
	"github.com/rulstream/rulstream/pkg/types"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	// State is "unknown" before the first poll, "no_data" while the log is
	// missing, otherwise the worst engine status.
	State        string  `json:"state"`
	EngineCount  int     `json:"engine_count"`
	HealthyCount int     `json:"healthy_count"`
	MinorCount   int     `json:"minor_count"`
	MajorCount   int     `json:"major_count"`
	BrokenCount  int     `json:"broken_count"`
	AlertCount   int     `json:"alert_count"`
	LastPoll     string  `json:"last_poll,omitempty"` // RFC3339
	AgeSeconds   float64 `json:"age_seconds"`
}

// EngineResponse is one engine in GET /api/v1/engines.
type EngineResponse struct {
	health.EngineHealth
	Diagnostics []DiagnosticHint `json:"diagnostics"`
}

// HistoryResponse is the payload for GET /api/v1/engines/{id}/history.
type HistoryResponse struct {
	EngineID int           `json:"engine_id"`
	Points   []store.Point `json:"points"`
}

// SnapshotResponse is the payload for GET /api/v1/snapshot.
type SnapshotResponse struct {
	NoData      bool                   `json:"no_data"`
	Engines     []EngineResponse       `json:"engines"`
	Summary     health.Summary         `json:"summary"`
	Scan        types.ScanStats        `json:"scan"`
	Pipeline    *scraper.PipelineStats `json:"pipeline,omitempty"`
	Alerts      []*alerts.Alert        `json:"alerts"`
	UpdatedAt   string                 `json:"updated_at,omitempty"` // RFC3339
	GeneratedAt string                 `json:"generated_at"`         // RFC3339
}

type errorResponse struct {
	Error string `json:"error"`
}
