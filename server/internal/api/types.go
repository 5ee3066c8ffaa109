package api

import (
	"github.com/bizpulse/bizpulse/pkg/analysis"
	"github.com/bizpulse/bizpulse/server/internal/alerts"
)

// HealthResponse is the payload for GET /api/v1/health.
// Status is "unknown" with no live sources, "loss" when any live source
// reports a loss, and "profit" otherwise.
type HealthResponse struct {
	Status      string `json:"status"`
	SourceCount int    `json:"source_count"`
	ProfitCount int    `json:"profit_count"`
	LossCount   int    `json:"loss_count"`
	FailedCount int    `json:"failed_count"`
	AlertCount  int    `json:"alert_count"`
}

// SourceResponse is one source entry in GET /api/v1/sources or
// GET /api/v1/sources/{id}.
type SourceResponse struct {
	SourceID     string            `json:"source_id"`
	SourceType   string            `json:"source_type"`
	Timestamp    string            `json:"timestamp"` // RFC3339, when the analyst observed the record
	Metrics      *analysis.Metrics `json:"metrics,omitempty"`
	Report       *analysis.Report  `json:"report,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	AlertCount   int               `json:"alert_count"`
	LastSeen     string            `json:"last_seen"`  // RFC3339
	FirstSeen    string            `json:"first_seen"` // RFC3339
	Updates      int               `json:"updates"`

	// LastGoodReport is the last analyzed report of a source whose latest
	// load failed.
	LastGoodReport *analysis.Report `json:"last_good_report,omitempty"`
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the ws stream.
type SnapshotResponse struct {
	Sources     []SourceResponse `json:"sources"`
	Alerts      []*alerts.Alert  `json:"alerts"`
	GeneratedAt string           `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
