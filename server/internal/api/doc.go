// Package api implements the HTTP API for bizpulse-server.
//
// New(store, receiver, alerts) returns a Handler that serves:
//
//	POST /api/v1/analyze       analyze one raw record, returns the Report; 400 on invalid input
//	POST /api/v1/analyses      ingest a Snapshot shipped by an analyst; 202 on success
//	GET  /api/v1/health        status, per-status source counts, firing alert count
//	GET  /api/v1/sources       all live sources ([]SourceResponse)
//	GET  /api/v1/sources/{id}  single source; 404 if unknown or stale
//	DELETE /api/v1/sources/{id} forget a source and resolve its alerts; 204
//	GET  /api/v1/alerts        firing and recently resolved alerts
//	GET  /api/v1/snapshot      all live sources + alerts + generated_at
//	GET  /metrics              Prometheus text exposition of per-source gauges
//
// JSON endpoints respond with Content-Type: application/json and return 405
// for the wrong method. Lists exclude stale entries.
package api
