package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bizpulse/bizpulse/pkg/analysis"
	"github.com/bizpulse/bizpulse/pkg/types"
	"github.com/bizpulse/bizpulse/server/internal/alerts"
	"github.com/bizpulse/bizpulse/server/internal/receiver"
	"github.com/bizpulse/bizpulse/server/internal/store"
)

// maxBodyBytes caps request bodies on the POST endpoints.
const maxBodyBytes = 1 << 20

// Handler is the HTTP handler for all /api/v1/* endpoints and /metrics.
// It reads source state from the snapshot store and returns JSON responses.
type Handler struct {
	store    *store.Store
	receiver *receiver.Receiver
	alerts   *alerts.Engine
	mux      *http.ServeMux
	now      func() time.Time
	onIngest func()
}

// New creates a Handler wired to the given store, receiver and alert engine
// and registers all routes.
func New(st *store.Store, rec *receiver.Receiver, al *alerts.Engine) *Handler {
	h := &Handler{
		store:    st,
		receiver: rec,
		alerts:   al,
		mux:      http.NewServeMux(),
		now:      time.Now,
	}

	h.mux.HandleFunc("/api/v1/analyze", h.analyze)
	h.mux.HandleFunc("/api/v1/analyses", h.ingest)
	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/sources", h.listSources)
	h.mux.HandleFunc("/api/v1/sources/", h.getSource) // subtree, extracts {id}
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)
	h.mux.HandleFunc("/metrics", h.metrics)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// OnIngest registers fn to run after every accepted snapshot, e.g. to push
// the new state to stream clients. It must be called before serving.
func (h *Handler) OnIngest(fn func()) {
	h.onIngest = fn
}

// Snapshot builds the payload shared by GET /api/v1/snapshot and the ws hub.
func (h *Handler) Snapshot() SnapshotResponse {
	entries := h.store.List()
	firing := h.alerts.FiringBySource()
	sources := make([]SourceResponse, 0, len(entries))
	for _, e := range entries {
		sources = append(sources, toSourceResponse(e, firing))
	}
	return SnapshotResponse{
		Sources:     sources,
		Alerts:      h.alerts.Active(),
		GeneratedAt: h.now().UTC().Format(time.RFC3339),
	}
}

// --- route handlers ---------------------------------------------------------

// analyze runs the pipeline on a raw record: POST /api/v1/analyze.
func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var raw map[string]any
	if err := decodeBody(r, &raw); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	rep, err := analysis.Analyze(raw)
	if err != nil {
		if errors.Is(err, analysis.ErrInvalidInput) {
			jsonErr(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("api: analyze failed", "err", err)
		jsonErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	jsonResp(w, http.StatusOK, rep)
}

// ingest accepts a snapshot shipped by an analyst: POST /api/v1/analyses.
func (h *Handler) ingest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var snap types.Snapshot
	if err := decodeBody(r, &snap); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.receiver.Accept(&snap); err != nil {
		if errors.Is(err, receiver.ErrInvalidSnapshot) {
			jsonErr(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("api: ingest failed", "source_id", snap.SourceID, "err", err)
		jsonErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	if h.onIngest != nil {
		h.onIngest()
	}
	jsonResp(w, http.StatusAccepted, map[string]string{"source_id": snap.SourceID})
}

// health returns GET /api/v1/health: status and per-status source counts.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats := h.store.Stats()
	resp := HealthResponse{
		Status:      "unknown",
		SourceCount: stats.Live,
		ProfitCount: stats.Profit,
		LossCount:   stats.Loss,
		FailedCount: stats.Failed,
		AlertCount:  h.alerts.FiringCount(),
	}

	switch {
	case resp.LossCount > 0:
		resp.Status = analysis.StatusLoss
	case resp.ProfitCount > 0:
		resp.Status = analysis.StatusProfit
	}
	jsonResp(w, http.StatusOK, resp)
}

// listSources returns GET /api/v1/sources: all live sources.
func (h *Handler) listSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.Snapshot().Sources)
}

// getSource serves GET and DELETE /api/v1/sources/{id}.
func (h *Handler) getSource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/sources/")
	if id == "" {
		h.listSources(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
	case http.MethodDelete:
		h.deleteSource(w, id)
		return
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// Stale entries are treated as not found.
	e, ok := h.store.Live(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "source not found")
		return
	}
	jsonResp(w, http.StatusOK, toSourceResponse(e, h.alerts.FiringBySource()))
}

// deleteSource drops a decommissioned source and resolves its alerts.
func (h *Handler) deleteSource(w http.ResponseWriter, id string) {
	if !h.store.Delete(id) {
		jsonErr(w, http.StatusNotFound, "source not found")
		return
	}
	resolved := h.alerts.Forget(id)
	slog.Info("api: source deleted", "source_id", id, "resolved_alerts", resolved)
	w.WriteHeader(http.StatusNoContent)
}

// listAlerts returns GET /api/v1/alerts: firing and recently resolved alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.alerts.Active())
}

// snapshot returns GET /api/v1/snapshot: all live sources plus alerts.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.Snapshot())
}

// --- helpers ----------------------------------------------------------------

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.New("request body must be a JSON object")
	}
	return nil
}

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// toSourceResponse maps a store.Entry to its JSON representation.
func toSourceResponse(e *store.Entry, firing map[string]int) SourceResponse {
	snap := e.Snapshot
	resp := SourceResponse{
		SourceID:     snap.SourceID,
		SourceType:   snap.SourceType,
		Timestamp:    time.Unix(snap.TimestampUnix, 0).UTC().Format(time.RFC3339),
		Metrics:      snap.Metrics,
		Report:       snap.Report,
		ErrorMessage: snap.ErrorMessage,
		AlertCount:   firing[snap.SourceID],
		LastSeen:     e.UpdatedAt.UTC().Format(time.RFC3339),
		FirstSeen:    e.FirstSeen.UTC().Format(time.RFC3339),
		Updates:      e.Updates,
	}
	if snap.Failed() && e.LastGood != nil {
		resp.LastGoodReport = e.LastGood.Report
	}
	return resp
}
