package receiver

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bizpulse/bizpulse/pkg/types"
	"github.com/bizpulse/bizpulse/server/internal/store"
)

// ErrInvalidSnapshot is returned by Accept for structurally invalid snapshots.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Evaluator is notified of every accepted snapshot (see package alerts).
type Evaluator interface {
	Evaluate(snap *types.Snapshot)
}

// Receiver validates each incoming Snapshot, stores it in the state store and
// hands it to the alert evaluator.
type Receiver struct {
	store  *store.Store
	alerts Evaluator
	now    func() time.Time
}

// New creates a Receiver that writes accepted snapshots to st. ev may be nil.
func New(st *store.Store, ev Evaluator) *Receiver {
	return &Receiver{store: st, alerts: ev, now: time.Now}
}

// Accept validates snap, stores it and evaluates alerts. A snapshot older
// than the one already stored for its source is dropped without error.
// Authentication is enforced by the HTTP middleware before this is called.
// Callers must not modify snap after calling Accept.
func (r *Receiver) Accept(snap *types.Snapshot) error {
	if snap.SourceID == "" {
		return fmt.Errorf("%w: source_id is required", ErrInvalidSnapshot)
	}
	if snap.Failed() {
		snap.Metrics = nil
		snap.Report = nil
	} else if snap.Report == nil || snap.Metrics == nil {
		return fmt.Errorf("%w: metrics and report are required unless error_message is set", ErrInvalidSnapshot)
	}
	if snap.TimestampUnix <= 0 {
		snap.TimestampUnix = r.now().Unix()
	}

	if !r.store.Put(snap) {
		slog.Debug("receiver: out-of-order snapshot ignored",
			"source_id", snap.SourceID,
			"timestamp_unix", snap.TimestampUnix,
		)
		return nil
	}
	if r.alerts != nil {
		r.alerts.Evaluate(snap)
	}

	if snap.Failed() {
		slog.Debug("receiver: failed snapshot stored",
			"source_id", snap.SourceID,
			"source_type", snap.SourceType,
			"error", snap.ErrorMessage,
		)
		return nil
	}
	slog.Debug("receiver: snapshot stored",
		"source_id", snap.SourceID,
		"source_type", snap.SourceType,
		"profit_status", snap.Report.ProfitStatus,
		"alerts", len(snap.Report.Alerts),
	)
	return nil
}
