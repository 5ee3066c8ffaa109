package receiver_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bizpulse/bizpulse/pkg/analysis"
	"github.com/bizpulse/bizpulse/pkg/types"
	"github.com/bizpulse/bizpulse/server/internal/receiver"
	"github.com/bizpulse/bizpulse/server/internal/store"
)

// recordingEvaluator remembers every snapshot it is asked to evaluate.
type recordingEvaluator struct {
	mu    sync.Mutex
	snaps []*types.Snapshot
}

func (r *recordingEvaluator) Evaluate(snap *types.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
}

func analyzed(id string) *types.Snapshot {
	res := analysis.RunRecord(analysis.Record{Revenue: 1200, Cost: 900, Customers: 50})
	return &types.Snapshot{
		SourceID:      id,
		SourceType:    "file",
		TimestampUnix: 1767225600,
		Metrics:       &res.Metrics,
		Report:        &res.Report,
	}
}

func TestAccept_StoresSnapshot(t *testing.T) {
	st := store.New(5 * time.Minute)
	ev := &recordingEvaluator{}
	rec := receiver.New(st, ev)

	if err := rec.Accept(analyzed("shop")); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	e, ok := st.Get("shop")
	if !ok {
		t.Fatal("store.Get: expected entry, got none")
	}
	if e.Snapshot.Report.ProfitStatus != analysis.StatusProfit {
		t.Errorf("ProfitStatus: got %q, want profit", e.Snapshot.Report.ProfitStatus)
	}
	if len(ev.snaps) != 1 || ev.snaps[0].SourceID != "shop" {
		t.Errorf("evaluator saw %d snapshots, want 1", len(ev.snaps))
	}
}

func TestAccept_Invalid(t *testing.T) {
	noReport := analyzed("shop")
	noReport.Report = nil
	noMetrics := analyzed("shop")
	noMetrics.Metrics = nil

	tests := []struct {
		name string
		snap *types.Snapshot
	}{
		{"missing source id", analyzed("")},
		{"missing report", noReport},
		{"missing metrics", noMetrics},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := store.New(5 * time.Minute)
			ev := &recordingEvaluator{}
			err := receiver.New(st, ev).Accept(tc.snap)
			if !errors.Is(err, receiver.ErrInvalidSnapshot) {
				t.Fatalf("err: got %v, want ErrInvalidSnapshot", err)
			}
			if st.Count() != 0 {
				t.Error("invalid snapshot must not be stored")
			}
			if len(ev.snaps) != 0 {
				t.Error("invalid snapshot must not be evaluated")
			}
		})
	}
}

func TestAccept_FailedSnapshot(t *testing.T) {
	st := store.New(5 * time.Minute)
	rec := receiver.New(st, nil)

	snap := analyzed("ledger")
	snap.ErrorMessage = "query returned no rows"
	if err := rec.Accept(snap); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	e, ok := st.Get("ledger")
	if !ok {
		t.Fatal("failed snapshot should still be stored")
	}
	if e.Snapshot.Report != nil || e.Snapshot.Metrics != nil {
		t.Error("failed snapshot must not carry a report")
	}
}

func TestAccept_DefaultsTimestamp(t *testing.T) {
	st := store.New(5 * time.Minute)
	snap := analyzed("shop")
	snap.TimestampUnix = 0

	before := time.Now().Unix()
	if err := receiver.New(st, nil).Accept(snap); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if snap.TimestampUnix < before {
		t.Errorf("TimestampUnix: got %d, want >= %d", snap.TimestampUnix, before)
	}
}

func TestAccept_OverwritesPrevious(t *testing.T) {
	st := store.New(5 * time.Minute)
	rec := receiver.New(st, nil)

	first := analyzed("shop")
	second := analyzed("shop")
	loss := analysis.RunRecord(analysis.Record{Revenue: 500, Cost: 800, Customers: 20})
	second.Metrics, second.Report = &loss.Metrics, &loss.Report

	for _, s := range []*types.Snapshot{first, second} {
		if err := rec.Accept(s); err != nil {
			t.Fatalf("Accept: %v", err)
		}
	}

	e, _ := st.Get("shop")
	if e.Snapshot.Report.ProfitStatus != analysis.StatusLoss {
		t.Errorf("ProfitStatus: got %q, want loss", e.Snapshot.Report.ProfitStatus)
	}
	if st.Count() != 1 {
		t.Errorf("Count: got %d, want 1", st.Count())
	}
}

func TestAccept_IgnoresOutOfOrderSnapshot(t *testing.T) {
	st := store.New(5 * time.Minute)
	ev := &recordingEvaluator{}
	rec := receiver.New(st, ev)

	newer := analyzed("shop")
	newer.TimestampUnix = 200
	older := analyzed("shop")
	older.TimestampUnix = 100
	loss := analysis.RunRecord(analysis.Record{Revenue: 500, Cost: 800, Customers: 20})
	older.Metrics, older.Report = &loss.Metrics, &loss.Report

	for _, s := range []*types.Snapshot{newer, older} {
		if err := rec.Accept(s); err != nil {
			t.Fatalf("Accept: %v", err)
		}
	}

	e, _ := st.Get("shop")
	if e.Snapshot != newer || e.Snapshot.Report.ProfitStatus != analysis.StatusProfit {
		t.Errorf("ProfitStatus: got %q, want profit from the newer snapshot", e.Snapshot.Report.ProfitStatus)
	}
	if len(ev.snaps) != 1 || ev.snaps[0] != newer {
		t.Errorf("evaluator saw %d snapshots, want only the newer one", len(ev.snaps))
	}
}
