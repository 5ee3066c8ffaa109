package collect

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/bizpulse/bizpulse/analyst/internal/source"
	"github.com/bizpulse/bizpulse/pkg/analysis"
)

// baseTime is a fixed reference point so all test timings are deterministic.
var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// tick returns baseTime advanced by n minutes.
func tick(n int) time.Time {
	return baseTime.Add(time.Duration(n) * time.Minute)
}

func makeResult(id string, fields map[string]any) *source.Result {
	return &source.Result{
		SourceID:   id,
		SourceType: "file",
		LoadedAt:   baseTime,
		Fields:     fields,
	}
}

func period(revenue, cost, customers float64) map[string]any {
	return map[string]any{"revenue": revenue, "cost": cost, "customers": customers}
}

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// --- Basic processing ---

func TestEngine_Process_Report(t *testing.T) {
	e := NewEngine()
	out := e.Process(makeResult("shop", map[string]any{
		"revenue": 1200, "cost": 900, "customers": 50, "prev_revenue": 1000,
	}), tick(0))

	if out.Failed() {
		t.Fatalf("unexpected failure: %s", out.ErrorMessage)
	}
	if out.Result.Report.ProfitStatus != analysis.StatusProfit {
		t.Errorf("ProfitStatus = %q, want profit", out.Result.Report.ProfitStatus)
	}
	if len(out.Result.Report.Recommendations) != 1 {
		t.Errorf("Recommendations = %v, want 1 entry", out.Result.Report.Recommendations)
	}
	if !out.Timestamp.Equal(tick(0)) {
		t.Errorf("Timestamp = %v, want %v", out.Timestamp, tick(0))
	}
	if out.AvailabilityPct != 100 {
		t.Errorf("AvailabilityPct = %.1f, want 100", out.AvailabilityPct)
	}
}

func TestEngine_Process_LoadFailure(t *testing.T) {
	e := NewEngine()
	res := makeResult("shop", nil)
	res.Err = errors.New("connection refused")

	out := e.Process(res, tick(0))
	if !out.Failed() {
		t.Fatal("outcome should be failed")
	}
	if out.ErrorMessage != "connection refused" {
		t.Errorf("ErrorMessage = %q", out.ErrorMessage)
	}
	if out.AvailabilityPct != 0 {
		t.Errorf("AvailabilityPct = %.1f, want 0", out.AvailabilityPct)
	}
}

func TestEngine_Process_InvalidRecord(t *testing.T) {
	e := NewEngine()
	out := e.Process(makeResult("shop", map[string]any{"revenue": "lots"}), tick(0))

	if !out.Failed() {
		t.Fatal("outcome should be failed")
	}
	if !strings.Contains(out.ErrorMessage, "invalid input") {
		t.Errorf("ErrorMessage = %q, want it to mention invalid input", out.ErrorMessage)
	}
}

// --- Carry forward ---

func TestEngine_CarryForward_FillsPrevFields(t *testing.T) {
	e := NewEngine("shop")

	first := e.Process(makeResult("shop", period(1000, 700, 40)), tick(0))
	if first.Result.Metrics.RevenueChange != nil {
		t.Error("first observation should have no revenue change")
	}
	if len(first.CarriedForward) != 0 {
		t.Errorf("first CarriedForward = %v, want none", first.CarriedForward)
	}

	out := e.Process(makeResult("shop", period(1200, 900, 50)), tick(1))
	m := out.Result.Metrics

	if len(out.CarriedForward) != 3 {
		t.Errorf("CarriedForward = %v, want 3 fields", out.CarriedForward)
	}
	if m.RevenueChange == nil || !almostEqual(*m.RevenueChange, 20, 1e-9) {
		t.Errorf("RevenueChange = %v, want 20", m.RevenueChange)
	}
	// CAC 900/50 = 18 against 700/40 = 17.5.
	wantCAC := (18 - 17.5) / 17.5 * 100
	if m.CACChange == nil || !almostEqual(*m.CACChange, wantCAC, 1e-9) {
		t.Errorf("CACChange = %v, want %.4f", m.CACChange, wantCAC)
	}
}

func TestEngine_CarryForward_ExplicitPrevWins(t *testing.T) {
	e := NewEngine("shop")
	e.Process(makeResult("shop", period(1000, 700, 40)), tick(0))

	fields := period(1200, 900, 50)
	fields["prev_revenue"] = 600.0
	out := e.Process(makeResult("shop", fields), tick(1))

	if *out.Result.Record.PrevRevenue != 600 {
		t.Errorf("PrevRevenue = %v, want explicit 600", *out.Result.Record.PrevRevenue)
	}
	if *out.Result.Record.PrevCost != 700 {
		t.Errorf("PrevCost = %v, want carried 700", *out.Result.Record.PrevCost)
	}
	if len(out.CarriedForward) != 2 {
		t.Errorf("CarriedForward = %v, want prev_cost and prev_customers", out.CarriedForward)
	}
}

func TestEngine_CarryForward_NullPrevIsFilled(t *testing.T) {
	e := NewEngine("shop")
	e.Process(makeResult("shop", period(1000, 700, 40)), tick(0))

	fields := period(1200, 900, 50)
	fields["prev_cost"] = nil
	out := e.Process(makeResult("shop", fields), tick(1))

	if out.Result.Record.PrevCost == nil || *out.Result.Record.PrevCost != 700 {
		t.Errorf("PrevCost = %v, want carried 700", out.Result.Record.PrevCost)
	}
	if out.Result.Metrics.CostChange == nil {
		t.Error("CostChange should be derived from the carried prev_cost")
	}
	if len(out.CarriedForward) != 3 {
		t.Errorf("CarriedForward = %v, want 3 fields", out.CarriedForward)
	}
}

func TestEngine_CarryForward_UnchangedPeriodKeepsBaseline(t *testing.T) {
	e := NewEngine("shop")
	e.Process(makeResult("shop", period(1000, 700, 40)), tick(0))
	e.Process(makeResult("shop", period(1200, 900, 50)), tick(1))

	// Polling again before the data changes must not compare the period to itself.
	out := e.Process(makeResult("shop", period(1200, 900, 50)), tick(2))
	if rc := out.Result.Metrics.RevenueChange; rc == nil || !almostEqual(*rc, 20, 1e-9) {
		t.Errorf("RevenueChange = %v, want 20", rc)
	}
}

func TestEngine_CarryForward_Disabled(t *testing.T) {
	e := NewEngine()
	e.Process(makeResult("shop", period(1000, 700, 40)), tick(0))
	out := e.Process(makeResult("shop", period(1200, 900, 50)), tick(1))

	if out.Result.Metrics.RevenueChange != nil {
		t.Errorf("RevenueChange = %v, want nil without carry_forward", *out.Result.Metrics.RevenueChange)
	}
}

func TestEngine_CarryForward_FailureKeepsBaseline(t *testing.T) {
	e := NewEngine("shop")
	e.Process(makeResult("shop", period(1000, 700, 40)), tick(0))

	failed := makeResult("shop", nil)
	failed.Err = errors.New("timeout")
	e.Process(failed, tick(1))
	e.Process(makeResult("shop", map[string]any{"customers": 0}), tick(2))

	out := e.Process(makeResult("shop", period(500, 800, 20)), tick(3))
	if pr := out.Result.Record.PrevRevenue; pr == nil || *pr != 1000 {
		t.Errorf("PrevRevenue = %v, want 1000", pr)
	}
}

func TestEngine_SetCarryForward(t *testing.T) {
	e := NewEngine()
	e.Process(makeResult("shop", period(1000, 700, 40)), tick(0))

	e.SetCarryForward("shop")
	out := e.Process(makeResult("shop", period(1200, 900, 50)), tick(1))
	if out.Result.Metrics.RevenueChange == nil {
		t.Error("RevenueChange should be set once carry_forward is enabled")
	}
}

func TestEngine_SourcesAreIndependent(t *testing.T) {
	e := NewEngine("a", "b")
	e.Process(makeResult("a", period(1000, 700, 40)), tick(0))

	out := e.Process(makeResult("b", period(1200, 900, 50)), tick(1))
	if out.Result.Metrics.RevenueChange != nil {
		t.Error("source b must not inherit source a's baseline")
	}
}

// --- Availability ---

func TestEngine_AvailabilityWindow(t *testing.T) {
	e := NewEngine()
	failed := func() *source.Result {
		r := makeResult("shop", nil)
		r.Err = errors.New("down")
		return r
	}

	// 5 failures then 15 successes: 75%.
	for i := 0; i < 5; i++ {
		e.Process(failed(), tick(i))
	}
	var out *Outcome
	for i := 0; i < 15; i++ {
		out = e.Process(makeResult("shop", period(1, 1, 1)), tick(5+i))
	}
	if !almostEqual(out.AvailabilityPct, 75, 0.01) {
		t.Errorf("AvailabilityPct = %.2f, want 75", out.AvailabilityPct)
	}

	// Five more successes push the failures out of the window.
	for i := 0; i < 5; i++ {
		out = e.Process(makeResult("shop", period(1, 1, 1)), tick(20+i))
	}
	if out.AvailabilityPct != 100 {
		t.Errorf("AvailabilityPct = %.2f, want 100", out.AvailabilityPct)
	}
}

// --- Wire conversion ---

func TestOutcome_ToSnapshot(t *testing.T) {
	e := NewEngine()
	out := e.Process(makeResult("shop", period(500, 800, 20)), tick(0))

	snap := out.ToSnapshot()
	if snap.SourceID != "shop" || snap.SourceType != "file" {
		t.Errorf("identity = %q/%q", snap.SourceID, snap.SourceType)
	}
	if snap.TimestampUnix != tick(0).Unix() {
		t.Errorf("TimestampUnix = %d", snap.TimestampUnix)
	}
	if snap.Report == nil || snap.Report.ProfitStatus != analysis.StatusLoss {
		t.Fatalf("Report = %+v, want loss", snap.Report)
	}
	if snap.Metrics == nil || snap.Metrics.Profit != -300 {
		t.Errorf("Metrics = %+v", snap.Metrics)
	}
	if snap.Failed() {
		t.Error("snapshot should not be failed")
	}
}

func TestOutcome_ToSnapshot_Failed(t *testing.T) {
	out := &Outcome{SourceID: "shop", SourceType: "sql", Timestamp: tick(0), ErrorMessage: "boom"}
	snap := out.ToSnapshot()
	if !snap.Failed() || snap.Report != nil || snap.Metrics != nil {
		t.Errorf("failed snapshot = %+v", snap)
	}
}
