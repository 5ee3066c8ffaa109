package collect

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bizpulse/bizpulse/analyst/internal/source"
	"github.com/bizpulse/bizpulse/pkg/analysis"
	"github.com/bizpulse/bizpulse/pkg/types"
)

// historyWindow is the number of recent load outcomes tracked for availability.
const historyWindow = 20

// Outcome is the analyzed result of one load of one source, ready to be
// rendered or handed to the shipper.
type Outcome struct {
	SourceID   string
	SourceType string
	Timestamp  time.Time

	// Result is nil when the load failed or the record was invalid.
	Result *analysis.Result

	// ErrorMessage is non-empty when Result is nil.
	ErrorMessage string

	// CarriedForward lists the prev_* fields filled from an earlier observation.
	CarriedForward []string

	// AvailabilityPct is the share of the last loads of this source that
	// produced a report.
	AvailabilityPct float64
}

// Failed reports whether the outcome carries an error instead of a result.
func (o *Outcome) Failed() bool { return o.Result == nil }

// ToSnapshot converts the outcome into its wire form.
func (o *Outcome) ToSnapshot() types.Snapshot {
	snap := types.Snapshot{
		SourceID:      o.SourceID,
		SourceType:    o.SourceType,
		TimestampUnix: o.Timestamp.Unix(),
		ErrorMessage:  o.ErrorMessage,
	}
	if o.Result != nil {
		m := o.Result.Metrics
		r := o.Result.Report
		snap.Metrics = &m
		snap.Report = &r
	}
	return snap
}

// Engine maintains per-source state across collection cycles.
//
// All exported methods are safe for concurrent use.
type Engine struct {
	mu     sync.Mutex
	carry  map[string]bool
	states map[string]*sourceState
}

// NewEngine returns a ready-to-use Engine. carryForward names the sources
// whose absent prev_* fields are filled from their previous observation.
func NewEngine(carryForward ...string) *Engine {
	e := &Engine{states: make(map[string]*sourceState)}
	e.SetCarryForward(carryForward...)
	return e
}

// SetCarryForward replaces the set of carry-forward sources, e.g. after a
// config reload. Existing per-source state is kept.
func (e *Engine) SetCarryForward(ids ...string) {
	carry := make(map[string]bool, len(ids))
	for _, id := range ids {
		carry[id] = true
	}
	e.mu.Lock()
	e.carry = carry
	e.mu.Unlock()
}

// Process analyzes a load result and returns its Outcome.
//
// now is passed explicitly so callers (and tests) control the clock without
// sleeping. Use time.Now() in production.
//
// A failed load or an invalid record yields an Outcome with ErrorMessage
// set; neither touches the carry-forward baseline.
func (e *Engine) Process(res *source.Result, now time.Time) *Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.stateFor(res.SourceID)
	out := &Outcome{
		SourceID:   res.SourceID,
		SourceType: res.SourceType,
		Timestamp:  now,
	}

	if res.Err != nil {
		slog.Warn("collect: load failed", "source", res.SourceID, "err", res.Err)
		st.record(false)
		out.ErrorMessage = res.Err.Error()
		out.AvailabilityPct = st.availabilityPct()
		return out
	}

	fields := res.Fields
	if e.carry[res.SourceID] {
		fields, out.CarriedForward = st.carryForward(res.Fields)
	}

	result, err := analysis.Run(fields)
	if err != nil {
		slog.Warn("collect: invalid record", "source", res.SourceID, "err", err)
		st.record(false)
		out.ErrorMessage = err.Error()
		out.AvailabilityPct = st.availabilityPct()
		return out
	}

	st.record(true)
	st.observe(result.Record)
	out.Result = &result
	out.AvailabilityPct = st.availabilityPct()
	return out
}

// sourceState holds the observation baseline and load history of one source.
type sourceState struct {
	// last is the most recent valid record; prev is the distinct record
	// observed before it. A source polled more often than its data changes
	// keeps reporting against prev instead of against itself.
	last, prev *analysis.Record
	history    []bool // newest last
}

func (e *Engine) stateFor(id string) *sourceState {
	if st, ok := e.states[id]; ok {
		return st
	}
	st := &sourceState{}
	e.states[id] = st
	return st
}

// carryForward returns a copy of fields with absent or null prev_* values
// taken from the baseline record, plus the names of the fields it filled.
func (st *sourceState) carryForward(fields map[string]any) (map[string]any, []string) {
	base := st.baseline(fields)
	if base == nil {
		return fields, nil
	}

	out := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		out[k] = v
	}
	var filled []string
	fill := func(key string, v float64) {
		if cur, ok := out[key]; !ok || cur == nil {
			out[key] = v
			filled = append(filled, key)
		}
	}
	fill(analysis.FieldPrevRevenue, base.Revenue)
	fill(analysis.FieldPrevCost, base.Cost)
	fill(analysis.FieldPrevCustomers, base.Customers)
	return out, filled
}

// baseline picks the record the current fields should be compared against.
func (st *sourceState) baseline(fields map[string]any) *analysis.Record {
	if st.last == nil {
		return nil
	}
	cur, err := analysis.Normalize(fields)
	if err == nil && samePeriod(cur, *st.last) {
		return st.prev
	}
	return st.last
}

// observe advances the baseline when rec differs from the last observation.
func (st *sourceState) observe(rec analysis.Record) {
	if st.last != nil && samePeriod(rec, *st.last) {
		return
	}
	st.prev = st.last
	st.last = &rec
}

func (st *sourceState) record(success bool) {
	if len(st.history) >= historyWindow {
		st.history = st.history[1:]
	}
	st.history = append(st.history, success)
}

func (st *sourceState) availabilityPct() float64 {
	if len(st.history) == 0 {
		return 100
	}
	var ok int
	for _, s := range st.history {
		if s {
			ok++
		}
	}
	return float64(ok) / float64(len(st.history)) * 100
}

// samePeriod reports whether two records carry the same current-period values.
func samePeriod(a, b analysis.Record) bool {
	return a.Revenue == b.Revenue && a.Cost == b.Cost && a.Customers == b.Customers
}
