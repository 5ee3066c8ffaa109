package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/bizpulse/bizpulse/pkg/analysis"
	"github.com/bizpulse/bizpulse/pkg/types"
	"github.com/bizpulse/bizpulse/server/internal/config"
)

const (
	maxHistoryLen     = 200
	recentWindowHours = 1
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert represents a single alert event produced by the engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	SourceID   string     `json:"source_id"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"` // "firing" | "resolved"
}

// candidate is one alert condition that holds for the current snapshot.
type candidate struct {
	rule, severity, message string
	value                   float64
}

// Engine evaluates alert conditions against incoming snapshots and delivers
// webhook notifications when alerts fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	rules    []customRule
	webhooks []config.WebhookConfig
	cooldown time.Duration

	mu       sync.Mutex
	active   map[string]*Alert    // key: "ruleName:sourceID"
	lastFire map[string]time.Time // last notified fire per key (for cooldown)
	history  []*Alert             // recently resolved alerts
	client   *http.Client
	now      func() time.Time // injectable for deterministic tests
}

// New creates an Engine from the server alert configuration. It fails when
// a custom rule condition does not compile.
func New(cfg config.AlertsConfig) (*Engine, error) {
	rules, err := compileRules(cfg.Rules)
	if err != nil {
		return nil, err
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = config.DefaultAlertCooldown
	}
	return &Engine{
		rules:    rules,
		webhooks: cfg.Webhooks,
		cooldown: cooldown,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}, nil
}

// Evaluate checks every alert condition against snap.
//
// Alerts that fire are stored and webhook delivery is triggered
// asynchronously, at most once per cooldown for the same rule and source.
// Alerts that were firing but whose condition no longer holds are resolved.
// A failed snapshot carries no metrics and leaves the alert state unchanged.
func (e *Engine) Evaluate(snap *types.Snapshot) {
	if snap.Failed() || snap.Metrics == nil {
		return
	}

	firing := e.candidates(snap)
	now := e.now()

	e.mu.Lock()
	var deliveries []*Alert
	for _, c := range firing {
		if a := e.fire(c, snap.SourceID, now); a != nil {
			deliveries = append(deliveries, a)
		}
	}
	for _, name := range e.ruleNames() {
		if _, ok := firing[name]; ok {
			continue
		}
		if a := e.resolve(name, snap.SourceID, now); a != nil {
			deliveries = append(deliveries, a)
		}
	}
	e.mu.Unlock()

	for _, a := range deliveries {
		go e.deliver(a)
	}
}

// candidates returns the alert conditions holding for snap, keyed by rule name.
func (e *Engine) candidates(snap *types.Snapshot) map[string]candidate {
	out := make(map[string]candidate)
	for _, f := range analysis.Evaluate(*snap.Metrics) {
		if f.Alert == "" {
			continue
		}
		out[f.Rule] = candidate{rule: f.Rule, severity: f.Severity, message: f.Alert, value: f.Value}
	}
	for _, r := range e.rules {
		fires, err := r.eval(*snap.Metrics)
		if err != nil {
			slog.Debug("alerts: rule evaluation failed", "rule", r.name, "source", snap.SourceID, "err", err)
			continue
		}
		if fires {
			out[r.name] = candidate{
				rule:     r.name,
				severity: r.severity,
				message:  fmt.Sprintf("%s: %s", r.name, r.condition),
				value:    snap.Metrics.Profit,
			}
		}
	}
	return out
}

// ruleNames lists every rule that can raise an alert.
func (e *Engine) ruleNames() []string {
	names := []string{analysis.RuleLoss, analysis.RuleCACSpike}
	for _, r := range e.rules {
		names = append(names, r.name)
	}
	return names
}

// fire records c as firing for sourceID. It returns a copy of the alert to
// deliver, or nil when the key is still inside its cooldown. Callers hold e.mu.
func (e *Engine) fire(c candidate, sourceID string, now time.Time) *Alert {
	key := c.rule + ":" + sourceID

	if a, ok := e.active[key]; ok {
		a.Value = c.value
		a.Message = c.message
		return nil
	}

	a := &Alert{
		ID:       fmt.Sprintf("%s:%s:%d", c.rule, sourceID, now.UnixNano()),
		RuleName: c.rule,
		SourceID: sourceID,
		Severity: c.severity,
		Message:  c.message,
		Value:    c.value,
		FiredAt:  now,
		State:    StateFiring,
	}
	e.active[key] = a

	if last, ok := e.lastFire[key]; ok && now.Sub(last) < e.cooldown {
		slog.Debug("alerts: re-fired within cooldown, not notifying", "rule", c.rule, "source", sourceID)
		return nil
	}
	e.lastFire[key] = now

	slog.Warn("alert fired",
		"rule", c.rule,
		"source", sourceID,
		"value", c.value,
		"severity", c.severity,
	)
	cp := *a
	return &cp
}

// resolve moves a firing alert for rule and sourceID to history. It returns
// a copy to deliver, or nil when nothing was firing. Callers hold e.mu.
func (e *Engine) resolve(rule, sourceID string, now time.Time) *Alert {
	key := rule + ":" + sourceID
	a, ok := e.active[key]
	if !ok {
		return nil
	}
	resolved := now
	a.State = StateResolved
	a.ResolvedAt = &resolved
	delete(e.active, key)

	e.history = append(e.history, a)
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}

	slog.Info("alert resolved", "rule", rule, "source", sourceID)
	cp := *a
	return &cp
}

// Forget resolves every alert firing for sourceID, e.g. when the source is
// removed. Resolutions are delivered like any other. It returns how many
// alerts were resolved.
func (e *Engine) Forget(sourceID string) int {
	now := e.now()

	e.mu.Lock()
	var deliveries []*Alert
	for _, a := range e.active {
		if a.SourceID != sourceID {
			continue
		}
		deliveries = append(deliveries, e.resolve(a.RuleName, sourceID, now))
	}
	for _, a := range deliveries {
		delete(e.lastFire, a.RuleName+":"+sourceID)
	}
	e.mu.Unlock()

	for _, a := range deliveries {
		go e.deliver(a)
	}
	return len(deliveries)
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, sorted newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindowHours * time.Hour)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FiredAt.Equal(out[j].FiredAt) {
			return out[i].FiredAt.After(out[j].FiredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// FiringBySource returns the number of firing alerts per source ID.
func (e *Engine) FiringBySource() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]int)
	for _, a := range e.active {
		out[a.SourceID]++
	}
	return out
}

// FiringCount returns the number of currently firing alerts.
func (e *Engine) FiringCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}
