package alerts

import (
	"testing"
	"time"

	"github.com/bizpulse/bizpulse/pkg/analysis"
	"github.com/bizpulse/bizpulse/server/internal/config"
)

func TestCompileRules_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cond string
	}{
		{"syntax error", "profit <"},
		{"unknown variable", "margin > 10"},
		{"not boolean", "profit + 1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(config.AlertsConfig{Rules: []config.AlertRule{{Name: "r", Condition: tc.cond}}})
			if err == nil {
				t.Fatalf("expected compile error for %q", tc.cond)
			}
		})
	}
}

func TestCustomRule_Eval(t *testing.T) {
	tests := []struct {
		name string
		cond string
		rec  analysis.Record
		want bool
	}{
		{"profit threshold fires", "profit < -200", analysis.Record{Revenue: 500, Cost: 800, Customers: 20}, true},
		{"profit threshold quiet", "profit < -1000", analysis.Record{Revenue: 500, Cost: 800, Customers: 20}, false},
		{"status string", "profit_status == 'loss'", analysis.Record{Revenue: 500, Cost: 800, Customers: 20}, true},
		{"cac", "cac >= 40", analysis.Record{Revenue: 500, Cost: 800, Customers: 20}, true},
		{"absent change never compares", "revenue_change_pct < 0", analysis.Record{Revenue: 500, Cost: 800, Customers: 20}, false},
		{"presence flag", "!has_revenue_change", analysis.Record{Revenue: 500, Cost: 800, Customers: 20}, true},
		{
			"revenue drop",
			"has_revenue_change && revenue_change_pct < -10",
			analysis.Record{Revenue: 500, Cost: 800, Customers: 20, PrevRevenue: f64(600)},
			true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rules, err := compileRules([]config.AlertRule{{Name: "r", Condition: tc.cond}})
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			got, err := rules[0].eval(analysis.Compute(tc.rec))
			if err != nil {
				t.Fatalf("eval: %v", err)
			}
			if got != tc.want {
				t.Errorf("eval(%q) = %v, want %v", tc.cond, got, tc.want)
			}
		})
	}
}

func TestEvaluate_CustomRule(t *testing.T) {
	e, now := newEngine(t, config.AlertsConfig{Rules: []config.AlertRule{
		{Name: "big_loss", Condition: "profit < -200", Severity: "critical"},
		{Name: "thin_margin", Condition: "profit >= 0 && profit < 100"},
	}})

	e.Evaluate(snapshot("shop", analysis.Record{Revenue: 500, Cost: 800, Customers: 20}))
	got := firingRules(e)
	if !got["big_loss:shop"] || got["thin_margin:shop"] {
		t.Errorf("firing = %v, want big_loss only (plus built-ins)", got)
	}
	for _, a := range e.Active() {
		if a.RuleName == "big_loss" && (a.Severity != "critical" || a.Message != "big_loss: profit < -200") {
			t.Errorf("big_loss alert = %+v", a)
		}
	}

	*now = now.Add(time.Minute)
	e.Evaluate(snapshot("shop", analysis.Record{Revenue: 850, Cost: 800, Customers: 20}))
	got = firingRules(e)
	if got["big_loss:shop"] || !got["thin_margin:shop"] {
		t.Errorf("firing = %v, want thin_margin only", got)
	}
	for _, a := range e.Active() {
		if a.RuleName == "thin_margin" && a.Severity != analysis.SeverityWarning {
			t.Errorf("default severity = %q, want warning", a.Severity)
		}
	}
}
