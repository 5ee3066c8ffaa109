package alerts

import (
	"fmt"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/bizpulse/bizpulse/pkg/analysis"
	"github.com/bizpulse/bizpulse/server/internal/config"
)

// customRule is a compiled alerts.rules entry.
type customRule struct {
	name      string
	condition string
	severity  string
	program   *vm.Program
}

// compileRules compiles every custom rule condition against the metric
// environment, so a typo fails at startup instead of on the first snapshot.
func compileRules(rules []config.AlertRule) ([]customRule, error) {
	out := make([]customRule, 0, len(rules))
	for _, r := range rules {
		prog, err := expr.Compile(r.Condition, expr.Env(ruleEnv(analysis.Metrics{})), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("alerts: rule %q: %w", r.Name, err)
		}
		sev := r.Severity
		if sev == "" {
			sev = analysis.SeverityWarning
		}
		out = append(out, customRule{name: r.Name, condition: r.Condition, severity: sev, program: prog})
	}
	return out, nil
}

// eval reports whether the rule fires for m. A runtime error counts as not firing.
func (r customRule) eval(m analysis.Metrics) (bool, error) {
	v, err := expr.Run(r.program, ruleEnv(m))
	if err != nil {
		return false, err
	}
	fires, _ := v.(bool)
	return fires, nil
}

// ruleEnv exposes snapshot metrics to rule expressions.
//
// Absent percentage changes are NaN, so ordering comparisons against them
// are false; has_* flags test for presence explicitly.
func ruleEnv(m analysis.Metrics) map[string]any {
	return map[string]any{
		"profit":             m.Profit,
		"profit_status":      m.ProfitStatus,
		"cac":                m.CAC,
		"revenue_change_pct": orNaN(m.RevenueChange),
		"cost_change_pct":    orNaN(m.CostChange),
		"cac_change_pct":     orNaN(m.CACChange),
		"has_revenue_change": m.RevenueChange != nil,
		"has_cost_change":    m.CostChange != nil,
		"has_cac_change":     m.CACChange != nil,
	}
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
