package analysis

import (
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// Fixed rule thresholds, in percentage points. Both comparisons are strict.
const (
	CACSpikeThresholdPct = 20.0
	GrowthFloorPct       = 0.0
)

// Rule names, in evaluation order.
const (
	RuleLoss     = "loss"
	RuleCACSpike = "cac_spike"
	RuleGrowth   = "growth"
)

// Severity levels attached to findings.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Recommendation texts.
const (
	RecommendReduceCosts     = "Reduce operational costs immediately"
	RecommendReviewMarketing = "Review marketing campaigns and channels"
)

// Finding is the outcome of one rule that fired.
// Alert is empty for rules that only recommend.
type Finding struct {
	Rule           string  `json:"rule"`
	Severity       string  `json:"severity"`
	Alert          string  `json:"alert,omitempty"`
	Recommendation string  `json:"recommendation"`
	Value          float64 `json:"value"`
}

// Report is the advisory output for one record.
type Report struct {
	ProfitStatus    string   `json:"profit_status"`
	Alerts          []string `json:"alerts"`
	Recommendations []string `json:"recommendations"`
}

// rule is a single advisory check. It reports ok=false when it does not fire.
type rule func(m Metrics) (Finding, bool)

// rules is the fixed evaluation order. Every rule runs on every call.
var rules = []rule{lossRule, cacSpikeRule, growthRule}

// Evaluate runs every rule against m and returns the findings that fired,
// in rule order.
func Evaluate(m Metrics) []Finding {
	var out []Finding
	for _, r := range rules {
		if f, ok := r(m); ok {
			out = append(out, f)
		}
	}
	return out
}

// Advise builds the Report for m. Alerts and recommendations keep rule order
// and are never nil.
func Advise(m Metrics) Report {
	rep := Report{
		ProfitStatus:    m.ProfitStatus,
		Alerts:          []string{},
		Recommendations: []string{},
	}
	for _, f := range Evaluate(m) {
		if f.Alert != "" {
			rep.Alerts = append(rep.Alerts, f.Alert)
		}
		rep.Recommendations = append(rep.Recommendations, f.Recommendation)
	}
	return rep
}

func lossRule(m Metrics) (Finding, bool) {
	if m.Profit >= 0 {
		return Finding{}, false
	}
	loss := math.Abs(m.Profit)
	return Finding{
		Rule:           RuleLoss,
		Severity:       SeverityCritical,
		Alert:          "Loss detected: $" + formatAmount(loss),
		Recommendation: RecommendReduceCosts,
		Value:          loss,
	}, true
}

func cacSpikeRule(m Metrics) (Finding, bool) {
	if m.CACChange == nil || *m.CACChange <= CACSpikeThresholdPct {
		return Finding{}, false
	}
	return Finding{
		Rule:           RuleCACSpike,
		Severity:       SeverityWarning,
		Alert:          fmt.Sprintf("CAC increased by %.1f%%", *m.CACChange),
		Recommendation: RecommendReviewMarketing,
		Value:          *m.CACChange,
	}, true
}

func growthRule(m Metrics) (Finding, bool) {
	if m.RevenueChange == nil || *m.RevenueChange <= GrowthFloorPct {
		return Finding{}, false
	}
	return Finding{
		Rule:           RuleGrowth,
		Severity:       SeverityInfo,
		Recommendation: fmt.Sprintf("Increase advertising budget (sales up %.1f%%)", *m.RevenueChange),
		Value:          *m.RevenueChange,
	}, true
}

// formatAmount prints a money amount in its shortest exact decimal form,
// e.g. 300 -> "300", 12.5 -> "12.5". Non-finite values, which decimal
// cannot represent, fall back to strconv.
func formatAmount(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return decimal.NewFromFloat(v).String()
}
