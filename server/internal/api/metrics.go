package api

import (
	"log/slog"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/bizpulse/bizpulse/pkg/analysis"
	"github.com/bizpulse/bizpulse/server/internal/store"
)

// gauge describes one exported per-source metric family.
// value reports ok=false when the source has no sample for it.
type gauge struct {
	name, help string
	value      func(e *store.Entry, alerts int) (float64, bool)
}

var gauges = []gauge{
	{"bizpulse_up", "1 when the last observation of the source was analyzed, 0 when it failed.",
		func(e *store.Entry, _ int) (float64, bool) { return boolValue(!e.Snapshot.Failed()), true }},
	{"bizpulse_profit", "Revenue minus cost of the last period.",
		metricValue(func(m *analysis.Metrics) *float64 { return &m.Profit })},
	{"bizpulse_loss", "1 when the last period was a loss.",
		metricValue(func(m *analysis.Metrics) *float64 {
			v := boolValue(m.ProfitStatus == analysis.StatusLoss)
			return &v
		})},
	{"bizpulse_cac", "Customer acquisition cost of the last period.",
		metricValue(func(m *analysis.Metrics) *float64 { return &m.CAC })},
	{"bizpulse_revenue_change_pct", "Revenue change against the previous period, in percent.",
		metricValue(func(m *analysis.Metrics) *float64 { return m.RevenueChange })},
	{"bizpulse_cost_change_pct", "Cost change against the previous period, in percent.",
		metricValue(func(m *analysis.Metrics) *float64 { return m.CostChange })},
	{"bizpulse_cac_change_pct", "CAC change against the previous period, in percent.",
		metricValue(func(m *analysis.Metrics) *float64 { return m.CACChange })},
	{"bizpulse_alerts", "Number of firing alerts.",
		func(_ *store.Entry, alerts int) (float64, bool) { return float64(alerts), true }},
}

// metricValue adapts a Metrics field getter. Failed snapshots and nil
// fields produce no sample.
func metricValue(get func(m *analysis.Metrics) *float64) func(*store.Entry, int) (float64, bool) {
	return func(e *store.Entry, _ int) (float64, bool) {
		if e.Snapshot.Metrics == nil {
			return 0, false
		}
		v := get(e.Snapshot.Metrics)
		if v == nil {
			return 0, false
		}
		return *v, true
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// metrics serves GET /metrics in the Prometheus text exposition format.
func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range h.families() {
		if err := enc.Encode(mf); err != nil {
			slog.Warn("api: encode metric family failed", "family", mf.GetName(), "err", err)
			return
		}
	}
}

// families builds one MetricFamily per gauge, labelled by source_id.
// Families without any sample are omitted since the text format rejects them.
func (h *Handler) families() []*dto.MetricFamily {
	entries := h.store.List()
	firing := h.alerts.FiringBySource()

	out := make([]*dto.MetricFamily, 0, len(gauges)+1)
	out = append(out, &dto.MetricFamily{
		Name: proto.String("bizpulse_sources"),
		Help: proto.String("Number of live sources."),
		Type: dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{
			Gauge: &dto.Gauge{Value: proto.Float64(float64(len(entries)))},
		}},
	})

	for _, g := range gauges {
		mf := &dto.MetricFamily{
			Name: proto.String(g.name),
			Help: proto.String(g.help),
			Type: dto.MetricType_GAUGE.Enum(),
		}
		for _, e := range entries {
			v, ok := g.value(e, firing[e.Snapshot.SourceID])
			if !ok {
				continue
			}
			mf.Metric = append(mf.Metric, &dto.Metric{
				Label: []*dto.LabelPair{
					{Name: proto.String("source_id"), Value: proto.String(e.Snapshot.SourceID)},
					{Name: proto.String("source_type"), Value: proto.String(e.Snapshot.SourceType)},
				},
				Gauge: &dto.Gauge{Value: proto.Float64(v)},
			})
		}
		if len(mf.Metric) > 0 {
			out = append(out, mf)
		}
	}
	return out
}
