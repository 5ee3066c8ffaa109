package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/bizpulse/bizpulse/analyst/internal/config"
)

type promLoader struct {
	src    config.Source
	client *http.Client
}

// Load scrapes a Prometheus text exposition and maps metric families to
// record fields through src.Metrics. Each field is the sum of every series
// in its family; a family missing from the scrape leaves the field absent.
func (l *promLoader) Load(ctx context.Context) (*Result, error) {
	res := newResult(l.src)

	mfs, err := fetchMetrics(ctx, l.client, l.src.Endpoint)
	if err != nil {
		res.Err = fmt.Errorf("prometheus source %q: %w", l.src.ID, err)
		slog.Warn("source: prometheus fetch failed", "source", l.src.ID, "err", err)
		return res, nil
	}

	for field, family := range l.src.Metrics {
		if v, ok := sumFamily(mfs[family]); ok {
			res.Fields[field] = v
		}
	}
	return res, nil
}

// fetchMetrics performs an HTTP GET to url and returns parsed metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	resp, err := get(ctx, client, url, string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// sumFamily adds up all counter, gauge, or untyped values in a MetricFamily.
// ok is false when the family is missing or carries no samples.
func sumFamily(mf *dto.MetricFamily) (total float64, ok bool) {
	if mf == nil {
		return 0, false
	}
	for _, m := range mf.GetMetric() {
		switch {
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		case m.Untyped != nil:
			total += m.Untyped.GetValue()
		default:
			continue
		}
		ok = true
	}
	return total, ok
}
