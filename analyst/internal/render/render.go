package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"

	"github.com/bizpulse/bizpulse/analyst/internal/collect"
	"github.com/bizpulse/bizpulse/pkg/analysis"
	"github.com/bizpulse/bizpulse/pkg/types"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// ValidFormat reports whether f is a known output format.
func ValidFormat(f string) bool {
	return f == FormatJSON || f == FormatText
}

// JSON writes v as two-space indented JSON followed by a newline.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("render: encode json: %w", err)
	}
	return nil
}

// WriteFile writes v as indented JSON to path, replacing the file atomically.
func WriteFile(path string, v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".bizpulse-*.json")
	if err != nil {
		return fmt.Errorf("render: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := JSON(tmp, v); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("render: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("render: replace %q: %w", path, err)
	}
	return nil
}

// Snapshots converts outcomes into their wire form, preserving order.
func Snapshots(outs []*collect.Outcome) []types.Snapshot {
	snaps := make([]types.Snapshot, 0, len(outs))
	for _, o := range outs {
		snaps = append(snaps, o.ToSnapshot())
	}
	return snaps
}

var (
	bold    = color.New(color.Bold).SprintFunc()
	faint   = color.New(color.Faint).SprintFunc()
	green   = color.New(color.FgGreen, color.Bold).SprintFunc()
	red     = color.New(color.FgRed, color.Bold).SprintFunc()
	yellow  = color.New(color.FgYellow).SprintFunc()
	cyan    = color.New(color.FgCyan).SprintFunc()
	magenta = color.New(color.FgMagenta).SprintFunc()
)

// Report writes a text rendering of a single report.
func Report(w io.Writer, rep analysis.Report) {
	fmt.Fprintf(w, "%s %s\n", bold("status:"), status(rep.ProfitStatus))
	writeLines(w, rep)
}

// Outcomes writes a text summary of each outcome.
func Outcomes(w io.Writer, outs []*collect.Outcome) {
	for i, o := range outs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s %s %s\n", bold(o.SourceID), faint("("+o.SourceType+")"),
			faint(o.Timestamp.UTC().Format(time.RFC3339)))

		if o.Failed() {
			fmt.Fprintf(w, "  %s %s\n", red("error:"), o.ErrorMessage)
			continue
		}

		m := o.Result.Metrics
		fmt.Fprintf(w, "  %s profit=%s cac=%s revenue=%s cost=%s cac_change=%s\n",
			status(m.ProfitStatus), money(m.Profit), money(m.CAC),
			pct(m.RevenueChange), pct(m.CostChange), pct(m.CACChange))
		if len(o.CarriedForward) > 0 {
			fmt.Fprintf(w, "  %s %v\n", faint("carried forward:"), o.CarriedForward)
		}
		writeLines(w, o.Result.Report)
	}
}

func writeLines(w io.Writer, rep analysis.Report) {
	for _, a := range rep.Alerts {
		fmt.Fprintf(w, "  %s %s\n", yellow("alert:"), a)
	}
	for _, r := range rep.Recommendations {
		fmt.Fprintf(w, "  %s %s\n", cyan("recommend:"), r)
	}
}

func status(s string) string {
	if s == analysis.StatusLoss {
		return red("LOSS")
	}
	return green("PROFIT")
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// pct renders an optional percentage; absent values print as "n/a".
func pct(v *float64) string {
	if v == nil {
		return faint("n/a")
	}
	return magenta(fmt.Sprintf("%+.1f%%", *v))
}
