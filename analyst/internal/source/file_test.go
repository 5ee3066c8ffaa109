package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bizpulse/bizpulse/analyst/internal/config"
	"github.com/bizpulse/bizpulse/pkg/analysis"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestFileLoader_JSON(t *testing.T) {
	path := writeFile(t, "record.json", `{"revenue": 1200, "cost": 900, "customers": 50, "prev_revenue": 1000}`)

	l, err := New(config.Source{ID: "shop", Type: config.SourceFile, Path: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := l.Load(context.Background())
	if err != nil || res.Err != nil {
		t.Fatalf("Load: err=%v res.Err=%v", err, res.Err)
	}
	if res.Fields["revenue"] != 1200.0 {
		t.Errorf("revenue = %v", res.Fields["revenue"])
	}
	if _, ok := res.Fields["prev_cost"]; ok {
		t.Error("prev_cost should be absent")
	}
}

func TestFileLoader_YAML(t *testing.T) {
	path := writeFile(t, "record.yaml", "revenue: 500\ncost: 800\ncustomers: 20\nprev_revenue: 600\nprev_cost: 500\nprev_customers: 50\n")

	l := &fileLoader{src: config.Source{ID: "shop", Type: config.SourceFile, Path: path}}
	res, _ := l.Load(context.Background())
	if res.Err != nil {
		t.Fatalf("res.Err = %v", res.Err)
	}

	rep, err := analysis.Analyze(res.Fields)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if rep.ProfitStatus != analysis.StatusLoss {
		t.Errorf("ProfitStatus = %q, want loss", rep.ProfitStatus)
	}
	if len(rep.Alerts) != 2 {
		t.Errorf("Alerts = %v, want 2 entries", rep.Alerts)
	}
}

func TestFileLoader_Errors(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(t.TempDir(), "nope.json")},
		{"malformed json", writeFile(t, "bad.json", `{"revenue": `)},
		{"json array", writeFile(t, "list.json", `[1, 2]`)},
		{"malformed yaml", writeFile(t, "bad.yml", "revenue: [1\n")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := &fileLoader{src: config.Source{ID: "x", Path: tc.path}}
			res, err := l.Load(context.Background())
			if err != nil {
				t.Fatalf("Load() should not return err, got %v", err)
			}
			if res.Err == nil {
				t.Fatal("res.Err should be set")
			}
		})
	}
}

func TestNew_UnknownType(t *testing.T) {
	if _, err := New(config.Source{ID: "x", Type: "ftp"}); err == nil {
		t.Fatal("expected error for unknown type")
	}
}
