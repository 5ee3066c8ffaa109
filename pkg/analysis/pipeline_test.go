package analysis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze_Scenarios(t *testing.T) {
	tests := []struct {
		name  string
		input map[string]any
		want  Report
	}{
		{
			name: "A: growth with moderate CAC",
			input: map[string]any{
				"revenue": 1200, "cost": 900, "prev_revenue": 1000, "prev_cost": 700,
				"customers": 50, "prev_customers": 40,
			},
			want: Report{
				ProfitStatus:    StatusProfit,
				Alerts:          []string{},
				Recommendations: []string{"Increase advertising budget (sales up 20.0%)"},
			},
		},
		{
			name: "B: growth with falling CAC",
			input: map[string]any{
				"revenue": 2000, "cost": 1000, "prev_revenue": 1500, "prev_cost": 900,
				"customers": 100, "prev_customers": 80,
			},
			want: Report{
				ProfitStatus:    StatusProfit,
				Alerts:          []string{},
				Recommendations: []string{"Increase advertising budget (sales up 33.3%)"},
			},
		},
		{
			name: "C: loss and CAC spike",
			input: map[string]any{
				"revenue": 500, "cost": 800, "prev_revenue": 600, "prev_cost": 500,
				"customers": 20, "prev_customers": 50,
			},
			want: Report{
				ProfitStatus: StatusLoss,
				Alerts:       []string{"Loss detected: $300", "CAC increased by 300.0%"},
				Recommendations: []string{
					"Reduce operational costs immediately",
					"Review marketing campaigns and channels",
				},
			},
		},
		{
			name:  "D: no previous period",
			input: map[string]any{"revenue": 1000, "cost": 700, "customers": 30},
			want: Report{
				ProfitStatus:    StatusProfit,
				Alerts:          []string{},
				Recommendations: []string{},
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Analyze(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAnalyze_InvalidInput(t *testing.T) {
	_, err := Analyze(map[string]any{"revenue": 10, "cost": 5, "customers": 0})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAnalyze_Idempotent(t *testing.T) {
	input := map[string]any{
		"revenue": 500, "cost": 800, "prev_revenue": 600, "prev_cost": 500,
		"customers": 20, "prev_customers": 50,
	}

	first, err := Analyze(input)
	require.NoError(t, err)
	second, err := Analyze(input)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_ExposesStages(t *testing.T) {
	res, err := Run(map[string]any{"revenue": 1000, "cost": 700})
	require.NoError(t, err)

	assert.Equal(t, 1.0, res.Record.Customers)
	assert.Equal(t, 700.0, res.Metrics.CAC)
	assert.Equal(t, StatusProfit, res.Report.ProfitStatus)
}

func TestPipeline_Graph(t *testing.T) {
	g := Pipeline()
	assert.Equal(t, []string{"input", "processing", "recommendations"}, g.Nodes)
	assert.Equal(t, "input", g.EntryPoint)
	assert.Equal(t, []string{"recommendations"}, g.EndPoints)
	assert.Equal(t, [][2]string{{"input", "processing"}, {"processing", "recommendations"}}, g.Edges)
}
