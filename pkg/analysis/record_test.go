package analysis

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Defaults(t *testing.T) {
	rec, err := Normalize(map[string]any{})
	require.NoError(t, err)

	assert.Equal(t, 0.0, rec.Revenue)
	assert.Equal(t, 0.0, rec.Cost)
	assert.Equal(t, 1.0, rec.Customers, "customers defaults to 1")
	assert.Nil(t, rec.PrevRevenue)
	assert.Nil(t, rec.PrevCost)
	assert.Nil(t, rec.PrevCustomers)
}

func TestNormalize_NilValuesAreAbsent(t *testing.T) {
	rec, err := Normalize(map[string]any{
		"revenue":      100,
		"customers":    nil,
		"prev_revenue": nil,
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, rec.Customers)
	assert.Nil(t, rec.PrevRevenue)
}

func TestNormalize_ZeroPreviousIsKept(t *testing.T) {
	rec, err := Normalize(map[string]any{
		"revenue":        100,
		"cost":           50,
		"prev_revenue":   0,
		"prev_cost":      0.0,
		"prev_customers": 0,
	})
	require.NoError(t, err)

	require.NotNil(t, rec.PrevRevenue)
	require.NotNil(t, rec.PrevCost)
	require.NotNil(t, rec.PrevCustomers)
	assert.Equal(t, 0.0, *rec.PrevRevenue)
	assert.Equal(t, 0.0, *rec.PrevCost)
	assert.Equal(t, 0.0, *rec.PrevCustomers)
}

func TestNormalize_Coercion(t *testing.T) {
	rec, err := Normalize(map[string]any{
		"revenue":        "1200.5",
		"cost":           int64(900),
		"customers":      int32(50),
		"prev_revenue":   float32(1000),
		"prev_cost":      json.Number("700"),
		"prev_customers": uint8(40),
		"region":         "emea",
	})
	require.NoError(t, err)

	assert.Equal(t, 1200.5, rec.Revenue)
	assert.Equal(t, 900.0, rec.Cost)
	assert.Equal(t, 50.0, rec.Customers)
	assert.Equal(t, 1000.0, *rec.PrevRevenue)
	assert.Equal(t, 700.0, *rec.PrevCost)
	assert.Equal(t, 40.0, *rec.PrevCustomers)
}

func TestNormalize_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"non-numeric revenue", map[string]any{"revenue": "lots"}},
		{"boolean cost", map[string]any{"cost": true}},
		{"zero customers", map[string]any{"customers": 0}},
		{"negative customers", map[string]any{"customers": -3}},
		{"NaN previous revenue", map[string]any{"prev_revenue": math.NaN()}},
		{"infinite cost", map[string]any{"cost": math.Inf(1)}},
		{"non-numeric prev_customers", map[string]any{"prev_customers": []int{1}}},
		{"profit overflows", map[string]any{"revenue": -1e308, "cost": 1e308}},
		{"cac overflows", map[string]any{"revenue": 1e308, "cost": 1e308, "customers": 1e-10}},
		{"revenue change overflows", map[string]any{"revenue": 1e308, "prev_revenue": 1e-10}},
		{"previous cac overflows", map[string]any{"cost": 10, "prev_cost": 1e308, "prev_customers": 1e-10}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize(tc.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestParseRecord(t *testing.T) {
	rec, err := ParseRecord([]byte(`{"revenue": 1000, "cost": 700, "customers": 30}`))
	require.NoError(t, err)
	assert.Equal(t, Record{Revenue: 1000, Cost: 700, Customers: 30}, rec)

	_, err = ParseRecord([]byte(`[1, 2, 3]`))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ParseRecord([]byte(`{"revenue":`))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecord_FieldsRoundTrip(t *testing.T) {
	prevCost := 700.0
	rec := Record{Revenue: 1200, Cost: 900, Customers: 50, PrevCost: &prevCost}

	fields := rec.Fields()
	assert.NotContains(t, fields, FieldPrevRevenue)
	assert.NotContains(t, fields, FieldPrevCustomers)

	back, err := Normalize(fields)
	require.NoError(t, err)
	assert.Equal(t, rec, back)
}

func TestNormalize_ExtremeButFinite(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"huge balanced", map[string]any{"revenue": 1e308, "cost": 1e308, "customers": 1}},
		{"huge with many customers", map[string]any{"revenue": 1e300, "cost": 1e300, "customers": 1e300}},
		{"tiny values", map[string]any{"revenue": 1e-300, "cost": 5e-301, "customers": 1e-10}},
		{"tiny previous", map[string]any{"revenue": 1, "prev_revenue": 1e-300}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := Normalize(tc.raw)
			require.NoError(t, err)

			res := RunRecord(rec)
			_, err = json.Marshal(res)
			assert.NoError(t, err, "metrics must stay encodable")
		})
	}
}

func TestAnalyze_OverflowIsInvalidNotPanic(t *testing.T) {
	raws := []map[string]any{
		{"revenue": -1e308, "cost": 1e308, "customers": 1},
		{"revenue": 1e308, "cost": 1e308, "customers": 1e-10},
	}
	for _, raw := range raws {
		assert.NotPanics(t, func() {
			_, err := Analyze(raw)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}
