package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/spf13/cast"
)

// Field names accepted by Normalize. They match the JSON wire format.
const (
	FieldRevenue       = "revenue"
	FieldCost          = "cost"
	FieldCustomers     = "customers"
	FieldPrevRevenue   = "prev_revenue"
	FieldPrevCost      = "prev_cost"
	FieldPrevCustomers = "prev_customers"
)

// FieldNames lists every recognised record field in wire order.
var FieldNames = []string{
	FieldRevenue, FieldCost, FieldCustomers,
	FieldPrevRevenue, FieldPrevCost, FieldPrevCustomers,
}

// defaultCustomers is used when the customers field is absent.
const defaultCustomers = 1.0

// ErrInvalidInput is returned by Normalize when a field cannot be used.
var ErrInvalidInput = errors.New("invalid input")

// Record is the canonical input of one period.
type Record struct {
	Revenue   float64 `json:"revenue" yaml:"revenue"`
	Cost      float64 `json:"cost" yaml:"cost"`
	Customers float64 `json:"customers" yaml:"customers"`

	// Previous-period values. Nil means the value was not supplied.
	PrevRevenue   *float64 `json:"prev_revenue,omitempty" yaml:"prev_revenue,omitempty"`
	PrevCost      *float64 `json:"prev_cost,omitempty" yaml:"prev_cost,omitempty"`
	PrevCustomers *float64 `json:"prev_customers,omitempty" yaml:"prev_customers,omitempty"`
}

// Normalize converts a loosely typed field map into a Record.
//
// Values may be any numeric type or a numeric string. Missing revenue and
// cost default to 0, missing customers defaults to 1, and missing
// previous-period fields stay nil. Unknown keys are ignored.
//
// An explicit customers value <= 0 is rejected so that Compute never divides
// by zero; an unparseable or non-finite value is rejected as well. So is a
// record whose derived metrics overflow (e.g. revenue - cost beyond the
// float64 range), since those cannot be reported or encoded. All errors wrap
// ErrInvalidInput.
func Normalize(raw map[string]any) (Record, error) {
	var rec Record
	var err error

	if rec.Revenue, err = requiredField(raw, FieldRevenue, 0); err != nil {
		return Record{}, err
	}
	if rec.Cost, err = requiredField(raw, FieldCost, 0); err != nil {
		return Record{}, err
	}
	if rec.Customers, err = requiredField(raw, FieldCustomers, defaultCustomers); err != nil {
		return Record{}, err
	}
	if rec.Customers <= 0 {
		return Record{}, fmt.Errorf("%w: %s must be positive, got %v",
			ErrInvalidInput, FieldCustomers, rec.Customers)
	}

	if rec.PrevRevenue, err = optionalField(raw, FieldPrevRevenue); err != nil {
		return Record{}, err
	}
	if rec.PrevCost, err = optionalField(raw, FieldPrevCost); err != nil {
		return Record{}, err
	}
	if rec.PrevCustomers, err = optionalField(raw, FieldPrevCustomers); err != nil {
		return Record{}, err
	}
	if err := checkDerived(rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// checkDerived rejects a record whose metrics are not all finite.
func checkDerived(rec Record) error {
	m := Compute(rec)
	derived := []struct {
		name string
		v    *float64
	}{
		{"profit", &m.Profit},
		{"cac", &m.CAC},
		{"revenue_change", m.RevenueChange},
		{"cost_change", m.CostChange},
		{"cac_change", m.CACChange},
	}
	for _, d := range derived {
		if d.v != nil && (math.IsNaN(*d.v) || math.IsInf(*d.v, 0)) {
			return fmt.Errorf("%w: %s overflows", ErrInvalidInput, d.name)
		}
	}
	return nil
}

// ParseRecord decodes a JSON object and normalizes it.
func ParseRecord(data []byte) (Record, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Record{}, fmt.Errorf("%w: decode json: %v", ErrInvalidInput, err)
	}
	return Normalize(raw)
}

// Fields returns the record as a field map that Normalize accepts.
// Absent previous-period values are left out of the map.
func (r Record) Fields() map[string]any {
	out := map[string]any{
		FieldRevenue:   r.Revenue,
		FieldCost:      r.Cost,
		FieldCustomers: r.Customers,
	}
	if r.PrevRevenue != nil {
		out[FieldPrevRevenue] = *r.PrevRevenue
	}
	if r.PrevCost != nil {
		out[FieldPrevCost] = *r.PrevCost
	}
	if r.PrevCustomers != nil {
		out[FieldPrevCustomers] = *r.PrevCustomers
	}
	return out
}

func requiredField(raw map[string]any, key string, def float64) (float64, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return def, nil
	}
	return toNumber(key, v)
}

func optionalField(raw map[string]any, key string) (*float64, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil, nil
	}
	f, err := toNumber(key, v)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func toNumber(key string, v any) (float64, error) {
	if _, isBool := v.(bool); isBool {
		return 0, fmt.Errorf("%w: %s: boolean is not a number", ErrInvalidInput, key)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidInput, key, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s: not a finite number", ErrInvalidInput, key)
	}
	return f, nil
}
