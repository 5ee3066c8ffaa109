package analysis

// Profit status values.
const (
	StatusProfit = "profit"
	StatusLoss   = "loss"
)

// Metrics is the derived view of one Record.
// Change fields are percentages; nil means no usable previous value.
type Metrics struct {
	Profit        float64  `json:"profit"`
	ProfitStatus  string   `json:"profit_status"`
	RevenueChange *float64 `json:"revenue_change"`
	CostChange    *float64 `json:"cost_change"`
	CAC           float64  `json:"cac"`
	CACChange     *float64 `json:"cac_change"`
}

// Compute derives Metrics from rec.
//
//	profit         = revenue - cost          ("profit" when >= 0)
//	revenue_change = pct(revenue, prev_revenue)
//	cost_change    = pct(cost, prev_cost)
//	cac            = cost / customers
//	cac_change     = pct(cac, prev_cost / prev_customers)
//
// pct(cur, prev) = (cur - prev) / prev * 100, and is nil when prev is nil or
// zero. The previous CAC needs both prev_cost and a non-zero prev_customers.
//
// rec.Customers must be non-zero; Normalize guarantees this.
func Compute(rec Record) Metrics {
	profit := rec.Revenue - rec.Cost
	status := StatusProfit
	if profit < 0 {
		status = StatusLoss
	}

	cac := rec.Cost / rec.Customers

	return Metrics{
		Profit:        profit,
		ProfitStatus:  status,
		RevenueChange: pctChange(rec.Revenue, rec.PrevRevenue),
		CostChange:    pctChange(rec.Cost, rec.PrevCost),
		CAC:           cac,
		CACChange:     pctChange(cac, prevCAC(rec)),
	}
}

// prevCAC returns the previous period's acquisition cost, or nil when it
// cannot be derived.
func prevCAC(rec Record) *float64 {
	if rec.PrevCost == nil || rec.PrevCustomers == nil || *rec.PrevCustomers == 0 {
		return nil
	}
	v := *rec.PrevCost / *rec.PrevCustomers
	return &v
}

// pctChange returns the percentage change from prev to cur.
// A missing or zero prev yields nil rather than 0, since 0 means "unchanged".
func pctChange(cur float64, prev *float64) *float64 {
	if prev == nil || *prev == 0 {
		return nil
	}
	v := (cur - *prev) / *prev * 100
	return &v
}
