// Package refund implements the cancellation refund policy as a pure
// function so it can be evaluated (and tested) without touching any
// persistence or gateway code. The policy is the two-tier rule in
// force today: a full refund up to two hours before departure, nothing
// after. Finer tiers slot in by extending the table in Calculate.
package refund

import "time"

// FullRefundWindow is the minimum time before departure that still
// earns a 100% refund.
const FullRefundWindow = 2 * time.Hour

// Rule labels for the applied policy branch, surfaced to clients in
// the cancellation response so support staff can explain the outcome.
const (
	RuleFull = "FULL_REFUND_BEFORE_2H"
	RuleNone = "NO_REFUND_WITHIN_2H"
)

// Decision is the outcome of evaluating the refund policy against one
// booking amount and departure time. It is embedded into the
// cancellation result, never persisted standalone.
type Decision struct {
	OriginalAmount      int64   `json:"original_amount"`
	Percentage          int     `json:"percentage"`
	Amount              int64   `json:"amount"`
	HoursUntilDeparture float64 `json:"hours_until_departure"`
	Rule                string  `json:"policy"`
}

// Calculate evaluates the refund policy. Both departureAt and now are
// converted to the same reference zone by the caller before invocation
// (instants subtract identically in any zone, but keeping one zone for
// creation and cancellation avoids DST-skewed bookkeeping in reports).
// The refund amount is computed in integer arithmetic — amounts are in
// the smallest currency unit, so total*pct/100 floors naturally — and
// is always within [0, totalAmount].
func Calculate(totalAmount int64, departureAt, now time.Time) Decision {
	if totalAmount < 0 {
		totalAmount = 0
	}
	until := departureAt.Sub(now)
	d := Decision{
		OriginalAmount:      totalAmount,
		HoursUntilDeparture: until.Hours(),
	}
	if until >= FullRefundWindow {
		d.Percentage = 100
		d.Rule = RuleFull
	} else {
		d.Percentage = 0
		d.Rule = RuleNone
	}
	d.Amount = totalAmount * int64(d.Percentage) / 100
	return d
}
