/*
Package metrics encodes each platform's business rules for "what counts as
a sale" and "what counts as marketing spend", and normalizes the results
into one comparable shape.

PURPOSE:
  The three marketplaces encode a completed sale and marketing spend in
  mutually incompatible ways: DoorDash keys on a status literal, Uber Eats
  on a channel plus a drifting status set, Grubhub on a transaction type.
  Each calculator applies its platform's completion predicate and field
  mapping, emitting a NormalizedMetrics tuple. The four derived ratios
  (AOV, total marketing investment, marketing ROAS, net payout percent)
  are then computed identically for every platform - that uniform
  post-processing over divergent inputs is what makes cross-platform
  comparison valid, and it must never be shortcut per platform.

KEY CONCEPTS IN THIS FILE (types.go):
  - NormalizedMetrics: the raw buckets every calculator fills
  - Derived: the four ratios, computed post-hoc with zero-guards
    (division by zero yields 0, never NaN or Infinity)
  - Add: raw-bucket summation for the aggregation layer, which recomputes
    ratios over sums rather than averaging per-platform ratios

SEE ALSO:
  - doordash.go / ubereats.go / grubhub.go: per-platform rules
  - report/: aggregation over these tuples
*/
package metrics

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// =============================================================================
// NORMALIZED METRICS
// =============================================================================

// NormalizedMetrics is one platform's raw metric buckets over a scoped row
// set. Ephemeral: produced by a calculator, consumed by aggregation.
type NormalizedMetrics struct {
	TotalOrders          int64
	TotalSales           decimal.Decimal
	MarketingDrivenSales decimal.Decimal
	AdSpend              decimal.Decimal
	OfferDiscountValue   decimal.Decimal
	NetPayout            decimal.Decimal
	OrdersFromMarketing  int64
}

// Zero returns an explicit zero-valued tuple. Empty scopes return this,
// never nil.
func Zero() NormalizedMetrics {
	return NormalizedMetrics{
		TotalSales:           decimal.Zero,
		MarketingDrivenSales: decimal.Zero,
		AdSpend:              decimal.Zero,
		OfferDiscountValue:   decimal.Zero,
		NetPayout:            decimal.Zero,
	}
}

// Add sums raw buckets. The aggregation layer sums first and derives
// ratios over the sums.
func (m NormalizedMetrics) Add(other NormalizedMetrics) NormalizedMetrics {
	return NormalizedMetrics{
		TotalOrders:          m.TotalOrders + other.TotalOrders,
		TotalSales:           m.TotalSales.Add(other.TotalSales),
		MarketingDrivenSales: m.MarketingDrivenSales.Add(other.MarketingDrivenSales),
		AdSpend:              m.AdSpend.Add(other.AdSpend),
		OfferDiscountValue:   m.OfferDiscountValue.Add(other.OfferDiscountValue),
		NetPayout:            m.NetPayout.Add(other.NetPayout),
		OrdersFromMarketing:  m.OrdersFromMarketing + other.OrdersFromMarketing,
	}
}

// =============================================================================
// DERIVED RATIOS
// =============================================================================

// Derived holds the four comparison ratios. Always finite: every division
// guards its denominator.
type Derived struct {
	AOV                      decimal.Decimal // totalSales / totalOrders
	TotalMarketingInvestment decimal.Decimal // adSpend + offerDiscountValue
	MarketingROAS            decimal.Decimal // marketingDrivenSales / investment
	NetPayoutPercent         decimal.Decimal // 100 * netPayout / totalSales
}

// Derived computes the ratios from the raw buckets. Identical for every
// platform; aggregation calls it again over summed buckets.
func (m NormalizedMetrics) Derived() Derived {
	investment := m.AdSpend.Add(m.OfferDiscountValue)
	return Derived{
		AOV:                      safeDivInt(m.TotalSales, m.TotalOrders),
		TotalMarketingInvestment: investment,
		MarketingROAS:            safeDiv(m.MarketingDrivenSales, investment),
		NetPayoutPercent:         safeDiv(m.NetPayout.Mul(hundred), m.TotalSales),
	}
}

func safeDiv(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den)
}

func safeDivInt(num decimal.Decimal, den int64) decimal.Decimal {
	if den == 0 {
		return decimal.Zero
	}
	return num.Div(decimal.NewFromInt(den))
}
