/*
doordash.go - DoorDash metric rules

COMPLETION PREDICATE:
  A row counts toward sales/orders only when Status == "Completed".
  Net payout is the exception: it sums across ALL statuses, a superset of
  the sales scope (cancelled orders still carry fee reversals).

FIELD MAPPING:
  sales           <- tax-exclusive sales field
  ad spend        <- |other payments|, but only when the row carries a
                     non-empty description; description-less other-payments
                     rows are fee noise, not ad spend
  offer/discount  <- |offers on items| + |delivery offer redemptions|
                     (both arrive natively negative)
  marketing-driven iff offers-on-items < 0 OR delivery-offer-redemptions < 0
*/
package metrics

import (
	"strings"

	"github.com/forkline/delivery-metrics/platform"
)

const doorDashCompletedStatus = "Completed"

// CalculateDoorDash computes normalized metrics over rows already scoped
// to owner/date-range/location.
func CalculateDoorDash(rows []platform.DoorDashTransaction) NormalizedMetrics {
	m := Zero()

	for i := range rows {
		row := &rows[i]

		// Payout sums over every status.
		m.NetPayout = m.NetPayout.Add(row.NetPayout)

		if row.Status != doorDashCompletedStatus {
			continue
		}

		m.TotalOrders++
		m.TotalSales = m.TotalSales.Add(row.SalesExclTax)

		if !row.OtherPayments.IsZero() && strings.TrimSpace(row.OtherPaymentsDescription) != "" {
			m.AdSpend = m.AdSpend.Add(row.OtherPayments.Abs())
		}

		m.OfferDiscountValue = m.OfferDiscountValue.
			Add(row.OffersOnItems.Abs()).
			Add(row.DeliveryOfferRedemptions.Abs())

		if row.OffersOnItems.IsNegative() || row.DeliveryOfferRedemptions.IsNegative() {
			m.MarketingDrivenSales = m.MarketingDrivenSales.Add(row.SalesExclTax)
			m.OrdersFromMarketing++
		}
	}

	return m
}
