/*
grubhub.go - Grubhub metric rules

COMPLETION PREDICATE:
  A row counts toward sales/orders only when the transaction type is
  "Prepaid Order". Other types (adjustments, cancelations) are
  reconciliation-only: they never touch sales but their net totals still
  flow into payout across ALL types.

FIELD MAPPING:
  sales           <- subtotal + subtotal sales tax. Tax-INCLUSIVE, unlike
                     the other two platforms; Grubhub remits tax to the
                     merchant, so the tax rides the sale
  offer/discount  <- |merchant-funded promotion| (natively negative)
  marketing-driven iff merchant-funded promotion != 0
  ad spend        <- none; Grubhub has no separate ad-spend field
*/
package metrics

import (
	"github.com/forkline/delivery-metrics/platform"
)

const grubhubPrepaidOrderType = "Prepaid Order"

// CalculateGrubhub computes normalized metrics over rows already scoped
// to owner/date-range/location.
func CalculateGrubhub(rows []platform.GrubhubTransaction) NormalizedMetrics {
	m := Zero()

	for i := range rows {
		row := &rows[i]

		// Payout sums over every transaction type.
		m.NetPayout = m.NetPayout.Add(row.MerchantNetTotal)

		if row.TransactionType != grubhubPrepaidOrderType {
			continue
		}

		sale := row.Subtotal.Add(row.SubtotalSalesTax)
		m.TotalOrders++
		m.TotalSales = m.TotalSales.Add(sale)

		m.OfferDiscountValue = m.OfferDiscountValue.Add(row.MerchantFundedPromotion.Abs())

		if !row.MerchantFundedPromotion.IsZero() {
			m.MarketingDrivenSales = m.MarketingDrivenSales.Add(sale)
			m.OrdersFromMarketing++
		}
	}

	return m
}
