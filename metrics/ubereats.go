/*
ubereats.go - Uber Eats metric rules

COMPLETION PREDICATE:
  A row counts toward sales/orders only when the channel is "Marketplace"
  (or empty - older exports omit the column) AND the status is in a
  configurable terminal-status set. The literals have drifted across
  export versions ("Delivered" vs "Picked Up" vs "Completed"), so the set
  is configuration, never a hard-coded constant. Statuses outside the set
  are surfaced via UnknownStatuses rather than silently standardized.
  Net payout sums Marketplace-channel rows across all statuses.

FIELD MAPPING:
  sales           <- tax-exclusive subtotal
  ad spend        <- |other payments| with the same non-empty-description
                     rule as DoorDash
  offer/discount  <- |offers on items| + |delivery offer redemptions|
                     + |marketing credits| + |third-party contribution|
  marketing-driven iff any of those four is non-zero in the
                   discount-indicating direction (offers/redemptions
                   negative; credits/contribution any non-zero)
*/
package metrics

import (
	"sort"
	"strings"

	"github.com/forkline/delivery-metrics/platform"
)

const uberEatsMarketplaceChannel = "Marketplace"

// UberEatsConfig carries the drifting parts of the Uber Eats export
// contract.
type UberEatsConfig struct {
	// CompletedStatuses is the terminal-status set that counts toward
	// sales/orders.
	CompletedStatuses []string
}

// DefaultUberEatsConfig accepts the union of literals observed across
// export-format versions.
func DefaultUberEatsConfig() UberEatsConfig {
	return UberEatsConfig{
		CompletedStatuses: []string{"Completed", "Delivered", "Picked Up"},
	}
}

func (c UberEatsConfig) isCompleted(status string) bool {
	for _, s := range c.CompletedStatuses {
		if strings.EqualFold(s, status) {
			return true
		}
	}
	return false
}

func isMarketplaceChannel(channel string) bool {
	return channel == "" || strings.EqualFold(channel, uberEatsMarketplaceChannel)
}

// CalculateUberEats computes normalized metrics over rows already scoped
// to owner/date-range/location.
func CalculateUberEats(rows []platform.UberEatsTransaction, cfg UberEatsConfig) NormalizedMetrics {
	m := Zero()

	for i := range rows {
		row := &rows[i]

		if !isMarketplaceChannel(row.Channel) {
			continue
		}

		// Payout sums Marketplace rows over every status.
		m.NetPayout = m.NetPayout.Add(row.NetPayout)

		if !cfg.isCompleted(row.Status) {
			continue
		}

		m.TotalOrders++
		m.TotalSales = m.TotalSales.Add(row.SubtotalExclTax)

		if !row.OtherPayments.IsZero() && strings.TrimSpace(row.OtherPaymentsDescription) != "" {
			m.AdSpend = m.AdSpend.Add(row.OtherPayments.Abs())
		}

		m.OfferDiscountValue = m.OfferDiscountValue.
			Add(row.OffersOnItems.Abs()).
			Add(row.DeliveryOfferRedemptions.Abs()).
			Add(row.MarketingCredits.Abs()).
			Add(row.ThirdPartyContribution.Abs())

		if row.OffersOnItems.IsNegative() ||
			row.DeliveryOfferRedemptions.IsNegative() ||
			!row.MarketingCredits.IsZero() ||
			!row.ThirdPartyContribution.IsZero() {
			m.MarketingDrivenSales = m.MarketingDrivenSales.Add(row.SubtotalExclTax)
			m.OrdersFromMarketing++
		}
	}

	return m
}

// UnknownStatuses returns the statuses observed on Marketplace rows that
// are outside the configured terminal set, with occurrence counts, sorted
// by status. Lets operators spot export-format drift instead of having it
// silently absorbed.
func UnknownStatuses(rows []platform.UberEatsTransaction, cfg UberEatsConfig) map[string]int {
	out := make(map[string]int)
	for i := range rows {
		row := &rows[i]
		if !isMarketplaceChannel(row.Channel) {
			continue
		}
		if row.Status == "" || cfg.isCompleted(row.Status) {
			continue
		}
		out[row.Status]++
	}
	return out
}

// SortedStatusKeys returns the map's keys in stable order, for reporting.
func SortedStatusKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
