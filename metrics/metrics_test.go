package metrics_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/forkline/delivery-metrics/metrics"
	"github.com/forkline/delivery-metrics/platform"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func eq(t *testing.T, name string, got, want decimal.Decimal) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("%s = %s, want %s", name, got, want)
	}
}

// =============================================================================
// DOORDASH
// =============================================================================

func TestCalculateDoorDash_CompletedOrderWithOffer(t *testing.T) {
	// GIVEN: one completed order, $50 sales, $5 item offer, $45 payout
	// WHEN: calculating metrics
	// THEN: the order is marketing-driven and every derived ratio is exact
	//       (AOV 50, investment 5, ROAS 10, payout 90%)

	rows := []platform.DoorDashTransaction{{
		OwnerID:       "acct_1",
		OrderID:       "dd-1",
		Status:        "Completed",
		SalesExclTax:  d("50"),
		OffersOnItems: d("-5"),
		NetPayout:     d("45"),
	}}

	m := metrics.CalculateDoorDash(rows)

	if m.TotalOrders != 1 {
		t.Fatalf("TotalOrders = %d, want 1", m.TotalOrders)
	}
	eq(t, "TotalSales", m.TotalSales, d("50"))
	eq(t, "OfferDiscountValue", m.OfferDiscountValue, d("5"))
	eq(t, "MarketingDrivenSales", m.MarketingDrivenSales, d("50"))
	eq(t, "NetPayout", m.NetPayout, d("45"))
	if m.OrdersFromMarketing != 1 {
		t.Errorf("OrdersFromMarketing = %d, want 1", m.OrdersFromMarketing)
	}

	dv := m.Derived()
	eq(t, "AOV", dv.AOV, d("50"))
	eq(t, "TotalMarketingInvestment", dv.TotalMarketingInvestment, d("5"))
	eq(t, "MarketingROAS", dv.MarketingROAS, d("10"))
	eq(t, "NetPayoutPercent", dv.NetPayoutPercent, d("90"))
}

func TestCalculateDoorDash_CancelledRowOnlyAffectsPayout(t *testing.T) {
	// GIVEN: a cancelled order carrying a fee reversal
	// WHEN: calculating metrics
	// THEN: it contributes to payout but never to orders or sales

	rows := []platform.DoorDashTransaction{{
		Status:       "Cancelled",
		SalesExclTax: d("30"),
		NetPayout:    d("-3.50"),
	}}

	m := metrics.CalculateDoorDash(rows)

	if m.TotalOrders != 0 {
		t.Errorf("TotalOrders = %d, want 0", m.TotalOrders)
	}
	eq(t, "TotalSales", m.TotalSales, decimal.Zero)
	eq(t, "NetPayout", m.NetPayout, d("-3.50"))
}

func TestCalculateDoorDash_AdSpendRequiresDescription(t *testing.T) {
	// GIVEN: two completed rows with other-payments, one described and one not
	// WHEN: calculating metrics
	// THEN: only the described row counts as ad spend

	rows := []platform.DoorDashTransaction{
		{
			Status:                   "Completed",
			SalesExclTax:             d("20"),
			OtherPayments:            d("-4"),
			OtherPaymentsDescription: "Sponsored Listing",
		},
		{
			Status:        "Completed",
			SalesExclTax:  d("20"),
			OtherPayments: d("-9"),
		},
	}

	m := metrics.CalculateDoorDash(rows)
	eq(t, "AdSpend", m.AdSpend, d("4"))
}

// =============================================================================
// UBER EATS
// =============================================================================

func TestCalculateUberEats_ChannelAndStatusGates(t *testing.T) {
	// GIVEN: a Marketplace "Delivered" row, a Marketplace "Refunded" row,
	//        and a Webshop row
	// WHEN: calculating with the default status set
	// THEN: only the Delivered row counts toward sales; the Refunded row
	//       still feeds payout; the Webshop row is invisible

	rows := []platform.UberEatsTransaction{
		{Channel: "Marketplace", Status: "Delivered", SubtotalExclTax: d("40"), NetPayout: d("34")},
		{Channel: "Marketplace", Status: "Refunded", SubtotalExclTax: d("25"), NetPayout: d("-25")},
		{Channel: "Webshop", Status: "Delivered", SubtotalExclTax: d("99"), NetPayout: d("99")},
	}

	m := metrics.CalculateUberEats(rows, metrics.DefaultUberEatsConfig())

	if m.TotalOrders != 1 {
		t.Fatalf("TotalOrders = %d, want 1", m.TotalOrders)
	}
	eq(t, "TotalSales", m.TotalSales, d("40"))
	eq(t, "NetPayout", m.NetPayout, d("9"))
}

func TestCalculateUberEats_EmptyChannelCountsAsMarketplace(t *testing.T) {
	// GIVEN: an older export row with no channel column
	// WHEN: calculating metrics
	// THEN: the row is treated as Marketplace

	rows := []platform.UberEatsTransaction{
		{Status: "Completed", SubtotalExclTax: d("15"), NetPayout: d("12")},
	}

	m := metrics.CalculateUberEats(rows, metrics.DefaultUberEatsConfig())
	if m.TotalOrders != 1 {
		t.Errorf("TotalOrders = %d, want 1", m.TotalOrders)
	}
}

func TestCalculateUberEats_MarketingSignals(t *testing.T) {
	// GIVEN: rows carrying each marketing field in its discount direction
	// WHEN: calculating metrics
	// THEN: each row is marketing-driven and the discount buckets sum as
	//       absolute values

	rows := []platform.UberEatsTransaction{
		{Status: "Delivered", SubtotalExclTax: d("10"), OffersOnItems: d("-2")},
		{Status: "Delivered", SubtotalExclTax: d("10"), MarketingCredits: d("3")},
		{Status: "Delivered", SubtotalExclTax: d("10"), ThirdPartyContribution: d("-1.50")},
	}

	m := metrics.CalculateUberEats(rows, metrics.DefaultUberEatsConfig())

	if m.OrdersFromMarketing != 3 {
		t.Errorf("OrdersFromMarketing = %d, want 3", m.OrdersFromMarketing)
	}
	eq(t, "OfferDiscountValue", m.OfferDiscountValue, d("6.50"))
	eq(t, "MarketingDrivenSales", m.MarketingDrivenSales, d("30"))
}

func TestUnknownStatuses_SurfacesDrift(t *testing.T) {
	// GIVEN: rows with statuses outside the configured terminal set
	// WHEN: collecting unknown statuses
	// THEN: they are reported with counts; configured and empty statuses
	//       are not

	rows := []platform.UberEatsTransaction{
		{Status: "Delivered"},
		{Status: "Handed Off"},
		{Status: "Handed Off"},
		{Status: ""},
		{Channel: "Webshop", Status: "Weird"},
	}

	unknown := metrics.UnknownStatuses(rows, metrics.DefaultUberEatsConfig())

	if len(unknown) != 1 || unknown["Handed Off"] != 2 {
		t.Errorf("UnknownStatuses = %v, want map[Handed Off:2]", unknown)
	}
	keys := metrics.SortedStatusKeys(unknown)
	if len(keys) != 1 || keys[0] != "Handed Off" {
		t.Errorf("SortedStatusKeys = %v", keys)
	}
}

// =============================================================================
// GRUBHUB
// =============================================================================

func TestCalculateGrubhub_TaxInclusiveSales(t *testing.T) {
	// GIVEN: a prepaid order with $30 subtotal and $2.40 sales tax
	// WHEN: calculating metrics
	// THEN: the sale is tax-inclusive ($32.40)

	rows := []platform.GrubhubTransaction{{
		TransactionType:  "Prepaid Order",
		Subtotal:         d("30"),
		SubtotalSalesTax: d("2.40"),
		MerchantNetTotal: d("26"),
	}}

	m := metrics.CalculateGrubhub(rows)

	if m.TotalOrders != 1 {
		t.Fatalf("TotalOrders = %d, want 1", m.TotalOrders)
	}
	eq(t, "TotalSales", m.TotalSales, d("32.40"))
	eq(t, "NetPayout", m.NetPayout, d("26"))
	eq(t, "AdSpend", m.AdSpend, decimal.Zero)
}

func TestCalculateGrubhub_AdjustmentOnlyAffectsPayout(t *testing.T) {
	// GIVEN: an "Order Adjustment" row with a -$12 net total
	// WHEN: calculating metrics
	// THEN: orders and sales stay zero while payout absorbs the adjustment

	rows := []platform.GrubhubTransaction{{
		TransactionType:  "Order Adjustment",
		Subtotal:         d("12"),
		MerchantNetTotal: d("-12"),
	}}

	m := metrics.CalculateGrubhub(rows)

	if m.TotalOrders != 0 {
		t.Errorf("TotalOrders = %d, want 0", m.TotalOrders)
	}
	eq(t, "TotalSales", m.TotalSales, decimal.Zero)
	eq(t, "NetPayout", m.NetPayout, d("-12"))
}

func TestCalculateGrubhub_PromotionMarksMarketingDriven(t *testing.T) {
	// GIVEN: a prepaid order with a merchant-funded promotion
	// WHEN: calculating metrics
	// THEN: the full tax-inclusive sale is marketing-driven and the
	//       promotion is counted as its absolute value

	rows := []platform.GrubhubTransaction{{
		TransactionType:         "Prepaid Order",
		Subtotal:                d("20"),
		SubtotalSalesTax:        d("1.60"),
		MerchantFundedPromotion: d("-4"),
	}}

	m := metrics.CalculateGrubhub(rows)

	eq(t, "OfferDiscountValue", m.OfferDiscountValue, d("4"))
	eq(t, "MarketingDrivenSales", m.MarketingDrivenSales, d("21.60"))
	if m.OrdersFromMarketing != 1 {
		t.Errorf("OrdersFromMarketing = %d, want 1", m.OrdersFromMarketing)
	}
}

// =============================================================================
// DERIVED RATIO GUARDS
// =============================================================================

func TestDerived_ZeroDenominatorsYieldZero(t *testing.T) {
	// GIVEN: an empty metric tuple
	// WHEN: deriving ratios
	// THEN: every ratio is exactly zero, never NaN or infinity

	dv := metrics.Zero().Derived()

	eq(t, "AOV", dv.AOV, decimal.Zero)
	eq(t, "TotalMarketingInvestment", dv.TotalMarketingInvestment, decimal.Zero)
	eq(t, "MarketingROAS", dv.MarketingROAS, decimal.Zero)
	eq(t, "NetPayoutPercent", dv.NetPayoutPercent, decimal.Zero)
}

func TestDerived_PayoutWithoutSalesStaysFinite(t *testing.T) {
	// GIVEN: a period holding only a negative adjustment (payout, no sales)
	// WHEN: deriving ratios
	// THEN: sales-denominated ratios are zero rather than dividing by zero

	m := metrics.Zero()
	m.NetPayout = d("-12")

	dv := m.Derived()
	eq(t, "NetPayoutPercent", dv.NetPayoutPercent, decimal.Zero)
	eq(t, "AOV", dv.AOV, decimal.Zero)
}

func TestAdd_SumsRawBuckets(t *testing.T) {
	// GIVEN: two platform tuples
	// WHEN: adding them
	// THEN: every bucket is summed field-wise

	a := metrics.NormalizedMetrics{
		TotalOrders:          2,
		TotalSales:           d("100"),
		MarketingDrivenSales: d("100"),
		AdSpend:              d("10"),
		NetPayout:            d("80"),
		OrdersFromMarketing:  2,
	}
	b := metrics.NormalizedMetrics{
		TotalOrders:          1,
		TotalSales:           d("100"),
		MarketingDrivenSales: d("100"),
		AdSpend:              d("100"),
		NetPayout:            d("70"),
		OrdersFromMarketing:  1,
	}

	sum := a.Add(b)

	if sum.TotalOrders != 3 || sum.OrdersFromMarketing != 3 {
		t.Errorf("order counts = %d/%d, want 3/3", sum.TotalOrders, sum.OrdersFromMarketing)
	}
	eq(t, "TotalSales", sum.TotalSales, d("200"))
	eq(t, "AdSpend", sum.AdSpend, d("110"))
	eq(t, "NetPayout", sum.NetPayout, d("150"))
}
