/*
Package platform defines the per-marketplace transaction records and the
storage contract for them.

PURPOSE:
  Each delivery marketplace exports a different transaction schema. This
  package models the three schemas faithfully (DoorDash, Uber Eats, Grubhub)
  instead of forcing them into a premature common shape. Normalization into
  comparable metrics happens later, in the metrics package.

KEY CONCEPTS IN THIS FILE (types.go):
  - Platform: identifies which marketplace a record came from
  - DoorDashTransaction / UberEatsTransaction / GrubhubTransaction:
    one struct per export schema, monetary fields as decimal.Decimal
  - Natural keys: the minimal field combination that deduplicates a row,
    used as the upsert conflict target

NATURAL KEYS:
  DoorDash:  (owner, order id, raw date string) - one row per order per day
  Uber Eats: (owner, transaction id) - one order may yield several
             transaction rows (refunds, adjustments), each with its own id
  Grubhub:   (owner, transaction id)

SEE ALSO:
  - dates.go: per-platform date normalization
  - store.go: persistence contract
  - metrics/: what counts as a sale / marketing spend per platform
*/
package platform

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PLATFORM IDENTIFIER
// =============================================================================

type Platform string

const (
	DoorDash Platform = "doordash"
	UberEats Platform = "ubereats"
	Grubhub  Platform = "grubhub"
)

// All returns every supported platform in stable order.
func All() []Platform {
	return []Platform{DoorDash, UberEats, Grubhub}
}

func (p Platform) Valid() bool {
	switch p {
	case DoorDash, UberEats, Grubhub:
		return true
	}
	return false
}

// Parse converts a string (e.g. a URL segment) into a Platform.
func Parse(s string) (Platform, error) {
	p := Platform(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, s)
	}
	return p, nil
}

// =============================================================================
// DOORDASH - financial export rows
// =============================================================================

// DoorDashTransaction is one row of a DoorDash payout detail export.
// Monetary discount fields (OffersOnItems, DeliveryOfferRedemptions) arrive
// natively negative.
type DoorDashTransaction struct {
	OwnerID    string
	LocationID string // canonical location id; never empty once ingested
	StoreName  string // platform display name, e.g. "Capriotti's Main St (NV067)"

	OrderID string
	Date    string // M/D/YY, no leading zeros
	Status  string // "Completed", "Cancelled", ...

	SalesExclTax             decimal.Decimal
	OffersOnItems            decimal.Decimal
	DeliveryOfferRedemptions decimal.Decimal
	OtherPayments            decimal.Decimal
	OtherPaymentsDescription string
	NetPayout                decimal.Decimal
}

// NaturalKey uniquely identifies the row within the owner's DoorDash set.
func (t DoorDashTransaction) NaturalKey() string {
	return t.OwnerID + "|" + t.OrderID + "|" + t.Date
}

// =============================================================================
// UBER EATS - order transaction rows
// =============================================================================

// UberEatsTransaction is one row of an Uber Eats payment detail export.
// A single order can produce several rows (the original charge, refunds,
// adjustments); TransactionID is unique per row, OrderID is not.
type UberEatsTransaction struct {
	OwnerID    string
	LocationID string
	StoreName  string

	TransactionID string
	OrderID       string
	Date          string // YYYY-MM-DD
	Channel       string // "Marketplace", "Webshop", or empty (treated as Marketplace)
	Status        string // terminal-status literals drift across export versions

	SubtotalExclTax          decimal.Decimal
	OffersOnItems            decimal.Decimal
	DeliveryOfferRedemptions decimal.Decimal
	MarketingCredits         decimal.Decimal
	ThirdPartyContribution   decimal.Decimal
	OtherPayments            decimal.Decimal
	OtherPaymentsDescription string
	NetPayout                decimal.Decimal
}

func (t UberEatsTransaction) NaturalKey() string {
	return t.OwnerID + "|" + t.TransactionID
}

// =============================================================================
// GRUBHUB - transaction report rows
// =============================================================================

// GrubhubTransaction is one row of a Grubhub transaction report. Unlike the
// other two platforms, the export may carry a separate numeric store code
// instead of embedding it in the store name.
type GrubhubTransaction struct {
	OwnerID    string
	LocationID string
	StoreName  string
	StoreCode  string // optional; exact-match fallback for location resolution

	TransactionID   string
	Date            string // YYYY-MM-DD
	TransactionType string // "Prepaid Order", "Order Adjustment", "Cancelation", ...

	Subtotal                decimal.Decimal
	SubtotalSalesTax        decimal.Decimal
	MerchantFundedPromotion decimal.Decimal // natively negative
	MerchantNetTotal        decimal.Decimal
}

func (t GrubhubTransaction) NaturalKey() string {
	return t.OwnerID + "|" + t.TransactionID
}
