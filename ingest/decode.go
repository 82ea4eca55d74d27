/*
decode.go - Canonical rows to typed platform transactions

PURPOSE:
  Decodes a canonical Row into the platform's transaction struct.
  Monetary cells tolerate the formatting seen in real exports: currency
  symbols, thousands separators, and accounting-style parentheses for
  negatives. Empty or missing monetary cells decode to zero before any
  arithmetic happens.
*/
package ingest

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/forkline/delivery-metrics/platform"
)

// ParseMoney converts an export money cell to a decimal. Empty means
// zero; "(12.50)" and "-$12.50" both mean -12.50.
func ParseMoney(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad money value %q: %w", s, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

func (r Row) money(field string) (decimal.Decimal, error) {
	return ParseMoney(r[field])
}

func (r Row) require(field string) (string, error) {
	v := strings.TrimSpace(r[field])
	if v == "" {
		return "", fmt.Errorf("empty required field %s", field)
	}
	return v, nil
}

// =============================================================================
// PER-PLATFORM DECODERS
// =============================================================================

func decodeDoorDash(ownerID string, row Row) (platform.DoorDashTransaction, error) {
	tx := platform.DoorDashTransaction{OwnerID: ownerID}
	var err error

	if tx.StoreName, err = row.require(fieldStoreName); err != nil {
		return tx, err
	}
	if tx.OrderID, err = row.require(fieldOrderID); err != nil {
		return tx, err
	}
	if tx.Date, err = row.require(fieldDate); err != nil {
		return tx, err
	}
	if _, err = platform.ParseDoorDashDate(tx.Date); err != nil {
		return tx, err
	}
	tx.Status = row[fieldStatus]
	tx.OtherPaymentsDescription = row[fieldOtherDesc]

	if tx.SalesExclTax, err = row.money(fieldSales); err != nil {
		return tx, err
	}
	if tx.OffersOnItems, err = row.money(fieldOffers); err != nil {
		return tx, err
	}
	if tx.DeliveryOfferRedemptions, err = row.money(fieldDeliveryOff); err != nil {
		return tx, err
	}
	if tx.OtherPayments, err = row.money(fieldOtherPay); err != nil {
		return tx, err
	}
	if tx.NetPayout, err = row.money(fieldNetPayout); err != nil {
		return tx, err
	}
	return tx, nil
}

func decodeUberEats(ownerID string, row Row) (platform.UberEatsTransaction, error) {
	tx := platform.UberEatsTransaction{OwnerID: ownerID}
	var err error

	if tx.StoreName, err = row.require(fieldStoreName); err != nil {
		return tx, err
	}
	if tx.TransactionID, err = row.require(fieldTxID); err != nil {
		return tx, err
	}
	if tx.Date, err = row.require(fieldDate); err != nil {
		return tx, err
	}
	if _, err = platform.ParseISODate(tx.Date); err != nil {
		return tx, err
	}
	tx.OrderID = row[fieldOrderID]
	tx.Channel = row[fieldChannel]
	tx.Status = row[fieldStatus]
	tx.OtherPaymentsDescription = row[fieldOtherDesc]

	if tx.SubtotalExclTax, err = row.money(fieldSubtotal); err != nil {
		return tx, err
	}
	if tx.OffersOnItems, err = row.money(fieldOffers); err != nil {
		return tx, err
	}
	if tx.DeliveryOfferRedemptions, err = row.money(fieldDeliveryOff); err != nil {
		return tx, err
	}
	if tx.MarketingCredits, err = row.money(fieldMktCredits); err != nil {
		return tx, err
	}
	if tx.ThirdPartyContribution, err = row.money(fieldThirdParty); err != nil {
		return tx, err
	}
	if tx.OtherPayments, err = row.money(fieldOtherPay); err != nil {
		return tx, err
	}
	if tx.NetPayout, err = row.money(fieldNetPayout); err != nil {
		return tx, err
	}
	return tx, nil
}

func decodeGrubhub(ownerID string, row Row) (platform.GrubhubTransaction, error) {
	tx := platform.GrubhubTransaction{OwnerID: ownerID}
	var err error

	if tx.StoreName, err = row.require(fieldStoreName); err != nil {
		return tx, err
	}
	if tx.TransactionID, err = row.require(fieldTxID); err != nil {
		return tx, err
	}
	if tx.Date, err = row.require(fieldDate); err != nil {
		return tx, err
	}
	if _, err = platform.ParseISODate(tx.Date); err != nil {
		return tx, err
	}
	tx.StoreCode = row[fieldStoreCode]
	tx.TransactionType = row[fieldTxType]

	if tx.Subtotal, err = row.money(fieldSubtotal); err != nil {
		return tx, err
	}
	if tx.SubtotalSalesTax, err = row.money(fieldSubtotalTax); err != nil {
		return tx, err
	}
	if tx.MerchantFundedPromotion, err = row.money(fieldPromotion); err != nil {
		return tx, err
	}
	if tx.MerchantNetTotal, err = row.money(fieldNetTotal); err != nil {
		return tx, err
	}
	return tx, nil
}
