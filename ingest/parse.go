/*
Package ingest orchestrates the batch ingestion pipeline:
parse -> resolve locations -> normalize -> idempotent upsert.

PURPOSE (parse.go):
  Platform exports drift: the same logical column has shipped under
  several header spellings across export-format versions. Headers are
  resolved ONCE here, against an explicit ordered synonym list per
  logical field, into a canonical Row shape. Nothing downstream ever
  sees a raw header string.

FAILURE SEMANTICS:
  A malformed row is surfaced per-row (RowError) and skipped; it never
  aborts the rest of the file. Only an unreadable file/header is fatal.

SEE ALSO:
  - decode.go: Row -> typed platform transaction
  - pipeline.go: the orchestration
*/
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/forkline/delivery-metrics/platform"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNoHeader is returned for an empty file or one whose header row
	// matches none of the expected columns.
	ErrNoHeader = errors.New("no usable header row")

	// ErrMissingColumn is returned when a required logical field has no
	// matching header under any known synonym.
	ErrMissingColumn = errors.New("required column missing")
)

// RowError is one row-level parse/decode failure, tallied but not fatal.
type RowError struct {
	Line int // 1-based data row number (header excluded)
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Line, e.Err)
}

// =============================================================================
// CANONICAL ROW
// =============================================================================

// Row is one parsed export row keyed by logical field name.
type Row map[string]string

// Logical field keys shared across platforms.
const (
	fieldStoreName   = "store_name"
	fieldStoreCode   = "store_code"
	fieldOrderID     = "order_id"
	fieldTxID        = "transaction_id"
	fieldDate        = "date"
	fieldStatus      = "status"
	fieldChannel     = "channel"
	fieldTxType      = "transaction_type"
	fieldSales       = "sales_excl_tax"
	fieldSubtotal    = "subtotal"
	fieldSubtotalTax = "subtotal_sales_tax"
	fieldOffers      = "offers_on_items"
	fieldDeliveryOff = "delivery_offer_redemptions"
	fieldMktCredits  = "marketing_credits"
	fieldThirdParty  = "third_party_contribution"
	fieldOtherPay    = "other_payments"
	fieldOtherDesc   = "other_payments_description"
	fieldPromotion   = "merchant_funded_promotion"
	fieldNetTotal    = "merchant_net_total"
	fieldNetPayout   = "net_payout"
)

// columnSpec binds a logical field to its ordered header synonyms.
// required fields fail the whole file when absent; optional fields
// decode to "".
type columnSpec struct {
	field    string
	synonyms []string
	required bool
}

// Header synonym lists, most recent export format first.
var doorDashColumns = []columnSpec{
	{fieldStoreName, []string{"Store Name", "Store", "Merchant Store Name"}, true},
	{fieldOrderID, []string{"Order ID", "Order Number", "DoorDash Order ID"}, true},
	{fieldDate, []string{"Date", "Order Date", "Payout Date"}, true},
	{fieldStatus, []string{"Status", "Order Status", "Transaction Status"}, false},
	{fieldSales, []string{"Sales (Excl. Tax)", "Sales Excl Tax", "Subtotal"}, false},
	{fieldOffers, []string{"Offers on Items", "Item Promotions"}, false},
	{fieldDeliveryOff, []string{"Delivery Offer Redemptions", "Delivery Promotions"}, false},
	{fieldOtherPay, []string{"Other Payments", "Other Payment Amount"}, false},
	{fieldOtherDesc, []string{"Other Payments Description", "Other Payment Description"}, false},
	{fieldNetPayout, []string{"Net Payout", "Net Total", "Payout"}, false},
}

var uberEatsColumns = []columnSpec{
	{fieldStoreName, []string{"Store Name", "Store", "Restaurant Name"}, true},
	{fieldTxID, []string{"Transaction ID", "Payment ID", "UUID"}, true},
	{fieldOrderID, []string{"Order ID", "Workflow ID"}, false},
	{fieldDate, []string{"Date", "Order Date", "Payment Date"}, true},
	{fieldChannel, []string{"Sales Channel", "Channel", "Order Channel"}, false},
	{fieldStatus, []string{"Order Status", "Status", "Workflow Status"}, false},
	{fieldSubtotal, []string{"Food Sales (excl tax)", "Sales (excl. tax)", "Subtotal"}, false},
	{fieldOffers, []string{"Offers on Items", "Promotions on Food"}, false},
	{fieldDeliveryOff, []string{"Delivery Offer Redemptions", "Delivery Promotions"}, false},
	{fieldMktCredits, []string{"Marketing Credits", "Marketing Adjustment"}, false},
	{fieldThirdParty, []string{"Third Party Contribution", "Other Party Contribution"}, false},
	{fieldOtherPay, []string{"Other Payments", "Other Payment Amount"}, false},
	{fieldOtherDesc, []string{"Other Payments Description", "Other Payment Description"}, false},
	{fieldNetPayout, []string{"Total Payout", "Net Payout", "Payout"}, false},
}

var grubhubColumns = []columnSpec{
	{fieldStoreName, []string{"Store Name", "Restaurant", "Location"}, true},
	{fieldStoreCode, []string{"Store Number", "Store ID", "Location ID"}, false},
	{fieldTxID, []string{"Transaction ID", "Transaction #"}, true},
	{fieldDate, []string{"Date", "Transaction Date", "Report Date"}, true},
	{fieldTxType, []string{"Transaction Type", "Type"}, false},
	{fieldSubtotal, []string{"Subtotal", "Food Subtotal"}, false},
	{fieldSubtotalTax, []string{"Subtotal Sales Tax", "Sales Tax", "Tax"}, false},
	{fieldPromotion, []string{"Merchant Funded Promotions", "Merchant Funded Promotion", "Promotions"}, false},
	{fieldNetTotal, []string{"Merchant Net Total", "Net Total", "Total"}, false},
}

func columnsFor(p platform.Platform) ([]columnSpec, error) {
	switch p {
	case platform.DoorDash:
		return doorDashColumns, nil
	case platform.UberEats:
		return uberEatsColumns, nil
	case platform.Grubhub:
		return grubhubColumns, nil
	}
	return nil, platform.ErrUnknownPlatform
}

// =============================================================================
// CSV PARSING
// =============================================================================

// ParseCSV reads a platform export and yields canonical rows. Row-level
// failures land in errs; only a missing/unusable header is fatal.
func ParseCSV(r io.Reader, p platform.Platform) (rows []Row, errs []RowError, err error) {
	specs, err := columnsFor(p)
	if err != nil {
		return nil, nil, err
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNoHeader, err)
	}

	index, err := resolveHeader(header, specs)
	if err != nil {
		return nil, nil, err
	}

	line := 0
	for {
		record, readErr := cr.Read()
		if readErr == io.EOF {
			break
		}
		line++
		if readErr != nil {
			errs = append(errs, RowError{Line: line, Err: readErr})
			continue
		}
		if blank(record) {
			continue
		}
		row := make(Row, len(index))
		for field, col := range index {
			if col < len(record) {
				row[field] = strings.TrimSpace(record[col])
			}
		}
		rows = append(rows, row)
	}
	return rows, errs, nil
}

// resolveHeader maps each logical field to a column index, trying the
// synonyms in order. Header comparison is case-insensitive and ignores a
// UTF-8 BOM on the first cell.
func resolveHeader(header []string, specs []columnSpec) (map[string]int, error) {
	normalized := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}

	index := make(map[string]int)
	matchedAny := false
	for _, spec := range specs {
		col := -1
		for _, syn := range spec.synonyms {
			want := strings.ToLower(syn)
			for i, h := range normalized {
				if h == want {
					col = i
					break
				}
			}
			if col >= 0 {
				break
			}
		}
		if col < 0 {
			if spec.required {
				return nil, fmt.Errorf("%w: %s", ErrMissingColumn, spec.field)
			}
			continue
		}
		index[spec.field] = col
		matchedAny = true
	}
	if !matchedAny {
		return nil, ErrNoHeader
	}
	return index, nil
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
