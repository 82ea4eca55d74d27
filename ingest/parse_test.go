package ingest_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/forkline/delivery-metrics/ingest"
	"github.com/forkline/delivery-metrics/platform"
)

// =============================================================================
// MONEY PARSING
// =============================================================================

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "0"},
		{"  ", "0"},
		{"12.50", "12.5"},
		{"$1,234.56", "1234.56"},
		{"-$12.50", "-12.5"},
		{"(12.50)", "-12.5"},
		{"($1,000)", "-1000"},
	}
	for _, c := range cases {
		got, err := ingest.ParseMoney(c.in)
		if err != nil {
			t.Fatalf("ParseMoney(%q): %v", c.in, err)
		}
		want, _ := decimal.NewFromString(c.want)
		if !got.Equal(want) {
			t.Errorf("ParseMoney(%q) = %s, want %s", c.in, got, want)
		}
	}
}

func TestParseMoney_RejectsGarbage(t *testing.T) {
	if _, err := ingest.ParseMoney("N/A"); err == nil {
		t.Fatal("expected error for non-numeric cell")
	}
}

// =============================================================================
// CSV PARSING
// =============================================================================

func TestParseCSV_HeaderSynonyms(t *testing.T) {
	// GIVEN: an older DoorDash export spelling ("Store", "Order Number",
	//        "Payout Date") with a BOM on the first cell
	// WHEN: parsing
	// THEN: the synonyms map onto the same logical fields

	csv := "\ufeffStore,Order Number,Payout Date,Order Status,Subtotal\n" +
		"Capriotti's - Reno,dd-1,3/5/24,Completed,$25.00\n"

	rows, errs, err := ingest.ParseCSV(strings.NewReader(csv), platform.DoorDash)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("row errors: %v", errs)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0]["store_name"] != "Capriotti's - Reno" {
		t.Errorf("store_name = %q", rows[0]["store_name"])
	}
	if rows[0]["sales_excl_tax"] != "$25.00" {
		t.Errorf("sales_excl_tax = %q", rows[0]["sales_excl_tax"])
	}
}

func TestParseCSV_MissingRequiredColumnIsFatal(t *testing.T) {
	// GIVEN: a DoorDash export with no order id column
	// WHEN: parsing
	// THEN: the whole file is rejected with ErrMissingColumn

	csv := "Store Name,Date,Status\nCapriotti's,3/5/24,Completed\n"

	_, _, err := ingest.ParseCSV(strings.NewReader(csv), platform.DoorDash)
	if !errors.Is(err, ingest.ErrMissingColumn) {
		t.Fatalf("err = %v, want ErrMissingColumn", err)
	}
}

func TestParseCSV_UnrecognizableHeaderIsFatal(t *testing.T) {
	// GIVEN: a file whose header matches nothing the platform ships
	// WHEN: parsing
	// THEN: ErrNoHeader

	csv := "a,b,c\n1,2,3\n"

	_, _, err := ingest.ParseCSV(strings.NewReader(csv), platform.Grubhub)
	if !errors.Is(err, ingest.ErrNoHeader) {
		t.Fatalf("err = %v, want ErrNoHeader", err)
	}
}

func TestParseCSV_SkipsBlankLines(t *testing.T) {
	// GIVEN: an export with trailing blank lines (common in real files)
	// WHEN: parsing
	// THEN: blanks are dropped silently, not reported as row errors

	csv := "Store Name,Transaction ID,Date\n" +
		"Capriotti's,gh-1,2024-03-05\n" +
		",,\n" +
		"\n"

	rows, errs, err := ingest.ParseCSV(strings.NewReader(csv), platform.Grubhub)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("row errors: %v", errs)
	}
	if len(rows) != 1 {
		t.Errorf("rows = %d, want 1", len(rows))
	}
}

func TestParseCSV_RaggedRowsTolerated(t *testing.T) {
	// GIVEN: a row shorter than the header (export truncation)
	// WHEN: parsing
	// THEN: present cells decode and the missing ones read as empty

	csv := "Store Name,Transaction ID,Date,Transaction Type\n" +
		"Capriotti's,gh-1,2024-03-05\n"

	rows, _, err := ingest.ParseCSV(strings.NewReader(csv), platform.Grubhub)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0]["transaction_type"] != "" {
		t.Errorf("transaction_type = %q, want empty", rows[0]["transaction_type"])
	}
}
