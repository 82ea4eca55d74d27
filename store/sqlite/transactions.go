/*
transactions.go - Platform transaction upserts and queries

PURPOSE:
  The platform.Store half of the SQLite store. Upserts run inside one SQL
  transaction per batch for throughput; a failing row is tallied and
  skipped, never batch-fatal. Each row also stores a normalized date_iso
  column derived from the platform-native date string, so date-range
  queries compare a single calendar form across all three platforms.
*/
package sqlite

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/forkline/delivery-metrics/platform"
)

// parseStoredDecimal reads a TEXT money column written by this store.
// Empty (legacy rows) means zero.
func parseStoredDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// dateRangeClause appends date_iso conditions for the filter.
func dateRangeClause(f platform.TxFilter, where *[]string, args *[]any) {
	if !f.From.IsZero() {
		*where = append(*where, "date_iso >= ?")
		*args = append(*args, f.From.Format("2006-01-02"))
	}
	if !f.To.IsZero() {
		*where = append(*where, "date_iso <= ?")
		*args = append(*args, f.To.Format("2006-01-02"))
	}
}

func buildWhere(f platform.TxFilter) (string, []any) {
	var where []string
	var args []any
	if f.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, f.OwnerID)
	}
	dateRangeClause(f, &where, &args)
	if f.LocationIDs != nil {
		if len(f.LocationIDs) == 0 {
			where = append(where, "1 = 0")
		} else {
			clause := "location_id IN ("
			for i, id := range f.LocationIDs {
				if i > 0 {
					clause += ","
				}
				clause += "?"
				args = append(args, id)
			}
			clause += ")"
			where = append(where, clause)
		}
	}
	if len(where) == 0 {
		return "", args
	}
	out := " WHERE " + where[0]
	for _, w := range where[1:] {
		out += " AND " + w
	}
	return out, args
}

// =============================================================================
// DOORDASH
// =============================================================================

func (s *Store) UpsertDoorDash(ctx context.Context, rows []platform.DoorDashTransaction) (platform.UpsertResult, error) {
	var result platform.UpsertResult
	if len(rows) == 0 {
		return result, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO doordash_transactions (
			owner_id, location_id, store_name, order_id, date, date_iso,
			status, sales_excl_tax, offers_on_items, delivery_offer_redemptions,
			other_payments, other_payments_description, net_payout, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, order_id, date) DO UPDATE SET
			location_id = excluded.location_id,
			store_name = excluded.store_name,
			date_iso = excluded.date_iso,
			status = excluded.status,
			sales_excl_tax = excluded.sales_excl_tax,
			offers_on_items = excluded.offers_on_items,
			delivery_offer_redemptions = excluded.delivery_offer_redemptions,
			other_payments = excluded.other_payments,
			other_payments_description = excluded.other_payments_description,
			net_payout = excluded.net_payout,
			updated_at = excluded.updated_at`)
	if err != nil {
		return result, err
	}
	defer stmt.Close()

	ts := now()
	for i := range rows {
		row := &rows[i]
		day, err := row.EffectiveDate()
		if err != nil {
			result.Failed++
			continue
		}
		_, err = stmt.ExecContext(ctx,
			row.OwnerID, row.LocationID, row.StoreName, row.OrderID, row.Date,
			day.Format("2006-01-02"), row.Status,
			row.SalesExclTax.String(), row.OffersOnItems.String(),
			row.DeliveryOfferRedemptions.String(), row.OtherPayments.String(),
			row.OtherPaymentsDescription, row.NetPayout.String(), ts)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			continue
		}
		result.Processed++
	}

	if err := tx.Commit(); err != nil {
		return platform.UpsertResult{Failed: len(rows)}, err
	}
	return result, nil
}

func (s *Store) SelectDoorDash(ctx context.Context, f platform.TxFilter) ([]platform.DoorDashTransaction, error) {
	where, args := buildWhere(f)
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner_id, location_id, store_name, order_id, date, status,
			sales_excl_tax, offers_on_items, delivery_offer_redemptions,
			other_payments, other_payments_description, net_payout
		FROM doordash_transactions`+where+`
		ORDER BY date_iso, order_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []platform.DoorDashTransaction
	for rows.Next() {
		var t platform.DoorDashTransaction
		var sales, offers, delivery, other, payout string
		if err := rows.Scan(&t.OwnerID, &t.LocationID, &t.StoreName, &t.OrderID,
			&t.Date, &t.Status, &sales, &offers, &delivery, &other,
			&t.OtherPaymentsDescription, &payout); err != nil {
			return nil, err
		}
		t.SalesExclTax = parseStoredDecimal(sales)
		t.OffersOnItems = parseStoredDecimal(offers)
		t.DeliveryOfferRedemptions = parseStoredDecimal(delivery)
		t.OtherPayments = parseStoredDecimal(other)
		t.NetPayout = parseStoredDecimal(payout)
		out = append(out, t)
	}
	return out, rows.Err()
}

// =============================================================================
// UBER EATS
// =============================================================================

func (s *Store) UpsertUberEats(ctx context.Context, rows []platform.UberEatsTransaction) (platform.UpsertResult, error) {
	var result platform.UpsertResult
	if len(rows) == 0 {
		return result, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ubereats_transactions (
			owner_id, location_id, store_name, transaction_id, order_id,
			date, date_iso, channel, status, subtotal_excl_tax,
			offers_on_items, delivery_offer_redemptions, marketing_credits,
			third_party_contribution, other_payments,
			other_payments_description, net_payout, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, transaction_id) DO UPDATE SET
			location_id = excluded.location_id,
			store_name = excluded.store_name,
			order_id = excluded.order_id,
			date = excluded.date,
			date_iso = excluded.date_iso,
			channel = excluded.channel,
			status = excluded.status,
			subtotal_excl_tax = excluded.subtotal_excl_tax,
			offers_on_items = excluded.offers_on_items,
			delivery_offer_redemptions = excluded.delivery_offer_redemptions,
			marketing_credits = excluded.marketing_credits,
			third_party_contribution = excluded.third_party_contribution,
			other_payments = excluded.other_payments,
			other_payments_description = excluded.other_payments_description,
			net_payout = excluded.net_payout,
			updated_at = excluded.updated_at`)
	if err != nil {
		return result, err
	}
	defer stmt.Close()

	ts := now()
	for i := range rows {
		row := &rows[i]
		day, err := row.EffectiveDate()
		if err != nil {
			result.Failed++
			continue
		}
		_, err = stmt.ExecContext(ctx,
			row.OwnerID, row.LocationID, row.StoreName, row.TransactionID,
			row.OrderID, row.Date, day.Format("2006-01-02"), row.Channel,
			row.Status, row.SubtotalExclTax.String(), row.OffersOnItems.String(),
			row.DeliveryOfferRedemptions.String(), row.MarketingCredits.String(),
			row.ThirdPartyContribution.String(), row.OtherPayments.String(),
			row.OtherPaymentsDescription, row.NetPayout.String(), ts)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			continue
		}
		result.Processed++
	}

	if err := tx.Commit(); err != nil {
		return platform.UpsertResult{Failed: len(rows)}, err
	}
	return result, nil
}

func (s *Store) SelectUberEats(ctx context.Context, f platform.TxFilter) ([]platform.UberEatsTransaction, error) {
	where, args := buildWhere(f)
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner_id, location_id, store_name, transaction_id, order_id,
			date, channel, status, subtotal_excl_tax, offers_on_items,
			delivery_offer_redemptions, marketing_credits,
			third_party_contribution, other_payments,
			other_payments_description, net_payout
		FROM ubereats_transactions`+where+`
		ORDER BY date_iso, transaction_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []platform.UberEatsTransaction
	for rows.Next() {
		var t platform.UberEatsTransaction
		var subtotal, offers, delivery, credits, thirdParty, other, payout string
		if err := rows.Scan(&t.OwnerID, &t.LocationID, &t.StoreName,
			&t.TransactionID, &t.OrderID, &t.Date, &t.Channel, &t.Status,
			&subtotal, &offers, &delivery, &credits, &thirdParty, &other,
			&t.OtherPaymentsDescription, &payout); err != nil {
			return nil, err
		}
		t.SubtotalExclTax = parseStoredDecimal(subtotal)
		t.OffersOnItems = parseStoredDecimal(offers)
		t.DeliveryOfferRedemptions = parseStoredDecimal(delivery)
		t.MarketingCredits = parseStoredDecimal(credits)
		t.ThirdPartyContribution = parseStoredDecimal(thirdParty)
		t.OtherPayments = parseStoredDecimal(other)
		t.NetPayout = parseStoredDecimal(payout)
		out = append(out, t)
	}
	return out, rows.Err()
}

// =============================================================================
// GRUBHUB
// =============================================================================

func (s *Store) UpsertGrubhub(ctx context.Context, rows []platform.GrubhubTransaction) (platform.UpsertResult, error) {
	var result platform.UpsertResult
	if len(rows) == 0 {
		return result, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO grubhub_transactions (
			owner_id, location_id, store_name, store_code, transaction_id,
			date, date_iso, transaction_type, subtotal, subtotal_sales_tax,
			merchant_funded_promotion, merchant_net_total, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, transaction_id) DO UPDATE SET
			location_id = excluded.location_id,
			store_name = excluded.store_name,
			store_code = excluded.store_code,
			date = excluded.date,
			date_iso = excluded.date_iso,
			transaction_type = excluded.transaction_type,
			subtotal = excluded.subtotal,
			subtotal_sales_tax = excluded.subtotal_sales_tax,
			merchant_funded_promotion = excluded.merchant_funded_promotion,
			merchant_net_total = excluded.merchant_net_total,
			updated_at = excluded.updated_at`)
	if err != nil {
		return result, err
	}
	defer stmt.Close()

	ts := now()
	for i := range rows {
		row := &rows[i]
		day, err := row.EffectiveDate()
		if err != nil {
			result.Failed++
			continue
		}
		_, err = stmt.ExecContext(ctx,
			row.OwnerID, row.LocationID, row.StoreName, row.StoreCode,
			row.TransactionID, row.Date, day.Format("2006-01-02"),
			row.TransactionType, row.Subtotal.String(),
			row.SubtotalSalesTax.String(), row.MerchantFundedPromotion.String(),
			row.MerchantNetTotal.String(), ts)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			continue
		}
		result.Processed++
	}

	if err := tx.Commit(); err != nil {
		return platform.UpsertResult{Failed: len(rows)}, err
	}
	return result, nil
}

func (s *Store) SelectGrubhub(ctx context.Context, f platform.TxFilter) ([]platform.GrubhubTransaction, error) {
	where, args := buildWhere(f)
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner_id, location_id, store_name, store_code, transaction_id,
			date, transaction_type, subtotal, subtotal_sales_tax,
			merchant_funded_promotion, merchant_net_total
		FROM grubhub_transactions`+where+`
		ORDER BY date_iso, transaction_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []platform.GrubhubTransaction
	for rows.Next() {
		var t platform.GrubhubTransaction
		var subtotal, tax, promo, netTotal string
		if err := rows.Scan(&t.OwnerID, &t.LocationID, &t.StoreName,
			&t.StoreCode, &t.TransactionID, &t.Date, &t.TransactionType,
			&subtotal, &tax, &promo, &netTotal); err != nil {
			return nil, err
		}
		t.Subtotal = parseStoredDecimal(subtotal)
		t.SubtotalSalesTax = parseStoredDecimal(tax)
		t.MerchantFundedPromotion = parseStoredDecimal(promo)
		t.MerchantNetTotal = parseStoredDecimal(netTotal)
		out = append(out, t)
	}
	return out, rows.Err()
}

// =============================================================================
// UNMAPPED REVIEW
// =============================================================================

// UnmappedNames lists the distinct store names routed to the owner's
// unmapped bucket, with row counts, across all three platforms.
func (s *Store) UnmappedNames(ctx context.Context, ownerID, bucketID string) ([]platform.NameCount, error) {
	var out []platform.NameCount
	for _, p := range platform.All() {
		rows, err := s.db.QueryContext(ctx, `
			SELECT store_name, COUNT(*) FROM `+tableFor(p)+`
			WHERE owner_id = ? AND location_id = ?
			GROUP BY store_name
			ORDER BY COUNT(*) DESC, store_name`, ownerID, bucketID)
		if err != nil {
			return nil, err
		}
		if err := func() error {
			defer rows.Close()
			for rows.Next() {
				nc := platform.NameCount{Platform: p}
				if err := rows.Scan(&nc.StoreName, &nc.Rows); err != nil {
					return err
				}
				out = append(out, nc)
			}
			return rows.Err()
		}(); err != nil {
			return nil, err
		}
	}
	return out, nil
}
