/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements both persistence contracts (location.Registry,
  platform.Store) using SQLite. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  locations:              canonical location registry
  doordash_transactions:  PK (owner_id, order_id, date)
  ubereats_transactions:  PK (owner_id, transaction_id)
  grubhub_transactions:   PK (owner_id, transaction_id)

UPSERT SEMANTICS:
  Transaction writes are INSERT ... ON CONFLICT DO UPDATE on the
  platform's natural key, replacing every mutable field. Re-ingesting a
  corrected export never duplicates rows. A constraint violation NOT
  explained by the natural key (a dangling location reference under
  foreign keys) fails that row only.

INVARIANTS ENFORCED IN SCHEMA:
  - idx_locations_unmapped_bucket: at most one unmapped bucket per owner
  - foreign keys: a transaction's location_id must reference a real
    location; merges repoint before deleting sources

MONEY:
  Monetary values are stored as TEXT and round-tripped through
  decimal.Decimal. REAL columns would reintroduce the floating-point
  drift the decimal type exists to prevent.

WAL MODE:
  Opened with WAL for better concurrency: readers don't block, single
  writer, better crash recovery.

SEE ALSO:
  - location/store.go, platform/store.go: interface definitions
  - store/memory/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/forkline/delivery-metrics/location"
	"github.com/forkline/delivery-metrics/platform"
)

// Store implements location.Registry and platform.Store using SQLite.
type Store struct {
	db *sql.DB
}

var (
	_ location.Registry = (*Store)(nil)
	_ platform.Store    = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS locations (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		store_code TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		zip TEXT NOT NULL DEFAULT '',
		doordash_id TEXT NOT NULL DEFAULT '',
		ubereats_id TEXT NOT NULL DEFAULT '',
		grubhub_id TEXT NOT NULL DEFAULT '',
		doordash_name TEXT NOT NULL DEFAULT '',
		ubereats_name TEXT NOT NULL DEFAULT '',
		grubhub_name TEXT NOT NULL DEFAULT '',
		verified INTEGER NOT NULL DEFAULT 0,
		tag TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_locations_owner ON locations(owner_id);
	CREATE INDEX IF NOT EXISTS idx_locations_owner_tag ON locations(owner_id, tag);

	-- INVARIANT: exactly one unmapped bucket per owner
	CREATE UNIQUE INDEX IF NOT EXISTS idx_locations_unmapped_bucket
		ON locations(owner_id) WHERE tag = 'unmapped_bucket';

	CREATE TABLE IF NOT EXISTS doordash_transactions (
		owner_id TEXT NOT NULL,
		location_id TEXT NOT NULL REFERENCES locations(id),
		store_name TEXT NOT NULL,
		order_id TEXT NOT NULL,
		date TEXT NOT NULL,
		date_iso TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT '',
		sales_excl_tax TEXT NOT NULL,
		offers_on_items TEXT NOT NULL,
		delivery_offer_redemptions TEXT NOT NULL,
		other_payments TEXT NOT NULL,
		other_payments_description TEXT NOT NULL DEFAULT '',
		net_payout TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (owner_id, order_id, date)
	);

	CREATE INDEX IF NOT EXISTS idx_dd_owner_date ON doordash_transactions(owner_id, date_iso);
	CREATE INDEX IF NOT EXISTS idx_dd_location ON doordash_transactions(location_id);

	CREATE TABLE IF NOT EXISTS ubereats_transactions (
		owner_id TEXT NOT NULL,
		location_id TEXT NOT NULL REFERENCES locations(id),
		store_name TEXT NOT NULL,
		transaction_id TEXT NOT NULL,
		order_id TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		date_iso TEXT NOT NULL,
		channel TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		subtotal_excl_tax TEXT NOT NULL,
		offers_on_items TEXT NOT NULL,
		delivery_offer_redemptions TEXT NOT NULL,
		marketing_credits TEXT NOT NULL,
		third_party_contribution TEXT NOT NULL,
		other_payments TEXT NOT NULL,
		other_payments_description TEXT NOT NULL DEFAULT '',
		net_payout TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (owner_id, transaction_id)
	);

	CREATE INDEX IF NOT EXISTS idx_ue_owner_date ON ubereats_transactions(owner_id, date_iso);
	CREATE INDEX IF NOT EXISTS idx_ue_location ON ubereats_transactions(location_id);

	CREATE TABLE IF NOT EXISTS grubhub_transactions (
		owner_id TEXT NOT NULL,
		location_id TEXT NOT NULL REFERENCES locations(id),
		store_name TEXT NOT NULL,
		store_code TEXT NOT NULL DEFAULT '',
		transaction_id TEXT NOT NULL,
		date TEXT NOT NULL,
		date_iso TEXT NOT NULL,
		transaction_type TEXT NOT NULL DEFAULT '',
		subtotal TEXT NOT NULL,
		subtotal_sales_tax TEXT NOT NULL,
		merchant_funded_promotion TEXT NOT NULL,
		merchant_net_total TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (owner_id, transaction_id)
	);

	CREATE INDEX IF NOT EXISTS idx_gh_owner_date ON grubhub_transactions(owner_id, date_iso);
	CREATE INDEX IF NOT EXISTS idx_gh_location ON grubhub_transactions(location_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func newID(prefix string) string {
	buf := make([]byte, 8)
	rand.Read(buf)
	return prefix + "_" + hex.EncodeToString(buf)
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// =============================================================================
// LOCATION REGISTRY
// =============================================================================

const locationColumns = `id, owner_id, store_code, name, address, city, state, zip,
	doordash_id, ubereats_id, grubhub_id,
	doordash_name, ubereats_name, grubhub_name, verified, tag`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(row rowScanner) (location.CanonicalLocation, error) {
	var loc location.CanonicalLocation
	var ddID, ueID, ghID, ddName, ueName, ghName string
	var verified int
	err := row.Scan(&loc.ID, &loc.OwnerID, &loc.StoreCode, &loc.Name,
		&loc.Address, &loc.City, &loc.State, &loc.Zip,
		&ddID, &ueID, &ghID, &ddName, &ueName, &ghName, &verified, &loc.Tag)
	if err != nil {
		return loc, err
	}
	loc.Verified = verified != 0
	loc.PlatformIDs = platformMap(ddID, ueID, ghID)
	loc.PlatformNames = platformMap(ddName, ueName, ghName)
	return loc, nil
}

func platformMap(dd, ue, gh string) map[platform.Platform]string {
	m := make(map[platform.Platform]string, 3)
	if dd != "" {
		m[platform.DoorDash] = dd
	}
	if ue != "" {
		m[platform.UberEats] = ue
	}
	if gh != "" {
		m[platform.Grubhub] = gh
	}
	return m
}

// List returns locations in creation order. Empty ownerID returns all.
func (s *Store) List(ctx context.Context, ownerID string) ([]location.CanonicalLocation, error) {
	query := `SELECT ` + locationColumns + ` FROM locations`
	var args []any
	if ownerID != "" {
		query += ` WHERE owner_id = ?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []location.CanonicalLocation
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (*location.CanonicalLocation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE id = ?`, id)
	loc, err := scanLocation(row)
	if err == sql.ErrNoRows {
		return nil, location.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

// Save inserts the location, or replaces every mutable field when the id
// already exists. Assigns an id when the caller left it empty.
func (s *Store) Save(ctx context.Context, loc *location.CanonicalLocation) error {
	if loc.OwnerID == "" {
		return location.ErrOwnerRequired
	}
	if loc.ID == "" {
		loc.ID = newID("loc")
	}
	verified := 0
	if loc.Verified {
		verified = 1
	}
	ts := now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO locations (`+locationColumns+`, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			store_code = excluded.store_code,
			name = excluded.name,
			address = excluded.address,
			city = excluded.city,
			state = excluded.state,
			zip = excluded.zip,
			doordash_id = excluded.doordash_id,
			ubereats_id = excluded.ubereats_id,
			grubhub_id = excluded.grubhub_id,
			doordash_name = excluded.doordash_name,
			ubereats_name = excluded.ubereats_name,
			grubhub_name = excluded.grubhub_name,
			verified = excluded.verified,
			tag = excluded.tag,
			updated_at = excluded.updated_at`,
		loc.ID, loc.OwnerID, loc.StoreCode, loc.Name,
		loc.Address, loc.City, loc.State, loc.Zip,
		loc.PlatformIDs[platform.DoorDash], loc.PlatformIDs[platform.UberEats], loc.PlatformIDs[platform.Grubhub],
		loc.PlatformNames[platform.DoorDash], loc.PlatformNames[platform.UberEats], loc.PlatformNames[platform.Grubhub],
		verified, loc.Tag, ts, ts)
	return err
}

// EnsureUnmappedBucket returns the owner's sentinel bucket, creating it
// on first use. The partial unique index makes racing creators converge.
func (s *Store) EnsureUnmappedBucket(ctx context.Context, ownerID string) (*location.CanonicalLocation, error) {
	if ownerID == "" {
		return nil, location.ErrOwnerRequired
	}

	get := func() (*location.CanonicalLocation, error) {
		row := s.db.QueryRowContext(ctx,
			`SELECT `+locationColumns+` FROM locations WHERE owner_id = ? AND tag = ?`,
			ownerID, location.TagUnmappedBucket)
		loc, err := scanLocation(row)
		if err != nil {
			return nil, err
		}
		return &loc, nil
	}

	loc, err := get()
	if err == nil {
		return loc, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	bucket := &location.CanonicalLocation{
		ID:      newID("loc"),
		OwnerID: ownerID,
		Name:    location.UnmappedBucketName,
		Tag:     location.TagUnmappedBucket,
	}
	if saveErr := s.Save(ctx, bucket); saveErr != nil {
		// Lost a creation race: the unique index rejected this writer and
		// the winner's bucket is now visible.
		if loc, err = get(); err == nil {
			return loc, nil
		}
		return nil, saveErr
	}
	return bucket, nil
}

// Merge repoints all platform transactions from sourceIDs to targetID
// and removes the sources, atomically.
func (s *Store) Merge(ctx context.Context, ownerID string, sourceIDs []string, targetID string) (*location.MergeResult, error) {
	if ownerID == "" {
		return nil, location.ErrOwnerRequired
	}
	if len(sourceIDs) == 0 {
		return nil, fmt.Errorf("merge: no source locations")
	}

	target, err := s.Get(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("merge target: %w", err)
	}
	if target.OwnerID != ownerID {
		return nil, fmt.Errorf("merge target %s: %w", targetID, location.ErrNotFound)
	}

	for _, id := range sourceIDs {
		src, err := s.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("merge source %s: %w", id, err)
		}
		if src.OwnerID != ownerID {
			return nil, fmt.Errorf("merge source %s: %w", id, location.ErrNotFound)
		}
		if src.IsUnmappedBucket() {
			return nil, location.ErrMergeUnmappedBucket
		}
		if src.ID == targetID {
			return nil, fmt.Errorf("merge: target %s listed as source", targetID)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(sourceIDs)), ",")
	sourceArgs := make([]any, len(sourceIDs))
	for i, id := range sourceIDs {
		sourceArgs[i] = id
	}

	result := &location.MergeResult{
		TargetID:  targetID,
		SourceIDs: sourceIDs,
		Repointed: make(map[platform.Platform]int),
	}
	for _, p := range platform.All() {
		args := append([]any{targetID}, sourceArgs...)
		res, err := tx.ExecContext(ctx,
			`UPDATE `+tableFor(p)+` SET location_id = ? WHERE location_id IN (`+placeholders+`)`,
			args...)
		if err != nil {
			return nil, err
		}
		n, _ := res.RowsAffected()
		result.Repointed[p] = int(n)
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM locations WHERE id IN (`+placeholders+`)`, sourceArgs...)
	if err != nil {
		return nil, err
	}
	n, _ := res.RowsAffected()
	result.RemovedLocations = int(n)

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

func tableFor(p platform.Platform) string {
	switch p {
	case platform.DoorDash:
		return "doordash_transactions"
	case platform.UberEats:
		return "ubereats_transactions"
	default:
		return "grubhub_transactions"
	}
}
