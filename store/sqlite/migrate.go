/*
migrate.go - Versioned schema evolution for the SQLite store

PURPOSE:
  Brings a store opened at any historical version up to the current one,
  applying declared steps strictly in ascending order. Each step is DDL
  plus an optional data transform, run inside a single SQL transaction:
  a failing transform rolls back and the stored version is not bumped.

STEP SHAPES:
  (a) structural only - new table or index, no data rewrite (v2)
  (b) backfill        - rewrite affected rows to satisfy a new required
                        field (v3: payment_method defaults to 'cash')
  (c) destructive     - the collection's shape is no longer compatible
                        with new code and is cleared (v4: the product
                        schema break drops and recreates products)

  Fields introduced as optional (v5 debt/customer/state columns) stay
  NULL on pre-existing rows; nothing is synthesized unless a transform
  explicitly backfills.

VERSION TRACKING:
  PRAGMA user_version holds the last fully-applied version.

RECOVERY:
  Rebuild() is the documented destructive path: it copies every
  compatible collection out, drops the whole schema, recreates it at the
  latest version and re-inserts, reporting rows preserved vs. permanently
  lost (the incompatible collection's count). Re-running it against an
  already-current store is a no-op reporting 0/0.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/driplug/registro/core"
)

// =============================================================================
// VERSION HISTORY
// =============================================================================

type migration struct {
	Version   int
	Comment   string
	DDL       []string
	Transform func(ctx context.Context, tx *sql.Tx) error
}

var migrations = []migration{
	{
		Version: 1,
		Comment: "initial collections",
		DDL: []string{
			`CREATE TABLE IF NOT EXISTS product_types (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				color TEXT NOT NULL
			)`,
			// v1 product shape; replaced wholesale at v4
			`CREATE TABLE IF NOT EXISTS products (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				type TEXT,
				price REAL
			)`,
			`CREATE TABLE IF NOT EXISTS entities (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS warehouses (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT,
				entity_id TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_warehouses_entity ON warehouses(entity_id)`,
			`CREATE TABLE IF NOT EXISTS portfolios (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT,
				entity_id TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_portfolios_entity ON portfolios(entity_id)`,
			`CREATE TABLE IF NOT EXISTS customers (
				id TEXT PRIMARY KEY,
				code TEXT UNIQUE,
				name TEXT NOT NULL,
				notes TEXT,
				is_referral INTEGER NOT NULL DEFAULT 0,
				referral_color TEXT,
				referred_by TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_customers_referred_by ON customers(referred_by)`,
			`CREATE TABLE IF NOT EXISTS transaction_types (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT,
				affects_warehouse INTEGER NOT NULL DEFAULT 0,
				affects_portfolio INTEGER NOT NULL DEFAULT 0,
				payment_kind TEXT,
				transforms_state INTEGER NOT NULL DEFAULT 0,
				custom_fields_json TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS transactions (
				id TEXT PRIMARY KEY,
				type_id TEXT NOT NULL,
				date TEXT NOT NULL,
				product_id TEXT,
				quantity TEXT,
				from_warehouse_id TEXT,
				to_warehouse_id TEXT,
				from_portfolio_id TEXT,
				to_portfolio_id TEXT,
				amount TEXT,
				notes TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_transactions_product ON transactions(product_id)`,
			`CREATE TABLE IF NOT EXISTS stock (
				id TEXT PRIMARY KEY,
				product_id TEXT NOT NULL,
				warehouse_id TEXT NOT NULL,
				quantity TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_stock_product ON stock(product_id)`,
			`CREATE TABLE IF NOT EXISTS stock_movements (
				id TEXT PRIMARY KEY,
				product_id TEXT NOT NULL,
				warehouse_id TEXT NOT NULL,
				quantity TEXT NOT NULL,
				date TEXT NOT NULL,
				note TEXT
			)`,
		},
	},
	{
		Version: 2,
		Comment: "index the transaction date (structural only)",
		DDL: []string{
			`CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date)`,
		},
	},
	{
		Version: 3,
		Comment: "payment_method column, backfilled to 'cash'",
		DDL: []string{
			`ALTER TABLE transactions ADD COLUMN payment_method TEXT`,
		},
		Transform: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx,
				`UPDATE transactions SET payment_method = 'cash'
				 WHERE payment_method IS NULL OR payment_method = ''`)
			return err
		},
	},
	{
		Version: 4,
		Comment: "BREAKING: product schema rebuilt; clears all products",
		DDL: []string{
			`DROP TABLE IF EXISTS products`,
			`CREATE TABLE products (
				id TEXT PRIMARY KEY,
				code TEXT UNIQUE,
				tipo_id TEXT,
				strain TEXT NOT NULL,
				note TEXT,
				active INTEGER NOT NULL DEFAULT 1,
				price_per_gram TEXT
			)`,
		},
	},
	{
		Version: 5,
		Comment: "debt lifecycle, customer link, product state (optional, no backfill)",
		DDL: []string{
			`ALTER TABLE transactions ADD COLUMN is_debt INTEGER NOT NULL DEFAULT 0`,
			`ALTER TABLE transactions ADD COLUMN debt_status TEXT`,
			`ALTER TABLE transactions ADD COLUMN debt_paid_date TEXT`,
			`ALTER TABLE transactions ADD COLUMN customer_id TEXT`,
			`ALTER TABLE transactions ADD COLUMN product_state TEXT`,
			`ALTER TABLE transactions ADD COLUMN metadata_json TEXT`,
			`CREATE INDEX IF NOT EXISTS idx_transactions_customer ON transactions(customer_id)`,
		},
	},
}

// LatestVersion is the schema version current code expects.
func LatestVersion() int { return migrations[len(migrations)-1].Version }

// =============================================================================
// MIGRATION ENGINE
// =============================================================================

// Migrate brings the store up to the latest declared version.
func (s *Store) Migrate(ctx context.Context) error {
	return s.MigrateTo(ctx, LatestVersion())
}

// MigrateTo applies every step above the stored version, up to target,
// strictly in ascending order. Each step runs in its own SQL transaction;
// a failing step is rolled back, surfaced as a MigrationError and leaves
// the stored version at the last fully-applied step.
func (s *Store) MigrateTo(ctx context.Context, target int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current || m.Version > target {
			continue
		}
		if err := s.applyStep(ctx, m); err != nil {
			return &core.MigrationError{Version: m.Version, Err: err}
		}
	}
	return nil
}

func (s *Store) applyStep(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, ddl := range m.DDL {
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return err
		}
	}
	if m.Transform != nil {
		if err := m.Transform(ctx, tx); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		return err
	}
	return tx.Commit()
}

// SchemaVersion returns the stored schema version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schemaVersion(ctx)
}

func (s *Store) schemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

// =============================================================================
// DESTRUCTIVE REBUILD
// =============================================================================

// RebuildReport counts the rows a Rebuild carried over and the rows it
// permanently discarded.
type RebuildReport struct {
	Preserved int
	Lost      int
}

var rebuildTables = []string{
	"product_types", "entities", "warehouses", "portfolios", "customers",
	"transaction_types", "transactions", "stock", "stock_movements",
}

// Rebuild is the manual-recovery path for a store whose products
// collection predates the v4 schema break. Every other collection is read
// out, the whole schema is dropped and recreated at the latest version,
// and the preserved rows are re-inserted. The incompatible collection's
// rows are counted as lost. Running it against an already-current store
// is a no-op reporting zero preserved, zero lost.
func (s *Store) Rebuild(ctx context.Context) (RebuildReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report RebuildReport

	current, err := s.schemaVersion(ctx)
	if err != nil {
		return report, err
	}
	if current >= LatestVersion() {
		return report, nil
	}

	preserved := make(map[string][]rawRow)
	for _, table := range rebuildTables {
		rows, err := s.dumpTable(ctx, table)
		if err != nil {
			return report, fmt.Errorf("reading %s: %w", table, err)
		}
		preserved[table] = rows
		report.Preserved += len(rows)
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&report.Lost); err != nil {
		return RebuildReport{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return RebuildReport{}, err
	}
	defer tx.Rollback()

	for _, table := range rebuildTables {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return RebuildReport{}, err
		}
	}
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS products"); err != nil {
		return RebuildReport{}, err
	}

	for _, m := range migrations {
		for _, ddl := range m.DDL {
			if _, err := tx.ExecContext(ctx, ddl); err != nil {
				return RebuildReport{}, err
			}
		}
	}

	for _, table := range rebuildTables {
		for _, row := range preserved[table] {
			if err := insertRaw(ctx, tx, table, row); err != nil {
				return RebuildReport{}, fmt.Errorf("re-inserting into %s: %w", table, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", LatestVersion())); err != nil {
		return RebuildReport{}, err
	}
	if err := tx.Commit(); err != nil {
		return RebuildReport{}, err
	}
	return report, nil
}

// rawRow is a column-name-keyed snapshot of one row, shape-agnostic so the
// rebuild survives collections whose column set predates optional fields.
type rawRow struct {
	columns []string
	values  []any
}

func (s *Store) dumpTable(ctx context.Context, table string) ([]rawRow, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []rawRow
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, rawRow{columns: columns, values: values})
	}
	return out, rows.Err()
}

func insertRaw(ctx context.Context, tx *sql.Tx, table string, row rawRow) error {
	placeholders := make([]string, len(row.columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(row.columns, ", "), strings.Join(placeholders, ", "))
	_, err := tx.ExecContext(ctx, query, row.values...)
	return err
}
