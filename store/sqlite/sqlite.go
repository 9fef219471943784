/*
Package sqlite provides the SQLite-backed implementation of core.Store.

PURPOSE:
  One local database file is the entire persistent state: master data,
  the transaction log and the legacy stock collections. The replay engine
  scans it fresh on every read; nothing derived is written back.

SCHEMA EVOLUTION:
  The schema is versioned (PRAGMA user_version) and upgraded step by step
  on open - see migrate.go for the declared history, including the one
  documented destructive step and the full-store rebuild recovery path.

CONCURRENCY:
  A single local writer is assumed. sync.RWMutex serializes access to the
  connection; WAL mode keeps readers unblocked.

USAGE:
  store, err := sqlite.New("./data/registro.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - core/store.go: interface contract
  - core/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	_ "github.com/mattn/go-sqlite3"

	"github.com/driplug/registro/core"
)

// Store implements core.Store on SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens the database and migrates it to the latest schema version.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	store, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(context.Background()); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// Open opens the database without migrating. Callers that need to inspect
// or upgrade historical versions (and tests) drive Migrate/MigrateTo
// themselves.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// PRODUCT TYPES
// =============================================================================

func (s *Store) PutProductType(ctx context.Context, pt core.ProductType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO product_types (id, name, color)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			color = excluded.color
	`
	_, err := s.db.ExecContext(ctx, query, pt.ID, pt.Name, pt.Color)
	return err
}

func (s *Store) GetProductType(ctx context.Context, id core.ProductTypeID) (*core.ProductType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pt core.ProductType
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, color FROM product_types WHERE id = ?", id,
	).Scan(&pt.ID, &pt.Name, &pt.Color)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pt, nil
}

func (s *Store) ListProductTypes(ctx context.Context) ([]core.ProductType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, color FROM product_types ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.ProductType
	for rows.Next() {
		var pt core.ProductType
		if err := rows.Scan(&pt.ID, &pt.Name, &pt.Color); err != nil {
			return nil, err
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}

func (s *Store) DeleteProductType(ctx context.Context, id core.ProductTypeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM product_types WHERE id = ?", id)
	return err
}

// =============================================================================
// PRODUCTS
// =============================================================================

const productColumns = "id, code, tipo_id, strain, note, active, price_per_gram"

func (s *Store) PutProduct(ctx context.Context, p core.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO products (id, code, tipo_id, strain, note, active, price_per_gram)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code,
			tipo_id = excluded.tipo_id,
			strain = excluded.strain,
			note = excluded.note,
			active = excluded.active,
			price_per_gram = excluded.price_per_gram
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Code, nullString(string(p.TypeID)), p.Strain, nullString(p.Note),
		p.Active, nullDecimal(p.PricePerGram),
	)
	return err
}

func (s *Store) GetProduct(ctx context.Context, id core.ProductID) (*core.Product, error) {
	return s.getProductWhere(ctx, "id = ?", string(id))
}

func (s *Store) GetProductByCode(ctx context.Context, code string) (*core.Product, error) {
	return s.getProductWhere(ctx, "code = ?", code)
}

func (s *Store) getProductWhere(ctx context.Context, where string, arg any) (*core.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE "+where, arg)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]core.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+productColumns+" FROM products ORDER BY code")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) DeleteProduct(ctx context.Context, id core.ProductID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(r rowScanner) (core.Product, error) {
	var (
		p     core.Product
		tipo  sql.NullString
		note  sql.NullString
		price sql.NullString
	)
	if err := r.Scan(&p.ID, &p.Code, &tipo, &p.Strain, &note, &p.Active, &price); err != nil {
		return p, err
	}
	p.TypeID = core.ProductTypeID(tipo.String)
	p.Note = note.String
	p.PricePerGram = parseDecimal(price)
	return p, nil
}

// =============================================================================
// ENTITIES
// =============================================================================

func (s *Store) PutEntity(ctx context.Context, e core.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO entities (id, name, description)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description
	`
	_, err := s.db.ExecContext(ctx, query, e.ID, e.Name, nullString(e.Description))
	return err
}

func (s *Store) GetEntity(ctx context.Context, id core.EntityID) (*core.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var e core.Entity
	var desc sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, description FROM entities WHERE id = ?", id,
	).Scan(&e.ID, &e.Name, &desc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.Description = desc.String
	return &e, nil
}

func (s *Store) ListEntities(ctx context.Context) ([]core.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, description FROM entities ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Entity
	for rows.Next() {
		var e core.Entity
		var desc sql.NullString
		if err := rows.Scan(&e.ID, &e.Name, &desc); err != nil {
			return nil, err
		}
		e.Description = desc.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) DeleteEntity(ctx context.Context, id core.EntityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM entities WHERE id = ?", id)
	return err
}

// =============================================================================
// WAREHOUSES
// =============================================================================

func (s *Store) PutWarehouse(ctx context.Context, w core.Warehouse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO warehouses (id, name, description, entity_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			entity_id = excluded.entity_id
	`
	_, err := s.db.ExecContext(ctx, query, w.ID, w.Name, nullString(w.Description), w.EntityID)
	return err
}

func (s *Store) GetWarehouse(ctx context.Context, id core.WarehouseID) (*core.Warehouse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var w core.Warehouse
	var desc sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, description, entity_id FROM warehouses WHERE id = ?", id,
	).Scan(&w.ID, &w.Name, &desc, &w.EntityID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	w.Description = desc.String
	return &w, nil
}

func (s *Store) ListWarehouses(ctx context.Context) ([]core.Warehouse, error) {
	return s.queryWarehouses(ctx, "SELECT id, name, description, entity_id FROM warehouses ORDER BY name")
}

func (s *Store) WarehousesByEntity(ctx context.Context, entityID core.EntityID) ([]core.Warehouse, error) {
	return s.queryWarehouses(ctx,
		"SELECT id, name, description, entity_id FROM warehouses WHERE entity_id = ? ORDER BY name", entityID)
}

func (s *Store) queryWarehouses(ctx context.Context, query string, args ...any) ([]core.Warehouse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Warehouse
	for rows.Next() {
		var w core.Warehouse
		var desc sql.NullString
		if err := rows.Scan(&w.ID, &w.Name, &desc, &w.EntityID); err != nil {
			return nil, err
		}
		w.Description = desc.String
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) DeleteWarehouse(ctx context.Context, id core.WarehouseID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM warehouses WHERE id = ?", id)
	return err
}

// =============================================================================
// PORTFOLIOS
// =============================================================================

func (s *Store) PutPortfolio(ctx context.Context, p core.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO portfolios (id, name, description, entity_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			entity_id = excluded.entity_id
	`
	_, err := s.db.ExecContext(ctx, query, p.ID, p.Name, nullString(p.Description), p.EntityID)
	return err
}

func (s *Store) GetPortfolio(ctx context.Context, id core.PortfolioID) (*core.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p core.Portfolio
	var desc sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, description, entity_id FROM portfolios WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &desc, &p.EntityID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Description = desc.String
	return &p, nil
}

func (s *Store) ListPortfolios(ctx context.Context) ([]core.Portfolio, error) {
	return s.queryPortfolios(ctx, "SELECT id, name, description, entity_id FROM portfolios ORDER BY name")
}

func (s *Store) PortfoliosByEntity(ctx context.Context, entityID core.EntityID) ([]core.Portfolio, error) {
	return s.queryPortfolios(ctx,
		"SELECT id, name, description, entity_id FROM portfolios WHERE entity_id = ? ORDER BY name", entityID)
}

func (s *Store) queryPortfolios(ctx context.Context, query string, args ...any) ([]core.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Portfolio
	for rows.Next() {
		var p core.Portfolio
		var desc sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &desc, &p.EntityID); err != nil {
			return nil, err
		}
		p.Description = desc.String
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) DeletePortfolio(ctx context.Context, id core.PortfolioID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM portfolios WHERE id = ?", id)
	return err
}

// =============================================================================
// CUSTOMERS
// =============================================================================

const customerColumns = "id, code, name, notes, is_referral, referral_color, referred_by"

func (s *Store) PutCustomer(ctx context.Context, c core.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO customers (id, code, name, notes, is_referral, referral_color, referred_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code,
			name = excluded.name,
			notes = excluded.notes,
			is_referral = excluded.is_referral,
			referral_color = excluded.referral_color,
			referred_by = excluded.referred_by
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.Code, c.Name, nullString(c.Notes), c.IsReferral,
		nullString(string(c.ReferralColor)), nullString(string(c.ReferredBy)),
	)
	return err
}

func (s *Store) GetCustomer(ctx context.Context, id core.CustomerID) (*core.Customer, error) {
	return s.getCustomerWhere(ctx, "id = ?", string(id))
}

func (s *Store) GetCustomerByCode(ctx context.Context, code string) (*core.Customer, error) {
	return s.getCustomerWhere(ctx, "code = ?", code)
}

func (s *Store) getCustomerWhere(ctx context.Context, where string, arg any) (*core.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE "+where, arg)
	c, err := scanCustomer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]core.Customer, error) {
	return s.queryCustomers(ctx, "SELECT "+customerColumns+" FROM customers ORDER BY name")
}

func (s *Store) CustomersReferredBy(ctx context.Context, id core.CustomerID) ([]core.Customer, error) {
	return s.queryCustomers(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE referred_by = ? ORDER BY name", id)
}

func (s *Store) queryCustomers(ctx context.Context, query string, args ...any) ([]core.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) DeleteCustomer(ctx context.Context, id core.CustomerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM customers WHERE id = ?", id)
	return err
}

func scanCustomer(r rowScanner) (core.Customer, error) {
	var (
		c        core.Customer
		notes    sql.NullString
		color    sql.NullString
		referred sql.NullString
	)
	if err := r.Scan(&c.ID, &c.Code, &c.Name, &notes, &c.IsReferral, &color, &referred); err != nil {
		return c, err
	}
	c.Notes = notes.String
	c.ReferralColor = core.Color(color.String)
	c.ReferredBy = core.CustomerID(referred.String)
	return c, nil
}

// =============================================================================
// TRANSACTION TYPES
// =============================================================================

const transactionTypeColumns = "id, name, description, affects_warehouse, affects_portfolio, payment_kind, transforms_state, custom_fields_json"

func (s *Store) PutTransactionType(ctx context.Context, tt core.TransactionType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fieldsJSON, _ := json.Marshal(tt.CustomFields)

	query := `
		INSERT INTO transaction_types
		(id, name, description, affects_warehouse, affects_portfolio, payment_kind, transforms_state, custom_fields_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			affects_warehouse = excluded.affects_warehouse,
			affects_portfolio = excluded.affects_portfolio,
			payment_kind = excluded.payment_kind,
			transforms_state = excluded.transforms_state,
			custom_fields_json = excluded.custom_fields_json
	`
	_, err := s.db.ExecContext(ctx, query,
		tt.ID, tt.Name, nullString(tt.Description), tt.AffectsWarehouse, tt.AffectsPortfolio,
		nullString(string(tt.PaymentKind)), tt.TransformsState, string(fieldsJSON),
	)
	return err
}

func (s *Store) GetTransactionType(ctx context.Context, id core.TransactionTypeID) (*core.TransactionType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+transactionTypeColumns+" FROM transaction_types WHERE id = ?", id)
	tt, err := scanTransactionType(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tt, nil
}

func (s *Store) ListTransactionTypes(ctx context.Context) ([]core.TransactionType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+transactionTypeColumns+" FROM transaction_types ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.TransactionType
	for rows.Next() {
		tt, err := scanTransactionType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tt)
	}
	return out, rows.Err()
}

func (s *Store) DeleteTransactionType(ctx context.Context, id core.TransactionTypeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM transaction_types WHERE id = ?", id)
	return err
}

func scanTransactionType(r rowScanner) (core.TransactionType, error) {
	var (
		tt     core.TransactionType
		desc   sql.NullString
		kind   sql.NullString
		fields sql.NullString
	)
	if err := r.Scan(&tt.ID, &tt.Name, &desc, &tt.AffectsWarehouse, &tt.AffectsPortfolio,
		&kind, &tt.TransformsState, &fields); err != nil {
		return tt, err
	}
	tt.Description = desc.String
	tt.PaymentKind = core.PaymentKind(kind.String)
	if fields.Valid && fields.String != "" {
		json.Unmarshal([]byte(fields.String), &tt.CustomFields)
	}
	return tt, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

const transactionColumns = `id, type_id, date, product_id, quantity,
	from_warehouse_id, to_warehouse_id, from_portfolio_id, to_portfolio_id,
	amount, payment_method, is_debt, debt_status, debt_paid_date,
	customer_id, product_state, notes, metadata_json`

func (s *Store) PutTransaction(ctx context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	metadataJSON, _ := json.Marshal(t.Metadata)

	var paidDate *string
	if t.DebtPaidDate != nil {
		v := t.DebtPaidDate.Format(time.RFC3339)
		paidDate = &v
	}

	query := `
		INSERT INTO transactions
		(id, type_id, date, product_id, quantity, from_warehouse_id, to_warehouse_id,
		 from_portfolio_id, to_portfolio_id, amount, payment_method, is_debt,
		 debt_status, debt_paid_date, customer_id, product_state, notes, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type_id = excluded.type_id,
			date = excluded.date,
			product_id = excluded.product_id,
			quantity = excluded.quantity,
			from_warehouse_id = excluded.from_warehouse_id,
			to_warehouse_id = excluded.to_warehouse_id,
			from_portfolio_id = excluded.from_portfolio_id,
			to_portfolio_id = excluded.to_portfolio_id,
			amount = excluded.amount,
			payment_method = excluded.payment_method,
			is_debt = excluded.is_debt,
			debt_status = excluded.debt_status,
			debt_paid_date = excluded.debt_paid_date,
			customer_id = excluded.customer_id,
			product_state = excluded.product_state,
			notes = excluded.notes,
			metadata_json = excluded.metadata_json
	`
	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.TypeID, t.Date.Format(time.RFC3339),
		nullString(string(t.ProductID)), nullDecimal(t.Quantity),
		nullString(string(t.FromWarehouseID)), nullString(string(t.ToWarehouseID)),
		nullString(string(t.FromPortfolioID)), nullString(string(t.ToPortfolioID)),
		nullDecimal(t.Amount), nullString(string(t.PaymentMethod)), t.IsDebt,
		nullString(string(t.DebtStatus)), paidDate,
		nullString(string(t.CustomerID)), nullString(string(t.ProductState)),
		nullString(t.Notes), string(metadataJSON),
	)
	return err
}

func (s *Store) GetTransaction(ctx context.Context, id core.TransactionID) (*core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions ORDER BY date ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) CountTransactionsByProduct(ctx context.Context, id core.ProductID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE product_id = ?", id).Scan(&count)
	return count, err
}

func (s *Store) DeleteTransaction(ctx context.Context, id core.TransactionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
	return err
}

func scanTransaction(r rowScanner) (core.Transaction, error) {
	var (
		t            core.Transaction
		date         string
		productID    sql.NullString
		quantity     sql.NullString
		fromWH, toWH sql.NullString
		fromPF, toPF sql.NullString
		amount       sql.NullString
		method       sql.NullString
		debtStatus   sql.NullString
		paidDate     sql.NullString
		customerID   sql.NullString
		state        sql.NullString
		notes        sql.NullString
		metadataJSON sql.NullString
	)
	err := r.Scan(&t.ID, &t.TypeID, &date, &productID, &quantity,
		&fromWH, &toWH, &fromPF, &toPF, &amount, &method, &t.IsDebt,
		&debtStatus, &paidDate, &customerID, &state, &notes, &metadataJSON)
	if err != nil {
		return t, err
	}

	t.Date, _ = time.Parse(time.RFC3339, date)
	t.ProductID = core.ProductID(productID.String)
	t.Quantity = parseDecimal(quantity)
	t.FromWarehouseID = core.WarehouseID(fromWH.String)
	t.ToWarehouseID = core.WarehouseID(toWH.String)
	t.FromPortfolioID = core.PortfolioID(fromPF.String)
	t.ToPortfolioID = core.PortfolioID(toPF.String)
	t.Amount = parseDecimal(amount)
	t.PaymentMethod = core.PaymentMethod(method.String)
	t.DebtStatus = core.DebtStatus(debtStatus.String)
	t.CustomerID = core.CustomerID(customerID.String)
	t.ProductState = core.ProductState(state.String)
	t.Notes = notes.String
	if paidDate.Valid && paidDate.String != "" {
		if d, err := time.Parse(time.RFC3339, paidDate.String); err == nil {
			t.DebtPaidDate = &d
		}
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		json.Unmarshal([]byte(metadataJSON.String), &t.Metadata)
	}
	return t, nil
}

// =============================================================================
// LEGACY STOCK COLLECTIONS
// =============================================================================

func (s *Store) PutStock(ctx context.Context, st core.Stock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO stock (id, product_id, warehouse_id, quantity)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			product_id = excluded.product_id,
			warehouse_id = excluded.warehouse_id,
			quantity = excluded.quantity
	`
	_, err := s.db.ExecContext(ctx, query, st.ID, st.ProductID, st.WarehouseID, st.Quantity.String())
	return err
}

func (s *Store) ListStock(ctx context.Context) ([]core.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, product_id, warehouse_id, quantity FROM stock")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Stock
	for rows.Next() {
		var st core.Stock
		var qty sql.NullString
		if err := rows.Scan(&st.ID, &st.ProductID, &st.WarehouseID, &qty); err != nil {
			return nil, err
		}
		st.Quantity = parseDecimal(qty)
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) CountStockByProduct(ctx context.Context, id core.ProductID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM stock WHERE product_id = ?", id).Scan(&count)
	return count, err
}

func (s *Store) DeleteStock(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM stock WHERE id = ?", id)
	return err
}

func (s *Store) PutStockMovement(ctx context.Context, m core.StockMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO stock_movements (id, product_id, warehouse_id, quantity, date, note)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			quantity = excluded.quantity,
			date = excluded.date,
			note = excluded.note
	`
	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.ProductID, m.WarehouseID, m.Quantity.String(),
		m.Date.Format(time.RFC3339), nullString(m.Note))
	return err
}

func (s *Store) ListStockMovements(ctx context.Context) ([]core.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, product_id, warehouse_id, quantity, date, note FROM stock_movements ORDER BY date")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.StockMovement
	for rows.Next() {
		var m core.StockMovement
		var qty sql.NullString
		var date string
		var note sql.NullString
		if err := rows.Scan(&m.ID, &m.ProductID, &m.WarehouseID, &qty, &date, &note); err != nil {
			return nil, err
		}
		m.Quantity = parseDecimal(qty)
		m.Date, _ = time.Parse(time.RFC3339, date)
		m.Note = note.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDecimal(d decimal.Decimal) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseDecimal(s sql.NullString) decimal.Decimal {
	if !s.Valid || s.String == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.Zero
	}
	return d
}
