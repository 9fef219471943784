/*
store.go - Persistence interface for all collections

PURPOSE:
  Defines the contract between the domain logic and the physical store.
  An explicit store handle is injected everywhere - there is no package
  level singleton - so tests run against the in-memory implementation and
  production runs against SQLite.

CONTRACT:
  - Get* returns (nil, nil) when the row is absent. The catalog layer turns
    that into a NotFoundError for direct lookups; the replay engine treats
    it as a zero-value metric target.
  - Put* is an upsert by primary key. Transaction rows are mutable by
    design: derived balances are recomputed from the full set on next read,
    so edits retroactively change history.
  - List* returns every row; the replay engine performs full scans on every
    call. Narrow queries exist only where an index-backed filter is part of
    the contract (entity_id, product_id, referred_by).
  - No multi-collection atomicity: cascading deletes are sequential calls
    by the caller.

IMPLEMENTATIONS:
  - store/sqlite: production store with versioned schema migrations
  - core/store: in-memory store for tests and dev
*/
package core

import "context"

// =============================================================================
// CATALOG COLLECTIONS
// =============================================================================

type ProductStore interface {
	PutProductType(ctx context.Context, pt ProductType) error
	GetProductType(ctx context.Context, id ProductTypeID) (*ProductType, error)
	ListProductTypes(ctx context.Context) ([]ProductType, error)
	DeleteProductType(ctx context.Context, id ProductTypeID) error

	PutProduct(ctx context.Context, p Product) error
	GetProduct(ctx context.Context, id ProductID) (*Product, error)
	GetProductByCode(ctx context.Context, code string) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	DeleteProduct(ctx context.Context, id ProductID) error
}

type PartyStore interface {
	PutEntity(ctx context.Context, e Entity) error
	GetEntity(ctx context.Context, id EntityID) (*Entity, error)
	ListEntities(ctx context.Context) ([]Entity, error)
	DeleteEntity(ctx context.Context, id EntityID) error

	PutWarehouse(ctx context.Context, w Warehouse) error
	GetWarehouse(ctx context.Context, id WarehouseID) (*Warehouse, error)
	ListWarehouses(ctx context.Context) ([]Warehouse, error)
	WarehousesByEntity(ctx context.Context, entityID EntityID) ([]Warehouse, error)
	DeleteWarehouse(ctx context.Context, id WarehouseID) error

	PutPortfolio(ctx context.Context, p Portfolio) error
	GetPortfolio(ctx context.Context, id PortfolioID) (*Portfolio, error)
	ListPortfolios(ctx context.Context) ([]Portfolio, error)
	PortfoliosByEntity(ctx context.Context, entityID EntityID) ([]Portfolio, error)
	DeletePortfolio(ctx context.Context, id PortfolioID) error

	PutCustomer(ctx context.Context, c Customer) error
	GetCustomer(ctx context.Context, id CustomerID) (*Customer, error)
	GetCustomerByCode(ctx context.Context, code string) (*Customer, error)
	ListCustomers(ctx context.Context) ([]Customer, error)
	CustomersReferredBy(ctx context.Context, id CustomerID) ([]Customer, error)
	DeleteCustomer(ctx context.Context, id CustomerID) error
}

// =============================================================================
// LEDGER COLLECTIONS
// =============================================================================

type LedgerStore interface {
	PutTransactionType(ctx context.Context, tt TransactionType) error
	GetTransactionType(ctx context.Context, id TransactionTypeID) (*TransactionType, error)
	ListTransactionTypes(ctx context.Context) ([]TransactionType, error)
	DeleteTransactionType(ctx context.Context, id TransactionTypeID) error

	PutTransaction(ctx context.Context, t Transaction) error
	GetTransaction(ctx context.Context, id TransactionID) (*Transaction, error)
	ListTransactions(ctx context.Context) ([]Transaction, error)
	CountTransactionsByProduct(ctx context.Context, id ProductID) (int, error)
	DeleteTransaction(ctx context.Context, id TransactionID) error
}

// =============================================================================
// LEGACY COLLECTIONS
// =============================================================================

type StockStore interface {
	PutStock(ctx context.Context, s Stock) error
	ListStock(ctx context.Context) ([]Stock, error)
	CountStockByProduct(ctx context.Context, id ProductID) (int, error)
	DeleteStock(ctx context.Context, id string) error

	PutStockMovement(ctx context.Context, m StockMovement) error
	ListStockMovements(ctx context.Context) ([]StockMovement, error)
}

// Store is the full persistence surface the engine and catalog depend on.
type Store interface {
	ProductStore
	PartyStore
	LedgerStore
	StockStore
}
