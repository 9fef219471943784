// Package store provides core.Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/driplug/registro/core"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	productTypes     map[core.ProductTypeID]core.ProductType
	products         map[core.ProductID]core.Product
	entities         map[core.EntityID]core.Entity
	warehouses       map[core.WarehouseID]core.Warehouse
	portfolios       map[core.PortfolioID]core.Portfolio
	customers        map[core.CustomerID]core.Customer
	transactionTypes map[core.TransactionTypeID]core.TransactionType
	transactions     map[core.TransactionID]core.Transaction
	stock            map[string]core.Stock
	stockMovements   map[string]core.StockMovement
}

func NewMemory() *Memory {
	return &Memory{
		productTypes:     make(map[core.ProductTypeID]core.ProductType),
		products:         make(map[core.ProductID]core.Product),
		entities:         make(map[core.EntityID]core.Entity),
		warehouses:       make(map[core.WarehouseID]core.Warehouse),
		portfolios:       make(map[core.PortfolioID]core.Portfolio),
		customers:        make(map[core.CustomerID]core.Customer),
		transactionTypes: make(map[core.TransactionTypeID]core.TransactionType),
		transactions:     make(map[core.TransactionID]core.Transaction),
		stock:            make(map[string]core.Stock),
		stockMovements:   make(map[string]core.StockMovement),
	}
}

// =============================================================================
// PRODUCT TYPES
// =============================================================================

func (m *Memory) PutProductType(_ context.Context, pt core.ProductType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.productTypes[pt.ID] = pt
	return nil
}

func (m *Memory) GetProductType(_ context.Context, id core.ProductTypeID) (*core.ProductType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if pt, ok := m.productTypes[id]; ok {
		return &pt, nil
	}
	return nil, nil
}

func (m *Memory) ListProductTypes(_ context.Context) ([]core.ProductType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.ProductType, 0, len(m.productTypes))
	for _, pt := range m.productTypes {
		out = append(out, pt)
	}
	return out, nil
}

func (m *Memory) DeleteProductType(_ context.Context, id core.ProductTypeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.productTypes, id)
	return nil
}

// =============================================================================
// PRODUCTS
// =============================================================================

func (m *Memory) PutProduct(_ context.Context, p core.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
	return nil
}

func (m *Memory) GetProduct(_ context.Context, id core.ProductID) (*core.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.products[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (m *Memory) GetProductByCode(_ context.Context, code string) (*core.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.products {
		if p.Code == code {
			return &p, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListProducts(_ context.Context) ([]core.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *Memory) DeleteProduct(_ context.Context, id core.ProductID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.products, id)
	return nil
}

// =============================================================================
// ENTITIES, WAREHOUSES, PORTFOLIOS
// =============================================================================

func (m *Memory) PutEntity(_ context.Context, e core.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[e.ID] = e
	return nil
}

func (m *Memory) GetEntity(_ context.Context, id core.EntityID) (*core.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entities[id]; ok {
		return &e, nil
	}
	return nil, nil
}

func (m *Memory) ListEntities(_ context.Context) ([]core.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Entity, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, e)
	}
	return out, nil
}

func (m *Memory) DeleteEntity(_ context.Context, id core.EntityID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entities, id)
	return nil
}

func (m *Memory) PutWarehouse(_ context.Context, w core.Warehouse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warehouses[w.ID] = w
	return nil
}

func (m *Memory) GetWarehouse(_ context.Context, id core.WarehouseID) (*core.Warehouse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if w, ok := m.warehouses[id]; ok {
		return &w, nil
	}
	return nil, nil
}

func (m *Memory) ListWarehouses(_ context.Context) ([]core.Warehouse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Warehouse, 0, len(m.warehouses))
	for _, w := range m.warehouses {
		out = append(out, w)
	}
	return out, nil
}

func (m *Memory) WarehousesByEntity(_ context.Context, entityID core.EntityID) ([]core.Warehouse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []core.Warehouse
	for _, w := range m.warehouses {
		if w.EntityID == entityID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *Memory) DeleteWarehouse(_ context.Context, id core.WarehouseID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.warehouses, id)
	return nil
}

func (m *Memory) PutPortfolio(_ context.Context, p core.Portfolio) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.portfolios[p.ID] = p
	return nil
}

func (m *Memory) GetPortfolio(_ context.Context, id core.PortfolioID) (*core.Portfolio, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.portfolios[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (m *Memory) ListPortfolios(_ context.Context) ([]core.Portfolio, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Portfolio, 0, len(m.portfolios))
	for _, p := range m.portfolios {
		out = append(out, p)
	}
	return out, nil
}

func (m *Memory) PortfoliosByEntity(_ context.Context, entityID core.EntityID) ([]core.Portfolio, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []core.Portfolio
	for _, p := range m.portfolios {
		if p.EntityID == entityID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Memory) DeletePortfolio(_ context.Context, id core.PortfolioID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.portfolios, id)
	return nil
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (m *Memory) PutCustomer(_ context.Context, c core.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[c.ID] = c
	return nil
}

func (m *Memory) GetCustomer(_ context.Context, id core.CustomerID) (*core.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.customers[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (m *Memory) GetCustomerByCode(_ context.Context, code string) (*core.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.customers {
		if c.Code == code {
			return &c, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListCustomers(_ context.Context) ([]core.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Customer, 0, len(m.customers))
	for _, c := range m.customers {
		out = append(out, c)
	}
	return out, nil
}

func (m *Memory) CustomersReferredBy(_ context.Context, id core.CustomerID) ([]core.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []core.Customer
	for _, c := range m.customers {
		if c.ReferredBy == id {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *Memory) DeleteCustomer(_ context.Context, id core.CustomerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.customers, id)
	return nil
}

// =============================================================================
// TRANSACTION TYPES + TRANSACTIONS
// =============================================================================

func (m *Memory) PutTransactionType(_ context.Context, tt core.TransactionType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactionTypes[tt.ID] = tt
	return nil
}

func (m *Memory) GetTransactionType(_ context.Context, id core.TransactionTypeID) (*core.TransactionType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if tt, ok := m.transactionTypes[id]; ok {
		return &tt, nil
	}
	return nil, nil
}

func (m *Memory) ListTransactionTypes(_ context.Context) ([]core.TransactionType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.TransactionType, 0, len(m.transactionTypes))
	for _, tt := range m.transactionTypes {
		out = append(out, tt)
	}
	return out, nil
}

func (m *Memory) DeleteTransactionType(_ context.Context, id core.TransactionTypeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.transactionTypes, id)
	return nil
}

func (m *Memory) PutTransaction(_ context.Context, t core.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[t.ID] = t
	return nil
}

func (m *Memory) GetTransaction(_ context.Context, id core.TransactionID) (*core.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.transactions[id]; ok {
		return &t, nil
	}
	return nil, nil
}

func (m *Memory) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Transaction, 0, len(m.transactions))
	for _, t := range m.transactions {
		out = append(out, t)
	}
	return out, nil
}

func (m *Memory) CountTransactionsByProduct(_ context.Context, id core.ProductID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, t := range m.transactions {
		if t.ProductID == id {
			count++
		}
	}
	return count, nil
}

func (m *Memory) DeleteTransaction(_ context.Context, id core.TransactionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.transactions, id)
	return nil
}

// =============================================================================
// LEGACY STOCK COLLECTIONS
// =============================================================================

func (m *Memory) PutStock(_ context.Context, s core.Stock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[s.ID] = s
	return nil
}

func (m *Memory) ListStock(_ context.Context) ([]core.Stock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Stock, 0, len(m.stock))
	for _, s := range m.stock {
		out = append(out, s)
	}
	return out, nil
}

func (m *Memory) CountStockByProduct(_ context.Context, id core.ProductID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.stock {
		if s.ProductID == id {
			count++
		}
	}
	return count, nil
}

func (m *Memory) DeleteStock(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stock, id)
	return nil
}

func (m *Memory) PutStockMovement(_ context.Context, mv core.StockMovement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stockMovements[mv.ID] = mv
	return nil
}

func (m *Memory) ListStockMovements(_ context.Context) ([]core.StockMovement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.StockMovement, 0, len(m.stockMovements))
	for _, mv := range m.stockMovements {
		out = append(out, mv)
	}
	return out, nil
}
