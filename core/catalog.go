/*
catalog.go - Validated writes for master data and the transaction log

PURPOSE:
  The replay engine is read-only; every write funnels through here.
  Validation (uniqueness, required references) and referential-integrity
  checks run before any write, so a failed operation leaves no partial
  state. Deletes that would orphan rows fail with an error that enumerates
  the blocking dependencies.

NOT ENFORCED HERE:
  - The entity <-> warehouse/portfolio one-to-one pairing is a caller
    convention; cascading deletes are the caller's sequential calls.
  - Deleting a product type leaves dangling references on products.
  - referred_by is stored as given; no cycle detection.
*/
package core

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Catalog performs validated writes against an injected store handle.
type Catalog struct {
	Store Store
	Codes *CodeGenerator
}

func NewCatalog(store Store) *Catalog {
	return &Catalog{Store: store, Codes: NewCodeGenerator(store)}
}

func newID() string { return uuid.NewString() }

// =============================================================================
// PRODUCT TYPES
// =============================================================================

func (c *Catalog) CreateProductType(ctx context.Context, pt ProductType) (ProductType, error) {
	if err := c.validateProductType(ctx, pt, ""); err != nil {
		return ProductType{}, err
	}
	if pt.ID == "" {
		pt.ID = ProductTypeID(newID())
	}
	return pt, c.Store.PutProductType(ctx, pt)
}

func (c *Catalog) UpdateProductType(ctx context.Context, pt ProductType) error {
	existing, err := c.Store.GetProductType(ctx, pt.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return &NotFoundError{Collection: "product_types", ID: string(pt.ID)}
	}
	if err := c.validateProductType(ctx, pt, pt.ID); err != nil {
		return err
	}
	return c.Store.PutProductType(ctx, pt)
}

// DeleteProductType does not cascade: products keep the dangling reference.
func (c *Catalog) DeleteProductType(ctx context.Context, id ProductTypeID) error {
	return c.Store.DeleteProductType(ctx, id)
}

func (c *Catalog) validateProductType(ctx context.Context, pt ProductType, self ProductTypeID) error {
	if strings.TrimSpace(pt.Name) == "" {
		return &ValidationError{Collection: "product_types", Field: "name", Rule: "required", Message: "name is empty"}
	}
	if !ValidColor(pt.Color) {
		return &ValidationError{Collection: "product_types", Field: "color", Rule: "invalid", Message: string(pt.Color)}
	}
	types, err := c.Store.ListProductTypes(ctx)
	if err != nil {
		return err
	}
	for _, other := range types {
		if other.ID != self && strings.EqualFold(other.Name, pt.Name) {
			return &ValidationError{Collection: "product_types", Field: "name", Rule: "unique", Message: pt.Name}
		}
	}
	return nil
}

// =============================================================================
// PRODUCTS
// =============================================================================

// CreateProduct assigns a generated P-code and defaults active to true.
func (c *Catalog) CreateProduct(ctx context.Context, p Product) (Product, error) {
	if strings.TrimSpace(p.Strain) == "" {
		return Product{}, &ValidationError{Collection: "products", Field: "strain", Rule: "required", Message: "strain is empty"}
	}
	if p.TypeID == "" {
		return Product{}, &ValidationError{Collection: "products", Field: "tipo_id", Rule: "required", Message: "product type reference is empty"}
	}
	code, err := c.Codes.NextProductCode(ctx)
	if err != nil {
		return Product{}, err
	}
	p.Code = code
	if p.ID == "" {
		p.ID = ProductID(newID())
	}
	p.Active = true
	return p, c.Store.PutProduct(ctx, p)
}

func (c *Catalog) UpdateProduct(ctx context.Context, p Product) error {
	existing, err := c.Store.GetProduct(ctx, p.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return &NotFoundError{Collection: "products", ID: string(p.ID)}
	}
	if p.Code != existing.Code {
		return &ValidationError{Collection: "products", Field: "code", Rule: "immutable", Message: "generated code cannot change"}
	}
	return c.Store.PutProduct(ctx, p)
}

// SetProductActive soft-disables a product: hidden from selection lists,
// never deleted.
func (c *Catalog) SetProductActive(ctx context.Context, id ProductID, active bool) error {
	p, err := c.Store.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return &NotFoundError{Collection: "products", ID: string(id)}
	}
	p.Active = active
	return c.Store.PutProduct(ctx, *p)
}

// DeleteProduct hard-deletes only when nothing references the product:
// no transaction row and no legacy stock row.
func (c *Catalog) DeleteProduct(ctx context.Context, id ProductID) error {
	p, err := c.Store.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return &NotFoundError{Collection: "products", ID: string(id)}
	}

	txCount, err := c.Store.CountTransactionsByProduct(ctx, id)
	if err != nil {
		return err
	}
	stockCount, err := c.Store.CountStockByProduct(ctx, id)
	if err != nil {
		return err
	}

	var blockers []Blocker
	if txCount > 0 {
		blockers = append(blockers, Blocker{Collection: "transactions", Count: txCount})
	}
	if stockCount > 0 {
		blockers = append(blockers, Blocker{Collection: "stock", Count: stockCount})
	}
	if len(blockers) > 0 {
		return &ReferentialIntegrityError{Collection: "products", ID: string(id), Blockers: blockers}
	}
	return c.Store.DeleteProduct(ctx, id)
}

func (c *Catalog) GetProduct(ctx context.Context, id ProductID) (Product, error) {
	p, err := c.Store.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if p == nil {
		return Product{}, &NotFoundError{Collection: "products", ID: string(id)}
	}
	return *p, nil
}

// =============================================================================
// ENTITIES, WAREHOUSES, PORTFOLIOS
// =============================================================================

func (c *Catalog) CreateEntity(ctx context.Context, e Entity) (Entity, error) {
	if strings.TrimSpace(e.Name) == "" {
		return Entity{}, &ValidationError{Collection: "entities", Field: "name", Rule: "required", Message: "name is empty"}
	}
	entities, err := c.Store.ListEntities(ctx)
	if err != nil {
		return Entity{}, err
	}
	for _, other := range entities {
		if other.Name == e.Name {
			return Entity{}, &ValidationError{Collection: "entities", Field: "name", Rule: "unique", Message: e.Name}
		}
	}
	if e.ID == "" {
		e.ID = EntityID(newID())
	}
	return e, c.Store.PutEntity(ctx, e)
}

func (c *Catalog) UpdateEntity(ctx context.Context, e Entity) error {
	existing, err := c.Store.GetEntity(ctx, e.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return &NotFoundError{Collection: "entities", ID: string(e.ID)}
	}
	return c.Store.PutEntity(ctx, e)
}

// DeleteEntity removes only the entity row. The caller deletes the owned
// warehouse and portfolio as its own sequential calls.
func (c *Catalog) DeleteEntity(ctx context.Context, id EntityID) error {
	return c.Store.DeleteEntity(ctx, id)
}

func (c *Catalog) CreateWarehouse(ctx context.Context, w Warehouse) (Warehouse, error) {
	if strings.TrimSpace(w.Name) == "" {
		return Warehouse{}, &ValidationError{Collection: "warehouses", Field: "name", Rule: "required", Message: "name is empty"}
	}
	if w.EntityID == "" {
		return Warehouse{}, &ValidationError{Collection: "warehouses", Field: "entity_id", Rule: "required", Message: "entity reference is empty"}
	}
	if w.ID == "" {
		w.ID = WarehouseID(newID())
	}
	return w, c.Store.PutWarehouse(ctx, w)
}

func (c *Catalog) DeleteWarehouse(ctx context.Context, id WarehouseID) error {
	return c.Store.DeleteWarehouse(ctx, id)
}

func (c *Catalog) CreatePortfolio(ctx context.Context, p Portfolio) (Portfolio, error) {
	if strings.TrimSpace(p.Name) == "" {
		return Portfolio{}, &ValidationError{Collection: "portfolios", Field: "name", Rule: "required", Message: "name is empty"}
	}
	if p.EntityID == "" {
		return Portfolio{}, &ValidationError{Collection: "portfolios", Field: "entity_id", Rule: "required", Message: "entity reference is empty"}
	}
	if p.ID == "" {
		p.ID = PortfolioID(newID())
	}
	return p, c.Store.PutPortfolio(ctx, p)
}

func (c *Catalog) DeletePortfolio(ctx context.Context, id PortfolioID) error {
	return c.Store.DeletePortfolio(ctx, id)
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (c *Catalog) CreateCustomer(ctx context.Context, cust Customer) (Customer, error) {
	if err := c.validateCustomer(ctx, cust, ""); err != nil {
		return Customer{}, err
	}
	code, err := c.Codes.NextCustomerCode(ctx)
	if err != nil {
		return Customer{}, err
	}
	cust.Code = code
	if cust.ID == "" {
		cust.ID = CustomerID(newID())
	}
	return cust, c.Store.PutCustomer(ctx, cust)
}

func (c *Catalog) UpdateCustomer(ctx context.Context, cust Customer) error {
	existing, err := c.Store.GetCustomer(ctx, cust.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return &NotFoundError{Collection: "customers", ID: string(cust.ID)}
	}
	if err := c.validateCustomer(ctx, cust, cust.ID); err != nil {
		return err
	}
	return c.Store.PutCustomer(ctx, cust)
}

// DeleteCustomer fails while any other customer's referred_by points here.
func (c *Catalog) DeleteCustomer(ctx context.Context, id CustomerID) error {
	cust, err := c.Store.GetCustomer(ctx, id)
	if err != nil {
		return err
	}
	if cust == nil {
		return &NotFoundError{Collection: "customers", ID: string(id)}
	}
	referred, err := c.Store.CustomersReferredBy(ctx, id)
	if err != nil {
		return err
	}
	if len(referred) > 0 {
		return &ReferentialIntegrityError{
			Collection: "customers",
			ID:         string(id),
			Blockers:   []Blocker{{Collection: "customers.referred_by", Count: len(referred)}},
		}
	}
	return c.Store.DeleteCustomer(ctx, id)
}

func (c *Catalog) validateCustomer(ctx context.Context, cust Customer, self CustomerID) error {
	if strings.TrimSpace(cust.Name) == "" {
		return &ValidationError{Collection: "customers", Field: "name", Rule: "required", Message: "name is empty"}
	}
	if cust.IsReferral && cust.ReferralColor != "" && !ValidColor(cust.ReferralColor) {
		return &ValidationError{Collection: "customers", Field: "referral_color", Rule: "invalid", Message: string(cust.ReferralColor)}
	}
	if cust.ReferredBy != "" {
		referrer, err := c.Store.GetCustomer(ctx, cust.ReferredBy)
		if err != nil {
			return err
		}
		if referrer == nil {
			return &ValidationError{Collection: "customers", Field: "referred_by", Rule: "invalid", Message: "referrer does not exist"}
		}
	}
	customers, err := c.Store.ListCustomers(ctx)
	if err != nil {
		return err
	}
	for _, other := range customers {
		if other.ID != self && strings.EqualFold(other.Name, cust.Name) {
			return &ValidationError{Collection: "customers", Field: "name", Rule: "unique", Message: cust.Name}
		}
	}
	return nil
}

// =============================================================================
// TRANSACTION TYPES + TRANSACTIONS
// =============================================================================

func (c *Catalog) CreateTransactionType(ctx context.Context, tt TransactionType) (TransactionType, error) {
	if strings.TrimSpace(tt.Name) == "" {
		return TransactionType{}, &ValidationError{Collection: "transaction_types", Field: "name", Rule: "required", Message: "name is empty"}
	}
	types, err := c.Store.ListTransactionTypes(ctx)
	if err != nil {
		return TransactionType{}, err
	}
	for _, other := range types {
		if other.Name == tt.Name {
			return TransactionType{}, &ValidationError{Collection: "transaction_types", Field: "name", Rule: "unique", Message: tt.Name}
		}
	}
	if tt.ID == "" {
		tt.ID = TransactionTypeID(newID())
	}
	return tt, c.Store.PutTransactionType(ctx, tt)
}

func (c *Catalog) DeleteTransactionType(ctx context.Context, id TransactionTypeID) error {
	return c.Store.DeleteTransactionType(ctx, id)
}

// CreateTransaction validates the type reference and defaults the debt
// status of debt rows to pending.
func (c *Catalog) CreateTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	if t.TypeID == "" {
		return Transaction{}, &ValidationError{Collection: "transactions", Field: "type_id", Rule: "required", Message: "transaction type reference is empty"}
	}
	tt, err := c.Store.GetTransactionType(ctx, t.TypeID)
	if err != nil {
		return Transaction{}, err
	}
	if tt == nil {
		return Transaction{}, &ValidationError{Collection: "transactions", Field: "type_id", Rule: "invalid", Message: "transaction type does not exist"}
	}
	if t.Date.IsZero() {
		return Transaction{}, &ValidationError{Collection: "transactions", Field: "date", Rule: "required", Message: "date is zero"}
	}
	if t.IsDebt && t.DebtStatus == "" {
		t.DebtStatus = DebtPending
	}
	if t.ID == "" {
		t.ID = TransactionID(newID())
	}
	return t, c.Store.PutTransaction(ctx, t)
}

// UpdateTransaction re-persists the row. Every derived metric is
// recomputed from the full set on the next read, so an edit retroactively
// changes history as of the row's date.
func (c *Catalog) UpdateTransaction(ctx context.Context, t Transaction) error {
	existing, err := c.Store.GetTransaction(ctx, t.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return &NotFoundError{Collection: "transactions", ID: string(t.ID)}
	}
	return c.Store.PutTransaction(ctx, t)
}

func (c *Catalog) DeleteTransaction(ctx context.Context, id TransactionID) error {
	return c.Store.DeleteTransaction(ctx, id)
}

// SettleDebt performs the only debt transition: pending -> paid, stamping
// debt_paid_date. Paid debts never go back to pending.
func (c *Catalog) SettleDebt(ctx context.Context, id TransactionID, paidAt time.Time) error {
	t, err := c.Store.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	if t == nil {
		return &NotFoundError{Collection: "transactions", ID: string(id)}
	}
	if !t.IsDebt {
		return &ValidationError{Collection: "transactions", Field: "is_debt", Rule: "invalid", Message: "transaction is not a debt"}
	}
	if t.DebtStatus != DebtPending {
		return &ValidationError{Collection: "transactions", Field: "debt_status", Rule: "invalid", Message: "debt is not pending"}
	}
	t.DebtStatus = DebtPaid
	t.DebtPaidDate = &paidAt
	return c.Store.PutTransaction(ctx, *t)
}
