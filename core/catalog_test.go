package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driplug/registro/core"
	"github.com/driplug/registro/core/store"
)

func newCatalog() *core.Catalog {
	return core.NewCatalog(store.NewMemory())
}

// =============================================================================
// PRODUCT TYPES
// =============================================================================

func TestCreateProductType_RequiresNameAndValidColor(t *testing.T) {
	ctx := context.Background()
	c := newCatalog()

	_, err := c.CreateProductType(ctx, core.ProductType{Name: "", Color: core.ColorGreen})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = c.CreateProductType(ctx, core.ProductType{Name: "Flower", Color: "magenta"})
	assert.ErrorIs(t, err, core.ErrValidation)

	pt, err := c.CreateProductType(ctx, core.ProductType{Name: "Flower", Color: core.ColorGreen})
	require.NoError(t, err)
	assert.NotEmpty(t, pt.ID)
}

func TestCreateProductType_NameUniqueCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	c := newCatalog()

	_, err := c.CreateProductType(ctx, core.ProductType{Name: "Hash", Color: core.ColorBlue})
	require.NoError(t, err)

	_, err = c.CreateProductType(ctx, core.ProductType{Name: "HASH", Color: core.ColorRed})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrValidation)

	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "unique", vErr.Rule)
}

func TestDeleteProductType_LeavesDanglingReferences(t *testing.T) {
	// Deleting a type does not cascade; the product keeps its reference.
	ctx := context.Background()
	c := newCatalog()

	pt, err := c.CreateProductType(ctx, core.ProductType{Name: "Flower", Color: core.ColorGreen})
	require.NoError(t, err)
	p, err := c.CreateProduct(ctx, core.Product{Strain: "Gelato", TypeID: pt.ID})
	require.NoError(t, err)

	require.NoError(t, c.DeleteProductType(ctx, pt.ID))

	got, err := c.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, pt.ID, got.TypeID)
}

// =============================================================================
// PRODUCTS
// =============================================================================

func TestCreateProduct_GeneratesCodeAndDefaultsActive(t *testing.T) {
	ctx := context.Background()
	c := newCatalog()

	pt, err := c.CreateProductType(ctx, core.ProductType{Name: "Flower", Color: core.ColorGreen})
	require.NoError(t, err)

	p, err := c.CreateProduct(ctx, core.Product{Strain: "Gelato", TypeID: pt.ID})
	require.NoError(t, err)
	assert.Regexp(t, `^P\d{3}$`, p.Code)
	assert.True(t, p.Active)
}

func TestUpdateProduct_CodeIsImmutable(t *testing.T) {
	ctx := context.Background()
	c := newCatalog()

	pt, _ := c.CreateProductType(ctx, core.ProductType{Name: "Flower", Color: core.ColorGreen})
	p, err := c.CreateProduct(ctx, core.Product{Strain: "Gelato", TypeID: pt.ID})
	require.NoError(t, err)

	p.Code = "P999"
	err = c.UpdateProduct(ctx, p)
	require.Error(t, err)
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "immutable", vErr.Rule)
}

func TestDeleteProduct_BlockedByTransactions(t *testing.T) {
	// GIVEN: A product referenced by one transaction
	// THEN: The delete fails, naming the blocking collection and count
	ctx := context.Background()
	mem := store.NewMemory()
	c := core.NewCatalog(mem)

	pt, _ := c.CreateProductType(ctx, core.ProductType{Name: "Flower", Color: core.ColorGreen})
	p, err := c.CreateProduct(ctx, core.Product{Strain: "Gelato", TypeID: pt.ID})
	require.NoError(t, err)

	tt, err := c.CreateTransactionType(ctx, core.TransactionType{Name: "Movement", AffectsWarehouse: true})
	require.NoError(t, err)
	_, err = c.CreateTransaction(ctx, core.Transaction{
		TypeID: tt.ID, Date: time.Now().AddDate(0, 0, -1), ProductID: p.ID, Quantity: qty("10"), ToWarehouseID: "wh-1",
	})
	require.NoError(t, err)

	err = c.DeleteProduct(ctx, p.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrReferentialIntegrity)

	var riErr *core.ReferentialIntegrityError
	require.ErrorAs(t, err, &riErr)
	require.Len(t, riErr.Blockers, 1)
	assert.Equal(t, "transactions", riErr.Blockers[0].Collection)
	assert.Equal(t, 1, riErr.Blockers[0].Count)

	// Still there.
	_, err = c.GetProduct(ctx, p.ID)
	assert.NoError(t, err)
}

func TestDeleteProduct_UnreferencedSucceeds(t *testing.T) {
	ctx := context.Background()
	c := newCatalog()

	pt, _ := c.CreateProductType(ctx, core.ProductType{Name: "Flower", Color: core.ColorGreen})
	p, err := c.CreateProduct(ctx, core.Product{Strain: "Gelato", TypeID: pt.ID})
	require.NoError(t, err)

	require.NoError(t, c.DeleteProduct(ctx, p.ID))

	_, err = c.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSetProductActive_Toggles(t *testing.T) {
	ctx := context.Background()
	c := newCatalog()

	pt, _ := c.CreateProductType(ctx, core.ProductType{Name: "Flower", Color: core.ColorGreen})
	p, err := c.CreateProduct(ctx, core.Product{Strain: "Gelato", TypeID: pt.ID})
	require.NoError(t, err)

	require.NoError(t, c.SetProductActive(ctx, p.ID, false))
	got, err := c.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func TestCreateCustomer_GeneratesCode(t *testing.T) {
	ctx := context.Background()
	c := newCatalog()

	cust, err := c.CreateCustomer(ctx, core.Customer{Name: "Mario"})
	require.NoError(t, err)
	assert.Regexp(t, `^C\d{3}$`, cust.Code)
}

func TestCreateCustomer_ReferrerMustExist(t *testing.T) {
	ctx := context.Background()
	c := newCatalog()

	_, err := c.CreateCustomer(ctx, core.Customer{Name: "Luigi", ReferredBy: "nope"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestDeleteCustomer_BlockedByReferrals(t *testing.T) {
	ctx := context.Background()
	c := newCatalog()

	referrer, err := c.CreateCustomer(ctx, core.Customer{Name: "Mario"})
	require.NoError(t, err)
	_, err = c.CreateCustomer(ctx, core.Customer{Name: "Luigi", ReferredBy: referrer.ID})
	require.NoError(t, err)

	err = c.DeleteCustomer(ctx, referrer.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrReferentialIntegrity)
}

// =============================================================================
// TRANSACTIONS + DEBT LIFECYCLE
// =============================================================================

func TestCreateTransaction_RequiresExistingType(t *testing.T) {
	ctx := context.Background()
	c := newCatalog()

	_, err := c.CreateTransaction(ctx, core.Transaction{TypeID: "missing", Date: time.Now()})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestCreateTransaction_DebtDefaultsToPending(t *testing.T) {
	ctx := context.Background()
	c := newCatalog()

	tt, err := c.CreateTransactionType(ctx, core.TransactionType{Name: "Sale", AffectsPortfolio: true})
	require.NoError(t, err)

	tx, err := c.CreateTransaction(ctx, core.Transaction{
		TypeID: tt.ID, Date: time.Now().AddDate(0, 0, -1), Amount: qty("50"), IsDebt: true,
	})
	require.NoError(t, err)
	assert.Equal(t, core.DebtPending, tx.DebtStatus)
}

func TestSettleDebt_PendingToPaid(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	c := core.NewCatalog(mem)

	tt, _ := c.CreateTransactionType(ctx, core.TransactionType{Name: "Sale", AffectsPortfolio: true})
	tx, err := c.CreateTransaction(ctx, core.Transaction{
		TypeID: tt.ID, Date: time.Now().AddDate(0, 0, -1), Amount: qty("50"), IsDebt: true,
	})
	require.NoError(t, err)

	paidAt := time.Now()
	require.NoError(t, c.SettleDebt(ctx, tx.ID, paidAt))

	got, err := mem.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, core.DebtPaid, got.DebtStatus)
	require.NotNil(t, got.DebtPaidDate)
	assert.True(t, got.DebtPaidDate.Equal(paidAt))
}

func TestSettleDebt_PaidIsTerminal(t *testing.T) {
	// A settled debt cannot be settled again.
	ctx := context.Background()
	c := newCatalog()

	tt, _ := c.CreateTransactionType(ctx, core.TransactionType{Name: "Sale", AffectsPortfolio: true})
	tx, err := c.CreateTransaction(ctx, core.Transaction{
		TypeID: tt.ID, Date: time.Now().AddDate(0, 0, -1), Amount: qty("50"), IsDebt: true,
	})
	require.NoError(t, err)
	require.NoError(t, c.SettleDebt(ctx, tx.ID, time.Now()))

	err = c.SettleDebt(ctx, tx.ID, time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestSettleDebt_NonDebtRejected(t *testing.T) {
	ctx := context.Background()
	c := newCatalog()

	tt, _ := c.CreateTransactionType(ctx, core.TransactionType{Name: "Sale", AffectsPortfolio: true})
	tx, err := c.CreateTransaction(ctx, core.Transaction{
		TypeID: tt.ID, Date: time.Now().AddDate(0, 0, -1), Amount: qty("50"),
	})
	require.NoError(t, err)

	err = c.SettleDebt(ctx, tx.ID, time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestSettleDebt_MissingRowIsNotFound(t *testing.T) {
	c := newCatalog()
	err := c.SettleDebt(context.Background(), "missing", time.Now())
	assert.ErrorIs(t, err, core.ErrNotFound)
}
