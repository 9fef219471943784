package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driplug/registro/core"
	"github.com/driplug/registro/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

// =============================================================================
// MASTER DATA ROUND TRIPS
// =============================================================================

func TestProduct_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := core.Product{
		ID:           "prod-1",
		Code:         "P042",
		TypeID:       "pt-1",
		Strain:       "Gelato",
		Note:         "keeper",
		Active:       true,
		PricePerGram: dec("8.50"),
	}
	require.NoError(t, s.PutProduct(ctx, p))

	got, err := s.GetProduct(ctx, "prod-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.Code, got.Code)
	assert.Equal(t, p.Strain, got.Strain)
	assert.True(t, p.PricePerGram.Equal(got.PricePerGram))

	byCode, err := s.GetProductByCode(ctx, "P042")
	require.NoError(t, err)
	require.NotNil(t, byCode)
	assert.Equal(t, p.ID, byCode.ID)
}

func TestProduct_UpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := core.Product{ID: "prod-1", Code: "P001", Strain: "Gelato", Active: true}
	require.NoError(t, s.PutProduct(ctx, p))

	p.Strain = "Gelato 41"
	p.Active = false
	require.NoError(t, s.PutProduct(ctx, p))

	got, err := s.GetProduct(ctx, "prod-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Gelato 41", got.Strain)
	assert.False(t, got.Active)
}

func TestGet_AbsentRowIsNilNil(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p, err := s.GetProduct(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, p)

	c, err := s.GetCustomerByCode(ctx, "C999")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestCustomer_RoundTripWithReferral(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.PutCustomer(ctx, core.Customer{ID: "cust-1", Code: "C001", Name: "Mario"}))
	require.NoError(t, s.PutCustomer(ctx, core.Customer{
		ID: "cust-2", Code: "C002", Name: "Luigi",
		IsReferral: true, ReferralColor: core.ColorGreen, ReferredBy: "cust-1",
	}))

	got, err := s.GetCustomer(ctx, "cust-2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsReferral)
	assert.Equal(t, core.ColorGreen, got.ReferralColor)
	assert.Equal(t, core.CustomerID("cust-1"), got.ReferredBy)

	referred, err := s.CustomersReferredBy(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, referred, 1)
	assert.Equal(t, core.CustomerID("cust-2"), referred[0].ID)
}

func TestWarehousesAndPortfolios_FilteredByEntity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.PutWarehouse(ctx, core.Warehouse{ID: "wh-1", Name: "A", EntityID: "ent-1"}))
	require.NoError(t, s.PutWarehouse(ctx, core.Warehouse{ID: "wh-2", Name: "B", EntityID: "ent-2"}))
	require.NoError(t, s.PutPortfolio(ctx, core.Portfolio{ID: "pf-1", Name: "A", EntityID: "ent-1"}))

	whs, err := s.WarehousesByEntity(ctx, "ent-1")
	require.NoError(t, err)
	require.Len(t, whs, 1)
	assert.Equal(t, core.WarehouseID("wh-1"), whs[0].ID)

	pfs, err := s.PortfoliosByEntity(ctx, "ent-1")
	require.NoError(t, err)
	require.Len(t, pfs, 1)
}

func TestTransactionType_CustomFieldsSurvive(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tt := core.TransactionType{
		ID: "tt-1", Name: "Sale",
		AffectsWarehouse: true, AffectsPortfolio: true,
		PaymentKind:  core.PaymentKindInstant,
		CustomFields: map[string]string{"channel": "counter"},
	}
	require.NoError(t, s.PutTransactionType(ctx, tt))

	got, err := s.GetTransactionType(ctx, "tt-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, core.PaymentKindInstant, got.PaymentKind)
	assert.Equal(t, "counter", got.CustomFields["channel"])
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestTransaction_FullRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	paid := time.Date(2025, time.March, 2, 10, 30, 0, 0, time.UTC)
	tx := core.Transaction{
		ID:              "tx-1",
		TypeID:          "tt-1",
		Date:            time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		ProductID:       "prod-1",
		Quantity:        dec("12.5"),
		FromWarehouseID: "wh-1",
		ToWarehouseID:   "wh-2",
		ProductState:    core.StateCured,
		FromPortfolioID: "pf-1",
		ToPortfolioID:   "pf-2",
		Amount:          dec("99.90"),
		PaymentMethod:   core.PaymentCash,
		IsDebt:          true,
		DebtStatus:      core.DebtPaid,
		DebtPaidDate:    &paid,
		CustomerID:      "cust-1",
		Notes:           "full row",
		Metadata:        map[string]string{"source": "import"},
	}
	require.NoError(t, s.PutTransaction(ctx, tx))

	got, err := s.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, tx.Date.Equal(got.Date))
	assert.True(t, tx.Quantity.Equal(got.Quantity))
	assert.True(t, tx.Amount.Equal(got.Amount))
	assert.Equal(t, core.StateCured, got.ProductState)
	assert.Equal(t, core.DebtPaid, got.DebtStatus)
	require.NotNil(t, got.DebtPaidDate)
	assert.True(t, paid.Equal(*got.DebtPaidDate))
	assert.Equal(t, "import", got.Metadata["source"])
}

func TestTransaction_SparseRowReadsBackEmpty(t *testing.T) {
	// Only the required fields; every optional reference stays empty.
	ctx := context.Background()
	s := newTestStore(t)

	tx := core.Transaction{
		ID:     "tx-1",
		TypeID: "tt-1",
		Date:   time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.PutTransaction(ctx, tx))

	got, err := s.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, string(got.ProductID))
	assert.Empty(t, string(got.FromWarehouseID))
	assert.True(t, got.Quantity.IsZero())
	assert.True(t, got.Amount.IsZero())
	assert.Nil(t, got.DebtPaidDate)
}

func TestTransactions_ListedInDateOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.PutTransaction(ctx, core.Transaction{ID: "tx-late", TypeID: "tt-1", Date: base.AddDate(0, 0, 5)}))
	require.NoError(t, s.PutTransaction(ctx, core.Transaction{ID: "tx-early", TypeID: "tt-1", Date: base}))

	txs, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, core.TransactionID("tx-early"), txs[0].ID)
	assert.Equal(t, core.TransactionID("tx-late"), txs[1].ID)
}

func TestCountTransactionsByProduct(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.PutTransaction(ctx, core.Transaction{ID: "tx-1", TypeID: "tt-1", Date: base, ProductID: "prod-1"}))
	require.NoError(t, s.PutTransaction(ctx, core.Transaction{ID: "tx-2", TypeID: "tt-1", Date: base, ProductID: "prod-1"}))
	require.NoError(t, s.PutTransaction(ctx, core.Transaction{ID: "tx-3", TypeID: "tt-1", Date: base, ProductID: "prod-2"}))

	n, err := s.CountTransactionsByProduct(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

// =============================================================================
// ENGINE OVER SQLITE
// =============================================================================

func TestEngine_ReplaysAgainstSQLite(t *testing.T) {
	// The replay engine behaves identically over the production store.
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.PutTransactionType(ctx, core.TransactionType{ID: "tt-move", Name: "Movement", AffectsWarehouse: true}))
	base := time.Now().AddDate(0, 0, -1)
	require.NoError(t, s.PutTransaction(ctx, core.Transaction{
		ID: "tx-1", TypeID: "tt-move", Date: base, ProductID: "prod-1", Quantity: dec("100"), ToWarehouseID: "wh-1",
	}))
	require.NoError(t, s.PutTransaction(ctx, core.Transaction{
		ID: "tx-2", TypeID: "tt-move", Date: base, ProductID: "prod-1", Quantity: dec("30"), FromWarehouseID: "wh-1",
	}))

	engine := core.NewEngine(s)
	got, err := engine.StockByWarehouse(ctx, "wh-1", "prod-1")
	require.NoError(t, err)
	assert.True(t, dec("70").Equal(got), "got %s", got)
}
