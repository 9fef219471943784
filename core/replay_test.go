package core_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driplug/registro/core"
	"github.com/driplug/registro/core/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store  *store.Memory
	engine *core.Engine

	driplug  core.Entity
	meetdrip core.Entity

	whDriplug  core.Warehouse
	whMeetdrip core.Warehouse

	pfDriplug  core.Portfolio
	pfMeetdrip core.Portfolio

	product core.Product

	ttMove      core.TransactionType // affects warehouse only
	ttSale      core.TransactionType // affects both sides
	ttTransform core.TransactionType // transforms_state
}

func newFixture(t *testing.T) *fixture {
	ctx := context.Background()
	mem := store.NewMemory()

	f := &fixture{
		store:  mem,
		engine: core.NewEngine(mem),

		driplug:  core.Entity{ID: "ent-driplug", Name: "Driplug"},
		meetdrip: core.Entity{ID: "ent-meetdrip", Name: "Meetdrip"},

		whDriplug:  core.Warehouse{ID: "wh-driplug", Name: "Driplug Main", EntityID: "ent-driplug"},
		whMeetdrip: core.Warehouse{ID: "wh-meetdrip", Name: "Meetdrip Main", EntityID: "ent-meetdrip"},

		pfDriplug:  core.Portfolio{ID: "pf-driplug", Name: "Driplug Cash", EntityID: "ent-driplug"},
		pfMeetdrip: core.Portfolio{ID: "pf-meetdrip", Name: "Meetdrip Cash", EntityID: "ent-meetdrip"},

		product: core.Product{ID: "prod-1", Code: "P001", Strain: "Gelato", Active: true},

		ttMove:      core.TransactionType{ID: "tt-move", Name: "Movement", AffectsWarehouse: true},
		ttSale:      core.TransactionType{ID: "tt-sale", Name: "Sale", AffectsWarehouse: true, AffectsPortfolio: true},
		ttTransform: core.TransactionType{ID: "tt-cure", Name: "Curing", AffectsWarehouse: true, TransformsState: true},
	}
	f.engine.Clock = func() time.Time { return testNow }

	require.NoError(t, mem.PutEntity(ctx, f.driplug))
	require.NoError(t, mem.PutEntity(ctx, f.meetdrip))
	require.NoError(t, mem.PutWarehouse(ctx, f.whDriplug))
	require.NoError(t, mem.PutWarehouse(ctx, f.whMeetdrip))
	require.NoError(t, mem.PutPortfolio(ctx, f.pfDriplug))
	require.NoError(t, mem.PutPortfolio(ctx, f.pfMeetdrip))
	require.NoError(t, mem.PutProduct(ctx, f.product))
	require.NoError(t, mem.PutTransactionType(ctx, f.ttMove))
	require.NoError(t, mem.PutTransactionType(ctx, f.ttSale))
	require.NoError(t, mem.PutTransactionType(ctx, f.ttTransform))
	return f
}

var txSeq int

func (f *fixture) add(t *testing.T, tx core.Transaction) core.Transaction {
	t.Helper()
	txSeq++
	if tx.ID == "" {
		tx.ID = core.TransactionID(fmt.Sprintf("tx-%d", txSeq))
	}
	if tx.Date.IsZero() {
		tx.Date = testNow.AddDate(0, 0, -1)
	}
	require.NoError(t, f.store.PutTransaction(context.Background(), tx))
	return tx
}

func qty(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

// =============================================================================
// STOCK REPLAY
// =============================================================================

func TestStockByWarehouse_DepositsAndWithdrawals(t *testing.T) {
	// GIVEN: 100g in, 30g out of the same warehouse
	// WHEN: Computing warehouse stock
	// THEN: Stock is 70g
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, core.Transaction{TypeID: "tt-move", ProductID: "prod-1", Quantity: qty("100"), ToWarehouseID: "wh-driplug"})
	f.add(t, core.Transaction{TypeID: "tt-move", ProductID: "prod-1", Quantity: qty("30"), FromWarehouseID: "wh-driplug"})

	got, err := f.engine.StockByWarehouse(ctx, "wh-driplug", "prod-1")
	require.NoError(t, err)
	assert.True(t, qty("70").Equal(got), "got %s", got)
}

func TestStockByWarehouse_TransferMovesStock(t *testing.T) {
	// GIVEN: 100g at A, then 40g moved A -> B in one transaction
	// THEN: A holds 60, B holds 40, product total is unchanged at 100
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, core.Transaction{TypeID: "tt-move", ProductID: "prod-1", Quantity: qty("100"), ToWarehouseID: "wh-driplug"})
	f.add(t, core.Transaction{TypeID: "tt-move", ProductID: "prod-1", Quantity: qty("40"), FromWarehouseID: "wh-driplug", ToWarehouseID: "wh-meetdrip"})

	a, err := f.engine.StockByWarehouse(ctx, "wh-driplug", "prod-1")
	require.NoError(t, err)
	b, err := f.engine.StockByWarehouse(ctx, "wh-meetdrip", "prod-1")
	require.NoError(t, err)
	total, err := f.engine.StockByProduct(ctx, "prod-1")
	require.NoError(t, err)

	assert.True(t, qty("60").Equal(a))
	assert.True(t, qty("40").Equal(b))
	assert.True(t, qty("100").Equal(total))
}

func TestStockByWarehouse_ClampedAtZero(t *testing.T) {
	// GIVEN: More withdrawn than ever deposited
	// THEN: Stock reports zero; the deficit diagnostic reports the negative
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, core.Transaction{TypeID: "tt-move", ProductID: "prod-1", Quantity: qty("10"), ToWarehouseID: "wh-driplug"})
	f.add(t, core.Transaction{TypeID: "tt-move", ProductID: "prod-1", Quantity: qty("25"), FromWarehouseID: "wh-driplug"})

	clamped, err := f.engine.StockByWarehouse(ctx, "wh-driplug", "prod-1")
	require.NoError(t, err)
	assert.True(t, clamped.IsZero(), "got %s", clamped)

	deficit, err := f.engine.StockDeficit(ctx, "wh-driplug", "prod-1")
	require.NoError(t, err)
	assert.True(t, qty("-15").Equal(deficit), "got %s", deficit)
}

func TestStockByWarehouse_InternalTransformSkipped(t *testing.T) {
	// GIVEN: A state-transformation row with from == to == the warehouse
	// THEN: Net warehouse quantity is unchanged
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, core.Transaction{TypeID: "tt-move", ProductID: "prod-1", Quantity: qty("50"), ToWarehouseID: "wh-driplug"})
	f.add(t, core.Transaction{TypeID: "tt-cure", ProductID: "prod-1", Quantity: qty("50"),
		FromWarehouseID: "wh-driplug", ToWarehouseID: "wh-driplug", ProductState: core.StateCured})

	got, err := f.engine.StockByWarehouse(ctx, "wh-driplug", "prod-1")
	require.NoError(t, err)
	assert.True(t, qty("50").Equal(got), "got %s", got)
}

func TestStockByWarehouse_FutureTransactionsExcluded(t *testing.T) {
	// GIVEN: A deposit dated after the engine clock
	// THEN: It does not count yet
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, core.Transaction{TypeID: "tt-move", ProductID: "prod-1", Quantity: qty("100"), ToWarehouseID: "wh-driplug"})
	f.add(t, core.Transaction{TypeID: "tt-move", ProductID: "prod-1", Quantity: qty("500"),
		ToWarehouseID: "wh-driplug", Date: testNow.AddDate(0, 0, 7)})

	got, err := f.engine.StockByWarehouse(ctx, "wh-driplug", "prod-1")
	require.NoError(t, err)
	assert.True(t, qty("100").Equal(got), "got %s", got)
}

func TestStockByWarehouse_EmptyTargetIsZero(t *testing.T) {
	f := newFixture(t)
	got, err := f.engine.StockByWarehouse(context.Background(), "", "prod-1")
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestStockByEntityAndProduct_SumsOwnedWarehouses(t *testing.T) {
	// GIVEN: Driplug owns two warehouses holding 60g and 15g
	f := newFixture(t)
	ctx := context.Background()

	second := core.Warehouse{ID: "wh-driplug-2", Name: "Driplug Annex", EntityID: "ent-driplug"}
	require.NoError(t, f.store.PutWarehouse(ctx, second))

	f.add(t, core.Transaction{TypeID: "tt-move", ProductID: "prod-1", Quantity: qty("60"), ToWarehouseID: "wh-driplug"})
	f.add(t, core.Transaction{TypeID: "tt-move", ProductID: "prod-1", Quantity: qty("15"), ToWarehouseID: "wh-driplug-2"})
	f.add(t, core.Transaction{TypeID: "tt-move", ProductID: "prod-1", Quantity: qty("99"), ToWarehouseID: "wh-meetdrip"})

	got, err := f.engine.StockByEntityAndProduct(ctx, "ent-driplug", "prod-1")
	require.NoError(t, err)
	assert.True(t, qty("75").Equal(got), "got %s", got)
}

func TestReplay_EditRetroactivelyChangesBalance(t *testing.T) {
	// GIVEN: A 100g deposit
	// WHEN: The same row is re-persisted with 40g
	// THEN: The next read reflects 40g; no residue of the old value
	f := newFixture(t)
	ctx := context.Background()

	tx := f.add(t, core.Transaction{TypeID: "tt-move", ProductID: "prod-1", Quantity: qty("100"), ToWarehouseID: "wh-driplug"})

	tx.Quantity = qty("40")
	require.NoError(t, f.store.PutTransaction(ctx, tx))

	got, err := f.engine.StockByWarehouse(ctx, "wh-driplug", "prod-1")
	require.NoError(t, err)
	assert.True(t, qty("40").Equal(got), "got %s", got)
}

// =============================================================================
// PORTFOLIO BALANCE
// =============================================================================

func TestPortfolioBalance_CashAndRounding(t *testing.T) {
	// GIVEN: Cash in 50.005, cash out 20
	// THEN: Balance and CashBalance both round to 30.00 (banker-free 2dp)
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, core.Transaction{TypeID: "tt-sale", Amount: qty("50.005"), ToPortfolioID: "pf-driplug", PaymentMethod: core.PaymentCash})
	f.add(t, core.Transaction{TypeID: "tt-sale", Amount: qty("20"), FromPortfolioID: "pf-driplug", PaymentMethod: core.PaymentCash})

	b, err := f.engine.PortfolioBalance(ctx, "pf-driplug")
	require.NoError(t, err)
	assert.True(t, qty("30.01").Equal(b.Balance), "balance %s", b.Balance)
	assert.True(t, qty("30.01").Equal(b.CashBalance), "cash %s", b.CashBalance)
}

func TestPortfolioBalance_BancomatExcludedFromBalance(t *testing.T) {
	// GIVEN: 100 cash in, 40 bancomat in
	// THEN: Balance is 100; BancomatTotal tracks 40 separately
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, core.Transaction{TypeID: "tt-sale", Amount: qty("100"), ToPortfolioID: "pf-driplug", PaymentMethod: core.PaymentCash})
	f.add(t, core.Transaction{TypeID: "tt-sale", Amount: qty("40"), ToPortfolioID: "pf-driplug", PaymentMethod: core.PaymentBancomat})

	b, err := f.engine.PortfolioBalance(ctx, "pf-driplug")
	require.NoError(t, err)
	assert.True(t, qty("100").Equal(b.Balance), "balance %s", b.Balance)
	assert.True(t, qty("40").Equal(b.BancomatTotal), "bancomat %s", b.BancomatTotal)
}

func TestPortfolioBalance_DebtBalanceTracksPendingOnly(t *testing.T) {
	// GIVEN: One pending debt in, one settled debt in
	// THEN: DebtBalance counts only the pending row
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, core.Transaction{TypeID: "tt-sale", Amount: qty("60"), ToPortfolioID: "pf-driplug",
		IsDebt: true, DebtStatus: core.DebtPending})
	paid := testNow.AddDate(0, 0, -1)
	f.add(t, core.Transaction{TypeID: "tt-sale", Amount: qty("25"), ToPortfolioID: "pf-driplug",
		IsDebt: true, DebtStatus: core.DebtPaid, DebtPaidDate: &paid})

	b, err := f.engine.PortfolioBalance(ctx, "pf-driplug")
	require.NoError(t, err)
	assert.True(t, qty("60").Equal(b.DebtBalance), "debt %s", b.DebtBalance)
}

func TestPortfolioBalance_CanGoNegative(t *testing.T) {
	// Cash accounts are not clamped.
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, core.Transaction{TypeID: "tt-sale", Amount: qty("80"), FromPortfolioID: "pf-driplug", PaymentMethod: core.PaymentCash})

	b, err := f.engine.PortfolioBalance(ctx, "pf-driplug")
	require.NoError(t, err)
	assert.True(t, qty("-80").Equal(b.Balance), "balance %s", b.Balance)
}

func TestPreviewBalance_MatchesReplayAfterCommit(t *testing.T) {
	// GIVEN: A current balance and a hypothetical transaction
	// THEN: Preview equals the recomputed balance after actually writing it
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, core.Transaction{TypeID: "tt-sale", Amount: qty("100"), ToPortfolioID: "pf-driplug", PaymentMethod: core.PaymentCash})

	current, err := f.engine.PortfolioBalance(ctx, "pf-driplug")
	require.NoError(t, err)

	hypothetical := core.Transaction{TypeID: "tt-sale", Amount: qty("33.333"),
		FromPortfolioID: "pf-driplug", PaymentMethod: core.PaymentCash}
	preview := core.PreviewBalance(current, hypothetical)

	f.add(t, hypothetical)
	committed, err := f.engine.PortfolioBalance(ctx, "pf-driplug")
	require.NoError(t, err)

	assert.True(t, preview.Balance.Equal(committed.Balance), "preview %s committed %s", preview.Balance, committed.Balance)
	assert.True(t, preview.CashBalance.Equal(committed.CashBalance))
}

// =============================================================================
// INTER-ENTITY DEBT
// =============================================================================

func TestPairNetBalance_PendingDebtsBetweenEntities(t *testing.T) {
	// GIVEN: Driplug lent Meetdrip 100 (pending), Meetdrip lent back 25 (pending)
	// THEN: Net seen from Meetdrip's side is 75.00
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, core.Transaction{TypeID: "tt-sale", Amount: qty("100"),
		FromPortfolioID: "pf-driplug", ToPortfolioID: "pf-meetdrip", IsDebt: true, DebtStatus: core.DebtPending})
	f.add(t, core.Transaction{TypeID: "tt-sale", Amount: qty("25"),
		FromPortfolioID: "pf-meetdrip", ToPortfolioID: "pf-driplug", IsDebt: true, DebtStatus: core.DebtPending})

	pair, err := f.engine.PairNetBalance(ctx, "ent-driplug", "ent-meetdrip")
	require.NoError(t, err)
	assert.True(t, qty("100").Equal(pair.Credits), "credits %s", pair.Credits)
	assert.True(t, qty("25").Equal(pair.Debts), "debts %s", pair.Debts)
	assert.True(t, qty("75").Equal(pair.Net), "net %s", pair.Net)
}

func TestPairNetBalance_SettledDebtDropsOut(t *testing.T) {
	// GIVEN: The 100 pending debt above, then settled
	// THEN: The pair position collapses to zero
	f := newFixture(t)
	ctx := context.Background()

	tx := f.add(t, core.Transaction{TypeID: "tt-sale", Amount: qty("100"),
		FromPortfolioID: "pf-driplug", ToPortfolioID: "pf-meetdrip", IsDebt: true, DebtStatus: core.DebtPending})

	paid := testNow
	tx.DebtStatus = core.DebtPaid
	tx.DebtPaidDate = &paid
	require.NoError(t, f.store.PutTransaction(ctx, tx))

	pair, err := f.engine.PairNetBalance(ctx, "ent-driplug", "ent-meetdrip")
	require.NoError(t, err)
	assert.True(t, pair.Credits.IsZero())
	assert.True(t, pair.Net.IsZero())
}

func TestPairNetBalance_MissingEntityIsZero(t *testing.T) {
	f := newFixture(t)
	pair, err := f.engine.PairNetBalance(context.Background(), "ent-driplug", "")
	require.NoError(t, err)
	assert.True(t, pair.Net.IsZero())
}

func TestPairNetBalance_EntityWithoutPortfolioIsZero(t *testing.T) {
	// GIVEN: A third entity that owns no portfolio
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.PutEntity(ctx, core.Entity{ID: "ent-bare", Name: "Bare"}))

	pair, err := f.engine.PairNetBalance(ctx, "ent-driplug", "ent-bare")
	require.NoError(t, err)
	assert.True(t, pair.Net.IsZero())
}

func TestCompanyNetBalance_ResolvesByName(t *testing.T) {
	// The historical two-company view finds Driplug and Meetdrip by name
	// and reports the same figures as the pairwise computation.
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, core.Transaction{TypeID: "tt-sale", Amount: qty("100"),
		FromPortfolioID: "pf-driplug", ToPortfolioID: "pf-meetdrip", IsDebt: true, DebtStatus: core.DebtPending})
	f.add(t, core.Transaction{TypeID: "tt-sale", Amount: qty("25"),
		FromPortfolioID: "pf-meetdrip", ToPortfolioID: "pf-driplug", IsDebt: true, DebtStatus: core.DebtPending})

	company, err := f.engine.CompanyNetBalance(ctx)
	require.NoError(t, err)
	assert.True(t, qty("100").Equal(company.MeetdripCredits))
	assert.True(t, qty("25").Equal(company.MeetdripDebts))
	assert.True(t, qty("75").Equal(company.NetBalance))
}

// =============================================================================
// CUSTOMER METRICS
// =============================================================================

func TestCustomerMetrics_DebtCreditSpending(t *testing.T) {
	// GIVEN: One pending debt (30), one settled debt (20), one plain sale (50)
	f := newFixture(t)
	ctx := context.Background()

	cust := core.Customer{ID: "cust-1", Code: "C001", Name: "Mario"}
	require.NoError(t, f.store.PutCustomer(ctx, cust))

	f.add(t, core.Transaction{TypeID: "tt-sale", CustomerID: "cust-1", Amount: qty("30"),
		ToPortfolioID: "pf-driplug", IsDebt: true, DebtStatus: core.DebtPending})
	paid := testNow.AddDate(0, 0, -2)
	f.add(t, core.Transaction{TypeID: "tt-sale", CustomerID: "cust-1", Amount: qty("20"),
		ToPortfolioID: "pf-driplug", IsDebt: true, DebtStatus: core.DebtPaid, DebtPaidDate: &paid})
	f.add(t, core.Transaction{TypeID: "tt-sale", CustomerID: "cust-1", Amount: qty("50"),
		ToPortfolioID: "pf-driplug", PaymentMethod: core.PaymentCash})

	debt, err := f.engine.CustomerDebt(ctx, "cust-1")
	require.NoError(t, err)
	credit, err := f.engine.CustomerCredit(ctx, "cust-1")
	require.NoError(t, err)
	spending, err := f.engine.CustomerSpending(ctx, "cust-1")
	require.NoError(t, err)

	assert.True(t, qty("30").Equal(debt), "debt %s", debt)
	assert.True(t, qty("20").Equal(credit), "credit %s", credit)
	assert.True(t, qty("100").Equal(spending), "spending %s", spending)
}

func TestCustomerReferralCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.PutCustomer(ctx, core.Customer{ID: "cust-1", Code: "C001", Name: "Mario"}))
	require.NoError(t, f.store.PutCustomer(ctx, core.Customer{ID: "cust-2", Code: "C002", Name: "Luigi", ReferredBy: "cust-1"}))
	require.NoError(t, f.store.PutCustomer(ctx, core.Customer{ID: "cust-3", Code: "C003", Name: "Peach", ReferredBy: "cust-1"}))

	n, err := f.engine.CustomerReferralCount(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCustomerMetrics_EmptyIDIsZero(t *testing.T) {
	f := newFixture(t)
	debt, err := f.engine.CustomerDebt(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, debt.IsZero())
}
