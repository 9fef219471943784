/*
replay.go - Derived metrics computed by replaying the transaction log

PURPOSE:
  Every stock level, cash balance, debt position and customer figure is
  recomputed on demand by a single-pass fold over the full transaction
  collection. Nothing incremental is persisted; recomputation IS the
  consistency mechanism. Editing or deleting a transaction retroactively
  changes every balance as of its date, on the next read.

COMMON SHAPE:
  1. Load all transactions with date <= now (future-dated rows never count).
  2. Optionally resolve TransactionType flags (transforms_state).
  3. Fold an unordered accumulator over the filtered set.
  4. Round money to 2dp; clamp mass at zero.

FAILURE SEMANTICS:
  - An empty target id means "not applicable": the metric's zero value is
    returned without error.
  - Genuine storage failures always propagate to the caller.

SEE ALSO:
  - summary.go: the per-state warehouse drill-down and withdrawal strategy
  - catalog.go: the write side feeding this log
*/
package core

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine computes derived metrics against an injected store handle.
type Engine struct {
	Store      Store
	Clock      Clock
	Withdrawal WithdrawalStrategy
}

func NewEngine(store Store) *Engine {
	return &Engine{
		Store:      store,
		Clock:      SystemClock,
		Withdrawal: ProportionalWithdrawal{},
	}
}

func (e *Engine) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}

// ledger returns every transaction dated at or before now.
func (e *Engine) ledger(ctx context.Context) ([]Transaction, error) {
	all, err := e.Store.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	now := e.now()
	txs := all[:0:0]
	for _, t := range all {
		if !t.Date.After(now) {
			txs = append(txs, t)
		}
	}
	return txs, nil
}

// transformTypes returns the set of transaction types with transforms_state.
func (e *Engine) transformTypes(ctx context.Context) (map[TransactionTypeID]bool, error) {
	types, err := e.Store.ListTransactionTypes(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[TransactionTypeID]bool)
	for _, tt := range types {
		if tt.TransformsState {
			out[tt.ID] = true
		}
	}
	return out, nil
}

// =============================================================================
// STOCK METRICS
// =============================================================================

// StockByWarehouse computes the quantity held at a warehouse, optionally
// filtered to one product. An internal state transformation (type with
// transforms_state, from == to == target) changes no net quantity there
// and is skipped entirely. Result is clamped at zero.
func (e *Engine) StockByWarehouse(ctx context.Context, warehouseID WarehouseID, productID ProductID) (decimal.Decimal, error) {
	if warehouseID == "" {
		return decimal.Zero, nil
	}
	total, err := e.rawStockByWarehouse(ctx, warehouseID, productID)
	if err != nil {
		return decimal.Zero, err
	}
	return ClampMass(total), nil
}

// StockDeficit is a diagnostic: it returns the unclamped warehouse total,
// which goes negative when more was withdrawn than deposited. It never
// replaces the clamped default.
func (e *Engine) StockDeficit(ctx context.Context, warehouseID WarehouseID, productID ProductID) (decimal.Decimal, error) {
	if warehouseID == "" {
		return decimal.Zero, nil
	}
	return e.rawStockByWarehouse(ctx, warehouseID, productID)
}

func (e *Engine) rawStockByWarehouse(ctx context.Context, warehouseID WarehouseID, productID ProductID) (decimal.Decimal, error) {
	txs, err := e.ledger(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	transforms, err := e.transformTypes(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, t := range txs {
		if t.Quantity.IsZero() {
			continue
		}
		if productID != "" && t.ProductID != productID {
			continue
		}
		if transforms[t.TypeID] && t.FromWarehouseID == warehouseID && t.ToWarehouseID == warehouseID {
			continue
		}
		if t.ToWarehouseID == warehouseID {
			total = total.Add(t.Quantity)
		}
		if t.FromWarehouseID == warehouseID {
			total = total.Sub(t.Quantity)
		}
	}
	return total, nil
}

// StockByProduct computes a product's quantity across all warehouses.
// The internal-transformation exception does not apply here: a transform
// adds and subtracts at the same warehouse and nets to zero on its own.
func (e *Engine) StockByProduct(ctx context.Context, productID ProductID) (decimal.Decimal, error) {
	if productID == "" {
		return decimal.Zero, nil
	}
	txs, err := e.ledger(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, t := range txs {
		if t.ProductID != productID || t.Quantity.IsZero() {
			continue
		}
		if t.ToWarehouseID != "" {
			total = total.Add(t.Quantity)
		}
		if t.FromWarehouseID != "" {
			total = total.Sub(t.Quantity)
		}
	}
	return ClampMass(total), nil
}

// StockByEntityAndProduct sums the per-warehouse stock over every warehouse
// owned by the entity.
func (e *Engine) StockByEntityAndProduct(ctx context.Context, entityID EntityID, productID ProductID) (decimal.Decimal, error) {
	if entityID == "" {
		return decimal.Zero, nil
	}
	warehouses, err := e.Store.WarehousesByEntity(ctx, entityID)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, w := range warehouses {
		s, err := e.StockByWarehouse(ctx, w.ID, productID)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(s)
	}
	return total, nil
}

// =============================================================================
// PORTFOLIO BALANCE
// =============================================================================

// PortfolioBalance carries three parallel running totals plus the tracked
// bancomat flow, which is deliberately excluded from Balance. None of the
// totals is clamped; cash accounts go negative.
type PortfolioBalance struct {
	PortfolioID PortfolioID

	// Balance sums every payment method except bancomat.
	Balance decimal.Decimal

	// CashBalance sums only payment_method = cash.
	CashBalance decimal.Decimal

	// DebtBalance sums only pending debt rows.
	DebtBalance decimal.Decimal

	// BancomatTotal is tracked for display but never part of Balance.
	BancomatTotal decimal.Decimal
}

func (b PortfolioBalance) rounded() PortfolioBalance {
	b.Balance = RoundMoney(b.Balance)
	b.CashBalance = RoundMoney(b.CashBalance)
	b.DebtBalance = RoundMoney(b.DebtBalance)
	b.BancomatTotal = RoundMoney(b.BancomatTotal)
	return b
}

// applyPortfolioTx applies one transaction's effect on a balance snapshot.
// A row matching the portfolio on both sides (shouldn't normally happen)
// applies both effects independently.
func applyPortfolioTx(b PortfolioBalance, t Transaction, id PortfolioID) PortfolioBalance {
	if t.ToPortfolioID == id {
		if t.PaymentMethod == PaymentBancomat {
			b.BancomatTotal = b.BancomatTotal.Add(t.Amount)
		} else {
			b.Balance = b.Balance.Add(t.Amount)
		}
		if t.PaymentMethod == PaymentCash {
			b.CashBalance = b.CashBalance.Add(t.Amount)
		}
		if t.IsPendingDebt() {
			b.DebtBalance = b.DebtBalance.Add(t.Amount)
		}
	}
	if t.FromPortfolioID == id {
		if t.PaymentMethod == PaymentBancomat {
			b.BancomatTotal = b.BancomatTotal.Sub(t.Amount)
		} else {
			b.Balance = b.Balance.Sub(t.Amount)
		}
		if t.PaymentMethod == PaymentCash {
			b.CashBalance = b.CashBalance.Sub(t.Amount)
		}
		if t.IsPendingDebt() {
			b.DebtBalance = b.DebtBalance.Sub(t.Amount)
		}
	}
	return b
}

// PortfolioBalance folds every transaction touching the portfolio.
func (e *Engine) PortfolioBalance(ctx context.Context, id PortfolioID) (PortfolioBalance, error) {
	balance := PortfolioBalance{PortfolioID: id}
	if id == "" {
		return balance, nil
	}
	txs, err := e.ledger(ctx)
	if err != nil {
		return PortfolioBalance{PortfolioID: id}, err
	}
	for _, t := range txs {
		balance = applyPortfolioTx(balance, t, id)
	}
	return balance.rounded(), nil
}

// PreviewBalance returns the balance as if one hypothetical transaction
// were applied to the snapshot. Pure; used by the UI to preview impact
// before commit. Applies exactly the fold rules of PortfolioBalance.
func PreviewBalance(current PortfolioBalance, t Transaction) PortfolioBalance {
	return applyPortfolioTx(current, t, current.PortfolioID).rounded()
}

// =============================================================================
// INTER-ENTITY DEBT
// =============================================================================

// PairBalance is the pending-debt position between two entities, seen from
// the second entity's side: Credits flow first -> second, Debts flow
// second -> first, Net = Credits - Debts.
type PairBalance struct {
	Credits decimal.Decimal
	Debts   decimal.Decimal
	Net     decimal.Decimal
}

// PairNetBalance scans only pending debt rows whose portfolios resolve to
// the two entities' owned portfolios. Either entity missing, or either
// side owning no portfolio, yields the all-zero result.
func (e *Engine) PairNetBalance(ctx context.Context, first, second EntityID) (PairBalance, error) {
	var zero PairBalance
	if first == "" || second == "" {
		return zero, nil
	}

	firstSet, err := e.portfolioSet(ctx, first)
	if err != nil {
		return zero, err
	}
	secondSet, err := e.portfolioSet(ctx, second)
	if err != nil {
		return zero, err
	}
	if len(firstSet) == 0 || len(secondSet) == 0 {
		return zero, nil
	}

	txs, err := e.ledger(ctx)
	if err != nil {
		return zero, err
	}

	var b PairBalance
	for _, t := range txs {
		if !t.IsPendingDebt() {
			continue
		}
		switch {
		case firstSet[t.FromPortfolioID] && secondSet[t.ToPortfolioID]:
			b.Credits = b.Credits.Add(t.Amount)
		case secondSet[t.FromPortfolioID] && firstSet[t.ToPortfolioID]:
			b.Debts = b.Debts.Add(t.Amount)
		}
	}
	b.Credits = RoundMoney(b.Credits)
	b.Debts = RoundMoney(b.Debts)
	b.Net = RoundMoney(b.Credits.Sub(b.Debts))
	return b, nil
}

func (e *Engine) portfolioSet(ctx context.Context, entityID EntityID) (map[PortfolioID]bool, error) {
	portfolios, err := e.Store.PortfoliosByEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	set := make(map[PortfolioID]bool, len(portfolios))
	for _, p := range portfolios {
		set[p.ID] = true
	}
	return set, nil
}

// CompanyBalance preserves the original two-party Driplug/Meetdrip view.
type CompanyBalance struct {
	MeetdripCredits decimal.Decimal
	MeetdripDebts   decimal.Decimal
	NetBalance      decimal.Decimal
}

// CompanyNetBalance resolves the two counterparties by case-insensitive
// name substring and delegates to the pairwise computation. Kept as the
// verification surface for the historical two-company setup.
func (e *Engine) CompanyNetBalance(ctx context.Context) (CompanyBalance, error) {
	var zero CompanyBalance
	driplug, err := e.findEntityByName(ctx, "driplug")
	if err != nil {
		return zero, err
	}
	meetdrip, err := e.findEntityByName(ctx, "meetdrip")
	if err != nil {
		return zero, err
	}
	if driplug == nil || meetdrip == nil {
		return zero, nil
	}

	pair, err := e.PairNetBalance(ctx, driplug.ID, meetdrip.ID)
	if err != nil {
		return zero, err
	}
	return CompanyBalance{
		MeetdripCredits: pair.Credits,
		MeetdripDebts:   pair.Debts,
		NetBalance:      pair.Net,
	}, nil
}

func (e *Engine) findEntityByName(ctx context.Context, substr string) (*Entity, error) {
	entities, err := e.Store.ListEntities(ctx)
	if err != nil {
		return nil, err
	}
	for i := range entities {
		if strings.Contains(strings.ToLower(entities[i].Name), substr) {
			return &entities[i], nil
		}
	}
	return nil, nil
}

// =============================================================================
// CUSTOMER METRICS
// =============================================================================

// CustomerDebt sums the customer's still-pending debt rows.
func (e *Engine) CustomerDebt(ctx context.Context, id CustomerID) (decimal.Decimal, error) {
	return e.foldCustomer(ctx, id, func(t Transaction) bool {
		return t.IsDebt && t.DebtStatus == DebtPending
	})
}

// CustomerCredit sums the customer's settled debt rows.
func (e *Engine) CustomerCredit(ctx context.Context, id CustomerID) (decimal.Decimal, error) {
	return e.foldCustomer(ctx, id, func(t Transaction) bool {
		return t.IsDebt && t.DebtStatus == DebtPaid
	})
}

// CustomerSpending sums every positive amount on the customer's rows.
func (e *Engine) CustomerSpending(ctx context.Context, id CustomerID) (decimal.Decimal, error) {
	return e.foldCustomer(ctx, id, func(t Transaction) bool {
		return t.Amount.IsPositive()
	})
}

func (e *Engine) foldCustomer(ctx context.Context, id CustomerID, match func(Transaction) bool) (decimal.Decimal, error) {
	if id == "" {
		return decimal.Zero, nil
	}
	txs, err := e.ledger(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, t := range txs {
		if t.CustomerID != id || !match(t) {
			continue
		}
		total = total.Add(t.Amount)
	}
	return RoundMoney(total), nil
}

// CustomerReferralCount counts customers whose referred_by points here.
func (e *Engine) CustomerReferralCount(ctx context.Context, id CustomerID) (int, error) {
	if id == "" {
		return 0, nil
	}
	referred, err := e.Store.CustomersReferredBy(ctx, id)
	if err != nil {
		return 0, err
	}
	return len(referred), nil
}
