/*
summary.go - Warehouse drill-down with per-state buckets

PURPOSE:
  The warehouse view needs more than a quantity: per active product it
  tracks how much is tagged raw and how much cured. Deposits land in the
  tagged bucket; withdrawals have no lot tracking, so which bucket they
  drain is a policy decision behind WithdrawalStrategy.

THE PROPORTIONAL HEURISTIC:
  The default strategy subtracts from each bucket in proportion to its
  current share of the total (all from raw when both buckets are empty).
  This is an approximation, not FIFO or lot tracking - the data model
  simply does not record which lot left. The strategy is pluggable so a
  stricter model can replace it without touching the replay engine.
*/
package core

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATE BUCKETS + WITHDRAWAL STRATEGY
// =============================================================================

// StateBuckets splits a product's warehouse quantity by cure state.
type StateBuckets struct {
	Raw   decimal.Decimal
	Cured decimal.Decimal
}

func (b StateBuckets) Total() decimal.Decimal {
	return b.Raw.Add(b.Cured)
}

func (b StateBuckets) clamp() StateBuckets {
	b.Raw = ClampMass(b.Raw)
	b.Cured = ClampMass(b.Cured)
	return b
}

// WithdrawalStrategy decides which buckets an outgoing quantity drains.
// Implementations must clamp each bucket at zero.
type WithdrawalStrategy interface {
	Withdraw(b StateBuckets, qty decimal.Decimal) StateBuckets
}

// ProportionalWithdrawal subtracts from each bucket proportionally to its
// share of the total; from raw when both buckets are empty.
type ProportionalWithdrawal struct{}

func (ProportionalWithdrawal) Withdraw(b StateBuckets, qty decimal.Decimal) StateBuckets {
	total := b.Total()
	if total.IsZero() {
		b.Raw = b.Raw.Sub(qty)
		return b.clamp()
	}
	rawTake := qty.Mul(b.Raw).Div(total)
	curedTake := qty.Sub(rawTake)
	b.Raw = b.Raw.Sub(rawTake)
	b.Cured = b.Cured.Sub(curedTake)
	return b.clamp()
}

// =============================================================================
// WAREHOUSE SUMMARY
// =============================================================================

// ProductStock is one product's position inside a warehouse summary.
type ProductStock struct {
	Product  Product
	Quantity decimal.Decimal
	Raw      decimal.Decimal
	Cured    decimal.Decimal
	Value    decimal.Decimal // Quantity x PricePerGram, zero without a price
}

// WarehouseSummary aggregates the per-product positions of one warehouse.
type WarehouseSummary struct {
	WarehouseID     WarehouseID
	TotalStock      decimal.Decimal
	TotalValue      decimal.Decimal
	ProductsInStock int
	Products        []ProductStock // descending by quantity
}

// WarehouseSummary replays the log in date order, evolving per-product
// state buckets. A state-transformation row at the same warehouse is a
// withdraw-then-deposit: the net total is unchanged but mass moves into
// the tagged bucket. Only active products participate.
func (e *Engine) WarehouseSummary(ctx context.Context, warehouseID WarehouseID) (WarehouseSummary, error) {
	summary := WarehouseSummary{WarehouseID: warehouseID}
	if warehouseID == "" {
		return summary, nil
	}

	products, err := e.Store.ListProducts(ctx)
	if err != nil {
		return summary, err
	}
	active := make(map[ProductID]Product)
	for _, p := range products {
		if p.Active {
			active[p.ID] = p
		}
	}

	txs, err := e.ledger(ctx)
	if err != nil {
		return summary, err
	}
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Date.Before(txs[j].Date) })

	strategy := e.Withdrawal
	if strategy == nil {
		strategy = ProportionalWithdrawal{}
	}

	buckets := make(map[ProductID]StateBuckets)
	for _, t := range txs {
		if t.Quantity.IsZero() {
			continue
		}
		if _, ok := active[t.ProductID]; !ok {
			continue
		}
		b := buckets[t.ProductID]
		if t.FromWarehouseID == warehouseID {
			b = strategy.Withdraw(b, t.Quantity)
		}
		if t.ToWarehouseID == warehouseID {
			if t.State() == StateCured {
				b.Cured = b.Cured.Add(t.Quantity)
			} else {
				b.Raw = b.Raw.Add(t.Quantity)
			}
		}
		buckets[t.ProductID] = b
	}

	for id, b := range buckets {
		qty := b.Total()
		if !qty.IsPositive() {
			continue
		}
		p := active[id]
		ps := ProductStock{
			Product:  p,
			Quantity: qty,
			Raw:      b.Raw,
			Cured:    b.Cured,
		}
		if p.PricePerGram.IsPositive() {
			ps.Value = RoundMoney(qty.Mul(p.PricePerGram))
		}
		summary.Products = append(summary.Products, ps)
		summary.TotalStock = summary.TotalStock.Add(qty)
		summary.TotalValue = summary.TotalValue.Add(ps.Value)
		summary.ProductsInStock++
	}

	sort.Slice(summary.Products, func(i, j int) bool {
		return summary.Products[i].Quantity.GreaterThan(summary.Products[j].Quantity)
	})
	summary.TotalValue = RoundMoney(summary.TotalValue)
	return summary, nil
}
