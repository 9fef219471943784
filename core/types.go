/*
Package core provides the derived-state engine for the registro application.

PURPOSE:
  Everything persistent is master data plus a flat transaction log. Stock
  levels, portfolio balances, inter-entity debt and customer balances are
  never stored - they are recomputed on every read by folding over the
  transaction log. This package holds the domain types, the replay engine,
  the write-side catalog (validation and referential integrity) and the
  human-readable code generator.

KEY CONCEPTS IN THIS FILE (types.go):
  - Master data rows: ProductType, Product, Entity, Warehouse, Portfolio,
    Customer, TransactionType
  - Transaction: the ledger row, sole source of truth for derived values
  - Stock/StockMovement: legacy collections, kept for compatibility, not
    authoritative

DESIGN PRINCIPLES:
  1. Replay over materialization: edits and deletes retroactively change
     every derived balance as of their date; recomputation is the
     consistency mechanism.
  2. Precision: decimal.Decimal for all money (euro, 2dp) and mass (grams).
  3. Type safety: distinct string types for every id family.
  4. Optional references are empty strings; the engine treats an empty
     target as "not applicable" and returns the metric's zero value.

SEE ALSO:
  - replay.go: metric folds over the transaction log
  - catalog.go: validated writes and referential integrity
  - store.go: persistence interface
*/
package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	ProductTypeID     string
	ProductID         string
	EntityID          string
	WarehouseID       string
	PortfolioID       string
	CustomerID        string
	TransactionTypeID string
	TransactionID     string
)

// =============================================================================
// ENUMERATIONS
// =============================================================================

// Color tags product types and referral customers. Fixed palette of five.
type Color string

const (
	ColorGreen  Color = "green"
	ColorBlue   Color = "blue"
	ColorRed    Color = "red"
	ColorYellow Color = "yellow"
	ColorPurple Color = "purple"
)

var Colors = []Color{ColorGreen, ColorBlue, ColorRed, ColorYellow, ColorPurple}

func ValidColor(c Color) bool {
	for _, v := range Colors {
		if v == c {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentBancomat PaymentMethod = "bancomat"
	PaymentDebito   PaymentMethod = "debito"
)

// PaymentKind is declared on a TransactionType, not on single transactions.
type PaymentKind string

const (
	PaymentKindMonthly PaymentKind = "monthly"
	PaymentKindInstant PaymentKind = "instant"
)

type DebtStatus string

const (
	DebtPending DebtStatus = "pending"
	DebtPaid    DebtStatus = "paid"
)

type ProductState string

const (
	StateRaw   ProductState = "raw"
	StateCured ProductState = "cured"
)

// =============================================================================
// MASTER DATA
// =============================================================================

// ProductType categorizes products. Name is unique case-insensitively.
// Deleting a type does not cascade: products keep the dangling reference.
type ProductType struct {
	ID    ProductTypeID
	Name  string
	Color Color
}

// Product carries both a uuid primary key (ID) and a generated
// human-readable code ("P" + 3 digits, unique).
type Product struct {
	ID           ProductID
	Code         string
	TypeID       ProductTypeID
	Strain       string
	Note         string
	Active       bool
	PricePerGram decimal.Decimal // fixed acquisition cost, zero when unset
}

// Entity is a business unit. By convention it owns exactly one warehouse
// and one portfolio; the pairing is maintained by the caller, not enforced
// here.
type Entity struct {
	ID          EntityID
	Name        string
	Description string
}

type Warehouse struct {
	ID          WarehouseID
	Name        string
	Description string
	EntityID    EntityID
}

type Portfolio struct {
	ID          PortfolioID
	Name        string
	Description string
	EntityID    EntityID
}

// Customer name is unique case-insensitively. ReferredBy forms a forest;
// cycles are not detected (matching current behavior).
type Customer struct {
	ID            CustomerID
	Code          string
	Name          string
	Notes         string
	IsReferral    bool
	ReferralColor Color
	ReferredBy    CustomerID
}

// TransactionType declares which side-effects a transaction of this type
// has when replayed.
type TransactionType struct {
	ID               TransactionTypeID
	Name             string
	Description      string
	AffectsWarehouse bool
	AffectsPortfolio bool
	PaymentKind      PaymentKind
	TransformsState  bool
	CustomFields     map[string]string
}

// =============================================================================
// TRANSACTION - The ledger row
// =============================================================================

// Transaction is the sole source of truth for every derived balance.
// All reference fields are optional (empty = absent). Rows are mutable in
// storage - an edit simply re-persists the row and every metric is
// recomputed from the full set on the next read.
type Transaction struct {
	ID     TransactionID
	TypeID TransactionTypeID
	Date   time.Time

	// Inventory side
	ProductID       ProductID
	Quantity        decimal.Decimal // grams; direction comes from the warehouse fields
	FromWarehouseID WarehouseID
	ToWarehouseID   WarehouseID
	ProductState    ProductState // raw|cured; empty defaults to raw on replay

	// Cash side
	FromPortfolioID PortfolioID
	ToPortfolioID   PortfolioID
	Amount          decimal.Decimal // currency
	PaymentMethod   PaymentMethod

	// Debt lifecycle: pending -> paid, one-directional
	IsDebt       bool
	DebtStatus   DebtStatus
	DebtPaidDate *time.Time

	CustomerID CustomerID
	Notes      string
	Metadata   map[string]string
}

// HasQuantity reports whether the row carries an inventory movement.
func (t Transaction) HasQuantity() bool {
	return !t.Quantity.IsZero() && (t.FromWarehouseID != "" || t.ToWarehouseID != "")
}

// IsPendingDebt reports whether the row still contributes to debt balances.
func (t Transaction) IsPendingDebt() bool {
	return t.IsDebt && t.DebtStatus == DebtPending
}

// State returns the tagged product state, defaulting to raw.
func (t Transaction) State() ProductState {
	if t.ProductState == StateCured {
		return StateCured
	}
	return StateRaw
}

// =============================================================================
// LEGACY COLLECTIONS - superseded by replay, kept for compatibility
// =============================================================================

// Stock is the legacy per-warehouse snapshot. Not authoritative; it only
// matters as a referential-integrity dependency when deleting products.
type Stock struct {
	ID          string
	ProductID   ProductID
	WarehouseID WarehouseID
	Quantity    decimal.Decimal
}

// StockMovement is the legacy movement journal. Not authoritative.
type StockMovement struct {
	ID          string
	ProductID   ProductID
	WarehouseID WarehouseID
	Quantity    decimal.Decimal
	Date        time.Time
	Note        string
}

// =============================================================================
// CLOCK
// =============================================================================

// Clock supplies "now". Transactions dated after now are excluded from
// every derived balance. Injectable for tests.
type Clock func() time.Time

func SystemClock() time.Time { return time.Now() }
