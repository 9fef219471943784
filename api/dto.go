/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  Money and mass are serialized as decimal strings ("12.50"), never
  floats. Clients must not parse them into binary floating point.

VALIDATION:
  Validation is done in core/catalog.go, not in DTOs. DTOs are pure data
  carriers; the handlers only translate shapes.

SEE ALSO:
  - handlers.go: Uses these types
  - core/types.go: domain model these map from
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/driplug/registro/core"
)

// =============================================================================
// MASTER DATA
// =============================================================================

type ProductTypeDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type ProductTypeRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type ProductDTO struct {
	ID           string          `json:"id"`
	Code         string          `json:"code"`
	TypeID       string          `json:"tipo_id,omitempty"`
	Strain       string          `json:"strain"`
	Note         string          `json:"note,omitempty"`
	Active       bool            `json:"active"`
	PricePerGram decimal.Decimal `json:"price_per_gram"`
}

type ProductRequest struct {
	TypeID       string          `json:"tipo_id"`
	Strain       string          `json:"strain"`
	Note         string          `json:"note"`
	PricePerGram decimal.Decimal `json:"price_per_gram"`
}

type SetActiveRequest struct {
	Active bool `json:"active"`
}

type EntityDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type EntityRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type WarehouseDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	EntityID    string `json:"entity_id"`
}

type WarehouseRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	EntityID    string `json:"entity_id"`
}

type PortfolioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	EntityID    string `json:"entity_id"`
}

type PortfolioRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	EntityID    string `json:"entity_id"`
}

type CustomerDTO struct {
	ID            string `json:"id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	Notes         string `json:"notes,omitempty"`
	IsReferral    bool   `json:"is_referral"`
	ReferralColor string `json:"referral_color,omitempty"`
	ReferredBy    string `json:"referred_by,omitempty"`
}

type CustomerRequest struct {
	Name          string `json:"name"`
	Notes         string `json:"notes"`
	IsReferral    bool   `json:"is_referral"`
	ReferralColor string `json:"referral_color"`
	ReferredBy    string `json:"referred_by"`
}

type TransactionTypeDTO struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Description      string            `json:"description,omitempty"`
	AffectsWarehouse bool              `json:"affects_warehouse"`
	AffectsPortfolio bool              `json:"affects_portfolio"`
	PaymentKind      string            `json:"payment_kind,omitempty"`
	TransformsState  bool              `json:"transforms_state"`
	CustomFields     map[string]string `json:"custom_fields,omitempty"`
}

type TransactionTypeRequest struct {
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	AffectsWarehouse bool              `json:"affects_warehouse"`
	AffectsPortfolio bool              `json:"affects_portfolio"`
	PaymentKind      string            `json:"payment_kind"`
	TransformsState  bool              `json:"transforms_state"`
	CustomFields     map[string]string `json:"custom_fields"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type TransactionDTO struct {
	ID              string            `json:"id"`
	TypeID          string            `json:"type_id"`
	Date            string            `json:"date"`
	ProductID       string            `json:"product_id,omitempty"`
	Quantity        decimal.Decimal   `json:"quantity"`
	FromWarehouseID string            `json:"from_warehouse_id,omitempty"`
	ToWarehouseID   string            `json:"to_warehouse_id,omitempty"`
	ProductState    string            `json:"product_state,omitempty"`
	FromPortfolioID string            `json:"from_portfolio_id,omitempty"`
	ToPortfolioID   string            `json:"to_portfolio_id,omitempty"`
	Amount          decimal.Decimal   `json:"amount"`
	PaymentMethod   string            `json:"payment_method,omitempty"`
	IsDebt          bool              `json:"is_debt"`
	DebtStatus      string            `json:"debt_status,omitempty"`
	DebtPaidDate    string            `json:"debt_paid_date,omitempty"`
	CustomerID      string            `json:"customer_id,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

type TransactionRequest struct {
	TypeID          string            `json:"type_id"`
	Date            string            `json:"date"`
	ProductID       string            `json:"product_id"`
	Quantity        decimal.Decimal   `json:"quantity"`
	FromWarehouseID string            `json:"from_warehouse_id"`
	ToWarehouseID   string            `json:"to_warehouse_id"`
	ProductState    string            `json:"product_state"`
	FromPortfolioID string            `json:"from_portfolio_id"`
	ToPortfolioID   string            `json:"to_portfolio_id"`
	Amount          decimal.Decimal   `json:"amount"`
	PaymentMethod   string            `json:"payment_method"`
	IsDebt          bool              `json:"is_debt"`
	CustomerID      string            `json:"customer_id"`
	Notes           string            `json:"notes"`
	Metadata        map[string]string `json:"metadata"`
}

type SettleDebtRequest struct {
	PaidDate string `json:"paid_date"` // YYYY-MM-DD, defaults to today
}

// =============================================================================
// DERIVED METRICS
// =============================================================================

type StockDTO struct {
	WarehouseID string          `json:"warehouse_id,omitempty"`
	EntityID    string          `json:"entity_id,omitempty"`
	ProductID   string          `json:"product_id,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
}

type PortfolioBalanceDTO struct {
	PortfolioID   string          `json:"portfolio_id"`
	Balance       decimal.Decimal `json:"balance"`
	CashBalance   decimal.Decimal `json:"cash_balance"`
	DebtBalance   decimal.Decimal `json:"debt_balance"`
	BancomatTotal decimal.Decimal `json:"bancomat_total"`
}

type PairBalanceDTO struct {
	FirstEntityID  string          `json:"first_entity_id"`
	SecondEntityID string          `json:"second_entity_id"`
	Credits        decimal.Decimal `json:"credits"`
	Debts          decimal.Decimal `json:"debts"`
	Net            decimal.Decimal `json:"net"`
}

type CompanyBalanceDTO struct {
	MeetdripCredits decimal.Decimal `json:"meetdrip_credits"`
	MeetdripDebts   decimal.Decimal `json:"meetdrip_debts"`
	NetBalance      decimal.Decimal `json:"net_balance"`
}

type CustomerBalanceDTO struct {
	CustomerID    string          `json:"customer_id"`
	Debt          decimal.Decimal `json:"debt"`
	Credit        decimal.Decimal `json:"credit"`
	Spending      decimal.Decimal `json:"spending"`
	ReferralCount int             `json:"referral_count"`
}

type ProductStockDTO struct {
	Product  ProductDTO      `json:"product"`
	Quantity decimal.Decimal `json:"quantity"`
	Raw      decimal.Decimal `json:"raw"`
	Cured    decimal.Decimal `json:"cured"`
	Value    decimal.Decimal `json:"value"`
}

type WarehouseSummaryDTO struct {
	WarehouseID     string            `json:"warehouse_id"`
	TotalStock      decimal.Decimal   `json:"total_stock"`
	TotalValue      decimal.Decimal   `json:"total_value"`
	ProductsInStock int               `json:"products_in_stock"`
	Products        []ProductStockDTO `json:"products"`
}

type RebuildReportDTO struct {
	Preserved int `json:"preserved"`
	Lost      int `json:"lost"`
}

type SchemaVersionDTO struct {
	Version int `json:"version"`
	Latest  int `json:"latest"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error    string       `json:"error"`
	Details  string       `json:"details,omitempty"`
	Blockers []BlockerDTO `json:"blockers,omitempty"`
}

type BlockerDTO struct {
	Collection string `json:"collection"`
	Count      int    `json:"count"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toProductDTO(p core.Product) ProductDTO {
	return ProductDTO{
		ID:           string(p.ID),
		Code:         p.Code,
		TypeID:       string(p.TypeID),
		Strain:       p.Strain,
		Note:         p.Note,
		Active:       p.Active,
		PricePerGram: p.PricePerGram,
	}
}

func toCustomerDTO(c core.Customer) CustomerDTO {
	return CustomerDTO{
		ID:            string(c.ID),
		Code:          c.Code,
		Name:          c.Name,
		Notes:         c.Notes,
		IsReferral:    c.IsReferral,
		ReferralColor: string(c.ReferralColor),
		ReferredBy:    string(c.ReferredBy),
	}
}

func toTransactionTypeDTO(tt core.TransactionType) TransactionTypeDTO {
	return TransactionTypeDTO{
		ID:               string(tt.ID),
		Name:             tt.Name,
		Description:      tt.Description,
		AffectsWarehouse: tt.AffectsWarehouse,
		AffectsPortfolio: tt.AffectsPortfolio,
		PaymentKind:      string(tt.PaymentKind),
		TransformsState:  tt.TransformsState,
		CustomFields:     tt.CustomFields,
	}
}

func toTransactionDTO(t core.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:              string(t.ID),
		TypeID:          string(t.TypeID),
		Date:            t.Date.Format(time.RFC3339),
		ProductID:       string(t.ProductID),
		Quantity:        t.Quantity,
		FromWarehouseID: string(t.FromWarehouseID),
		ToWarehouseID:   string(t.ToWarehouseID),
		ProductState:    string(t.ProductState),
		FromPortfolioID: string(t.FromPortfolioID),
		ToPortfolioID:   string(t.ToPortfolioID),
		Amount:          t.Amount,
		PaymentMethod:   string(t.PaymentMethod),
		IsDebt:          t.IsDebt,
		DebtStatus:      string(t.DebtStatus),
		CustomerID:      string(t.CustomerID),
		Notes:           t.Notes,
		Metadata:        t.Metadata,
	}
	if t.DebtPaidDate != nil {
		dto.DebtPaidDate = t.DebtPaidDate.Format(time.RFC3339)
	}
	return dto
}

func fromTransactionRequest(req TransactionRequest) (core.Transaction, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		TypeID:          core.TransactionTypeID(req.TypeID),
		Date:            date,
		ProductID:       core.ProductID(req.ProductID),
		Quantity:        req.Quantity,
		FromWarehouseID: core.WarehouseID(req.FromWarehouseID),
		ToWarehouseID:   core.WarehouseID(req.ToWarehouseID),
		ProductState:    core.ProductState(req.ProductState),
		FromPortfolioID: core.PortfolioID(req.FromPortfolioID),
		ToPortfolioID:   core.PortfolioID(req.ToPortfolioID),
		Amount:          req.Amount,
		PaymentMethod:   core.PaymentMethod(req.PaymentMethod),
		IsDebt:          req.IsDebt,
		CustomerID:      core.CustomerID(req.CustomerID),
		Notes:           req.Notes,
		Metadata:        req.Metadata,
	}, nil
}

func toWarehouseSummaryDTO(s core.WarehouseSummary) WarehouseSummaryDTO {
	dto := WarehouseSummaryDTO{
		WarehouseID:     string(s.WarehouseID),
		TotalStock:      s.TotalStock,
		TotalValue:      s.TotalValue,
		ProductsInStock: s.ProductsInStock,
		Products:        make([]ProductStockDTO, 0, len(s.Products)),
	}
	for _, ps := range s.Products {
		dto.Products = append(dto.Products, ProductStockDTO{
			Product:  toProductDTO(ps.Product),
			Quantity: ps.Quantity,
			Raw:      ps.Raw,
			Cured:    ps.Cured,
			Value:    ps.Value,
		})
	}
	return dto
}

// parseDate accepts either a plain day or a full timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
