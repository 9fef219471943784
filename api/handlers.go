/*
handlers.go - HTTP API handlers for the registro application

PURPOSE:
  Exposes the catalog (writes) and the replay engine (derived metrics)
  via REST. Handles HTTP request/response, JSON serialization, and
  delegates everything else to the core package.

ENDPOINTS:
  Master data:
    GET/POST       /api/product-types           + PUT/DELETE /{id}
    GET/POST       /api/products                + GET/PUT/DELETE /{id}
    PUT            /api/products/{id}/active    Soft enable/disable
    GET/POST       /api/entities                + PUT/DELETE /{id}
    GET/POST       /api/warehouses              + DELETE /{id}
    GET/POST       /api/portfolios              + DELETE /{id}
    GET/POST       /api/customers               + PUT/DELETE /{id}
    GET/POST       /api/transaction-types       + DELETE /{id}

  Ledger:
    GET/POST       /api/transactions            + GET/PUT/DELETE /{id}
    POST           /api/transactions/{id}/settle  Debt pending -> paid

  Derived metrics (computed fresh on every call):
    GET /api/warehouses/{id}/stock?product_id=   Clamped quantity
    GET /api/warehouses/{id}/deficit?product_id= Unclamped diagnostic
    GET /api/warehouses/{id}/summary             Per-product state buckets
    GET /api/products/{id}/stock                 Across all warehouses
    GET /api/entities/{id}/stock?product_id=     Across owned warehouses
    GET /api/portfolios/{id}/balance             Four running totals
    POST /api/portfolios/{id}/balance/preview    Hypothetical transaction
    GET /api/balances/pair?first=&second=        Pending debt between entities
    GET /api/balances/company                    Historical two-company view
    GET /api/customers/{id}/balance              Debt/credit/spending/referrals

  Admin:
    GET  /api/admin/schema                       Stored vs latest version
    POST /api/admin/rebuild                      Destructive recovery

ERROR HANDLING:
  One translation point (writeDomainError) maps the core error taxonomy
  to HTTP statuses:
  - 400: validation errors
  - 404: not found
  - 409: referential-integrity conflicts (with blocker details)
  - 503: code-space exhaustion (client may retry)
  - 500: storage and migration failures

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/driplug/registro/core"
	"github.com/driplug/registro/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Maintenance is the optional schema-administration surface. The SQLite
// store implements it; the in-memory store does not, and the admin
// endpoints then report 501.
type Maintenance interface {
	SchemaVersion(ctx context.Context) (int, error)
	Rebuild(ctx context.Context) (sqlite.RebuildReport, error)
}

// Handler holds all dependencies for HTTP handlers. The store handle is
// injected; there is no package-level database.
type Handler struct {
	Catalog *core.Catalog
	Engine  *core.Engine
	Maint   Maintenance
}

// NewHandler wires the catalog and engine around one store handle.
func NewHandler(store core.Store, maint Maintenance) *Handler {
	return &Handler{
		Catalog: core.NewCatalog(store),
		Engine:  core.NewEngine(store),
		Maint:   maint,
	}
}

func (h *Handler) store() core.Store { return h.Catalog.Store }

// =============================================================================
// PRODUCT TYPES
// =============================================================================

func (h *Handler) ListProductTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.store().ListProductTypes(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]ProductTypeDTO, 0, len(types))
	for _, pt := range types {
		dtos = append(dtos, ProductTypeDTO{ID: string(pt.ID), Name: pt.Name, Color: string(pt.Color)})
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateProductType(w http.ResponseWriter, r *http.Request) {
	var req ProductTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	pt, err := h.Catalog.CreateProductType(r.Context(), core.ProductType{
		Name:  req.Name,
		Color: core.Color(req.Color),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ProductTypeDTO{ID: string(pt.ID), Name: pt.Name, Color: string(pt.Color)})
}

func (h *Handler) UpdateProductType(w http.ResponseWriter, r *http.Request) {
	var req ProductTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	pt := core.ProductType{
		ID:    core.ProductTypeID(chi.URLParam(r, "id")),
		Name:  req.Name,
		Color: core.Color(req.Color),
	}
	if err := h.Catalog.UpdateProductType(r.Context(), pt); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ProductTypeDTO{ID: string(pt.ID), Name: pt.Name, Color: string(pt.Color)})
}

func (h *Handler) DeleteProductType(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.DeleteProductType(r.Context(), core.ProductTypeID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PRODUCTS
// =============================================================================

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.store().ListProducts(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	// ?active=true narrows to selectable products
	activeOnly := r.URL.Query().Get("active") == "true"
	dtos := make([]ProductDTO, 0, len(products))
	for _, p := range products {
		if activeOnly && !p.Active {
			continue
		}
		dtos = append(dtos, toProductDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Catalog.GetProduct(r.Context(), core.ProductID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(p))
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	p, err := h.Catalog.CreateProduct(r.Context(), core.Product{
		TypeID:       core.ProductTypeID(req.TypeID),
		Strain:       req.Strain,
		Note:         req.Note,
		PricePerGram: req.PricePerGram,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(p))
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := core.ProductID(chi.URLParam(r, "id"))
	existing, err := h.Catalog.GetProduct(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	existing.TypeID = core.ProductTypeID(req.TypeID)
	existing.Strain = req.Strain
	existing.Note = req.Note
	existing.PricePerGram = req.PricePerGram

	if err := h.Catalog.UpdateProduct(r.Context(), existing); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(existing))
}

func (h *Handler) SetProductActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	id := core.ProductID(chi.URLParam(r, "id"))
	if err := h.Catalog.SetProductActive(r.Context(), id, req.Active); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": string(id), "active": req.Active})
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.DeleteProduct(r.Context(), core.ProductID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetProductStock returns the product's quantity across all warehouses.
func (h *Handler) GetProductStock(w http.ResponseWriter, r *http.Request) {
	id := core.ProductID(chi.URLParam(r, "id"))
	qty, err := h.Engine.StockByProduct(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StockDTO{ProductID: string(id), Quantity: qty})
}

// =============================================================================
// ENTITIES
// =============================================================================

func (h *Handler) ListEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := h.store().ListEntities(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]EntityDTO, 0, len(entities))
	for _, e := range entities {
		dtos = append(dtos, EntityDTO{ID: string(e.ID), Name: e.Name, Description: e.Description})
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateEntity(w http.ResponseWriter, r *http.Request) {
	var req EntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	e, err := h.Catalog.CreateEntity(r.Context(), core.Entity{Name: req.Name, Description: req.Description})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, EntityDTO{ID: string(e.ID), Name: e.Name, Description: e.Description})
}

func (h *Handler) UpdateEntity(w http.ResponseWriter, r *http.Request) {
	var req EntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	e := core.Entity{
		ID:          core.EntityID(chi.URLParam(r, "id")),
		Name:        req.Name,
		Description: req.Description,
	}
	if err := h.Catalog.UpdateEntity(r.Context(), e); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EntityDTO{ID: string(e.ID), Name: e.Name, Description: e.Description})
}

func (h *Handler) DeleteEntity(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.DeleteEntity(r.Context(), core.EntityID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetEntityStock sums stock across every warehouse the entity owns.
func (h *Handler) GetEntityStock(w http.ResponseWriter, r *http.Request) {
	entityID := core.EntityID(chi.URLParam(r, "id"))
	productID := core.ProductID(r.URL.Query().Get("product_id"))
	qty, err := h.Engine.StockByEntityAndProduct(r.Context(), entityID, productID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StockDTO{EntityID: string(entityID), ProductID: string(productID), Quantity: qty})
}

// =============================================================================
// WAREHOUSES
// =============================================================================

func (h *Handler) ListWarehouses(w http.ResponseWriter, r *http.Request) {
	var (
		warehouses []core.Warehouse
		err        error
	)
	if entityID := r.URL.Query().Get("entity_id"); entityID != "" {
		warehouses, err = h.store().WarehousesByEntity(r.Context(), core.EntityID(entityID))
	} else {
		warehouses, err = h.store().ListWarehouses(r.Context())
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]WarehouseDTO, 0, len(warehouses))
	for _, wh := range warehouses {
		dtos = append(dtos, WarehouseDTO{ID: string(wh.ID), Name: wh.Name, Description: wh.Description, EntityID: string(wh.EntityID)})
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateWarehouse(w http.ResponseWriter, r *http.Request) {
	var req WarehouseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	wh, err := h.Catalog.CreateWarehouse(r.Context(), core.Warehouse{
		Name:        req.Name,
		Description: req.Description,
		EntityID:    core.EntityID(req.EntityID),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, WarehouseDTO{ID: string(wh.ID), Name: wh.Name, Description: wh.Description, EntityID: string(wh.EntityID)})
}

func (h *Handler) DeleteWarehouse(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.DeleteWarehouse(r.Context(), core.WarehouseID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetWarehouseStock returns the clamped quantity at a warehouse,
// optionally narrowed to one product.
func (h *Handler) GetWarehouseStock(w http.ResponseWriter, r *http.Request) {
	warehouseID := core.WarehouseID(chi.URLParam(r, "id"))
	productID := core.ProductID(r.URL.Query().Get("product_id"))
	qty, err := h.Engine.StockByWarehouse(r.Context(), warehouseID, productID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StockDTO{WarehouseID: string(warehouseID), ProductID: string(productID), Quantity: qty})
}

// GetWarehouseDeficit returns the unclamped total, negative when more
// left than arrived. Diagnostic only.
func (h *Handler) GetWarehouseDeficit(w http.ResponseWriter, r *http.Request) {
	warehouseID := core.WarehouseID(chi.URLParam(r, "id"))
	productID := core.ProductID(r.URL.Query().Get("product_id"))
	qty, err := h.Engine.StockDeficit(r.Context(), warehouseID, productID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StockDTO{WarehouseID: string(warehouseID), ProductID: string(productID), Quantity: qty})
}

func (h *Handler) GetWarehouseSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Engine.WarehouseSummary(r.Context(), core.WarehouseID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWarehouseSummaryDTO(summary))
}

// =============================================================================
// PORTFOLIOS
// =============================================================================

func (h *Handler) ListPortfolios(w http.ResponseWriter, r *http.Request) {
	var (
		portfolios []core.Portfolio
		err        error
	)
	if entityID := r.URL.Query().Get("entity_id"); entityID != "" {
		portfolios, err = h.store().PortfoliosByEntity(r.Context(), core.EntityID(entityID))
	} else {
		portfolios, err = h.store().ListPortfolios(r.Context())
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]PortfolioDTO, 0, len(portfolios))
	for _, p := range portfolios {
		dtos = append(dtos, PortfolioDTO{ID: string(p.ID), Name: p.Name, Description: p.Description, EntityID: string(p.EntityID)})
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req PortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	p, err := h.Catalog.CreatePortfolio(r.Context(), core.Portfolio{
		Name:        req.Name,
		Description: req.Description,
		EntityID:    core.EntityID(req.EntityID),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, PortfolioDTO{ID: string(p.ID), Name: p.Name, Description: p.Description, EntityID: string(p.EntityID)})
}

func (h *Handler) DeletePortfolio(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.DeletePortfolio(r.Context(), core.PortfolioID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetPortfolioBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.Engine.PortfolioBalance(r.Context(), core.PortfolioID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPortfolioBalanceDTO(balance))
}

// PreviewPortfolioBalance applies one hypothetical transaction to the
// current balance without persisting anything.
func (h *Handler) PreviewPortfolioBalance(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	t, err := fromTransactionRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format", err)
		return
	}

	current, err := h.Engine.PortfolioBalance(r.Context(), core.PortfolioID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPortfolioBalanceDTO(core.PreviewBalance(current, t)))
}

func toPortfolioBalanceDTO(b core.PortfolioBalance) PortfolioBalanceDTO {
	return PortfolioBalanceDTO{
		PortfolioID:   string(b.PortfolioID),
		Balance:       b.Balance,
		CashBalance:   b.CashBalance,
		DebtBalance:   b.DebtBalance,
		BancomatTotal: b.BancomatTotal,
	}
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.store().ListCustomers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]CustomerDTO, 0, len(customers))
	for _, c := range customers {
		dtos = append(dtos, toCustomerDTO(c))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	c, err := h.Catalog.CreateCustomer(r.Context(), core.Customer{
		Name:          req.Name,
		Notes:         req.Notes,
		IsReferral:    req.IsReferral,
		ReferralColor: core.Color(req.ReferralColor),
		ReferredBy:    core.CustomerID(req.ReferredBy),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(c))
}

func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id := core.CustomerID(chi.URLParam(r, "id"))
	existing, err := h.store().GetCustomer(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if existing == nil {
		writeDomainError(w, &core.NotFoundError{Collection: "customers", ID: string(id)})
		return
	}

	var req CustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	existing.Name = req.Name
	existing.Notes = req.Notes
	existing.IsReferral = req.IsReferral
	existing.ReferralColor = core.Color(req.ReferralColor)
	existing.ReferredBy = core.CustomerID(req.ReferredBy)

	if err := h.Catalog.UpdateCustomer(r.Context(), *existing); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(*existing))
}

func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.DeleteCustomer(r.Context(), core.CustomerID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetCustomerBalance aggregates the four customer figures in one call.
func (h *Handler) GetCustomerBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := core.CustomerID(chi.URLParam(r, "id"))

	debt, err := h.Engine.CustomerDebt(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	credit, err := h.Engine.CustomerCredit(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	spending, err := h.Engine.CustomerSpending(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	referrals, err := h.Engine.CustomerReferralCount(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CustomerBalanceDTO{
		CustomerID:    string(id),
		Debt:          debt,
		Credit:        credit,
		Spending:      spending,
		ReferralCount: referrals,
	})
}

// =============================================================================
// TRANSACTION TYPES
// =============================================================================

func (h *Handler) ListTransactionTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.store().ListTransactionTypes(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]TransactionTypeDTO, 0, len(types))
	for _, tt := range types {
		dtos = append(dtos, toTransactionTypeDTO(tt))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateTransactionType(w http.ResponseWriter, r *http.Request) {
	var req TransactionTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	tt, err := h.Catalog.CreateTransactionType(r.Context(), core.TransactionType{
		Name:             req.Name,
		Description:      req.Description,
		AffectsWarehouse: req.AffectsWarehouse,
		AffectsPortfolio: req.AffectsPortfolio,
		PaymentKind:      core.PaymentKind(req.PaymentKind),
		TransformsState:  req.TransformsState,
		CustomFields:     req.CustomFields,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionTypeDTO(tt))
}

func (h *Handler) DeleteTransactionType(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.DeleteTransactionType(r.Context(), core.TransactionTypeID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.store().ListTransactions(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]TransactionDTO, 0, len(txs))
	for _, t := range txs {
		dtos = append(dtos, toTransactionDTO(t))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := core.TransactionID(chi.URLParam(r, "id"))
	t, err := h.store().GetTransaction(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if t == nil {
		writeDomainError(w, &core.NotFoundError{Collection: "transactions", ID: string(id)})
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(*t))
}

func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	t, err := fromTransactionRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format (use YYYY-MM-DD or RFC3339)", err)
		return
	}
	created, err := h.Catalog.CreateTransaction(r.Context(), t)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(created))
}

// UpdateTransaction re-persists the row; every derived balance changes
// retroactively on the next read.
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	t, err := fromTransactionRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format (use YYYY-MM-DD or RFC3339)", err)
		return
	}
	t.ID = core.TransactionID(chi.URLParam(r, "id"))

	// Preserve the debt lifecycle fields; the edit form does not carry them.
	existing, err := h.store().GetTransaction(r.Context(), t.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if existing != nil {
		t.DebtStatus = existing.DebtStatus
		t.DebtPaidDate = existing.DebtPaidDate
	}
	if t.IsDebt && t.DebtStatus == "" {
		t.DebtStatus = core.DebtPending
	}

	if err := h.Catalog.UpdateTransaction(r.Context(), t); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(t))
}

func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.DeleteTransaction(r.Context(), core.TransactionID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SettleDebt marks a pending debt as paid. The only debt transition.
func (h *Handler) SettleDebt(w http.ResponseWriter, r *http.Request) {
	var req SettleDebtRequest
	json.NewDecoder(r.Body).Decode(&req)

	paidAt := time.Now()
	if req.PaidDate != "" {
		parsed, err := parseDate(req.PaidDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid paid_date format", err)
			return
		}
		paidAt = parsed
	}

	id := core.TransactionID(chi.URLParam(r, "id"))
	if err := h.Catalog.SettleDebt(r.Context(), id, paidAt); err != nil {
		writeDomainError(w, err)
		return
	}

	t, err := h.store().GetTransaction(r.Context(), id)
	if err != nil || t == nil {
		writeJSON(w, http.StatusOK, map[string]any{"id": string(id), "debt_status": string(core.DebtPaid)})
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(*t))
}

// =============================================================================
// INTER-ENTITY BALANCES
// =============================================================================

// GetPairBalance returns the pending-debt position between two entities.
// GET /api/balances/pair?first=<entity>&second=<entity>
func (h *Handler) GetPairBalance(w http.ResponseWriter, r *http.Request) {
	first := core.EntityID(r.URL.Query().Get("first"))
	second := core.EntityID(r.URL.Query().Get("second"))

	pair, err := h.Engine.PairNetBalance(r.Context(), first, second)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PairBalanceDTO{
		FirstEntityID:  string(first),
		SecondEntityID: string(second),
		Credits:        pair.Credits,
		Debts:          pair.Debts,
		Net:            pair.Net,
	})
}

// GetCompanyBalance returns the historical Driplug/Meetdrip view.
func (h *Handler) GetCompanyBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.Engine.CompanyNetBalance(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CompanyBalanceDTO{
		MeetdripCredits: balance.MeetdripCredits,
		MeetdripDebts:   balance.MeetdripDebts,
		NetBalance:      balance.NetBalance,
	})
}

// =============================================================================
// ADMIN
// =============================================================================

func (h *Handler) GetSchemaVersion(w http.ResponseWriter, r *http.Request) {
	if h.Maint == nil {
		writeError(w, http.StatusNotImplemented, "schema administration unavailable for this store", nil)
		return
	}
	version, err := h.Maint.SchemaVersion(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SchemaVersionDTO{Version: version, Latest: sqlite.LatestVersion()})
}

// TriggerRebuild runs the destructive recovery path. Irreversible.
func (h *Handler) TriggerRebuild(w http.ResponseWriter, r *http.Request) {
	if h.Maint == nil {
		writeError(w, http.StatusNotImplemented, "schema administration unavailable for this store", nil)
		return
	}
	report, err := h.Maint.Rebuild(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RebuildReportDTO{Preserved: report.Preserved, Lost: report.Lost})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError is the single translation point from the core error
// taxonomy to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var riErr *core.ReferentialIntegrityError
	if errors.As(err, &riErr) {
		resp := ErrorResponse{Error: "delete blocked by dependent rows", Details: riErr.Error()}
		for _, b := range riErr.Blockers {
			resp.Blockers = append(resp.Blockers, BlockerDTO{Collection: b.Collection, Count: b.Count})
		}
		writeJSON(w, http.StatusConflict, resp)
		return
	}

	switch {
	case errors.Is(err, core.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation failed", err)
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found", err)
	case errors.Is(err, core.ErrGenerationExhausted):
		writeError(w, http.StatusServiceUnavailable, "code space exhausted, retry later", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}
