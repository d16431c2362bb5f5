package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dinein-pos/api/internal/database"
	"github.com/dinein-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BillServicer defines the service methods needed by bill handlers.
// Satisfied by *service.BillingService.
type BillServicer interface {
	Generate(ctx context.Context, orderID uuid.UUID, req service.BillRequest) (*service.BillResult, error)
	GenerateForTable(ctx context.Context, tableID uuid.UUID, req service.BillRequest) (*service.CombinedBill, error)
	GetBill(ctx context.Context, billID uuid.UUID) (*service.BillDetail, error)
	GetBillByOrder(ctx context.Context, orderID uuid.UUID) (*database.Bill, error)
	BillLines(ctx context.Context, billID uuid.UUID) ([]database.ListBillableLinesRow, error)
}

// BillHandler handles bill endpoints.
type BillHandler struct {
	svc    BillServicer
	logger *zap.Logger
}

// NewBillHandler creates a new BillHandler.
func NewBillHandler(svc BillServicer, logger *zap.Logger) *BillHandler {
	return &BillHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers bill endpoints on the given Chi router.
func (h *BillHandler) RegisterRoutes(r chi.Router) {
	r.Post("/orders/{id}/bill", h.Generate)
	r.Get("/orders/{id}/bill", h.GetByOrder)
	r.Post("/tables/{tableID}/bill", h.GenerateForTable)
	r.Get("/bills/{id}", h.Get)
	r.Get("/bills/{id}/lines", h.Lines)
}

// --- Request / Response types ---

type billRequest struct {
	CustomerID     string `json:"customer_id"`
	DiscountAmount string `json:"discount_amount"`
}

type billDetailResponse struct {
	billResponse
	Members []billResponse `json:"members,omitempty"`
}

type combinedBillResponse struct {
	billResponse
	Members  []billResponse `json:"members"`
	OrderIDs []uuid.UUID    `json:"order_ids"`
}

type billLineResponse struct {
	ID         uuid.UUID `json:"id"`
	OrderID    uuid.UUID `json:"order_id"`
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Name       string    `json:"name"`
	Quantity   int32     `json:"quantity"`
	LineTotal  string    `json:"line_total"`
	TaxRate    *string   `json:"tax_rate"`
}

// decodeBillRequest reads an optional body; an empty body bills a walk-in
// with no discount.
func decodeBillRequest(r *http.Request) (service.BillRequest, string) {
	var req billRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return service.BillRequest{}, "invalid request body"
	}

	customerID, err := parseOptionalUUID(req.CustomerID)
	if err != nil {
		return service.BillRequest{}, "invalid customer_id"
	}
	discount, err := parseMoney(req.DiscountAmount)
	if err != nil {
		return service.BillRequest{}, "invalid discount_amount"
	}
	if discount.IsNegative() {
		return service.BillRequest{}, "discount_amount must be >= 0"
	}
	return service.BillRequest{CustomerID: customerID, Discount: discount}, ""
}

// --- Handlers ---

// Generate handles POST /orders/{id}/bill. A repeat request returns the
// existing bill with 200 instead of 201.
func (h *BillHandler) Generate(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	req, msg := decodeBillRequest(r)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	result, err := h.svc.Generate(r.Context(), orderID, req)
	if err != nil {
		writeServiceError(w, h.logger, "generate bill", err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toBillResponse(result.Bill))
}

// GenerateForTable handles POST /tables/{tableID}/bill.
func (h *BillHandler) GenerateForTable(w http.ResponseWriter, r *http.Request) {
	tableID, err := uuid.Parse(chi.URLParam(r, "tableID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	req, msg := decodeBillRequest(r)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	result, err := h.svc.GenerateForTable(r.Context(), tableID, req)
	if err != nil {
		writeServiceError(w, h.logger, "generate combined bill", err)
		return
	}

	writeJSON(w, http.StatusCreated, combinedBillResponse{
		billResponse: toBillResponse(result.Bill),
		Members:      toBillResponses(result.Members),
		OrderIDs:     result.Orders,
	})
}

// Get handles GET /bills/{id}.
func (h *BillHandler) Get(w http.ResponseWriter, r *http.Request) {
	billID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid bill ID"})
		return
	}

	detail, err := h.svc.GetBill(r.Context(), billID)
	if err != nil {
		writeServiceError(w, h.logger, "get bill", err)
		return
	}

	resp := billDetailResponse{billResponse: toBillResponse(detail.Bill)}
	if len(detail.Members) > 0 {
		resp.Members = toBillResponses(detail.Members)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetByOrder handles GET /orders/{id}/bill.
func (h *BillHandler) GetByOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	bill, err := h.svc.GetBillByOrder(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, h.logger, "get bill by order", err)
		return
	}
	writeJSON(w, http.StatusOK, toBillResponse(*bill))
}

// Lines handles GET /bills/{id}/lines.
func (h *BillHandler) Lines(w http.ResponseWriter, r *http.Request) {
	billID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid bill ID"})
		return
	}

	rows, err := h.svc.BillLines(r.Context(), billID)
	if err != nil {
		writeServiceError(w, h.logger, "bill lines", err)
		return
	}

	resp := make([]billLineResponse, len(rows))
	for i, row := range rows {
		resp[i] = billLineResponse{
			ID:         row.ID,
			OrderID:    row.OrderID,
			MenuItemID: row.MenuItemID,
			Name:       row.Name,
			Quantity:   row.Quantity,
			LineTotal:  numericToString(row.LineTotal),
		}
		if row.TaxRate.Valid {
			s := numericToString(row.TaxRate)
			resp[i].TaxRate = &s
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
