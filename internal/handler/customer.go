package handler

import (
	"context"
	"net/http"

	"github.com/dinein-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CustomerBiller is the slice of the billing service a diner may use.
// Satisfied by *service.BillingService.
type CustomerBiller interface {
	Generate(ctx context.Context, orderID uuid.UUID, req service.BillRequest) (*service.BillResult, error)
}

// CustomerHandler serves the public self-order routes used from a diner's
// own device. Every order route is scoped to the table in the URL.
type CustomerHandler struct {
	orders OrderServicer
	bills  CustomerBiller
	logger *zap.Logger
}

// NewCustomerHandler creates a new CustomerHandler.
func NewCustomerHandler(orders OrderServicer, bills CustomerBiller, logger *zap.Logger) *CustomerHandler {
	return &CustomerHandler{orders: orders, bills: bills, logger: logger.Named("customer")}
}

// RegisterRoutes registers self-order endpoints, mounted at /customer.
func (h *CustomerHandler) RegisterRoutes(r chi.Router) {
	r.Post("/tables/{tableID}/items", h.AddItems)
	r.Get("/tables/{tableID}", h.Session)
	r.Get("/tables/{tableID}/orders/{orderID}", h.OrderStatus)
	r.Post("/tables/{tableID}/orders/{orderID}/bill", h.GenerateBill)
}

// AddItems handles POST /customer/tables/{tableID}/items.
func (h *CustomerHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	addItems(w, r, h.orders, h.logger)
}

// Session handles GET /customer/tables/{tableID}.
func (h *CustomerHandler) Session(w http.ResponseWriter, r *http.Request) {
	tableSession(w, r, h.orders, h.logger)
}

// OrderStatus handles GET /customer/tables/{tableID}/orders/{orderID}.
func (h *CustomerHandler) OrderStatus(w http.ResponseWriter, r *http.Request) {
	detail, ok := h.tableOrder(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toOrderDetailResponse(detail))
}

// GenerateBill handles POST /customer/tables/{tableID}/orders/{orderID}/bill.
// The diner is billed as a walk-in with no discount; a repeat request
// returns the existing bill with 200.
func (h *CustomerHandler) GenerateBill(w http.ResponseWriter, r *http.Request) {
	detail, ok := h.tableOrder(w, r)
	if !ok {
		return
	}

	result, err := h.bills.Generate(r.Context(), detail.Order.ID, service.BillRequest{})
	if err != nil {
		writeServiceError(w, h.logger, "customer generate bill", err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toBillResponse(result.Bill))
}

// tableOrder loads the order named in the URL and checks that it was placed
// at the table named in the URL. It writes the error response itself.
func (h *CustomerHandler) tableOrder(w http.ResponseWriter, r *http.Request) (*service.OrderDetail, bool) {
	tableID, err := uuid.Parse(chi.URLParam(r, "tableID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return nil, false
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return nil, false
	}

	detail, err := h.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, h.logger, "customer get order", err)
		return nil, false
	}
	if !detail.Order.TableID.Valid || uuid.UUID(detail.Order.TableID.Bytes) != tableID {
		h.logger.Warn("order requested from another table",
			zap.Stringer("order_id", orderID), zap.Stringer("table_id", tableID))
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "order does not belong to this table"})
		return nil, false
	}
	return detail, true
}
