package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dinein-pos/api/internal/database"
	"github.com/dinein-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	AddItems(ctx context.Context, tableID uuid.UUID, items []service.LineRequest) (*service.AddItemsResult, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, next string) (*database.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*service.OrderDetail, error)
	TableSession(ctx context.Context, tableID uuid.UUID) (*service.TableSession, error)
}

// OrderHandler handles staff order endpoints.
type OrderHandler struct {
	svc    OrderServicer
	logger *zap.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers order endpoints on the given Chi router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/tables/{tableID}/orders", h.AddItems)
	r.Get("/tables/{tableID}/session", h.Session)
	r.Get("/orders/{id}", h.Get)
	r.Patch("/orders/{id}/status", h.UpdateStatus)
}

// --- Request types ---

type addItemsRequest struct {
	Items []lineRequest `json:"items"`
}

type lineRequest struct {
	MenuItemID  string   `json:"menu_item_id"`
	Quantity    int32    `json:"quantity"`
	ModifierIDs []string `json:"modifier_ids"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// parseLineRequests validates the raw items at the boundary. The returned
// message is empty when every line is well formed.
func parseLineRequests(items []lineRequest) ([]service.LineRequest, string) {
	if len(items) == 0 {
		return nil, "items are required"
	}
	out := make([]service.LineRequest, len(items))
	for i, item := range items {
		if item.MenuItemID == "" {
			return nil, formatItemError(i, "menu_item_id is required")
		}
		menuItemID, err := uuid.Parse(item.MenuItemID)
		if err != nil {
			return nil, formatItemError(i, "invalid menu_item_id")
		}
		if item.Quantity <= 0 {
			return nil, formatItemError(i, "quantity must be > 0")
		}
		mods := make([]uuid.UUID, 0, len(item.ModifierIDs))
		seen := make(map[uuid.UUID]bool, len(item.ModifierIDs))
		for _, raw := range item.ModifierIDs {
			modID, err := uuid.Parse(raw)
			if err != nil {
				return nil, formatItemError(i, "invalid modifier id "+raw)
			}
			if seen[modID] {
				return nil, formatItemError(i, "duplicate modifier id "+raw)
			}
			seen[modID] = true
			mods = append(mods, modID)
		}
		out[i] = service.LineRequest{MenuItemID: menuItemID, Quantity: item.Quantity, ModifierIDs: mods}
	}
	return out, ""
}

// --- Handlers ---

// AddItems handles POST /tables/{tableID}/orders.
func (h *OrderHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	addItems(w, r, h.svc, h.logger)
}

// addItems is shared by the staff and customer self-order routes.
func addItems(w http.ResponseWriter, r *http.Request, svc OrderServicer, logger *zap.Logger) {
	tableID, err := uuid.Parse(chi.URLParam(r, "tableID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	var req addItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	items, msg := parseLineRequests(req.Items)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	result, err := svc.AddItems(r.Context(), tableID, items)
	if err != nil {
		writeServiceError(w, logger, "add items", err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toOrderDetailResponse(&result.OrderDetail))
}

// Session handles GET /tables/{tableID}/session.
func (h *OrderHandler) Session(w http.ResponseWriter, r *http.Request) {
	tableSession(w, r, h.svc, h.logger)
}

func tableSession(w http.ResponseWriter, r *http.Request, svc OrderServicer, logger *zap.Logger) {
	tableID, err := uuid.Parse(chi.URLParam(r, "tableID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	session, err := svc.TableSession(r.Context(), tableID)
	if err != nil {
		writeServiceError(w, logger, "table session", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	detail, err := h.svc.GetOrder(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, h.logger, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDetailResponse(detail))
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}
	if !service.IsValidOrderStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	order, err := h.svc.UpdateStatus(r.Context(), orderID, req.Status)
	if err != nil {
		writeServiceError(w, h.logger, "update order status", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(*order))
}
