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

// PaymentServicer defines the service methods needed by payment handlers.
// Satisfied by *service.PaymentService.
type PaymentServicer interface {
	Record(ctx context.Context, billID uuid.UUID, req service.PaymentRequest) (*service.PaymentResult, error)
	Update(ctx context.Context, paymentID uuid.UUID, req service.PaymentRequest) (*service.PaymentResult, error)
	Delete(ctx context.Context, paymentID uuid.UUID) (*database.Bill, error)
	List(ctx context.Context, billID uuid.UUID) ([]database.Payment, error)
}

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	svc    PaymentServicer
	logger *zap.Logger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(svc PaymentServicer, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers payment endpoints on the given Chi router.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/bills/{id}/payments", h.Record)
	r.Get("/bills/{id}/payments", h.List)
	r.Put("/payments/{id}", h.Update)
	r.Delete("/payments/{id}", h.Delete)
}

// --- Request / Response types ---

type paymentRequest struct {
	Amount     string `json:"amount"`
	Mode       string `json:"mode"`
	Status     string `json:"status"`
	CustomerID string `json:"customer_id"`
}

type paymentResultResponse struct {
	Payment paymentResponse `json:"payment"`
	Bill    billResponse    `json:"bill"`
}

func decodePaymentRequest(r *http.Request) (service.PaymentRequest, string) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return service.PaymentRequest{}, "invalid request body"
	}
	if req.Amount == "" {
		return service.PaymentRequest{}, "amount is required"
	}
	amount, err := parseMoney(req.Amount)
	if err != nil {
		return service.PaymentRequest{}, "invalid amount"
	}
	if !amount.IsPositive() {
		return service.PaymentRequest{}, "amount must be > 0"
	}
	if req.Mode == "" {
		return service.PaymentRequest{}, "mode is required"
	}
	customerID, err := parseOptionalUUID(req.CustomerID)
	if err != nil {
		return service.PaymentRequest{}, "invalid customer_id"
	}
	return service.PaymentRequest{
		Amount:     amount,
		Mode:       req.Mode,
		Status:     req.Status,
		CustomerID: customerID,
	}, ""
}

// --- Handlers ---

// Record handles POST /bills/{id}/payments.
func (h *PaymentHandler) Record(w http.ResponseWriter, r *http.Request) {
	billID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid bill ID"})
		return
	}

	req, msg := decodePaymentRequest(r)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	result, err := h.svc.Record(r.Context(), billID, req)
	if err != nil {
		writeServiceError(w, h.logger, "record payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, paymentResultResponse{
		Payment: toPaymentResponse(result.Payment),
		Bill:    toBillResponse(result.Bill),
	})
}

// List handles GET /bills/{id}/payments.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	billID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid bill ID"})
		return
	}

	payments, err := h.svc.List(r.Context(), billID)
	if err != nil {
		writeServiceError(w, h.logger, "list payments", err)
		return
	}

	resp := make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = toPaymentResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Update handles PUT /payments/{id}.
func (h *PaymentHandler) Update(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment ID"})
		return
	}

	req, msg := decodePaymentRequest(r)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	result, err := h.svc.Update(r.Context(), paymentID, req)
	if err != nil {
		writeServiceError(w, h.logger, "update payment", err)
		return
	}
	writeJSON(w, http.StatusOK, paymentResultResponse{
		Payment: toPaymentResponse(result.Payment),
		Bill:    toBillResponse(result.Bill),
	})
}

// Delete handles DELETE /payments/{id}. Responds with the recomputed bill.
func (h *PaymentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment ID"})
		return
	}

	bill, err := h.svc.Delete(r.Context(), paymentID)
	if err != nil {
		writeServiceError(w, h.logger, "delete payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toBillResponse(*bill))
}
