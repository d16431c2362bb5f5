package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dinein-pos/api/internal/database"
	"github.com/dinein-pos/api/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps service errors to HTTP statuses. Anything unknown is
// logged and hidden behind a 500.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case isValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrPendingBill),
		errors.Is(err, service.ErrInvalidStateTransition),
		errors.Is(err, service.ErrNothingToBill),
		errors.Is(err, service.ErrConcurrencyConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		logger.Error(op, zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// isValidationError checks if the error is a known validation error
// from the service layer that should result in 400 Bad Request.
func isValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidDiscount) ||
		errors.Is(err, service.ErrInvalidAmount) ||
		errors.Is(err, service.ErrInvalidStatus) ||
		errors.Is(err, service.ErrItemUnavailable) ||
		errors.Is(err, service.ErrBillNotPayable)
}

func formatItemError(idx int, msg string) string {
	return "items[" + strconv.Itoa(idx) + "]: " + msg
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}

// parseMoney parses an optional amount; empty means zero.
func parseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func parseOptionalUUID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func optionalUUID(u pgtype.UUID) *string {
	if !u.Valid {
		return nil
	}
	s := uuid.UUID(u.Bytes).String()
	return &s
}

func optionalText(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

// --- shared response types ---

type orderResponse struct {
	ID                  uuid.UUID           `json:"id"`
	TableID             *string             `json:"table_id"`
	Status              string              `json:"status"`
	TotalAmount         string              `json:"total_amount"`
	CombinedBillGroupID *string             `json:"combined_bill_group_id"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
	Lines               []orderLineResponse `json:"lines,omitempty"`
}

type orderLineResponse struct {
	ID             uuid.UUID              `json:"id"`
	MenuItemID     uuid.UUID              `json:"menu_item_id"`
	Quantity       int32                  `json:"quantity"`
	UnitPrice      string                 `json:"unit_price"`
	ModifiersTotal string                 `json:"modifiers_total"`
	LineTotal      string                 `json:"line_total"`
	Modifiers      []lineModifierResponse `json:"modifiers"`
}

type lineModifierResponse struct {
	ID         uuid.UUID `json:"id"`
	ModifierID uuid.UUID `json:"modifier_id"`
	Name       string    `json:"name"`
	Price      string    `json:"price"`
}

type tableResponse struct {
	ID          uuid.UUID `json:"id"`
	TableNumber int32     `json:"table_number"`
	Capacity    int32     `json:"capacity"`
	Location    *string   `json:"location"`
	Occupied    bool      `json:"occupied"`
}

type sessionResponse struct {
	Table                   tableResponse  `json:"table"`
	ActiveOrder             *orderResponse `json:"active_order"`
	LastCompletedOrder      *orderResponse `json:"last_completed_order"`
	UnbilledCompletedOrders int64          `json:"unbilled_completed_orders"`
}

type billResponse struct {
	ID                  uuid.UUID `json:"id"`
	InvoiceNumber       string    `json:"invoice_number"`
	OrderID             uuid.UUID `json:"order_id"`
	CustomerID          *string   `json:"customer_id"`
	TotalAmount         string    `json:"total_amount"`
	Cgst                string    `json:"cgst"`
	Sgst                string    `json:"sgst"`
	Igst                string    `json:"igst"`
	DiscountAmount      string    `json:"discount_amount"`
	GrandTotal          string    `json:"grand_total"`
	PaymentStatus       string    `json:"payment_status"`
	PaidAmount          string    `json:"paid_amount"`
	PendingAmount       string    `json:"pending_amount"`
	CompanyGstin        string    `json:"company_gstin"`
	CustomerGstin       *string   `json:"customer_gstin"`
	PlaceOfSupply       string    `json:"place_of_supply"`
	IsInterState        bool      `json:"is_inter_state"`
	CombinedBillGroupID *string   `json:"combined_bill_group_id"`
	GeneratedAt         time.Time `json:"generated_at"`
}

type paymentResponse struct {
	ID         uuid.UUID `json:"id"`
	BillID     uuid.UUID `json:"bill_id"`
	CustomerID *string   `json:"customer_id"`
	Amount     string    `json:"amount"`
	Mode       string    `json:"mode"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toOrderResponse(o database.Order) orderResponse {
	return orderResponse{
		ID:                  o.ID,
		TableID:             optionalUUID(o.TableID),
		Status:              o.Status,
		TotalAmount:         numericToString(o.TotalAmount),
		CombinedBillGroupID: optionalUUID(o.CombinedBillGroupID),
		CreatedAt:           o.CreatedAt.Time,
		UpdatedAt:           o.UpdatedAt.Time,
	}
}

func toOrderDetailResponse(d *service.OrderDetail) *orderResponse {
	if d == nil {
		return nil
	}
	resp := toOrderResponse(d.Order)
	resp.Lines = make([]orderLineResponse, len(d.Lines))
	for i, l := range d.Lines {
		lr := orderLineResponse{
			ID:             l.Line.ID,
			MenuItemID:     l.Line.MenuItemID,
			Quantity:       l.Line.Quantity,
			UnitPrice:      numericToString(l.Line.UnitPrice),
			ModifiersTotal: numericToString(l.Line.ModifiersTotal),
			LineTotal:      numericToString(l.Line.LineTotal),
			Modifiers:      make([]lineModifierResponse, len(l.Modifiers)),
		}
		for j, m := range l.Modifiers {
			lr.Modifiers[j] = lineModifierResponse{
				ID:         m.ID,
				ModifierID: m.ModifierID,
				Name:       m.Name,
				Price:      numericToString(m.Price),
			}
		}
		resp.Lines[i] = lr
	}
	return &resp
}

func toSessionResponse(s *service.TableSession) sessionResponse {
	return sessionResponse{
		Table: tableResponse{
			ID:          s.Table.ID,
			TableNumber: s.Table.TableNumber,
			Capacity:    s.Table.Capacity,
			Location:    optionalText(s.Table.Location),
			Occupied:    s.Table.Occupied,
		},
		ActiveOrder:             toOrderDetailResponse(s.ActiveOrder),
		LastCompletedOrder:      toOrderDetailResponse(s.LastCompletedOrder),
		UnbilledCompletedOrders: s.UnbilledCompletedOrders,
	}
}

func toBillResponse(b database.Bill) billResponse {
	return billResponse{
		ID:                  b.ID,
		InvoiceNumber:       b.InvoiceNumber,
		OrderID:             b.OrderID,
		CustomerID:          optionalUUID(b.CustomerID),
		TotalAmount:         numericToString(b.TotalAmount),
		Cgst:                numericToString(b.Cgst),
		Sgst:                numericToString(b.Sgst),
		Igst:                numericToString(b.Igst),
		DiscountAmount:      numericToString(b.DiscountAmount),
		GrandTotal:          numericToString(b.GrandTotal),
		PaymentStatus:       b.PaymentStatus,
		PaidAmount:          numericToString(b.PaidAmount),
		PendingAmount:       numericToString(b.PendingAmount),
		CompanyGstin:        b.CompanyGstin,
		CustomerGstin:       optionalText(b.CustomerGstin),
		PlaceOfSupply:       b.PlaceOfSupply,
		IsInterState:        b.IsInterState,
		CombinedBillGroupID: optionalUUID(b.CombinedBillGroupID),
		GeneratedAt:         b.GeneratedAt.Time,
	}
}

func toBillResponses(bills []database.Bill) []billResponse {
	out := make([]billResponse, len(bills))
	for i, b := range bills {
		out[i] = toBillResponse(b)
	}
	return out
}

func toPaymentResponse(p database.Payment) paymentResponse {
	return paymentResponse{
		ID:         p.ID,
		BillID:     p.BillID,
		CustomerID: optionalUUID(p.CustomerID),
		Amount:     numericToString(p.Amount),
		Mode:       p.Mode,
		Status:     p.Status,
		CreatedAt:  p.CreatedAt.Time,
		UpdatedAt:  p.UpdatedAt.Time,
	}
}
