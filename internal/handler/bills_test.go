package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dinein-pos/api/internal/database"
	"github.com/dinein-pos/api/internal/enum"
	"github.com/dinein-pos/api/internal/handler"
	"github.com/dinein-pos/api/internal/middleware"
	"github.com/dinein-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- Mock BillServicer ---

type mockBillService struct {
	generateFn         func(ctx context.Context, orderID uuid.UUID, req service.BillRequest) (*service.BillResult, error)
	generateForTableFn func(ctx context.Context, tableID uuid.UUID, req service.BillRequest) (*service.CombinedBill, error)
	getBillFn          func(ctx context.Context, billID uuid.UUID) (*service.BillDetail, error)
	getBillByOrderFn   func(ctx context.Context, orderID uuid.UUID) (*database.Bill, error)
	billLinesFn        func(ctx context.Context, billID uuid.UUID) ([]database.ListBillableLinesRow, error)
}

func (m *mockBillService) Generate(ctx context.Context, orderID uuid.UUID, req service.BillRequest) (*service.BillResult, error) {
	if m.generateFn != nil {
		return m.generateFn(ctx, orderID, req)
	}
	return nil, service.ErrOrderNotFound
}

func (m *mockBillService) GenerateForTable(ctx context.Context, tableID uuid.UUID, req service.BillRequest) (*service.CombinedBill, error) {
	if m.generateForTableFn != nil {
		return m.generateForTableFn(ctx, tableID, req)
	}
	return nil, service.ErrTableNotFound
}

func (m *mockBillService) GetBill(ctx context.Context, billID uuid.UUID) (*service.BillDetail, error) {
	if m.getBillFn != nil {
		return m.getBillFn(ctx, billID)
	}
	return nil, service.ErrBillNotFound
}

func (m *mockBillService) GetBillByOrder(ctx context.Context, orderID uuid.UUID) (*database.Bill, error) {
	if m.getBillByOrderFn != nil {
		return m.getBillByOrderFn(ctx, orderID)
	}
	return nil, service.ErrBillNotFound
}

func (m *mockBillService) BillLines(ctx context.Context, billID uuid.UUID) ([]database.ListBillableLinesRow, error) {
	if m.billLinesFn != nil {
		return m.billLinesFn(ctx, billID)
	}
	return nil, service.ErrBillNotFound
}

func setupBillRouter(svc *mockBillService) *chi.Mux {
	h := handler.NewBillHandler(svc, zap.NewNop())
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	h.RegisterRoutes(r)
	return r
}

// testBill mirrors an intra-state bill of 210.00 at 5%.
func testBill(orderID uuid.UUID) database.Bill {
	return database.Bill{
		ID:             uuid.New(),
		InvoiceNumber:  "INV-424242",
		OrderID:        orderID,
		TotalAmount:    testNumeric("200.00"),
		Cgst:           testNumeric("5.00"),
		Sgst:           testNumeric("5.00"),
		Igst:           testNumeric("0.00"),
		DiscountAmount: testNumeric("0.00"),
		GrandTotal:     testNumeric("210.00"),
		PaymentStatus:  enum.BillStatusPending,
		PaidAmount:     testNumeric("0.00"),
		PendingAmount:  testNumeric("210.00"),
		CompanyGstin:   "29ABCDE1234F1Z5",
		PlaceOfSupply:  "29",
		GeneratedAt:    pgtype.Timestamptz{Time: time.Now(), Valid: true},
	}
}

// --- Generate ---

func TestBillGenerate_CreatedThenExisting(t *testing.T) {
	orderID := uuid.New()
	customerID := uuid.New()
	bill := testBill(orderID)
	calls := 0

	svc := &mockBillService{
		generateFn: func(ctx context.Context, id uuid.UUID, req service.BillRequest) (*service.BillResult, error) {
			calls++
			if id != orderID {
				t.Errorf("order_id: got %v, want %v", id, orderID)
			}
			if req.CustomerID == nil || *req.CustomerID != customerID {
				t.Errorf("customer_id: got %v, want %v", req.CustomerID, customerID)
			}
			if !req.Discount.Equal(decimal.RequireFromString("12.5")) {
				t.Errorf("discount: got %s, want 12.5", req.Discount)
			}
			return &service.BillResult{Bill: bill, Created: calls == 1}, nil
		},
	}
	router := setupBillRouter(svc)
	claims := testClaims(enum.StaffRoleCashier)
	body := map[string]string{"customer_id": customerID.String(), "discount_amount": "12.5"}

	rr := doAuthRequest(t, router, "POST", "/orders/"+orderID.String()+"/bill", body, claims)
	assertStatus(t, rr, http.StatusCreated)
	resp := decodeResponse(t, rr)
	if resp["grand_total"] != "210.00" {
		t.Errorf("grand_total: got %v, want 210.00", resp["grand_total"])
	}
	if resp["cgst"] != "5.00" || resp["sgst"] != "5.00" || resp["igst"] != "0.00" {
		t.Errorf("taxes: got cgst=%v sgst=%v igst=%v", resp["cgst"], resp["sgst"], resp["igst"])
	}
	if resp["is_inter_state"] != false {
		t.Errorf("is_inter_state: got %v, want false", resp["is_inter_state"])
	}
	if resp["combined_bill_group_id"] != nil {
		t.Errorf("combined_bill_group_id: got %v, want nil", resp["combined_bill_group_id"])
	}

	// A second request for the same order returns the same bill.
	rr = doAuthRequest(t, router, "POST", "/orders/"+orderID.String()+"/bill", body, claims)
	assertStatus(t, rr, http.StatusOK)
	if got := decodeResponse(t, rr)["id"]; got != bill.ID.String() {
		t.Errorf("id: got %v, want %v", got, bill.ID)
	}
}

func TestBillGenerate_EmptyBodyIsWalkIn(t *testing.T) {
	orderID := uuid.New()
	svc := &mockBillService{
		generateFn: func(ctx context.Context, id uuid.UUID, req service.BillRequest) (*service.BillResult, error) {
			if req.CustomerID != nil {
				t.Errorf("customer_id: got %v, want nil", req.CustomerID)
			}
			if !req.Discount.IsZero() {
				t.Errorf("discount: got %s, want 0", req.Discount)
			}
			return &service.BillResult{Bill: testBill(id), Created: true}, nil
		},
	}

	rr := doAuthRequest(t, setupBillRouter(svc), "POST", "/orders/"+orderID.String()+"/bill", nil, testClaims(enum.StaffRoleCashier))
	assertStatus(t, rr, http.StatusCreated)
}

func TestBillGenerate_Errors(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
		err  error
		want int
	}{
		{"bad customer", map[string]string{"customer_id": "nope"}, nil, http.StatusBadRequest},
		{"bad discount", map[string]string{"discount_amount": "ten"}, nil, http.StatusBadRequest},
		{"negative discount", map[string]string{"discount_amount": "-1"}, nil, http.StatusBadRequest},
		{"discount above total", nil, service.ErrInvalidDiscount, http.StatusBadRequest},
		{"order not found", nil, service.ErrOrderNotFound, http.StatusNotFound},
		{"customer not found", nil, service.ErrCustomerNotFound, http.StatusNotFound},
		{"order not completed", nil, service.ErrOrderNotCompleted, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockBillService{
				generateFn: func(ctx context.Context, id uuid.UUID, req service.BillRequest) (*service.BillResult, error) {
					if tt.err == nil {
						t.Fatal("service must not be called")
					}
					return nil, tt.err
				},
			}
			rr := doAuthRequest(t, setupBillRouter(svc), "POST", "/orders/"+uuid.NewString()+"/bill", tt.body, testClaims(enum.StaffRoleCashier))
			assertStatus(t, rr, tt.want)
		})
	}
}

// --- GenerateForTable ---

func TestBillGenerateForTable(t *testing.T) {
	tableID := uuid.New()
	group := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	first, second := uuid.New(), uuid.New()

	umbrella := testBill(first)
	umbrella.PaymentStatus = enum.BillStatusCombinedBill
	umbrella.CombinedBillGroupID = group
	member := testBill(second)
	member.PaymentStatus = enum.BillStatusCombined
	member.CombinedBillGroupID = group
	member.PendingAmount = testNumeric("0.00")

	svc := &mockBillService{
		generateForTableFn: func(ctx context.Context, id uuid.UUID, req service.BillRequest) (*service.CombinedBill, error) {
			if id != tableID {
				t.Errorf("table_id: got %v, want %v", id, tableID)
			}
			return &service.CombinedBill{Bill: umbrella, Members: []database.Bill{member}, Orders: []uuid.UUID{first, second}}, nil
		},
	}

	rr := doAuthRequest(t, setupBillRouter(svc), "POST", "/tables/"+tableID.String()+"/bill", nil, testClaims(enum.StaffRoleCashier))
	assertStatus(t, rr, http.StatusCreated)

	resp := decodeResponse(t, rr)
	if resp["payment_status"] != enum.BillStatusCombinedBill {
		t.Errorf("payment_status: got %v, want COMBINED_BILL", resp["payment_status"])
	}
	if resp["combined_bill_group_id"] != uuid.UUID(group.Bytes).String() {
		t.Errorf("combined_bill_group_id: got %v", resp["combined_bill_group_id"])
	}
	members := resp["members"].([]interface{})
	if len(members) != 1 || members[0].(map[string]interface{})["payment_status"] != enum.BillStatusCombined {
		t.Errorf("members: got %v", members)
	}
	if orders := resp["order_ids"].([]interface{}); len(orders) != 2 {
		t.Errorf("order_ids: got %v, want 2", orders)
	}
}

func TestBillGenerateForTable_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"table not found", service.ErrTableNotFound, http.StatusNotFound},
		{"nothing to bill", service.ErrNothingToBill, http.StatusConflict},
		{"open order", service.ErrOpenOrderOnTable, http.StatusConflict},
		{"retries exhausted", service.ErrConcurrencyConflict, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockBillService{
				generateForTableFn: func(ctx context.Context, _ uuid.UUID, _ service.BillRequest) (*service.CombinedBill, error) {
					return nil, tt.err
				},
			}
			rr := doAuthRequest(t, setupBillRouter(svc), "POST", "/tables/"+uuid.NewString()+"/bill", nil, testClaims(enum.StaffRoleManager))
			assertStatus(t, rr, tt.want)
		})
	}
}

// --- Reads ---

func TestBillGet_WithMembers(t *testing.T) {
	umbrella := testBill(uuid.New())
	member := testBill(uuid.New())
	svc := &mockBillService{
		getBillFn: func(ctx context.Context, id uuid.UUID) (*service.BillDetail, error) {
			if id != umbrella.ID {
				return nil, service.ErrBillNotFound
			}
			return &service.BillDetail{Bill: umbrella, Members: []database.Bill{member}}, nil
		},
	}
	router := setupBillRouter(svc)
	claims := testClaims(enum.StaffRoleCashier)

	rr := doAuthRequest(t, router, "GET", "/bills/"+umbrella.ID.String(), nil, claims)
	assertStatus(t, rr, http.StatusOK)
	if members, ok := decodeResponse(t, rr)["members"].([]interface{}); !ok || len(members) != 1 {
		t.Errorf("members: got %v, want 1", members)
	}

	rr = doAuthRequest(t, router, "GET", "/bills/"+uuid.NewString(), nil, claims)
	assertStatus(t, rr, http.StatusNotFound)
}

func TestBillGetByOrder(t *testing.T) {
	orderID := uuid.New()
	svc := &mockBillService{
		getBillByOrderFn: func(ctx context.Context, id uuid.UUID) (*database.Bill, error) {
			b := testBill(id)
			return &b, nil
		},
	}

	rr := doAuthRequest(t, setupBillRouter(svc), "GET", "/orders/"+orderID.String()+"/bill", nil, testClaims(enum.StaffRoleCashier))
	assertStatus(t, rr, http.StatusOK)
	if got := decodeResponse(t, rr)["order_id"]; got != orderID.String() {
		t.Errorf("order_id: got %v, want %v", got, orderID)
	}
}

func TestBillLines(t *testing.T) {
	billID := uuid.New()
	svc := &mockBillService{
		billLinesFn: func(ctx context.Context, id uuid.UUID) ([]database.ListBillableLinesRow, error) {
			return []database.ListBillableLinesRow{
				{ID: uuid.New(), OrderID: uuid.New(), MenuItemID: uuid.New(), Name: "Paneer tikka", Quantity: 2, LineTotal: testNumeric("200.00"), TaxRate: testNumeric("5.00")},
				{ID: uuid.New(), OrderID: uuid.New(), MenuItemID: uuid.New(), Name: "Lassi", Quantity: 1, LineTotal: testNumeric("50.00")},
			}, nil
		},
	}

	rr := doAuthRequest(t, setupBillRouter(svc), "GET", "/bills/"+billID.String()+"/lines", nil, testClaims(enum.StaffRoleCashier))
	assertStatus(t, rr, http.StatusOK)

	lines := decodeListResponse(t, rr)
	if len(lines) != 2 {
		t.Fatalf("lines: got %d, want 2", len(lines))
	}
	if lines[0]["tax_rate"] != "5.00" {
		t.Errorf("tax_rate: got %v, want 5.00", lines[0]["tax_rate"])
	}
	if lines[1]["tax_rate"] != nil {
		t.Errorf("tax_rate: got %v, want nil for default rate", lines[1]["tax_rate"])
	}
}
