package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dinein-pos/api/internal/database"
	"github.com/dinein-pos/api/internal/enum"
	"github.com/dinein-pos/api/internal/notify"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BillingStore defines the DB methods needed to generate and read bills.
// Satisfied by *database.Queries (and its WithTx variant).
type BillingStore interface {
	OccupancyStore
	InventoryStore
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.RestaurantTable, error)
	BumpTableBillSeq(ctx context.Context, id uuid.UUID) (int64, error)
	CountUnbilledCompletedOrders(ctx context.Context, tableID uuid.UUID) (int64, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListCombinableOrders(ctx context.Context, arg database.ListCombinableOrdersParams) ([]database.Order, error)
	ListOrdersByGroup(ctx context.Context, groupID pgtype.UUID) ([]database.Order, error)
	SetOrdersCombinedGroup(ctx context.Context, arg database.SetOrdersCombinedGroupParams) error
	GetCustomer(ctx context.Context, id uuid.UUID) (database.Customer, error)
	ListBillableLines(ctx context.Context, orderIds []uuid.UUID) ([]database.ListBillableLinesRow, error)
	CreateBill(ctx context.Context, arg database.CreateBillParams) (database.Bill, error)
	GetBill(ctx context.Context, id uuid.UUID) (database.Bill, error)
	GetBillByOrder(ctx context.Context, orderID uuid.UUID) (database.Bill, error)
	ListBillsByGroup(ctx context.Context, groupID pgtype.UUID) ([]database.Bill, error)
}

// NewBillingStore creates a BillingStore from a DBTX (pool or tx).
type NewBillingStore func(db database.DBTX) BillingStore

// InvoiceNumberer hands out unique invoice numbers.
type InvoiceNumberer interface {
	Next() (string, error)
}

// BillRequest carries the optional inputs of a bill.
type BillRequest struct {
	CustomerID *uuid.UUID
	Discount   decimal.Decimal
}

// BillResult reports whether Generate produced a new bill or returned the
// order's existing one.
type BillResult struct {
	Bill    database.Bill
	Created bool

	tableID pgtype.UUID
}

// CombinedBill is an umbrella bill plus the placeholder bills of the other
// orders it covers.
type CombinedBill struct {
	Bill    database.Bill
	Members []database.Bill
	Orders  []uuid.UUID
}

// BillDetail is a bill and, for an umbrella bill, its group members.
type BillDetail struct {
	Bill    database.Bill
	Members []database.Bill
}

// BillingService turns completed orders into GST bills, at most one per order.
type BillingService struct {
	db         DB
	newStore   NewBillingStore
	tax        TaxCalculator
	invoices   InvoiceNumberer
	inventory  *InventoryLedger
	occupancy  *OccupancyResolver
	notifier   notify.Notifier
	logger     *zap.Logger
	maxRetries int
}

// NewBillingService creates a new BillingService.
func NewBillingService(
	db DB,
	newStore NewBillingStore,
	tax TaxCalculator,
	invoices InvoiceNumberer,
	inventory *InventoryLedger,
	occupancy *OccupancyResolver,
	notifier notify.Notifier,
	logger *zap.Logger,
) *BillingService {
	return &BillingService{
		db:         db,
		newStore:   newStore,
		tax:        tax,
		invoices:   invoices,
		inventory:  inventory,
		occupancy:  occupancy,
		notifier:   notifier,
		logger:     logger.Named("billing"),
		maxRetries: defaultMaxRetries,
	}
}

// WithMaxRetries sets how many attempts a conflicting unit of work gets.
func (s *BillingService) WithMaxRetries(n int) *BillingService {
	if n > 0 {
		s.maxRetries = n
	}
	return s
}

// Generate bills one completed order. Calling it again for an already billed
// order returns the existing bill and performs no inventory deduction.
func (s *BillingService) Generate(ctx context.Context, orderID uuid.UUID, req BillRequest) (*BillResult, error) {
	if req.Discount.IsNegative() {
		return nil, ErrInvalidDiscount
	}

	result, err := withRetry(s.maxRetries, func() (*BillResult, error) {
		return s.generateTx(ctx, orderID, req)
	})
	if err != nil {
		return nil, err
	}

	if result.Created {
		s.logger.Info("bill generated",
			zap.Stringer("order_id", orderID),
			zap.Stringer("bill_id", result.Bill.ID),
			zap.String("invoice_number", result.Bill.InvoiceNumber),
			zap.String("grand_total", numericToDecimal(result.Bill.GrandTotal).StringFixed(2)))
		if result.tableID.Valid {
			s.publish(ctx, notify.Event{
				Type:    notify.EventBillGenerated,
				TableID: uuid.UUID(result.tableID.Bytes),
				Payload: result.Bill,
			})
		}
	}
	return result, nil
}

func (s *BillingService) generateTx(ctx context.Context, orderID uuid.UUID, req BillRequest) (*BillResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	tableLocked := false
	if order.TableID.Valid {
		_, err := store.GetTableForUpdate(ctx, uuid.UUID(order.TableID.Bytes))
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("lock table: %w", err)
		}
		tableLocked = err == nil
	}
	order, err = store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}

	bill, created, err := getOrCreate(ctx, store, order.ID, func() (database.Bill, error) {
		if !IsBillable(order.Status) {
			return database.Bill{}, ErrOrderNotCompleted
		}
		return s.billOrder(ctx, store, order, req)
	})
	if err != nil {
		return nil, err
	}

	if created && tableLocked {
		tableID := uuid.UUID(order.TableID.Bytes)
		if _, err := store.BumpTableBillSeq(ctx, tableID); err != nil {
			return nil, fmt.Errorf("bump bill sequence: %w", err)
		}
		if _, err := s.occupancy.Reconcile(ctx, store, tableID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &BillResult{Bill: bill, Created: created, tableID: order.TableID}, nil
}

// getOrCreate returns the order's bill, running generate only when none
// exists. The bills_order_id_key constraint backs the check: a concurrent
// insert fails with a unique violation, the caller retries and the next
// attempt finds the winner's bill.
func getOrCreate(ctx context.Context, store BillingStore, orderID uuid.UUID, generate func() (database.Bill, error)) (database.Bill, bool, error) {
	existing, err := store.GetBillByOrder(ctx, orderID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Bill{}, false, fmt.Errorf("get bill by order: %w", err)
	}

	bill, err := generate()
	if err != nil {
		return database.Bill{}, false, err
	}
	return bill, true, nil
}

func (s *BillingService) billOrder(ctx context.Context, store BillingStore, order database.Order, req BillRequest) (database.Bill, error) {
	buyer, customerID, err := lookupBuyer(ctx, store, req.CustomerID)
	if err != nil {
		return database.Bill{}, err
	}

	rows, err := store.ListBillableLines(ctx, []uuid.UUID{order.ID})
	if err != nil {
		return database.Bill{}, fmt.Errorf("list billable lines: %w", err)
	}

	totals, err := s.tax.Compute(taxLines(rows), buyer, req.Discount)
	if err != nil {
		return database.Bill{}, err
	}

	bill, err := s.insertBill(ctx, store, order.ID, customerID, totals, enum.BillStatusPending, pgtype.UUID{})
	if err != nil {
		return database.Bill{}, err
	}

	if err := s.deduct(ctx, store, rows); err != nil {
		return database.Bill{}, err
	}
	return bill, nil
}

// GenerateForTable bills every completed, unbilled order opened at the table
// since its previous bill as one umbrella bill. The oldest order carries the
// umbrella; the others get COMBINED placeholders. All of them share a fresh
// combined_bill_group_id.
func (s *BillingService) GenerateForTable(ctx context.Context, tableID uuid.UUID, req BillRequest) (*CombinedBill, error) {
	if req.Discount.IsNegative() {
		return nil, ErrInvalidDiscount
	}

	result, err := withRetry(s.maxRetries, func() (*CombinedBill, error) {
		return s.generateForTableTx(ctx, tableID, req)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("combined bill generated",
		zap.Stringer("table_id", tableID),
		zap.Stringer("bill_id", result.Bill.ID),
		zap.Int("orders", len(result.Orders)),
		zap.String("grand_total", numericToDecimal(result.Bill.GrandTotal).StringFixed(2)))
	s.publish(ctx, notify.Event{Type: notify.EventBillGenerated, TableID: tableID, Payload: result})
	return result, nil
}

func (s *BillingService) generateForTableTx(ctx context.Context, tableID uuid.UUID, req BillRequest) (*CombinedBill, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	table, err := store.GetTableForUpdate(ctx, tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("lock table: %w", err)
	}

	// Open orders are the unbilled ones that are not yet completed.
	unbilled, err := store.CountUnbilledOrdersForTable(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("count unbilled orders: %w", err)
	}
	completed, err := store.CountUnbilledCompletedOrders(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("count unbilled completed orders: %w", err)
	}
	if unbilled > completed {
		return nil, ErrOpenOrderOnTable
	}

	// Billing rounds are counted under the table lock, so an order whose
	// transaction began before the last bill but committed after it still
	// belongs to the current round.
	orders, err := store.ListCombinableOrders(ctx, database.ListCombinableOrdersParams{
		TableID: tableID,
		BillSeq: table.BillSeq,
	})
	if err != nil {
		return nil, fmt.Errorf("list combinable orders: %w", err)
	}
	if len(orders) == 0 {
		return nil, ErrNothingToBill
	}

	buyer, customerID, err := lookupBuyer(ctx, store, req.CustomerID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	rows, err := store.ListBillableLines(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list billable lines: %w", err)
	}

	totals, err := s.tax.Compute(taxLines(rows), buyer, req.Discount)
	if err != nil {
		return nil, err
	}

	groupID := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	if err := store.SetOrdersCombinedGroup(ctx, database.SetOrdersCombinedGroupParams{
		CombinedBillGroupID: groupID,
		Ids:                 ids,
	}); err != nil {
		return nil, fmt.Errorf("stamp combined group: %w", err)
	}

	umbrella, err := s.insertBill(ctx, store, orders[0].ID, customerID, totals, enum.BillStatusCombinedBill, groupID)
	if err != nil {
		return nil, err
	}

	result := &CombinedBill{Bill: umbrella, Orders: ids}
	for _, o := range orders[1:] {
		member, err := s.insertBill(ctx, store, o.ID, customerID, placeholderTotals(totals, sumOrderLines(rows, o.ID)), enum.BillStatusCombined, groupID)
		if err != nil {
			return nil, err
		}
		result.Members = append(result.Members, member)
	}

	if err := s.deduct(ctx, store, rows); err != nil {
		return nil, err
	}
	if _, err := store.BumpTableBillSeq(ctx, tableID); err != nil {
		return nil, fmt.Errorf("bump bill sequence: %w", err)
	}
	if _, err := s.occupancy.Reconcile(ctx, store, tableID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

// placeholderTotals is the money side of a COMBINED record: the order's own
// subtotal with no tax, settled through the umbrella bill.
func placeholderTotals(umbrella BillTotals, subtotal decimal.Decimal) BillTotals {
	return BillTotals{
		TotalAmount:    subtotal.Round(2),
		Cgst:           decimal.Zero,
		Sgst:           decimal.Zero,
		Igst:           decimal.Zero,
		DiscountAmount: decimal.Zero,
		GrandTotal:     subtotal.Round(2),
		IsInterState:   umbrella.IsInterState,
		PlaceOfSupply:  umbrella.PlaceOfSupply,
		CompanyGstin:   umbrella.CompanyGstin,
		CustomerGstin:  umbrella.CustomerGstin,
	}
}

func sumOrderLines(rows []database.ListBillableLinesRow, orderID uuid.UUID) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range rows {
		if r.OrderID == orderID {
			sum = sum.Add(numericToDecimal(r.LineTotal))
		}
	}
	return sum
}

func (s *BillingService) insertBill(ctx context.Context, store BillingStore, orderID uuid.UUID, customerID pgtype.UUID, totals BillTotals, status string, groupID pgtype.UUID) (database.Bill, error) {
	invoiceNumber, err := s.invoices.Next()
	if err != nil {
		return database.Bill{}, fmt.Errorf("invoice number: %w", err)
	}

	pending := totals.GrandTotal
	if status == enum.BillStatusCombined {
		pending = decimal.Zero
	}

	bill, err := store.CreateBill(ctx, database.CreateBillParams{
		InvoiceNumber:       invoiceNumber,
		OrderID:             orderID,
		CustomerID:          customerID,
		TotalAmount:         decimalToNumeric(totals.TotalAmount),
		Cgst:                decimalToNumeric(totals.Cgst),
		Sgst:                decimalToNumeric(totals.Sgst),
		Igst:                decimalToNumeric(totals.Igst),
		DiscountAmount:      decimalToNumeric(totals.DiscountAmount),
		GrandTotal:          decimalToNumeric(totals.GrandTotal),
		PaymentStatus:       status,
		PaidAmount:          decimalToNumeric(decimal.Zero),
		PendingAmount:       decimalToNumeric(pending),
		CompanyGstin:        totals.CompanyGstin,
		CustomerGstin:       textOrNull(totals.CustomerGstin),
		PlaceOfSupply:       totals.PlaceOfSupply,
		IsInterState:        totals.IsInterState,
		CombinedBillGroupID: groupID,
	})
	if err != nil {
		return database.Bill{}, fmt.Errorf("create bill for order %s: %w", orderID, err)
	}
	return bill, nil
}

func (s *BillingService) deduct(ctx context.Context, store InventoryStore, rows []database.ListBillableLinesRow) error {
	lines := make([]StockLine, len(rows))
	for i, r := range rows {
		lines[i] = StockLine{MenuItemID: r.MenuItemID, Quantity: r.Quantity}
	}
	return s.inventory.Deduct(ctx, store, lines)
}

func lookupBuyer(ctx context.Context, store BillingStore, customerID *uuid.UUID) (*Buyer, pgtype.UUID, error) {
	if customerID == nil {
		return nil, pgtype.UUID{}, nil
	}
	c, err := store.GetCustomer(ctx, *customerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgtype.UUID{}, ErrCustomerNotFound
		}
		return nil, pgtype.UUID{}, fmt.Errorf("get customer: %w", err)
	}
	buyer := &Buyer{StateCode: c.StateCode.String, GSTIN: c.Gstin.String}
	return buyer, pgtype.UUID{Bytes: c.ID, Valid: true}, nil
}

func taxLines(rows []database.ListBillableLinesRow) []TaxLine {
	out := make([]TaxLine, len(rows))
	for i, r := range rows {
		out[i] = TaxLine{
			LineTotal: numericToDecimal(r.LineTotal),
			TaxRate:   numericToDecimal(r.TaxRate),
		}
	}
	return out
}

// GetBill returns a bill; an umbrella bill comes with its group members.
func (s *BillingService) GetBill(ctx context.Context, billID uuid.UUID) (*BillDetail, error) {
	store := s.newStore(s.db)
	bill, err := store.GetBill(ctx, billID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBillNotFound
		}
		return nil, fmt.Errorf("get bill: %w", err)
	}

	detail := &BillDetail{Bill: bill}
	if isUmbrella(bill) {
		group, err := store.ListBillsByGroup(ctx, bill.CombinedBillGroupID)
		if err != nil {
			return nil, fmt.Errorf("list group bills: %w", err)
		}
		for _, b := range group {
			if b.ID != bill.ID {
				detail.Members = append(detail.Members, b)
			}
		}
	}
	return detail, nil
}

// isUmbrella reports whether a grouped bill is the one carrying the tax,
// which stays true after payments move it off COMBINED_BILL.
func isUmbrella(b database.Bill) bool {
	return b.CombinedBillGroupID.Valid && b.PaymentStatus != enum.BillStatusCombined
}

// GetBillByOrder returns the bill recorded for an order.
func (s *BillingService) GetBillByOrder(ctx context.Context, orderID uuid.UUID) (*database.Bill, error) {
	store := s.newStore(s.db)
	bill, err := store.GetBillByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBillNotFound
		}
		return nil, fmt.Errorf("get bill by order: %w", err)
	}
	return &bill, nil
}

// BillLines returns the lines a bill covers: every member order's lines for
// an umbrella bill, the order's own lines otherwise.
func (s *BillingService) BillLines(ctx context.Context, billID uuid.UUID) ([]database.ListBillableLinesRow, error) {
	store := s.newStore(s.db)
	bill, err := store.GetBill(ctx, billID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBillNotFound
		}
		return nil, fmt.Errorf("get bill: %w", err)
	}

	ids := []uuid.UUID{bill.OrderID}
	if isUmbrella(bill) {
		orders, err := store.ListOrdersByGroup(ctx, bill.CombinedBillGroupID)
		if err != nil {
			return nil, fmt.Errorf("list group orders: %w", err)
		}
		ids = ids[:0]
		for _, o := range orders {
			ids = append(ids, o.ID)
		}
	}

	rows, err := store.ListBillableLines(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list billable lines: %w", err)
	}
	return rows, nil
}

func (s *BillingService) publish(ctx context.Context, evt notify.Event) {
	if err := s.notifier.Notify(ctx, evt); err != nil {
		s.logger.Warn("notify failed", zap.String("type", evt.Type), zap.Error(err))
	}
}
