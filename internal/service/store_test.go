package service

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dinein-pos/api/internal/database"
	"github.com/dinein-pos/api/internal/enum"
	"github.com/dinein-pos/api/internal/notify"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- pgx.Tx / pool fakes ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr   error
	rollbackErr error
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error          { return m.commitErr }
func (m *mockTx) Rollback(ctx context.Context) error        { return m.rollbackErr }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// memDB stands in for the pool. Begin serializes transactions the way the
// table row lock does, and Rollback restores the state captured at Begin.
type memDB struct {
	store  *memStore
	txMu   sync.Mutex
	begins atomic.Int32
}

func (d *memDB) Begin(ctx context.Context) (pgx.Tx, error) {
	d.txMu.Lock()
	d.begins.Add(1)
	return &memTx{db: d, snapshot: d.store.snapshot()}, nil
}

func (d *memDB) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (d *memDB) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	panic("not implemented")
}
func (d *memDB) QueryRow(context.Context, string, ...interface{}) pgx.Row {
	panic("not implemented")
}

type memTx struct {
	mockTx
	db       *memDB
	snapshot *memState
	done     bool
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.db.txMu.Unlock()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.db.store.restore(t.snapshot)
	t.db.txMu.Unlock()
	return nil
}

// --- in-memory store ---

type memState struct {
	tables      map[uuid.UUID]database.RestaurantTable
	orders      map[uuid.UUID]database.Order
	lines       []database.OrderLine
	lineMods    []database.OrderLineModifier
	menu        map[uuid.UUID]database.MenuItem
	modifiers   map[uuid.UUID]database.MenuModifier
	recipes     map[uuid.UUID][]database.MenuIngredient
	ingredients map[uuid.UUID]database.Ingredient
	customers   map[uuid.UUID]database.Customer
	bills       map[uuid.UUID]database.Bill
	payments    map[uuid.UUID]database.Payment
	clock       time.Time
	deductions  int
}

func (s *memState) clone() *memState {
	c := *s
	c.tables = maps.Clone(s.tables)
	c.orders = maps.Clone(s.orders)
	c.lines = slices.Clone(s.lines)
	c.lineMods = slices.Clone(s.lineMods)
	c.menu = maps.Clone(s.menu)
	c.modifiers = maps.Clone(s.modifiers)
	c.recipes = maps.Clone(s.recipes)
	c.ingredients = maps.Clone(s.ingredients)
	c.customers = maps.Clone(s.customers)
	c.bills = maps.Clone(s.bills)
	c.payments = maps.Clone(s.payments)
	return &c
}

// memStore implements OrderStore, BillingStore and PaymentStore over memState.
type memStore struct {
	mu    sync.Mutex
	state *memState

	// claimConflicts makes the next n ClaimTableOrder calls report zero rows.
	claimConflicts int
}

var (
	_ OrderStore   = (*memStore)(nil)
	_ BillingStore = (*memStore)(nil)
	_ PaymentStore = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{state: &memState{
		tables:      map[uuid.UUID]database.RestaurantTable{},
		orders:      map[uuid.UUID]database.Order{},
		menu:        map[uuid.UUID]database.MenuItem{},
		modifiers:   map[uuid.UUID]database.MenuModifier{},
		recipes:     map[uuid.UUID][]database.MenuIngredient{},
		ingredients: map[uuid.UUID]database.Ingredient{},
		customers:   map[uuid.UUID]database.Customer{},
		bills:       map[uuid.UUID]database.Bill{},
		payments:    map[uuid.UUID]database.Payment{},
		clock:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}}
}

func (m *memStore) snapshot() *memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *memStore) restore(s *memState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

func (m *memStore) tick() pgtype.Timestamptz {
	m.state.clock = m.state.clock.Add(time.Second)
	return pgtype.Timestamptz{Time: m.state.clock, Valid: true}
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

func (m *memStore) hasBill(orderID uuid.UUID) bool {
	for _, b := range m.state.bills {
		if b.OrderID == orderID {
			return true
		}
	}
	return false
}

func (m *memStore) lineHasModifiers(lineID uuid.UUID) bool {
	for _, lm := range m.state.lineMods {
		if lm.OrderLineID == lineID {
			return true
		}
	}
	return false
}

func onTable(o database.Order, tableID uuid.UUID) bool {
	return o.TableID.Valid && uuid.UUID(o.TableID.Bytes) == tableID
}

func sortOrders(orders []database.Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Time.Before(orders[j].CreatedAt.Time)
	})
}

// tables

func (m *memStore) GetTable(ctx context.Context, id uuid.UUID) (database.RestaurantTable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.state.tables[id]
	if !ok {
		return database.RestaurantTable{}, pgx.ErrNoRows
	}
	return t, nil
}

func (m *memStore) GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.RestaurantTable, error) {
	return m.GetTable(ctx, id)
}

func (m *memStore) ClaimTableOrder(ctx context.Context, arg database.ClaimTableOrderParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimConflicts > 0 {
		m.claimConflicts--
		return 0, nil
	}
	t, ok := m.state.tables[arg.ID]
	if !ok || t.OpenOrderID.Valid {
		return 0, nil
	}
	t.OpenOrderID = arg.OpenOrderID
	t.Occupied = true
	m.state.tables[arg.ID] = t
	return 1, nil
}

func (m *memStore) ReleaseTableOrder(ctx context.Context, arg database.ReleaseTableOrderParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.state.tables[arg.ID]
	if ok && t.OpenOrderID == arg.OpenOrderID {
		t.OpenOrderID = pgtype.UUID{}
		m.state.tables[arg.ID] = t
	}
	return nil
}

func (m *memStore) BumpTableBillSeq(ctx context.Context, id uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.state.tables[id]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	t.BillSeq++
	m.state.tables[id] = t
	return t.BillSeq, nil
}

func (m *memStore) SetTableOccupancy(ctx context.Context, arg database.SetTableOccupancyParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.state.tables[arg.ID]
	if !ok {
		return nil
	}
	t.Occupied = arg.Occupied
	if !arg.Occupied {
		t.OpenOrderID = pgtype.UUID{}
	}
	m.state.tables[arg.ID] = t
	return nil
}

func (m *memStore) CountUnbilledOrdersForTable(ctx context.Context, tableID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, o := range m.state.orders {
		if !onTable(o, tableID) {
			continue
		}
		if IsOpen(o.Status) || (o.Status == enum.OrderStatusCompleted && !m.hasBill(o.ID)) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountUnbilledCompletedOrders(ctx context.Context, tableID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, o := range m.state.orders {
		if onTable(o, tableID) && o.Status == enum.OrderStatusCompleted && !m.hasBill(o.ID) {
			n++
		}
	}
	return n, nil
}

// orders

func (m *memStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if arg.TableID.Valid {
		for _, o := range m.state.orders {
			if onTable(o, uuid.UUID(arg.TableID.Bytes)) && IsOpen(o.Status) {
				return database.Order{}, uniqueViolation(constraintOpenOrderPerTable)
			}
		}
	}
	now := m.tick()
	o := database.Order{
		ID:          uuid.New(),
		TableID:     arg.TableID,
		Status:      arg.Status,
		TotalAmount: makeNumeric("0"),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if arg.TableID.Valid {
		o.BillSeq = m.state.tables[uuid.UUID(arg.TableID.Bytes)].BillSeq
	}
	m.state.orders[o.ID] = o
	return o, nil
}

func (m *memStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.state.orders[id]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *memStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error) {
	return m.GetOrder(ctx, id)
}

func (m *memStore) GetLatestCompletedOrderForTable(ctx context.Context, tableID uuid.UUID) (database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found []database.Order
	for _, o := range m.state.orders {
		if onTable(o, tableID) && o.Status == enum.OrderStatusCompleted {
			found = append(found, o)
		}
	}
	if len(found) == 0 {
		return database.Order{}, pgx.ErrNoRows
	}
	sortOrders(found)
	return found[len(found)-1], nil
}

func (m *memStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.state.orders[arg.ID]
	if !ok || o.Status != arg.Status_2 {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Status = arg.Status
	o.UpdatedAt = m.tick()
	m.state.orders[o.ID] = o
	return o, nil
}

func (m *memStore) UpdateOrderTotal(ctx context.Context, arg database.UpdateOrderTotalParams) (database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.state.orders[arg.ID]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	o.TotalAmount = arg.TotalAmount
	m.state.orders[o.ID] = o
	return o, nil
}

func (m *memStore) ListCombinableOrders(ctx context.Context, arg database.ListCombinableOrdersParams) ([]database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.Order
	for _, o := range m.state.orders {
		if !onTable(o, arg.TableID) || o.Status != enum.OrderStatusCompleted || m.hasBill(o.ID) {
			continue
		}
		if o.BillSeq < arg.BillSeq {
			continue
		}
		out = append(out, o)
	}
	sortOrders(out)
	return out, nil
}

func (m *memStore) ListOrdersByGroup(ctx context.Context, groupID pgtype.UUID) ([]database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.Order
	for _, o := range m.state.orders {
		if o.CombinedBillGroupID.Valid && o.CombinedBillGroupID == groupID {
			out = append(out, o)
		}
	}
	sortOrders(out)
	return out, nil
}

func (m *memStore) SetOrdersCombinedGroup(ctx context.Context, arg database.SetOrdersCombinedGroupParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range arg.Ids {
		if o, ok := m.state.orders[id]; ok {
			o.CombinedBillGroupID = arg.CombinedBillGroupID
			m.state.orders[id] = o
		}
	}
	return nil
}

// menu and lines

func (m *memStore) GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mi, ok := m.state.menu[id]
	if !ok {
		return database.MenuItem{}, pgx.ErrNoRows
	}
	return mi, nil
}

func (m *memStore) GetMenuModifier(ctx context.Context, id uuid.UUID) (database.MenuModifier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mod, ok := m.state.modifiers[id]
	if !ok {
		return database.MenuModifier{}, pgx.ErrNoRows
	}
	return mod, nil
}

func (m *memStore) FindMergeableOrderLine(ctx context.Context, arg database.FindMergeableOrderLineParams) (database.OrderLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.state.lines {
		if l.OrderID == arg.OrderID && l.MenuItemID == arg.MenuItemID && !m.lineHasModifiers(l.ID) {
			return l, nil
		}
	}
	return database.OrderLine{}, pgx.ErrNoRows
}

func (m *memStore) IncrementOrderLineQuantity(ctx context.Context, arg database.IncrementOrderLineQuantityParams) (database.OrderLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.state.lines {
		if l.ID != arg.ID {
			continue
		}
		l.Quantity += arg.Quantity
		unit := numericToDecimal(l.UnitPrice).Add(numericToDecimal(l.ModifiersTotal))
		l.LineTotal = decimalToNumeric(unit.Mul(decimal.NewFromInt32(l.Quantity)))
		m.state.lines[i] = l
		return l, nil
	}
	return database.OrderLine{}, pgx.ErrNoRows
}

func (m *memStore) CreateOrderLine(ctx context.Context, arg database.CreateOrderLineParams) (database.OrderLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := database.OrderLine{
		ID:             uuid.New(),
		OrderID:        arg.OrderID,
		MenuItemID:     arg.MenuItemID,
		Quantity:       arg.Quantity,
		UnitPrice:      arg.UnitPrice,
		ModifiersTotal: arg.ModifiersTotal,
		LineTotal:      arg.LineTotal,
		CreatedAt:      m.tick(),
	}
	m.state.lines = append(m.state.lines, l)
	return l, nil
}

func (m *memStore) CreateOrderLineModifier(ctx context.Context, arg database.CreateOrderLineModifierParams) (database.OrderLineModifier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lm := database.OrderLineModifier{
		ID:          uuid.New(),
		OrderLineID: arg.OrderLineID,
		ModifierID:  arg.ModifierID,
		Name:        arg.Name,
		Price:       arg.Price,
	}
	m.state.lineMods = append(m.state.lineMods, lm)
	return lm, nil
}

func (m *memStore) ListOrderLines(ctx context.Context, orderID uuid.UUID) ([]database.OrderLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []database.OrderLine{}
	for _, l := range m.state.lines {
		if l.OrderID == orderID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memStore) ListOrderLineModifiers(ctx context.Context, orderID uuid.UUID) ([]database.OrderLineModifier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lineIDs := map[uuid.UUID]bool{}
	for _, l := range m.state.lines {
		if l.OrderID == orderID {
			lineIDs[l.ID] = true
		}
	}
	out := []database.OrderLineModifier{}
	for _, lm := range m.state.lineMods {
		if lineIDs[lm.OrderLineID] {
			out = append(out, lm)
		}
	}
	return out, nil
}

func (m *memStore) ListBillableLines(ctx context.Context, orderIds []uuid.UUID) ([]database.ListBillableLinesRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	orders := make([]database.Order, 0, len(orderIds))
	for _, id := range orderIds {
		if o, ok := m.state.orders[id]; ok {
			orders = append(orders, o)
		}
	}
	sortOrders(orders)
	out := []database.ListBillableLinesRow{}
	for _, o := range orders {
		for _, l := range m.state.lines {
			if l.OrderID != o.ID {
				continue
			}
			mi := m.state.menu[l.MenuItemID]
			out = append(out, database.ListBillableLinesRow{
				ID:         l.ID,
				OrderID:    l.OrderID,
				MenuItemID: l.MenuItemID,
				Name:       mi.Name,
				Quantity:   l.Quantity,
				LineTotal:  l.LineTotal,
				TaxRate:    mi.TaxRate,
			})
		}
	}
	return out, nil
}

// inventory

func (m *memStore) ListMenuIngredients(ctx context.Context, menuItemID uuid.UUID) ([]database.MenuIngredient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.state.recipes[menuItemID]), nil
}

func (m *memStore) AdjustIngredientStock(ctx context.Context, arg database.AdjustIngredientStockParams) (database.Ingredient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ing, ok := m.state.ingredients[arg.ID]
	if !ok {
		return database.Ingredient{}, pgx.ErrNoRows
	}
	stock := numericToDecimal(ing.StockQuantity).Add(numericToDecimal(arg.Delta))
	ing.StockQuantity = quantityToNumeric(stock)
	m.state.ingredients[arg.ID] = ing
	m.state.deductions++
	return ing, nil
}

// customers

func (m *memStore) GetCustomer(ctx context.Context, id uuid.UUID) (database.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.state.customers[id]
	if !ok {
		return database.Customer{}, pgx.ErrNoRows
	}
	return c, nil
}

// bills

func (m *memStore) CreateBill(ctx context.Context, arg database.CreateBillParams) (database.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hasBill(arg.OrderID) {
		return database.Bill{}, uniqueViolation(constraintBillPerOrder)
	}
	b := database.Bill{
		ID:                  uuid.New(),
		InvoiceNumber:       arg.InvoiceNumber,
		OrderID:             arg.OrderID,
		CustomerID:          arg.CustomerID,
		TotalAmount:         arg.TotalAmount,
		Cgst:                arg.Cgst,
		Sgst:                arg.Sgst,
		Igst:                arg.Igst,
		DiscountAmount:      arg.DiscountAmount,
		GrandTotal:          arg.GrandTotal,
		PaymentStatus:       arg.PaymentStatus,
		PaidAmount:          arg.PaidAmount,
		PendingAmount:       arg.PendingAmount,
		CompanyGstin:        arg.CompanyGstin,
		CustomerGstin:       arg.CustomerGstin,
		PlaceOfSupply:       arg.PlaceOfSupply,
		IsInterState:        arg.IsInterState,
		CombinedBillGroupID: arg.CombinedBillGroupID,
		GeneratedAt:         m.tick(),
	}
	m.state.bills[b.ID] = b
	return b, nil
}

func (m *memStore) GetBill(ctx context.Context, id uuid.UUID) (database.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.state.bills[id]
	if !ok {
		return database.Bill{}, pgx.ErrNoRows
	}
	return b, nil
}

func (m *memStore) GetBillForUpdate(ctx context.Context, id uuid.UUID) (database.Bill, error) {
	return m.GetBill(ctx, id)
}

func (m *memStore) GetBillByOrder(ctx context.Context, orderID uuid.UUID) (database.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.state.bills {
		if b.OrderID == orderID {
			return b, nil
		}
	}
	return database.Bill{}, pgx.ErrNoRows
}

func (m *memStore) ListBillsByGroup(ctx context.Context, groupID pgtype.UUID) ([]database.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []database.Bill{}
	for _, b := range m.state.bills {
		if b.CombinedBillGroupID.Valid && b.CombinedBillGroupID == groupID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GeneratedAt.Time.Before(out[j].GeneratedAt.Time) })
	return out, nil
}

func (m *memStore) UpdateBillPayment(ctx context.Context, arg database.UpdateBillPaymentParams) (database.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.state.bills[arg.ID]
	if !ok {
		return database.Bill{}, pgx.ErrNoRows
	}
	b.PaidAmount = arg.PaidAmount
	b.PendingAmount = arg.PendingAmount
	b.PaymentStatus = arg.PaymentStatus
	m.state.bills[b.ID] = b
	return b, nil
}

// payments

func (m *memStore) CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.tick()
	p := database.Payment{
		ID:         uuid.New(),
		BillID:     arg.BillID,
		CustomerID: arg.CustomerID,
		Amount:     arg.Amount,
		Mode:       arg.Mode,
		Status:     arg.Status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.state.payments[p.ID] = p
	return p, nil
}

func (m *memStore) GetPayment(ctx context.Context, id uuid.UUID) (database.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.state.payments[id]
	if !ok {
		return database.Payment{}, pgx.ErrNoRows
	}
	return p, nil
}

func (m *memStore) UpdatePayment(ctx context.Context, arg database.UpdatePaymentParams) (database.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.state.payments[arg.ID]
	if !ok {
		return database.Payment{}, pgx.ErrNoRows
	}
	p.Amount = arg.Amount
	p.Mode = arg.Mode
	p.Status = arg.Status
	p.UpdatedAt = m.tick()
	m.state.payments[p.ID] = p
	return p, nil
}

func (m *memStore) DeletePayment(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state.payments, id)
	return nil
}

func (m *memStore) ListPaymentsByBill(ctx context.Context, billID uuid.UUID) ([]database.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []database.Payment{}
	for _, p := range m.state.payments {
		if p.BillID == billID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Time.Before(out[j].CreatedAt.Time) })
	return out, nil
}

func (m *memStore) SumCompletedPayments(ctx context.Context, billID uuid.UUID) (pgtype.Numeric, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := decimal.Zero
	for _, p := range m.state.payments {
		if p.BillID == billID && p.Status == enum.PaymentStatusCompleted {
			sum = sum.Add(numericToDecimal(p.Amount))
		}
	}
	return decimalToNumeric(sum), nil
}

// --- read helpers for assertions ---

func (m *memStore) table(id uuid.UUID) database.RestaurantTable {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.tables[id]
}

func (m *memStore) ordersFor(tableID uuid.UUID) []database.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.Order
	for _, o := range m.state.orders {
		if onTable(o, tableID) {
			out = append(out, o)
		}
	}
	sortOrders(out)
	return out
}

// backdate moves an order's creation time, as a transaction that began
// before a concurrent bill would stamp it.
func (m *memStore) backdate(orderID uuid.UUID, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.state.orders[orderID]
	o.CreatedAt = pgtype.Timestamptz{Time: at, Valid: true}
	m.state.orders[orderID] = o
}

func (m *memStore) billCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.bills)
}

func (m *memStore) deductionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deductions
}

func (m *memStore) stock(id uuid.UUID) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return numericToDecimal(m.state.ingredients[id].StockQuantity)
}

// --- fixture ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	return numericToDecimal(n).Equal(decimal.RequireFromString(expected))
}

type seqNumberer struct{ n atomic.Int64 }

func (s *seqNumberer) Next() (string, error) {
	return fmt.Sprintf("INV-TEST-%d", s.n.Add(1)), nil
}

// recordingNotifier keeps every event it is handed.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (r *recordingNotifier) Notify(ctx context.Context, evt notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return r.err
}

func (r *recordingNotifier) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	db       *memDB
	store    *memStore
	notifier *recordingNotifier
	orders   *OrderService
	billing  *BillingService
	payments *PaymentService

	tableID     uuid.UUID
	otherTable  uuid.UUID
	paneer      uuid.UUID // 100.00 at 5%
	dosa        uuid.UUID // 80.00 at 12%
	lassi       uuid.UUID // 50.00, no rate configured
	seasonal    uuid.UUID // unavailable
	extraCheese uuid.UUID // +20.00 on paneer
	noOnion     uuid.UUID // +0.00 on paneer
	retiredMod  uuid.UUID // inactive, on paneer
	dosaMod     uuid.UUID // belongs to dosa
	paneerStock uuid.UUID // 0.150 kg per paneer
	batter      uuid.UUID // 0.200 kg per dosa
	localCust   uuid.UUID // state 29
	outstation  uuid.UUID // state 27
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := newMemStore()
	f := &fixture{
		store:       store,
		db:          &memDB{store: store},
		notifier:    &recordingNotifier{},
		tableID:     uuid.New(),
		otherTable:  uuid.New(),
		paneer:      uuid.New(),
		dosa:        uuid.New(),
		lassi:       uuid.New(),
		seasonal:    uuid.New(),
		extraCheese: uuid.New(),
		noOnion:     uuid.New(),
		retiredMod:  uuid.New(),
		dosaMod:     uuid.New(),
		paneerStock: uuid.New(),
		batter:      uuid.New(),
		localCust:   uuid.New(),
		outstation:  uuid.New(),
	}

	st := store.state
	st.tables[f.tableID] = database.RestaurantTable{ID: f.tableID, TableNumber: 1, Capacity: 4}
	st.tables[f.otherTable] = database.RestaurantTable{ID: f.otherTable, TableNumber: 2, Capacity: 2}

	st.menu[f.paneer] = database.MenuItem{ID: f.paneer, Name: "Paneer Tikka", Price: makeNumeric("100.00"), TaxRate: makeNumeric("5"), IsAvailable: true}
	st.menu[f.dosa] = database.MenuItem{ID: f.dosa, Name: "Masala Dosa", Price: makeNumeric("80.00"), TaxRate: makeNumeric("12"), IsAvailable: true}
	st.menu[f.lassi] = database.MenuItem{ID: f.lassi, Name: "Sweet Lassi", Price: makeNumeric("50.00"), IsAvailable: true}
	st.menu[f.seasonal] = database.MenuItem{ID: f.seasonal, Name: "Mango Kulfi", Price: makeNumeric("90.00"), TaxRate: makeNumeric("5"), IsAvailable: false}

	st.modifiers[f.extraCheese] = database.MenuModifier{ID: f.extraCheese, MenuItemID: f.paneer, Name: "Extra Cheese", Price: makeNumeric("20.00"), IsActive: true}
	st.modifiers[f.noOnion] = database.MenuModifier{ID: f.noOnion, MenuItemID: f.paneer, Name: "No Onion", Price: makeNumeric("0.00"), IsActive: true}
	st.modifiers[f.retiredMod] = database.MenuModifier{ID: f.retiredMod, MenuItemID: f.paneer, Name: "Truffle Oil", Price: makeNumeric("99.00"), IsActive: false}
	st.modifiers[f.dosaMod] = database.MenuModifier{ID: f.dosaMod, MenuItemID: f.dosa, Name: "Ghee Roast", Price: makeNumeric("15.00"), IsActive: true}

	st.ingredients[f.paneerStock] = database.Ingredient{ID: f.paneerStock, Name: "Paneer", Unit: "kg", StockQuantity: makeNumeric("10.000"), LowStockThreshold: makeNumeric("1.000")}
	st.ingredients[f.batter] = database.Ingredient{ID: f.batter, Name: "Dosa Batter", Unit: "kg", StockQuantity: makeNumeric("0.300"), LowStockThreshold: makeNumeric("0.500")}
	st.recipes[f.paneer] = []database.MenuIngredient{{MenuItemID: f.paneer, IngredientID: f.paneerStock, QuantityRequired: makeNumeric("0.150")}}
	st.recipes[f.dosa] = []database.MenuIngredient{{MenuItemID: f.dosa, IngredientID: f.batter, QuantityRequired: makeNumeric("0.200")}}

	st.customers[f.localCust] = database.Customer{ID: f.localCust, Name: "Asha", StateCode: pgtype.Text{String: "29", Valid: true}}
	st.customers[f.outstation] = database.Customer{
		ID:        f.outstation,
		Name:      "Ravi Traders",
		StateCode: pgtype.Text{String: "27", Valid: true},
		Gstin:     pgtype.Text{String: "27AAAPL1234C1ZV", Valid: true},
	}

	logger := zap.NewNop()
	newOrderStore := func(database.DBTX) OrderStore { return store }
	newBillingStore := func(database.DBTX) BillingStore { return store }
	newPaymentStore := func(database.DBTX) PaymentStore { return store }
	occupancy := NewOccupancyResolver(logger)

	f.orders = NewOrderService(f.db, newOrderStore, occupancy, f.notifier, logger)
	f.billing = NewBillingService(f.db, newBillingStore, testCalculator(), &seqNumberer{},
		NewInventoryLedger(logger), occupancy, f.notifier, logger)
	f.payments = NewPaymentService(f.db, newPaymentStore, f.notifier, logger)
	return f
}

func (f *fixture) add(t *testing.T, tableID uuid.UUID, items ...LineRequest) *AddItemsResult {
	t.Helper()
	res, err := f.orders.AddItems(context.Background(), tableID, items)
	if err != nil {
		t.Fatalf("AddItems: %v", err)
	}
	return res
}

func (f *fixture) complete(t *testing.T, orderID uuid.UUID) {
	t.Helper()
	for _, next := range []string{enum.OrderStatusInProgress, enum.OrderStatusCompleted} {
		if _, err := f.orders.UpdateStatus(context.Background(), orderID, next); err != nil {
			t.Fatalf("UpdateStatus(%s): %v", next, err)
		}
	}
}

func line(itemID uuid.UUID, qty int32, mods ...uuid.UUID) LineRequest {
	return LineRequest{MenuItemID: itemID, Quantity: qty, ModifierIDs: mods}
}
