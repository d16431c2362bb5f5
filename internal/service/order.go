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

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// DB is a pool that runs single statements and starts transactions.
// Satisfied by *pgxpool.Pool.
type DB interface {
	database.DBTX
	TxBeginner
}

// OrderStore defines the DB methods needed to build and move orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	OccupancyStore
	GetTable(ctx context.Context, id uuid.UUID) (database.RestaurantTable, error)
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.RestaurantTable, error)
	ClaimTableOrder(ctx context.Context, arg database.ClaimTableOrderParams) (int64, error)
	ReleaseTableOrder(ctx context.Context, arg database.ReleaseTableOrderParams) error
	CountUnbilledCompletedOrders(ctx context.Context, tableID uuid.UUID) (int64, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetLatestCompletedOrderForTable(ctx context.Context, tableID uuid.UUID) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	UpdateOrderTotal(ctx context.Context, arg database.UpdateOrderTotalParams) (database.Order, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	GetMenuModifier(ctx context.Context, id uuid.UUID) (database.MenuModifier, error)
	FindMergeableOrderLine(ctx context.Context, arg database.FindMergeableOrderLineParams) (database.OrderLine, error)
	IncrementOrderLineQuantity(ctx context.Context, arg database.IncrementOrderLineQuantityParams) (database.OrderLine, error)
	CreateOrderLine(ctx context.Context, arg database.CreateOrderLineParams) (database.OrderLine, error)
	CreateOrderLineModifier(ctx context.Context, arg database.CreateOrderLineModifierParams) (database.OrderLineModifier, error)
	ListOrderLines(ctx context.Context, orderID uuid.UUID) ([]database.OrderLine, error)
	ListOrderLineModifiers(ctx context.Context, orderID uuid.UUID) ([]database.OrderLineModifier, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// LineRequest is one validated line of an add-items call.
type LineRequest struct {
	MenuItemID  uuid.UUID
	Quantity    int32
	ModifierIDs []uuid.UUID
}

// OrderDetail is an order with its lines and their modifiers.
type OrderDetail struct {
	Order database.Order `json:"order"`
	Lines []LineDetail   `json:"lines"`
}

// LineDetail is a line with its modifier snapshots.
type LineDetail struct {
	Line      database.OrderLine           `json:"line"`
	Modifiers []database.OrderLineModifier `json:"modifiers"`
}

// AddItemsResult reports whether AddItems opened a new order.
type AddItemsResult struct {
	OrderDetail
	Created bool
}

// TableSession is what a table currently has going on.
type TableSession struct {
	Table                   database.RestaurantTable
	ActiveOrder             *OrderDetail
	LastCompletedOrder      *OrderDetail
	UnbilledCompletedOrders int64
}

// OrderService keeps at most one open order per table and moves orders
// through their lifecycle.
type OrderService struct {
	db         DB
	newStore   NewOrderStore
	occupancy  *OccupancyResolver
	notifier   notify.Notifier
	logger     *zap.Logger
	maxRetries int
}

// NewOrderService creates a new OrderService.
func NewOrderService(db DB, newStore NewOrderStore, occupancy *OccupancyResolver, notifier notify.Notifier, logger *zap.Logger) *OrderService {
	return &OrderService{
		db:         db,
		newStore:   newStore,
		occupancy:  occupancy,
		notifier:   notifier,
		logger:     logger.Named("orders"),
		maxRetries: defaultMaxRetries,
	}
}

// WithMaxRetries sets how many attempts a conflicting unit of work gets.
func (s *OrderService) WithMaxRetries(n int) *OrderService {
	if n > 0 {
		s.maxRetries = n
	}
	return s
}

// AddItems appends lines to the table's open order, opening one if needed.
// Finding or creating the open order happens under the table's row lock, so
// concurrent callers for one table end up on the same order.
func (s *OrderService) AddItems(ctx context.Context, tableID uuid.UUID, items []LineRequest) (*AddItemsResult, error) {
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
	}

	result, err := withRetry(s.maxRetries, func() (*AddItemsResult, error) {
		return s.addItemsTx(ctx, tableID, items)
	})
	if err != nil {
		return nil, err
	}

	if result.Created {
		s.logger.Info("order opened",
			zap.Stringer("table_id", tableID),
			zap.Stringer("order_id", result.Order.ID))
	}
	s.publish(ctx, notify.Event{Type: notify.EventOrderUpdated, TableID: tableID, Payload: result.OrderDetail})
	return result, nil
}

func (s *OrderService) addItemsTx(ctx context.Context, tableID uuid.UUID, items []LineRequest) (*AddItemsResult, error) {
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

	order, created, err := s.openOrder(ctx, store, table)
	if err != nil {
		return nil, err
	}

	for i, item := range items {
		if err := addLine(ctx, store, order.ID, item); err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
	}

	detail, err := loadOrderDetail(ctx, store, order)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, l := range detail.Lines {
		total = total.Add(numericToDecimal(l.Line.LineTotal))
	}
	detail.Order, err = store.UpdateOrderTotal(ctx, database.UpdateOrderTotalParams{
		ID:          order.ID,
		TotalAmount: decimalToNumeric(total),
	})
	if err != nil {
		return nil, fmt.Errorf("update order total: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &AddItemsResult{OrderDetail: *detail, Created: created}, nil
}

// openOrder returns the table's open order or creates one. The caller holds
// the table row lock.
func (s *OrderService) openOrder(ctx context.Context, store OrderStore, table database.RestaurantTable) (database.Order, bool, error) {
	if table.OpenOrderID.Valid {
		order, err := store.GetOrderForUpdate(ctx, uuid.UUID(table.OpenOrderID.Bytes))
		switch {
		case err == nil && IsOpen(order.Status):
			return order, false, nil
		case err != nil && !errors.Is(err, pgx.ErrNoRows):
			return database.Order{}, false, fmt.Errorf("get open order: %w", err)
		}
		// The association outlived its order; drop it and start over.
		if err := store.ReleaseTableOrder(ctx, database.ReleaseTableOrderParams{
			ID:          table.ID,
			OpenOrderID: table.OpenOrderID,
		}); err != nil {
			return database.Order{}, false, fmt.Errorf("release stale order: %w", err)
		}
	}

	pending, err := store.CountUnbilledCompletedOrders(ctx, table.ID)
	if err != nil {
		return database.Order{}, false, fmt.Errorf("count unbilled orders: %w", err)
	}
	if pending > 0 {
		return database.Order{}, false, ErrPendingBill
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		TableID: pgtype.UUID{Bytes: table.ID, Valid: true},
		Status:  enum.OrderStatusCreated,
	})
	if err != nil {
		return database.Order{}, false, fmt.Errorf("create order: %w", err)
	}

	claimed, err := store.ClaimTableOrder(ctx, database.ClaimTableOrderParams{
		ID:          table.ID,
		OpenOrderID: pgtype.UUID{Bytes: order.ID, Valid: true},
	})
	if err != nil {
		return database.Order{}, false, fmt.Errorf("claim table: %w", err)
	}
	if claimed == 0 {
		return database.Order{}, false, ErrConcurrencyConflict
	}
	return order, true, nil
}

// addLine validates one request line against the menu and writes it.
// A modifier-free line merges into the order's existing modifier-free line
// for the same item; lines with modifiers are always new.
func addLine(ctx context.Context, store OrderStore, orderID uuid.UUID, req LineRequest) error {
	item, err := store.GetMenuItem(ctx, req.MenuItemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMenuItemNotFound
		}
		return fmt.Errorf("get menu item: %w", err)
	}
	if !item.IsAvailable {
		return fmt.Errorf("%s: %w", item.Name, ErrItemUnavailable)
	}

	if len(req.ModifierIDs) == 0 {
		existing, err := store.FindMergeableOrderLine(ctx, database.FindMergeableOrderLineParams{
			OrderID:    orderID,
			MenuItemID: item.ID,
		})
		if err == nil {
			if _, err := store.IncrementOrderLineQuantity(ctx, database.IncrementOrderLineQuantityParams{
				ID:       existing.ID,
				Quantity: req.Quantity,
			}); err != nil {
				return fmt.Errorf("increment line: %w", err)
			}
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("find line: %w", err)
		}
	}

	mods := make([]database.MenuModifier, 0, len(req.ModifierIDs))
	modsTotal := decimal.Zero
	for j, modID := range req.ModifierIDs {
		mod, err := store.GetMenuModifier(ctx, modID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("modifiers[%d]: %w", j, ErrModifierNotFound)
			}
			return fmt.Errorf("modifiers[%d]: get modifier: %w", j, err)
		}
		if mod.MenuItemID != item.ID || !mod.IsActive {
			return fmt.Errorf("modifiers[%d]: %w", j, ErrModifierNotFound)
		}
		modsTotal = modsTotal.Add(numericToDecimal(mod.Price))
		mods = append(mods, mod)
	}

	unitPrice := numericToDecimal(item.Price)
	lineTotal := unitPrice.Add(modsTotal).Mul(decimal.NewFromInt32(req.Quantity))

	line, err := store.CreateOrderLine(ctx, database.CreateOrderLineParams{
		OrderID:        orderID,
		MenuItemID:     item.ID,
		Quantity:       req.Quantity,
		UnitPrice:      decimalToNumeric(unitPrice),
		ModifiersTotal: decimalToNumeric(modsTotal),
		LineTotal:      decimalToNumeric(lineTotal),
	})
	if err != nil {
		return fmt.Errorf("create line: %w", err)
	}

	for _, mod := range mods {
		if _, err := store.CreateOrderLineModifier(ctx, database.CreateOrderLineModifierParams{
			OrderLineID: line.ID,
			ModifierID:  mod.ID,
			Name:        mod.Name,
			Price:       mod.Price,
		}); err != nil {
			return fmt.Errorf("create line modifier: %w", err)
		}
	}
	return nil
}

type orderDetailStore interface {
	ListOrderLines(ctx context.Context, orderID uuid.UUID) ([]database.OrderLine, error)
	ListOrderLineModifiers(ctx context.Context, orderID uuid.UUID) ([]database.OrderLineModifier, error)
}

func loadOrderDetail(ctx context.Context, store orderDetailStore, order database.Order) (*OrderDetail, error) {
	lines, err := store.ListOrderLines(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}
	mods, err := store.ListOrderLineModifiers(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list line modifiers: %w", err)
	}

	byLine := make(map[uuid.UUID][]database.OrderLineModifier)
	for _, m := range mods {
		byLine[m.OrderLineID] = append(byLine[m.OrderLineID], m)
	}

	detail := &OrderDetail{Order: order, Lines: make([]LineDetail, 0, len(lines))}
	for _, l := range lines {
		detail.Lines = append(detail.Lines, LineDetail{Line: l, Modifiers: byLine[l.ID]})
	}
	return detail, nil
}

// UpdateStatus moves an order to next if the transition is legal. Leaving
// the open states releases the table's open-order slot; cancelling also
// reconciles the table's occupancy.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, next string) (*database.Order, error) {
	if !IsValidOrderStatus(next) {
		return nil, ErrInvalidStatus
	}

	updated, err := withRetry(s.maxRetries, func() (database.Order, error) {
		return s.updateStatusTx(ctx, orderID, next)
	})
	if err != nil {
		return nil, err
	}

	if updated.TableID.Valid {
		s.publish(ctx, notify.Event{
			Type:    notify.EventOrderUpdated,
			TableID: uuid.UUID(updated.TableID.Bytes),
			Payload: updated,
		})
	}
	return &updated, nil
}

func (s *OrderService) updateStatusTx(ctx context.Context, orderID uuid.UUID, next string) (database.Order, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}

	// Lock order: table first, then the order.
	if current.TableID.Valid {
		if _, err := store.GetTableForUpdate(ctx, uuid.UUID(current.TableID.Bytes)); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, fmt.Errorf("lock table: %w", err)
		}
	}
	current, err = store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("lock order: %w", err)
	}

	if err := ValidateTransition(current.Status, next); err != nil {
		return database.Order{}, err
	}

	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:       orderID,
		Status:   next,
		Status_2: current.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrConcurrencyConflict
		}
		return database.Order{}, fmt.Errorf("update order status: %w", err)
	}

	if !IsOpen(next) && updated.TableID.Valid {
		tableID := uuid.UUID(updated.TableID.Bytes)
		if err := store.ReleaseTableOrder(ctx, database.ReleaseTableOrderParams{
			ID:          tableID,
			OpenOrderID: pgtype.UUID{Bytes: updated.ID, Valid: true},
		}); err != nil {
			return database.Order{}, fmt.Errorf("release table: %w", err)
		}
		if next == enum.OrderStatusCancelled {
			if _, err := s.occupancy.Reconcile(ctx, store, tableID); err != nil {
				return database.Order{}, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return updated, nil
}

// GetOrder returns an order with its lines.
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error) {
	store := s.newStore(s.db)
	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return loadOrderDetail(ctx, store, order)
}

// TableSession returns the table's open order, or its latest completed order
// when nothing is open, plus how many completed orders still need a bill.
func (s *OrderService) TableSession(ctx context.Context, tableID uuid.UUID) (*TableSession, error) {
	store := s.newStore(s.db)

	table, err := store.GetTable(ctx, tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("get table: %w", err)
	}

	session := &TableSession{Table: table}

	if table.OpenOrderID.Valid {
		order, err := store.GetOrder(ctx, uuid.UUID(table.OpenOrderID.Bytes))
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get open order: %w", err)
		}
		if err == nil && IsOpen(order.Status) {
			if session.ActiveOrder, err = loadOrderDetail(ctx, store, order); err != nil {
				return nil, err
			}
		}
	}

	if session.ActiveOrder == nil {
		order, err := store.GetLatestCompletedOrderForTable(ctx, tableID)
		switch {
		case err == nil:
			if session.LastCompletedOrder, err = loadOrderDetail(ctx, store, order); err != nil {
				return nil, err
			}
		case !errors.Is(err, pgx.ErrNoRows):
			return nil, fmt.Errorf("get latest order: %w", err)
		}
	}

	session.UnbilledCompletedOrders, err = store.CountUnbilledCompletedOrders(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("count unbilled orders: %w", err)
	}
	return session, nil
}

func (s *OrderService) publish(ctx context.Context, evt notify.Event) {
	if err := s.notifier.Notify(ctx, evt); err != nil {
		s.logger.Warn("notify failed", zap.String("type", evt.Type), zap.Error(err))
	}
}
