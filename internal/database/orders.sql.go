package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, table_id, status, total_amount, combined_bill_group_id, bill_seq, created_at, updated_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.TableID,
		&i.Status,
		&i.TotalAmount,
		&i.CombinedBillGroupID,
		&i.BillSeq,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectOrders(rows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
	Close()
}) ([]Order, error) {
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (table_id, status, total_amount, bill_seq)
VALUES ($1, $2, 0, COALESCE((SELECT bill_seq FROM restaurant_tables WHERE id = $1), 0))
RETURNING ` + orderColumns

type CreateOrderParams struct {
	TableID pgtype.UUID `json:"table_id"`
	Status  string      `json:"status"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder, arg.TableID, arg.Status))
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE
`

func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const getLatestCompletedOrderForTable = `-- name: GetLatestCompletedOrderForTable :one
SELECT ` + orderColumns + ` FROM orders
WHERE table_id = $1 AND status = 'COMPLETED'
ORDER BY created_at DESC, id DESC
LIMIT 1
`

func (q *Queries) GetLatestCompletedOrderForTable(ctx context.Context, tableID uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getLatestCompletedOrderForTable, tableID))
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID       uuid.UUID `json:"id"`
	Status   string    `json:"status"`
	Status_2 string    `json:"status_2"`
}

// UpdateOrderStatus only succeeds while the order is still in Status_2.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.Status_2))
}

const updateOrderTotal = `-- name: UpdateOrderTotal :one
UPDATE orders SET total_amount = $2, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderTotalParams struct {
	ID          uuid.UUID      `json:"id"`
	TotalAmount pgtype.Numeric `json:"total_amount"`
}

func (q *Queries) UpdateOrderTotal(ctx context.Context, arg UpdateOrderTotalParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderTotal, arg.ID, arg.TotalAmount))
}

const listCombinableOrders = `-- name: ListCombinableOrders :many
SELECT ` + orderColumns + ` FROM orders o
WHERE o.table_id = $1
  AND o.status = 'COMPLETED'
  AND NOT EXISTS (SELECT 1 FROM bills b WHERE b.order_id = o.id)
  AND o.bill_seq >= $2
ORDER BY o.created_at, o.id
FOR UPDATE
`

type ListCombinableOrdersParams struct {
	TableID uuid.UUID `json:"table_id"`
	BillSeq int64     `json:"bill_seq"`
}

// ListCombinableOrders locks the table's completed, unbilled orders opened
// in billing round BillSeq or later, oldest first.
func (q *Queries) ListCombinableOrders(ctx context.Context, arg ListCombinableOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listCombinableOrders, arg.TableID, arg.BillSeq)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

const listOrdersByGroup = `-- name: ListOrdersByGroup :many
SELECT ` + orderColumns + ` FROM orders
WHERE combined_bill_group_id = $1
ORDER BY created_at, id
`

func (q *Queries) ListOrdersByGroup(ctx context.Context, groupID pgtype.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByGroup, groupID)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

const setOrdersCombinedGroup = `-- name: SetOrdersCombinedGroup :exec
UPDATE orders SET combined_bill_group_id = $1, updated_at = now()
WHERE id = ANY($2::uuid[])
`

type SetOrdersCombinedGroupParams struct {
	CombinedBillGroupID pgtype.UUID `json:"combined_bill_group_id"`
	Ids                 []uuid.UUID `json:"ids"`
}

func (q *Queries) SetOrdersCombinedGroup(ctx context.Context, arg SetOrdersCombinedGroupParams) error {
	_, err := q.db.Exec(ctx, setOrdersCombinedGroup, arg.CombinedBillGroupID, arg.Ids)
	return err
}
