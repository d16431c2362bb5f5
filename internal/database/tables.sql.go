package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const tableColumns = `id, table_number, capacity, location, occupied, bill_seq, created_at, updated_at, open_order_id`

func scanTable(row interface{ Scan(...interface{}) error }) (RestaurantTable, error) {
	var i RestaurantTable
	err := row.Scan(
		&i.ID,
		&i.TableNumber,
		&i.Capacity,
		&i.Location,
		&i.Occupied,
		&i.BillSeq,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.OpenOrderID,
	)
	return i, err
}

const getTable = `-- name: GetTable :one
SELECT ` + tableColumns + ` FROM restaurant_tables WHERE id = $1
`

func (q *Queries) GetTable(ctx context.Context, id uuid.UUID) (RestaurantTable, error) {
	return scanTable(q.db.QueryRow(ctx, getTable, id))
}

const getTableForUpdate = `-- name: GetTableForUpdate :one
SELECT ` + tableColumns + ` FROM restaurant_tables WHERE id = $1 FOR UPDATE
`

// GetTableForUpdate row-locks the table until the surrounding transaction ends.
// Every unit of work touching a table's orders takes this lock first.
func (q *Queries) GetTableForUpdate(ctx context.Context, id uuid.UUID) (RestaurantTable, error) {
	return scanTable(q.db.QueryRow(ctx, getTableForUpdate, id))
}

const listTables = `-- name: ListTables :many
SELECT ` + tableColumns + ` FROM restaurant_tables ORDER BY table_number
`

func (q *Queries) ListTables(ctx context.Context) ([]RestaurantTable, error) {
	rows, err := q.db.Query(ctx, listTables)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []RestaurantTable{}
	for rows.Next() {
		i, err := scanTable(rows)
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

const claimTableOrder = `-- name: ClaimTableOrder :execrows
UPDATE restaurant_tables
SET open_order_id = $2, occupied = true, updated_at = now()
WHERE id = $1 AND open_order_id IS NULL
`

type ClaimTableOrderParams struct {
	ID          uuid.UUID   `json:"id"`
	OpenOrderID pgtype.UUID `json:"open_order_id"`
}

// ClaimTableOrder associates an order with a table that has no open order.
// Zero rows affected means another order holds the table.
func (q *Queries) ClaimTableOrder(ctx context.Context, arg ClaimTableOrderParams) (int64, error) {
	result, err := q.db.Exec(ctx, claimTableOrder, arg.ID, arg.OpenOrderID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const releaseTableOrder = `-- name: ReleaseTableOrder :exec
UPDATE restaurant_tables
SET open_order_id = NULL, updated_at = now()
WHERE id = $1 AND open_order_id = $2
`

type ReleaseTableOrderParams struct {
	ID          uuid.UUID   `json:"id"`
	OpenOrderID pgtype.UUID `json:"open_order_id"`
}

func (q *Queries) ReleaseTableOrder(ctx context.Context, arg ReleaseTableOrderParams) error {
	_, err := q.db.Exec(ctx, releaseTableOrder, arg.ID, arg.OpenOrderID)
	return err
}

const bumpTableBillSeq = `-- name: BumpTableBillSeq :one
UPDATE restaurant_tables
SET bill_seq = bill_seq + 1, updated_at = now()
WHERE id = $1
RETURNING bill_seq
`

// BumpTableBillSeq starts a new billing round for the table. Orders opened
// from now on carry the returned value.
func (q *Queries) BumpTableBillSeq(ctx context.Context, id uuid.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, bumpTableBillSeq, id)
	var billSeq int64
	err := row.Scan(&billSeq)
	return billSeq, err
}

const setTableOccupancy = `-- name: SetTableOccupancy :exec
UPDATE restaurant_tables
SET occupied = $2,
    open_order_id = CASE WHEN $2::boolean THEN open_order_id ELSE NULL END,
    updated_at = now()
WHERE id = $1
`

type SetTableOccupancyParams struct {
	ID       uuid.UUID `json:"id"`
	Occupied bool      `json:"occupied"`
}

func (q *Queries) SetTableOccupancy(ctx context.Context, arg SetTableOccupancyParams) error {
	_, err := q.db.Exec(ctx, setTableOccupancy, arg.ID, arg.Occupied)
	return err
}

const countUnbilledOrdersForTable = `-- name: CountUnbilledOrdersForTable :one
SELECT COUNT(*) FROM orders o
WHERE o.table_id = $1
  AND (
    o.status IN ('CREATED', 'IN_PROGRESS')
    OR (o.status = 'COMPLETED' AND NOT EXISTS (SELECT 1 FROM bills b WHERE b.order_id = o.id))
  )
`

// CountUnbilledOrdersForTable counts open orders plus completed orders without a bill.
func (q *Queries) CountUnbilledOrdersForTable(ctx context.Context, tableID uuid.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, countUnbilledOrdersForTable, tableID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countUnbilledCompletedOrders = `-- name: CountUnbilledCompletedOrders :one
SELECT COUNT(*) FROM orders o
WHERE o.table_id = $1
  AND o.status = 'COMPLETED'
  AND NOT EXISTS (SELECT 1 FROM bills b WHERE b.order_id = o.id)
`

func (q *Queries) CountUnbilledCompletedOrders(ctx context.Context, tableID uuid.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, countUnbilledCompletedOrders, tableID)
	var count int64
	err := row.Scan(&count)
	return count, err
}
