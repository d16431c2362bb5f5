package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderLineColumns = `id, order_id, menu_item_id, quantity, unit_price, modifiers_total, line_total, created_at`

func scanOrderLine(row interface{ Scan(...interface{}) error }) (OrderLine, error) {
	var i OrderLine
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.MenuItemID,
		&i.Quantity,
		&i.UnitPrice,
		&i.ModifiersTotal,
		&i.LineTotal,
		&i.CreatedAt,
	)
	return i, err
}

const createOrderLine = `-- name: CreateOrderLine :one
INSERT INTO order_lines (order_id, menu_item_id, quantity, unit_price, modifiers_total, line_total)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + orderLineColumns

type CreateOrderLineParams struct {
	OrderID        uuid.UUID      `json:"order_id"`
	MenuItemID     uuid.UUID      `json:"menu_item_id"`
	Quantity       int32          `json:"quantity"`
	UnitPrice      pgtype.Numeric `json:"unit_price"`
	ModifiersTotal pgtype.Numeric `json:"modifiers_total"`
	LineTotal      pgtype.Numeric `json:"line_total"`
}

func (q *Queries) CreateOrderLine(ctx context.Context, arg CreateOrderLineParams) (OrderLine, error) {
	return scanOrderLine(q.db.QueryRow(ctx, createOrderLine,
		arg.OrderID,
		arg.MenuItemID,
		arg.Quantity,
		arg.UnitPrice,
		arg.ModifiersTotal,
		arg.LineTotal,
	))
}

const findMergeableOrderLine = `-- name: FindMergeableOrderLine :one
SELECT ` + orderLineColumns + ` FROM order_lines l
WHERE l.order_id = $1
  AND l.menu_item_id = $2
  AND NOT EXISTS (SELECT 1 FROM order_line_modifiers m WHERE m.order_line_id = l.id)
ORDER BY l.created_at
LIMIT 1
`

type FindMergeableOrderLineParams struct {
	OrderID    uuid.UUID `json:"order_id"`
	MenuItemID uuid.UUID `json:"menu_item_id"`
}

// FindMergeableOrderLine returns the order's modifier-free line for an item.
func (q *Queries) FindMergeableOrderLine(ctx context.Context, arg FindMergeableOrderLineParams) (OrderLine, error) {
	return scanOrderLine(q.db.QueryRow(ctx, findMergeableOrderLine, arg.OrderID, arg.MenuItemID))
}

const incrementOrderLineQuantity = `-- name: IncrementOrderLineQuantity :one
UPDATE order_lines
SET quantity = quantity + $2,
    line_total = (unit_price + modifiers_total) * (quantity + $2)
WHERE id = $1
RETURNING ` + orderLineColumns

type IncrementOrderLineQuantityParams struct {
	ID       uuid.UUID `json:"id"`
	Quantity int32     `json:"quantity"`
}

func (q *Queries) IncrementOrderLineQuantity(ctx context.Context, arg IncrementOrderLineQuantityParams) (OrderLine, error) {
	return scanOrderLine(q.db.QueryRow(ctx, incrementOrderLineQuantity, arg.ID, arg.Quantity))
}

const listOrderLines = `-- name: ListOrderLines :many
SELECT ` + orderLineColumns + ` FROM order_lines
WHERE order_id = $1
ORDER BY created_at, id
`

func (q *Queries) ListOrderLines(ctx context.Context, orderID uuid.UUID) ([]OrderLine, error) {
	rows, err := q.db.Query(ctx, listOrderLines, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderLine{}
	for rows.Next() {
		i, err := scanOrderLine(rows)
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

const createOrderLineModifier = `-- name: CreateOrderLineModifier :one
INSERT INTO order_line_modifiers (order_line_id, modifier_id, name, price)
VALUES ($1, $2, $3, $4)
RETURNING id, order_line_id, modifier_id, name, price
`

type CreateOrderLineModifierParams struct {
	OrderLineID uuid.UUID      `json:"order_line_id"`
	ModifierID  uuid.UUID      `json:"modifier_id"`
	Name        string         `json:"name"`
	Price       pgtype.Numeric `json:"price"`
}

func (q *Queries) CreateOrderLineModifier(ctx context.Context, arg CreateOrderLineModifierParams) (OrderLineModifier, error) {
	row := q.db.QueryRow(ctx, createOrderLineModifier,
		arg.OrderLineID,
		arg.ModifierID,
		arg.Name,
		arg.Price,
	)
	var i OrderLineModifier
	err := row.Scan(
		&i.ID,
		&i.OrderLineID,
		&i.ModifierID,
		&i.Name,
		&i.Price,
	)
	return i, err
}

const listOrderLineModifiers = `-- name: ListOrderLineModifiers :many
SELECT m.id, m.order_line_id, m.modifier_id, m.name, m.price
FROM order_line_modifiers m
JOIN order_lines l ON l.id = m.order_line_id
WHERE l.order_id = $1
ORDER BY l.created_at, m.id
`

func (q *Queries) ListOrderLineModifiers(ctx context.Context, orderID uuid.UUID) ([]OrderLineModifier, error) {
	rows, err := q.db.Query(ctx, listOrderLineModifiers, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderLineModifier{}
	for rows.Next() {
		var i OrderLineModifier
		if err := rows.Scan(
			&i.ID,
			&i.OrderLineID,
			&i.ModifierID,
			&i.Name,
			&i.Price,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listBillableLines = `-- name: ListBillableLines :many
SELECT l.id, l.order_id, l.menu_item_id, mi.name, l.quantity, l.line_total, mi.tax_rate
FROM order_lines l
JOIN orders o ON o.id = l.order_id
JOIN menu_items mi ON mi.id = l.menu_item_id
WHERE l.order_id = ANY($1::uuid[])
ORDER BY o.created_at, o.id, l.created_at, l.id
`

type ListBillableLinesRow struct {
	ID         uuid.UUID      `json:"id"`
	OrderID    uuid.UUID      `json:"order_id"`
	MenuItemID uuid.UUID      `json:"menu_item_id"`
	Name       string         `json:"name"`
	Quantity   int32          `json:"quantity"`
	LineTotal  pgtype.Numeric `json:"line_total"`
	TaxRate    pgtype.Numeric `json:"tax_rate"`
}

// ListBillableLines returns lines of the given orders joined with the menu
// item's current tax rate.
func (q *Queries) ListBillableLines(ctx context.Context, orderIds []uuid.UUID) ([]ListBillableLinesRow, error) {
	rows, err := q.db.Query(ctx, listBillableLines, orderIds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListBillableLinesRow{}
	for rows.Next() {
		var i ListBillableLinesRow
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.MenuItemID,
			&i.Name,
			&i.Quantity,
			&i.LineTotal,
			&i.TaxRate,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
