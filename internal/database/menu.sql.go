package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getMenuItem = `-- name: GetMenuItem :one
SELECT id, name, price, tax_rate, is_available, created_at FROM menu_items WHERE id = $1
`

func (q *Queries) GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	row := q.db.QueryRow(ctx, getMenuItem, id)
	var i MenuItem
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Price,
		&i.TaxRate,
		&i.IsAvailable,
		&i.CreatedAt,
	)
	return i, err
}

const getMenuModifier = `-- name: GetMenuModifier :one
SELECT id, menu_item_id, name, price, is_active FROM menu_modifiers WHERE id = $1
`

func (q *Queries) GetMenuModifier(ctx context.Context, id uuid.UUID) (MenuModifier, error) {
	row := q.db.QueryRow(ctx, getMenuModifier, id)
	var i MenuModifier
	err := row.Scan(
		&i.ID,
		&i.MenuItemID,
		&i.Name,
		&i.Price,
		&i.IsActive,
	)
	return i, err
}

const listMenuIngredients = `-- name: ListMenuIngredients :many
SELECT menu_item_id, ingredient_id, quantity_required
FROM menu_ingredients
WHERE menu_item_id = $1
ORDER BY ingredient_id
`

func (q *Queries) ListMenuIngredients(ctx context.Context, menuItemID uuid.UUID) ([]MenuIngredient, error) {
	rows, err := q.db.Query(ctx, listMenuIngredients, menuItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []MenuIngredient{}
	for rows.Next() {
		var i MenuIngredient
		if err := rows.Scan(&i.MenuItemID, &i.IngredientID, &i.QuantityRequired); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const adjustIngredientStock = `-- name: AdjustIngredientStock :one
UPDATE ingredients
SET stock_quantity = stock_quantity + $2, updated_at = now()
WHERE id = $1
RETURNING id, name, unit, stock_quantity, low_stock_threshold, updated_at
`

type AdjustIngredientStockParams struct {
	ID    uuid.UUID      `json:"id"`
	Delta pgtype.Numeric `json:"delta"`
}

func (q *Queries) AdjustIngredientStock(ctx context.Context, arg AdjustIngredientStockParams) (Ingredient, error) {
	row := q.db.QueryRow(ctx, adjustIngredientStock, arg.ID, arg.Delta)
	var i Ingredient
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Unit,
		&i.StockQuantity,
		&i.LowStockThreshold,
		&i.UpdatedAt,
	)
	return i, err
}
