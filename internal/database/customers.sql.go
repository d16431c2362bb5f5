package database

import (
	"context"

	"github.com/google/uuid"
)

const getCustomer = `-- name: GetCustomer :one
SELECT id, name, phone, gstin, state_code, created_at FROM customers WHERE id = $1
`

func (q *Queries) GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error) {
	row := q.db.QueryRow(ctx, getCustomer, id)
	var i Customer
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Phone,
		&i.Gstin,
		&i.StateCode,
		&i.CreatedAt,
	)
	return i, err
}
