package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const paymentColumns = `id, bill_id, customer_id, amount, mode, status, created_at, updated_at`

func scanPayment(row interface{ Scan(...interface{}) error }) (Payment, error) {
	var i Payment
	err := row.Scan(
		&i.ID,
		&i.BillID,
		&i.CustomerID,
		&i.Amount,
		&i.Mode,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createPayment = `-- name: CreatePayment :one
INSERT INTO payments (bill_id, customer_id, amount, mode, status)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + paymentColumns

type CreatePaymentParams struct {
	BillID     uuid.UUID      `json:"bill_id"`
	CustomerID pgtype.UUID    `json:"customer_id"`
	Amount     pgtype.Numeric `json:"amount"`
	Mode       string         `json:"mode"`
	Status     string         `json:"status"`
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, createPayment,
		arg.BillID,
		arg.CustomerID,
		arg.Amount,
		arg.Mode,
		arg.Status,
	))
}

const getPayment = `-- name: GetPayment :one
SELECT ` + paymentColumns + ` FROM payments WHERE id = $1
`

func (q *Queries) GetPayment(ctx context.Context, id uuid.UUID) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, getPayment, id))
}

const updatePayment = `-- name: UpdatePayment :one
UPDATE payments SET amount = $2, mode = $3, status = $4, updated_at = now()
WHERE id = $1
RETURNING ` + paymentColumns

type UpdatePaymentParams struct {
	ID     uuid.UUID      `json:"id"`
	Amount pgtype.Numeric `json:"amount"`
	Mode   string         `json:"mode"`
	Status string         `json:"status"`
}

func (q *Queries) UpdatePayment(ctx context.Context, arg UpdatePaymentParams) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, updatePayment, arg.ID, arg.Amount, arg.Mode, arg.Status))
}

const deletePayment = `-- name: DeletePayment :exec
DELETE FROM payments WHERE id = $1
`

func (q *Queries) DeletePayment(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deletePayment, id)
	return err
}

const listPaymentsByBill = `-- name: ListPaymentsByBill :many
SELECT ` + paymentColumns + ` FROM payments WHERE bill_id = $1 ORDER BY created_at, id
`

func (q *Queries) ListPaymentsByBill(ctx context.Context, billID uuid.UUID) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listPaymentsByBill, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Payment{}
	for rows.Next() {
		i, err := scanPayment(rows)
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

const sumCompletedPayments = `-- name: SumCompletedPayments :one
SELECT COALESCE(SUM(amount), 0)::numeric FROM payments
WHERE bill_id = $1 AND status = 'COMPLETED'
`

func (q *Queries) SumCompletedPayments(ctx context.Context, billID uuid.UUID) (pgtype.Numeric, error) {
	row := q.db.QueryRow(ctx, sumCompletedPayments, billID)
	var total pgtype.Numeric
	err := row.Scan(&total)
	return total, err
}
