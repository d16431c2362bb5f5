package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const billColumns = `id, invoice_number, order_id, customer_id, total_amount, cgst, sgst, igst,
    discount_amount, grand_total, payment_status, paid_amount, pending_amount,
    company_gstin, customer_gstin, place_of_supply, is_inter_state,
    combined_bill_group_id, generated_at`

func scanBill(row interface{ Scan(...interface{}) error }) (Bill, error) {
	var i Bill
	err := row.Scan(
		&i.ID,
		&i.InvoiceNumber,
		&i.OrderID,
		&i.CustomerID,
		&i.TotalAmount,
		&i.Cgst,
		&i.Sgst,
		&i.Igst,
		&i.DiscountAmount,
		&i.GrandTotal,
		&i.PaymentStatus,
		&i.PaidAmount,
		&i.PendingAmount,
		&i.CompanyGstin,
		&i.CustomerGstin,
		&i.PlaceOfSupply,
		&i.IsInterState,
		&i.CombinedBillGroupID,
		&i.GeneratedAt,
	)
	return i, err
}

const createBill = `-- name: CreateBill :one
INSERT INTO bills (
    invoice_number, order_id, customer_id, total_amount, cgst, sgst, igst,
    discount_amount, grand_total, payment_status, paid_amount, pending_amount,
    company_gstin, customer_gstin, place_of_supply, is_inter_state,
    combined_bill_group_id
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
)
RETURNING ` + billColumns

type CreateBillParams struct {
	InvoiceNumber       string         `json:"invoice_number"`
	OrderID             uuid.UUID      `json:"order_id"`
	CustomerID          pgtype.UUID    `json:"customer_id"`
	TotalAmount         pgtype.Numeric `json:"total_amount"`
	Cgst                pgtype.Numeric `json:"cgst"`
	Sgst                pgtype.Numeric `json:"sgst"`
	Igst                pgtype.Numeric `json:"igst"`
	DiscountAmount      pgtype.Numeric `json:"discount_amount"`
	GrandTotal          pgtype.Numeric `json:"grand_total"`
	PaymentStatus       string         `json:"payment_status"`
	PaidAmount          pgtype.Numeric `json:"paid_amount"`
	PendingAmount       pgtype.Numeric `json:"pending_amount"`
	CompanyGstin        string         `json:"company_gstin"`
	CustomerGstin       pgtype.Text    `json:"customer_gstin"`
	PlaceOfSupply       string         `json:"place_of_supply"`
	IsInterState        bool           `json:"is_inter_state"`
	CombinedBillGroupID pgtype.UUID    `json:"combined_bill_group_id"`
}

func (q *Queries) CreateBill(ctx context.Context, arg CreateBillParams) (Bill, error) {
	return scanBill(q.db.QueryRow(ctx, createBill,
		arg.InvoiceNumber,
		arg.OrderID,
		arg.CustomerID,
		arg.TotalAmount,
		arg.Cgst,
		arg.Sgst,
		arg.Igst,
		arg.DiscountAmount,
		arg.GrandTotal,
		arg.PaymentStatus,
		arg.PaidAmount,
		arg.PendingAmount,
		arg.CompanyGstin,
		arg.CustomerGstin,
		arg.PlaceOfSupply,
		arg.IsInterState,
		arg.CombinedBillGroupID,
	))
}

const getBill = `-- name: GetBill :one
SELECT ` + billColumns + ` FROM bills WHERE id = $1
`

func (q *Queries) GetBill(ctx context.Context, id uuid.UUID) (Bill, error) {
	return scanBill(q.db.QueryRow(ctx, getBill, id))
}

const getBillForUpdate = `-- name: GetBillForUpdate :one
SELECT ` + billColumns + ` FROM bills WHERE id = $1 FOR UPDATE
`

func (q *Queries) GetBillForUpdate(ctx context.Context, id uuid.UUID) (Bill, error) {
	return scanBill(q.db.QueryRow(ctx, getBillForUpdate, id))
}

const getBillByOrder = `-- name: GetBillByOrder :one
SELECT ` + billColumns + ` FROM bills WHERE order_id = $1
`

func (q *Queries) GetBillByOrder(ctx context.Context, orderID uuid.UUID) (Bill, error) {
	return scanBill(q.db.QueryRow(ctx, getBillByOrder, orderID))
}

const listBillsByGroup = `-- name: ListBillsByGroup :many
SELECT ` + billColumns + ` FROM bills
WHERE combined_bill_group_id = $1
ORDER BY generated_at, id
`

func (q *Queries) ListBillsByGroup(ctx context.Context, groupID pgtype.UUID) ([]Bill, error) {
	rows, err := q.db.Query(ctx, listBillsByGroup, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Bill{}
	for rows.Next() {
		i, err := scanBill(rows)
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

const updateBillPayment = `-- name: UpdateBillPayment :one
UPDATE bills
SET paid_amount = $2, pending_amount = $3, payment_status = $4
WHERE id = $1
RETURNING ` + billColumns

type UpdateBillPaymentParams struct {
	ID            uuid.UUID      `json:"id"`
	PaidAmount    pgtype.Numeric `json:"paid_amount"`
	PendingAmount pgtype.Numeric `json:"pending_amount"`
	PaymentStatus string         `json:"payment_status"`
}

func (q *Queries) UpdateBillPayment(ctx context.Context, arg UpdateBillPaymentParams) (Bill, error) {
	return scanBill(q.db.QueryRow(ctx, updateBillPayment,
		arg.ID,
		arg.PaidAmount,
		arg.PendingAmount,
		arg.PaymentStatus,
	))
}
