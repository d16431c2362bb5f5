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

// PaymentStore defines the DB methods needed to record payments and keep the
// bill's payment fields in step.
type PaymentStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetBillForUpdate(ctx context.Context, id uuid.UUID) (database.Bill, error)
	UpdateBillPayment(ctx context.Context, arg database.UpdateBillPaymentParams) (database.Bill, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (database.Payment, error)
	UpdatePayment(ctx context.Context, arg database.UpdatePaymentParams) (database.Payment, error)
	DeletePayment(ctx context.Context, id uuid.UUID) error
	ListPaymentsByBill(ctx context.Context, billID uuid.UUID) ([]database.Payment, error)
	SumCompletedPayments(ctx context.Context, billID uuid.UUID) (pgtype.Numeric, error)
}

// NewPaymentStore creates a PaymentStore from a DBTX (pool or tx).
type NewPaymentStore func(db database.DBTX) PaymentStore

// PaymentRequest is a validated payment input. Status defaults to COMPLETED.
type PaymentRequest struct {
	Amount     decimal.Decimal
	Mode       string
	Status     string
	CustomerID *uuid.UUID
}

// PaymentResult is the payment as written and the bill after recomputation.
type PaymentResult struct {
	Payment database.Payment
	Bill    database.Bill
}

// PaymentService records payments against bills.
type PaymentService struct {
	db       DB
	newStore NewPaymentStore
	notifier notify.Notifier
	logger   *zap.Logger
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(db DB, newStore NewPaymentStore, notifier notify.Notifier, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		db:       db,
		newStore: newStore,
		notifier: notifier,
		logger:   logger.Named("payments"),
	}
}

func (r *PaymentRequest) validate() error {
	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	switch r.Mode {
	case enum.PaymentModeCash, enum.PaymentModeCard, enum.PaymentModeUPI:
	default:
		return fmt.Errorf("%w: mode %q", ErrInvalidStatus, r.Mode)
	}
	if r.Status == "" {
		r.Status = enum.PaymentStatusCompleted
	}
	switch r.Status {
	case enum.PaymentStatusPending, enum.PaymentStatusCompleted, enum.PaymentStatusFailed:
	default:
		return fmt.Errorf("%w: payment status %q", ErrInvalidStatus, r.Status)
	}
	return nil
}

// Record adds a payment to a bill.
func (s *PaymentService) Record(ctx context.Context, billID uuid.UUID, req PaymentRequest) (*PaymentResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var customerID pgtype.UUID
	if req.CustomerID != nil {
		customerID = pgtype.UUID{Bytes: *req.CustomerID, Valid: true}
	}

	return s.inBillTx(ctx, billID, func(store PaymentStore) (database.Payment, error) {
		payment, err := store.CreatePayment(ctx, database.CreatePaymentParams{
			BillID:     billID,
			CustomerID: customerID,
			Amount:     decimalToNumeric(req.Amount),
			Mode:       req.Mode,
			Status:     req.Status,
		})
		if err != nil {
			return database.Payment{}, fmt.Errorf("create payment: %w", err)
		}
		return payment, nil
	})
}

// Update changes a payment's amount, mode or status.
func (s *PaymentService) Update(ctx context.Context, paymentID uuid.UUID, req PaymentRequest) (*PaymentResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	billID, err := s.billOf(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	return s.inBillTx(ctx, billID, func(store PaymentStore) (database.Payment, error) {
		payment, err := store.UpdatePayment(ctx, database.UpdatePaymentParams{
			ID:     paymentID,
			Amount: decimalToNumeric(req.Amount),
			Mode:   req.Mode,
			Status: req.Status,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return database.Payment{}, ErrPaymentNotFound
			}
			return database.Payment{}, fmt.Errorf("update payment: %w", err)
		}
		return payment, nil
	})
}

// Delete removes a payment and returns the recomputed bill.
func (s *PaymentService) Delete(ctx context.Context, paymentID uuid.UUID) (*database.Bill, error) {
	billID, err := s.billOf(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	result, err := s.inBillTx(ctx, billID, func(store PaymentStore) (database.Payment, error) {
		payment, err := store.GetPayment(ctx, paymentID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return database.Payment{}, ErrPaymentNotFound
			}
			return database.Payment{}, fmt.Errorf("get payment: %w", err)
		}
		if err := store.DeletePayment(ctx, paymentID); err != nil {
			return database.Payment{}, fmt.Errorf("delete payment: %w", err)
		}
		return payment, nil
	})
	if err != nil {
		return nil, err
	}
	return &result.Bill, nil
}

// List returns a bill's payments.
func (s *PaymentService) List(ctx context.Context, billID uuid.UUID) ([]database.Payment, error) {
	payments, err := s.newStore(s.db).ListPaymentsByBill(ctx, billID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

func (s *PaymentService) billOf(ctx context.Context, paymentID uuid.UUID) (uuid.UUID, error) {
	payment, err := s.newStore(s.db).GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrPaymentNotFound
		}
		return uuid.Nil, fmt.Errorf("get payment: %w", err)
	}
	return payment.BillID, nil
}

// inBillTx locks the bill, applies change and recomputes the bill's paid,
// pending and status fields from its completed payments.
func (s *PaymentService) inBillTx(ctx context.Context, billID uuid.UUID, change func(PaymentStore) (database.Payment, error)) (*PaymentResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	bill, err := store.GetBillForUpdate(ctx, billID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBillNotFound
		}
		return nil, fmt.Errorf("lock bill: %w", err)
	}
	if bill.PaymentStatus == enum.BillStatusCombined {
		return nil, ErrBillNotPayable
	}

	payment, err := change(store)
	if err != nil {
		return nil, err
	}
	if payment.BillID != billID {
		return nil, ErrPaymentNotFound
	}

	sum, err := store.SumCompletedPayments(ctx, billID)
	if err != nil {
		return nil, fmt.Errorf("sum payments: %w", err)
	}
	paid := numericToDecimal(sum)
	grand := numericToDecimal(bill.GrandTotal)

	pending := grand.Sub(paid)
	if pending.IsNegative() {
		pending = decimal.Zero
	}

	updated, err := store.UpdateBillPayment(ctx, database.UpdateBillPaymentParams{
		ID:            billID,
		PaidAmount:    decimalToNumeric(paid),
		PendingAmount: decimalToNumeric(pending),
		PaymentStatus: DerivePaymentStatus(bill, paid),
	})
	if err != nil {
		return nil, fmt.Errorf("update bill payment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.logger.Info("bill payment recomputed",
		zap.Stringer("bill_id", billID),
		zap.String("paid", paid.StringFixed(2)),
		zap.String("status", updated.PaymentStatus))

	if order, err := s.newStore(s.db).GetOrder(ctx, updated.OrderID); err == nil && order.TableID.Valid {
		evt := notify.Event{Type: notify.EventPaymentUpdated, TableID: uuid.UUID(order.TableID.Bytes), Payload: updated}
		if err := s.notifier.Notify(ctx, evt); err != nil {
			s.logger.Warn("notify failed", zap.String("type", evt.Type), zap.Error(err))
		}
	}

	return &PaymentResult{Payment: payment, Bill: updated}, nil
}

// DerivePaymentStatus maps a bill and the sum of its completed payments to a
// payment status. An umbrella bill that has taken no money keeps
// COMBINED_BILL.
func DerivePaymentStatus(bill database.Bill, paid decimal.Decimal) string {
	switch {
	case bill.PaymentStatus == enum.BillStatusCombined:
		return enum.BillStatusCombined
	case !paid.IsPositive() && isUmbrella(bill):
		return enum.BillStatusCombinedBill
	case !paid.IsPositive():
		return enum.BillStatusPending
	case paid.GreaterThanOrEqual(numericToDecimal(bill.GrandTotal)):
		return enum.BillStatusPaid
	default:
		return enum.BillStatusPartial
	}
}
