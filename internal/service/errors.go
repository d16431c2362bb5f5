package service

import (
	"errors"
	"fmt"
)

// Errors returned by the order, billing and payment services.
var (
	ErrNotFound               = errors.New("not found")
	ErrItemUnavailable        = errors.New("menu item is not available")
	ErrPendingBill            = errors.New("table has completed orders awaiting a bill; generate the bill first")
	ErrInvalidStateTransition = errors.New("invalid order state transition")
	ErrNothingToBill          = errors.New("no completed unbilled orders for table")
	ErrConcurrencyConflict    = errors.New("concurrent update conflict, please retry")

	ErrEmptyItems      = errors.New("items are required")
	ErrInvalidQuantity = errors.New("quantity must be > 0")
	ErrInvalidDiscount = errors.New("invalid discount_amount")
	ErrInvalidAmount   = errors.New("amount must be > 0")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrBillNotPayable  = errors.New("bill is settled through its combined bill")
)

var (
	ErrTableNotFound    = fmt.Errorf("table %w", ErrNotFound)
	ErrOrderNotFound    = fmt.Errorf("order %w", ErrNotFound)
	ErrMenuItemNotFound = fmt.Errorf("menu item %w", ErrNotFound)
	ErrModifierNotFound = fmt.Errorf("modifier %w", ErrNotFound)
	ErrCustomerNotFound = fmt.Errorf("customer %w", ErrNotFound)
	ErrBillNotFound     = fmt.Errorf("bill %w", ErrNotFound)
	ErrPaymentNotFound  = fmt.Errorf("payment %w", ErrNotFound)

	ErrOrderNotCompleted = fmt.Errorf("%w: order is not COMPLETED", ErrInvalidStateTransition)
	ErrOpenOrderOnTable  = fmt.Errorf("%w: table has an open order", ErrInvalidStateTransition)
)
