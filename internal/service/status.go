package service

import (
	"fmt"

	"github.com/dinein-pos/api/internal/enum"
)

// allowedTransitions defines valid order status transitions.
// COMPLETED and CANCELLED are terminal.
var allowedTransitions = map[string][]string{
	enum.OrderStatusCreated:    {enum.OrderStatusInProgress, enum.OrderStatusCancelled},
	enum.OrderStatusInProgress: {enum.OrderStatusCompleted, enum.OrderStatusCancelled},
}

// IsValidOrderStatus reports whether s is a known order status.
func IsValidOrderStatus(s string) bool {
	switch s {
	case enum.OrderStatusCreated,
		enum.OrderStatusInProgress,
		enum.OrderStatusCompleted,
		enum.OrderStatusCancelled:
		return true
	}
	return false
}

// ValidateTransition checks that an order may move from current to next.
func ValidateTransition(current, next string) error {
	for _, s := range allowedTransitions[current] {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, current, next)
}

// IsOpen reports whether an order in this status still accepts items.
func IsOpen(status string) bool {
	return status == enum.OrderStatusCreated || status == enum.OrderStatusInProgress
}

// IsBillable reports whether an order in this status may be billed.
func IsBillable(status string) bool {
	return status == enum.OrderStatusCompleted
}
