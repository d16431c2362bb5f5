// Package notify fans order and bill events out to live subscribers.
// Delivery is best effort: callers log failures and carry on.
package notify

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Event types.
const (
	EventOrderUpdated   = "order.updated"
	EventBillGenerated  = "bill.generated"
	EventPaymentUpdated = "bill.payment_updated"
)

// Event is a snapshot of something that changed at a table.
type Event struct {
	Type    string    `json:"type"`
	TableID uuid.UUID `json:"table_id"`
	Payload any       `json:"payload"`
}

// Notifier delivers events to one destination.
type Notifier interface {
	Notify(ctx context.Context, evt Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

type multi []Notifier

// Multi delivers each event to every notifier, joining their errors.
func Multi(notifiers ...Notifier) Notifier {
	return multi(notifiers)
}

func (m multi) Notify(ctx context.Context, evt Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
