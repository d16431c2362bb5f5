package service

import (
	"context"
	"fmt"

	"github.com/dinein-pos/api/internal/database"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OccupancyStore defines the DB methods needed to reconcile a table.
type OccupancyStore interface {
	CountUnbilledOrdersForTable(ctx context.Context, tableID uuid.UUID) (int64, error)
	SetTableOccupancy(ctx context.Context, arg database.SetTableOccupancyParams) error
}

// OccupancyResolver decides whether a table is still in use.
// A table is vacant once it has no open order and every completed order has a bill.
type OccupancyResolver struct {
	logger *zap.Logger
}

func NewOccupancyResolver(logger *zap.Logger) *OccupancyResolver {
	return &OccupancyResolver{logger: logger.Named("occupancy")}
}

// Reconcile recomputes and stores the table's occupied flag. Calling it again
// without intervening changes writes the same value.
func (r *OccupancyResolver) Reconcile(ctx context.Context, store OccupancyStore, tableID uuid.UUID) (bool, error) {
	unbilled, err := store.CountUnbilledOrdersForTable(ctx, tableID)
	if err != nil {
		return false, fmt.Errorf("count unbilled orders: %w", err)
	}
	occupied := unbilled > 0
	if err := store.SetTableOccupancy(ctx, database.SetTableOccupancyParams{
		ID:       tableID,
		Occupied: occupied,
	}); err != nil {
		return false, fmt.Errorf("set table occupancy: %w", err)
	}
	r.logger.Debug("table reconciled",
		zap.Stringer("table_id", tableID),
		zap.Bool("occupied", occupied),
		zap.Int64("unbilled_orders", unbilled))
	return occupied, nil
}
