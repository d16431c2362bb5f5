package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dinein-pos/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InventoryStore defines the DB methods needed to deduct stock.
type InventoryStore interface {
	ListMenuIngredients(ctx context.Context, menuItemID uuid.UUID) ([]database.MenuIngredient, error)
	AdjustIngredientStock(ctx context.Context, arg database.AdjustIngredientStockParams) (database.Ingredient, error)
}

// InventoryLedger deducts ingredient stock for billed lines. It runs inside
// the billing transaction, so a failed bill never leaves a deduction behind.
type InventoryLedger struct {
	logger *zap.Logger
}

func NewInventoryLedger(logger *zap.Logger) *InventoryLedger {
	return &InventoryLedger{logger: logger.Named("inventory")}
}

// StockLine is a billed quantity of one menu item.
type StockLine struct {
	MenuItemID uuid.UUID
	Quantity   int32
}

// Deduct removes the recipe quantities of every line from stock. Usage is
// summed per ingredient and rows are updated in ingredient id order, so two
// bills touching the same ingredients always lock them in the same order.
// Stock may go negative; that is logged, not refused, because the food has
// already been served.
func (l *InventoryLedger) Deduct(ctx context.Context, store InventoryStore, lines []StockLine) error {
	usage := map[uuid.UUID]decimal.Decimal{}
	for _, line := range lines {
		reqs, err := store.ListMenuIngredients(ctx, line.MenuItemID)
		if err != nil {
			return fmt.Errorf("list ingredients for %s: %w", line.MenuItemID, err)
		}
		for _, req := range reqs {
			used := numericToDecimal(req.QuantityRequired).Mul(decimal.NewFromInt32(line.Quantity))
			if !used.IsPositive() {
				continue
			}
			usage[req.IngredientID] = usage[req.IngredientID].Add(used)
		}
	}

	ids := make([]uuid.UUID, 0, len(usage))
	for id := range usage {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })

	for _, id := range ids {
		ing, err := store.AdjustIngredientStock(ctx, database.AdjustIngredientStockParams{
			ID:    id,
			Delta: quantityToNumeric(usage[id].Neg()),
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Dangling recipe row; nothing to deduct from.
				l.logger.Warn("ingredient missing", zap.Stringer("ingredient_id", id))
				continue
			}
			return fmt.Errorf("deduct ingredient %s: %w", id, err)
		}
		l.checkLowStock(ing)
	}
	return nil
}

func (l *InventoryLedger) checkLowStock(ing database.Ingredient) {
	stock := numericToDecimal(ing.StockQuantity)
	threshold := numericToDecimal(ing.LowStockThreshold)
	switch {
	case stock.IsNegative():
		l.logger.Warn("ingredient stock below zero",
			zap.String("ingredient", ing.Name),
			zap.String("stock", stock.String()),
			zap.String("unit", ing.Unit))
	case stock.LessThanOrEqual(threshold):
		l.logger.Warn("ingredient stock low",
			zap.String("ingredient", ing.Name),
			zap.String("stock", stock.String()),
			zap.String("threshold", threshold.String()),
			zap.String("unit", ing.Unit))
	}
}
