package command

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/stock-ledger/internal/infrastructure/store"
)

type seedItem struct {
	name  string
	price string
}

type seedMovement struct {
	item string
	qty  int
	kind string
}

type seedOrder struct {
	item string
	qty  int
}

var (
	seedItems = []seedItem{
		{"Pen", "5.00"}, {"Book", "20.00"}, {"Bag", "150.00"}, {"Pencil", "3.00"},
		{"Shoe", "300.00"}, {"Box", "75.00"}, {"Cap", "50.00"},
	}
	seedMovements = []seedMovement{
		{"Pen", 5, "T"}, {"Book", 10, "T"}, {"Bag", 3, "T"}, {"Pencil", 8, "T"},
		{"Shoe", 2, "T"}, {"Box", 4, "T"}, {"Cap", 6, "T"}, {"Pen", 2, "W"}, {"Book", 3, "T"},
	}
	seedOrders = []seedOrder{
		{"Pen", 1}, {"Book", 2}, {"Bag", 1}, {"Pencil", 3}, {"Shoe", 1},
		{"Box", 1}, {"Cap", 2}, {"Pen", 1}, {"Book", 1}, {"Bag", 1},
	}
)

// Seed loads the sample catalogue through the command handler. It does
// nothing when any item already exists.
func Seed(ctx context.Context, h *Handler, reader store.Reader, logger *zap.Logger) (bool, error) {
	existing, err := reader.ListItems(ctx, store.NewPage(0, 1))
	if err != nil {
		return false, err
	}
	if existing.Total > 0 {
		logger.Info("seed skipped, items already present", zap.Int("items", existing.Total))
		return false, nil
	}

	ids := make(map[string]int64, len(seedItems))
	for _, si := range seedItems {
		it, err := h.CreateItem(ctx, CreateItem{Name: si.name, Price: decimal.RequireFromString(si.price)})
		if err != nil {
			return false, fmt.Errorf("seed item %s: %w", si.name, err)
		}
		ids[si.name] = it.ID
	}
	for _, sm := range seedMovements {
		if _, err := h.RecordMovement(ctx, RecordMovement{ItemID: ids[sm.item], Quantity: sm.qty, Type: sm.kind}); err != nil {
			return false, fmt.Errorf("seed movement %s %s%d: %w", sm.item, sm.kind, sm.qty, err)
		}
	}
	for _, so := range seedOrders {
		if _, err := h.CreateOrder(ctx, CreateOrder{ItemID: ids[so.item], Quantity: so.qty}); err != nil {
			return false, fmt.Errorf("seed order %s x%d: %w", so.item, so.qty, err)
		}
	}

	logger.Info("seeded catalogue",
		zap.Int("items", len(seedItems)),
		zap.Int("movements", len(seedMovements)),
		zap.Int("orders", len(seedOrders)),
	)
	return true, nil
}
