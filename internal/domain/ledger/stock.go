package ledger

import (
	"context"
	"fmt"
)

// StockCounter exposes the aggregate sums stock is derived from. Only rows
// that are not soft-deleted are counted.
type StockCounter interface {
	SumMovements(ctx context.Context, itemID int64) (topUps, withdrawals int, err error)
	SumOrdered(ctx context.Context, itemID int64) (int, error)
}

// CurrentStock derives stock as top-ups minus withdrawals minus ordered
// quantity. It does not check that the item exists; an unknown id yields 0.
// Call it inside the transaction that holds the item lock when the result
// drives a write decision.
func CurrentStock(ctx context.Context, c StockCounter, itemID int64) (int, error) {
	topUps, withdrawals, err := c.SumMovements(ctx, itemID)
	if err != nil {
		return 0, fmt.Errorf("sum movements for item %d: %w", itemID, err)
	}
	ordered, err := c.SumOrdered(ctx, itemID)
	if err != nil {
		return 0, fmt.Errorf("sum orders for item %d: %w", itemID, err)
	}
	return topUps - withdrawals - ordered, nil
}
