package movement

import "github.com/example/stock-ledger/internal/domain/ledger"

const (
	EventMovementRecorded = "MovementRecorded"
	EventMovementUpdated  = "MovementUpdated"
	EventMovementDeleted  = "MovementDeleted"
)

type MovementRecorded struct {
	MovementID int64               `json:"movement_id"`
	ItemID     int64               `json:"item_id"`
	Quantity   int                 `json:"quantity"`
	Kind       ledger.MovementKind `json:"type"`
	StockAfter int                 `json:"stock_after"`
}

type MovementUpdated struct {
	MovementID             int64               `json:"movement_id"`
	ItemID                 int64               `json:"item_id"`
	Quantity               int                 `json:"quantity"`
	Kind                   ledger.MovementKind `json:"type"`
	PreviousItemID         int64               `json:"previous_item_id"`
	PreviousQuantity       int                 `json:"previous_quantity"`
	PreviousKind           ledger.MovementKind `json:"previous_type"`
	StockAfter             int                 `json:"stock_after"`
	PreviousItemStockAfter *int                `json:"previous_item_stock_after,omitempty"`
}

type MovementDeleted struct {
	MovementID int64               `json:"movement_id"`
	ItemID     int64               `json:"item_id"`
	Quantity   int                 `json:"quantity"`
	Kind       ledger.MovementKind `json:"type"`
	StockAfter int                 `json:"stock_after"`
}
