package readmodel

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ItemReadModel is an item with its derived stock
type ItemReadModel struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	CurrentStock int             `json:"current_stock"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// MovementReadModel is an inventory movement with the item name resolved
type MovementReadModel struct {
	ID        int64     `json:"id"`
	ItemID    int64     `json:"item_id"`
	ItemName  string    `json:"item_name"`
	Quantity  int       `json:"qty"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderReadModel is an order with the item name resolved
type OrderReadModel struct {
	OrderNo   string          `json:"order_no"`
	ItemID    int64           `json:"item_id"`
	ItemName  string          `json:"item_name"`
	Quantity  int             `json:"qty"`
	Price     decimal.Decimal `json:"price"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// StockReadModel answers GET /items/{id}/stock
type StockReadModel struct {
	ItemID       int64  `json:"item_id"`
	ItemName     string `json:"item_name"`
	CurrentStock int    `json:"current_stock"`
}

// EventReadModel is one entry of an aggregate's audit trail
type EventReadModel struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}
