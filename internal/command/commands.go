package command

import "github.com/shopspring/decimal"

// Item Commands
type CreateItem struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type UpdateItem struct {
	ItemID int64           `json:"-"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}

type DeleteItem struct {
	ItemID int64 `json:"-"`
}

// Inventory Commands
type RecordMovement struct {
	ItemID   int64  `json:"item_id"`
	Quantity int    `json:"qty"`
	Type     string `json:"type"` // T = top up, W = withdrawal
}

type UpdateMovement struct {
	MovementID int64  `json:"-"`
	ItemID     int64  `json:"item_id"`
	Quantity   int    `json:"qty"`
	Type       string `json:"type"`
}

type DeleteMovement struct {
	MovementID int64 `json:"-"`
}

// Order Commands
type CreateOrder struct {
	ItemID   int64            `json:"item_id"`
	Quantity int              `json:"qty"`
	Price    *decimal.Decimal `json:"price,omitempty"` // defaults to the item price
}

type UpdateOrder struct {
	OrderNo  string           `json:"-"`
	ItemID   int64            `json:"item_id"`
	Quantity int              `json:"qty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

type DeleteOrder struct {
	OrderNo string `json:"-"`
}
