package order

import "github.com/shopspring/decimal"

const (
	EventOrderCreated = "OrderCreated"
	EventOrderUpdated = "OrderUpdated"
	EventOrderDeleted = "OrderDeleted"
)

type OrderCreated struct {
	OrderNo    string          `json:"order_no"`
	ItemID     int64           `json:"item_id"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	StockAfter int             `json:"stock_after"`
}

type OrderUpdated struct {
	OrderNo                string          `json:"order_no"`
	ItemID                 int64           `json:"item_id"`
	Quantity               int             `json:"quantity"`
	Price                  decimal.Decimal `json:"price"`
	PreviousItemID         int64           `json:"previous_item_id"`
	PreviousQuantity       int             `json:"previous_quantity"`
	PreviousPrice          decimal.Decimal `json:"previous_price"`
	StockAfter             int             `json:"stock_after"`
	PreviousItemStockAfter *int            `json:"previous_item_stock_after,omitempty"`
}

type OrderDeleted struct {
	OrderNo    string `json:"order_no"`
	ItemID     int64  `json:"item_id"`
	Quantity   int    `json:"quantity"`
	StockAfter int    `json:"stock_after"`
}
