package item

import "github.com/shopspring/decimal"

const (
	EventItemCreated = "ItemCreated"
	EventItemUpdated = "ItemUpdated"
	EventItemDeleted = "ItemDeleted"
)

type ItemCreated struct {
	ItemID int64           `json:"item_id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}

type ItemUpdated struct {
	ItemID        int64           `json:"item_id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	PreviousName  string          `json:"previous_name"`
	PreviousPrice decimal.Decimal `json:"previous_price"`
}

type ItemDeleted struct {
	ItemID     int64 `json:"item_id"`
	StockAfter int   `json:"stock_after"`
}
