package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Item is a catalogue entry. Its stock is never stored; see CurrentStock.
type Item struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	IsDeleted bool            `json:"is_deleted"`
	DeletedAt *time.Time      `json:"deleted_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// MovementKind carries the direction of an inventory movement.
type MovementKind string

const (
	KindTopUp      MovementKind = "T"
	KindWithdrawal MovementKind = "W"
)

func (k MovementKind) Valid() bool {
	return k == KindTopUp || k == KindWithdrawal
}

// Effect returns the signed contribution of qty units of this kind to stock.
func (k MovementKind) Effect(qty int) int {
	if k == KindWithdrawal {
		return -qty
	}
	return qty
}

func (k MovementKind) String() string {
	switch k {
	case KindTopUp:
		return "TopUp"
	case KindWithdrawal:
		return "Withdrawal"
	}
	return string(k)
}

// ParseMovementKind accepts the short codes and the spelled-out names.
func ParseMovementKind(s string) (MovementKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "T", "TOPUP", "TOP_UP":
		return KindTopUp, nil
	case "W", "WITHDRAWAL":
		return KindWithdrawal, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// Movement is one inventory adjustment. Quantity is always positive.
type Movement struct {
	ID        int64        `json:"id"`
	ItemID    int64        `json:"item_id"`
	Quantity  int          `json:"quantity"`
	Kind      MovementKind `json:"type"`
	IsDeleted bool         `json:"is_deleted"`
	DeletedAt *time.Time   `json:"deleted_at,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Effect is the movement's signed contribution to its item's stock.
func (m *Movement) Effect() int {
	return m.Kind.Effect(m.Quantity)
}

// Order is a sale consuming stock. OrderNo is immutable once assigned.
type Order struct {
	OrderNo   string          `json:"order_no"`
	ItemID    int64           `json:"item_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	IsDeleted bool            `json:"is_deleted"`
	DeletedAt *time.Time      `json:"deleted_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
