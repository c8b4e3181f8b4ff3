package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

var (
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be positive", ErrInvalidArgument)
	ErrInvalidPrice    = fmt.Errorf("%w: price must be positive", ErrInvalidArgument)
	ErrInvalidKind     = fmt.Errorf("%w: movement type must be T or W", ErrInvalidArgument)
	ErrInvalidName     = fmt.Errorf("%w: name is required", ErrInvalidArgument)
	ErrInvalidOrderNo  = fmt.Errorf("%w: malformed order number", ErrInvalidArgument)

	ErrItemNotFound     = fmt.Errorf("item %w", ErrNotFound)
	ErrMovementNotFound = fmt.Errorf("inventory movement %w", ErrNotFound)
	ErrOrderNotFound    = fmt.Errorf("order %w", ErrNotFound)
)

// InsufficientStockError reports a withdrawal or order that would drive
// derived stock below zero.
type InsufficientStockError struct {
	ItemID    int64  `json:"item_id"`
	ItemName  string `json:"item_name"`
	Current   int    `json:"current"`
	Available int    `json:"available"`
	Requested int    `json:"requested"`
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %d (%s): current=%d available=%d requested=%d",
		e.ItemID, e.ItemName, e.Current, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// CheckAvailable returns an *InsufficientStockError when requested exceeds available.
func CheckAvailable(item *Item, current, available, requested int) error {
	if available >= requested {
		return nil
	}
	return &InsufficientStockError{
		ItemID:    item.ID,
		ItemName:  item.Name,
		Current:   current,
		Available: available,
		Requested: requested,
	}
}

// IsRejection reports whether err is a terminal failure caused by the
// request itself rather than by the store.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInsufficientStock)
}
