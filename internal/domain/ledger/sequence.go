package ledger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// OrderNoPrefix precedes the numeric suffix of every order number.
const OrderNoPrefix = "O"

// OrderSequence serializes order-number assignment. MaxOrderSeq must include
// soft-deleted orders so that numbers are never reused.
type OrderSequence interface {
	LockOrderSequence(ctx context.Context) error
	MaxOrderSeq(ctx context.Context) (int64, error)
}

// NextOrderNo locks the sequence and returns "O" + (max suffix + 1). The lock
// is held until the enclosing transaction ends, so the insert must happen in
// the same transaction.
func NextOrderNo(ctx context.Context, s OrderSequence) (string, error) {
	if err := s.LockOrderSequence(ctx); err != nil {
		return "", fmt.Errorf("lock order sequence: %w", err)
	}
	highest, err := s.MaxOrderSeq(ctx)
	if err != nil {
		return "", fmt.Errorf("read order sequence: %w", err)
	}
	return FormatOrderNo(highest + 1), nil
}

func FormatOrderNo(seq int64) string {
	return OrderNoPrefix + strconv.FormatInt(seq, 10)
}

// ParseOrderSeq extracts the numeric suffix of an order number.
func ParseOrderSeq(orderNo string) (int64, error) {
	rest, ok := strings.CutPrefix(orderNo, OrderNoPrefix)
	if !ok || rest == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidOrderNo, orderNo)
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidOrderNo, orderNo)
		}
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidOrderNo, orderNo)
	}
	return n, nil
}
