package store

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/example/stock-ledger/internal/domain/ledger"
)

// ErrTransient marks failures the caller may retry unchanged: deadlocks,
// lock-wait timeouts and serialization failures surfaced by the database.
var ErrTransient = errors.New("transient store failure")

// Tx is the write path. Every stock-affecting decision must be made through
// a Tx while it holds the lock on the item concerned.
type Tx interface {
	ledger.StockCounter
	ledger.OrderSequence

	// LockItem takes the exclusive lock on the item row. Absent and
	// soft-deleted items fail with ledger.ErrItemNotFound.
	LockItem(ctx context.Context, id int64) (*ledger.Item, error)
	LockMovement(ctx context.Context, id int64) (*ledger.Movement, error)
	LockOrder(ctx context.Context, orderNo string) (*ledger.Order, error)

	InsertItem(ctx context.Context, item *ledger.Item) error
	UpdateItem(ctx context.Context, item *ledger.Item) error
	SoftDeleteItem(ctx context.Context, id int64, at time.Time) error

	InsertMovement(ctx context.Context, m *ledger.Movement) error
	UpdateMovement(ctx context.Context, m *ledger.Movement) error
	SoftDeleteMovement(ctx context.Context, id int64, at time.Time) error

	InsertOrder(ctx context.Context, o *ledger.Order) error
	UpdateOrder(ctx context.Context, o *ledger.Order) error
	SoftDeleteOrder(ctx context.Context, orderNo string, at time.Time) error

	AppendEvent(ctx context.Context, e Event) error
}

// Reader is the lock-free read path. It observes committed state only.
type Reader interface {
	GetItem(ctx context.Context, id int64) (*ledger.Item, error)
	// GetItemAny also resolves soft-deleted items, for display of historical rows.
	GetItemAny(ctx context.Context, id int64) (*ledger.Item, error)
	ListItems(ctx context.Context, p Page) (PageResult[ledger.Item], error)

	GetMovement(ctx context.Context, id int64) (*ledger.Movement, error)
	ListMovements(ctx context.Context, p Page) (PageResult[ledger.Movement], error)

	GetOrder(ctx context.Context, orderNo string) (*ledger.Order, error)
	ListOrders(ctx context.Context, p Page) (PageResult[ledger.Order], error)

	CurrentStock(ctx context.Context, itemID int64) (int, error)
	ListEvents(ctx context.Context, aggregateType, aggregateID string) ([]Event, error)
}

// Store runs write transactions and serves reads.
type Store interface {
	Reader
	// WithinTx commits when fn returns nil and rolls back otherwise. Locks
	// taken through the Tx are released when the transaction ends.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is a zero-based page request.
type Page struct {
	Number int
	Size   int
}

// NewPage clamps out-of-range values to the defaults.
func NewPage(number, size int) Page {
	if number < 0 {
		number = 0
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	// keep Offset within int
	if number > math.MaxInt/size {
		number = math.MaxInt / size
	}
	return Page{Number: number, Size: size}
}

func (p Page) Offset() int {
	return p.Number * p.Size
}

type PageResult[T any] struct {
	Items      []T `json:"content"`
	Page       int `json:"page"`
	Size       int `json:"size"`
	Total      int `json:"total_elements"`
	TotalPages int `json:"total_pages"`
}

func newPageResult[T any](items []T, p Page, total int) PageResult[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if p.Size > 0 {
		pages = (total + p.Size - 1) / p.Size
	}
	return PageResult[T]{Items: items, Page: p.Number, Size: p.Size, Total: total, TotalPages: pages}
}

// MapPage converts the items of a page, keeping its paging metadata.
func MapPage[T, U any](in PageResult[T], fn func(T) U) PageResult[U] {
	out := make([]U, len(in.Items))
	for i, v := range in.Items {
		out[i] = fn(v)
	}
	return PageResult[U]{Items: out, Page: in.Page, Size: in.Size, Total: in.Total, TotalPages: in.TotalPages}
}
