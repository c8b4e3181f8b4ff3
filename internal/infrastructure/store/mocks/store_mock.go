package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/stock-ledger/internal/domain/ledger"
	"github.com/example/stock-ledger/internal/infrastructure/store"
)

// MockStore is an in-memory store.Store that records lock calls and lets
// tests inject failures.
type MockStore struct {
	*store.MemoryStore

	mu            sync.Mutex
	TxCalls       int
	LockItemCalls []int64

	// TxErr fails WithinTx before the callback runs.
	TxErr error
	// LockItemErr fails every LockItem call.
	LockItemErr error
	// AppendEventErr fails every AppendEvent call, rolling the transaction back.
	AppendEventErr error
}

func NewMockStore(opts ...store.MemoryOption) *MockStore {
	return &MockStore{MemoryStore: store.NewMemoryStore(opts...)}
}

func (m *MockStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	m.mu.Lock()
	m.TxCalls++
	txErr := m.TxErr
	m.mu.Unlock()
	if txErr != nil {
		return txErr
	}
	return m.MemoryStore.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, &recordingTx{Tx: tx, m: m})
	})
}

// LockedItems returns a copy of the item ids passed to LockItem.
func (m *MockStore) LockedItems() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.LockItemCalls...)
}

type recordingTx struct {
	store.Tx
	m *MockStore
}

func (t *recordingTx) LockItem(ctx context.Context, id int64) (*ledger.Item, error) {
	t.m.mu.Lock()
	t.m.LockItemCalls = append(t.m.LockItemCalls, id)
	err := t.m.LockItemErr
	t.m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return t.Tx.LockItem(ctx, id)
}

func (t *recordingTx) AppendEvent(ctx context.Context, e store.Event) error {
	t.m.mu.Lock()
	err := t.m.AppendEventErr
	t.m.mu.Unlock()
	if err != nil {
		return err
	}
	return t.Tx.AppendEvent(ctx, e)
}

// ============================================
// Fixtures (bypass validation)
// ============================================

// AddItem inserts an item directly.
func (m *MockStore) AddItem(name, price string) ledger.Item {
	now := time.Now().UTC()
	item := ledger.Item{Name: name, Price: decimal.RequireFromString(price), CreatedAt: now, UpdatedAt: now}
	m.mustTx(func(ctx context.Context, tx store.Tx) error {
		return tx.InsertItem(ctx, &item)
	})
	return item
}

// AddMovement inserts a movement directly, without a stock check.
func (m *MockStore) AddMovement(itemID int64, qty int, kind ledger.MovementKind) ledger.Movement {
	now := time.Now().UTC()
	mv := ledger.Movement{ItemID: itemID, Quantity: qty, Kind: kind, CreatedAt: now, UpdatedAt: now}
	m.mustTx(func(ctx context.Context, tx store.Tx) error {
		return tx.InsertMovement(ctx, &mv)
	})
	return mv
}

// AddOrder inserts an order directly under the given number.
func (m *MockStore) AddOrder(orderNo string, itemID int64, qty int, price string) ledger.Order {
	now := time.Now().UTC()
	o := ledger.Order{OrderNo: orderNo, ItemID: itemID, Quantity: qty, Price: decimal.RequireFromString(price), CreatedAt: now, UpdatedAt: now}
	m.mustTx(func(ctx context.Context, tx store.Tx) error {
		return tx.InsertOrder(ctx, &o)
	})
	return o
}

// Stock returns the committed derived stock of an item.
func (m *MockStore) Stock(itemID int64) int {
	n, err := m.MemoryStore.CurrentStock(context.Background(), itemID)
	if err != nil {
		panic(err)
	}
	return n
}

func (m *MockStore) mustTx(fn func(ctx context.Context, tx store.Tx) error) {
	if err := m.MemoryStore.WithinTx(context.Background(), fn); err != nil {
		panic(err)
	}
}
