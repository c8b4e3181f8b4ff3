package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/example/stock-ledger/internal/domain/ledger"
)

// MemoryStore keeps the ledger in process memory. Exclusive locks are keyed
// per row; writes are staged in the transaction and applied on commit, so
// readers and other transactions only ever see committed state.
type MemoryStore struct {
	locks       *keyLocker
	lockTimeout time.Duration

	mu             sync.RWMutex
	items          map[int64]ledger.Item
	movements      map[int64]ledger.Movement
	orders         map[string]ledger.Order
	orderSeqs      map[string]int64
	events         []Event
	nextItemID     int64
	nextMovementID int64
}

type MemoryOption func(*MemoryStore)

// WithLockTimeout bounds how long a transaction waits for a row lock. A
// timeout surfaces as ErrTransient.
func WithLockTimeout(d time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.lockTimeout = d }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		locks:     newKeyLocker(),
		items:     make(map[int64]ledger.Item),
		movements: make(map[int64]ledger.Movement),
		orders:    make(map[string]ledger.Order),
		orderSeqs: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx := &memoryTx{
		store:     s,
		held:      make(map[string]bool),
		items:     make(map[int64]ledger.Item),
		movements: make(map[int64]ledger.Movement),
		orders:    make(map[string]ledger.Order),
	}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// ============================================
// Reader
// ============================================

func (s *MemoryStore) GetItem(ctx context.Context, id int64) (*ledger.Item, error) {
	item, err := s.GetItemAny(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.IsDeleted {
		return nil, ledger.ErrItemNotFound
	}
	return item, nil
}

func (s *MemoryStore) GetItemAny(ctx context.Context, id int64) (*ledger.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, ledger.ErrItemNotFound
	}
	return &item, nil
}

func (s *MemoryStore) ListItems(ctx context.Context, p Page) (PageResult[ledger.Item], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var live []ledger.Item
	for _, item := range s.items {
		if !item.IsDeleted {
			live = append(live, item)
		}
	}
	slices.SortFunc(live, func(a, b ledger.Item) int { return cmp.Compare(a.ID, b.ID) })
	return paginate(live, p), nil
}

func (s *MemoryStore) GetMovement(ctx context.Context, id int64) (*ledger.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.movements[id]
	if !ok || m.IsDeleted {
		return nil, ledger.ErrMovementNotFound
	}
	return &m, nil
}

func (s *MemoryStore) ListMovements(ctx context.Context, p Page) (PageResult[ledger.Movement], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var live []ledger.Movement
	for _, m := range s.movements {
		if !m.IsDeleted {
			live = append(live, m)
		}
	}
	slices.SortFunc(live, func(a, b ledger.Movement) int { return cmp.Compare(a.ID, b.ID) })
	return paginate(live, p), nil
}

func (s *MemoryStore) GetOrder(ctx context.Context, orderNo string) (*ledger.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderNo]
	if !ok || o.IsDeleted {
		return nil, ledger.ErrOrderNotFound
	}
	return &o, nil
}

func (s *MemoryStore) ListOrders(ctx context.Context, p Page) (PageResult[ledger.Order], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var live []ledger.Order
	for _, o := range s.orders {
		if !o.IsDeleted {
			live = append(live, o)
		}
	}
	slices.SortFunc(live, func(a, b ledger.Order) int {
		return cmp.Compare(s.orderSeqs[a.OrderNo], s.orderSeqs[b.OrderNo])
	})
	return paginate(live, p), nil
}

func (s *MemoryStore) CurrentStock(ctx context.Context, itemID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ledger.CurrentStock(ctx, committedView{s}, itemID)
}

func (s *MemoryStore) ListEvents(ctx context.Context, aggregateType, aggregateID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.AggregateType == aggregateType && e.AggregateID == aggregateID {
			out = append(out, e)
		}
	}
	return out, nil
}

// committedView sums committed rows. Callers hold s.mu.
type committedView struct{ s *MemoryStore }

func (v committedView) SumMovements(ctx context.Context, itemID int64) (int, int, error) {
	var topUps, withdrawals int
	for _, m := range v.s.movements {
		if m.ItemID != itemID || m.IsDeleted {
			continue
		}
		if m.Kind == ledger.KindWithdrawal {
			withdrawals += m.Quantity
		} else {
			topUps += m.Quantity
		}
	}
	return topUps, withdrawals, nil
}

func (v committedView) SumOrdered(ctx context.Context, itemID int64) (int, error) {
	var total int
	for _, o := range v.s.orders {
		if o.ItemID == itemID && !o.IsDeleted {
			total += o.Quantity
		}
	}
	return total, nil
}

// ============================================
// Transaction
// ============================================

type memoryTx struct {
	store *MemoryStore
	held  map[string]bool
	order []string

	items     map[int64]ledger.Item
	movements map[int64]ledger.Movement
	orders    map[string]ledger.Order
	events    []Event
}

func (tx *memoryTx) lock(ctx context.Context, key string) error {
	if tx.held[key] {
		return nil
	}
	waitCtx := ctx
	if tx.store.lockTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, tx.store.lockTimeout)
		defer cancel()
	}
	if err := tx.store.locks.Lock(waitCtx, key); err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: lock wait timeout on %s", ErrTransient, key)
		}
		return err
	}
	tx.held[key] = true
	tx.order = append(tx.order, key)
	return nil
}

func (tx *memoryTx) release() {
	for i := len(tx.order) - 1; i >= 0; i-- {
		tx.store.locks.Unlock(tx.order[i])
	}
	tx.order = nil
	tx.held = map[string]bool{}
}

func (tx *memoryTx) commit() {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, item := range tx.items {
		s.items[id] = item
	}
	for id, m := range tx.movements {
		s.movements[id] = m
	}
	for no, o := range tx.orders {
		s.orders[no] = o
		if _, ok := s.orderSeqs[no]; !ok {
			seq, _ := ledger.ParseOrderSeq(no)
			s.orderSeqs[no] = seq
		}
	}
	s.events = append(s.events, tx.events...)
}

func (tx *memoryTx) item(id int64) (ledger.Item, bool) {
	if item, ok := tx.items[id]; ok {
		return item, true
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	item, ok := tx.store.items[id]
	return item, ok
}

func (tx *memoryTx) movement(id int64) (ledger.Movement, bool) {
	if m, ok := tx.movements[id]; ok {
		return m, true
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	m, ok := tx.store.movements[id]
	return m, ok
}

func (tx *memoryTx) orderRow(orderNo string) (ledger.Order, bool) {
	if o, ok := tx.orders[orderNo]; ok {
		return o, true
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	o, ok := tx.store.orders[orderNo]
	return o, ok
}

func (tx *memoryTx) LockItem(ctx context.Context, id int64) (*ledger.Item, error) {
	if err := tx.lock(ctx, itemKey(id)); err != nil {
		return nil, err
	}
	item, ok := tx.item(id)
	if !ok || item.IsDeleted {
		return nil, ledger.ErrItemNotFound
	}
	return &item, nil
}

func (tx *memoryTx) LockMovement(ctx context.Context, id int64) (*ledger.Movement, error) {
	if err := tx.lock(ctx, "movement:"+strconv.FormatInt(id, 10)); err != nil {
		return nil, err
	}
	m, ok := tx.movement(id)
	if !ok || m.IsDeleted {
		return nil, ledger.ErrMovementNotFound
	}
	return &m, nil
}

func (tx *memoryTx) LockOrder(ctx context.Context, orderNo string) (*ledger.Order, error) {
	if err := tx.lock(ctx, "order:"+orderNo); err != nil {
		return nil, err
	}
	o, ok := tx.orderRow(orderNo)
	if !ok || o.IsDeleted {
		return nil, ledger.ErrOrderNotFound
	}
	return &o, nil
}

func (tx *memoryTx) LockOrderSequence(ctx context.Context) error {
	return tx.lock(ctx, "seq:orders")
}

func (tx *memoryTx) MaxOrderSeq(ctx context.Context) (int64, error) {
	var highest int64
	for no := range tx.orders {
		if seq, err := ledger.ParseOrderSeq(no); err == nil && seq > highest {
			highest = seq
		}
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	for _, seq := range tx.store.orderSeqs {
		highest = max(highest, seq)
	}
	return highest, nil
}

func (tx *memoryTx) SumMovements(ctx context.Context, itemID int64) (int, int, error) {
	var topUps, withdrawals int
	add := func(m ledger.Movement) {
		if m.ItemID != itemID || m.IsDeleted {
			return
		}
		if m.Kind == ledger.KindWithdrawal {
			withdrawals += m.Quantity
		} else {
			topUps += m.Quantity
		}
	}
	for _, m := range tx.movements {
		add(m)
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	for id, m := range tx.store.movements {
		if _, staged := tx.movements[id]; !staged {
			add(m)
		}
	}
	return topUps, withdrawals, nil
}

func (tx *memoryTx) SumOrdered(ctx context.Context, itemID int64) (int, error) {
	var total int
	add := func(o ledger.Order) {
		if o.ItemID == itemID && !o.IsDeleted {
			total += o.Quantity
		}
	}
	for _, o := range tx.orders {
		add(o)
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	for no, o := range tx.store.orders {
		if _, staged := tx.orders[no]; !staged {
			add(o)
		}
	}
	return total, nil
}

func (tx *memoryTx) InsertItem(ctx context.Context, item *ledger.Item) error {
	tx.store.mu.Lock()
	tx.store.nextItemID++
	item.ID = tx.store.nextItemID
	tx.store.mu.Unlock()
	tx.items[item.ID] = *item
	return nil
}

func (tx *memoryTx) UpdateItem(ctx context.Context, item *ledger.Item) error {
	if _, ok := tx.item(item.ID); !ok {
		return ledger.ErrItemNotFound
	}
	tx.items[item.ID] = *item
	return nil
}

func (tx *memoryTx) SoftDeleteItem(ctx context.Context, id int64, at time.Time) error {
	item, ok := tx.item(id)
	if !ok {
		return ledger.ErrItemNotFound
	}
	item.IsDeleted = true
	item.DeletedAt = &at
	item.UpdatedAt = at
	tx.items[id] = item
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m *ledger.Movement) error {
	tx.store.mu.Lock()
	tx.store.nextMovementID++
	m.ID = tx.store.nextMovementID
	tx.store.mu.Unlock()
	tx.movements[m.ID] = *m
	return nil
}

func (tx *memoryTx) UpdateMovement(ctx context.Context, m *ledger.Movement) error {
	if _, ok := tx.movement(m.ID); !ok {
		return ledger.ErrMovementNotFound
	}
	tx.movements[m.ID] = *m
	return nil
}

func (tx *memoryTx) SoftDeleteMovement(ctx context.Context, id int64, at time.Time) error {
	m, ok := tx.movement(id)
	if !ok {
		return ledger.ErrMovementNotFound
	}
	m.IsDeleted = true
	m.DeletedAt = &at
	m.UpdatedAt = at
	tx.movements[id] = m
	return nil
}

func (tx *memoryTx) InsertOrder(ctx context.Context, o *ledger.Order) error {
	if _, err := ledger.ParseOrderSeq(o.OrderNo); err != nil {
		return err
	}
	if _, exists := tx.orderRow(o.OrderNo); exists {
		return fmt.Errorf("order %s already exists", o.OrderNo)
	}
	tx.orders[o.OrderNo] = *o
	return nil
}

func (tx *memoryTx) UpdateOrder(ctx context.Context, o *ledger.Order) error {
	if _, ok := tx.orderRow(o.OrderNo); !ok {
		return ledger.ErrOrderNotFound
	}
	tx.orders[o.OrderNo] = *o
	return nil
}

func (tx *memoryTx) SoftDeleteOrder(ctx context.Context, orderNo string, at time.Time) error {
	o, ok := tx.orderRow(orderNo)
	if !ok {
		return ledger.ErrOrderNotFound
	}
	o.IsDeleted = true
	o.DeletedAt = &at
	o.UpdatedAt = at
	tx.orders[orderNo] = o
	return nil
}

func (tx *memoryTx) AppendEvent(ctx context.Context, e Event) error {
	tx.events = append(tx.events, e)
	return nil
}

func itemKey(id int64) string {
	return "item:" + strconv.FormatInt(id, 10)
}

func paginate[T any](all []T, p Page) PageResult[T] {
	total := len(all)
	start := min(p.Offset(), total)
	end := min(start+p.Size, total)
	return newPageResult(all[start:end], p, total)
}
