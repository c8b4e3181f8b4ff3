package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/stock-ledger/internal/domain/ledger"
)

const tracerName = "github.com/example/stock-ledger/internal/infrastructure/store"

// PoolConfig tunes the database/sql connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Connect opens and pings a database for the given dialect. MySQL DSNs are
// forced to parse timestamps as UTC time.Time values.
func Connect(ctx context.Context, d Dialect, dsn string, pool PoolConfig) (*sql.DB, error) {
	if d == MySQL {
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		dsn = cfg.FormatDSN()
	}

	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	return db, nil
}

// SQLStore persists the ledger in PostgreSQL or MySQL. Row locks are taken
// with SELECT ... FOR UPDATE; order numbers are serialized on the
// ledger_locks row.
type SQLStore struct {
	db          *sql.DB
	dialect     Dialect
	lockTimeout time.Duration
	tracer      trace.Tracer
}

func NewSQLStore(db *sql.DB, d Dialect, lockTimeout time.Duration) *SQLStore {
	return &SQLStore{
		db:          db,
		dialect:     d,
		lockTimeout: lockTimeout,
		tracer:      otel.Tracer(tracerName),
	}
}

func (s *SQLStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (err error) {
	ctx, span := s.tracer.Start(ctx, "store.WithinTx",
		trace.WithAttributes(attribute.String("db.system", string(s.dialect))))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	dbTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return classify(fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		if p := recover(); p != nil {
			_ = dbTx.Rollback()
			panic(p)
		}
	}()

	if err := setLockTimeout(ctx, dbTx, s.dialect.LockTimeoutStmt(s.lockTimeout)); err != nil {
		_ = dbTx.Rollback()
		return err
	}

	if err := fn(ctx, &sqlTx{tx: dbTx, d: s.dialect}); err != nil {
		_ = dbTx.Rollback()
		return classify(err)
	}

	if err := dbTx.Commit(); err != nil {
		return classify(fmt.Errorf("commit: %w", err))
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// setLockTimeout runs the dialect's lock-timeout statement. On MySQL the
// setting is session scoped and outlives the transaction on the pooled
// connection; every transaction of this store sets it again before locking.
func setLockTimeout(ctx context.Context, tx execer, stmt string) error {
	if stmt == "" {
		return nil
	}
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return classify(fmt.Errorf("set lock timeout: %w", err))
	}
	return nil
}

// ============================================
// Reader
// ============================================

func (s *SQLStore) GetItem(ctx context.Context, id int64) (*ledger.Item, error) {
	item, err := s.GetItemAny(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.IsDeleted {
		return nil, ledger.ErrItemNotFound
	}
	return item, nil
}

func (s *SQLStore) GetItemAny(ctx context.Context, id int64) (*ledger.Item, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(selectItem+" WHERE id = ?"), id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item %d: %w", id, err)
	}
	return item, nil
}

func (s *SQLStore) ListItems(ctx context.Context, p Page) (PageResult[ledger.Item], error) {
	ctx, span := s.tracer.Start(ctx, "store.ListItems",
		trace.WithAttributes(attribute.Int("page", p.Number), attribute.Int("size", p.Size)))
	defer span.End()

	total, err := s.count(ctx, "SELECT COUNT(*) FROM items WHERE is_deleted = FALSE")
	if err != nil {
		return PageResult[ledger.Item]{}, err
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(selectItem+" WHERE is_deleted = FALSE ORDER BY id LIMIT ? OFFSET ?"), p.Size, p.Offset())
	if err != nil {
		return PageResult[ledger.Item]{}, fmt.Errorf("list items: %w", err)
	}
	items, err := collect(rows, scanItem)
	if err != nil {
		return PageResult[ledger.Item]{}, fmt.Errorf("list items: %w", err)
	}
	return newPageResult(items, p, total), nil
}

func (s *SQLStore) GetMovement(ctx context.Context, id int64) (*ledger.Movement, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(selectMovement+" WHERE id = ? AND is_deleted = FALSE"), id)
	m, err := scanMovement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrMovementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get movement %d: %w", id, err)
	}
	return m, nil
}

func (s *SQLStore) ListMovements(ctx context.Context, p Page) (PageResult[ledger.Movement], error) {
	ctx, span := s.tracer.Start(ctx, "store.ListMovements",
		trace.WithAttributes(attribute.Int("page", p.Number), attribute.Int("size", p.Size)))
	defer span.End()

	total, err := s.count(ctx, "SELECT COUNT(*) FROM inventory_movements WHERE is_deleted = FALSE")
	if err != nil {
		return PageResult[ledger.Movement]{}, err
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(selectMovement+" WHERE is_deleted = FALSE ORDER BY id LIMIT ? OFFSET ?"), p.Size, p.Offset())
	if err != nil {
		return PageResult[ledger.Movement]{}, fmt.Errorf("list movements: %w", err)
	}
	ms, err := collect(rows, scanMovement)
	if err != nil {
		return PageResult[ledger.Movement]{}, fmt.Errorf("list movements: %w", err)
	}
	return newPageResult(ms, p, total), nil
}

func (s *SQLStore) GetOrder(ctx context.Context, orderNo string) (*ledger.Order, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(selectOrder+" WHERE order_no = ? AND is_deleted = FALSE"), orderNo)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderNo, err)
	}
	return o, nil
}

func (s *SQLStore) ListOrders(ctx context.Context, p Page) (PageResult[ledger.Order], error) {
	ctx, span := s.tracer.Start(ctx, "store.ListOrders",
		trace.WithAttributes(attribute.Int("page", p.Number), attribute.Int("size", p.Size)))
	defer span.End()

	total, err := s.count(ctx, "SELECT COUNT(*) FROM orders WHERE is_deleted = FALSE")
	if err != nil {
		return PageResult[ledger.Order]{}, err
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(selectOrder+" WHERE is_deleted = FALSE ORDER BY order_seq LIMIT ? OFFSET ?"), p.Size, p.Offset())
	if err != nil {
		return PageResult[ledger.Order]{}, fmt.Errorf("list orders: %w", err)
	}
	orders, err := collect(rows, scanOrder)
	if err != nil {
		return PageResult[ledger.Order]{}, fmt.Errorf("list orders: %w", err)
	}
	return newPageResult(orders, p, total), nil
}

func (s *SQLStore) CurrentStock(ctx context.Context, itemID int64) (int, error) {
	return ledger.CurrentStock(ctx, sums{q: s.db, d: s.dialect}, itemID)
}

func (s *SQLStore) ListEvents(ctx context.Context, aggregateType, aggregateID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(
		`SELECT event_id, aggregate_id, aggregate_type, event_type, data, created_at
		 FROM ledger_events
		 WHERE aggregate_type = ? AND aggregate_id = ?
		 ORDER BY seq ASC`),
		aggregateType, aggregateID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return collect(rows, func(r scanner) (*Event, error) {
		var e Event
		var data []byte
		if err := r.Scan(&e.ID, &e.AggregateID, &e.AggregateType, &e.EventType, &data, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Data = append([]byte(nil), data...)
		return &e, nil
	})
}

func (s *SQLStore) count(ctx context.Context, query string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// ============================================
// Transaction
// ============================================

type sqlTx struct {
	tx *sql.Tx
	d  Dialect
}

func (t *sqlTx) LockItem(ctx context.Context, id int64) (*ledger.Item, error) {
	row := t.tx.QueryRowContext(ctx, t.d.Rebind(selectItem+" WHERE id = ? FOR UPDATE"), id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock item %d: %w", id, err)
	}
	if item.IsDeleted {
		return nil, ledger.ErrItemNotFound
	}
	return item, nil
}

func (t *sqlTx) LockMovement(ctx context.Context, id int64) (*ledger.Movement, error) {
	row := t.tx.QueryRowContext(ctx, t.d.Rebind(selectMovement+" WHERE id = ? FOR UPDATE"), id)
	m, err := scanMovement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrMovementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock movement %d: %w", id, err)
	}
	if m.IsDeleted {
		return nil, ledger.ErrMovementNotFound
	}
	return m, nil
}

func (t *sqlTx) LockOrder(ctx context.Context, orderNo string) (*ledger.Order, error) {
	row := t.tx.QueryRowContext(ctx, t.d.Rebind(selectOrder+" WHERE order_no = ? FOR UPDATE"), orderNo)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock order %s: %w", orderNo, err)
	}
	if o.IsDeleted {
		return nil, ledger.ErrOrderNotFound
	}
	return o, nil
}

func (t *sqlTx) LockOrderSequence(ctx context.Context) error {
	var name string
	err := t.tx.QueryRowContext(ctx, t.d.Rebind("SELECT name FROM ledger_locks WHERE name = ? FOR UPDATE"), orderSeqLock).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.New("order sequence lock row missing; run migrations")
	}
	return err
}

func (t *sqlTx) MaxOrderSeq(ctx context.Context) (int64, error) {
	var highest int64
	err := t.tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(order_seq), 0) FROM orders").Scan(&highest)
	return highest, err
}

func (t *sqlTx) SumMovements(ctx context.Context, itemID int64) (int, int, error) {
	return sums{q: t.tx, d: t.d}.SumMovements(ctx, itemID)
}

func (t *sqlTx) SumOrdered(ctx context.Context, itemID int64) (int, error) {
	return sums{q: t.tx, d: t.d}.SumOrdered(ctx, itemID)
}

func (t *sqlTx) InsertItem(ctx context.Context, item *ledger.Item) error {
	id, err := t.insertID(ctx,
		"INSERT INTO items (name, price, is_deleted, created_at, updated_at) VALUES (?, ?, FALSE, ?, ?)",
		item.Name, item.Price, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	item.ID = id
	return nil
}

func (t *sqlTx) UpdateItem(ctx context.Context, item *ledger.Item) error {
	_, err := t.tx.ExecContext(ctx, t.d.Rebind("UPDATE items SET name = ?, price = ?, updated_at = ? WHERE id = ?"),
		item.Name, item.Price, item.UpdatedAt, item.ID)
	if err != nil {
		return fmt.Errorf("update item %d: %w", item.ID, err)
	}
	return nil
}

func (t *sqlTx) SoftDeleteItem(ctx context.Context, id int64, at time.Time) error {
	_, err := t.tx.ExecContext(ctx, t.d.Rebind("UPDATE items SET is_deleted = TRUE, deleted_at = ?, updated_at = ? WHERE id = ?"),
		at, at, id)
	if err != nil {
		return fmt.Errorf("delete item %d: %w", id, err)
	}
	return nil
}

func (t *sqlTx) InsertMovement(ctx context.Context, m *ledger.Movement) error {
	id, err := t.insertID(ctx,
		`INSERT INTO inventory_movements (item_id, quantity, movement_type, is_deleted, created_at, updated_at)
		 VALUES (?, ?, ?, FALSE, ?, ?)`,
		m.ItemID, m.Quantity, string(m.Kind), m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	m.ID = id
	return nil
}

func (t *sqlTx) UpdateMovement(ctx context.Context, m *ledger.Movement) error {
	_, err := t.tx.ExecContext(ctx, t.d.Rebind(
		"UPDATE inventory_movements SET item_id = ?, quantity = ?, movement_type = ?, updated_at = ? WHERE id = ?"),
		m.ItemID, m.Quantity, string(m.Kind), m.UpdatedAt, m.ID)
	if err != nil {
		return fmt.Errorf("update movement %d: %w", m.ID, err)
	}
	return nil
}

func (t *sqlTx) SoftDeleteMovement(ctx context.Context, id int64, at time.Time) error {
	_, err := t.tx.ExecContext(ctx, t.d.Rebind(
		"UPDATE inventory_movements SET is_deleted = TRUE, deleted_at = ?, updated_at = ? WHERE id = ?"),
		at, at, id)
	if err != nil {
		return fmt.Errorf("delete movement %d: %w", id, err)
	}
	return nil
}

func (t *sqlTx) InsertOrder(ctx context.Context, o *ledger.Order) error {
	seq, err := ledger.ParseOrderSeq(o.OrderNo)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, t.d.Rebind(
		`INSERT INTO orders (order_no, order_seq, item_id, quantity, price, is_deleted, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, FALSE, ?, ?)`),
		o.OrderNo, seq, o.ItemID, o.Quantity, o.Price, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order %s: %w", o.OrderNo, err)
	}
	return nil
}

func (t *sqlTx) UpdateOrder(ctx context.Context, o *ledger.Order) error {
	_, err := t.tx.ExecContext(ctx, t.d.Rebind(
		"UPDATE orders SET item_id = ?, quantity = ?, price = ?, updated_at = ? WHERE order_no = ?"),
		o.ItemID, o.Quantity, o.Price, o.UpdatedAt, o.OrderNo)
	if err != nil {
		return fmt.Errorf("update order %s: %w", o.OrderNo, err)
	}
	return nil
}

func (t *sqlTx) SoftDeleteOrder(ctx context.Context, orderNo string, at time.Time) error {
	_, err := t.tx.ExecContext(ctx, t.d.Rebind(
		"UPDATE orders SET is_deleted = TRUE, deleted_at = ?, updated_at = ? WHERE order_no = ?"),
		at, at, orderNo)
	if err != nil {
		return fmt.Errorf("delete order %s: %w", orderNo, err)
	}
	return nil
}

func (t *sqlTx) AppendEvent(ctx context.Context, e Event) error {
	_, err := t.tx.ExecContext(ctx, t.d.Rebind(
		`INSERT INTO ledger_events (event_id, aggregate_type, aggregate_id, event_type, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		e.ID, e.AggregateType, e.AggregateID, e.EventType, string(e.Data), e.Timestamp)
	if err != nil {
		return fmt.Errorf("append event %s: %w", e.EventType, err)
	}
	return nil
}

// insertID runs an INSERT and returns the generated id.
func (t *sqlTx) insertID(ctx context.Context, query string, args ...any) (int64, error) {
	if t.d == Postgres {
		var id int64
		err := t.tx.QueryRowContext(ctx, t.d.Rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ============================================
// Shared query helpers
// ============================================

const (
	selectItem     = "SELECT id, name, price, is_deleted, deleted_at, created_at, updated_at FROM items"
	selectMovement = "SELECT id, item_id, quantity, movement_type, is_deleted, deleted_at, created_at, updated_at FROM inventory_movements"
	selectOrder    = "SELECT order_no, item_id, quantity, price, is_deleted, deleted_at, created_at, updated_at FROM orders"
)

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sums implements ledger.StockCounter over a connection or transaction.
type sums struct {
	q queryer
	d Dialect
}

func (s sums) SumMovements(ctx context.Context, itemID int64) (int, int, error) {
	var topUps, withdrawals int64
	err := s.q.QueryRowContext(ctx, s.d.Rebind(
		`SELECT COALESCE(SUM(CASE WHEN movement_type = 'T' THEN quantity ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN movement_type = 'W' THEN quantity ELSE 0 END), 0)
		 FROM inventory_movements
		 WHERE item_id = ? AND is_deleted = FALSE`), itemID).Scan(&topUps, &withdrawals)
	if err != nil {
		return 0, 0, err
	}
	return int(topUps), int(withdrawals), nil
}

func (s sums) SumOrdered(ctx context.Context, itemID int64) (int, error) {
	var total int64
	err := s.q.QueryRowContext(ctx, s.d.Rebind(
		"SELECT COALESCE(SUM(quantity), 0) FROM orders WHERE item_id = ? AND is_deleted = FALSE"), itemID).Scan(&total)
	if err != nil {
		return 0, err
	}
	return int(total), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(r scanner) (*ledger.Item, error) {
	var item ledger.Item
	var deletedAt sql.NullTime
	if err := r.Scan(&item.ID, &item.Name, &item.Price, &item.IsDeleted, &deletedAt, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	item.DeletedAt = nullTime(deletedAt)
	return &item, nil
}

func scanMovement(r scanner) (*ledger.Movement, error) {
	var m ledger.Movement
	var kind string
	var deletedAt sql.NullTime
	if err := r.Scan(&m.ID, &m.ItemID, &m.Quantity, &kind, &m.IsDeleted, &deletedAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Kind = ledger.MovementKind(kind)
	m.DeletedAt = nullTime(deletedAt)
	return &m, nil
}

func scanOrder(r scanner) (*ledger.Order, error) {
	var o ledger.Order
	var deletedAt sql.NullTime
	if err := r.Scan(&o.OrderNo, &o.ItemID, &o.Quantity, &o.Price, &o.IsDeleted, &deletedAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.DeletedAt = nullTime(deletedAt)
	return &o, nil
}

func collect[T any](rows *sql.Rows, scan func(scanner) (*T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
