package query

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/stock-ledger/internal/domain/ledger"
	"github.com/example/stock-ledger/internal/infrastructure/store"
)

// Handler is the read side. It never takes locks, so stock figures are a
// committed snapshot that may be stale by the time the client sees them.
type Handler struct {
	reader store.Reader
	logger *zap.Logger
}

func NewHandler(reader store.Reader, logger *zap.Logger) *Handler {
	return &Handler{reader: reader, logger: logger.Named("query")}
}

// Items
func (h *Handler) GetItem(ctx context.Context, id int64) (*ItemReadModel, error) {
	it, err := h.reader.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	return h.itemView(ctx, *it)
}

func (h *Handler) ListItems(ctx context.Context, p store.Page) (store.PageResult[ItemReadModel], error) {
	page, err := h.reader.ListItems(ctx, p)
	if err != nil {
		h.logger.Error("list items", zap.Error(err))
		return store.PageResult[ItemReadModel]{}, err
	}

	var viewErr error
	out := store.MapPage(page, func(it ledger.Item) ItemReadModel {
		v, err := h.itemView(ctx, it)
		if err != nil {
			viewErr = err
			return ItemReadModel{}
		}
		return *v
	})
	if viewErr != nil {
		return store.PageResult[ItemReadModel]{}, viewErr
	}
	return out, nil
}

func (h *Handler) GetStock(ctx context.Context, id int64) (*StockReadModel, error) {
	it, err := h.reader.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	stock, err := h.reader.CurrentStock(ctx, id)
	if err != nil {
		return nil, err
	}
	return &StockReadModel{ItemID: it.ID, ItemName: it.Name, CurrentStock: stock}, nil
}

// Inventory movements
func (h *Handler) GetMovement(ctx context.Context, id int64) (*MovementReadModel, error) {
	m, err := h.reader.GetMovement(ctx, id)
	if err != nil {
		return nil, err
	}
	names := newNameCache(h.reader)
	return movementView(ctx, names, *m)
}

func (h *Handler) ListMovements(ctx context.Context, p store.Page) (store.PageResult[MovementReadModel], error) {
	page, err := h.reader.ListMovements(ctx, p)
	if err != nil {
		h.logger.Error("list movements", zap.Error(err))
		return store.PageResult[MovementReadModel]{}, err
	}

	names := newNameCache(h.reader)
	var viewErr error
	out := store.MapPage(page, func(m ledger.Movement) MovementReadModel {
		v, err := movementView(ctx, names, m)
		if err != nil {
			viewErr = err
			return MovementReadModel{}
		}
		return *v
	})
	if viewErr != nil {
		return store.PageResult[MovementReadModel]{}, viewErr
	}
	return out, nil
}

// Orders
func (h *Handler) GetOrder(ctx context.Context, orderNo string) (*OrderReadModel, error) {
	o, err := h.reader.GetOrder(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	names := newNameCache(h.reader)
	return orderView(ctx, names, *o)
}

func (h *Handler) ListOrders(ctx context.Context, p store.Page) (store.PageResult[OrderReadModel], error) {
	page, err := h.reader.ListOrders(ctx, p)
	if err != nil {
		h.logger.Error("list orders", zap.Error(err))
		return store.PageResult[OrderReadModel]{}, err
	}

	names := newNameCache(h.reader)
	var viewErr error
	out := store.MapPage(page, func(o ledger.Order) OrderReadModel {
		v, err := orderView(ctx, names, o)
		if err != nil {
			viewErr = err
			return OrderReadModel{}
		}
		return *v
	})
	if viewErr != nil {
		return store.PageResult[OrderReadModel]{}, viewErr
	}
	return out, nil
}

// History returns the audit trail of one aggregate, oldest first. An
// aggregate without events is reported as not found.
func (h *Handler) History(ctx context.Context, aggregateType, aggregateID string) ([]EventReadModel, error) {
	events, err := h.reader.ListEvents(ctx, aggregateType, aggregateID)
	if err != nil {
		h.logger.Error("list events",
			zap.String("aggregate_type", aggregateType),
			zap.String("aggregate_id", aggregateID),
			zap.Error(err),
		)
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: no history for %s %s", ledger.ErrNotFound, aggregateType, aggregateID)
	}

	out := make([]EventReadModel, len(events))
	for i, e := range events {
		out[i] = EventReadModel{ID: e.ID, EventType: e.EventType, Data: e.Data, Timestamp: e.Timestamp}
	}
	return out, nil
}

func (h *Handler) itemView(ctx context.Context, it ledger.Item) (*ItemReadModel, error) {
	stock, err := h.reader.CurrentStock(ctx, it.ID)
	if err != nil {
		return nil, err
	}
	return &ItemReadModel{
		ID:           it.ID,
		Name:         it.Name,
		Price:        it.Price,
		CurrentStock: stock,
		CreatedAt:    it.CreatedAt,
		UpdatedAt:    it.UpdatedAt,
	}, nil
}

func movementView(ctx context.Context, names *nameCache, m ledger.Movement) (*MovementReadModel, error) {
	name, err := names.lookup(ctx, m.ItemID)
	if err != nil {
		return nil, err
	}
	return &MovementReadModel{
		ID:        m.ID,
		ItemID:    m.ItemID,
		ItemName:  name,
		Quantity:  m.Quantity,
		Type:      string(m.Kind),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}, nil
}

func orderView(ctx context.Context, names *nameCache, o ledger.Order) (*OrderReadModel, error) {
	name, err := names.lookup(ctx, o.ItemID)
	if err != nil {
		return nil, err
	}
	return &OrderReadModel{
		OrderNo:   o.OrderNo,
		ItemID:    o.ItemID,
		ItemName:  name,
		Quantity:  o.Quantity,
		Price:     o.Price,
		Total:     o.Price.Mul(decimal.NewFromInt(int64(o.Quantity))),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}, nil
}

// nameCache resolves item names, including soft-deleted items, once per request.
type nameCache struct {
	reader store.Reader
	names  map[int64]string
}

func newNameCache(reader store.Reader) *nameCache {
	return &nameCache{reader: reader, names: make(map[int64]string)}
}

func (c *nameCache) lookup(ctx context.Context, itemID int64) (string, error) {
	if name, ok := c.names[itemID]; ok {
		return name, nil
	}
	it, err := c.reader.GetItemAny(ctx, itemID)
	if errors.Is(err, ledger.ErrNotFound) {
		// Rows can only reference items that existed; keep the id visible.
		name := "#" + strconv.FormatInt(itemID, 10)
		c.names[itemID] = name
		return name, nil
	}
	if err != nil {
		return "", err
	}
	c.names[itemID] = it.Name
	return it.Name, nil
}
