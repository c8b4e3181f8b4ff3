package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/example/stock-ledger/internal/domain/ledger"
	"github.com/example/stock-ledger/internal/infrastructure/store"
)

type Service struct {
	store     store.Store
	publisher store.EventPublisher
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

func NewService(s store.Store, publisher store.EventPublisher, logger *zap.Logger) *Service {
	return &Service{
		store:     s,
		publisher: publisher,
		logger:    logger.Named("order"),
		tracer:    otel.Tracer("github.com/example/stock-ledger/internal/domain/order"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create places an order against current stock and assigns the next order
// number. A nil price charges the item's price at creation time.
func (s *Service) Create(ctx context.Context, itemID int64, qty int, price *decimal.Decimal) (*ledger.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Create", trace.WithAttributes(
		attribute.Int64("item.id", itemID),
		attribute.Int("quantity", qty),
	))
	defer span.End()

	explicit, err := validate(qty, price)
	if err != nil {
		return nil, s.fail(span, "create", err, zap.Int64("item_id", itemID))
	}

	var o ledger.Order
	var event store.Event
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		item, err := tx.LockItem(ctx, itemID)
		if err != nil {
			return err
		}

		current, err := ledger.CurrentStock(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if err := ledger.CheckAvailable(item, current, current, qty); err != nil {
			return err
		}

		orderNo, err := ledger.NextOrderNo(ctx, tx)
		if err != nil {
			return err
		}

		now := s.now()
		o = ledger.Order{
			OrderNo:   orderNo,
			ItemID:    itemID,
			Quantity:  qty,
			Price:     resolvePrice(explicit, item),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.InsertOrder(ctx, &o); err != nil {
			return err
		}

		event, err = store.NewEvent(store.AggregateOrder, orderNo, EventOrderCreated, OrderCreated{
			OrderNo:    orderNo,
			ItemID:     itemID,
			Quantity:   qty,
			Price:      o.Price,
			StockAfter: current - qty,
		}, now)
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, event)
	})
	if err != nil {
		return nil, s.fail(span, "create", err, zap.Int64("item_id", itemID), zap.Int("quantity", qty))
	}

	span.SetAttributes(attribute.String("order.no", o.OrderNo))
	s.logger.Debug("order created",
		zap.String("order_no", o.OrderNo),
		zap.Int64("item_id", itemID),
		zap.Int("quantity", qty))
	store.PublishCommitted(ctx, s.publisher, s.logger, event)
	return &o, nil
}

// Update changes item, quantity and price of an order; the order number
// never changes. When the item is unchanged the order's own quantity is
// added back to current stock before comparing.
func (s *Service) Update(ctx context.Context, orderNo string, itemID int64, qty int, price *decimal.Decimal) (*ledger.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Update", trace.WithAttributes(
		attribute.String("order.no", orderNo),
		attribute.Int64("item.id", itemID),
		attribute.Int("quantity", qty),
	))
	defer span.End()

	explicit, err := validate(qty, price)
	if err != nil {
		return nil, s.fail(span, "update", err, zap.String("order_no", orderNo))
	}

	var updated ledger.Order
	var event store.Event
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		old, err := tx.LockOrder(ctx, orderNo)
		if err != nil {
			return err
		}
		item, err := tx.LockItem(ctx, itemID)
		if err != nil {
			return err
		}

		current, err := ledger.CurrentStock(ctx, tx, itemID)
		if err != nil {
			return err
		}
		available := current
		if old.ItemID == itemID {
			available += old.Quantity
		}
		if err := ledger.CheckAvailable(item, current, available, qty); err != nil {
			return err
		}

		now := s.now()
		updated = *old
		updated.ItemID = itemID
		updated.Quantity = qty
		updated.Price = resolvePrice(explicit, item)
		updated.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, &updated); err != nil {
			return err
		}

		payload := OrderUpdated{
			OrderNo:          orderNo,
			ItemID:           itemID,
			Quantity:         qty,
			Price:            updated.Price,
			PreviousItemID:   old.ItemID,
			PreviousQuantity: old.Quantity,
			PreviousPrice:    old.Price,
			StockAfter:       available - qty,
		}
		if old.ItemID != itemID {
			prev, err := ledger.CurrentStock(ctx, tx, old.ItemID)
			if err != nil {
				return err
			}
			payload.PreviousItemStockAfter = &prev
		}

		event, err = store.NewEvent(store.AggregateOrder, orderNo, EventOrderUpdated, payload, now)
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, event)
	})
	if err != nil {
		return nil, s.fail(span, "update", err, zap.String("order_no", orderNo), zap.Int64("item_id", itemID))
	}

	s.logger.Debug("order updated", zap.String("order_no", orderNo), zap.Int64("item_id", itemID))
	store.PublishCommitted(ctx, s.publisher, s.logger, event)
	return &updated, nil
}

// Delete soft-deletes an order. Its number stays taken.
func (s *Service) Delete(ctx context.Context, orderNo string) error {
	ctx, span := s.tracer.Start(ctx, "order.Delete", trace.WithAttributes(attribute.String("order.no", orderNo)))
	defer span.End()

	var event store.Event
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		o, err := tx.LockOrder(ctx, orderNo)
		if err != nil {
			return err
		}

		now := s.now()
		if err := tx.SoftDeleteOrder(ctx, orderNo, now); err != nil {
			return err
		}
		after, err := ledger.CurrentStock(ctx, tx, o.ItemID)
		if err != nil {
			return err
		}

		event, err = store.NewEvent(store.AggregateOrder, orderNo, EventOrderDeleted, OrderDeleted{
			OrderNo:    orderNo,
			ItemID:     o.ItemID,
			Quantity:   o.Quantity,
			StockAfter: after,
		}, now)
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, event)
	})
	if err != nil {
		return s.fail(span, "delete", err, zap.String("order_no", orderNo))
	}

	s.logger.Debug("order deleted", zap.String("order_no", orderNo))
	store.PublishCommitted(ctx, s.publisher, s.logger, event)
	return nil
}

// validate checks quantity and, when given, normalizes the explicit price.
func validate(qty int, price *decimal.Decimal) (*decimal.Decimal, error) {
	if err := ledger.ValidateQuantity(qty); err != nil {
		return nil, err
	}
	if price == nil {
		return nil, nil
	}
	p, err := ledger.NormalizePrice(*price)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func resolvePrice(explicit *decimal.Decimal, item *ledger.Item) decimal.Decimal {
	if explicit != nil {
		return *explicit
	}
	return item.Price
}

func (s *Service) fail(span trace.Span, op string, err error, fields ...zap.Field) error {
	fields = append(fields, zap.String("op", op), zap.Error(err))
	if ledger.IsRejection(err) {
		s.logger.Info("order rejected", fields...)
		return err
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.logger.Warn("order failed", fields...)
	return err
}
