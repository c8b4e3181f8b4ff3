package item

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

// Service manages the item catalogue. It never touches ledger rows.
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
		logger:    logger.Named("item"),
		tracer:    otel.Tracer("github.com/example/stock-ledger/internal/domain/item"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Create(ctx context.Context, name string, price decimal.Decimal) (*ledger.Item, error) {
	ctx, span := s.tracer.Start(ctx, "item.Create")
	defer span.End()

	name, price, err := validate(name, price)
	if err != nil {
		return nil, s.fail(span, "create", err)
	}

	var item ledger.Item
	var event store.Event
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		now := s.now()
		item = ledger.Item{Name: name, Price: price, CreatedAt: now, UpdatedAt: now}
		if err := tx.InsertItem(ctx, &item); err != nil {
			return err
		}

		var err error
		event, err = store.NewEvent(store.AggregateItem, store.AggregateID(item.ID), EventItemCreated, ItemCreated{
			ItemID: item.ID,
			Name:   name,
			Price:  price,
		}, now)
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, event)
	})
	if err != nil {
		return nil, s.fail(span, "create", err)
	}

	span.SetAttributes(attribute.Int64("item.id", item.ID))
	s.logger.Debug("item created", zap.Int64("item_id", item.ID), zap.String("name", name))
	store.PublishCommitted(ctx, s.publisher, s.logger, event)
	return &item, nil
}

// Update overwrites name and price. Existing orders keep the price they
// were created with.
func (s *Service) Update(ctx context.Context, id int64, name string, price decimal.Decimal) (*ledger.Item, error) {
	ctx, span := s.tracer.Start(ctx, "item.Update", trace.WithAttributes(attribute.Int64("item.id", id)))
	defer span.End()

	name, price, err := validate(name, price)
	if err != nil {
		return nil, s.fail(span, "update", err, zap.Int64("item_id", id))
	}

	var updated ledger.Item
	var event store.Event
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		old, err := tx.LockItem(ctx, id)
		if err != nil {
			return err
		}

		now := s.now()
		updated = *old
		updated.Name = name
		updated.Price = price
		updated.UpdatedAt = now
		if err := tx.UpdateItem(ctx, &updated); err != nil {
			return err
		}

		event, err = store.NewEvent(store.AggregateItem, store.AggregateID(id), EventItemUpdated, ItemUpdated{
			ItemID:        id,
			Name:          name,
			Price:         price,
			PreviousName:  old.Name,
			PreviousPrice: old.Price,
		}, now)
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, event)
	})
	if err != nil {
		return nil, s.fail(span, "update", err, zap.Int64("item_id", id))
	}

	s.logger.Debug("item updated", zap.Int64("item_id", id))
	store.PublishCommitted(ctx, s.publisher, s.logger, event)
	return &updated, nil
}

// Delete soft-deletes the item. Ledger rows stay, and outstanding stock is
// not checked.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "item.Delete", trace.WithAttributes(attribute.Int64("item.id", id)))
	defer span.End()

	var event store.Event
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.LockItem(ctx, id); err != nil {
			return err
		}
		stock, err := ledger.CurrentStock(ctx, tx, id)
		if err != nil {
			return err
		}

		now := s.now()
		if err := tx.SoftDeleteItem(ctx, id, now); err != nil {
			return err
		}

		event, err = store.NewEvent(store.AggregateItem, store.AggregateID(id), EventItemDeleted, ItemDeleted{
			ItemID:     id,
			StockAfter: stock,
		}, now)
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, event)
	})
	if err != nil {
		return s.fail(span, "delete", err, zap.Int64("item_id", id))
	}

	s.logger.Debug("item deleted", zap.Int64("item_id", id))
	store.PublishCommitted(ctx, s.publisher, s.logger, event)
	return nil
}

func validate(name string, price decimal.Decimal) (string, decimal.Decimal, error) {
	name, err := ledger.NormalizeName(name)
	if err != nil {
		return "", decimal.Zero, err
	}
	price, err = ledger.NormalizePrice(price)
	if err != nil {
		return "", decimal.Zero, err
	}
	return name, price, nil
}

func (s *Service) fail(span trace.Span, op string, err error, fields ...zap.Field) error {
	fields = append(fields, zap.String("op", op), zap.Error(err))
	if ledger.IsRejection(err) {
		s.logger.Info("item rejected", fields...)
		return err
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.logger.Warn("item failed", fields...)
	return err
}
