package movement

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/example/stock-ledger/internal/domain/ledger"
	"github.com/example/stock-ledger/internal/infrastructure/store"
)

// Service records, edits and removes inventory movements. Every write runs
// in one transaction holding the lock of the item it validates against.
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
		logger:    logger.Named("movement"),
		tracer:    otel.Tracer("github.com/example/stock-ledger/internal/domain/movement"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Record adds a movement. Withdrawals are checked against current stock.
func (s *Service) Record(ctx context.Context, itemID int64, qty int, kind ledger.MovementKind) (*ledger.Movement, error) {
	ctx, span := s.tracer.Start(ctx, "movement.Record", trace.WithAttributes(
		attribute.Int64("item.id", itemID),
		attribute.Int("quantity", qty),
		attribute.String("movement.type", string(kind)),
	))
	defer span.End()

	if err := validate(qty, kind); err != nil {
		return nil, s.fail(span, "record", err, zap.Int64("item_id", itemID))
	}

	var m ledger.Movement
	var event store.Event
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		item, err := tx.LockItem(ctx, itemID)
		if err != nil {
			return err
		}

		current, err := ledger.CurrentStock(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if kind == ledger.KindWithdrawal {
			if err := ledger.CheckAvailable(item, current, current, qty); err != nil {
				return err
			}
		}

		now := s.now()
		m = ledger.Movement{ItemID: itemID, Quantity: qty, Kind: kind, CreatedAt: now, UpdatedAt: now}
		if err := tx.InsertMovement(ctx, &m); err != nil {
			return err
		}

		event, err = store.NewEvent(store.AggregateMovement, store.AggregateID(m.ID), EventMovementRecorded, MovementRecorded{
			MovementID: m.ID,
			ItemID:     itemID,
			Quantity:   qty,
			Kind:       kind,
			StockAfter: current + m.Effect(),
		}, now)
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, event)
	})
	if err != nil {
		return nil, s.fail(span, "record", err, zap.Int64("item_id", itemID), zap.Int("quantity", qty))
	}

	s.logger.Debug("movement recorded",
		zap.Int64("movement_id", m.ID),
		zap.Int64("item_id", itemID),
		zap.String("type", string(kind)),
		zap.Int("quantity", qty))
	store.PublishCommitted(ctx, s.publisher, s.logger, event)
	return &m, nil
}

// Update overwrites item, quantity and type of a movement. The new values
// are validated against the new item only. When the item is unchanged the
// movement's old effect is taken out of current stock before comparing.
func (s *Service) Update(ctx context.Context, id, itemID int64, qty int, kind ledger.MovementKind) (*ledger.Movement, error) {
	ctx, span := s.tracer.Start(ctx, "movement.Update", trace.WithAttributes(
		attribute.Int64("movement.id", id),
		attribute.Int64("item.id", itemID),
		attribute.Int("quantity", qty),
		attribute.String("movement.type", string(kind)),
	))
	defer span.End()

	if err := validate(qty, kind); err != nil {
		return nil, s.fail(span, "update", err, zap.Int64("movement_id", id))
	}

	var updated ledger.Movement
	var event store.Event
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		old, err := tx.LockMovement(ctx, id)
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
			available -= old.Effect()
		}
		if kind == ledger.KindWithdrawal {
			if err := ledger.CheckAvailable(item, current, available, qty); err != nil {
				return err
			}
		}

		now := s.now()
		updated = *old
		updated.ItemID = itemID
		updated.Quantity = qty
		updated.Kind = kind
		updated.UpdatedAt = now
		if err := tx.UpdateMovement(ctx, &updated); err != nil {
			return err
		}

		payload := MovementUpdated{
			MovementID:       id,
			ItemID:           itemID,
			Quantity:         qty,
			Kind:             kind,
			PreviousItemID:   old.ItemID,
			PreviousQuantity: old.Quantity,
			PreviousKind:     old.Kind,
			StockAfter:       available + updated.Effect(),
		}
		if old.ItemID != itemID {
			prev, err := ledger.CurrentStock(ctx, tx, old.ItemID)
			if err != nil {
				return err
			}
			payload.PreviousItemStockAfter = &prev
		}

		event, err = store.NewEvent(store.AggregateMovement, store.AggregateID(id), EventMovementUpdated, payload, now)
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, event)
	})
	if err != nil {
		return nil, s.fail(span, "update", err, zap.Int64("movement_id", id), zap.Int64("item_id", itemID))
	}

	s.logger.Debug("movement updated", zap.Int64("movement_id", id), zap.Int64("item_id", itemID))
	store.PublishCommitted(ctx, s.publisher, s.logger, event)
	return &updated, nil
}

// Delete soft-deletes a movement. Stock is not re-validated.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "movement.Delete", trace.WithAttributes(attribute.Int64("movement.id", id)))
	defer span.End()

	var event store.Event
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		m, err := tx.LockMovement(ctx, id)
		if err != nil {
			return err
		}

		now := s.now()
		if err := tx.SoftDeleteMovement(ctx, id, now); err != nil {
			return err
		}
		after, err := ledger.CurrentStock(ctx, tx, m.ItemID)
		if err != nil {
			return err
		}

		event, err = store.NewEvent(store.AggregateMovement, store.AggregateID(id), EventMovementDeleted, MovementDeleted{
			MovementID: id,
			ItemID:     m.ItemID,
			Quantity:   m.Quantity,
			Kind:       m.Kind,
			StockAfter: after,
		}, now)
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, event)
	})
	if err != nil {
		return s.fail(span, "delete", err, zap.Int64("movement_id", id))
	}

	s.logger.Debug("movement deleted", zap.Int64("movement_id", id))
	store.PublishCommitted(ctx, s.publisher, s.logger, event)
	return nil
}

func validate(qty int, kind ledger.MovementKind) error {
	if err := ledger.ValidateQuantity(qty); err != nil {
		return err
	}
	if !kind.Valid() {
		return ledger.ErrInvalidKind
	}
	return nil
}

func (s *Service) fail(span trace.Span, op string, err error, fields ...zap.Field) error {
	fields = append(fields, zap.String("op", op), zap.Error(err))
	if ledger.IsRejection(err) {
		s.logger.Info("movement rejected", fields...)
		return err
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.logger.Warn("movement failed", fields...)
	return err
}
