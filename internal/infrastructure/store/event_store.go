package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	AggregateItem     = "Item"
	AggregateMovement = "InventoryMovement"
	AggregateOrder    = "Order"
)

// Event is one entry of the ledger audit trail. It is written in the same
// transaction as the change it describes and published after commit.
type Event struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
}

// NewEvent encodes data and stamps the event with a fresh id.
func NewEvent(aggregateType, aggregateID, eventType string, data any, at time.Time) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          raw,
		Timestamp:     at.UTC(),
	}, nil
}

// AggregateID renders a numeric entity id as an event aggregate id.
func AggregateID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// EventPublisher ships committed events to the message bus.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

// Key is the partition key for the event: all events of one aggregate land
// on the same partition in order.
func (e Event) Key() string {
	return e.AggregateType + ":" + e.AggregateID
}

// PublishCommitted sends events whose transaction has already committed. A
// failed publish is logged and skipped; ledger_events keeps the record.
func PublishCommitted(ctx context.Context, pub EventPublisher, logger *zap.Logger, events ...Event) {
	for _, e := range events {
		if err := pub.Publish(ctx, e.Key(), e); err != nil {
			logger.Warn("publish event failed",
				zap.String("event_id", e.ID),
				zap.String("event_type", e.EventType),
				zap.String("aggregate_id", e.AggregateID),
				zap.Error(err))
		}
	}
}
