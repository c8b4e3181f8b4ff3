package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/stock-ledger/internal/domain/ledger"
	"github.com/example/stock-ledger/internal/domain/movement"
	"github.com/example/stock-ledger/internal/domain/order"
	"github.com/example/stock-ledger/internal/email"
	"github.com/example/stock-ledger/internal/infrastructure/store"
)

// AlertSender delivers low-stock alerts
type AlertSender interface {
	SendLowStockAlert(to string, threshold int, alerts []email.StockAlert) error
}

// ItemLookup resolves item names, including soft-deleted items
type ItemLookup interface {
	GetItemAny(ctx context.Context, id int64) (*ledger.Item, error)
}

// Handler turns stock-affecting ledger events into low-stock alerts
type Handler struct {
	sender    AlertSender
	items     ItemLookup
	recipient string
	threshold int
	logger    *zap.Logger
}

// NewHandler creates a new notification handler
func NewHandler(sender AlertSender, items ItemLookup, recipient string, threshold int, logger *zap.Logger) *Handler {
	return &Handler{
		sender:    sender,
		items:     items,
		recipient: recipient,
		threshold: threshold,
		logger:    logger.Named("notifier"),
	}
}

// stockPayload is the subset shared by movement and order event payloads
type stockPayload struct {
	MovementID             int64  `json:"movement_id"`
	OrderNo                string `json:"order_no"`
	ItemID                 int64  `json:"item_id"`
	StockAfter             *int   `json:"stock_after"`
	PreviousItemID         int64  `json:"previous_item_id"`
	PreviousItemStockAfter *int   `json:"previous_item_stock_after"`
}

var stockEvents = map[string]bool{
	movement.EventMovementRecorded: true,
	movement.EventMovementUpdated:  true,
	movement.EventMovementDeleted:  true,
	order.EventOrderCreated:        true,
	order.EventOrderUpdated:        true,
	order.EventOrderDeleted:        true,
}

// HandleEvent processes an event from Kafka
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		h.logger.Warn("unmarshal event", zap.ByteString("key", key), zap.Error(err))
		return err
	}
	if !stockEvents[event.EventType] {
		return nil
	}

	var p stockPayload
	if err := json.Unmarshal(event.Data, &p); err != nil {
		h.logger.Warn("unmarshal payload",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
		return err
	}

	source := p.OrderNo
	if source == "" {
		source = fmt.Sprintf("movement %d", p.MovementID)
	}

	var alerts []email.StockAlert
	add := func(itemID int64, stock *int) {
		if itemID == 0 || stock == nil || *stock > h.threshold {
			return
		}
		alerts = append(alerts, email.StockAlert{
			ItemID:  itemID,
			Name:    h.itemName(ctx, itemID),
			Stock:   *stock,
			Trigger: event.EventType,
			Source:  source,
		})
	}
	add(p.ItemID, p.StockAfter)
	if p.PreviousItemID != p.ItemID {
		add(p.PreviousItemID, p.PreviousItemStockAfter)
	}
	if len(alerts) == 0 {
		return nil
	}

	if h.recipient == "" {
		for _, a := range alerts {
			h.logger.Info("low stock", zap.Int64("item_id", a.ItemID), zap.Int("stock", a.Stock))
		}
		return nil
	}

	if err := h.sender.SendLowStockAlert(h.recipient, h.threshold, alerts); err != nil {
		h.logger.Error("send low stock alert", zap.String("to", h.recipient), zap.Error(err))
		return err
	}

	h.logger.Info("low stock alert sent",
		zap.String("to", h.recipient),
		zap.String("event_type", event.EventType),
		zap.Int("items", len(alerts)),
	)
	return nil
}

func (h *Handler) itemName(ctx context.Context, id int64) string {
	if h.items == nil {
		return ""
	}
	it, err := h.items.GetItemAny(ctx, id)
	if err != nil {
		h.logger.Debug("resolve item name", zap.Int64("item_id", id), zap.Error(err))
		return ""
	}
	return it.Name
}
