package command

import (
	"context"

	"github.com/example/stock-ledger/internal/domain/item"
	"github.com/example/stock-ledger/internal/domain/ledger"
	"github.com/example/stock-ledger/internal/domain/movement"
	"github.com/example/stock-ledger/internal/domain/order"
)

// Handler is the write side of the API. Every command runs through one of
// the orchestrators, so stock is checked under the item lock.
type Handler struct {
	itemSvc     *item.Service
	movementSvc *movement.Service
	orderSvc    *order.Service
}

func NewHandler(itemSvc *item.Service, movementSvc *movement.Service, orderSvc *order.Service) *Handler {
	return &Handler{
		itemSvc:     itemSvc,
		movementSvc: movementSvc,
		orderSvc:    orderSvc,
	}
}

func (h *Handler) CreateItem(ctx context.Context, cmd CreateItem) (*ledger.Item, error) {
	return h.itemSvc.Create(ctx, cmd.Name, cmd.Price)
}

func (h *Handler) UpdateItem(ctx context.Context, cmd UpdateItem) (*ledger.Item, error) {
	return h.itemSvc.Update(ctx, cmd.ItemID, cmd.Name, cmd.Price)
}

func (h *Handler) DeleteItem(ctx context.Context, cmd DeleteItem) error {
	return h.itemSvc.Delete(ctx, cmd.ItemID)
}

func (h *Handler) RecordMovement(ctx context.Context, cmd RecordMovement) (*ledger.Movement, error) {
	kind, err := ledger.ParseMovementKind(cmd.Type)
	if err != nil {
		return nil, err
	}
	return h.movementSvc.Record(ctx, cmd.ItemID, cmd.Quantity, kind)
}

func (h *Handler) UpdateMovement(ctx context.Context, cmd UpdateMovement) (*ledger.Movement, error) {
	kind, err := ledger.ParseMovementKind(cmd.Type)
	if err != nil {
		return nil, err
	}
	return h.movementSvc.Update(ctx, cmd.MovementID, cmd.ItemID, cmd.Quantity, kind)
}

func (h *Handler) DeleteMovement(ctx context.Context, cmd DeleteMovement) error {
	return h.movementSvc.Delete(ctx, cmd.MovementID)
}

func (h *Handler) CreateOrder(ctx context.Context, cmd CreateOrder) (*ledger.Order, error) {
	return h.orderSvc.Create(ctx, cmd.ItemID, cmd.Quantity, cmd.Price)
}

func (h *Handler) UpdateOrder(ctx context.Context, cmd UpdateOrder) (*ledger.Order, error) {
	return h.orderSvc.Update(ctx, cmd.OrderNo, cmd.ItemID, cmd.Quantity, cmd.Price)
}

func (h *Handler) DeleteOrder(ctx context.Context, cmd DeleteOrder) error {
	return h.orderSvc.Delete(ctx, cmd.OrderNo)
}
