package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/stock-ledger/internal/command"
	"github.com/example/stock-ledger/internal/domain/ledger"
	"github.com/example/stock-ledger/internal/infrastructure/store"
	"github.com/example/stock-ledger/internal/query"
)

// HealthCheck reports whether the backing store is reachable.
type HealthCheck func(ctx context.Context) error

type Handlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
	health       HealthCheck
	logger       *zap.Logger
}

func NewHandlers(cmdHandler *command.Handler, queryHandler *query.Handler, health HealthCheck, logger *zap.Logger) *Handlers {
	if health == nil {
		health = func(context.Context) error { return nil }
	}
	return &Handlers{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
		health:       health,
		logger:       logger.Named("api"),
	}
}

// Item Handlers

func (h *Handlers) ListItems(w http.ResponseWriter, r *http.Request) {
	page, err := h.queryHandler.ListItems(r.Context(), pageFrom(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "items retrieved", page)
}

func (h *Handlers) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	item, err := h.queryHandler.GetItem(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "item retrieved", item)
}

func (h *Handlers) GetItemStock(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	stock, err := h.queryHandler.GetStock(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "stock retrieved", stock)
}

func (h *Handlers) CreateItem(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateItem
	if err := decode(r, &cmd); err != nil {
		h.respondError(w, r, err)
		return
	}
	item, err := h.cmdHandler.CreateItem(r.Context(), cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondItem(w, r, http.StatusCreated, "item created", item.ID)
}

func (h *Handlers) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var cmd command.UpdateItem
	if err := decode(r, &cmd); err != nil {
		h.respondError(w, r, err)
		return
	}
	cmd.ItemID = id
	if _, err := h.cmdHandler.UpdateItem(r.Context(), cmd); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondItem(w, r, http.StatusOK, "item updated", id)
}

func (h *Handlers) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.cmdHandler.DeleteItem(r.Context(), command.DeleteItem{ItemID: id}); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "item deleted", nil)
}

// respondItem answers a mutation with the item view, including stock
func (h *Handlers) respondItem(w http.ResponseWriter, r *http.Request, status int, message string, id int64) {
	view, err := h.queryHandler.GetItem(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, status, message, view)
}

// Inventory Handlers

func (h *Handlers) ListMovements(w http.ResponseWriter, r *http.Request) {
	page, err := h.queryHandler.ListMovements(r.Context(), pageFrom(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "inventory retrieved", page)
}

func (h *Handlers) GetMovement(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	m, err := h.queryHandler.GetMovement(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "inventory retrieved", m)
}

func (h *Handlers) RecordMovement(w http.ResponseWriter, r *http.Request) {
	var cmd command.RecordMovement
	if err := decode(r, &cmd); err != nil {
		h.respondError(w, r, err)
		return
	}
	m, err := h.cmdHandler.RecordMovement(r.Context(), cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondMovement(w, r, http.StatusCreated, "inventory recorded", m.ID)
}

func (h *Handlers) UpdateMovement(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var cmd command.UpdateMovement
	if err := decode(r, &cmd); err != nil {
		h.respondError(w, r, err)
		return
	}
	cmd.MovementID = id
	if _, err := h.cmdHandler.UpdateMovement(r.Context(), cmd); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondMovement(w, r, http.StatusOK, "inventory updated", id)
}

func (h *Handlers) DeleteMovement(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.cmdHandler.DeleteMovement(r.Context(), command.DeleteMovement{MovementID: id}); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "inventory deleted", nil)
}

func (h *Handlers) respondMovement(w http.ResponseWriter, r *http.Request, status int, message string, id int64) {
	view, err := h.queryHandler.GetMovement(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, status, message, view)
}

// Order Handlers

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, err := h.queryHandler.ListOrders(r.Context(), pageFrom(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "orders retrieved", page)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.queryHandler.GetOrder(r.Context(), orderNoParam(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "order retrieved", o)
}

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateOrder
	if err := decode(r, &cmd); err != nil {
		h.respondError(w, r, err)
		return
	}
	o, err := h.cmdHandler.CreateOrder(r.Context(), cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondOrder(w, r, http.StatusCreated, "order created", o.OrderNo)
}

func (h *Handlers) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	var cmd command.UpdateOrder
	if err := decode(r, &cmd); err != nil {
		h.respondError(w, r, err)
		return
	}
	cmd.OrderNo = orderNoParam(r)
	if _, err := h.cmdHandler.UpdateOrder(r.Context(), cmd); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondOrder(w, r, http.StatusOK, "order updated", cmd.OrderNo)
}

func (h *Handlers) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.cmdHandler.DeleteOrder(r.Context(), command.DeleteOrder{OrderNo: orderNoParam(r)}); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "order deleted", nil)
}

func (h *Handlers) respondOrder(w http.ResponseWriter, r *http.Request, status int, message, orderNo string) {
	view, err := h.queryHandler.GetOrder(r.Context(), orderNo)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, status, message, view)
}

// History returns the audit trail of one aggregate.
func (h *Handlers) History(aggregateType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if aggregateType == store.AggregateOrder {
			id = orderNoParam(r)
		} else if _, err := int64Param(r, "id"); err != nil {
			h.respondError(w, r, err)
			return
		}
		events, err := h.queryHandler.History(r.Context(), aggregateType, id)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		respondData(w, http.StatusOK, "history retrieved", events)
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.health(r.Context()); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		respondJSONError(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	respondData(w, http.StatusOK, "ok", nil)
}

// Helpers

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", ledger.ErrInvalidArgument, err)
	}
	return nil
}

func int64Param(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", ledger.ErrInvalidArgument, name, raw)
	}
	return id, nil
}

func orderNoParam(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "id")))
}

func pageFrom(r *http.Request) store.Page {
	q := r.URL.Query()
	number, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	return store.NewPage(number, size)
}
