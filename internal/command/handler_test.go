package command

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/example/stock-ledger/internal/domain/item"
	"github.com/example/stock-ledger/internal/domain/ledger"
	"github.com/example/stock-ledger/internal/domain/movement"
	"github.com/example/stock-ledger/internal/domain/order"
	"github.com/example/stock-ledger/internal/infrastructure/store"
	"github.com/example/stock-ledger/internal/infrastructure/store/mocks"
)

func newTestHandler() (*Handler, *mocks.MockStore, *mocks.MockPublisher) {
	st := mocks.NewMockStore()
	pub := mocks.NewMockPublisher()
	logger := zap.NewNop()

	handler := NewHandler(
		item.NewService(st, pub, logger),
		movement.NewService(st, pub, logger),
		order.NewService(st, pub, logger),
	)
	return handler, st, pub
}

// ============================================
// Item Commands
// ============================================

func TestHandler_CreateItem(t *testing.T) {
	handler, _, pub := newTestHandler()

	it, err := handler.CreateItem(context.Background(), CreateItem{Name: " Pen ", Price: decimal.RequireFromString("5")})

	require.NoError(t, err)
	assert.Equal(t, "Pen", it.Name)
	assert.Equal(t, "5.00", it.Price.StringFixed(2))
	assert.Equal(t, []string{item.EventItemCreated}, pub.EventTypes())
}

func TestHandler_UpdateAndDeleteItem(t *testing.T) {
	handler, st, _ := newTestHandler()
	ctx := context.Background()
	pen := st.AddItem("Pen", "5.00")

	it, err := handler.UpdateItem(ctx, UpdateItem{ItemID: pen.ID, Name: "Gel Pen", Price: decimal.RequireFromString("6.50")})
	require.NoError(t, err)
	assert.Equal(t, "Gel Pen", it.Name)

	require.NoError(t, handler.DeleteItem(ctx, DeleteItem{ItemID: pen.ID}))
	_, err = handler.RecordMovement(ctx, RecordMovement{ItemID: pen.ID, Quantity: 1, Type: "T"})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

// ============================================
// Movement Commands
// ============================================

func TestHandler_RecordMovement_ParsesType(t *testing.T) {
	handler, st, _ := newTestHandler()
	ctx := context.Background()
	pen := st.AddItem("Pen", "5.00")

	m, err := handler.RecordMovement(ctx, RecordMovement{ItemID: pen.ID, Quantity: 5, Type: "top_up"})
	require.NoError(t, err)
	assert.Equal(t, ledger.KindTopUp, m.Kind)

	m, err = handler.RecordMovement(ctx, RecordMovement{ItemID: pen.ID, Quantity: 2, Type: "w"})
	require.NoError(t, err)
	assert.Equal(t, ledger.KindWithdrawal, m.Kind)
	assert.Equal(t, 3, st.Stock(pen.ID))
}

func TestHandler_RecordMovement_InvalidTypeNeverOpensTx(t *testing.T) {
	handler, st, _ := newTestHandler()
	pen := st.AddItem("Pen", "5.00")

	_, err := handler.RecordMovement(context.Background(), RecordMovement{ItemID: pen.ID, Quantity: 1, Type: "X"})

	assert.ErrorIs(t, err, ledger.ErrInvalidKind)
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument)
	assert.Zero(t, st.TxCalls)
}

func TestHandler_UpdateMovement(t *testing.T) {
	handler, st, _ := newTestHandler()
	ctx := context.Background()
	pen := st.AddItem("Pen", "5.00")
	st.AddMovement(pen.ID, 5, ledger.KindTopUp)
	w := st.AddMovement(pen.ID, 2, ledger.KindWithdrawal)

	_, err := handler.UpdateMovement(ctx, UpdateMovement{MovementID: w.ID, ItemID: pen.ID, Quantity: 5, Type: "W"})
	require.NoError(t, err)
	assert.Equal(t, 0, st.Stock(pen.ID))

	_, err = handler.UpdateMovement(ctx, UpdateMovement{MovementID: w.ID, ItemID: pen.ID, Quantity: 6, Type: "W"})
	var stockErr *ledger.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 5, stockErr.Available)

	require.NoError(t, handler.DeleteMovement(ctx, DeleteMovement{MovementID: w.ID}))
	assert.Equal(t, 5, st.Stock(pen.ID))
}

// ============================================
// Order Commands
// ============================================

func TestHandler_OrderLifecycle(t *testing.T) {
	handler, st, pub := newTestHandler()
	ctx := context.Background()
	pen := st.AddItem("Pen", "5.00")
	st.AddMovement(pen.ID, 10, ledger.KindTopUp)

	o, err := handler.CreateOrder(ctx, CreateOrder{ItemID: pen.ID, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, "O1", o.OrderNo)
	assert.Equal(t, "5.00", o.Price.StringFixed(2))

	price := decimal.RequireFromString("4.25")
	o, err = handler.UpdateOrder(ctx, UpdateOrder{OrderNo: "O1", ItemID: pen.ID, Quantity: 3, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, "4.25", o.Price.StringFixed(2))
	assert.Equal(t, 7, st.Stock(pen.ID))

	require.NoError(t, handler.DeleteOrder(ctx, DeleteOrder{OrderNo: "O1"}))
	assert.Equal(t, 10, st.Stock(pen.ID))

	assert.Equal(t, []string{
		order.EventOrderCreated, order.EventOrderUpdated, order.EventOrderDeleted,
	}, pub.EventTypes())
}

// ============================================
// Seed
// ============================================

func TestSeed_LoadsCatalogue(t *testing.T) {
	handler, st, _ := newTestHandler()
	ctx := context.Background()

	seeded, err := Seed(ctx, handler, st, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, seeded)

	items, err := st.ListItems(ctx, store.NewPage(0, 100))
	require.NoError(t, err)
	require.Len(t, items.Items, 7)

	want := map[string]int{"Pen": 1, "Book": 10, "Bag": 1, "Pencil": 5, "Shoe": 1, "Box": 3, "Cap": 4}
	for _, it := range items.Items {
		stock, err := st.CurrentStock(ctx, it.ID)
		require.NoError(t, err)
		assert.Equal(t, want[it.Name], stock, it.Name)
	}

	orders, err := st.ListOrders(ctx, store.NewPage(0, 100))
	require.NoError(t, err)
	require.Len(t, orders.Items, 10)
	assert.Equal(t, "O1", orders.Items[0].OrderNo)
	assert.Equal(t, "O10", orders.Items[9].OrderNo)
	assert.Equal(t, "150.00", orders.Items[2].Price.StringFixed(2))
}

func TestSeed_SkipsWhenItemsExist(t *testing.T) {
	handler, st, pub := newTestHandler()
	st.AddItem("Existing", "1.00")

	seeded, err := Seed(context.Background(), handler, st, zap.NewNop())

	require.NoError(t, err)
	assert.False(t, seeded)
	assert.Empty(t, pub.Published)
}

// ============================================
// Properties
// ============================================

// Guarded operations (everything except deleting or relocating a top-up)
// must never leave an item below zero, and stock must always match the
// ledger rows.
func TestHandler_StockNeverNegative(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		handler, st, _ := newTestHandler()
		ctx := context.Background()

		itemIDs := []int64{
			st.AddItem("A", "1.00").ID,
			st.AddItem("B", "2.00").ID,
			st.AddItem("C", "3.00").ID,
		}
		var withdrawals []int64
		var orderNos []string

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			itemID := rapid.SampledFrom(itemIDs).Draw(rt, "item")
			qty := rapid.IntRange(1, 8).Draw(rt, "qty")

			switch rapid.IntRange(0, 5).Draw(rt, "op") {
			case 0:
				_, err := handler.RecordMovement(ctx, RecordMovement{ItemID: itemID, Quantity: qty, Type: "T"})
				if err != nil {
					rt.Fatalf("top up: %v", err)
				}
			case 1:
				m, err := handler.RecordMovement(ctx, RecordMovement{ItemID: itemID, Quantity: qty, Type: "W"})
				if err == nil {
					withdrawals = append(withdrawals, m.ID)
				} else if !errors.Is(err, ledger.ErrInsufficientStock) {
					rt.Fatalf("withdraw: %v", err)
				}
			case 2:
				o, err := handler.CreateOrder(ctx, CreateOrder{ItemID: itemID, Quantity: qty})
				if err == nil {
					orderNos = append(orderNos, o.OrderNo)
				} else if !errors.Is(err, ledger.ErrInsufficientStock) {
					rt.Fatalf("order: %v", err)
				}
			case 3:
				if len(orderNos) == 0 {
					continue
				}
				no := rapid.SampledFrom(orderNos).Draw(rt, "order")
				_, err := handler.UpdateOrder(ctx, UpdateOrder{OrderNo: no, ItemID: itemID, Quantity: qty})
				if err != nil && !errors.Is(err, ledger.ErrInsufficientStock) && !errors.Is(err, ledger.ErrNotFound) {
					rt.Fatalf("update order: %v", err)
				}
			case 4:
				if len(withdrawals) == 0 {
					continue
				}
				id := rapid.SampledFrom(withdrawals).Draw(rt, "withdrawal")
				_, err := handler.UpdateMovement(ctx, UpdateMovement{MovementID: id, ItemID: itemID, Quantity: qty, Type: "W"})
				if err != nil && !errors.Is(err, ledger.ErrInsufficientStock) && !errors.Is(err, ledger.ErrNotFound) {
					rt.Fatalf("update withdrawal: %v", err)
				}
			case 5:
				if len(orderNos) == 0 {
					continue
				}
				no := rapid.SampledFrom(orderNos).Draw(rt, "delete")
				err := handler.DeleteOrder(ctx, DeleteOrder{OrderNo: no})
				if err != nil && !errors.Is(err, ledger.ErrNotFound) {
					rt.Fatalf("delete order: %v", err)
				}
			}

			for _, id := range itemIDs {
				if stock := st.Stock(id); stock < 0 {
					rt.Fatalf("item %d stock %d after step %d", id, stock, i)
				}
			}
		}
	})
}
