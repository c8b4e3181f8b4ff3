package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/stock-ledger/internal/auth"
	"github.com/example/stock-ledger/internal/command"
	"github.com/example/stock-ledger/internal/domain/item"
	"github.com/example/stock-ledger/internal/domain/ledger"
	"github.com/example/stock-ledger/internal/domain/movement"
	"github.com/example/stock-ledger/internal/domain/order"
	"github.com/example/stock-ledger/internal/infrastructure/cache"
	"github.com/example/stock-ledger/internal/infrastructure/store"
	"github.com/example/stock-ledger/internal/infrastructure/store/mocks"
	"github.com/example/stock-ledger/internal/query"
)

const testSecret = "test-secret-key-0123456789abcdef"

type testServer struct {
	handler http.Handler
	store   *mocks.MockStore
	jwt     *auth.JWTService
	token   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := mocks.NewMockStore()
	pub := mocks.NewMockPublisher()
	logger := zap.NewNop()

	cmdHandler := command.NewHandler(
		item.NewService(st, pub, logger),
		movement.NewService(st, pub, logger),
		order.NewService(st, pub, logger),
	)
	queryHandler := query.NewHandler(st, logger)

	hash, err := auth.HashPassword("operator-pass", bcrypt.MinCost)
	require.NoError(t, err)
	jwtService := auth.NewJWTService(testSecret, 15*time.Minute, time.Hour)
	token, _, err := jwtService.GenerateAccessToken("ops@example.com", auth.RoleOperator)
	require.NoError(t, err)

	router := NewRouter(RouterConfig{
		Handlers:     NewHandlers(cmdHandler, queryHandler, nil, logger),
		AuthHandlers: NewAuthHandlers(auth.Operator{Email: "ops@example.com", PasswordHash: hash}, jwtService, logger),
		JWTService:   jwtService,
		Idempotency:  cache.NewMemoryIdempotency(time.Hour),
		Logger:       logger,
	})
	return &testServer{handler: router, store: st, jwt: jwtService, token: token}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if method != http.MethodGet {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env Envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func dataMap(t *testing.T, env Envelope) map[string]any {
	t.Helper()
	m, ok := env.Data.(map[string]any)
	require.True(t, ok, "data is %T", env.Data)
	return m
}

// ============================================
// Items
// ============================================

func TestRouter_ItemLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rec, env := srv.do(t, http.MethodPost, "/api/v1/items", map[string]any{"name": "Pen", "price": "5"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, env.Success)
	created := dataMap(t, env)
	assert.Equal(t, "Pen", created["name"])
	assert.Equal(t, "5", created["price"])
	assert.EqualValues(t, 0, created["current_stock"])

	rec, env = srv.do(t, http.MethodPut, "/api/v1/items/1", map[string]any{"name": "Gel Pen", "price": 6.5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Gel Pen", dataMap(t, env)["name"])

	rec, _ = srv.do(t, http.MethodGet, "/api/v1/items/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = srv.do(t, http.MethodDelete, "/api/v1/items/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = srv.do(t, http.MethodGet, "/api/v1/items/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)

	rec, env = srv.do(t, http.MethodGet, "/api/v1/items/1/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history, ok := env.Data.([]any)
	require.True(t, ok)
	assert.Len(t, history, 3)
}

func TestRouter_CreateItem_Validation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body any
	}{
		{"zero price", map[string]any{"name": "Pen", "price": "0"}},
		{"blank name", map[string]any{"name": "  ", "price": "1"}},
		{"malformed", "not an object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := srv.do(t, http.MethodPost, "/api/v1/items", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, env.Success)
		})
	}
}

func TestRouter_BadIDIs400(t *testing.T) {
	srv := newTestServer(t)

	rec, _ := srv.do(t, http.MethodGet, "/api/v1/items/abc", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_ListItemsPaged(t *testing.T) {
	srv := newTestServer(t)
	for _, name := range []string{"A", "B", "C"} {
		srv.store.AddItem(name, "1.00")
	}

	rec, env := srv.do(t, http.MethodGet, "/api/v1/items?page=0&size=2", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	page := dataMap(t, env)
	assert.EqualValues(t, 3, page["total_elements"])
	assert.EqualValues(t, 2, page["total_pages"])
	assert.Len(t, page["content"], 2)
}

func TestRouter_ListItemsPageOutOfRange(t *testing.T) {
	srv := newTestServer(t)
	srv.store.AddItem("A", "1.00")

	rec, env := srv.do(t, http.MethodGet, "/api/v1/items?page=4611686018427387904&size=10", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	page := dataMap(t, env)
	assert.EqualValues(t, 1, page["total_elements"])
	assert.Empty(t, page["content"])
}

// ============================================
// Inventory and Orders
// ============================================

func TestRouter_PenScenario(t *testing.T) {
	srv := newTestServer(t)
	pen := srv.store.AddItem("Pen", "5.00")

	rec, env := srv.do(t, http.MethodPost, "/api/v1/inventory", map[string]any{"item_id": pen.ID, "qty": 5, "type": "T"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Pen", dataMap(t, env)["item_name"])

	rec, _ = srv.do(t, http.MethodPost, "/api/v1/inventory", map[string]any{"item_id": pen.ID, "qty": 2, "type": "W"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env = srv.do(t, http.MethodPost, "/api/v1/orders", map[string]any{"item_id": pen.ID, "qty": 3})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	o := dataMap(t, env)
	assert.Equal(t, "O1", o["order_no"])
	assert.Equal(t, "5", o["price"])

	rec, env = srv.do(t, http.MethodPost, "/api/v1/orders", map[string]any{"item_id": pen.ID, "qty": 1})
	require.Equal(t, http.StatusConflict, rec.Code)
	details := dataMap(t, env)
	assert.EqualValues(t, 0, details["current_stock"])
	assert.EqualValues(t, 0, details["available"])
	assert.EqualValues(t, 1, details["requested"])

	rec, env = srv.do(t, http.MethodGet, "/api/v1/items/1/stock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, dataMap(t, env)["current_stock"])
}

func TestRouter_UpdateAndDeleteOrder(t *testing.T) {
	srv := newTestServer(t)
	pen := srv.store.AddItem("Pen", "5.00")
	srv.store.AddMovement(pen.ID, 4, ledger.KindTopUp)
	srv.store.AddOrder("O1", pen.ID, 3, "5.00")

	rec, env := srv.do(t, http.MethodPut, "/api/v1/orders/o1", map[string]any{"item_id": pen.ID, "qty": 4, "price": "4.50"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "4.5", dataMap(t, env)["price"])

	rec, _ = srv.do(t, http.MethodDelete, "/api/v1/orders/O1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, srv.store.Stock(pen.ID))

	rec, _ = srv.do(t, http.MethodDelete, "/api/v1/orders/O1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_MovementUpdate(t *testing.T) {
	srv := newTestServer(t)
	pen := srv.store.AddItem("Pen", "5.00")
	srv.store.AddMovement(pen.ID, 5, ledger.KindTopUp)
	w := srv.store.AddMovement(pen.ID, 2, ledger.KindWithdrawal)

	rec, _ := srv.do(t, http.MethodPut, "/api/v1/inventory/2", map[string]any{"item_id": pen.ID, "qty": 6, "type": "W"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, env := srv.do(t, http.MethodPut, "/api/v1/inventory/2", map[string]any{"item_id": pen.ID, "qty": 5, "type": "W"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, w.ID, dataMap(t, env)["id"])
	assert.Equal(t, 0, srv.store.Stock(pen.ID))
}

// ============================================
// Cross-cutting
// ============================================

func TestRouter_MutationsRequireOperator(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/items", bytes.NewBufferString(`{"name":"Pen","price":"1"}`))
	rec := httptest.NewRecorder()

	srv.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, srv.store.TxCalls)
}

func TestRouter_IdempotencyKey(t *testing.T) {
	srv := newTestServer(t)
	body := map[string]any{"name": "Pen", "price": "5"}

	rec, _ := srv.do(t, http.MethodPost, "/api/v1/items", body, "Idempotency-Key", "abc")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = srv.do(t, http.MethodPost, "/api/v1/items", body, "Idempotency-Key", "abc")
	assert.Equal(t, http.StatusConflict, rec.Code)

	page, err := srv.store.ListItems(context.Background(), store.NewPage(0, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestRouter_TransientIs503(t *testing.T) {
	srv := newTestServer(t)
	srv.store.TxErr = errors.Join(store.ErrTransient, errors.New("deadlock detected"))

	rec, env := srv.do(t, http.MethodPost, "/api/v1/items", map[string]any{"name": "Pen", "price": "5"})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.False(t, env.Success)
}

func TestRouter_Health(t *testing.T) {
	srv := newTestServer(t)

	rec, env := srv.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

// ============================================
// Auth
// ============================================

func TestAuth_LoginAndRefresh(t *testing.T) {
	srv := newTestServer(t)

	rec, _ := srv.do(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: "ops@example.com", Password: "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env := srv.do(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: "ops@example.com", Password: "operator-pass"})
	require.Equal(t, http.StatusOK, rec.Code)
	access, _ := dataMap(t, env)["access_token"].(string)
	claims, err := srv.jwt.ValidateAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleOperator, claims.Role)

	var refresh *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "refresh_token" {
			refresh = c
		}
	}
	require.NotNil(t, refresh)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(refresh)
	rec = httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: access})
	rec = httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "access token is not a refresh token")
}
