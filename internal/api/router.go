package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/example/stock-ledger/internal/api/middleware"
	"github.com/example/stock-ledger/internal/auth"
	"github.com/example/stock-ledger/internal/infrastructure/cache"
	"github.com/example/stock-ledger/internal/infrastructure/store"
)

type RouterConfig struct {
	Handlers     *Handlers
	AuthHandlers *AuthHandlers
	JWTService   *auth.JWTService
	Idempotency  cache.IdempotencyKeys
	RateLimiter  *middleware.RateLimiter
	Logger       *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	h := cfg.Handlers

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(tracing)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(chimw.Recoverer)
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Middleware)
	}
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", cfg.AuthHandlers.Login)
		r.Post("/auth/refresh", cfg.AuthHandlers.Refresh)
		r.Post("/auth/logout", cfg.AuthHandlers.Logout)

		// reads are public
		r.Get("/items", h.ListItems)
		r.Get("/items/{id}", h.GetItem)
		r.Get("/items/{id}/stock", h.GetItemStock)
		r.Get("/items/{id}/history", h.History(store.AggregateItem))
		r.Get("/inventory", h.ListMovements)
		r.Get("/inventory/{id}", h.GetMovement)
		r.Get("/inventory/{id}/history", h.History(store.AggregateMovement))
		r.Get("/orders", h.ListOrders)
		r.Get("/orders/{id}", h.GetOrder)
		r.Get("/orders/{id}/history", h.History(store.AggregateOrder))

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(cfg.JWTService))
			r.Use(middleware.RequireRole(auth.RoleOperator))
			if cfg.Idempotency != nil {
				r.Use(middleware.Idempotency(cfg.Idempotency, cfg.Logger))
			}

			r.Post("/items", h.CreateItem)
			r.Put("/items/{id}", h.UpdateItem)
			r.Delete("/items/{id}", h.DeleteItem)
			r.Post("/inventory", h.RecordMovement)
			r.Put("/inventory/{id}", h.UpdateMovement)
			r.Delete("/inventory/{id}", h.DeleteMovement)
			r.Post("/orders", h.CreateOrder)
			r.Put("/orders/{id}", h.UpdateOrder)
			r.Delete("/orders/{id}", h.DeleteOrder)
		})
	})

	return r
}

// tracing opens a server span per request and continues an incoming W3C trace.
func tracing(next http.Handler) http.Handler {
	tracer := otel.Tracer("stock-ledger/api")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
				attribute.String("request.id", middleware.GetRequestID(r.Context())),
			),
		)
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
