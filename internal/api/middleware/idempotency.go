package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/example/stock-ledger/internal/infrastructure/cache"
)

const IdempotencyHeader = "Idempotency-Key"

// Idempotency rejects a replayed Idempotency-Key with 409. The key is
// released when the wrapped handler does not succeed so the client can retry.
func Idempotency(keys cache.IdempotencyKeys, logger *zap.Logger) func(http.Handler) http.Handler {
	logger = logger.Named("idempotency")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyHeader)
			if key == "" || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > 255 {
				respondError(w, "idempotency key too long", http.StatusBadRequest)
				return
			}

			scoped := r.Method + " " + r.URL.Path + " " + key
			ok, err := keys.Acquire(r.Context(), scoped)
			if err != nil {
				logger.Error("acquire key", zap.String("key", key), zap.Error(err))
				respondError(w, "idempotency store unavailable", http.StatusServiceUnavailable)
				return
			}
			if !ok {
				respondError(w, "duplicate request", http.StatusConflict)
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if ww.Status() >= 300 {
				if err := keys.Release(context.WithoutCancel(r.Context()), scoped); err != nil {
					logger.Warn("release key", zap.String("key", key), zap.Error(err))
				}
			}
		})
	}
}
