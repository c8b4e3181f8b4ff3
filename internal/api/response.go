package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/stock-ledger/internal/domain/ledger"
	"github.com/example/stock-ledger/internal/infrastructure/store"
)

// Envelope wraps every response body.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// StockErrorData is the payload of a 409 insufficient-stock response.
type StockErrorData struct {
	ItemID    int64  `json:"item_id"`
	ItemName  string `json:"item_name"`
	Current   int    `json:"current_stock"`
	Available int    `json:"available"`
	Requested int    `json:"requested"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondData(w http.ResponseWriter, status int, message string, data any) {
	respondJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

func respondJSONError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, Envelope{Success: false, Message: message})
}

// statusFor maps the ledger error taxonomy onto HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, store.ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	env := Envelope{Success: false, Message: err.Error()}

	var stockErr *ledger.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		env.Data = StockErrorData{
			ItemID:    stockErr.ItemID,
			ItemName:  stockErr.ItemName,
			Current:   stockErr.Current,
			Available: stockErr.Available,
			Requested: stockErr.Requested,
		}
	case status == http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "1")
		env.Message = "stock is busy, retry the request"
	case status == http.StatusInternalServerError:
		h.logger.Error("unhandled error",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		env.Message = "internal server error"
	}

	respondJSON(w, status, env)
}
