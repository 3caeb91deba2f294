// Package httpapi — REST-поверхность order-service и product-service на chi.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

// Категории ошибок в теле ответа.
const (
	errNotFound            = "not_found"
	errValidationFailed    = "validation_failed"
	errRejected            = "rejected"
	errInsufficientStock   = "insufficient_stock"
	errConflict            = "conflict"
	errUpstreamUnavailable = "upstream_unavailable"
	errInternal            = "internal"
)

// ErrorResponse — тело любого ответа с ошибкой.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, category, message string) {
	writeJSON(w, status, ErrorResponse{Error: category, Message: message})
}

// writeDomainError переводит доменную ошибку в HTTP-ответ. Внутренние
// ошибки логируются, клиенту уходит общее сообщение.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *log.Entry, err error) {
	status, category := classify(err)
	if status == http.StatusInternalServerError {
		requestLogger(r, logger).WithError(err).Error("request failed")
		writeError(w, status, category, "internal error")
		return
	}
	writeError(w, status, category, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest, errValidationFailed
	case errors.Is(err, domain.ErrOrderCreationRejected):
		return http.StatusBadRequest, errRejected
	case domain.IsTransient(err):
		return http.StatusServiceUnavailable, errUpstreamUnavailable
	case domain.IsNotFound(err):
		return http.StatusNotFound, errNotFound
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusConflict, errInsufficientStock
	case domain.IsVersionConflict(err):
		return http.StatusConflict, errConflict
	default:
		return http.StatusInternalServerError, errInternal
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return domain.NewValidationError("request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.NewValidationError("malformed JSON body: " + err.Error())
	}
	return nil
}
