package httpapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordercore/internal/service/idempotency"
)

// HeaderIdempotencyKey — заголовок с ключом идемпотентности.
const HeaderIdempotencyKey = "Idempotency-Key"

const maxIdempotentBody = 1 << 20

// RequestLogger пишет access-лог через logrus с request id из chi.
func RequestLogger(logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				entry := requestLogger(r, logger).WithFields(log.Fields{
					"status":      ww.Status(),
					"bytes":       ww.BytesWritten(),
					"duration_ms": time.Since(start).Milliseconds(),
				})
				if ww.Status() >= http.StatusInternalServerError {
					entry.Warn("http request")
					return
				}
				entry.Debug("http request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func requestLogger(r *http.Request, logger *log.Entry) *log.Entry {
	return logger.WithFields(log.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"method":     r.Method,
		"path":       r.URL.Path,
	})
}

// Idempotency повторяет сохранённый ответ для запросов с тем же
// Idempotency-Key. Запросы без заголовка проходят как есть.
//
//   - тот же ключ и тело после завершения: сохранённый статус и тело;
//   - тот же ключ, другое тело: 422;
//   - тот же ключ, запрос ещё выполняется: 409.
func Idempotency(guard *idempotency.Guard, logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderIdempotencyKey)
			if key == "" || guard == nil {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotentBody))
			if err != nil {
				writeError(w, http.StatusBadRequest, errValidationFailed, "failed to read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			decision, err := guard.Begin(r.Context(), key, idempotency.RequestHash(r.Method, r.URL.Path, body))
			if err != nil {
				requestLogger(r, logger).WithError(err).Error("idempotency storage failed")
				writeError(w, http.StatusInternalServerError, errInternal, "internal error")
				return
			}

			switch decision.Outcome {
			case idempotency.Mismatch:
				writeError(w, http.StatusUnprocessableEntity, errValidationFailed,
					"idempotency key was already used with a different request")
				return
			case idempotency.InFlight:
				writeError(w, http.StatusConflict, errConflict, "request with this idempotency key is in progress")
				return
			case idempotency.Replay:
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(decision.Record.HTTPStatus)
				_, _ = w.Write(decision.Record.ResponseBody)
				return
			}

			rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			guard.Complete(context.WithoutCancel(r.Context()), key, rec.status, rec.body.Bytes())
		})
	}
}

type recordingWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (w *recordingWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	w.body.Write(p)
	return w.ResponseWriter.Write(p)
}
