// Package idempotency реализует повтор ответов по заголовку Idempotency-Key
// поверх domain.IdempotencyRepository и фоновую очистку просроченных ключей.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	"github.com/vladislavdragonenkov/ordercore/internal/metrics"
)

// Outcome — решение Guard по входящему запросу.
type Outcome int

const (
	// Proceed: ключ занят этим запросом, обработчик должен выполниться.
	Proceed Outcome = iota
	// Replay: запрос уже выполнен, нужно вернуть сохранённый ответ.
	Replay
	// InFlight: запрос с тем же ключом ещё выполняется.
	InFlight
	// Mismatch: ключ уже использован с другим телом запроса.
	Mismatch
)

func (o Outcome) String() string {
	switch o {
	case Proceed:
		return "proceed"
	case Replay:
		return "replay"
	case InFlight:
		return "in_flight"
	case Mismatch:
		return "mismatch"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Decision — результат Begin. Record заполнен для Replay.
type Decision struct {
	Outcome Outcome
	Record  domain.IdempotencyRecord
}

// Guard координирует запись, повтор и завершение idempotent-запросов.
type Guard struct {
	repo    domain.IdempotencyRepository
	ttl     time.Duration
	now     func() time.Time
	logger  *log.Entry
	metrics *metrics.IdempotencyMetrics
}

// GuardOption настраивает Guard.
type GuardOption func(*Guard)

// WithGuardMetrics включает учёт решений Begin.
func WithGuardMetrics(m *metrics.IdempotencyMetrics) GuardOption {
	return func(g *Guard) { g.metrics = m }
}

// WithClock подменяет источник времени для расчёта срока жизни ключа.
func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGuard создаёт Guard; ttl <= 0 заменяется на domain.DefaultIdempotencyTTL.
func NewGuard(repo domain.IdempotencyRepository, ttl time.Duration, logger *log.Entry, options ...GuardOption) *Guard {
	if ttl <= 0 {
		ttl = domain.DefaultIdempotencyTTL
	}
	if logger == nil {
		logger = log.WithField("component", "idempotency-guard")
	}
	g := &Guard{
		repo:   repo,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
	for _, option := range options {
		option(g)
	}
	return g
}

// RequestHash считает отпечаток запроса: метод, путь и тело.
func RequestHash(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Begin пытается занять ключ. Ошибка возвращается только при сбое хранилища
// или пустом ключе.
func (g *Guard) Begin(ctx context.Context, key, requestHash string) (Decision, error) {
	decision, err := g.begin(ctx, key, requestHash)
	if err != nil {
		g.metrics.RecordDecision("error")
		return decision, err
	}
	g.metrics.RecordDecision(decision.Outcome.String())
	return decision, nil
}

func (g *Guard) begin(ctx context.Context, key, requestHash string) (Decision, error) {
	record, err := g.repo.CreateProcessing(ctx, key, requestHash, g.now().Add(g.ttl))
	switch {
	case err == nil:
		return Decision{Outcome: Proceed, Record: record}, nil
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return Decision{Outcome: Mismatch}, nil
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		if record.Completed() {
			return Decision{Outcome: Replay, Record: record}, nil
		}
		return Decision{Outcome: InFlight, Record: record}, nil
	default:
		return Decision{}, fmt.Errorf("begin idempotent request: %w", err)
	}
}

// Complete сохраняет ответ. 5xx запоминается как failed и тоже повторяется:
// клиент получает тот же ответ до истечения ключа.
func (g *Guard) Complete(ctx context.Context, key string, httpStatus int, body []byte) {
	var err error
	if httpStatus >= 500 {
		err = g.repo.MarkFailed(ctx, key, body, httpStatus)
	} else {
		err = g.repo.MarkDone(ctx, key, body, httpStatus)
	}
	if err != nil {
		g.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent response")
	}
}
