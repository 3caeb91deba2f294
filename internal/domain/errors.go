package domain

import "errors"

var (
	// ErrNotFound — общий корень для всех "сущность не найдена".
	ErrNotFound = errors.New("not found")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = wrapSentinel(ErrNotFound, "order not found")
	// ErrProductNotFound возвращается, если товар не найден в каталоге.
	ErrProductNotFound = wrapSentinel(ErrNotFound, "product not found")

	// ErrValidation — некорректные или отсутствующие входные поля.
	ErrValidation = errors.New("validation failed")

	// ErrOrderCreationRejected — ни один товар не разрешился или lookup упал; заказ не создан.
	ErrOrderCreationRejected = errors.New("order creation rejected")
	// ErrNoProductsResolved — каталог вернул пустой результат на bulk-запрос.
	ErrNoProductsResolved = errors.New("no products resolved")

	// ErrInsufficientStock — корректировка увела бы остаток в минус.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrLookupFailed — bulk-запрос к каталогу не удался (сеть, таймаут, битый ответ).
	ErrLookupFailed = errors.New("product lookup failed")
	// ErrUpstreamUnavailable — временная недоступность product-service.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении заказа.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrProductVersionConflict сигнализирует о конфликте версий при сохранении товара.
	ErrProductVersionConflict = errors.New("product version conflict")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// ErrIdempotencyKeyRequired — пустой idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — пустой хэш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists — ключ уже зарегистрирован с тем же запросом.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — ключ переиспользован для другого запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyKeyNotFound — ключ не найден.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

type sentinel struct {
	parent error
	msg    string
}

func (e *sentinel) Error() string { return e.msg }

func (e *sentinel) Unwrap() error { return e.parent }

func wrapSentinel(parent error, msg string) error {
	return &sentinel{parent: parent, msg: msg}
}

// IsNotFound проверяет, относится ли ошибка к категории "не найдено".
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation проверяет, является ли ошибка ошибкой валидации.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict) || errors.Is(err, ErrProductVersionConflict)
}

// IsTransient проверяет, что ошибка временная и запрос можно повторить снаружи.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}
