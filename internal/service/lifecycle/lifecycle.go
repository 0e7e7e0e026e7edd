// Package lifecycle содержит общую обвязку сервисов жизненного цикла:
// разрешение статусов, инвалидацию кэша, события outbox и обработку ошибок хранилища.
package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/cache"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Statuses описывает часть реестра статусов, нужную сервисам.
type Statuses interface {
	Resolve(ctx context.Context, entity domain.EntityType, name string) (domain.StatusID, error)
	NameOf(ctx context.Context, entity domain.EntityType, id domain.StatusID) (string, error)
}

// EventSink принимает события для transactional outbox.
type EventSink interface {
	Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error)
}

// TTL задаёт время жизни записей кэша по типам сущностей.
type TTL struct {
	Order      time.Duration
	Return     time.Duration
	Invoice    time.Duration
	Cart       time.Duration
	Collection time.Duration
}

// DefaultTTL — значения по умолчанию.
func DefaultTTL() TTL {
	return TTL{
		Order:      600 * time.Second,
		Return:     600 * time.Second,
		Invoice:    300 * time.Second,
		Cart:       60 * time.Second,
		Collection: 60 * time.Second,
	}
}

// Deps — зависимости, общие для всех сервисов жизненного цикла.
type Deps struct {
	Statuses Statuses
	Cache    *cache.Cache
	Events   EventSink
	Metrics  *metrics.LifecycleMetrics
	Logger   *log.Entry
	TTL      TTL
	Now      func() time.Time
}

// Base реализует общие шаги: resolve → persist → invalidate → emit.
type Base struct {
	statuses Statuses
	cache    *cache.Cache
	events   EventSink
	metrics  *metrics.LifecycleMetrics
	logger   *log.Entry
	ttl      TTL
	now      func() time.Time
	entity   domain.EntityType
}

// NewBase заполняет значения по умолчанию для entity.
func NewBase(entity domain.EntityType, deps Deps) Base {
	b := Base{
		statuses: deps.Statuses,
		cache:    deps.Cache,
		events:   deps.Events,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		ttl:      deps.TTL,
		now:      deps.Now,
		entity:   entity,
	}
	if b.logger == nil {
		b.logger = log.WithField("component", "lifecycle")
	}
	b.logger = b.logger.WithField("entity", string(entity))
	if b.cache == nil {
		b.cache = cache.New(nil, cache.WithLogger(b.logger))
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.ttl == (TTL{}) {
		b.ttl = DefaultTTL()
	}
	return b
}

// Logger возвращает logger сервиса.
func (b *Base) Logger() *log.Entry { return b.logger }

// Cache возвращает кэш сервиса.
func (b *Base) Cache() *cache.Cache { return b.cache }

// TTL возвращает настройки TTL.
func (b *Base) TTL() TTL { return b.ttl }

// Now возвращает текущее время в UTC.
func (b *Base) Now() time.Time { return b.now().UTC() }

// ResolveStatus переводит имя в идентификатор. Пустое имя заменяется на fallback.
// Неизвестное имя оборачивает domain.ErrStatusNotFound; недоступный реестр
// оборачивает domain.ErrStatusRegistryUnavailable. Разделяет их Collect.
func (b *Base) ResolveStatus(ctx context.Context, name, fallback string) (domain.StatusID, string, error) {
	if name == "" {
		name = fallback
	}
	id, err := b.statuses.Resolve(ctx, b.entity, name)
	if err != nil {
		if errors.Is(err, domain.ErrStatusNotFound) {
			return 0, "", fmt.Errorf("status_name: %w", err)
		}
		return 0, "", err
	}
	return id, domain.NormalizeStatusName(name), nil
}

// Collect добавляет нарушение правил в список и возвращает ошибку,
// которую нужно вернуть немедленно (например, недоступность реестра).
func Collect(violations *[]error, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrStatusNotFound) || errors.Is(err, domain.ErrUnknownStatus) {
		*violations = append(*violations, err)
		return nil
	}
	return err
}

// StatusName возвращает имя статуса по идентификатору.
func (b *Base) StatusName(ctx context.Context, id domain.StatusID) (string, error) {
	return b.statuses.NameOf(ctx, b.entity, id)
}

// StorageFailure логирует причину с контекстом и возвращает обобщённую ошибку.
// Ошибки предметной области (not found, конфликт версий, недоступный реестр) пропускаются как есть.
func (b *Base) StorageFailure(op, entityID string, err error) error {
	if passThrough(err) {
		return err
	}
	b.logger.WithError(err).WithFields(log.Fields{
		"operation": op,
		"entity_id": entityID,
	}).Error("storage operation failed")
	return fmt.Errorf("%s: %w", op, domain.ErrStorageFailure)
}

func passThrough(err error) bool {
	return domain.IsNotFound(err) ||
		errors.Is(err, domain.ErrVersionConflict) ||
		errors.Is(err, domain.ErrStatusRegistryUnavailable) ||
		errors.Is(err, domain.ErrStatusNotFound) ||
		errors.Is(err, domain.ErrCartAlreadyOrdered) ||
		errors.Is(err, domain.ErrCartFinalized) ||
		errors.Is(err, domain.ErrActiveCartExists) ||
		errors.Is(err, domain.ErrStorageFailure)
}

// Invalidate сбрасывает ключ сущности и коллекции "all" и "by user".
func (b *Base) Invalidate(ctx context.Context, namespace, id, userID string) {
	b.cache.Invalidate(ctx, cache.EntityKeys(namespace, id, userID)...)
}

// Emit ставит событие в outbox. Ошибка только логируется: мутация уже сохранена.
func (b *Base) Emit(ctx context.Context, aggregateType, aggregateID, eventType string, payload any) {
	if b.events == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		b.logger.WithError(err).WithField("event_type", eventType).Warn("failed to encode lifecycle event")
		return
	}
	_, err = b.events.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       body,
		CreatedAt:     b.Now(),
	})
	if err != nil {
		b.logger.WithError(err).WithFields(log.Fields{
			"event_type":   eventType,
			"aggregate_id": aggregateID,
		}).Warn("failed to enqueue lifecycle event")
		return
	}
	b.metrics.RecordOutboxEnqueued()
}

// Observe фиксирует метрики операции; вызывается через defer с указателем на итоговую ошибку.
func (b *Base) Observe(operation string, started time.Time, errp *error) {
	var err error
	if errp != nil {
		err = *errp
	}
	b.metrics.ObserveOperation(string(b.entity), operation, ResultOf(err), time.Since(started))
}

// RecordTransition считает применённый переход.
func (b *Base) RecordTransition(from, to string) {
	b.metrics.RecordTransition(string(b.entity), from, to)
}

// ResultOf классифицирует ошибку для метрик.
func ResultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case IsRejection(err):
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}

// IsRejection сообщает, что ошибку вызвал запрос, а не инфраструктура.
func IsRejection(err error) bool {
	return errors.Is(err, domain.ErrValidationFailed) ||
		errors.Is(err, domain.ErrInvalidTransition) ||
		errors.Is(err, domain.ErrOwnershipViolation) ||
		errors.Is(err, domain.ErrCartAlreadyOrdered) ||
		errors.Is(err, domain.ErrCartFinalized) ||
		errors.Is(err, domain.ErrActiveCartExists) ||
		errors.Is(err, domain.ErrVersionConflict) ||
		domain.IsNotFound(err)
}

// Reject собирает ответ из нарушений. Единственный отклонённый переход возвращается
// как *domain.TransitionError, всё остальное как *domain.ValidationError.
func Reject(violations []error) error {
	if len(violations) == 1 {
		var transition *domain.TransitionError
		if errors.As(violations[0], &transition) {
			return transition
		}
	}
	return domain.NewValidationError(violations)
}

// Ownership возвращает ошибку нарушения владения.
func Ownership(entity domain.EntityType, id, expectedUser, actualUser string) error {
	return fmt.Errorf("%w: %s %s belongs to %s, not %s", domain.ErrOwnershipViolation, entity, id, expectedUser, actualUser)
}
