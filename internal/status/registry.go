// Package status хранит двунаправленное отображение имён статусов в идентификаторы.
package status

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Source загружает внешний справочник статусов.
type Source interface {
	LoadStatuses(ctx context.Context) ([]domain.StatusEntry, error)
}

// LoadObserver получает результат каждой загрузки (для метрик).
type LoadObserver interface {
	ObserveRegistryLoad(err error)
}

type tables struct {
	byName map[domain.EntityType]map[string]domain.StatusID
	byID   map[domain.EntityType]map[domain.StatusID]string
}

// Registry загружается один раз при первом обращении и дальше отвечает из памяти.
// Reset сбрасывает состояние; вызывать только вне конкурентных мутаций.
type Registry struct {
	source   Source
	logger   *log.Entry
	observer LoadObserver

	mu     sync.RWMutex
	loaded bool
	tables tables
}

// Option настраивает Registry.
type Option func(*Registry)

// WithLogger задаёт logger реестра.
func WithLogger(logger *log.Entry) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithObserver задаёт наблюдателя за загрузками.
func WithObserver(observer LoadObserver) Option {
	return func(r *Registry) {
		r.observer = observer
	}
}

// NewRegistry создаёт незагруженный реестр поверх source.
func NewRegistry(source Source, opts ...Option) *Registry {
	r := &Registry{
		source: source,
		logger: log.WithField("component", "status-registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Loaded сообщает, загружен ли реестр.
func (r *Registry) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// Load загружает все типы сущностей. Повторный вызов после успешной загрузки ничего не делает.
func (r *Registry) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked(ctx)
}

// Reset очищает таблицы; следующее обращение перезагрузит их.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = false
	r.tables = tables{}
}

// Resolve возвращает идентификатор статуса по имени (без учёта регистра).
func (r *Registry) Resolve(ctx context.Context, entity domain.EntityType, name string) (domain.StatusID, error) {
	t, err := r.ensure(ctx)
	if err != nil {
		return 0, err
	}
	id, ok := t.byName[entity][domain.NormalizeStatusName(name)]
	if !ok {
		return 0, fmt.Errorf("%w: %s %q", domain.ErrStatusNotFound, entity, name)
	}
	return id, nil
}

// NameOf возвращает каноническое имя статуса по идентификатору.
func (r *Registry) NameOf(ctx context.Context, entity domain.EntityType, id domain.StatusID) (string, error) {
	t, err := r.ensure(ctx)
	if err != nil {
		return "", err
	}
	name, ok := t.byID[entity][id]
	if !ok {
		return "", fmt.Errorf("%w: %s id %d", domain.ErrStatusNotFound, entity, id)
	}
	return name, nil
}

// IsValid сообщает, известно ли имя реестру. Недоступный реестр даёт false.
func (r *Registry) IsValid(ctx context.Context, entity domain.EntityType, name string) bool {
	_, err := r.Resolve(ctx, entity, name)
	return err == nil
}

func (r *Registry) ensure(ctx context.Context) (tables, error) {
	r.mu.RLock()
	if r.loaded {
		t := r.tables
		r.mu.RUnlock()
		return t, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.loadLocked(ctx); err != nil {
		return tables{}, err
	}
	return r.tables, nil
}

func (r *Registry) loadLocked(ctx context.Context) error {
	if r.loaded {
		return nil
	}

	entries, err := r.source.LoadStatuses(ctx)
	if err == nil {
		var t tables
		t, err = buildTables(entries)
		if err == nil {
			r.tables = t
			r.loaded = true
		}
	}
	if r.observer != nil {
		r.observer.ObserveRegistryLoad(err)
	}
	if err != nil {
		r.logger.WithError(err).Error("status registry load failed")
		return fmt.Errorf("%w: %w", domain.ErrStatusRegistryUnavailable, err)
	}

	r.logger.WithField("statuses", len(entries)).Debug("status registry loaded")
	return nil
}

// buildTables строит отображения и проверяет, что они взаимно однозначны
// и покрывают все статусы из таблиц переходов.
func buildTables(entries []domain.StatusEntry) (tables, error) {
	t := tables{
		byName: make(map[domain.EntityType]map[string]domain.StatusID),
		byID:   make(map[domain.EntityType]map[domain.StatusID]string),
	}
	for _, entity := range domain.EntityTypes() {
		t.byName[entity] = make(map[string]domain.StatusID)
		t.byID[entity] = make(map[domain.StatusID]string)
	}

	for _, entry := range entries {
		names, ok := t.byName[entry.EntityType]
		if !ok {
			return tables{}, fmt.Errorf("unknown entity type %q", entry.EntityType)
		}
		name := domain.NormalizeStatusName(entry.Name)
		if _, dup := names[name]; dup {
			return tables{}, fmt.Errorf("%w: duplicate name %s/%s", domain.ErrStatusRegistryConflict, entry.EntityType, name)
		}
		if _, dup := t.byID[entry.EntityType][entry.ID]; dup {
			return tables{}, fmt.Errorf("%w: duplicate id %s/%d", domain.ErrStatusRegistryConflict, entry.EntityType, entry.ID)
		}
		names[name] = entry.ID
		t.byID[entry.EntityType][entry.ID] = name
	}

	for _, entity := range domain.EntityTypes() {
		for _, name := range domain.StatusNames(entity) {
			if _, ok := t.byName[entity][name]; !ok {
				return tables{}, fmt.Errorf("status %s/%s is missing from the table", entity, name)
			}
		}
	}
	return t, nil
}
