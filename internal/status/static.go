package status

import (
	"context"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// StaticSource отдаёт фиксированный набор строк справочника.
type StaticSource []domain.StatusEntry

// LoadStatuses возвращает копию строк.
func (s StaticSource) LoadStatuses(context.Context) ([]domain.StatusEntry, error) {
	return append([]domain.StatusEntry(nil), s...), nil
}

// DefaultSource — справочник со статусами по умолчанию.
func DefaultSource() StaticSource {
	return StaticSource(domain.DefaultStatusEntries())
}
