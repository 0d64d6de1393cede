package audit

import (
	"time"

	"gorm.io/gorm"

	"github.com/openshelf/circulation/internal/entities"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// LogEvent appends a circulation event.
func (r *Repository) LogEvent(event *entities.CirculationEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	return r.db.Create(event).Error
}

// Events retrieves paginated circulation events, most recent first.
func (r *Repository) Events(limit, offset int) ([]entities.CirculationEvent, int64, error) {
	var events []entities.CirculationEvent
	var total int64

	query := r.db.Model(&entities.CirculationEvent{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&events).Error
	return events, total, err
}

// EventsForEntity retrieves the operator trail for one book, borrower, or loan.
func (r *Repository) EventsForEntity(entityType, entityID string) ([]entities.CirculationEvent, error) {
	var events []entities.CirculationEvent
	err := r.db.
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at DESC").Find(&events).Error
	return events, err
}

// RecentEvents retrieves events since a specific time.
func (r *Repository) RecentEvents(since time.Time) ([]entities.CirculationEvent, error) {
	var events []entities.CirculationEvent
	err := r.db.Where("created_at > ?", since).Order("created_at DESC").Find(&events).Error
	return events, err
}

// DeleteOldEvents removes circulation events older than the specified time.
// Returns the number of deleted events.
func (r *Repository) DeleteOldEvents(olderThan time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", olderThan).Delete(&entities.CirculationEvent{})
	return result.RowsAffected, result.Error
}
