package notify

import (
	"context"
	"encoding/json"

	"github.com/diewo77/go-quotes/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Activity types written to the feed.
const (
	ActivityCreated  = "CREATED"
	ActivityUpdated  = "UPDATED"
	ActivitySent     = "SENT"
	ActivityDeleted  = "DELETED"
	ActivityApproved = "APPROVED"
	ActivityDeclined = "DECLINED"
)

// ActivityStore persists activity feed entries. Failures are logged and
// dropped.
type ActivityStore struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewActivityStore(db *gorm.DB, log zerolog.Logger) *ActivityStore {
	return &ActivityStore{db: db, log: log}
}

func (s *ActivityStore) Track(ctx context.Context, entry models.ActivityLog) {
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.log.Warn().Err(err).
			Str("entity_type", entry.EntityType).
			Str("entity_id", entry.EntityID).
			Str("activity", entry.ActivityType).
			Msg("activity not recorded")
	}
}

// Recent returns the latest entries for one entity, newest first.
func (s *ActivityStore) Recent(ctx context.Context, entityType, entityID string, limit int) ([]models.ActivityLog, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []models.ActivityLog
	err := s.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Snapshot encodes v for the Before/After columns. Encoding errors yield nil.
func Snapshot(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
