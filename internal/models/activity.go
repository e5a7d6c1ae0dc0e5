package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog is a coarse "what happened" feed entry, separate from the
// audit ledger. Losing one is acceptable.
type ActivityLog struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
	EntityType   string         `gorm:"size:50;not null;index:idx_activity_entity" json:"entity_type"`
	EntityID     string         `gorm:"size:64;not null;index:idx_activity_entity" json:"entity_id"`
	ActivityType string         `gorm:"size:50;not null" json:"activity_type"`
	ActorID      *uint          `json:"actor_id,omitempty"`
	Before       datatypes.JSON `json:"before,omitempty"`
	After        datatypes.JSON `json:"after,omitempty"`
}
