package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/wacart-backend/pkg/enums"
)

// BroadcastJob is a checkpointed mass-send. LastIndex is the index of the
// last recipient fully handled, -1 before the first.
type BroadcastJob struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	TenantID       uuid.UUID             `gorm:"column:tenant_id;type:uuid;not null;index"`
	Message        string                `gorm:"column:message;not null"`
	ImageURL       *string               `gorm:"column:image_url"`
	Recipients     []string              `gorm:"column:recipients;type:jsonb;serializer:json;not null"`
	Status         enums.BroadcastStatus `gorm:"column:status;not null;default:'pending';index"`
	LastIndex      int                   `gorm:"column:last_index;not null;default:-1"`
	ProcessedCount int                   `gorm:"column:processed_count;not null;default:0"`
	SentCount      int                   `gorm:"column:sent_count;not null;default:0"`
	FailedCount    int                   `gorm:"column:failed_count;not null;default:0"`
	LastError      *string               `gorm:"column:last_error"`
	StartedAt      *time.Time            `gorm:"column:started_at"`
	CompletedAt    *time.Time            `gorm:"column:completed_at"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (b *BroadcastJob) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}

// NextIndex is where a (re)started run picks up.
func (b BroadcastJob) NextIndex() int {
	return b.LastIndex + 1
}
