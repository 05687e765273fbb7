package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/wacart-backend/pkg/enums"
)

// OutboundMessage is the append-only log of automated send attempts.
type OutboundMessage struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	TenantID          uuid.UUID            `gorm:"column:tenant_id;type:uuid;not null;index"`
	OrderID           *uuid.UUID           `gorm:"column:order_id;type:uuid"`
	BroadcastJobID    *uuid.UUID           `gorm:"column:broadcast_job_id;type:uuid"`
	Phone             string               `gorm:"column:phone;not null"`
	MessageType       enums.MessageType    `gorm:"column:message_type;not null"`
	Channel           enums.Channel        `gorm:"column:channel;not null"`
	Content           string               `gorm:"column:content;not null"`
	ProviderMessageID *string              `gorm:"column:provider_message_id;index"`
	DeliveryStatus    enums.DeliveryStatus `gorm:"column:delivery_status;not null"`
	Error             *string              `gorm:"column:error"`
	SentAt            *time.Time           `gorm:"column:sent_at"`
	DeliveredAt       *time.Time           `gorm:"column:delivered_at"`
	ReadAt            *time.Time           `gorm:"column:read_at"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *OutboundMessage) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
