package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/wacart-backend/pkg/enums"
)

// PendingConfirmation is a follow-up message waiting for its send window.
// Each order holds at most one pending row per kind.
type PendingConfirmation struct {
	ID                uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	Token             uuid.UUID                `gorm:"column:token;type:uuid;not null;uniqueIndex:ux_pending_confirmations_token"`
	TenantID          uuid.UUID                `gorm:"column:tenant_id;type:uuid;not null"`
	OrderID           uuid.UUID                `gorm:"column:order_id;type:uuid;not null;index;uniqueIndex:ux_pending_confirmations_open,priority:1,where:status = 'pending'"`
	Phone             string                   `gorm:"column:phone;not null"`
	Kind              enums.MessageType        `gorm:"column:kind;not null;uniqueIndex:ux_pending_confirmations_open,priority:2,where:status = 'pending'"`
	Content           string                   `gorm:"column:content;not null"`
	SendAfter         time.Time                `gorm:"column:send_after;not null;index"`
	ExpiresAt         time.Time                `gorm:"column:expires_at;not null"`
	Status            enums.ConfirmationStatus `gorm:"column:status;not null;default:'pending'"`
	ProviderMessageID *string                  `gorm:"column:provider_message_id"`
	ConfirmedAt       *time.Time               `gorm:"column:confirmed_at"`
	CreatedAt         time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *PendingConfirmation) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	if p.Token == uuid.Nil {
		p.Token = uuid.New()
	}
	return nil
}
