package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/wacart-backend/pkg/enums"
)

// Order is the billable view of a cart. TotalAmount is always recomputed from
// the cart's items.
type Order struct {
	ID                           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	TenantID                     uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null;index:ix_orders_bucket,priority:1"`
	CustomerID                   uuid.UUID       `gorm:"column:customer_id;type:uuid;not null"`
	CustomerPhone                string          `gorm:"column:customer_phone;not null;index:ix_orders_bucket,priority:2"`
	CartID                       *uuid.UUID      `gorm:"column:cart_id;type:uuid;uniqueIndex:ux_orders_cart_id"`
	EventType                    enums.EventType `gorm:"column:event_type;not null;index:ix_orders_bucket,priority:3"`
	EventDate                    time.Time       `gorm:"column:event_date;type:date;not null;index:ix_orders_bucket,priority:4"`
	TotalAmount                  decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2);not null;default:0"`
	IsPaid                       bool            `gorm:"column:is_paid;not null;default:false"`
	IsCancelled                  bool            `gorm:"column:is_cancelled;not null;default:false"`
	ItemAddedDelivered           bool            `gorm:"column:item_added_delivered;not null;default:false"`
	PaymentConfirmationDelivered bool            `gorm:"column:payment_confirmation_delivered;not null;default:false"`
	PaidAt                       *time.Time      `gorm:"column:paid_at"`
	CancelledAt                  *time.Time      `gorm:"column:cancelled_at"`
	CreatedAt                    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string {
	return "orders"
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// Finalized orders never accept new items.
func (o Order) Finalized() bool {
	return o.IsPaid || o.IsCancelled
}
