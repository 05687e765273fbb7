package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/wacart-backend/pkg/enums"
)

// Cart accumulates items for one customer and event bucket. At most one OPEN
// cart exists per (tenant, phone, event type, event date).
type Cart struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	TenantID      uuid.UUID        `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:ux_carts_open,priority:1,where:status = 'OPEN'"`
	CustomerID    uuid.UUID        `gorm:"column:customer_id;type:uuid;not null"`
	CustomerPhone string           `gorm:"column:customer_phone;not null;uniqueIndex:ux_carts_open,priority:2,where:status = 'OPEN'"`
	EventType     enums.EventType  `gorm:"column:event_type;not null;uniqueIndex:ux_carts_open,priority:3,where:status = 'OPEN'"`
	EventDate     time.Time        `gorm:"column:event_date;type:date;not null;uniqueIndex:ux_carts_open,priority:4,where:status = 'OPEN'"`
	Status        enums.CartStatus `gorm:"column:status;not null;default:'OPEN'"`
	ClosedAt      *time.Time       `gorm:"column:closed_at"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Cart) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// CartItem snapshots the product at insertion time. (cart, product) is
// unique; repeated adds raise Quantity.
type CartItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CartID      uuid.UUID       `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:ux_cart_items_cart_product,priority:1"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_cart_items_cart_product,priority:2"`
	ProductCode string          `gorm:"column:product_code;not null"`
	ProductName string          `gorm:"column:product_name;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	ImageURL    *string         `gorm:"column:image_url"`
	Quantity    int             `gorm:"column:quantity;not null;default:1"`
	LastAddedAt time.Time       `gorm:"column:last_added_at;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *CartItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// LineTotal is Quantity * UnitPrice.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
