package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tenant is one seller operating WhatsApp groups through the platform.
type Tenant struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Slug      string    `gorm:"column:slug;not null;uniqueIndex:ux_tenants_slug"`
	Timezone  string    `gorm:"column:timezone"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (t *Tenant) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

// TenantChannel binds a sending identity (provider instance or connected
// phone) to a tenant. Duplicate bindings are allowed in storage and rejected
// at resolution time.
type TenantChannel struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TenantID   uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;index"`
	InstanceID string    `gorm:"column:instance_id;index"`
	Phone      string    `gorm:"column:phone;index"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (c *TenantChannel) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// TenantGroup binds a WhatsApp group to a tenant by id and display name.
type TenantGroup struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TenantID  uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;index"`
	GroupID   string    `gorm:"column:group_id;index"`
	Name      string    `gorm:"column:name;index"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (g *TenantGroup) BeforeCreate(*gorm.DB) error {
	ensureID(&g.ID)
	return nil
}
