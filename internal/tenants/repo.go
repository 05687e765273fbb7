package tenants

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/wacart-backend/pkg/db/models"
)

// Repository looks tenants up by the identities a webhook can carry.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Get returns gorm.ErrRecordNotFound when the tenant does not exist.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&tenant).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

// IDsByChannel returns active tenants bound to the provider instance or the
// connected phone. Either value may be empty.
func (r *Repository) IDsByChannel(ctx context.Context, instanceID, phone string) ([]uuid.UUID, error) {
	instanceID = strings.TrimSpace(instanceID)
	phone = strings.TrimSpace(phone)
	if instanceID == "" && phone == "" {
		return nil, nil
	}

	query := r.activeTenantIDs(ctx, "tenant_channels")
	switch {
	case instanceID != "" && phone != "":
		query = query.Where("tenant_channels.instance_id = ? OR tenant_channels.phone = ?", instanceID, phone)
	case instanceID != "":
		query = query.Where("tenant_channels.instance_id = ?", instanceID)
	default:
		query = query.Where("tenant_channels.phone = ?", phone)
	}
	return r.pluck(query)
}

func (r *Repository) IDsByGroupID(ctx context.Context, groupID string) ([]uuid.UUID, error) {
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return nil, nil
	}
	return r.pluck(r.activeTenantIDs(ctx, "tenant_groups").Where("tenant_groups.group_id = ?", groupID))
}

// IDsByGroupName matches display names case-insensitively.
func (r *Repository) IDsByGroupName(ctx context.Context, name string) ([]uuid.UUID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	return r.pluck(r.activeTenantIDs(ctx, "tenant_groups").Where("LOWER(tenant_groups.name) = ?", strings.ToLower(name)))
}

func (r *Repository) IDsByCustomerPhone(ctx context.Context, phone string) ([]uuid.UUID, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, nil
	}
	return r.pluck(r.activeTenantIDs(ctx, "customers").Where("customers.phone = ?", phone))
}

func (r *Repository) activeTenantIDs(ctx context.Context, table string) *gorm.DB {
	return r.db.WithContext(ctx).
		Table(table).
		Distinct(table+".tenant_id").
		Joins("JOIN tenants ON tenants.id = "+table+".tenant_id").
		Where("tenants.is_active = ?", true)
}

func (r *Repository) pluck(query *gorm.DB) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := query.Pluck("tenant_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
