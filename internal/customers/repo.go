package customers

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/wacart-backend/pkg/db"
	"github.com/angelmondragon/wacart-backend/pkg/db/models"
)

// Repository persists tenant customers keyed by national phone.
type Repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{db: conn}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByPhone returns nil when the customer is unknown.
func (r *Repository) FindByPhone(ctx context.Context, tenantID uuid.UUID, phone string) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND phone = ?", tenantID, phone).
		First(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// FindOrCreate returns the customer for (tenant, phone), inserting it when
// absent. A concurrent insert of the same key resolves to the winning row.
// A blank stored name is filled from name.
func (r *Repository) FindOrCreate(ctx context.Context, tenantID uuid.UUID, phone, name string) (*models.Customer, error) {
	name = strings.TrimSpace(name)
	existing, err := r.FindByPhone(ctx, tenantID, phone)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		existing, _, err = db.InsertOrFetch(
			func() (*models.Customer, error) {
				customer := &models.Customer{TenantID: tenantID, Phone: phone, Name: name}
				if err := r.db.WithContext(ctx).Create(customer).Error; err != nil {
					return nil, err
				}
				return customer, nil
			},
			func() (*models.Customer, error) { return r.FindByPhone(ctx, tenantID, phone) },
		)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, gorm.ErrRecordNotFound
		}
	}

	if existing.Name == "" && name != "" {
		if err := r.db.WithContext(ctx).Model(&models.Customer{}).
			Where("id = ? AND name = ?", existing.ID, "").
			Update("name", name).Error; err != nil {
			return nil, err
		}
		existing.Name = name
	}
	return existing, nil
}

// ListPhones returns every customer phone of a tenant, oldest first.
func (r *Repository) ListPhones(ctx context.Context, tenantID uuid.UUID) ([]string, error) {
	var phones []string
	err := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Pluck("phone", &phones).Error
	return phones, err
}
