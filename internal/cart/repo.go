package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/wacart-backend/pkg/db/models"
	"github.com/angelmondragon/wacart-backend/pkg/enums"
)

// Repository exposes persistence operations for carts.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var record models.Cart
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// FindOpen returns the OPEN cart of the bucket, or nil.
func (r *Repository) FindOpen(ctx context.Context, bucket Bucket) (*models.Cart, error) {
	var record models.Cart
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_phone = ? AND event_type = ? AND event_date = ? AND status = ?",
			bucket.TenantID, bucket.Phone, bucket.EventType, bucket.EventDate, enums.CartStatusOpen).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Create inserts an OPEN cart. A concurrent OPEN cart for the same bucket
// surfaces as a uniqueness violation.
func (r *Repository) Create(ctx context.Context, record *models.Cart) error {
	if record.Status == "" {
		record.Status = enums.CartStatusOpen
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// Close moves an OPEN cart to CLOSED and reports whether this call did it.
func (r *Repository) Close(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND status = ?", id, enums.CartStatusOpen).
		UpdateColumns(map[string]any{
			"status":     enums.CartStatusClosed,
			"closed_at":  now,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
