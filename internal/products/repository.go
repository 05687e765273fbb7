package products

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/wacart-backend/pkg/db/models"
)

// Repository wires together product lookup and stock persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads the product.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindActiveByCodes returns active tenant products whose trimmed, upper-cased
// code is one of codes. codes must already be upper-cased.
func (r *Repository) FindActiveByCodes(ctx context.Context, tenantID uuid.UUID, codes []string) ([]models.Product, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Where("UPPER(TRIM(code)) IN ?", codes).
		Order("created_at ASC").
		Find(&products).Error
	return products, err
}

// DecrementStock subtracts qty, clamping at zero, and returns the stock left.
func (r *Repository) DecrementStock(ctx context.Context, productID uuid.UUID, qty int, now time.Time) (int, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumns(map[string]any{
			"stock":      gorm.Expr("CASE WHEN stock >= ? THEN stock - ? ELSE 0 END", qty, qty),
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}

	var current models.Product
	if err := r.db.WithContext(ctx).
		Select("stock").
		Where("id = ?", productID).
		Take(&current).Error; err != nil {
		return 0, err
	}
	return current.Stock, nil
}
