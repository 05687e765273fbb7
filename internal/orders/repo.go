package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/wacart-backend/internal/cart"
	"github.com/angelmondragon/wacart-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository returns an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByTenant(ctx context.Context, tenantID, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByCart returns the order linked to cartID in any state, or nil.
func (r *repository) FindByCart(ctx context.Context, cartID uuid.UUID) (*models.Order, error) {
	return r.first(r.db.WithContext(ctx).Where("cart_id = ?", cartID))
}

// FindOpenByCart returns the unpaid, non-cancelled order of cartID, or nil.
func (r *repository) FindOpenByCart(ctx context.Context, cartID uuid.UUID) (*models.Order, error) {
	return r.first(r.db.WithContext(ctx).
		Where("cart_id = ? AND is_paid = ? AND is_cancelled = ?", cartID, false, false))
}

// FindUnlinkedOpen returns the oldest unpaid order of the bucket that no cart
// claims yet, or nil.
func (r *repository) FindUnlinkedOpen(ctx context.Context, bucket cart.Bucket) (*models.Order, error) {
	return r.first(r.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_phone = ? AND event_type = ? AND event_date = ?",
			bucket.TenantID, bucket.Phone, bucket.EventType, bucket.EventDate).
		Where("cart_id IS NULL AND is_paid = ? AND is_cancelled = ?", false, false).
		Order("created_at ASC"))
}

func (r *repository) first(query *gorm.DB) (*models.Order, error) {
	var order models.Order
	err := query.First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Create inserts an order. A second order for the same cart surfaces as a
// uniqueness violation.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// LinkCart attaches cartID to an order that has no cart yet.
func (r *repository) LinkCart(ctx context.Context, orderID, cartID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND cart_id IS NULL", orderID).
		UpdateColumns(map[string]any{"cart_id": cartID, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) UpdateTotal(ctx context.Context, orderID uuid.UUID, total decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		UpdateColumns(map[string]any{"total_amount": total, "updated_at": time.Now().UTC()}).Error
}

var deliveredFlagColumns = map[string]struct{}{
	"item_added_delivered":           {},
	"payment_confirmation_delivered": {},
}

// SetDeliveredFlag raises one of the per-class delivery flags. Flags only
// ever go from false to true.
func (r *repository) SetDeliveredFlag(ctx context.Context, orderID uuid.UUID, column string) error {
	if _, ok := deliveredFlagColumns[column]; !ok {
		return fmt.Errorf("unknown delivered flag %q", column)
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND "+column+" = ?", orderID, false).
		UpdateColumn(column, true).Error
}

func (r *repository) MarkPaid(ctx context.Context, orderID uuid.UUID, now time.Time) (bool, error) {
	return r.finalize(ctx, orderID, map[string]any{"is_paid": true, "paid_at": now, "updated_at": now})
}

func (r *repository) MarkCancelled(ctx context.Context, orderID uuid.UUID, now time.Time) (bool, error) {
	return r.finalize(ctx, orderID, map[string]any{"is_cancelled": true, "cancelled_at": now, "updated_at": now})
}

func (r *repository) finalize(ctx context.Context, orderID uuid.UUID, updates map[string]any) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND is_paid = ? AND is_cancelled = ?", orderID, false, false).
		UpdateColumns(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
