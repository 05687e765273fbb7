package outbound

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/wacart-backend/pkg/db/models"
	"github.com/angelmondragon/wacart-backend/pkg/enums"
)

// Repository persists the outbound message log.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, msg *models.OutboundMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// FindByProviderID returns nil when the provider id was never logged.
func (r *Repository) FindByProviderID(ctx context.Context, providerID string) (*models.OutboundMessage, error) {
	var msg models.OutboundMessage
	err := r.db.WithContext(ctx).
		Where("provider_message_id = ?", providerID).
		Order("created_at DESC").
		Take(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// UpdateStatus moves a message from one delivery status to another. It
// reports false when the row no longer holds from.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.DeliveryStatus, at time.Time) (bool, error) {
	updates := map[string]any{
		"delivery_status": to,
		"updated_at":      at,
	}
	if to.IsDelivered() {
		updates["delivered_at"] = gorm.Expr("COALESCE(delivered_at, ?)", at)
	}
	if to == enums.DeliveryStatusRead {
		updates["read_at"] = at
	}

	res := r.db.WithContext(ctx).
		Model(&models.OutboundMessage{}).
		Where("id = ? AND delivery_status = ?", id, from).
		UpdateColumns(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeleteTerminalBefore prunes FAILED and READ rows created before cutoff.
func (r *Repository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ? AND delivery_status IN ?", cutoff,
			[]enums.DeliveryStatus{enums.DeliveryStatusFailed, enums.DeliveryStatusRead}).
		Delete(&models.OutboundMessage{})
	return res.RowsAffected, res.Error
}

// ListByOrder returns an order's messages oldest first.
func (r *Repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OutboundMessage, error) {
	var msgs []models.OutboundMessage
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&msgs).Error
	return msgs, err
}
