package confirmations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/wacart-backend/pkg/db"
	"github.com/angelmondragon/wacart-backend/pkg/db/models"
	"github.com/angelmondragon/wacart-backend/pkg/enums"
)

const openConfirmationIndex = "ux_pending_confirmations_open"

type Repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{db: conn}
}

// Refresh pushes the send window of the pending row for (order, kind)
// forward, creating the row when none is pending. It reports whether a row
// was created.
func (r *Repository) Refresh(ctx context.Context, pc *models.PendingConfirmation) (bool, error) {
	updated, err := r.refreshWindow(ctx, pc)
	if err != nil || updated {
		return false, err
	}

	err = r.db.WithContext(ctx).Create(pc).Error
	if err == nil {
		return true, nil
	}
	if !db.IsUniqueViolation(err, openConfirmationIndex) {
		return false, err
	}
	_, err = r.refreshWindow(ctx, pc)
	return false, err
}

func (r *Repository) refreshWindow(ctx context.Context, pc *models.PendingConfirmation) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PendingConfirmation{}).
		Where("order_id = ? AND kind = ? AND status = ?", pc.OrderID, pc.Kind, enums.ConfirmationStatusPending).
		UpdateColumns(map[string]any{
			"phone":      pc.Phone,
			"content":    pc.Content,
			"send_after": pc.SendAfter,
			"expires_at": pc.ExpiresAt,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FindPending returns nil when the order has no pending row of that kind.
func (r *Repository) FindPending(ctx context.Context, orderID uuid.UUID, kind enums.MessageType) (*models.PendingConfirmation, error) {
	var pc models.PendingConfirmation
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND kind = ? AND status = ?", orderID, kind, enums.ConfirmationStatusPending).
		Take(&pc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pc, nil
}

// DueForSend lists pending rows whose send window opened and that have not
// expired yet, oldest first.
func (r *Repository) DueForSend(ctx context.Context, now time.Time, limit int) ([]models.PendingConfirmation, error) {
	var rows []models.PendingConfirmation
	err := r.db.WithContext(ctx).
		Where("status = ? AND send_after <= ? AND expires_at > ?", enums.ConfirmationStatusPending, now, now).
		Order("send_after ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Confirm marks a pending row as sent. It reports false when the row already
// left pending.
func (r *Repository) Confirm(ctx context.Context, token uuid.UUID, content string, providerID *string, now time.Time) (bool, error) {
	return r.transition(ctx, "token = ?", token, map[string]any{
		"status":              enums.ConfirmationStatusConfirmed,
		"content":             content,
		"provider_message_id": providerID,
		"confirmed_at":        now,
		"updated_at":          now,
	})
}

// Expire moves one pending row to expired.
func (r *Repository) Expire(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	return r.transition(ctx, "id = ?", id, map[string]any{
		"status":     enums.ConfirmationStatusExpired,
		"updated_at": now,
	})
}

func (r *Repository) transition(ctx context.Context, cond string, arg any, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PendingConfirmation{}).
		Where(cond+" AND status = ?", arg, enums.ConfirmationStatusPending).
		UpdateColumns(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ExpireStale expires every pending row past its expiry.
func (r *Repository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PendingConfirmation{}).
		Where("status = ? AND expires_at <= ?", enums.ConfirmationStatusPending, now).
		UpdateColumns(map[string]any{
			"status":     enums.ConfirmationStatusExpired,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}
