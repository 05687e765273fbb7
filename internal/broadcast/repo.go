package broadcast

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/wacart-backend/pkg/db/models"
	"github.com/angelmondragon/wacart-backend/pkg/enums"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{db: conn}
}

func (r *Repository) Create(ctx context.Context, job *models.BroadcastJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// Get returns gorm.ErrRecordNotFound when the job does not belong to tenantID.
func (r *Repository) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.BroadcastJob, error) {
	var job models.BroadcastJob
	if err := r.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).Take(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *Repository) Status(ctx context.Context, id uuid.UUID) (enums.BroadcastStatus, error) {
	var job models.BroadcastJob
	err := r.db.WithContext(ctx).Select("status").Where("id = ?", id).Take(&job).Error
	return job.Status, err
}

// Transition moves a job to `to` when it currently holds one of `from`.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, from []enums.BroadcastStatus, to enums.BroadcastStatus, now time.Time) (bool, error) {
	updates := map[string]any{"status": to, "updated_at": now}
	if to == enums.BroadcastStatusCompleted {
		updates["completed_at"] = now
	}
	res := r.db.WithContext(ctx).
		Model(&models.BroadcastJob{}).
		Where("id = ? AND status IN ?", id, from).
		UpdateColumns(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Checkpoint records recipient index as handled. It only advances from the
// previous index, so a recipient is never counted twice.
func (r *Repository) Checkpoint(ctx context.Context, id uuid.UUID, index int, sent bool, lastErr *string, now time.Time) (bool, error) {
	updates := map[string]any{
		"last_index":      index,
		"processed_count": gorm.Expr("processed_count + 1"),
		"updated_at":      now,
	}
	if sent {
		updates["sent_count"] = gorm.Expr("sent_count + 1")
	} else {
		updates["failed_count"] = gorm.Expr("failed_count + 1")
		updates["last_error"] = lastErr
	}
	res := r.db.WithContext(ctx).
		Model(&models.BroadcastJob{}).
		Where("id = ? AND last_index = ?", id, index-1).
		UpdateColumns(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ClaimNext moves the oldest pending job to running and returns it, or nil
// when nothing is pending.
func (r *Repository) ClaimNext(ctx context.Context, now time.Time) (*models.BroadcastJob, error) {
	for attempt := 0; attempt < 3; attempt++ {
		var job models.BroadcastJob
		err := r.db.WithContext(ctx).
			Where("status = ?", enums.BroadcastStatusPending).
			Order("created_at ASC").
			Take(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		res := r.db.WithContext(ctx).
			Model(&models.BroadcastJob{}).
			Where("id = ? AND status = ?", job.ID, enums.BroadcastStatusPending).
			UpdateColumns(map[string]any{
				"status":     enums.BroadcastStatusRunning,
				"started_at": gorm.Expr("COALESCE(started_at, ?)", now),
				"updated_at": now,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			job.Status = enums.BroadcastStatusRunning
			return &job, nil
		}
	}
	return nil, nil
}

// RequeueRunning returns jobs left running by a stopped worker to pending.
func (r *Repository) RequeueRunning(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.BroadcastJob{}).
		Where("status = ?", enums.BroadcastStatusRunning).
		UpdateColumns(map[string]any{"status": enums.BroadcastStatusPending, "updated_at": now})
	return res.RowsAffected, res.Error
}
