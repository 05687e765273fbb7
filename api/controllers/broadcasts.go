package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/wacart-backend/api/middleware"
	"github.com/angelmondragon/wacart-backend/api/responses"
	"github.com/angelmondragon/wacart-backend/api/validators"
	"github.com/angelmondragon/wacart-backend/internal/broadcast"
	"github.com/angelmondragon/wacart-backend/pkg/db/models"
	"github.com/angelmondragon/wacart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wacart-backend/pkg/errors"
	"github.com/angelmondragon/wacart-backend/pkg/logger"
)

type broadcastService interface {
	Create(ctx context.Context, params broadcast.CreateParams) (*models.BroadcastJob, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.BroadcastJob, error)
	Pause(ctx context.Context, tenantID, id uuid.UUID) (*models.BroadcastJob, error)
	Resume(ctx context.Context, tenantID, id uuid.UUID) (*models.BroadcastJob, error)
	Cancel(ctx context.Context, tenantID, id uuid.UUID) (*models.BroadcastJob, error)
}

type createBroadcastRequest struct {
	Message  string   `json:"message" validate:"required_without=ImageURL,max=4096"`
	ImageURL string   `json:"image_url" validate:"omitempty,http_url"`
	Phones   []string `json:"phones" validate:"omitempty,max=10000,dive,required"`
}

type broadcastView struct {
	ID             uuid.UUID             `json:"id"`
	Status         enums.BroadcastStatus `json:"status"`
	Message        string                `json:"message"`
	ImageURL       *string               `json:"image_url,omitempty"`
	Recipients     int                   `json:"recipients"`
	ProcessedCount int                   `json:"processed_count"`
	SentCount      int                   `json:"sent_count"`
	FailedCount    int                   `json:"failed_count"`
	LastError      *string               `json:"last_error,omitempty"`
	StartedAt      *time.Time            `json:"started_at,omitempty"`
	CompletedAt    *time.Time            `json:"completed_at,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
}

func newBroadcastView(job *models.BroadcastJob) broadcastView {
	return broadcastView{
		ID:             job.ID,
		Status:         job.Status,
		Message:        job.Message,
		ImageURL:       job.ImageURL,
		Recipients:     len(job.Recipients),
		ProcessedCount: job.ProcessedCount,
		SentCount:      job.SentCount,
		FailedCount:    job.FailedCount,
		LastError:      job.LastError,
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
		CreatedAt:      job.CreatedAt,
	}
}

func CreateBroadcast(svc broadcastService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFromRequest(w, r, logg)
		if !ok {
			return
		}
		var req createBroadcastRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		job, err := svc.Create(r.Context(), broadcast.CreateParams{
			TenantID: tenantID,
			Message:  req.Message,
			ImageURL: req.ImageURL,
			Phones:   req.Phones,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newBroadcastView(job))
	}
}

func GetBroadcast(svc broadcastService, logg *logger.Logger) http.HandlerFunc {
	return broadcastAction(svc.Get, logg)
}

func PauseBroadcast(svc broadcastService, logg *logger.Logger) http.HandlerFunc {
	return broadcastAction(svc.Pause, logg)
}

func ResumeBroadcast(svc broadcastService, logg *logger.Logger) http.HandlerFunc {
	return broadcastAction(svc.Resume, logg)
}

func CancelBroadcast(svc broadcastService, logg *logger.Logger) http.HandlerFunc {
	return broadcastAction(svc.Cancel, logg)
}

type broadcastFunc func(ctx context.Context, tenantID, id uuid.UUID) (*models.BroadcastJob, error)

func broadcastAction(fn broadcastFunc, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFromRequest(w, r, logg)
		if !ok {
			return
		}
		jobID, err := validators.PathUUID(r, "jobId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		job, err := fn(r.Context(), tenantID, jobID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBroadcastView(job))
	}
}

func tenantFromRequest(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (uuid.UUID, bool) {
	tenantID, ok := middleware.TenantIDFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "tenant context missing"))
		return uuid.Nil, false
	}
	return tenantID, true
}
