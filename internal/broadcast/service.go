package broadcast

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/wacart-backend/pkg/db/models"
	"github.com/angelmondragon/wacart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wacart-backend/pkg/errors"
	"github.com/angelmondragon/wacart-backend/pkg/logger"
	"github.com/angelmondragon/wacart-backend/pkg/phone"
)

type jobStore interface {
	Create(ctx context.Context, job *models.BroadcastJob) error
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.BroadcastJob, error)
	Transition(ctx context.Context, id uuid.UUID, from []enums.BroadcastStatus, to enums.BroadcastStatus, now time.Time) (bool, error)
}

type phoneLister interface {
	ListPhones(ctx context.Context, tenantID uuid.UUID) ([]string, error)
}

// CreateParams describes a new mass-send. With no Phones every customer of
// the tenant receives it.
type CreateParams struct {
	TenantID uuid.UUID
	Message  string
	ImageURL string
	Phones   []string
}

type Service struct {
	repo      jobStore
	customers phoneLister
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(repo jobStore, customers phoneLister, logg *logger.Logger) (*Service, error) {
	if repo == nil || customers == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "broadcast service dependencies missing")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{repo: repo, customers: customers, logg: logg, now: time.Now}, nil
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*models.BroadcastJob, error) {
	message := strings.TrimSpace(params.Message)
	if params.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	if message == "" && strings.TrimSpace(params.ImageURL) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message or image is required")
	}

	raw := params.Phones
	if len(raw) == 0 {
		phones, err := s.customers.ListPhones(ctx, params.TenantID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list customer phones")
		}
		raw = phones
	}
	recipients, invalid := normalizeRecipients(raw)
	if len(invalid) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid recipient phones").
			WithDetails(map[string]any{"phones": invalid})
	}
	if len(recipients) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "broadcast has no recipients")
	}

	job := &models.BroadcastJob{
		TenantID:   params.TenantID,
		Message:    message,
		Recipients: recipients,
		Status:     enums.BroadcastStatusPending,
		LastIndex:  -1,
	}
	if img := strings.TrimSpace(params.ImageURL); img != "" {
		job.ImageURL = &img
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create broadcast job")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"job_id":     job.ID.String(),
		"recipients": len(recipients),
	}), "broadcast.created")
	return job, nil
}

// normalizeRecipients keeps the first occurrence of every national number.
func normalizeRecipients(raw []string) (recipients, invalid []string) {
	seen := make(map[string]struct{}, len(raw))
	for _, p := range raw {
		national, err := phone.Normalize(p)
		if err != nil {
			invalid = append(invalid, p)
			continue
		}
		if _, dup := seen[national]; dup {
			continue
		}
		seen[national] = struct{}{}
		recipients = append(recipients, national)
	}
	return recipients, invalid
}

func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.BroadcastJob, error) {
	job, err := s.repo.Get(ctx, tenantID, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "broadcast job not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "get broadcast job")
	}
	return job, nil
}

// Pause stops a pending or running job after its in-flight delay.
func (s *Service) Pause(ctx context.Context, tenantID, id uuid.UUID) (*models.BroadcastJob, error) {
	return s.transition(ctx, tenantID, id, enums.BroadcastStatusPaused,
		enums.BroadcastStatusPending, enums.BroadcastStatusRunning)
}

// Resume requeues a paused job; the runner continues after its checkpoint.
func (s *Service) Resume(ctx context.Context, tenantID, id uuid.UUID) (*models.BroadcastJob, error) {
	return s.transition(ctx, tenantID, id, enums.BroadcastStatusPending, enums.BroadcastStatusPaused)
}

func (s *Service) Cancel(ctx context.Context, tenantID, id uuid.UUID) (*models.BroadcastJob, error) {
	return s.transition(ctx, tenantID, id, enums.BroadcastStatusCancelled,
		enums.BroadcastStatusPending, enums.BroadcastStatusRunning, enums.BroadcastStatusPaused)
}

func (s *Service) transition(ctx context.Context, tenantID, id uuid.UUID, to enums.BroadcastStatus, from ...enums.BroadcastStatus) (*models.BroadcastJob, error) {
	job, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if job.Status == to {
		return job, nil
	}

	ok, err := s.repo.Transition(ctx, id, from, to, s.now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update broadcast status")
	}
	if !ok {
		current, getErr := s.Get(ctx, tenantID, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "broadcast job cannot move to "+to.String()).
			WithDetails(map[string]any{"status": current.Status.String()})
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"job_id": id.String(), "status": to.String()}), "broadcast.status_changed")
	return s.Get(ctx, tenantID, id)
}
