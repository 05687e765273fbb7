package broadcast

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/wacart-backend/internal/outbound"
	"github.com/angelmondragon/wacart-backend/pkg/db/models"
	"github.com/angelmondragon/wacart-backend/pkg/enums"
	"github.com/angelmondragon/wacart-backend/pkg/logger"
)

type runStore interface {
	ClaimNext(ctx context.Context, now time.Time) (*models.BroadcastJob, error)
	RequeueRunning(ctx context.Context, now time.Time) (int64, error)
	Status(ctx context.Context, id uuid.UUID) (enums.BroadcastStatus, error)
	Checkpoint(ctx context.Context, id uuid.UUID, index int, sent bool, lastErr *string, now time.Time) (bool, error)
	Transition(ctx context.Context, id uuid.UUID, from []enums.BroadcastStatus, to enums.BroadcastStatus, now time.Time) (bool, error)
}

type sender interface {
	Send(ctx context.Context, req outbound.Request) (*outbound.Delivery, error)
}

type RunnerConfig struct {
	PollInterval        time.Duration
	StatusCheckInterval time.Duration
}

// Runner works through broadcast jobs one recipient at a time on the batch
// tier, checkpointing after every recipient.
type Runner struct {
	repo   runStore
	sender sender
	cfg    RunnerConfig
	logg   *logger.Logger
	now    func() time.Time
}

func NewRunner(repo runStore, s sender, cfg RunnerConfig, logg *logger.Logger) *Runner {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.StatusCheckInterval <= 0 {
		cfg.StatusCheckInterval = 3 * time.Second
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Runner{repo: repo, sender: s, cfg: cfg, logg: logg, now: time.Now}
}

// Run claims and executes jobs until ctx ends. Jobs a previous worker left
// running are requeued first.
func (r *Runner) Run(ctx context.Context) error {
	ctx = r.logg.WithJob(ctx, "broadcast-runner")
	if n, err := r.repo.RequeueRunning(ctx, r.now().UTC()); err != nil {
		return err
	} else if n > 0 {
		r.logg.Warn(r.logg.WithField(ctx, "count", n), "broadcast.requeued")
	}

	for {
		ran, err := r.RunOnce(ctx)
		if err != nil {
			r.logg.Error(ctx, "broadcast.run_failed", err)
		}
		if ctx.Err() != nil {
			return nil
		}
		if ran {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.cfg.PollInterval):
		}
	}
}

// RunOnce executes the oldest pending job, if any.
func (r *Runner) RunOnce(ctx context.Context) (bool, error) {
	job, err := r.repo.ClaimNext(ctx, r.now().UTC())
	if err != nil || job == nil {
		return false, err
	}
	return true, r.execute(ctx, job)
}

func (r *Runner) execute(ctx context.Context, job *models.BroadcastJob) error {
	ctx = r.logg.WithFields(ctx, map[string]any{
		"job_id":    job.ID.String(),
		"tenant_id": job.TenantID.String(),
	})
	r.logg.Info(r.logg.WithField(ctx, "next_index", job.NextIndex()), "broadcast.started")

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go r.watch(jobCtx, cancel, job.ID)

	imageURL := ""
	if job.ImageURL != nil {
		imageURL = *job.ImageURL
	}
	jobID := job.ID

	for i := job.NextIndex(); i < len(job.Recipients); i++ {
		if jobCtx.Err() != nil {
			break
		}
		_, err := r.sender.Send(jobCtx, outbound.Request{
			TenantID:       job.TenantID,
			BroadcastJobID: &jobID,
			Phone:          job.Recipients[i],
			Type:           enums.MessageTypeBroadcast,
			Channel:        enums.ChannelBatch,
			Text:           job.Message,
			ImageURL:       imageURL,
		})
		if outbound.IsCancelled(err) {
			break
		}

		var lastErr *string
		if err != nil {
			msg := err.Error()
			lastErr = &msg
		}
		ok, cpErr := r.repo.Checkpoint(context.WithoutCancel(ctx), job.ID, i, err == nil, lastErr, r.now().UTC())
		if cpErr != nil {
			return cpErr
		}
		if !ok {
			r.logg.Warn(r.logg.WithField(ctx, "index", i), "broadcast.checkpoint_skipped")
		}
	}

	now := r.now().UTC()
	switch {
	case ctx.Err() != nil:
		// worker shutdown: hand the job back so the next start resumes it
		_, err := r.repo.Transition(context.WithoutCancel(ctx), job.ID,
			[]enums.BroadcastStatus{enums.BroadcastStatusRunning}, enums.BroadcastStatusPending, now)
		return err
	case jobCtx.Err() != nil:
		r.logg.Info(ctx, "broadcast.halted")
		return nil
	}

	ok, err := r.repo.Transition(ctx, job.ID, []enums.BroadcastStatus{enums.BroadcastStatusRunning}, enums.BroadcastStatusCompleted, now)
	if err != nil {
		return err
	}
	if ok {
		r.logg.Info(ctx, "broadcast.completed")
	}
	return nil
}

// watch cancels the job context once the job is paused or cancelled.
func (r *Runner) watch(ctx context.Context, cancel context.CancelFunc, id uuid.UUID) {
	ticker := time.NewTicker(r.cfg.StatusCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, err := r.repo.Status(ctx, id)
			if err != nil {
				if ctx.Err() == nil {
					r.logg.Error(ctx, "broadcast.status_check_failed", err)
				}
				continue
			}
			if status.Halted() {
				cancel()
				return
			}
		}
	}
}
