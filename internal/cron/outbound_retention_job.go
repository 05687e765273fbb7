package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/wacart-backend/pkg/logger"
)

const defaultOutboundRetention = 30 * 24 * time.Hour

type outboundPruner interface {
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type OutboundRetentionJobParams struct {
	Logger     *logger.Logger
	Repository outboundPruner
	Retention  time.Duration
}

// NewOutboundRetentionJob prunes FAILED and READ outbound messages older
// than the retention period.
func NewOutboundRetentionJob(params OutboundRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbound repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultOutboundRetention
	}
	return &outboundRetentionJob{
		logg:      params.Logger,
		repo:      params.Repository,
		retention: retention,
		now:       time.Now,
	}, nil
}

type outboundRetentionJob struct {
	logg      *logger.Logger
	repo      outboundPruner
	retention time.Duration
	now       func() time.Time
}

func (j *outboundRetentionJob) Name() string { return "outbound-retention" }

func (j *outboundRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.repo.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("outbound retention: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "cron.outbound_retention_done")
	return nil
}
