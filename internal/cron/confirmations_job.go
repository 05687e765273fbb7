package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/wacart-backend/internal/confirmations"
	"github.com/angelmondragon/wacart-backend/pkg/logger"
)

type confirmationsRunner interface {
	SendDue(ctx context.Context) (confirmations.SendReport, error)
	Expire(ctx context.Context) (int64, error)
}

// NewConfirmationsJob sends due checkout-link confirmations and expires the
// stale ones.
func NewConfirmationsJob(logg *logger.Logger, svc confirmationsRunner) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if svc == nil {
		return nil, fmt.Errorf("confirmations service required")
	}
	return &confirmationsJob{logg: logg, svc: svc}, nil
}

type confirmationsJob struct {
	logg *logger.Logger
	svc  confirmationsRunner
}

func (j *confirmationsJob) Name() string { return "confirmations" }

func (j *confirmationsJob) Run(ctx context.Context) error {
	expired, expireErr := j.svc.Expire(ctx)
	report, sendErr := j.svc.SendDue(ctx)

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"sent":    report.Sent,
		"failed":  report.Failed,
		"expired": expired + int64(report.Expired),
	}), "cron.confirmations_done")
	return multierr.Combine(expireErr, sendErr)
}
