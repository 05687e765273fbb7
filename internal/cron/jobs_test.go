package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/wacart-backend/internal/confirmations"
	"github.com/angelmondragon/wacart-backend/pkg/logger"
)

type fakeCutoffRepo struct {
	lastCutoff time.Time
	deleted    int64
	err        error
	called     int
}

func (f *fakeCutoffRepo) DeleteTerminalBefore(_ context.Context, cutoff time.Time) (int64, error) {
	return f.record(cutoff)
}

func (f *fakeCutoffRepo) DeleteReadBefore(_ context.Context, cutoff time.Time) (int64, error) {
	return f.record(cutoff)
}

func (f *fakeCutoffRepo) record(cutoff time.Time) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return f.deleted, nil
}

func TestOutboundRetentionJobCutoff(t *testing.T) {
	now := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	repo := &fakeCutoffRepo{deleted: 7}
	jobIface, err := NewOutboundRetentionJob(OutboundRetentionJobParams{
		Logger:     logger.Nop(),
		Repository: repo,
		Retention:  48 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewOutboundRetentionJob: %v", err)
	}
	job := jobIface.(*outboundRetentionJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-48 * time.Hour); !repo.lastCutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, repo.lastCutoff)
	}

	repo.err = errors.New("boom")
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNotificationCleanupJobDefaultsRetention(t *testing.T) {
	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	repo := &fakeCutoffRepo{deleted: 42}
	jobIface, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     logger.Nop(),
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("NewNotificationCleanupJob: %v", err)
	}
	job := jobIface.(*notificationCleanupJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-notificationRetention); !repo.lastCutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, repo.lastCutoff)
	}
	if repo.called != 1 {
		t.Fatalf("expected repo called once, got %d", repo.called)
	}
}

type fakeConfirmations struct {
	report    confirmations.SendReport
	sendErr   error
	expireErr error
	sends     int
}

func (f *fakeConfirmations) SendDue(context.Context) (confirmations.SendReport, error) {
	f.sends++
	return f.report, f.sendErr
}

func (f *fakeConfirmations) Expire(context.Context) (int64, error) {
	return 2, f.expireErr
}

func TestConfirmationsJobRunsBothSteps(t *testing.T) {
	svc := &fakeConfirmations{report: confirmations.SendReport{Sent: 3}}
	job, err := NewConfirmationsJob(logger.Nop(), svc)
	if err != nil {
		t.Fatalf("NewConfirmationsJob: %v", err)
	}
	if job.Name() != "confirmations" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	svc.expireErr = errors.New("expire failed")
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected expire error")
	}
	if svc.sends != 2 {
		t.Fatalf("expected send to run even when expiry fails, got %d", svc.sends)
	}
}
