package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/wacart-backend/internal/customers"
	"github.com/angelmondragon/wacart-backend/internal/outbound"
	"github.com/angelmondragon/wacart-backend/pkg/db/dbtest"
	"github.com/angelmondragon/wacart-backend/pkg/db/models"
	"github.com/angelmondragon/wacart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wacart-backend/pkg/errors"
)

type scriptedSender struct {
	mu     sync.Mutex
	phones []string
	onSend func(ctx context.Context, call int, req outbound.Request) error
}

func (s *scriptedSender) Send(ctx context.Context, req outbound.Request) (*outbound.Delivery, error) {
	s.mu.Lock()
	s.phones = append(s.phones, req.Phone)
	call := len(s.phones)
	s.mu.Unlock()
	if s.onSend != nil {
		if err := s.onSend(ctx, call, req); err != nil {
			return nil, err
		}
	}
	return &outbound.Delivery{Message: &models.OutboundMessage{DeliveryStatus: enums.DeliveryStatusSent}}, nil
}

func (s *scriptedSender) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.phones...)
}

type fixture struct {
	conn   *gorm.DB
	repo   *Repository
	svc    *Service
	runner *Runner
	sender *scriptedSender
	tenant uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc, err := NewService(repo, customers.NewRepository(conn), nil)
	require.NoError(t, err)
	sender := &scriptedSender{}
	runner := NewRunner(repo, sender, RunnerConfig{PollInterval: 10 * time.Millisecond, StatusCheckInterval: 5 * time.Millisecond}, nil)
	return &fixture{conn: conn, repo: repo, svc: svc, runner: runner, sender: sender, tenant: uuid.New()}
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *models.BroadcastJob {
	t.Helper()
	job, err := f.svc.Get(context.Background(), f.tenant, id)
	require.NoError(t, err)
	return job
}

var threePhones = []string{"11987654321", "11988887777", "11977776666"}

func TestCreateNormalizesAndDeduplicates(t *testing.T) {
	f := newFixture(t)
	job, err := f.svc.Create(context.Background(), CreateParams{
		TenantID: f.tenant,
		Message:  " Novidades no bazar! ",
		Phones:   []string{"5511987654321", "11987654321", "(11) 98888-7777"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"11987654321", "11988887777"}, job.Recipients)
	assert.Equal(t, "Novidades no bazar!", job.Message)
	assert.Equal(t, enums.BroadcastStatusPending, job.Status)
	assert.Equal(t, -1, f.reload(t, job.ID).LastIndex)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateParams{TenantID: f.tenant, Message: "oi", Phones: []string{"123"}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Create(ctx, CreateParams{TenantID: f.tenant, Message: "  "})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Create(ctx, CreateParams{TenantID: f.tenant, Message: "oi"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "tenant without customers has no recipients")
}

func TestCreateDefaultsToAllCustomers(t *testing.T) {
	f := newFixture(t)
	for _, p := range threePhones {
		require.NoError(t, f.conn.Create(&models.Customer{TenantID: f.tenant, Phone: p}).Error)
	}
	require.NoError(t, f.conn.Create(&models.Customer{TenantID: uuid.New(), Phone: "11911112222"}).Error)

	job, err := f.svc.Create(context.Background(), CreateParams{TenantID: f.tenant, Message: "oi"})
	require.NoError(t, err)
	assert.ElementsMatch(t, threePhones, job.Recipients)
}

func TestStatusTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job, err := f.svc.Create(ctx, CreateParams{TenantID: f.tenant, Message: "oi", Phones: threePhones})
	require.NoError(t, err)

	_, err = f.svc.Resume(ctx, f.tenant, job.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	paused, err := f.svc.Pause(ctx, f.tenant, job.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.BroadcastStatusPaused, paused.Status)

	again, err := f.svc.Pause(ctx, f.tenant, job.ID)
	require.NoError(t, err, "pausing twice is a no-op")
	assert.Equal(t, enums.BroadcastStatusPaused, again.Status)

	resumed, err := f.svc.Resume(ctx, f.tenant, job.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.BroadcastStatusPending, resumed.Status)

	cancelled, err := f.svc.Cancel(ctx, f.tenant, job.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.BroadcastStatusCancelled, cancelled.Status)

	_, err = f.svc.Resume(ctx, f.tenant, job.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = f.svc.Get(ctx, uuid.New(), job.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRunnerCompletesJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sender.onSend = func(_ context.Context, call int, _ outbound.Request) error {
		if call == 2 {
			return pkgerrors.New(pkgerrors.CodeDependency, "provider down")
		}
		return nil
	}
	job, err := f.svc.Create(ctx, CreateParams{TenantID: f.tenant, Message: "oi", Phones: threePhones})
	require.NoError(t, err)

	ran, err := f.runner.RunOnce(ctx)
	require.NoError(t, err)
	require.True(t, ran)

	got := f.reload(t, job.ID)
	assert.Equal(t, enums.BroadcastStatusCompleted, got.Status)
	assert.Equal(t, 2, got.LastIndex)
	assert.Equal(t, 3, got.ProcessedCount)
	assert.Equal(t, 2, got.SentCount)
	assert.Equal(t, 1, got.FailedCount)
	require.NotNil(t, got.LastError)
	assert.Contains(t, *got.LastError, "provider down")
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, threePhones, f.sender.sent())

	ran, err = f.runner.RunOnce(ctx)
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestRunnerPauseCheckpointsAndResumes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job, err := f.svc.Create(ctx, CreateParams{TenantID: f.tenant, Message: "oi", Phones: threePhones})
	require.NoError(t, err)

	f.sender.onSend = func(sendCtx context.Context, call int, _ outbound.Request) error {
		if call != 2 {
			return nil
		}
		_, pauseErr := f.svc.Pause(context.Background(), f.tenant, job.ID)
		require.NoError(t, pauseErr)
		select {
		case <-sendCtx.Done():
			return sendCtx.Err()
		case <-time.After(5 * time.Second):
			return errors.New("delay was not interrupted")
		}
	}

	ran, err := f.runner.RunOnce(ctx)
	require.NoError(t, err)
	require.True(t, ran)

	paused := f.reload(t, job.ID)
	assert.Equal(t, enums.BroadcastStatusPaused, paused.Status)
	assert.Equal(t, 0, paused.LastIndex)
	assert.Equal(t, 1, paused.ProcessedCount)

	_, err = f.svc.Resume(ctx, f.tenant, job.ID)
	require.NoError(t, err)
	ran, err = f.runner.RunOnce(ctx)
	require.NoError(t, err)
	require.True(t, ran)

	done := f.reload(t, job.ID)
	assert.Equal(t, enums.BroadcastStatusCompleted, done.Status)
	assert.Equal(t, 3, done.ProcessedCount)
	assert.Equal(t, 3, done.SentCount)
	assert.Equal(t, []string{threePhones[0], threePhones[1], threePhones[1], threePhones[2]}, f.sender.sent())
}

func TestRunnerShutdownRequeuesJob(t *testing.T) {
	f := newFixture(t)
	job, err := f.svc.Create(context.Background(), CreateParams{TenantID: f.tenant, Message: "oi", Phones: threePhones})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	f.sender.onSend = func(sendCtx context.Context, call int, _ outbound.Request) error {
		if call == 1 {
			cancel()
			<-sendCtx.Done()
			return sendCtx.Err()
		}
		return nil
	}

	ran, err := f.runner.RunOnce(ctx)
	require.NoError(t, err)
	require.True(t, ran)

	got := f.reload(t, job.ID)
	assert.Equal(t, enums.BroadcastStatusPending, got.Status)
	assert.Equal(t, -1, got.LastIndex)
}

func TestCheckpointNeverDoubleCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job, err := f.svc.Create(ctx, CreateParams{TenantID: f.tenant, Message: "oi", Phones: threePhones})
	require.NoError(t, err)

	now := time.Now().UTC()
	ok, err := f.repo.Checkpoint(ctx, job.ID, 0, true, nil, now)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.repo.Checkpoint(ctx, job.ID, 0, true, nil, now)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, f.reload(t, job.ID).ProcessedCount)
}

func TestRequeueRunning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job, err := f.svc.Create(ctx, CreateParams{TenantID: f.tenant, Message: "oi", Phones: threePhones})
	require.NoError(t, err)

	claimed, err := f.repo.ClaimNext(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, job.ID, claimed.ID)

	n, err := f.repo.RequeueRunning(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, enums.BroadcastStatusPending, f.reload(t, job.ID).Status)
}
