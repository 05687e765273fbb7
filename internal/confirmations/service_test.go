package confirmations

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/wacart-backend/internal/orders"
	"github.com/angelmondragon/wacart-backend/internal/outbound"
	"github.com/angelmondragon/wacart-backend/pkg/db/dbtest"
	"github.com/angelmondragon/wacart-backend/pkg/db/models"
	"github.com/angelmondragon/wacart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wacart-backend/pkg/errors"
)

type fakeSender struct {
	reqs []outbound.Request
	err  error
}

func (s *fakeSender) Send(_ context.Context, req outbound.Request) (*outbound.Delivery, error) {
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return nil, s.err
	}
	id := "prov-" + uuid.NewString()
	return &outbound.Delivery{Message: &models.OutboundMessage{
		Content:           req.Text,
		ProviderMessageID: &id,
		DeliveryStatus:    enums.DeliveryStatusSent,
	}}, nil
}

type fixture struct {
	conn   *gorm.DB
	svc    *Service
	repo   *Repository
	orders orders.Repository
	sender *fakeSender
	clock  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	f := &fixture{
		conn:   conn,
		repo:   NewRepository(conn),
		orders: orders.NewRepository(conn),
		sender: &fakeSender{},
		clock:  time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC),
	}
	svc, err := NewService(ServiceParams{
		Repo:   f.repo,
		Orders: f.orders,
		Sender: f.sender,
		Config: Config{
			SendDelay:   2 * time.Minute,
			TTL:         30 * time.Minute,
			BatchSize:   10,
			CheckoutURL: "https://loja.test/checkout",
		},
	})
	require.NoError(t, err)
	svc.now = func() time.Time { return f.clock }
	f.svc = svc
	return f
}

func (f *fixture) seedOrder(t *testing.T) *models.Order {
	t.Helper()
	order := &models.Order{
		TenantID:      uuid.New(),
		CustomerID:    uuid.New(),
		CustomerPhone: "11987654321",
		EventType:     enums.EventTypeBazar,
		EventDate:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		TotalAmount:   decimal.RequireFromString("49.90"),
	}
	require.NoError(t, f.orders.Create(context.Background(), order))
	return order
}

func (f *fixture) pending(t *testing.T) []models.PendingConfirmation {
	t.Helper()
	var rows []models.PendingConfirmation
	require.NoError(t, f.conn.Order("created_at").Find(&rows).Error)
	return rows
}

func TestScheduleRefreshesSingleRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t)

	require.NoError(t, f.svc.Schedule(ctx, order, order.CustomerPhone))
	f.clock = f.clock.Add(time.Minute)
	require.NoError(t, f.svc.Schedule(ctx, order, order.CustomerPhone))

	rows := f.pending(t)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.ConfirmationStatusPending, rows[0].Status)
	assert.Equal(t, enums.MessageTypeCheckoutLink, rows[0].Kind)
	assert.True(t, rows[0].SendAfter.Equal(f.clock.Add(2*time.Minute)), "send window pushed back")
	assert.Contains(t, rows[0].Content, "R$ 49,90")
}

func TestSendDueHonoursWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t)
	require.NoError(t, f.svc.Schedule(ctx, order, order.CustomerPhone))

	report, err := f.svc.SendDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Sent)
	assert.Empty(t, f.sender.reqs)

	f.clock = f.clock.Add(3 * time.Minute)
	report, err = f.svc.SendDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
	require.Len(t, f.sender.reqs, 1)

	req := f.sender.reqs[0]
	assert.Equal(t, enums.ChannelBatch, req.Channel)
	assert.Equal(t, enums.MessageTypeCheckoutLink, req.Type)
	assert.True(t, strings.Contains(req.Text, "order="+order.ID.String()))

	rows := f.pending(t)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.ConfirmationStatusConfirmed, rows[0].Status)
	assert.NotNil(t, rows[0].ProviderMessageID)
	assert.Contains(t, req.Text, "token="+rows[0].Token.String())

	report, err = f.svc.SendDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Sent)
	assert.Len(t, f.sender.reqs, 1)
}

func TestSendDueExpiresFinalizedOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t)
	require.NoError(t, f.svc.Schedule(ctx, order, order.CustomerPhone))

	ok, err := f.orders.MarkPaid(ctx, order.ID, f.clock)
	require.NoError(t, err)
	require.True(t, ok)

	f.clock = f.clock.Add(3 * time.Minute)
	report, err := f.svc.SendDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Expired)
	assert.Empty(t, f.sender.reqs)
	assert.Equal(t, enums.ConfirmationStatusExpired, f.pending(t)[0].Status)
}

func TestSendDueKeepsFailedRowsPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t)
	require.NoError(t, f.svc.Schedule(ctx, order, order.CustomerPhone))
	f.sender.err = pkgerrors.New(pkgerrors.CodeDependency, "provider down")

	f.clock = f.clock.Add(3 * time.Minute)
	report, err := f.svc.SendDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, enums.ConfirmationStatusPending, f.pending(t)[0].Status)
}

func TestSendDueStopsOnCancellation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t)
	require.NoError(t, f.svc.Schedule(ctx, order, order.CustomerPhone))
	f.sender.err = context.Canceled

	f.clock = f.clock.Add(3 * time.Minute)
	_, err := f.svc.SendDue(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestExpireStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t)
	require.NoError(t, f.svc.Schedule(ctx, order, order.CustomerPhone))

	n, err := f.svc.Expire(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock = f.clock.Add(31 * time.Minute)
	n, err = f.svc.Expire(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	report, err := f.svc.SendDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Sent)

	require.NoError(t, f.svc.Schedule(ctx, order, order.CustomerPhone))
	assert.Len(t, f.pending(t), 2, "a fresh pending row after the old one expired")
}

func TestConfirmOnlyFromPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t)
	require.NoError(t, f.svc.Schedule(ctx, order, order.CustomerPhone))
	pc, err := f.repo.FindPending(ctx, order.ID, enums.MessageTypeCheckoutLink)
	require.NoError(t, err)
	require.NotNil(t, pc)

	ok, err := f.repo.Confirm(ctx, pc.Token, "x", nil, f.clock)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.repo.Confirm(ctx, pc.Token, "x", nil, f.clock)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.repo.Expire(ctx, pc.ID, f.clock)
	require.NoError(t, err)
	assert.False(t, ok)
}
