package outbound

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/wacart-backend/pkg/db/dbtest"
	"github.com/angelmondragon/wacart-backend/pkg/db/models"
	"github.com/angelmondragon/wacart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wacart-backend/pkg/errors"
)

type fakeClient struct {
	mu     sync.Mutex
	texts  []string
	images []string
	err    error
	next   int
}

func (c *fakeClient) SendText(_ context.Context, _ string, message string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	c.texts = append(c.texts, message)
	c.next++
	return "prov-" + string(rune('a'+c.next-1)), nil
}

func (c *fakeClient) SendImage(_ context.Context, _ string, imageURL, caption string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	c.images = append(c.images, imageURL)
	c.texts = append(c.texts, caption)
	return "prov-img", nil
}

type senderFixture struct {
	sender *Sender
	client *fakeClient
	repo   *Repository
}

func newSenderFixture(t *testing.T, limiter RateLimiter) *senderFixture {
	t.Helper()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	client := &fakeClient{}
	pacer := newTestPacer(t, limiter, &recordingSleeper{})
	sender, err := NewSender(SenderParams{
		Pacer:    pacer,
		Variator: NewVariator(VariationConfig{}, NewRandom(1)),
		Client:   client,
		Log:      repo,
	})
	require.NoError(t, err)
	return &senderFixture{sender: sender, client: client, repo: repo}
}

func liveRequest(orderID uuid.UUID) Request {
	return Request{
		TenantID: uuid.New(),
		OrderID:  &orderID,
		Phone:    "11987654321",
		Type:     enums.MessageTypeItemAdded,
		Channel:  enums.ChannelLive,
		Text:     "✅ C100 adicionado",
	}
}

func TestSenderLogsSentMessage(t *testing.T) {
	f := newSenderFixture(t, &scriptedLimiter{})
	orderID := uuid.New()

	sent, err := f.sender.Schedule(context.Background(), liveRequest(orderID))
	require.NoError(t, err)
	require.True(t, sent)

	msgs, err := f.repo.ListByOrder(context.Background(), orderID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, enums.DeliveryStatusSent, msgs[0].DeliveryStatus)
	require.NotNil(t, msgs[0].ProviderMessageID)
	assert.Equal(t, "prov-a", *msgs[0].ProviderMessageID)
	assert.Equal(t, "✅ C100 adicionado", msgs[0].Content)
	assert.NotNil(t, msgs[0].SentAt)

	found, err := f.repo.FindByProviderID(context.Background(), "prov-a")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, msgs[0].ID, found.ID)
}

func TestSenderLogsProviderFailure(t *testing.T) {
	f := newSenderFixture(t, &scriptedLimiter{})
	f.client.err = pkgerrors.New(pkgerrors.CodeDependency, "provider down")
	orderID := uuid.New()

	delivery, err := f.sender.Send(context.Background(), liveRequest(orderID))
	require.Error(t, err)
	require.NotNil(t, delivery)
	assert.Equal(t, enums.DeliveryStatusFailed, delivery.Message.DeliveryStatus)

	msgs, err := f.repo.ListByOrder(context.Background(), orderID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, enums.DeliveryStatusFailed, msgs[0].DeliveryStatus)
	require.NotNil(t, msgs[0].Error)
	assert.Contains(t, *msgs[0].Error, "provider down")
	assert.Nil(t, msgs[0].ProviderMessageID)
}

func TestSenderLiveRateLimitIsNotLogged(t *testing.T) {
	f := newSenderFixture(t, &scriptedLimiter{answers: []bool{false}, retry: time.Second})
	orderID := uuid.New()

	sent, err := f.sender.Schedule(context.Background(), liveRequest(orderID))
	require.Error(t, err)
	assert.False(t, sent)
	assert.True(t, IsRateLimited(err))
	assert.Empty(t, f.client.texts)

	msgs, err := f.repo.ListByOrder(context.Background(), orderID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSenderUsesImageEndpoint(t *testing.T) {
	f := newSenderFixture(t, &scriptedLimiter{})
	req := liveRequest(uuid.New())
	req.Type = enums.MessageTypeBroadcast
	req.Channel = enums.ChannelBatch
	req.ImageURL = "https://cdn.test/a.jpg"

	sent, err := f.sender.Schedule(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, []string{"https://cdn.test/a.jpg"}, f.client.images)
}

func TestSenderValidation(t *testing.T) {
	f := newSenderFixture(t, &scriptedLimiter{})
	_, err := f.sender.Send(context.Background(), Request{TenantID: uuid.New(), Phone: "1", Type: "nope", Channel: enums.ChannelLive, Text: "x"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.sender.Send(context.Background(), Request{TenantID: uuid.New(), Phone: "1", Type: enums.MessageTypeBroadcast, Channel: enums.ChannelLive})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRepositoryStatusAndRetention(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	now := time.Now().UTC()

	msg := &models.OutboundMessage{
		TenantID:       uuid.New(),
		Phone:          "11987654321",
		MessageType:    enums.MessageTypeBroadcast,
		Channel:        enums.ChannelBatch,
		Content:        "oi",
		DeliveryStatus: enums.DeliveryStatusSent,
	}
	require.NoError(t, repo.Create(ctx, msg))

	ok, err := repo.UpdateStatus(ctx, msg.ID, enums.DeliveryStatusSent, enums.DeliveryStatusRead, now)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.UpdateStatus(ctx, msg.ID, enums.DeliveryStatusSent, enums.DeliveryStatusReceived, now)
	require.NoError(t, err)
	assert.False(t, ok, "stale from-status matches nothing")

	var stored models.OutboundMessage
	require.NoError(t, conn.First(&stored, "id = ?", msg.ID).Error)
	assert.Equal(t, enums.DeliveryStatusRead, stored.DeliveryStatus)
	assert.NotNil(t, stored.DeliveredAt)
	assert.NotNil(t, stored.ReadAt)

	pending := &models.OutboundMessage{
		TenantID:       msg.TenantID,
		Phone:          "11987654321",
		MessageType:    enums.MessageTypeBroadcast,
		Channel:        enums.ChannelBatch,
		Content:        "oi",
		DeliveryStatus: enums.DeliveryStatusSent,
	}
	require.NoError(t, repo.Create(ctx, pending))

	old := now.Add(-48 * time.Hour)
	require.NoError(t, conn.Model(&models.OutboundMessage{}).Where("1 = 1").UpdateColumn("created_at", old).Error)

	deleted, err := repo.DeleteTerminalBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	missing, err := repo.FindByProviderID(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestIsCancelled(t *testing.T) {
	assert.True(t, IsCancelled(context.Canceled))
	assert.False(t, IsCancelled(errors.New("boom")))
}
