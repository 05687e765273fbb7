package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/wacart-backend/api/middleware"
	"github.com/angelmondragon/wacart-backend/internal/broadcast"
	"github.com/angelmondragon/wacart-backend/internal/ingest"
	"github.com/angelmondragon/wacart-backend/internal/notifications"
	whatsappwebhook "github.com/angelmondragon/wacart-backend/internal/webhooks/whatsapp"
	"github.com/angelmondragon/wacart-backend/pkg/config"
	"github.com/angelmondragon/wacart-backend/pkg/db/models"
	"github.com/angelmondragon/wacart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wacart-backend/pkg/errors"
	"github.com/angelmondragon/wacart-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
	return env
}

// serve mounts h under a tenant-scoped chi route so URL params resolve.
func serve(t *testing.T, method, pattern, path string, tenantID uuid.UUID, body string, h http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Method(method, pattern, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if tenantID != uuid.Nil {
			req = req.WithContext(middleware.WithTenantID(req.Context(), tenantID))
		}
		h(w, req)
	}))
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, reader))
	return w
}

type stubBroadcasts struct {
	created broadcast.CreateParams
	job     *models.BroadcastJob
	err     error
	calls   []string
}

func (s *stubBroadcasts) Create(_ context.Context, params broadcast.CreateParams) (*models.BroadcastJob, error) {
	s.created = params
	s.calls = append(s.calls, "create")
	return s.job, s.err
}

func (s *stubBroadcasts) record(name string) (*models.BroadcastJob, error) {
	s.calls = append(s.calls, name)
	return s.job, s.err
}

func (s *stubBroadcasts) Get(context.Context, uuid.UUID, uuid.UUID) (*models.BroadcastJob, error) {
	return s.record("get")
}

func (s *stubBroadcasts) Pause(context.Context, uuid.UUID, uuid.UUID) (*models.BroadcastJob, error) {
	return s.record("pause")
}

func (s *stubBroadcasts) Resume(context.Context, uuid.UUID, uuid.UUID) (*models.BroadcastJob, error) {
	return s.record("resume")
}

func (s *stubBroadcasts) Cancel(context.Context, uuid.UUID, uuid.UUID) (*models.BroadcastJob, error) {
	return s.record("cancel")
}

func sampleJob(status enums.BroadcastStatus) *models.BroadcastJob {
	return &models.BroadcastJob{
		ID:             uuid.New(),
		Message:        "Novidades!",
		Recipients:     []string{"11987654321", "11912345678"},
		Status:         status,
		LastIndex:      0,
		ProcessedCount: 1,
		SentCount:      1,
	}
}

func TestCreateBroadcast(t *testing.T) {
	tenantID := uuid.New()
	svc := &stubBroadcasts{job: sampleJob(enums.BroadcastStatusPending)}

	w := serve(t, http.MethodPost, "/broadcasts", "/broadcasts", tenantID,
		`{"message":"Novidades!","phones":["11987654321","11912345678"]}`, CreateBroadcast(svc, testLogger()))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, tenantID, svc.created.TenantID)
	assert.Equal(t, []string{"11987654321", "11912345678"}, svc.created.Phones)

	var view broadcastView
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &view))
	assert.Equal(t, 2, view.Recipients)
	assert.Equal(t, enums.BroadcastStatusPending, view.Status)
}

func TestCreateBroadcastValidation(t *testing.T) {
	svc := &stubBroadcasts{}
	cases := map[string]string{
		"empty":         `{}`,
		"bad image":     `{"image_url":"not a url"}`,
		"unknown field": `{"message":"oi","foo":1}`,
		"blank phone":   `{"message":"oi","phones":[""]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := serve(t, http.MethodPost, "/broadcasts", "/broadcasts", uuid.New(), body, CreateBroadcast(svc, testLogger()))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.Empty(t, svc.calls)
}

func TestCreateBroadcastRequiresTenant(t *testing.T) {
	w := serve(t, http.MethodPost, "/broadcasts", "/broadcasts", uuid.Nil, `{"message":"oi"}`, CreateBroadcast(&stubBroadcasts{}, testLogger()))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestBroadcastActions(t *testing.T) {
	svc := &stubBroadcasts{job: sampleJob(enums.BroadcastStatusPaused)}
	jobID := uuid.New().String()
	logg := testLogger()

	for _, tc := range []struct {
		method, suffix string
		handler        http.HandlerFunc
		call           string
	}{
		{http.MethodGet, "", GetBroadcast(svc, logg), "get"},
		{http.MethodPost, "/pause", PauseBroadcast(svc, logg), "pause"},
		{http.MethodPost, "/resume", ResumeBroadcast(svc, logg), "resume"},
		{http.MethodPost, "/cancel", CancelBroadcast(svc, logg), "cancel"},
	} {
		w := serve(t, tc.method, "/broadcasts/{jobId}"+tc.suffix, "/broadcasts/"+jobID+tc.suffix, uuid.New(), "", tc.handler)
		require.Equal(t, http.StatusOK, w.Code, tc.call)
		assert.Equal(t, tc.call, svc.calls[len(svc.calls)-1])
	}

	w := serve(t, http.MethodGet, "/broadcasts/{jobId}", "/broadcasts/nope", uuid.New(), "", GetBroadcast(svc, logg))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBroadcastActionMapsServiceErrors(t *testing.T) {
	svc := &stubBroadcasts{err: pkgerrors.New(pkgerrors.CodeStateConflict, "broadcast job is completed")}
	w := serve(t, http.MethodPost, "/broadcasts/{jobId}/pause", "/broadcasts/"+uuid.NewString()+"/pause", uuid.New(), "", PauseBroadcast(svc, testLogger()))
	require.Equal(t, http.StatusConflict, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(pkgerrors.CodeStateConflict), env.Error.Code)
}

type stubOrders struct {
	order *models.Order
	err   error
	paid  int
}

func (s *stubOrders) MarkPaid(context.Context, uuid.UUID, uuid.UUID) (*models.Order, error) {
	s.paid++
	return s.order, s.err
}

func (s *stubOrders) Cancel(context.Context, uuid.UUID, uuid.UUID) (*models.Order, error) {
	return s.order, s.err
}

func TestMarkOrderPaid(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	order := &models.Order{
		ID:            uuid.New(),
		CustomerPhone: "11987654321",
		EventType:     enums.EventTypeLive,
		EventDate:     now,
		TotalAmount:   decimal.RequireFromString("59.90"),
		IsPaid:        true,
		PaidAt:        &now,
	}
	svc := &stubOrders{order: order}
	w := serve(t, http.MethodPost, "/orders/{orderId}/paid", "/orders/"+order.ID.String()+"/paid", uuid.New(), "", MarkOrderPaid(svc, testLogger()))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, svc.paid)

	var view map[string]any
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &view))
	assert.Equal(t, "2026-03-01", view["event_date"])
	assert.Equal(t, "59.9", view["total_amount"])
	assert.Equal(t, true, view["is_paid"])
}

func TestCancelOrderNotFound(t *testing.T) {
	svc := &stubOrders{err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}
	w := serve(t, http.MethodPost, "/orders/{orderId}/cancel", "/orders/"+uuid.NewString()+"/cancel", uuid.New(), "", CancelOrder(svc, testLogger()))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type stubWebhook struct {
	got whatsappwebhook.Payload
	err error
}

func (s *stubWebhook) Handle(_ context.Context, p whatsappwebhook.Payload) (*whatsappwebhook.Response, error) {
	s.got = p
	if s.err != nil {
		return nil, s.err
	}
	return &whatsappwebhook.Response{Kind: whatsappwebhook.KindMessage, Ingest: &ingest.Result{Status: ingest.StatusIgnored}}, nil
}

func TestWhatsAppWebhookAcceptsUnknownFields(t *testing.T) {
	svc := &stubWebhook{}
	body := `{"type":"ReceivedCallback","messageId":"m1","phone":"1203-group","isGroup":true,"text":{"message":"oi"},"photo":"x","broadcast":false}`
	w := serve(t, http.MethodPost, "/webhook", "/webhook", uuid.Nil, body, WhatsAppWebhook(svc, testLogger()))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "m1", svc.got.MessageID)
	assert.Contains(t, w.Body.String(), `"ignored"`)
}

func TestWhatsAppWebhookErrors(t *testing.T) {
	w := serve(t, http.MethodPost, "/webhook", "/webhook", uuid.Nil, `{not json`, WhatsAppWebhook(&stubWebhook{}, testLogger()))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	conflict := &stubWebhook{err: pkgerrors.New(pkgerrors.CodeConflict, "ambiguous tenant")}
	w = serve(t, http.MethodPost, "/webhook", "/webhook", uuid.Nil, `{"messageId":"m2"}`, WhatsAppWebhook(conflict, testLogger()))
	assert.Equal(t, http.StatusConflict, w.Code)

	internal := &stubWebhook{err: errors.New("db down")}
	w = serve(t, http.MethodPost, "/webhook", "/webhook", uuid.Nil, `{"messageId":"m3"}`, WhatsAppWebhook(internal, testLogger()))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestHealth(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}

	w := serve(t, http.MethodGet, "/live", "/live", uuid.Nil, "", HealthLive(cfg))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dev", w.Header().Get(envHeader))

	w = serve(t, http.MethodGet, "/ready", "/ready", uuid.Nil, "", HealthReady(cfg, testLogger(), stubPinger{}, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"disabled"`)

	w = serve(t, http.MethodGet, "/ready", "/ready", uuid.Nil, "", HealthReady(cfg, testLogger(), stubPinger{err: errors.New("down")}, nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type stubNotifications struct {
	params notifications.ListParams
	read   uuid.UUID
}

func (s *stubNotifications) StockDepleted(context.Context, *models.Product) error { return nil }

func (s *stubNotifications) List(_ context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	s.params = params
	return &notifications.ListResult{Items: []models.Notification{{ID: uuid.New(), Title: "Produto esgotado"}}}, nil
}

func (s *stubNotifications) MarkRead(_ context.Context, _ uuid.UUID, id uuid.UUID) error {
	s.read = id
	return nil
}

func (s *stubNotifications) MarkAllRead(context.Context, uuid.UUID) (int64, error) {
	return 3, nil
}

func TestNotifications(t *testing.T) {
	tenantID := uuid.New()
	svc := &stubNotifications{}

	w := serve(t, http.MethodGet, "/notifications", "/notifications?limit=5&unreadOnly=true", tenantID, "", ListNotifications(svc, testLogger()))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tenantID, svc.params.TenantID)
	assert.Equal(t, 5, svc.params.Limit)
	assert.True(t, svc.params.UnreadOnly)
	assert.Contains(t, w.Body.String(), "Produto esgotado")

	w = serve(t, http.MethodGet, "/notifications", "/notifications?limit=0", tenantID, "", ListNotifications(svc, testLogger()))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	id := uuid.New()
	w = serve(t, http.MethodPost, "/notifications/{notificationId}/read", "/notifications/"+id.String()+"/read", tenantID, "", MarkNotificationRead(svc, testLogger()))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, svc.read)

	w = serve(t, http.MethodPost, "/notifications/read", "/notifications/read", tenantID, "", MarkAllNotificationsRead(svc, testLogger()))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"updated":3`)
}
