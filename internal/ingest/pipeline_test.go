package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/wacart-backend/internal/intake"
	"github.com/angelmondragon/wacart-backend/internal/tenants"
	"github.com/angelmondragon/wacart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/wacart-backend/pkg/errors"
	"github.com/angelmondragon/wacart-backend/pkg/idempotency"
	"github.com/angelmondragon/wacart-backend/pkg/metrics"
)

type stubResolver struct {
	tenant *models.Tenant
	err    error
	got    tenants.Identity
}

func (s *stubResolver) Resolve(_ context.Context, id tenants.Identity) (*tenants.Resolution, error) {
	s.got = id
	if s.err != nil {
		return nil, s.err
	}
	return &tenants.Resolution{Tenant: s.tenant, Source: tenants.SourceGroupID, Location: time.UTC}, nil
}

type stubIntake struct {
	calls   []intake.Intent
	results []intake.ItemResult
	err     error
}

func (s *stubIntake) Apply(_ context.Context, intent intake.Intent) ([]intake.ItemResult, error) {
	s.calls = append(s.calls, intent)
	if s.err != nil {
		return nil, s.err
	}
	if s.results != nil {
		return s.results, nil
	}
	out := make([]intake.ItemResult, 0, len(intent.Codes))
	for _, code := range intent.Codes {
		out = append(out, intake.ItemResult{Code: code, Outcome: intake.OutcomeAdded})
	}
	return out, nil
}

type pipelineFixture struct {
	pipeline *Pipeline
	resolver *stubResolver
	intake   *stubIntake
	metrics  *metrics.IngestMetrics
	registry *prometheus.Registry
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	dedup, err := NewDeduplicator(idempotency.NewMemoryCache(), time.Minute, 10*time.Second)
	require.NoError(t, err)
	registry := prometheus.NewRegistry()
	f := &pipelineFixture{
		resolver: &stubResolver{tenant: &models.Tenant{ID: uuid.New(), Name: "Loja"}},
		intake:   &stubIntake{},
		metrics:  metrics.NewIngestMetrics(registry),
		registry: registry,
	}
	f.pipeline, err = NewPipeline(PipelineParams{Dedup: dedup, Resolver: f.resolver, Intake: f.intake, Metrics: f.metrics})
	require.NoError(t, err)
	return f
}

func groupMessage(eventID, text string) Message {
	return Message{
		EventID:     eventID,
		InstanceID:  "inst-1",
		ChatID:      "120363041234567890-group",
		ChatName:    "Bazar da Ana",
		SenderPhone: "5511987654321",
		SenderName:  "Maria",
		Text:        text,
		IsGroup:     true,
	}
}

func TestPipelineProcessesGroupMessage(t *testing.T) {
	f := newPipelineFixture(t)

	res, err := f.pipeline.Handle(context.Background(), groupMessage("evt-1", "quero C100 e c200"))
	require.NoError(t, err)
	require.Equal(t, StatusProcessed, res.Status)
	require.Equal(t, []string{"C100", "C200"}, res.Codes)
	require.Len(t, res.Items, 2)
	require.Equal(t, f.resolver.tenant.ID, *res.TenantID)

	require.Len(t, f.intake.calls, 1)
	intent := f.intake.calls[0]
	require.Equal(t, "11987654321", intent.Phone)
	require.Equal(t, "Maria", intent.SenderName)
	require.NotEmpty(t, intent.MessageKey)
	require.Equal(t, "11987654321", f.resolver.got.SenderPhone)
	require.Equal(t, "Bazar da Ana", f.resolver.got.GroupName)

	require.Equal(t, float64(1), counterValue(t, f.registry, "wacart_ingest_events_total", "processed"))
	require.Equal(t, float64(2), counterValue(t, f.registry, "wacart_ingest_item_outcomes_total", "added"))
}

func TestPipelineRedeliveryIsDuplicate(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	_, err := f.pipeline.Handle(ctx, groupMessage("evt-1", "C100"))
	require.NoError(t, err)
	res, err := f.pipeline.Handle(ctx, groupMessage("evt-1", "C100"))
	require.NoError(t, err)
	require.Equal(t, StatusDuplicate, res.Status)
	require.Len(t, f.intake.calls, 1)
}

func TestPipelineContentFallbackWithoutEventID(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	_, err := f.pipeline.Handle(ctx, groupMessage("", "C100"))
	require.NoError(t, err)
	res, err := f.pipeline.Handle(ctx, groupMessage("", " C100 "))
	require.NoError(t, err)
	require.Equal(t, StatusDuplicate, res.Status)

	res, err = f.pipeline.Handle(ctx, groupMessage("", "C101"))
	require.NoError(t, err)
	require.Equal(t, StatusProcessed, res.Status)
}

func TestPipelinePassesDedupWindowToIntake(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	_, err := f.pipeline.Handle(ctx, groupMessage("evt-1", "C100"))
	require.NoError(t, err)
	_, err = f.pipeline.Handle(ctx, groupMessage("", "C200"))
	require.NoError(t, err)

	require.Len(t, f.intake.calls, 2)
	require.Equal(t, time.Minute, f.intake.calls[0].DedupWindow)
	require.Equal(t, 10*time.Second, f.intake.calls[1].DedupWindow)
}

func TestPipelineSkips(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	direct := groupMessage("evt-1", "C100")
	direct.IsGroup = false
	res, err := f.pipeline.Handle(ctx, direct)
	require.NoError(t, err)
	require.Equal(t, StatusSkipped, res.Status)
	require.Equal(t, ReasonNotGroup, res.Reason)

	mine := groupMessage("evt-2", "C100")
	mine.FromMe = true
	res, err = f.pipeline.Handle(ctx, mine)
	require.NoError(t, err)
	require.Equal(t, ReasonFromMe, res.Reason)

	res, err = f.pipeline.Handle(ctx, groupMessage("evt-3", "   "))
	require.NoError(t, err)
	require.Equal(t, ReasonEmptyText, res.Reason)

	badPhone := groupMessage("evt-4", "C100")
	badPhone.SenderPhone = "123"
	res, err = f.pipeline.Handle(ctx, badPhone)
	require.NoError(t, err)
	require.Equal(t, ReasonInvalidPhone, res.Reason)

	res, err = f.pipeline.Handle(ctx, groupMessage("evt-5", "bom dia"))
	require.NoError(t, err)
	require.Equal(t, StatusIgnored, res.Status)
	require.Equal(t, ReasonNoProductCodes, res.Reason)

	require.Empty(t, f.intake.calls)
}

func TestPipelineUnresolvedTenantIsSkipped(t *testing.T) {
	f := newPipelineFixture(t)
	f.resolver.err = tenants.ErrUnresolved

	res, err := f.pipeline.Handle(context.Background(), groupMessage("evt-1", "C100"))
	require.NoError(t, err)
	require.Equal(t, StatusSkipped, res.Status)
	require.Equal(t, ReasonTenantUnresolved, res.Reason)
}

func TestPipelineConflictIsFatalAndReleasesKey(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	f.resolver.err = pkgerrors.New(pkgerrors.CodeConflict, "ambiguous tenant mapping")

	_, err := f.pipeline.Handle(ctx, groupMessage("evt-1", "C100"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	f.resolver.err = nil
	res, err := f.pipeline.Handle(ctx, groupMessage("evt-1", "C100"))
	require.NoError(t, err)
	require.Equal(t, StatusProcessed, res.Status, "a failed event is processed again on retry")
}

func TestPipelineReleasesKeyOnItemFailure(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	f.intake.results = []intake.ItemResult{{Code: "C100", Outcome: intake.OutcomeCartCreationError, Error: "db down"}}

	res, err := f.pipeline.Handle(ctx, groupMessage("evt-1", "C100"))
	require.NoError(t, err)
	require.Equal(t, StatusProcessed, res.Status)

	f.intake.results = nil
	res, err = f.pipeline.Handle(ctx, groupMessage("evt-1", "C100"))
	require.NoError(t, err)
	require.Equal(t, StatusProcessed, res.Status)
	require.Len(t, f.intake.calls, 2)
}

func TestPipelineIntakeErrorPropagates(t *testing.T) {
	f := newPipelineFixture(t)
	f.intake.err = errors.New("customer store down")

	_, err := f.pipeline.Handle(context.Background(), groupMessage("evt-1", "C100"))
	require.Error(t, err)
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, label string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			for _, pair := range m.GetLabel() {
				if pair.GetValue() == label {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
