package ingest

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/wacart-backend/internal/intake"
	"github.com/angelmondragon/wacart-backend/internal/tenants"
	pkgerrors "github.com/angelmondragon/wacart-backend/pkg/errors"
	"github.com/angelmondragon/wacart-backend/pkg/logger"
	"github.com/angelmondragon/wacart-backend/pkg/metrics"
	"github.com/angelmondragon/wacart-backend/pkg/phone"
)

// Status is the event-level result of the pipeline.
type Status string

const (
	StatusProcessed Status = "processed"
	StatusSkipped   Status = "skipped"
	StatusDuplicate Status = "duplicate"
	StatusIgnored   Status = "ignored"
)

const (
	ReasonNotGroup         = "not_group"
	ReasonFromMe           = "from_me"
	ReasonEmptyText        = "empty_text"
	ReasonInvalidPhone     = "invalid_phone"
	ReasonTenantUnresolved = "tenant_unresolved"
	ReasonNoProductCodes   = "no_product_codes"
)

// Message is an inbound group chat message as delivered by the provider.
type Message struct {
	EventID        string
	InstanceID     string
	ConnectedPhone string
	ChatID         string
	ChatName       string
	SenderPhone    string
	SenderName     string
	Text           string
	IsGroup        bool
	FromMe         bool
}

// Result is returned to the webhook caller. Designed outcomes (skips,
// duplicates, per-code business failures) are data, not errors.
type Result struct {
	Status   Status              `json:"status"`
	Reason   string              `json:"reason,omitempty"`
	TenantID *uuid.UUID          `json:"tenant_id,omitempty"`
	Codes    []string            `json:"codes,omitempty"`
	Items    []intake.ItemResult `json:"items,omitempty"`
}

type tenantResolver interface {
	Resolve(ctx context.Context, id tenants.Identity) (*tenants.Resolution, error)
}

type intentApplier interface {
	Apply(ctx context.Context, intent intake.Intent) ([]intake.ItemResult, error)
}

// PipelineParams groups the pipeline dependencies.
type PipelineParams struct {
	Dedup    *Deduplicator
	Resolver tenantResolver
	Intake   intentApplier
	Metrics  *metrics.IngestMetrics
	Logger   *logger.Logger
}

// Pipeline runs dedup, tenant resolution, code extraction and intake for one
// inbound message.
type Pipeline struct {
	dedup    *Deduplicator
	resolver tenantResolver
	intake   intentApplier
	metrics  *metrics.IngestMetrics
	logg     *logger.Logger
}

func NewPipeline(params PipelineParams) (*Pipeline, error) {
	if params.Dedup == nil {
		return nil, errors.New("deduplicator required")
	}
	if params.Resolver == nil {
		return nil, errors.New("tenant resolver required")
	}
	if params.Intake == nil {
		return nil, errors.New("intake service required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Pipeline{
		dedup:    params.Dedup,
		resolver: params.Resolver,
		intake:   params.Intake,
		metrics:  params.Metrics,
		logg:     logg,
	}, nil
}

func (p *Pipeline) Handle(ctx context.Context, msg Message) (*Result, error) {
	ctx = p.logg.WithMessageID(ctx, msg.EventID)
	result, err := p.handle(ctx, msg)
	if err != nil {
		p.metrics.IncEvent("error")
		p.logg.Error(ctx, "ingest.failed", err)
		return nil, err
	}

	p.metrics.IncEvent(string(result.Status))
	logCtx := p.logg.WithFields(ctx, map[string]any{"status": result.Status, "reason": result.Reason})
	p.logg.Info(logCtx, "ingest."+string(result.Status))
	for _, item := range result.Items {
		p.metrics.IncOutcome(string(item.Outcome))
		itemCtx := p.logg.WithFields(ctx, map[string]any{"code": item.Code, "outcome": item.Outcome})
		if item.Outcome.Failed() {
			p.logg.Error(itemCtx, "intake.item."+string(item.Outcome), errors.New(item.Error))
			continue
		}
		p.logg.Info(itemCtx, "intake.item."+string(item.Outcome))
	}
	return result, nil
}

func (p *Pipeline) handle(ctx context.Context, msg Message) (*Result, error) {
	switch {
	case !msg.IsGroup:
		return skipped(ReasonNotGroup), nil
	case msg.FromMe:
		return skipped(ReasonFromMe), nil
	case strings.TrimSpace(msg.Text) == "":
		return skipped(ReasonEmptyText), nil
	}

	sender, err := phone.Normalize(msg.SenderPhone)
	if err != nil {
		return skipped(ReasonInvalidPhone), nil
	}
	ctx = p.logg.WithPhone(ctx, sender)

	key, window := p.dedup.Key(msg.EventID, sender, msg.Text)
	seen, err := p.dedup.Seen(ctx, key, window)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check inbound dedup")
	}
	if seen {
		return &Result{Status: StatusDuplicate}, nil
	}

	result, err := p.process(ctx, msg, sender, key, window)
	if err != nil || (result != nil && intake.AnyFailed(result.Items)) {
		if releaseErr := p.dedup.Release(ctx, key); releaseErr != nil {
			p.logg.Warn(ctx, "release inbound dedup key: "+releaseErr.Error())
		}
	}
	return result, err
}

func (p *Pipeline) process(ctx context.Context, msg Message, sender, key string, window time.Duration) (*Result, error) {
	resolution, err := p.resolver.Resolve(ctx, tenants.Identity{
		InstanceID:     msg.InstanceID,
		ConnectedPhone: normalizeOrEmpty(msg.ConnectedPhone),
		GroupID:        msg.ChatID,
		GroupName:      msg.ChatName,
		SenderPhone:    sender,
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return skipped(ReasonTenantUnresolved), nil
		}
		return nil, err
	}
	tenantID := resolution.Tenant.ID
	ctx = p.logg.WithTenantID(ctx, tenantID.String())

	codes := ExtractCodes(msg.Text)
	if len(codes) == 0 {
		return &Result{Status: StatusIgnored, Reason: ReasonNoProductCodes, TenantID: &tenantID}, nil
	}

	items, err := p.intake.Apply(ctx, intake.Intent{
		Tenant:      resolution.Tenant,
		Location:    resolution.Location,
		Phone:       sender,
		SenderName:  msg.SenderName,
		MessageKey:  key,
		DedupWindow: window,
		Codes:       codes,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Status: StatusProcessed, TenantID: &tenantID, Codes: codes, Items: items}, nil
}

func skipped(reason string) *Result {
	return &Result{Status: StatusSkipped, Reason: reason}
}

func normalizeOrEmpty(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	national, err := phone.Normalize(raw)
	if err != nil {
		return ""
	}
	return national
}
