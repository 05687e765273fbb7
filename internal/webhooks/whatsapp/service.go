package whatsappwebhook

import (
	"context"

	"github.com/angelmondragon/wacart-backend/internal/ingest"
	"github.com/angelmondragon/wacart-backend/internal/reconciler"
	pkgerrors "github.com/angelmondragon/wacart-backend/pkg/errors"
	"github.com/angelmondragon/wacart-backend/pkg/logger"
)

type messageHandler interface {
	Handle(ctx context.Context, msg ingest.Message) (*ingest.Result, error)
}

type statusApplier interface {
	ApplyBatch(ctx context.Context, providerIDs []string, rawStatus string) (map[string]reconciler.Outcome, error)
}

const (
	KindMessage = "message"
	KindStatus  = "status"
)

// Response is echoed to the provider so retries and monitoring can tell a
// designed skip from a failure.
type Response struct {
	Kind     string                        `json:"kind"`
	Ingest   *ingest.Result                `json:"ingest,omitempty"`
	Statuses map[string]reconciler.Outcome `json:"statuses,omitempty"`
}

type ServiceParams struct {
	Pipeline   messageHandler
	Reconciler statusApplier
	Logger     *logger.Logger
}

type Service struct {
	pipeline   messageHandler
	reconciler statusApplier
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Pipeline == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ingest pipeline required")
	}
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciler required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	return &Service{pipeline: params.Pipeline, reconciler: params.Reconciler, logg: params.Logger}, nil
}

// Handle routes status callbacks to the reconciler and everything else to
// the ingestion pipeline.
func (s *Service) Handle(ctx context.Context, payload Payload) (*Response, error) {
	if payload.IsStatusCallback() {
		ids := payload.StatusIDs()
		if len(ids) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "status callback without message ids")
		}
		outcomes, err := s.reconciler.ApplyBatch(ctx, ids, payload.Status)
		if err != nil {
			return nil, err
		}
		return &Response{Kind: KindStatus, Statuses: outcomes}, nil
	}

	result, err := s.pipeline.Handle(ctx, payload.Message())
	if err != nil {
		return nil, err
	}
	return &Response{Kind: KindMessage, Ingest: result}, nil
}
