package reconciler

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/wacart-backend/pkg/db/models"
	"github.com/angelmondragon/wacart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wacart-backend/pkg/errors"
	"github.com/angelmondragon/wacart-backend/pkg/logger"
	"github.com/angelmondragon/wacart-backend/pkg/metrics"
)

// Outcome classifies what a single status callback did.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeStale     Outcome = "stale"
	OutcomeUnknown   Outcome = "unknown_message"
)

type messageStore interface {
	FindByProviderID(ctx context.Context, providerID string) (*models.OutboundMessage, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.DeliveryStatus, at time.Time) (bool, error)
}

type orderFlags interface {
	SetDeliveredFlag(ctx context.Context, orderID uuid.UUID, column string) error
}

// Service applies provider delivery callbacks to the outbound log and the
// order-level delivered flags.
type Service struct {
	messages messageStore
	orders   orderFlags
	metrics  *metrics.OutboundMetrics
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(messages messageStore, orders orderFlags, m *metrics.OutboundMetrics, logg *logger.Logger) (*Service, error) {
	if messages == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message store required")
	}
	if orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{messages: messages, orders: orders, metrics: m, logg: logg, now: time.Now}, nil
}

// Apply records status for the message the provider knows as providerID.
// Ids never logged by us are ignored. A status never moves backwards.
func (s *Service) Apply(ctx context.Context, providerID string, status enums.DeliveryStatus) (Outcome, error) {
	outcome, err := s.apply(ctx, providerID, status)
	if err != nil {
		s.metrics.IncStatusCallback("error")
		return "", err
	}
	s.metrics.IncStatusCallback(string(outcome))
	return outcome, nil
}

func (s *Service) apply(ctx context.Context, providerID string, status enums.DeliveryStatus) (Outcome, error) {
	ctx = s.logg.WithFields(ctx, map[string]any{"provider_message_id": providerID, "status": status.String()})

	var msg *models.OutboundMessage
	for attempt := 0; attempt < 2; attempt++ {
		found, err := s.messages.FindByProviderID(ctx, providerID)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find outbound message")
		}
		if found == nil {
			s.logg.Debug(ctx, "reconciler.unknown_message")
			return OutcomeUnknown, nil
		}
		msg = found
		if msg.DeliveryStatus == status {
			return OutcomeUnchanged, nil
		}
		if !status.Supersedes(msg.DeliveryStatus) {
			s.logg.Debug(ctx, "reconciler.stale_status")
			return OutcomeStale, nil
		}

		ok, err := s.messages.UpdateStatus(ctx, msg.ID, msg.DeliveryStatus, status, s.now().UTC())
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update delivery status")
		}
		if ok {
			break
		}
		// a concurrent callback moved the row; re-read and decide again
		if attempt == 1 {
			return OutcomeStale, nil
		}
	}

	if status.IsDelivered() && msg.OrderID != nil {
		if column := msg.MessageType.DeliveredFlag(); column != "" {
			if err := s.orders.SetDeliveredFlag(ctx, *msg.OrderID, column); err != nil {
				return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "set order delivered flag")
			}
		}
	}
	s.logg.Info(ctx, "reconciler.applied")
	return OutcomeApplied, nil
}

// ApplyBatch applies one raw provider status to several message ids. Every
// id is attempted; failures are combined.
func (s *Service) ApplyBatch(ctx context.Context, providerIDs []string, rawStatus string) (map[string]Outcome, error) {
	status, err := enums.ParseProviderStatus(rawStatus)
	if err != nil {
		s.metrics.IncStatusCallback("invalid_status")
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported delivery status")
	}

	outcomes := make(map[string]Outcome, len(providerIDs))
	var errs error
	for _, id := range providerIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		outcome, applyErr := s.Apply(ctx, id, status)
		if applyErr != nil {
			errs = multierr.Append(errs, applyErr)
			continue
		}
		outcomes[id] = outcome
	}
	return outcomes, errs
}
