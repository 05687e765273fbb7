package outbound

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/wacart-backend/pkg/db/models"
	"github.com/angelmondragon/wacart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wacart-backend/pkg/errors"
	"github.com/angelmondragon/wacart-backend/pkg/logger"
	"github.com/angelmondragon/wacart-backend/pkg/metrics"
)

// Client is the provider transport. *whatsapp.Client satisfies it.
type Client interface {
	SendText(ctx context.Context, to, message string) (string, error)
	SendImage(ctx context.Context, to, imageURL, caption string) (string, error)
}

type pacer interface {
	Wait(ctx context.Context, tenantID uuid.UUID, phone string, channel enums.Channel) (Plan, error)
}

type messageLog interface {
	Create(ctx context.Context, msg *models.OutboundMessage) error
}

// Request is one automated message to deliver.
type Request struct {
	TenantID       uuid.UUID
	OrderID        *uuid.UUID
	BroadcastJobID *uuid.UUID
	Phone          string
	Type           enums.MessageType
	Channel        enums.Channel
	Text           string
	ImageURL       string
}

func (r Request) validate() error {
	switch {
	case r.TenantID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	case strings.TrimSpace(r.Phone) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "phone is required")
	case !r.Type.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid message type")
	case !r.Channel.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid channel")
	case strings.TrimSpace(r.Text) == "" && strings.TrimSpace(r.ImageURL) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "text or image is required")
	}
	return nil
}

// Delivery is the logged outcome of a send that reached the provider call.
type Delivery struct {
	Message *models.OutboundMessage
	Plan    Plan
}

type SenderParams struct {
	Pacer    pacer
	Variator *Variator
	Client   Client
	Log      messageLog
	Metrics  *metrics.OutboundMetrics
	Logger   *logger.Logger
}

type Sender struct {
	pacer    pacer
	variator *Variator
	client   Client
	log      messageLog
	metrics  *metrics.OutboundMetrics
	logg     *logger.Logger
	now      func() time.Time
}

func NewSender(params SenderParams) (*Sender, error) {
	if params.Pacer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pacer required")
	}
	if params.Client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider client required")
	}
	if params.Log == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message log required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	return &Sender{
		pacer:    params.Pacer,
		variator: params.Variator,
		client:   params.Client,
		log:      params.Log,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      time.Now,
	}, nil
}

// Send paces, varies and delivers req, then appends the attempt to the
// message log as SENT or FAILED. Pacing failures (a live rate limit or a
// cancelled context) return before the provider is called and are not
// logged as attempts. A provider failure returns both the FAILED delivery
// and the error.
func (s *Sender) Send(ctx context.Context, req Request) (*Delivery, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"tenant_id":    req.TenantID.String(),
		"phone":        req.Phone,
		"message_type": req.Type.String(),
		"channel":      req.Channel.String(),
	})

	plan, err := s.pacer.Wait(ctx, req.TenantID, req.Phone, req.Channel)
	if err != nil {
		status := "cancelled"
		if pkgerrors.IsCode(err, pkgerrors.CodeRateLimit) {
			status = "rate_limited"
		}
		s.metrics.IncSend(req.Type.String(), req.Channel.String(), status)
		s.logg.Warn(ctx, "outbound."+status)
		return nil, err
	}

	text := req.Text
	if s.variator != nil {
		text = s.variator.Vary(text, req.Channel)
	}

	var providerID string
	if req.ImageURL != "" {
		providerID, err = s.client.SendImage(ctx, req.Phone, req.ImageURL, text)
	} else {
		providerID, err = s.client.SendText(ctx, req.Phone, text)
	}

	now := s.now().UTC()
	msg := &models.OutboundMessage{
		TenantID:       req.TenantID,
		OrderID:        req.OrderID,
		BroadcastJobID: req.BroadcastJobID,
		Phone:          req.Phone,
		MessageType:    req.Type,
		Channel:        req.Channel,
		Content:        text,
	}
	if err != nil {
		errText := err.Error()
		msg.DeliveryStatus = enums.DeliveryStatusFailed
		msg.Error = &errText
	} else {
		msg.DeliveryStatus = enums.DeliveryStatusSent
		msg.ProviderMessageID = &providerID
		msg.SentAt = &now
	}

	if logErr := s.log.Create(context.WithoutCancel(ctx), msg); logErr != nil {
		s.logg.Error(ctx, "outbound.log_failed", logErr)
	}
	s.metrics.IncSend(req.Type.String(), req.Channel.String(), strings.ToLower(msg.DeliveryStatus.String()))

	delivery := &Delivery{Message: msg, Plan: plan}
	if err != nil {
		s.logg.Error(ctx, "outbound.send_failed", err)
		return delivery, err
	}
	s.logg.Info(s.logg.WithMessageID(ctx, providerID), "outbound.sent")
	return delivery, nil
}

// Schedule sends req and reports whether the provider accepted it.
func (s *Sender) Schedule(ctx context.Context, req Request) (bool, error) {
	delivery, err := s.Send(ctx, req)
	if err != nil {
		return false, err
	}
	return delivery.Message.DeliveryStatus == enums.DeliveryStatusSent, nil
}

// IsRateLimited reports whether err is a live-tier rate-limit rejection.
func IsRateLimited(err error) bool {
	return pkgerrors.IsCode(err, pkgerrors.CodeRateLimit)
}

// IsCancelled reports whether a send was abandoned because its job stopped.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
