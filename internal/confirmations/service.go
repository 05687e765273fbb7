package confirmations

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/wacart-backend/internal/outbound"
	"github.com/angelmondragon/wacart-backend/pkg/db/models"
	"github.com/angelmondragon/wacart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wacart-backend/pkg/errors"
	"github.com/angelmondragon/wacart-backend/pkg/logger"
)

type store interface {
	Refresh(ctx context.Context, pc *models.PendingConfirmation) (bool, error)
	DueForSend(ctx context.Context, now time.Time, limit int) ([]models.PendingConfirmation, error)
	Confirm(ctx context.Context, token uuid.UUID, content string, providerID *string, now time.Time) (bool, error)
	Expire(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

type orderReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type sender interface {
	Send(ctx context.Context, req outbound.Request) (*outbound.Delivery, error)
}

type Config struct {
	SendDelay   time.Duration
	TTL         time.Duration
	BatchSize   int
	CheckoutURL string
}

type ServiceParams struct {
	Repo   store
	Orders orderReader
	Sender sender
	Config Config
	Logger *logger.Logger
}

// SendReport summarises one SendDue pass.
type SendReport struct {
	Sent    int
	Expired int
	Failed  int
}

// Service schedules and delivers the delayed checkout-link follow-up.
type Service struct {
	repo   store
	orders orderReader
	sender sender
	cfg    Config
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil || params.Orders == nil || params.Sender == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "confirmations service dependencies missing")
	}
	if params.Config.BatchSize <= 0 {
		params.Config.BatchSize = 50
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	return &Service{
		repo:   params.Repo,
		orders: params.Orders,
		sender: params.Sender,
		cfg:    params.Config,
		logg:   params.Logger,
		now:    time.Now,
	}, nil
}

// Schedule creates or pushes back the checkout-link confirmation of order.
func (s *Service) Schedule(ctx context.Context, order *models.Order, phone string) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	now := s.now().UTC()
	pc := &models.PendingConfirmation{
		Token:     uuid.New(),
		TenantID:  order.TenantID,
		OrderID:   order.ID,
		Phone:     phone,
		Kind:      enums.MessageTypeCheckoutLink,
		SendAfter: now.Add(s.cfg.SendDelay),
		ExpiresAt: now.Add(s.cfg.TTL),
	}
	pc.Content = outbound.CheckoutLinkText(order.TotalAmount, s.checkoutLink(order.ID, pc.Token))

	created, err := s.repo.Refresh(ctx, pc)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "schedule confirmation")
	}
	if created {
		s.logg.Debug(ctx, "confirmations.scheduled")
	}
	return nil
}

// SendDue delivers every confirmation whose window opened through the batch
// tier. Rows whose order was paid or cancelled meanwhile are expired instead.
// A failed send stays pending and is retried on the next pass until expiry.
func (s *Service) SendDue(ctx context.Context) (SendReport, error) {
	var report SendReport
	now := s.now().UTC()
	due, err := s.repo.DueForSend(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return report, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list due confirmations")
	}

	var errs error
	for i := range due {
		pc := due[i]
		pctx := s.logg.WithFields(ctx, map[string]any{
			"tenant_id": pc.TenantID.String(),
			"order_id":  pc.OrderID.String(),
		})

		order, err := s.orders.FindByID(pctx, pc.OrderID)
		if err != nil {
			errs = multierr.Append(errs, err)
			report.Failed++
			continue
		}
		if order.Finalized() {
			if ok, err := s.repo.Expire(pctx, pc.ID, s.now().UTC()); err != nil {
				errs = multierr.Append(errs, err)
			} else if ok {
				report.Expired++
			}
			continue
		}

		text := outbound.CheckoutLinkText(order.TotalAmount, s.checkoutLink(order.ID, pc.Token))
		orderID := order.ID
		delivery, err := s.sender.Send(pctx, outbound.Request{
			TenantID: pc.TenantID,
			OrderID:  &orderID,
			Phone:    pc.Phone,
			Type:     enums.MessageTypeCheckoutLink,
			Channel:  enums.ChannelBatch,
			Text:     text,
		})
		if outbound.IsCancelled(err) {
			return report, multierr.Append(errs, err)
		}
		if err != nil {
			s.logg.Warn(pctx, "confirmations.send_failed")
			report.Failed++
			continue
		}

		if _, err := s.repo.Confirm(pctx, pc.Token, delivery.Message.Content, delivery.Message.ProviderMessageID, s.now().UTC()); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		report.Sent++
	}
	return report, errs
}

// Expire moves every pending confirmation past its expiry to expired.
func (s *Service) Expire(ctx context.Context) (int64, error) {
	n, err := s.repo.ExpireStale(ctx, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "expire confirmations")
	}
	return n, nil
}

func (s *Service) checkoutLink(orderID, token uuid.UUID) string {
	base := strings.TrimSpace(s.cfg.CheckoutURL)
	u, err := url.Parse(base)
	if err != nil || base == "" {
		return base
	}
	q := u.Query()
	q.Set("order", orderID.String())
	q.Set("token", token.String())
	u.RawQuery = q.Encode()
	return u.String()
}
