package outbound

import (
	"context"

	"github.com/angelmondragon/wacart-backend/internal/intake"
	"github.com/angelmondragon/wacart-backend/pkg/db/models"
	"github.com/angelmondragon/wacart-backend/pkg/enums"
	"github.com/angelmondragon/wacart-backend/pkg/logger"
)

type enqueuer interface {
	Enqueue(ctx context.Context, req Request) bool
}

// Notifier turns domain events into live-tier customer messages.
type Notifier struct {
	queue enqueuer
	logg  *logger.Logger
}

func NewNotifier(queue enqueuer, logg *logger.Logger) *Notifier {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Notifier{queue: queue, logg: logg}
}

func (n *Notifier) ItemAdded(ctx context.Context, notice intake.ItemAddedNotice) {
	if notice.Product == nil {
		return
	}
	orderID := notice.OrderID
	n.enqueue(ctx, Request{
		TenantID: notice.TenantID,
		OrderID:  &orderID,
		Phone:    notice.Phone,
		Type:     enums.MessageTypeItemAdded,
		Channel:  enums.ChannelLive,
		Text: ItemAddedText(notice.Product.Code, notice.Product.Name, notice.Product.Price,
			notice.Quantity, notice.OrderTotal),
	})
}

func (n *Notifier) ProductUnavailable(ctx context.Context, notice intake.UnavailableNotice) {
	if notice.Product == nil {
		return
	}
	n.enqueue(ctx, Request{
		TenantID: notice.TenantID,
		Phone:    notice.Phone,
		Type:     enums.MessageTypeProductUnavailable,
		Channel:  enums.ChannelLive,
		Text:     ProductUnavailableText(notice.Product.Code, notice.Product.Name),
	})
}

func (n *Notifier) PaymentConfirmed(ctx context.Context, order *models.Order) {
	n.enqueue(ctx, orderRequest(order, enums.MessageTypePaymentConfirmation, PaymentConfirmationText(order.TotalAmount)))
}

func (n *Notifier) OrderCancelled(ctx context.Context, order *models.Order) {
	n.enqueue(ctx, orderRequest(order, enums.MessageTypeOrderCancelled, OrderCancelledText()))
}

func orderRequest(order *models.Order, kind enums.MessageType, text string) Request {
	orderID := order.ID
	return Request{
		TenantID: order.TenantID,
		OrderID:  &orderID,
		Phone:    order.CustomerPhone,
		Type:     kind,
		Channel:  enums.ChannelLive,
		Text:     text,
	}
}

func (n *Notifier) enqueue(ctx context.Context, req Request) {
	if !n.queue.Enqueue(ctx, req) {
		n.logg.Warn(ctx, "outbound.notify_dropped")
	}
}
