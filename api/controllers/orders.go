package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/wacart-backend/api/responses"
	"github.com/angelmondragon/wacart-backend/api/validators"
	"github.com/angelmondragon/wacart-backend/pkg/db/models"
	"github.com/angelmondragon/wacart-backend/pkg/enums"
	"github.com/angelmondragon/wacart-backend/pkg/logger"
)

type orderFinalizer interface {
	MarkPaid(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Order, error)
}

type orderView struct {
	ID            uuid.UUID       `json:"id"`
	CustomerPhone string          `json:"customer_phone"`
	EventType     enums.EventType `json:"event_type"`
	EventDate     string          `json:"event_date"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	IsPaid        bool            `json:"is_paid"`
	IsCancelled   bool            `json:"is_cancelled"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
}

func newOrderView(o *models.Order) orderView {
	return orderView{
		ID:            o.ID,
		CustomerPhone: o.CustomerPhone,
		EventType:     o.EventType,
		EventDate:     o.EventDate.Format(time.DateOnly),
		TotalAmount:   o.TotalAmount,
		IsPaid:        o.IsPaid,
		IsCancelled:   o.IsCancelled,
		PaidAt:        o.PaidAt,
		CancelledAt:   o.CancelledAt,
	}
}

// MarkOrderPaid finalizes the order as paid; repeating it is a no-op.
func MarkOrderPaid(svc orderFinalizer, logg *logger.Logger) http.HandlerFunc {
	return orderAction(svc.MarkPaid, logg)
}

func CancelOrder(svc orderFinalizer, logg *logger.Logger) http.HandlerFunc {
	return orderAction(svc.Cancel, logg)
}

func orderAction(fn func(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Order, error), logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenantFromRequest(w, r, logg)
		if !ok {
			return
		}
		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := fn(r.Context(), tenantID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderView(order))
	}
}
