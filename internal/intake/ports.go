package intake

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/wacart-backend/pkg/db/models"
)

type customerStore interface {
	FindOrCreate(ctx context.Context, tenantID uuid.UUID, phone, name string) (*models.Customer, error)
}

type catalog interface {
	Resolve(ctx context.Context, tenantID uuid.UUID, code string) (*models.Product, error)
}

type dedupGuard interface {
	CheckAndMarkWithin(ctx context.Context, id string, window time.Duration) (bool, error)
	Release(ctx context.Context, id string) error
}

type inventory interface {
	Commit(ctx context.Context, product *models.Product, qty int) (int, error)
}

type totals interface {
	RecomputeTotal(ctx context.Context, orderID, cartID uuid.UUID) (decimal.Decimal, error)
}

// ItemAddedNotice describes a cart change the customer should hear about.
type ItemAddedNotice struct {
	TenantID    uuid.UUID
	OrderID     uuid.UUID
	Phone       string
	Product     *models.Product
	Quantity    int
	OrderTotal  decimal.Decimal
	Incremented bool
	At          time.Time
}

// UnavailableNotice tells a customer the requested product is sold out.
type UnavailableNotice struct {
	TenantID uuid.UUID
	Phone    string
	Product  *models.Product
}

// Notifier hands customer-facing messages to the outbound pipeline. It must
// not block on delivery.
type Notifier interface {
	ItemAdded(ctx context.Context, notice ItemAddedNotice)
	ProductUnavailable(ctx context.Context, notice UnavailableNotice)
}

// ConfirmationScheduler queues the delayed checkout follow-up of an order.
type ConfirmationScheduler interface {
	Schedule(ctx context.Context, order *models.Order, phone string) error
}
