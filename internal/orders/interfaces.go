package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/wacart-backend/internal/cart"
	"github.com/angelmondragon/wacart-backend/pkg/db/models"
)

// Repository defines persistence operations for orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByTenant(ctx context.Context, tenantID, id uuid.UUID) (*models.Order, error)
	FindByCart(ctx context.Context, cartID uuid.UUID) (*models.Order, error)
	FindOpenByCart(ctx context.Context, cartID uuid.UUID) (*models.Order, error)
	FindUnlinkedOpen(ctx context.Context, bucket cart.Bucket) (*models.Order, error)
	Create(ctx context.Context, order *models.Order) error
	LinkCart(ctx context.Context, orderID, cartID uuid.UUID) (bool, error)
	UpdateTotal(ctx context.Context, orderID uuid.UUID, total decimal.Decimal) error
	SetDeliveredFlag(ctx context.Context, orderID uuid.UUID, column string) error
	MarkPaid(ctx context.Context, orderID uuid.UUID, now time.Time) (bool, error)
	MarkCancelled(ctx context.Context, orderID uuid.UUID, now time.Time) (bool, error)
}
