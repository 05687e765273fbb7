package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/wacart-backend/pkg/db/models"
	"github.com/angelmondragon/wacart-backend/pkg/enums"
)

// Bucket identifies the single OPEN cart slot of a customer.
type Bucket struct {
	TenantID  uuid.UUID
	Phone     string
	EventType enums.EventType
	EventDate time.Time
}

// CartRepository defines the persistence surface for carts.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	FindOpen(ctx context.Context, bucket Bucket) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) error
	Close(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
}

// ItemRepository defines the persistence surface for cart items.
type ItemRepository interface {
	WithTx(tx *gorm.DB) ItemRepository
	Find(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error)
	Create(ctx context.Context, item *models.CartItem) error
	Increment(ctx context.Context, itemID uuid.UUID, expectedQty int, now time.Time) (bool, error)
	ListByCart(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error)
}
