package products

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/wacart-backend/pkg/db/models"
	"github.com/angelmondragon/wacart-backend/pkg/logger"
)

// StockCheck is the outcome of checking a product against a requested qty.
type StockCheck int

const (
	StockAvailable StockCheck = iota
	StockOut
	StockInsufficient
)

// CheckStock reads the snapshot on product; it does not reserve anything.
func CheckStock(product *models.Product, qty int) StockCheck {
	switch {
	case product.Stock <= 0:
		return StockOut
	case qty > product.Stock:
		return StockInsufficient
	default:
		return StockAvailable
	}
}

type stockStore interface {
	DecrementStock(ctx context.Context, productID uuid.UUID, qty int, now time.Time) (int, error)
}

type depletionNotifier interface {
	StockDepleted(ctx context.Context, product *models.Product) error
}

// InventoryGuard applies committed stock movements and raises the
// stock-depleted notification when a product sells out.
type InventoryGuard struct {
	store    stockStore
	notifier depletionNotifier
	logg     *logger.Logger
	now      func() time.Time
}

func NewInventoryGuard(store stockStore, notifier depletionNotifier, logg *logger.Logger) (*InventoryGuard, error) {
	if store == nil {
		return nil, errors.New("stock store required")
	}
	if notifier == nil {
		return nil, errors.New("depletion notifier required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &InventoryGuard{store: store, notifier: notifier, logg: logg, now: time.Now}, nil
}

// Commit decrements stock by qty and returns what is left. Notification
// failures are logged and never fail the commit.
func (g *InventoryGuard) Commit(ctx context.Context, product *models.Product, qty int) (int, error) {
	remaining, err := g.store.DecrementStock(ctx, product.ID, qty, g.now().UTC())
	if err != nil {
		return 0, err
	}
	product.Stock = remaining
	if remaining == 0 {
		if err := g.notifier.StockDepleted(ctx, product); err != nil {
			logCtx := g.logg.WithField(ctx, "product_id", product.ID.String())
			g.logg.Warn(logCtx, "stock depleted notification failed: "+err.Error())
		}
	}
	return remaining, nil
}
