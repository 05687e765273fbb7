package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/wacart-backend/internal/cart"
	"github.com/angelmondragon/wacart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/wacart-backend/pkg/errors"
	"github.com/angelmondragon/wacart-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type itemLister interface {
	ListByCart(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error)
}

// FinalizeNotifier tells the customer an order was paid or cancelled.
type FinalizeNotifier interface {
	PaymentConfirmed(ctx context.Context, order *models.Order)
	OrderCancelled(ctx context.Context, order *models.Order)
}

// Service defines order-level operations beyond repository reads.
type Service interface {
	RecomputeTotal(ctx context.Context, orderID, cartID uuid.UUID) (decimal.Decimal, error)
	MarkPaid(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Order, error)
}

// ServiceParams groups the order service dependencies.
type ServiceParams struct {
	Repo     Repository
	Carts    cart.CartRepository
	Items    itemLister
	Tx       txRunner
	Notifier FinalizeNotifier
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	carts    cart.CartRepository
	items    itemLister
	tx       txRunner
	notifier FinalizeNotifier
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	}
	if params.Carts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart repository required")
	}
	if params.Items == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart item repository required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:     params.Repo,
		carts:    params.Carts,
		items:    params.Items,
		tx:       params.Tx,
		notifier: params.Notifier,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// RecomputeTotal sets the order total to the sum of the cart's line totals.
func (s *service) RecomputeTotal(ctx context.Context, orderID, cartID uuid.UUID) (decimal.Decimal, error) {
	items, err := s.items.ListByCart(ctx, cartID)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
	}
	total := SumItems(items)
	if err := s.repo.UpdateTotal(ctx, orderID, total); err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order total")
	}
	return total, nil
}

// SumItems adds up quantity * unit price over items.
func SumItems(items []models.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total.Round(2)
}

func (s *service) MarkPaid(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Order, error) {
	order, changed, err := s.finalize(ctx, tenantID, orderID, true)
	if err != nil {
		return nil, err
	}
	if changed && s.notifier != nil {
		s.notifier.PaymentConfirmed(ctx, order)
	}
	return order, nil
}

func (s *service) Cancel(ctx context.Context, tenantID, orderID uuid.UUID) (*models.Order, error) {
	order, changed, err := s.finalize(ctx, tenantID, orderID, false)
	if err != nil {
		return nil, err
	}
	if changed && s.notifier != nil {
		s.notifier.OrderCancelled(ctx, order)
	}
	return order, nil
}

// finalize marks the order paid (or cancelled) and closes its cart in one
// transaction. Repeating the same transition is a no-op; crossing from paid
// to cancelled or back is a state conflict.
func (s *service) finalize(ctx context.Context, tenantID, orderID uuid.UUID, paid bool) (*models.Order, bool, error) {
	if tenantID == uuid.Nil || orderID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "tenant id and order id required")
	}

	order, err := s.repo.FindByTenant(ctx, tenantID, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Finalized() {
		return finalizedResult(order, paid)
	}

	now := s.now().UTC()
	changed := false
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		mark := repo.MarkCancelled
		if paid {
			mark = repo.MarkPaid
		}
		ok, err := mark(ctx, orderID, now)
		if err != nil || !ok {
			return err
		}
		changed = true
		if order.CartID == nil {
			return nil
		}
		_, err = s.carts.WithTx(tx).Close(ctx, *order.CartID, now)
		return err
	})
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize order")
	}

	order, err = s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	if !changed {
		return finalizedResult(order, paid)
	}
	return order, true, nil
}

func finalizedResult(order *models.Order, paid bool) (*models.Order, bool, error) {
	if order.IsPaid == paid && order.IsCancelled == !paid {
		return order, false, nil
	}
	return nil, false, pkgerrors.New(pkgerrors.CodeStateConflict, "order already finalized")
}
