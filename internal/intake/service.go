package intake

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/wacart-backend/internal/cart"
	"github.com/angelmondragon/wacart-backend/internal/orders"
	"github.com/angelmondragon/wacart-backend/internal/products"
	"github.com/angelmondragon/wacart-backend/pkg/db"
	"github.com/angelmondragon/wacart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/wacart-backend/pkg/errors"
	"github.com/angelmondragon/wacart-backend/pkg/logger"
)

const defaultItemWindow = 30 * time.Second

var (
	errCartUnavailable  = errors.New("open cart vanished during conflict retry")
	errOrderUnavailable = errors.New("open order vanished during conflict retry")
	errItemUnavailable  = errors.New("cart item vanished during conflict retry")
)

// Intent is one inbound message reduced to what the state machine needs.
type Intent struct {
	Tenant      *models.Tenant
	Location    *time.Location
	Phone       string
	SenderName  string
	// MessageKey identifies the inbound message; (MessageKey, product) pairs
	// are applied at most once.
	MessageKey  string
	// DedupWindow bounds how long (MessageKey, product) marks live; it
	// matches the window the inbound key was deduplicated under. Zero
	// keeps the guard default.
	DedupWindow time.Duration
	Codes       []string
}

// ServiceParams groups the intake dependencies.
type ServiceParams struct {
	Customers     customerStore
	Catalog       catalog
	ProductGuard  dedupGuard
	Inventory     inventory
	Carts         cart.CartRepository
	Items         cart.ItemRepository
	Orders        orders.Repository
	Totals        totals
	Notifier      Notifier
	Confirmations ConfirmationScheduler
	Logger        *logger.Logger
	ItemWindow    time.Duration
}

// Service applies order intents to carts, orders and stock.
type Service struct {
	customers     customerStore
	catalog       catalog
	guard         dedupGuard
	inventory     inventory
	carts         cart.CartRepository
	items         cart.ItemRepository
	orders        orders.Repository
	totals        totals
	notifier      Notifier
	confirmations ConfirmationScheduler
	logg          *logger.Logger
	itemWindow    time.Duration
	now           func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Customers == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "customer store required")
	case params.Catalog == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "product catalog required")
	case params.ProductGuard == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "product dedup guard required")
	case params.Inventory == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "inventory guard required")
	case params.Carts == nil || params.Items == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart repositories required")
	case params.Orders == nil || params.Totals == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "order repository and totals required")
	case params.Notifier == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	window := params.ItemWindow
	if window <= 0 {
		window = defaultItemWindow
	}
	return &Service{
		customers:     params.Customers,
		catalog:       params.Catalog,
		guard:         params.ProductGuard,
		inventory:     params.Inventory,
		carts:         params.Carts,
		items:         params.Items,
		orders:        params.Orders,
		totals:        params.Totals,
		notifier:      params.Notifier,
		confirmations: params.Confirmations,
		logg:          logg,
		itemWindow:    window,
		now:           time.Now,
	}, nil
}

// Apply processes every code of the intent independently and returns one
// result per code, in order. The returned error is reserved for failures
// that prevent any code from being attempted.
func (s *Service) Apply(ctx context.Context, intent Intent) ([]ItemResult, error) {
	if intent.Tenant == nil || intent.Tenant.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant required")
	}
	if intent.Phone == "" || intent.MessageKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phone and message key required")
	}
	if len(intent.Codes) == 0 {
		return nil, nil
	}

	customer, err := s.customers.FindOrCreate(ctx, intent.Tenant.ID, intent.Phone, intent.SenderName)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve customer")
	}

	now := s.now().UTC()
	eventDate := EventDate(now, intent.Location)
	results := make([]ItemResult, 0, len(intent.Codes))
	for _, code := range intent.Codes {
		results = append(results, s.applyCode(ctx, intent, customer, code, now, eventDate))
	}
	return results, nil
}

// EventDate is the calendar day of now in loc, stored as UTC midnight.
func EventDate(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) applyCode(ctx context.Context, intent Intent, customer *models.Customer, code string, now, eventDate time.Time) ItemResult {
	res := ItemResult{Code: code}
	tenantID := intent.Tenant.ID
	logCtx := s.logg.WithFields(ctx, map[string]any{"tenant_id": tenantID.String(), "code": code})

	product, err := s.catalog.Resolve(ctx, tenantID, code)
	if err != nil {
		s.logg.Error(logCtx, "product lookup failed", err)
		return failed(res, OutcomeCartItemError, err)
	}
	if product == nil {
		res.Outcome = OutcomeProductNotFound
		return res
	}
	productID := product.ID
	res.ProductID = &productID

	dedupKey := intent.MessageKey + ":" + product.ID.String()
	seen, err := s.guard.CheckAndMarkWithin(ctx, dedupKey, intent.DedupWindow)
	if err != nil {
		s.logg.Warn(logCtx, "product dedup unavailable, relying on item window: "+err.Error())
	} else if seen {
		res.Outcome = OutcomeAlreadyProcessed
		return res
	}
	release := func() {
		if err := s.guard.Release(ctx, dedupKey); err != nil {
			s.logg.Warn(logCtx, "release product dedup key: "+err.Error())
		}
	}

	switch products.CheckStock(product, 1) {
	case products.StockOut:
		s.notifier.ProductUnavailable(ctx, UnavailableNotice{TenantID: tenantID, Phone: intent.Phone, Product: product})
		res.Outcome = OutcomeOutOfStock
		return res
	case products.StockInsufficient:
		res.Outcome = OutcomeInsufficientStock
		return res
	}

	bucket := cart.Bucket{
		TenantID:  tenantID,
		Phone:     intent.Phone,
		EventType: product.SaleType.EventType(),
		EventDate: eventDate,
	}
	openCart, err := s.ensureCart(ctx, bucket, customer, now)
	if err != nil {
		release()
		s.logg.Error(logCtx, "ensure cart failed", err)
		return failed(res, OutcomeCartCreationError, err)
	}
	cartID := openCart.ID
	res.CartID = &cartID

	order, err := s.ensureOrder(ctx, bucket, openCart, customer)
	if err != nil {
		release()
		s.logg.Error(logCtx, "ensure order failed", err)
		return failed(res, OutcomeCartCreationError, err)
	}
	orderID := order.ID
	res.OrderID = &orderID

	item, outcome, err := s.upsertItem(ctx, openCart, product, now)
	if err != nil {
		release()
		s.logg.Error(logCtx, "cart item upsert failed", err)
		return failed(res, OutcomeCartItemError, err)
	}
	res.Outcome = outcome
	res.Quantity = item.Quantity
	if !outcome.Applied() {
		return res
	}

	// Stock and totals run after the item write; failures here are logged and
	// the item stays added.
	if remaining, err := s.inventory.Commit(ctx, product, 1); err != nil {
		s.logg.Error(logCtx, "stock decrement failed", err)
	} else {
		res.RemainingStock = &remaining
	}

	total, err := s.totals.RecomputeTotal(ctx, order.ID, openCart.ID)
	if err != nil {
		s.logg.Error(logCtx, "order total recompute failed", err)
	} else {
		res.OrderTotal = &total
		order.TotalAmount = total
	}

	s.notifier.ItemAdded(ctx, ItemAddedNotice{
		TenantID:    tenantID,
		OrderID:     order.ID,
		Phone:       intent.Phone,
		Product:     product,
		Quantity:    item.Quantity,
		OrderTotal:  order.TotalAmount,
		Incremented: outcome == OutcomeIncremented,
		At:          now,
	})
	if s.confirmations != nil {
		if err := s.confirmations.Schedule(ctx, order, intent.Phone); err != nil {
			s.logg.Warn(logCtx, "schedule checkout confirmation: "+err.Error())
		}
	}
	return res
}

func failed(res ItemResult, outcome Outcome, err error) ItemResult {
	res.Outcome = outcome
	res.Error = err.Error()
	return res
}

// ensureCart returns the usable OPEN cart of the bucket, creating it when
// needed. An OPEN cart whose order was already paid or cancelled is closed
// first so the customer starts fresh.
func (s *Service) ensureCart(ctx context.Context, bucket cart.Bucket, customer *models.Customer, now time.Time) (*models.Cart, error) {
	existing, err := s.usableCart(ctx, bucket, now)
	if err != nil || existing != nil {
		return existing, err
	}

	created, _, err := db.InsertOrFetch(
		func() (*models.Cart, error) {
			record := &models.Cart{
				TenantID:      bucket.TenantID,
				CustomerID:    customer.ID,
				CustomerPhone: bucket.Phone,
				EventType:     bucket.EventType,
				EventDate:     bucket.EventDate,
			}
			return record, s.carts.Create(ctx, record)
		},
		func() (*models.Cart, error) { return s.usableCart(ctx, bucket, now) },
	)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, errCartUnavailable
	}
	return created, nil
}

func (s *Service) usableCart(ctx context.Context, bucket cart.Bucket, now time.Time) (*models.Cart, error) {
	record, err := s.carts.FindOpen(ctx, bucket)
	if err != nil || record == nil {
		return nil, err
	}
	linked, err := s.orders.FindByCart(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	if linked != nil && linked.Finalized() {
		if _, err := s.carts.Close(ctx, record.ID, now); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return record, nil
}

// ensureOrder returns the unpaid order of the cart. An unpaid order of the
// same bucket that no cart claims yet is adopted before a new one is made.
func (s *Service) ensureOrder(ctx context.Context, bucket cart.Bucket, openCart *models.Cart, customer *models.Customer) (*models.Order, error) {
	order, err := s.orders.FindOpenByCart(ctx, openCart.ID)
	if err != nil || order != nil {
		return order, err
	}

	orphan, err := s.orders.FindUnlinkedOpen(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if orphan != nil {
		linked, err := s.orders.LinkCart(ctx, orphan.ID, openCart.ID)
		if err != nil && !db.IsUniqueViolation(err, "") {
			return nil, err
		}
		if linked {
			cartID := openCart.ID
			orphan.CartID = &cartID
			return orphan, nil
		}
		if order, err := s.orders.FindOpenByCart(ctx, openCart.ID); err != nil || order != nil {
			return order, err
		}
	}

	created, _, err := db.InsertOrFetch(
		func() (*models.Order, error) {
			cartID := openCart.ID
			record := &models.Order{
				TenantID:      bucket.TenantID,
				CustomerID:    customer.ID,
				CustomerPhone: bucket.Phone,
				CartID:        &cartID,
				EventType:     bucket.EventType,
				EventDate:     bucket.EventDate,
			}
			return record, s.orders.Create(ctx, record)
		},
		func() (*models.Order, error) { return s.orders.FindOpenByCart(ctx, openCart.ID) },
	)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, errOrderUnavailable
	}
	return created, nil
}

// upsertItem adds the product to the cart or bumps its quantity. A repeat
// inside the item window is ignored; losing a concurrent write is retried
// once against the fresh row.
func (s *Service) upsertItem(ctx context.Context, openCart *models.Cart, product *models.Product, now time.Time) (*models.CartItem, Outcome, error) {
	item, err := s.items.Find(ctx, openCart.ID, product.ID)
	if err != nil {
		return nil, "", err
	}
	if item == nil {
		var inserted bool
		item, inserted, err = db.InsertOrFetch(
			func() (*models.CartItem, error) {
				record := &models.CartItem{
					CartID:      openCart.ID,
					ProductID:   product.ID,
					ProductCode: product.Code,
					ProductName: product.Name,
					UnitPrice:   product.Price,
					ImageURL:    product.ImageURL,
					Quantity:    1,
					LastAddedAt: now,
				}
				return record, s.items.Create(ctx, record)
			},
			func() (*models.CartItem, error) { return s.items.Find(ctx, openCart.ID, product.ID) },
		)
		if err != nil {
			return nil, "", err
		}
		if inserted {
			return item, OutcomeAdded, nil
		}
		if item == nil {
			return nil, "", errItemUnavailable
		}
	}
	return s.bump(ctx, item, now, true)
}

func (s *Service) bump(ctx context.Context, item *models.CartItem, now time.Time, retry bool) (*models.CartItem, Outcome, error) {
	if now.Sub(item.LastAddedAt) < s.itemWindow {
		return item, OutcomeDuplicateIgnored, nil
	}
	ok, err := s.items.Increment(ctx, item.ID, item.Quantity, now)
	if err != nil {
		return nil, "", err
	}
	if ok {
		item.Quantity++
		item.LastAddedAt = now
		return item, OutcomeIncremented, nil
	}
	fresh, err := s.items.Find(ctx, item.CartID, item.ProductID)
	if err != nil {
		return nil, "", err
	}
	if fresh == nil {
		return nil, "", errItemUnavailable
	}
	if !retry {
		return fresh, OutcomeDuplicateIgnored, nil
	}
	return s.bump(ctx, fresh, now, false)
}
