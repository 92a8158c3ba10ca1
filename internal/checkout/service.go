// Package checkout is the composition root for the shop domain: it registers
// the built-in model definitions, binds them into an applied context, and
// exposes the transactional order lifecycle on top of a persistent store.
package checkout

import (
	"context"
	"fmt"
	"time"

	"cartcore/internal/i18n"
	"cartcore/pkg/composition"
	"cartcore/pkg/domain"
	"cartcore/pkg/money"
)

// Logger is the minimal logging surface the service depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// ErrNotFound is returned when a referenced entity is missing.
type ErrNotFound struct {
	Entity domain.EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ErrFeatureDisabled is returned by operations that require a feature pack
// the context was composed without.
type ErrFeatureDisabled struct {
	Feature string
}

func (e ErrFeatureDisabled) Error() string {
	return fmt.Sprintf("feature %q is not applied", e.Feature)
}

// Service exposes higher-level transactional operations over the bound shop
// context.
type Service struct {
	store    domain.PersistentStore
	bindings *Bindings
	merchant MerchantProcessor
	metrics  MetricsRecorder
	catalog  *i18n.Catalog
	archiver InvoiceArchiver
	logger   Logger
	clock    Clock
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithMerchant installs the payment processor dispatched during checkout.
func WithMerchant(m MerchantProcessor) ServiceOption {
	return func(s *Service) { s.merchant = m }
}

// WithMetricsRecorder installs an operation metrics sink.
func WithMetricsRecorder(m MetricsRecorder) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithCatalog overrides the message catalog used for ledger display names.
func WithCatalog(c *i18n.Catalog) ServiceOption {
	return func(s *Service) { s.catalog = c }
}

// WithInvoiceArchiver installs an archive sink for completed orders.
func WithInvoiceArchiver(a InvoiceArchiver) ServiceOption {
	return func(s *Service) { s.archiver = a }
}

// WithLogger overrides the logger.
func WithLogger(l Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source.
func WithClock(c Clock) ServiceOption {
	return func(s *Service) { s.clock = c }
}

// NewService constructs a service over an applied context and store.
func NewService(store domain.PersistentStore, bindings *Bindings, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		bindings: bindings,
		merchant: UnimplementedMerchant{},
		catalog:  i18n.NewCatalog(""),
		logger:   noopLogger{},
		clock:    systemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying persistent store.
func (s *Service) Store() domain.PersistentStore { return s.store }

// Bindings returns the bound type descriptors.
func (s *Service) Bindings() *Bindings { return s.bindings }

// Catalog returns the message catalog in use.
func (s *Service) Catalog() *i18n.Catalog { return s.catalog }

func (s *Service) observe(ctx context.Context, op string, success bool, started time.Time) {
	if s.metrics != nil {
		s.metrics.Observe(ctx, op, success, time.Since(started))
	}
}

func (s *Service) orderEvents() *composition.Events {
	return s.bindings.Order.CompositionType().Events()
}

func (s *Service) purchaseEvents() *composition.Events {
	return s.bindings.PurchaseItem.CompositionType().Events()
}

func (s *Service) hasFeature(name string) bool {
	return s.bindings.Order.CompositionType().HasFeature(name)
}

// CreateOrder persists a new order, defaulting to the basket status.
func (s *Service) CreateOrder(ctx context.Context, order domain.Order) (domain.Order, domain.Result, error) {
	started := s.clock.Now()
	var created domain.Order
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var txErr error
		created, txErr = tx.CreateOrder(order)
		return txErr
	})
	s.observe(ctx, "create_order", err == nil, started)
	return created, res, err
}

// CreateProduct persists a new catalog entry.
func (s *Service) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, domain.Result, error) {
	started := s.clock.Now()
	var created domain.Product
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var txErr error
		created, txErr = tx.CreateProduct(product)
		return txErr
	})
	s.observe(ctx, "create_product", err == nil, started)
	return created, res, err
}

// DeleteProduct removes a catalog entry. Products referenced by purchases
// are protected by a validation rule once the purchase model is composed.
func (s *Service) DeleteProduct(ctx context.Context, id string) (domain.Result, error) {
	started := s.clock.Now()
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteProduct(id)
	})
	s.observe(ctx, "delete_product", err == nil, started)
	return res, err
}

// CreatePromotion persists a promotion template.
func (s *Service) CreatePromotion(ctx context.Context, promo domain.Promotion) (domain.Promotion, domain.Result, error) {
	started := s.clock.Now()
	var created domain.Promotion
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var txErr error
		created, txErr = tx.CreatePromotion(promo)
		return txErr
	})
	s.observe(ctx, "create_promotion", err == nil, started)
	return created, res, err
}

// LinkPromotionItem restricts a promotion to a discounted item through the
// join model. The pair must be unique.
func (s *Service) LinkPromotionItem(ctx context.Context, promotionID string, discounted domain.ItemRef) (domain.PromotionDiscountItem, domain.Result, error) {
	var created domain.PromotionDiscountItem
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		view := tx.Snapshot()
		if _, ok := view.FindPromotion(promotionID); !ok {
			return ErrNotFound{Entity: domain.EntityPromotion, ID: promotionID}
		}
		var txErr error
		created, txErr = tx.CreatePromotionDiscountItem(domain.PromotionDiscountItem{
			PromotionID: promotionID,
			Discounted:  discounted,
		})
		return txErr
	})
	return created, res, err
}

// AddOptions tune how an item lands in the basket.
type AddOptions struct {
	Quantity    int          // applied only when the purchase type supports quantity
	Price       *money.Money // overrides the item's purchase price
	DisplayName string       // overrides the item's display name
}

// BasketChange is the subject of basket_modify events. After is the
// prospective row (nil on removal); Before is the previous row (nil on first
// add).
type BasketChange struct {
	Order  domain.Order
	Before *domain.PurchaseItem
	After  *domain.PurchaseItem
}

// Add finds or builds the purchase row for (order, brought item) and applies
// the requested details. Basket mutations fire basket_modify so feature
// packs can veto or react.
func (s *Service) Add(ctx context.Context, orderID string, item domain.Purchasable, opts AddOptions) (domain.PurchaseItem, domain.Result, error) {
	started := s.clock.Now()
	var saved domain.PurchaseItem
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		view := tx.Snapshot()
		order, ok := view.FindOrder(orderID)
		if !ok {
			return ErrNotFound{Entity: domain.EntityOrder, ID: orderID}
		}
		ref := item.Ref()
		price := item.PurchasePrice()
		if opts.Price != nil {
			price = *opts.Price
		}
		name := item.PurchaseDisplayName()
		if opts.DisplayName != "" {
			name = opts.DisplayName
		}

		existing, found := view.PurchaseItemByRef(orderID, ref)
		next := existing
		if !found {
			next = domain.PurchaseItem{OrderID: orderID, Item: ref, Quantity: 1}
		}
		next.Price = price
		next.DisplayName = name
		if s.bindings.PurchaseItem.QuantityEnabled {
			if opts.Quantity > 0 {
				next.Quantity = opts.Quantity
			}
		} else {
			next.Quantity = 1
		}

		var before *domain.PurchaseItem
		if found {
			b := existing
			before = &b
		}
		change := &BasketChange{Order: order, Before: before, After: &next}
		scope := &EventScope{Ctx: ctx, Tx: tx, Svc: s, OrderID: orderID}
		work := func() error {
			var txErr error
			if found {
				saved, txErr = tx.UpdatePurchaseItem(existing.ID, func(p *domain.PurchaseItem) error {
					*p = next
					p.ID = existing.ID
					return nil
				})
			} else {
				saved, txErr = tx.CreatePurchaseItem(next)
			}
			if txErr == nil {
				*change.After = saved
			}
			return txErr
		}
		if order.Basket() {
			return s.purchaseEvents().Fire(&composition.Event{
				Name: EventBasketModify, Context: ctx, Subject: change, Scope: scope,
			}, work)
		}
		return work()
	})
	s.observe(ctx, "basket_add", err == nil, started)
	return saved, res, err
}

// Remove deletes the purchase row for (order, brought item), if any.
func (s *Service) Remove(ctx context.Context, orderID string, item domain.ItemRef) (domain.Result, error) {
	started := s.clock.Now()
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		view := tx.Snapshot()
		order, ok := view.FindOrder(orderID)
		if !ok {
			return ErrNotFound{Entity: domain.EntityOrder, ID: orderID}
		}
		existing, found := view.PurchaseItemByRef(orderID, item)
		if !found {
			return nil
		}
		change := &BasketChange{Order: order, Before: &existing, After: nil}
		scope := &EventScope{Ctx: ctx, Tx: tx, Svc: s, OrderID: orderID}
		work := func() error {
			return tx.DeletePurchaseItem(existing.ID)
		}
		if order.Basket() {
			return s.purchaseEvents().Fire(&composition.Event{
				Name: EventBasketModify, Context: ctx, Subject: change, Scope: scope,
			}, work)
		}
		return work()
	})
	s.observe(ctx, "basket_remove", err == nil, started)
	return res, err
}

// UpdateQuantities applies a purchase-id to quantity map in one transaction.
func (s *Service) UpdateQuantities(ctx context.Context, orderID string, quantities map[string]int) (domain.Result, error) {
	if !s.bindings.PurchaseItem.QuantityEnabled {
		return domain.Result{}, ErrFeatureDisabled{Feature: "inventory"}
	}
	return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		view := tx.Snapshot()
		order, ok := view.FindOrder(orderID)
		if !ok {
			return ErrNotFound{Entity: domain.EntityOrder, ID: orderID}
		}
		for purchaseID, quantity := range quantities {
			existing, ok := view.FindPurchaseItem(purchaseID)
			if !ok || existing.OrderID != orderID {
				return ErrNotFound{Entity: domain.EntityPurchaseItem, ID: purchaseID}
			}
			next := existing
			next.Quantity = quantity
			before := existing
			change := &BasketChange{Order: order, Before: &before, After: &next}
			scope := &EventScope{Ctx: ctx, Tx: tx, Svc: s, OrderID: orderID}
			work := func() error {
				updated, txErr := tx.UpdatePurchaseItem(purchaseID, func(p *domain.PurchaseItem) error {
					p.Quantity = quantity
					return nil
				})
				if txErr == nil {
					*change.After = updated
				}
				return txErr
			}
			var err error
			if order.Basket() {
				err = s.purchaseEvents().Fire(&composition.Event{
					Name: EventBasketModify, Context: ctx, Subject: change, Scope: scope,
				}, work)
			} else {
				err = work()
			}
			if err != nil {
				return err
			}
			view = tx.Snapshot()
		}
		return nil
	})
}

// SubTotal sums purchase line totals, excluding adjustments.
func (s *Service) SubTotal(view domain.TransactionView, orderID string) (money.Money, error) {
	items := view.PurchaseItemsByOrder(orderID)
	prices := make([]money.Money, 0, len(items))
	for _, item := range items {
		prices = append(prices, item.TotalPrice())
	}
	return money.Sum(money.Zero(s.detectedCurrency(view, orderID)), prices)
}

// AdjustmentTotal sums ledger lines such as shipping, tax, and refunds.
func (s *Service) AdjustmentTotal(view domain.TransactionView, orderID string) (money.Money, error) {
	fees := view.FeeAdjustmentsByOrder(orderID)
	prices := make([]money.Money, 0, len(fees))
	for _, fee := range fees {
		prices = append(prices, fee.Price)
	}
	return money.Sum(money.Zero(s.detectedCurrency(view, orderID)), prices)
}

// CalculatedTotal is the live sum of purchases plus adjustments.
func (s *Service) CalculatedTotal(view domain.TransactionView, orderID string) (money.Money, error) {
	sub, err := s.SubTotal(view, orderID)
	if err != nil {
		return money.Money{}, err
	}
	fees, err := s.AdjustmentTotal(view, orderID)
	if err != nil {
		return money.Money{}, err
	}
	return sub.Add(fees)
}

// TotalPrice returns the frozen order total when set and non-zero, falling
// back to the live calculation.
func (s *Service) TotalPrice(view domain.TransactionView, order domain.Order) (money.Money, error) {
	if order.Total != nil && !order.Total.IsZero() {
		return *order.Total, nil
	}
	return s.CalculatedTotal(view, order.ID)
}

// detectedCurrency infers the order currency without touching totals, to
// avoid recursion: first purchase price, then the frozen total, then the
// default.
func (s *Service) detectedCurrency(view domain.TransactionView, orderID string) string {
	if items := view.PurchaseItemsByOrder(orderID); len(items) > 0 {
		return items[0].Price.Currency
	}
	if order, ok := view.FindOrder(orderID); ok {
		if order.Currency != "" {
			return order.Currency
		}
		if order.Total != nil && order.Total.Currency != "" {
			return order.Total.Currency
		}
	}
	return money.DefaultCurrency
}

// FindOrAdjust finds the single ledger line for a purpose and updates it, or
// creates it. Used by the taxation and shipping packs for their recurring
// adjustments.
func (s *Service) FindOrAdjust(tx domain.Transaction, orderID string, purpose domain.AdjustmentPurpose, displayName string, price money.Money) (domain.FeeAdjustment, error) {
	view := tx.Snapshot()
	for _, fee := range view.FeeAdjustmentsByOrder(orderID) {
		if fee.Purpose == purpose {
			return tx.UpdateFeeAdjustment(fee.ID, func(f *domain.FeeAdjustment) error {
				f.DisplayName = displayName
				f.Price = price
				return nil
			})
		}
	}
	return tx.CreateFeeAdjustment(domain.FeeAdjustment{
		OrderID:     orderID,
		Purpose:     purpose,
		DisplayName: displayName,
		Price:       price,
	})
}
