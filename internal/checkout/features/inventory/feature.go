// Package inventory tracks stock levels for products and enables per-row
// quantities on purchases. Products with a nil stock level are untracked and
// never constrain purchases.
package inventory

import (
	"fmt"

	"cartcore/internal/checkout"
	"cartcore/pkg/composition"
	"cartcore/pkg/domain"
)

// Name is the feature identifier used with Context.Select.
const Name = "inventory"

// Events declared on the product type by this pack.
const (
	EventOutOfStock       = "out_of_stock"
	EventStockReplenished = "stock_replenished"
)

// ErrInsufficientStock vetoes basket changes a product cannot satisfy.
type ErrInsufficientStock struct {
	ProductID string
	Requested int
	Available int
}

func (e ErrInsufficientStock) Error() string {
	return fmt.Sprintf("product %s has %d in stock, %d requested", e.ProductID, e.Available, e.Requested)
}

// Register installs the inventory feature into the registry.
func Register(reg *composition.Registry) {
	reg.DefineFeature(Name, func(f *composition.Feature) {
		f.BehaviorFor(checkout.ModelProduct, func(t *composition.Type, b composition.Bindable) error {
			if _, ok := b.(*checkout.ProductBinding); !ok {
				return fmt.Errorf("inventory requires *ProductBinding, got %T", b)
			}
			t.Structure(composition.Fragment{
				Name: "item_stockable",
				Columns: []composition.Column{
					{Name: "stock_levels", Kind: composition.KindInteger},
				},
				Indexes: [][]string{{"stock_levels"}},
			})
			t.Events().Declare(EventStockReplenished, EventOutOfStock)
			return nil
		})
		f.BehaviorFor(checkout.ModelPurchaseItem, func(t *composition.Type, b composition.Bindable) error {
			pb, ok := b.(*checkout.PurchaseItemBinding)
			if !ok {
				return fmt.Errorf("inventory requires *PurchaseItemBinding, got %T", b)
			}
			pb.QuantityEnabled = true
			t.Structure(composition.Fragment{
				Name: "purchase_inventory",
				Columns: []composition.Column{
					{Name: "quantity", Kind: composition.KindInteger},
				},
			})
			if err := t.Events().Attach(checkout.EventBasketModify, composition.PhaseBefore, checkStock); err != nil {
				return err
			}
			return t.Events().Attach(checkout.EventBasketModify, composition.PhaseAfter, applyStockChange)
		})
		f.BehaviorFor(checkout.ModelFeeAdjustment, func(t *composition.Type, b composition.Bindable) error {
			if _, ok := b.(*checkout.FeeAdjustmentBinding); !ok {
				return fmt.Errorf("inventory requires *FeeAdjustmentBinding, got %T", b)
			}
			t.Structure(composition.Fragment{
				Name: "purchase_refundable",
				Columns: []composition.Column{
					{Name: "quantity", Kind: composition.KindInteger},
				},
			})
			return nil
		})
	})
}

// quantityDelta is the stock consumed by a basket change: positive means
// more units leave the shelf.
func quantityDelta(change *checkout.BasketChange) int {
	after := 0
	if change.After != nil {
		after = change.After.Quantity
	}
	before := 0
	if change.Before != nil {
		before = change.Before.Quantity
	}
	return after - before
}

func productFor(view domain.TransactionView, change *checkout.BasketChange) (domain.Product, bool) {
	row := change.After
	if row == nil {
		row = change.Before
	}
	if row == nil || row.Item.Type != domain.EntityProduct {
		return domain.Product{}, false
	}
	return view.FindProduct(row.Item.ID)
}

// checkStock vetoes basket changes exceeding available stock.
func checkStock(ev *composition.Event) error {
	change, ok := ev.Subject.(*checkout.BasketChange)
	if !ok {
		return nil
	}
	scope, ok := ev.Scope.(*checkout.EventScope)
	if !ok {
		return nil
	}
	delta := quantityDelta(change)
	if delta <= 0 {
		return nil
	}
	product, found := productFor(scope.View(), change)
	if !found || !product.TrackingInventory() {
		return nil
	}
	if !product.HasInventory(delta) {
		return ErrInsufficientStock{
			ProductID: product.ID,
			Requested: delta,
			Available: *product.StockLevel,
		}
	}
	return nil
}

// applyStockChange moves stock after the basket row persisted, restocking on
// removal, and drops rows whose quantity reached zero.
func applyStockChange(ev *composition.Event) error {
	change, ok := ev.Subject.(*checkout.BasketChange)
	if !ok {
		return nil
	}
	scope, ok := ev.Scope.(*checkout.EventScope)
	if !ok {
		return nil
	}
	if delta := quantityDelta(change); delta != 0 {
		if product, found := productFor(scope.View(), change); found {
			if err := ChangeInventory(scope, product.ID, -delta); err != nil {
				return err
			}
		}
	}
	if change.After != nil && change.After.Quantity <= 0 && change.Order.Basket() {
		return scope.Tx.DeletePurchaseItem(change.After.ID)
	}
	return nil
}

// ChangeInventory moves a tracked product's stock level by delta, firing
// stock_replenished when the level recovers from zero and out_of_stock when
// it falls to zero.
func ChangeInventory(scope *checkout.EventScope, productID string, delta int) error {
	product, ok := scope.View().FindProduct(productID)
	if !ok || !product.TrackingInventory() || delta == 0 {
		return nil
	}
	oldLevel := *product.StockLevel
	newLevel := oldLevel + delta
	update := func() error {
		_, err := scope.Tx.UpdateProduct(productID, func(p *domain.Product) error {
			level := newLevel
			p.StockLevel = &level
			return nil
		})
		return err
	}
	events := scope.Svc.Bindings().Product.CompositionType().Events()
	switch {
	case oldLevel <= 0 && newLevel > 0:
		return events.Fire(&composition.Event{
			Name: EventStockReplenished, Context: scope.Ctx, Subject: &product, Scope: scope,
		}, update)
	case newLevel <= 0:
		return events.Fire(&composition.Event{
			Name: EventOutOfStock, Context: scope.Ctx, Subject: &product, Scope: scope,
		}, update)
	default:
		return update()
	}
}
