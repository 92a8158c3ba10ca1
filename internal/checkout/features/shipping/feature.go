// Package shipping prices delivery for basket orders and tracks dispatch.
// Two calculators ship with the pack: weight bands over the aggregate order
// weight, and fixed per-product shipping prices. Both contribute to the same
// shipping ledger line, recalculated whenever the shipping address changes.
package shipping

import (
	"context"
	"fmt"
	"time"

	"cartcore/internal/checkout"
	"cartcore/internal/i18n"
	"cartcore/pkg/composition"
	"cartcore/pkg/domain"
	"cartcore/pkg/money"
)

// Name is the feature identifier used with Context.Select.
const Name = "shipping"

// Events declared on the order type by this pack.
const (
	EventShippingUpdated = "shipping_updated"
	EventDispatched      = "dispatched"
)

// Register installs the shipping feature into the registry.
func Register(reg *composition.Registry) {
	reg.DefineFeature(Name, func(f *composition.Feature) {
		f.BehaviorFor(checkout.ModelOrder, func(t *composition.Type, b composition.Bindable) error {
			ob, ok := b.(*checkout.OrderBinding)
			if !ok {
				return fmt.Errorf("shipping requires *OrderBinding, got %T", b)
			}
			t.Structure(composition.Fragment{
				Name: "order_tracking",
				Columns: []composition.Column{
					{Name: "tracking_code", Kind: composition.KindString},
					{Name: "dispatch_date", Kind: composition.KindDatetime},
				},
				Indexes: [][]string{{"tracking_code"}, {"dispatch_date"}},
			})
			t.Events().Declare(EventShippingUpdated, EventDispatched)
			ob.ShippingCalculators = append(ob.ShippingCalculators, ByWeight, ByFixedCost)
			if err := t.Events().Attach(checkout.AddressEvent("save", domain.AddressShipping), composition.PhaseAfter, recalculate); err != nil {
				return err
			}
			return t.Events().Attach(checkout.AddressEvent("destroy", domain.AddressShipping), composition.PhaseAfter, recalculate)
		})
		f.BehaviorFor(checkout.ModelProduct, func(t *composition.Type, b composition.Bindable) error {
			if _, ok := b.(*checkout.ProductBinding); !ok {
				return fmt.Errorf("shipping requires *ProductBinding, got %T", b)
			}
			t.Structure(composition.Fragment{
				Name: "item_shipping_by_weight",
				Columns: []composition.Column{
					{Name: "use_weight_for_shipping", Kind: composition.KindBoolean},
					{Name: "weight", Kind: composition.KindInteger},
				},
			})
			t.Structure(composition.Fragment{
				Name: "item_shipping_cost",
				Columns: []composition.Column{
					{Name: "shipping_price_amount", Kind: composition.KindInteger},
					{Name: "shipping_price_currency", Kind: composition.KindString},
				},
			})
			return nil
		})
	})
}

// TotalWeight sums the weight of every purchase whose product is flagged for
// weight-based shipping.
func TotalWeight(view domain.TransactionView, items []domain.PurchaseItem) int {
	total := 0
	for _, item := range items {
		if item.Item.Type != domain.EntityProduct {
			continue
		}
		product, ok := view.FindProduct(item.Item.ID)
		if !ok || !product.HasShippingWeight() {
			continue
		}
		total += product.Weight * item.Quantity
	}
	return total
}

// WeightPrice converts an aggregate weight in grams to a delivery price.
func WeightPrice(weight int, currency string) money.Money {
	var amount int64
	switch {
	case weight < 100:
		amount = 29
	case weight < 500:
		amount = 260
	case weight < 2000:
		amount = 499
	case weight >= 20000 && weight < 50000:
		amount = 899
	default:
		amount = 2999
	}
	return money.Money{Amount: amount, Currency: currency}
}

// ByWeight prices delivery from the aggregate order weight.
func ByWeight(scope *checkout.EventScope, order domain.Order, items []domain.PurchaseItem) (money.Money, error) {
	currency := orderCurrency(order, items)
	weight := TotalWeight(scope.View(), items)
	if weight == 0 {
		return money.Zero(currency), nil
	}
	return WeightPrice(weight, currency), nil
}

// ByFixedCost sums per-product shipping prices times quantity.
func ByFixedCost(scope *checkout.EventScope, order domain.Order, items []domain.PurchaseItem) (money.Money, error) {
	view := scope.View()
	total := money.Zero(orderCurrency(order, items))
	for _, item := range items {
		if item.Item.Type != domain.EntityProduct {
			continue
		}
		product, ok := view.FindProduct(item.Item.ID)
		if !ok || product.ShippingPrice == nil {
			continue
		}
		next, err := total.Add(product.ShippingPrice.Mul(int64(item.Quantity)))
		if err != nil {
			return money.Money{}, err
		}
		total = next
	}
	return total, nil
}

func orderCurrency(order domain.Order, items []domain.PurchaseItem) string {
	if len(items) > 0 {
		return items[0].Price.Currency
	}
	if order.Currency != "" {
		return order.Currency
	}
	return money.DefaultCurrency
}

// recalculate rebuilds the shipping adjustment after a shipping address
// change on a basket order.
func recalculate(ev *composition.Event) error {
	scope, ok := ev.Scope.(*checkout.EventScope)
	if !ok {
		return nil
	}
	view := scope.View()
	order, found := view.FindOrder(scope.OrderID)
	if !found || !order.Basket() {
		return nil
	}
	items := view.PurchaseItemsByOrder(order.ID)
	if len(items) == 0 {
		return nil
	}
	total := money.Zero(orderCurrency(order, items))
	for _, calc := range scope.Svc.Bindings().Order.ShippingCalculators {
		part, err := calc(scope, order, items)
		if err != nil {
			return err
		}
		next, err := total.Add(part)
		if err != nil {
			return err
		}
		total = next
	}
	events := scope.Svc.Bindings().Order.CompositionType().Events()
	return events.Fire(&composition.Event{
		Name:    EventShippingUpdated,
		Context: ev.Context,
		Subject: &order,
		Scope:   scope,
	}, func() error {
		name := scope.Svc.Catalog().T(i18n.KeyShippingItemName, nil)
		_, err := scope.Svc.FindOrAdjust(scope.Tx, order.ID, domain.PurposeShipping, name, total)
		return err
	})
}

// Dispatch stamps the dispatch date and optional tracking code, firing the
// dispatched event. A zero date clears dispatch state.
func Dispatch(ctx context.Context, svc *checkout.Service, orderID, trackingCode string, date time.Time) (domain.Order, domain.Result, error) {
	var updated domain.Order
	events := svc.Bindings().Order.CompositionType().Events()
	res, err := svc.Store().RunInTransaction(ctx, func(tx domain.Transaction) error {
		order, ok := tx.Snapshot().FindOrder(orderID)
		if !ok {
			return checkout.ErrNotFound{Entity: domain.EntityOrder, ID: orderID}
		}
		work := func() error {
			var txErr error
			updated, txErr = tx.UpdateOrder(orderID, func(o *domain.Order) error {
				if date.IsZero() {
					o.DispatchDate = nil
					o.TrackingCode = ""
					return nil
				}
				d := date
				o.DispatchDate = &d
				o.TrackingCode = trackingCode
				return nil
			})
			return txErr
		}
		if date.IsZero() || order.Dispatched() {
			return work()
		}
		scope := &checkout.EventScope{Ctx: ctx, Tx: tx, Svc: svc, OrderID: orderID}
		return events.Fire(&composition.Event{
			Name:    EventDispatched,
			Context: ctx,
			Subject: &order,
			Scope:   scope,
		}, work)
	})
	return updated, res, err
}
