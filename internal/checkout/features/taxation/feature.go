// Package taxation adds per-product tax rates and keeps a tax ledger line on
// basket orders in step with their billing address.
package taxation

import (
	"fmt"

	"cartcore/internal/checkout"
	"cartcore/internal/i18n"
	"cartcore/pkg/composition"
	"cartcore/pkg/domain"
	"cartcore/pkg/money"
)

// Name is the feature identifier used with Context.Select.
const Name = "taxation"

// EventTaxationUpdated fires on the order type around every tax recalculation.
const EventTaxationUpdated = "taxation_updated"

// Register installs the taxation feature into the registry.
func Register(reg *composition.Registry) {
	reg.DefineFeature(Name, func(f *composition.Feature) {
		f.BehaviorFor(checkout.ModelProduct, func(t *composition.Type, b composition.Bindable) error {
			if _, ok := b.(*checkout.ProductBinding); !ok {
				return fmt.Errorf("taxation requires *ProductBinding, got %T", b)
			}
			t.Structure(composition.Fragment{
				Name: "item_tax_rates",
				Columns: []composition.Column{
					{Name: "tax_rate", Kind: composition.KindDecimal},
				},
			})
			return nil
		})
		f.BehaviorFor(checkout.ModelOrder, func(t *composition.Type, b composition.Bindable) error {
			if _, ok := b.(*checkout.OrderBinding); !ok {
				return fmt.Errorf("taxation requires *OrderBinding, got %T", b)
			}
			t.Events().Declare(EventTaxationUpdated)
			if err := t.Events().Attach(checkout.AddressEvent("save", ""), composition.PhaseAfter, recalculate); err != nil {
				return err
			}
			return t.Events().Attach(checkout.AddressEvent("destroy", ""), composition.PhaseAfter, recalculate)
		})
	})
}

// TaxRate resolves the 0..1 tax fraction for a purchase row.
func TaxRate(view domain.TransactionView, item domain.PurchaseItem) float64 {
	if item.Item.Type != domain.EntityProduct {
		return 0
	}
	product, ok := view.FindProduct(item.Item.ID)
	if !ok {
		return 0
	}
	return product.TaxRate
}

// TaxCost computes the tax owed for one purchase row.
func TaxCost(view domain.TransactionView, item domain.PurchaseItem) money.Money {
	return item.TotalPrice().Scale(TaxRate(view, item))
}

// recalculate rebuilds the order's tax adjustment after an address change.
// Non-basket orders keep their ledger frozen.
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
	parts := make([]money.Money, 0, len(items))
	for _, item := range items {
		parts = append(parts, TaxCost(view, item))
	}
	total, err := money.Sum(money.Zero(items[0].Price.Currency), parts)
	if err != nil {
		return err
	}
	events := scope.Svc.Bindings().Order.CompositionType().Events()
	return events.Fire(&composition.Event{
		Name:    EventTaxationUpdated,
		Context: ev.Context,
		Subject: &order,
		Scope:   scope,
	}, func() error {
		name := scope.Svc.Catalog().T(i18n.KeyTaxationItemName, nil)
		_, err := scope.Svc.FindOrAdjust(scope.Tx, order.ID, domain.PurposeTax, name, total)
		return err
	})
}
