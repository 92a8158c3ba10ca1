// Package refund enables the refund operations on the checkout service.
// Refunds are negative fee adjustments, so refunding never rewrites order
// history; the pack declares the events the service fires around them.
package refund

import (
	"fmt"

	"cartcore/internal/checkout"
	"cartcore/pkg/composition"
)

// Name is the feature identifier used with Context.Select.
const Name = checkout.FeatureRefund

// Register installs the refund feature into the registry.
func Register(reg *composition.Registry) {
	reg.DefineFeature(Name, func(f *composition.Feature) {
		f.BehaviorFor(checkout.ModelPurchaseItem, func(t *composition.Type, b composition.Bindable) error {
			if _, ok := b.(*checkout.PurchaseItemBinding); !ok {
				return fmt.Errorf("refund requires *PurchaseItemBinding, got %T", b)
			}
			t.Events().Declare(checkout.EventRefundPurchase)
			return nil
		})
		f.BehaviorFor(checkout.ModelOrder, func(t *composition.Type, b composition.Bindable) error {
			if _, ok := b.(*checkout.OrderBinding); !ok {
				return fmt.Errorf("refund requires *OrderBinding, got %T", b)
			}
			t.Events().Declare(checkout.EventRefundPayment)
			return nil
		})
	})
}
