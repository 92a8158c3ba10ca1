package checkout

import (
	"context"

	"cartcore/pkg/composition"
	"cartcore/pkg/domain"
	"cartcore/pkg/money"
)

// EventScope is attached to every event the service fires so observers can
// reach the enclosing transaction and service without globals.
type EventScope struct {
	Ctx     context.Context
	Tx      domain.Transaction
	Svc     *Service
	OrderID string
}

// View returns the transactional snapshot for observer reads.
func (s *EventScope) View() domain.TransactionView {
	return s.Tx.Snapshot()
}

// ShippingCalculator contributes one component of an order's shipping cost.
// Calculators are summed in registration order.
type ShippingCalculator func(scope *EventScope, order domain.Order, items []domain.PurchaseItem) (money.Money, error)

// DiscountStrategy computes the discount a promotion grants against an order.
type DiscountStrategy func(scope *OfferScope) (money.Money, error)

// OfferScope is the subject of promotion applicability and redemption events.
type OfferScope struct {
	Promotion         domain.Promotion
	Order             domain.Order
	View              domain.TransactionView
	PendingCouponCode string
	SkipRedeemed      bool
}

// OrderBinding is the bound descriptor for the order model. Feature packs
// extend it with calculator chains during composition.
type OrderBinding struct {
	composition.Holder
	ShippingCalculators []ShippingCalculator
}

// PurchaseItemBinding is the bound descriptor for purchase rows. The
// inventory feature enables per-row quantities.
type PurchaseItemBinding struct {
	composition.Holder
	QuantityEnabled bool
}

// ProductBinding is the bound descriptor for catalog entries. PurchaseBacked
// is set during deferred setup once purchase rows reference products, and
// guards product deletion.
type ProductBinding struct {
	composition.Holder
	PurchaseBacked bool
}

// FeeAdjustmentBinding is the bound descriptor for ledger lines.
type FeeAdjustmentBinding struct {
	composition.Holder
}

// AddressBinding is the bound descriptor for addresses.
type AddressBinding struct {
	composition.Holder
}

// PromotionBinding is the bound descriptor for promotion templates. The
// offer feature registers discount strategies and applicability criteria.
type PromotionBinding struct {
	composition.Holder
	DiscountStrategies map[string]DiscountStrategy
}

// PromotionDiscountItemBinding is the bound descriptor for the promotion to
// discounted-item join rows.
type PromotionDiscountItemBinding struct {
	composition.Holder
}

// Bindings collects the typed descriptors bound into one applied context.
type Bindings struct {
	Context               *composition.Context
	Order                 *OrderBinding
	PurchaseItem          *PurchaseItemBinding
	FeeAdjustment         *FeeAdjustmentBinding
	Address               *AddressBinding
	Product               *ProductBinding
	Promotion             *PromotionBinding
	PromotionDiscountItem *PromotionDiscountItemBinding
}
