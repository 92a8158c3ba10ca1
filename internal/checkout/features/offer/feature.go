// Package offer turns promotions into redeemable coupons. A promotion is a
// template; redeeming it against an order creates a negative coupon
// adjustment. Applicability criteria attach as before observers of the
// order_applicable event, so deployments can stack their own checks next to
// the built-in ones.
package offer

import (
	"fmt"
	"time"

	"cartcore/internal/checkout"
	"cartcore/pkg/composition"
	"cartcore/pkg/domain"
	"cartcore/pkg/money"
)

// Name is the feature identifier used with Context.Select.
const Name = checkout.FeatureOffer

// Discount strategy names resolvable from Promotion.DiscountStrategy.
const (
	StrategyFixed      = "fixed"
	StrategyPercentage = "percentage"
)

// Register installs the offer feature into the registry.
func Register(reg *composition.Registry) {
	reg.DefineFeature(Name, func(f *composition.Feature) {
		// Coupon operations gate on the order type carrying the feature, and
		// orders hold the redeemed coupon and offer token adjustments.
		f.BehaviorFor(checkout.ModelOrder, func(t *composition.Type, b composition.Bindable) error {
			if _, ok := b.(*checkout.OrderBinding); !ok {
				return fmt.Errorf("offer requires *OrderBinding, got %T", b)
			}
			return nil
		})
		f.BehaviorFor(checkout.ModelPromotion, func(t *composition.Type, b composition.Bindable) error {
			pb, ok := b.(*checkout.PromotionBinding)
			if !ok {
				return fmt.Errorf("offer requires *PromotionBinding, got %T", b)
			}
			t.Structure(composition.Fragment{
				Name: "promotions",
				Columns: append([]composition.Column{
					{Name: "summary", Kind: composition.KindString},
					{Name: "details", Kind: composition.KindText},
					{Name: "terms_and_conditions", Kind: composition.KindText},
					{Name: "discount_amount", Kind: composition.KindInteger},
					{Name: "discount_currency", Kind: composition.KindString},
					{Name: "discount_strategy", Kind: composition.KindString},
				}, composition.Timestamps()...),
				Indexes: [][]string{{"discount_amount"}},
			})
			t.Events().Declare(checkout.EventOrderApplicable, checkout.EventApplyToOrder)
			pb.DiscountStrategies[StrategyFixed] = FixedDiscount
			pb.DiscountStrategies[StrategyPercentage] = PercentageDiscount
			return nil
		})
		f.BehaviorFor(checkout.ModelPromotionDiscountItem, func(t *composition.Type, b composition.Bindable) error {
			if _, ok := b.(*checkout.PromotionDiscountItemBinding); !ok {
				return fmt.Errorf("offer requires *PromotionDiscountItemBinding, got %T", b)
			}
			t.Structure(composition.Fragment{
				Name: "promotion_discount_items",
				Columns: append([]composition.Column{composition.BelongsTo("promotion")},
					composition.Reference("discounted")...),
				Indexes: [][]string{{"promotion_id"}, {"discounted_id"}},
			})
			return nil
		})
		f.BehaviorFor(checkout.ModelFeeAdjustment, func(t *composition.Type, b composition.Bindable) error {
			if _, ok := b.(*checkout.FeeAdjustmentBinding); !ok {
				return fmt.Errorf("offer requires *FeeAdjustmentBinding, got %T", b)
			}
			t.Structure(composition.Fragment{
				Name: "fee_adjustment_discounts",
				Columns: []composition.Column{
					{Name: "discount_code", Kind: composition.KindString},
				},
				Indexes: [][]string{{"discount_code"}},
			})
			return nil
		})
		f.BehaviorFor(checkout.ModelPurchaseItem, func(t *composition.Type, b composition.Bindable) error {
			if _, ok := b.(*checkout.PurchaseItemBinding); !ok {
				return fmt.Errorf("offer requires *PurchaseItemBinding, got %T", b)
			}
			// Removing a qualifying purchase must invalidate its coupon.
			return t.Events().Attach(checkout.EventBasketModify, composition.PhaseAfter, revalidateCoupons)
		})
	})

	registerCriteria(reg)
}

// registerCriteria attaches the built-in applicability checks. Each is its
// own feature definition under the offer name, mirroring how deployments add
// custom criteria.
func registerCriteria(reg *composition.Registry) {
	for _, criterion := range []struct {
		name string
		fn   composition.Observer
	}{
		{"expiration", checkExpiration},
		{"prevent_negative_balance", checkNegativeBalance},
		{"disableable", checkDisabled},
		{"item_specific", checkDiscountItems},
		{"discount_code", checkDiscountCode},
	} {
		fn := criterion.fn
		reg.DefineFeature(Name, func(f *composition.Feature) {
			f.BehaviorFor(checkout.ModelPromotion, func(t *composition.Type, b composition.Bindable) error {
				return t.Events().Attach(checkout.EventOrderApplicable, composition.PhaseBefore, fn)
			})
		})
	}

	// Expiration dates and the disabled flag carry schema.
	reg.DefineFeature(Name, func(f *composition.Feature) {
		f.BehaviorFor(checkout.ModelPromotion, func(t *composition.Type, b composition.Bindable) error {
			t.Structure(composition.Fragment{
				Name: "promotion_expiration",
				Columns: []composition.Column{
					{Name: "starts_at", Kind: composition.KindDatetime},
					{Name: "finishes_at", Kind: composition.KindDatetime},
				},
				Indexes: [][]string{{"starts_at"}, {"finishes_at"}},
			})
			t.Structure(composition.Fragment{
				Name: "promotion_disableable",
				Columns: []composition.Column{
					{Name: "disabled", Kind: composition.KindBoolean},
				},
				Indexes: [][]string{{"disabled"}},
			})
			t.Structure(composition.Fragment{
				Name: "promotion_discount_code",
				Columns: []composition.Column{
					{Name: "discount_code", Kind: composition.KindString},
				},
				Indexes: [][]string{{"discount_code"}},
			})
			return nil
		})
	})
}

// FixedDiscount grants the promotion's configured amount.
func FixedDiscount(scope *checkout.OfferScope) (money.Money, error) {
	return scope.Promotion.Discount, nil
}

// PercentageDiscount grants a fraction of the order's purchase subtotal.
func PercentageDiscount(scope *checkout.OfferScope) (money.Money, error) {
	parts := make([]money.Money, 0, 4)
	for _, item := range scope.View.PurchaseItemsByOrder(scope.Order.ID) {
		parts = append(parts, item.TotalPrice())
	}
	currency := scope.Promotion.Discount.Currency
	if len(parts) > 0 {
		currency = parts[0].Currency
	}
	sub, err := money.Sum(money.Zero(currency), parts)
	if err != nil {
		return money.Money{}, err
	}
	return sub.Scale(scope.Promotion.DiscountAmount / 100.0), nil
}

func offerScope(ev *composition.Event) (*checkout.OfferScope, *checkout.EventScope, bool) {
	scope, ok := ev.Subject.(*checkout.OfferScope)
	if !ok {
		return nil, nil, false
	}
	es, ok := ev.Scope.(*checkout.EventScope)
	if !ok {
		return nil, nil, false
	}
	return scope, es, true
}

// checkExpiration vetoes promotions outside their active window. Unset
// bounds are open.
func checkExpiration(ev *composition.Event) error {
	scope, _, ok := offerScope(ev)
	if !ok {
		return nil
	}
	date := scope.Order.CreatedAt
	if scope.Promotion.StartsAt != nil && !scope.Promotion.StartsAt.Before(date) {
		return checkout.ErrNotApplicable
	}
	if scope.Promotion.FinishesAt != nil && !date.Before(*scope.Promotion.FinishesAt) {
		return checkout.ErrNotApplicable
	}
	return nil
}

// checkNegativeBalance vetoes fixed discounts larger than the order total.
func checkNegativeBalance(ev *composition.Event) error {
	scope, es, ok := offerScope(ev)
	if !ok || scope.SkipRedeemed || scope.Promotion.Discount.IsZero() {
		return nil
	}
	total, err := es.Svc.TotalPrice(scope.View, scope.Order)
	if err != nil {
		return err
	}
	left, err := total.Sub(scope.Promotion.Discount)
	if err != nil {
		return err
	}
	if left.Amount < 0 {
		return checkout.ErrNotApplicable
	}
	return nil
}

// checkDisabled vetoes promotions switched off by an operator.
func checkDisabled(ev *composition.Event) error {
	scope, _, ok := offerScope(ev)
	if !ok {
		return nil
	}
	if scope.Promotion.Disabled {
		return checkout.ErrNotApplicable
	}
	return nil
}

// checkDiscountItems restricts item-specific promotions to orders carrying
// at least one of the promoted items. Promotions with no linked items apply
// to any order.
func checkDiscountItems(ev *composition.Event) error {
	scope, _, ok := offerScope(ev)
	if !ok {
		return nil
	}
	links := scope.View.DiscountItemsByPromotion(scope.Promotion.ID)
	if len(links) == 0 {
		return nil
	}
	for _, link := range links {
		if _, found := scope.View.PurchaseItemByRef(scope.Order.ID, link.Discounted); found {
			return nil
		}
	}
	return checkout.ErrNotApplicable
}

// checkDiscountCode requires coded promotions to be redeemed with their code,
// either entered at the till or held as an offer token, and at most once.
func checkDiscountCode(ev *composition.Event) error {
	scope, _, ok := offerScope(ev)
	if !ok || scope.SkipRedeemed || !scope.Promotion.HasDiscountCode() {
		return nil
	}
	code := scope.Promotion.DiscountCode
	matched := scope.PendingCouponCode == code
	if !matched {
		for _, fee := range scope.View.FeeAdjustmentsByOrder(scope.Order.ID) {
			if fee.Purpose == domain.PurposeOfferToken && fee.DiscountCode == code {
				matched = true
				break
			}
		}
	}
	if !matched {
		return checkout.ErrNotApplicable
	}
	for _, coupon := range checkout.Coupons(scope.View, scope.Order.ID) {
		if coupon.DiscountCode == code {
			return checkout.ErrNotApplicable
		}
	}
	return nil
}

// revalidateCoupons re-checks redeemed coupons after any basket change.
func revalidateCoupons(ev *composition.Event) error {
	change, ok := ev.Subject.(*checkout.BasketChange)
	if !ok {
		return nil
	}
	es, ok := ev.Scope.(*checkout.EventScope)
	if !ok {
		return nil
	}
	return es.Svc.RevalidateCoupons(es.Ctx, es.Tx, change.Order.ID)
}

// ActiveBetween reports whether a promotion is active at an instant,
// ignoring order context. Listing endpoints use it to preview promotions.
func ActiveBetween(promo domain.Promotion, at time.Time) bool {
	if promo.Disabled {
		return false
	}
	if promo.StartsAt != nil && !promo.StartsAt.Before(at) {
		return false
	}
	if promo.FinishesAt != nil && !at.Before(*promo.FinishesAt) {
		return false
	}
	return true
}
