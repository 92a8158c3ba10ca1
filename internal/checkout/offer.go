package checkout

import (
	"context"
	"errors"
	"strings"

	"cartcore/internal/i18n"
	"cartcore/pkg/composition"
	"cartcore/pkg/domain"
	"cartcore/pkg/money"
)

// Events declared on the promotion type by the offer feature pack.
const (
	EventOrderApplicable = "order_applicable"
	EventApplyToOrder    = "apply_to_order"
)

// FeatureOffer names the promotion feature pack.
const FeatureOffer = "offer"

// ErrNotApplicable is the veto returned by applicability criteria. It never
// escapes the service: a vetoed promotion simply does not apply.
var ErrNotApplicable = errors.New("promotion not applicable")

func (s *Service) promotionEvents() *composition.Events {
	return s.bindings.Promotion.CompositionType().Events()
}

// Coupons returns the redeemed coupon adjustments on an order.
func Coupons(view domain.TransactionView, orderID string) []domain.FeeAdjustment {
	var out []domain.FeeAdjustment
	for _, fee := range view.FeeAdjustmentsByOrder(orderID) {
		if fee.Purpose == domain.PurposeCoupon {
			out = append(out, fee)
		}
	}
	return out
}

// CouponCode returns the discount code of the first redeemed coupon.
func CouponCode(view domain.TransactionView, orderID string) string {
	for _, coupon := range Coupons(view, orderID) {
		if coupon.DiscountCode != "" {
			return coupon.DiscountCode
		}
	}
	return ""
}

// redeemedOn reports whether the promotion already produced an adjustment on
// the order.
func redeemedOn(view domain.TransactionView, promo domain.Promotion, orderID string) bool {
	for _, fee := range view.AdjustmentsByRelated(promo.Ref()) {
		if fee.OrderID == orderID {
			return true
		}
	}
	return false
}

// applicableFor runs the applicability criteria chain for a promotion
// against an order. Criteria attach as before observers of order_applicable;
// a veto with ErrNotApplicable means "does not apply", any other error
// aborts the transaction.
func (s *Service) applicableFor(ctx context.Context, tx domain.Transaction, promo domain.Promotion, order domain.Order, scope *OfferScope) (bool, error) {
	if !scope.SkipRedeemed && redeemedOn(tx.Snapshot(), promo, order.ID) {
		return false, nil
	}
	err := s.promotionEvents().Fire(&composition.Event{
		Name:    EventOrderApplicable,
		Context: ctx,
		Subject: scope,
		Scope:   &EventScope{Ctx: ctx, Tx: tx, Svc: s, OrderID: order.ID},
	}, nil)
	if errors.Is(err, ErrNotApplicable) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// calculatedDiscount resolves the promotion's strategy and computes the
// discount. Unknown strategies fall back to a zero discount.
func (s *Service) calculatedDiscount(scope *OfferScope) (money.Money, error) {
	name := scope.Promotion.DiscountStrategy
	if name == "" {
		name = "fixed"
	}
	strategy, ok := s.bindings.Promotion.DiscountStrategies[name]
	if !ok {
		return money.Zero(scope.Promotion.Discount.Currency), nil
	}
	return strategy(scope)
}

// applyPromotion redeems a promotion against an order inside the
// transaction, creating the coupon adjustment when the criteria pass.
func (s *Service) applyPromotion(ctx context.Context, tx domain.Transaction, promo domain.Promotion, orderID, pendingCode string) (bool, error) {
	order, ok := tx.Snapshot().FindOrder(orderID)
	if !ok {
		return false, ErrNotFound{Entity: domain.EntityOrder, ID: orderID}
	}
	scope := &OfferScope{
		Promotion:         promo,
		Order:             order,
		View:              tx.Snapshot(),
		PendingCouponCode: pendingCode,
	}
	applicable, err := s.applicableFor(ctx, tx, promo, order, scope)
	if err != nil || !applicable {
		return false, err
	}
	applied := false
	err = s.promotionEvents().Fire(&composition.Event{
		Name:    EventApplyToOrder,
		Context: ctx,
		Subject: scope,
		Scope:   &EventScope{Ctx: ctx, Tx: tx, Svc: s, OrderID: orderID},
	}, func() error {
		discount, err := s.calculatedDiscount(scope)
		if err != nil {
			return err
		}
		name := s.catalog.T(i18n.KeyOfferItemName, map[string]string{"summary": promo.Summary})
		if promo.Summary == "" {
			name = s.catalog.T(i18n.KeyCouponItemName, map[string]string{"code": pendingCode})
		}
		_, err = tx.CreateFeeAdjustment(domain.FeeAdjustment{
			OrderID:      orderID,
			Purpose:      domain.PurposeCoupon,
			Price:        discount.Neg(),
			DisplayName:  name,
			Related:      promo.Ref(),
			DiscountCode: pendingCode,
		})
		if err == nil {
			applied = true
		}
		return err
	})
	return applied, err
}

// ApplyCouponCode assigns a coupon code to a basket. An empty code removes
// any redeemed coupon; a code matching the current coupon is a no-op;
// otherwise every promotion carrying the code is tried in turn until one
// applies. Returns whether a coupon was redeemed.
func (s *Service) ApplyCouponCode(ctx context.Context, orderID, code string) (bool, domain.Result, error) {
	if !s.hasFeature(FeatureOffer) {
		return false, domain.Result{}, ErrFeatureDisabled{Feature: FeatureOffer}
	}
	started := s.clock.Now()
	trimmed := strings.TrimSpace(code)
	applied := false
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.Snapshot().FindOrder(orderID); !ok {
			return ErrNotFound{Entity: domain.EntityOrder, ID: orderID}
		}
		if trimmed == "" {
			return s.removeCouponIn(tx, orderID)
		}
		if CouponCode(tx.Snapshot(), orderID) == trimmed {
			return nil
		}
		for _, promo := range tx.Snapshot().PromotionsByCode(trimmed) {
			ok, err := s.applyPromotion(ctx, tx, promo, orderID, trimmed)
			if err != nil {
				return err
			}
			if ok {
				applied = true
				break
			}
		}
		return nil
	})
	s.observe(ctx, "apply_coupon_code", err == nil, started)
	return applied, res, err
}

// ApplyPromotion redeems a single promotion against an order without a
// coupon code, for promotions pushed by campaign rather than entered at the
// till.
func (s *Service) ApplyPromotion(ctx context.Context, promotionID, orderID string) (bool, domain.Result, error) {
	if !s.hasFeature(FeatureOffer) {
		return false, domain.Result{}, ErrFeatureDisabled{Feature: FeatureOffer}
	}
	started := s.clock.Now()
	applied := false
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		promo, ok := tx.Snapshot().FindPromotion(promotionID)
		if !ok {
			return ErrNotFound{Entity: domain.EntityPromotion, ID: promotionID}
		}
		var err error
		applied, err = s.applyPromotion(ctx, tx, promo, orderID, "")
		return err
	})
	s.observe(ctx, "apply_promotion", err == nil, started)
	return applied, res, err
}

// removeNonApplicableCouponsIn drops redeemed coupons from a basket whose
// promotion no longer passes its criteria. Redeemed-state checks are skipped
// so removing a qualifying purchase invalidates its coupon.
func (s *Service) removeNonApplicableCouponsIn(ctx context.Context, tx domain.Transaction, orderID string) error {
	order, ok := tx.Snapshot().FindOrder(orderID)
	if !ok || !order.Basket() {
		return nil
	}
	for _, coupon := range Coupons(tx.Snapshot(), orderID) {
		if coupon.Related.Type != domain.EntityPromotion {
			continue
		}
		promo, ok := tx.Snapshot().FindPromotion(coupon.Related.ID)
		if !ok {
			continue
		}
		scope := &OfferScope{
			Promotion:         promo,
			Order:             order,
			View:              tx.Snapshot(),
			PendingCouponCode: coupon.DiscountCode,
			SkipRedeemed:      true,
		}
		applicable, err := s.applicableFor(ctx, tx, promo, order, scope)
		if err != nil {
			return err
		}
		if !applicable {
			if err := tx.DeleteFeeAdjustment(coupon.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// RevalidateCoupons re-checks redeemed coupons inside an open transaction.
// The offer pack calls this after basket changes.
func (s *Service) RevalidateCoupons(ctx context.Context, tx domain.Transaction, orderID string) error {
	return s.removeNonApplicableCouponsIn(ctx, tx, orderID)
}

// RemoveNonApplicableCoupons re-validates every redeemed coupon on a basket.
func (s *Service) RemoveNonApplicableCoupons(ctx context.Context, orderID string) (domain.Result, error) {
	if !s.hasFeature(FeatureOffer) {
		return domain.Result{}, ErrFeatureDisabled{Feature: FeatureOffer}
	}
	return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return s.removeNonApplicableCouponsIn(ctx, tx, orderID)
	})
}

// removeCouponIn deletes coded coupons and any offer token adjustments.
func (s *Service) removeCouponIn(tx domain.Transaction, orderID string) error {
	for _, fee := range tx.Snapshot().FeeAdjustmentsByOrder(orderID) {
		coded := fee.Purpose == domain.PurposeCoupon && fee.DiscountCode != ""
		if !coded && fee.Purpose != domain.PurposeOfferToken {
			continue
		}
		if err := tx.DeleteFeeAdjustment(fee.ID); err != nil {
			return err
		}
	}
	return nil
}

// RemoveCoupon strips coded coupons and offer tokens from an order.
func (s *Service) RemoveCoupon(ctx context.Context, orderID string) (domain.Result, error) {
	if !s.hasFeature(FeatureOffer) {
		return domain.Result{}, ErrFeatureDisabled{Feature: FeatureOffer}
	}
	return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.Snapshot().FindOrder(orderID); !ok {
			return ErrNotFound{Entity: domain.EntityOrder, ID: orderID}
		}
		return s.removeCouponIn(tx, orderID)
	})
}
