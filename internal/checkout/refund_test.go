package checkout_test

import (
	"context"
	"errors"
	"testing"

	"cartcore/internal/checkout"
	"cartcore/pkg/domain"
)

func TestGeneralRefundFull(t *testing.T) {
	svc, _ := newHarness(t, allFeatures, checkout.WithMerchant(approvingMerchant()))
	ctx := context.Background()
	order := settledOrder(t, svc, 2)

	refund, _, err := svc.GeneralRefund(ctx, order.ID, checkout.RefundOptions{})
	if err != nil {
		t.Fatalf("general refund: %v", err)
	}
	if refund == nil {
		t.Fatalf("expected a refund adjustment")
	}
	if refund.Purpose != domain.PurposeRefund {
		t.Fatalf("purpose = %s", refund.Purpose)
	}
	if refund.Price != gbp(-1998) {
		t.Fatalf("refund price = %+v, want -1998", refund.Price)
	}

	after, _ := svc.Store().GetOrder(order.ID)
	if after.Status != domain.StatusFullyRefunded {
		t.Fatalf("status = %s, want fully_refunded", after.Status)
	}

	// Fully refunded orders are a no-op on repeat.
	again, _, err := svc.GeneralRefund(ctx, order.ID, checkout.RefundOptions{})
	if err != nil {
		t.Fatalf("repeat refund: %v", err)
	}
	if again != nil {
		t.Fatalf("repeat refund created an adjustment")
	}
}

func TestGeneralRefundPartial(t *testing.T) {
	svc, _ := newHarness(t, allFeatures, checkout.WithMerchant(approvingMerchant()))
	ctx := context.Background()
	order := settledOrder(t, svc, 2)

	amount := gbp(500)
	refund, _, err := svc.GeneralRefund(ctx, order.ID, checkout.RefundOptions{Amount: &amount})
	if err != nil {
		t.Fatalf("general refund: %v", err)
	}
	if refund == nil || refund.Price != gbp(-500) {
		t.Fatalf("refund = %+v, want -500", refund)
	}
	after, _ := svc.Store().GetOrder(order.ID)
	if after.Status != domain.StatusPartRefunded {
		t.Fatalf("status = %s, want part_refunded", after.Status)
	}
}

func TestGeneralRefundZeroAmountIsNoOp(t *testing.T) {
	svc, _ := newHarness(t, allFeatures, checkout.WithMerchant(approvingMerchant()))
	order := settledOrder(t, svc, 1)

	zero := gbp(0)
	refund, _, err := svc.GeneralRefund(context.Background(), order.ID, checkout.RefundOptions{Amount: &zero})
	if err != nil {
		t.Fatalf("general refund: %v", err)
	}
	if refund != nil {
		t.Fatalf("zero amount created an adjustment")
	}
	after, _ := svc.Store().GetOrder(order.ID)
	if after.Status != domain.StatusSuccess {
		t.Fatalf("status changed to %s", after.Status)
	}
}

func TestRefundPurchaseRemainder(t *testing.T) {
	svc, store := newHarness(t, allFeatures, checkout.WithMerchant(approvingMerchant()))
	ctx := context.Background()
	order := settledOrder(t, svc, 3)

	var purchase domain.PurchaseItem
	if err := store.View(ctx, func(view domain.TransactionView) error {
		items := view.PurchaseItemsByOrder(order.ID)
		if len(items) != 1 {
			t.Fatalf("expected one purchase, got %d", len(items))
		}
		purchase = items[0]
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}

	first, _, err := svc.RefundPurchase(ctx, purchase.ID, checkout.RefundOptions{Quantity: 1})
	if err != nil {
		t.Fatalf("refund purchase: %v", err)
	}
	if first == nil || first.Quantity != 1 || first.Price != gbp(-999) {
		t.Fatalf("first refund = %+v", first)
	}
	if first.Related != purchase.Ref() {
		t.Fatalf("refund not linked to purchase: %+v", first.Related)
	}

	// Without an explicit quantity the remainder is refunded.
	second, _, err := svc.RefundPurchase(ctx, purchase.ID, checkout.RefundOptions{})
	if err != nil {
		t.Fatalf("refund remainder: %v", err)
	}
	if second == nil || second.Quantity != 2 || second.Price != gbp(-1998) {
		t.Fatalf("remainder refund = %+v", second)
	}

	after, _ := svc.Store().GetOrder(order.ID)
	if after.Status != domain.StatusPartRefunded {
		t.Fatalf("status = %s, want part_refunded", after.Status)
	}
}

func TestFullRefund(t *testing.T) {
	svc, store := newHarness(t, allFeatures, checkout.WithMerchant(approvingMerchant()))
	ctx := context.Background()
	order := settledOrder(t, svc, 2)

	refunded, _, err := svc.FullRefund(ctx, order.ID, checkout.RefundOptions{})
	if err != nil {
		t.Fatalf("full refund: %v", err)
	}
	if !refunded {
		t.Fatalf("expected a refund to happen")
	}
	after, _ := svc.Store().GetOrder(order.ID)
	if after.Status != domain.StatusFullyRefunded {
		t.Fatalf("status = %s, want fully_refunded", after.Status)
	}

	if err := store.View(ctx, func(view domain.TransactionView) error {
		refunds := 0
		for _, fee := range view.FeeAdjustmentsByOrder(order.ID) {
			if fee.Purpose == domain.PurposeRefund {
				refunds++
				if fee.Price != gbp(-1998) {
					t.Fatalf("refund line = %+v, want -1998", fee.Price)
				}
			}
		}
		if refunds != 1 {
			t.Fatalf("refund lines = %d, want 1", refunds)
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}

	// A second full refund is a no-op.
	refunded, _, err = svc.FullRefund(ctx, order.ID, checkout.RefundOptions{})
	if err != nil {
		t.Fatalf("repeat full refund: %v", err)
	}
	if refunded {
		t.Fatalf("repeat full refund reported work")
	}
}

func TestRefundRequiresFeature(t *testing.T) {
	svc, _ := newHarness(t, nil, checkout.WithMerchant(approvingMerchant()))
	_, _, err := svc.GeneralRefund(context.Background(), "o-1", checkout.RefundOptions{})
	var disabled checkout.ErrFeatureDisabled
	if !errors.As(err, &disabled) {
		t.Fatalf("expected feature disabled error, got %v", err)
	}
	if disabled.Feature != checkout.FeatureRefund {
		t.Fatalf("feature = %s", disabled.Feature)
	}
}
