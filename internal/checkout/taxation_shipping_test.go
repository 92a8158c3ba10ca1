package checkout_test

import (
	"context"
	"testing"
	"time"

	"cartcore/internal/checkout"
	"cartcore/internal/checkout/features/shipping"
	"cartcore/pkg/domain"
)

func adjustmentByPurpose(t *testing.T, svc *checkout.Service, orderID string, purpose domain.AdjustmentPurpose) (domain.FeeAdjustment, bool) {
	t.Helper()
	var found domain.FeeAdjustment
	ok := false
	if err := svc.Store().View(context.Background(), func(view domain.TransactionView) error {
		for _, fee := range view.FeeAdjustmentsByOrder(orderID) {
			if fee.Purpose == purpose {
				found = fee
				ok = true
			}
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
	return found, ok
}

func TestBillingAddressTriggersTaxation(t *testing.T) {
	svc, _ := newHarness(t, allFeatures)
	ctx := context.Background()
	order := createOrder(t, svc)
	product := createProduct(t, svc, domain.Product{Price: gbp(1000), TaxRate: 0.2})
	if _, _, err := svc.Add(ctx, order.ID, product, checkout.AddOptions{Quantity: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}

	saveOrderAddress(t, svc, order.ID, domain.AddressBilling)

	tax, ok := adjustmentByPurpose(t, svc, order.ID, domain.PurposeTax)
	if !ok {
		t.Fatalf("no tax adjustment recorded")
	}
	if tax.Price != gbp(400) {
		t.Fatalf("tax = %+v, want 400", tax.Price)
	}
}

func TestTaxationFollowsBasketChanges(t *testing.T) {
	svc, _ := newHarness(t, allFeatures)
	ctx := context.Background()
	order := createOrder(t, svc)
	product := createProduct(t, svc, domain.Product{Price: gbp(1000), TaxRate: 0.2})
	if _, _, err := svc.Add(ctx, order.ID, product, checkout.AddOptions{Quantity: 1}); err != nil {
		t.Fatalf("add: %v", err)
	}
	saveOrderAddress(t, svc, order.ID, domain.AddressBilling)

	// The tax line is an upsert: saving the address again after the basket
	// grew replaces the amount rather than stacking a second line.
	if _, _, err := svc.Add(ctx, order.ID, product, checkout.AddOptions{Quantity: 3}); err != nil {
		t.Fatalf("grow basket: %v", err)
	}
	saveOrderAddress(t, svc, order.ID, domain.AddressBilling)

	if err := svc.Store().View(ctx, func(view domain.TransactionView) error {
		lines := 0
		for _, fee := range view.FeeAdjustmentsByOrder(order.ID) {
			if fee.Purpose == domain.PurposeTax {
				lines++
				if fee.Price != gbp(600) {
					t.Fatalf("tax = %+v, want 600", fee.Price)
				}
			}
		}
		if lines != 1 {
			t.Fatalf("tax lines = %d, want 1", lines)
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestWeightPriceBands(t *testing.T) {
	cases := []struct {
		weight int
		want   int64
	}{
		{50, 29},
		{300, 260},
		{1500, 499},
		{25000, 899},
		{5000, 2999},
		{60000, 2999},
	}
	for _, tc := range cases {
		got := shipping.WeightPrice(tc.weight, "GBP")
		if got.Amount != tc.want {
			t.Fatalf("WeightPrice(%d) = %d, want %d", tc.weight, got.Amount, tc.want)
		}
	}
}

func TestShippingAddressTriggersWeightShipping(t *testing.T) {
	svc, _ := newHarness(t, allFeatures)
	ctx := context.Background()
	order := createOrder(t, svc)
	product := createProduct(t, svc, domain.Product{
		Price:                gbp(1000),
		UseWeightForShipping: true,
		Weight:               150,
	})
	if _, _, err := svc.Add(ctx, order.ID, product, checkout.AddOptions{Quantity: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}

	saveOrderAddress(t, svc, order.ID, domain.AddressShipping)

	fee, ok := adjustmentByPurpose(t, svc, order.ID, domain.PurposeShipping)
	if !ok {
		t.Fatalf("no shipping adjustment recorded")
	}
	if fee.Price != gbp(260) {
		t.Fatalf("shipping = %+v, want 260 for 300g", fee.Price)
	}
}

func TestShippingByFixedCost(t *testing.T) {
	svc, _ := newHarness(t, allFeatures)
	ctx := context.Background()
	order := createOrder(t, svc)
	flat := gbp(150)
	product := createProduct(t, svc, domain.Product{Price: gbp(1000), ShippingPrice: &flat})
	if _, _, err := svc.Add(ctx, order.ID, product, checkout.AddOptions{Quantity: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}

	saveOrderAddress(t, svc, order.ID, domain.AddressShipping)

	fee, ok := adjustmentByPurpose(t, svc, order.ID, domain.PurposeShipping)
	if !ok {
		t.Fatalf("no shipping adjustment recorded")
	}
	if fee.Price != gbp(300) {
		t.Fatalf("shipping = %+v, want 300 for two flat-rate units", fee.Price)
	}
}

func TestBillingAddressLeavesShippingAlone(t *testing.T) {
	svc, _ := newHarness(t, allFeatures)
	ctx := context.Background()
	order := createOrder(t, svc)
	product := createProduct(t, svc, domain.Product{Price: gbp(1000), UseWeightForShipping: true, Weight: 150})
	if _, _, err := svc.Add(ctx, order.ID, product, checkout.AddOptions{}); err != nil {
		t.Fatalf("add: %v", err)
	}

	saveOrderAddress(t, svc, order.ID, domain.AddressBilling)

	if _, ok := adjustmentByPurpose(t, svc, order.ID, domain.PurposeShipping); ok {
		t.Fatalf("billing address must not price shipping")
	}
}

func TestDispatch(t *testing.T) {
	svc, _ := newHarness(t, allFeatures, checkout.WithMerchant(approvingMerchant()))
	ctx := context.Background()
	order := settledOrder(t, svc, 1)

	when := time.Date(2026, time.March, 4, 9, 30, 0, 0, time.UTC)
	dispatched, _, err := shipping.Dispatch(ctx, svc, order.ID, "RM123456789GB", when)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if dispatched.TrackingCode != "RM123456789GB" {
		t.Fatalf("tracking code = %q", dispatched.TrackingCode)
	}
	if dispatched.DispatchDate == nil || !dispatched.DispatchDate.Equal(when) {
		t.Fatalf("dispatch date = %v", dispatched.DispatchDate)
	}
	if !dispatched.Dispatched() {
		t.Fatalf("order not reported dispatched")
	}

	// A zero time cancels the dispatch.
	cleared, _, err := shipping.Dispatch(ctx, svc, order.ID, "", time.Time{})
	if err != nil {
		t.Fatalf("clear dispatch: %v", err)
	}
	if cleared.Dispatched() || cleared.TrackingCode != "" {
		t.Fatalf("dispatch not cleared: %+v", cleared)
	}
}
