package checkout_test

import (
	"context"
	"errors"
	"testing"

	"cartcore/internal/checkout"
	"cartcore/internal/checkout/features/inventory"
	"cartcore/pkg/composition"
	"cartcore/pkg/domain"
)

func stockedProduct(t *testing.T, svc *checkout.Service, level int) domain.Product {
	t.Helper()
	return createProduct(t, svc, domain.Product{Price: gbp(1000), StockLevel: &level})
}

func stockLevel(t *testing.T, svc *checkout.Service, productID string) int {
	t.Helper()
	product, ok := svc.Store().GetProduct(productID)
	if !ok {
		t.Fatalf("product %s missing", productID)
	}
	if product.StockLevel == nil {
		t.Fatalf("product %s stopped tracking inventory", productID)
	}
	return *product.StockLevel
}

func TestAddConsumesStock(t *testing.T) {
	svc, _ := newHarness(t, allFeatures)
	ctx := context.Background()
	order := createOrder(t, svc)
	product := stockedProduct(t, svc, 5)

	if _, _, err := svc.Add(ctx, order.ID, product, checkout.AddOptions{Quantity: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if got := stockLevel(t, svc, product.ID); got != 3 {
		t.Fatalf("stock = %d, want 3", got)
	}
}

func TestAddVetoedWhenStockInsufficient(t *testing.T) {
	svc, store := newHarness(t, allFeatures)
	ctx := context.Background()
	order := createOrder(t, svc)
	product := stockedProduct(t, svc, 1)

	_, _, err := svc.Add(ctx, order.ID, product, checkout.AddOptions{Quantity: 3})
	var insufficient inventory.ErrInsufficientStock
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if insufficient.Requested != 3 || insufficient.Available != 1 {
		t.Fatalf("unexpected veto detail: %+v", insufficient)
	}

	// The veto rolls back the row and the stock.
	if got := stockLevel(t, svc, product.ID); got != 1 {
		t.Fatalf("stock = %d, want 1", got)
	}
	if err := store.View(ctx, func(view domain.TransactionView) error {
		if items := view.PurchaseItemsByOrder(order.ID); len(items) != 0 {
			t.Fatalf("vetoed add left %d rows", len(items))
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestRemoveRestocks(t *testing.T) {
	svc, _ := newHarness(t, allFeatures)
	ctx := context.Background()
	order := createOrder(t, svc)
	product := stockedProduct(t, svc, 5)

	if _, _, err := svc.Add(ctx, order.ID, product, checkout.AddOptions{Quantity: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.Remove(ctx, order.ID, product.Ref()); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := stockLevel(t, svc, product.ID); got != 5 {
		t.Fatalf("stock = %d, want 5", got)
	}
}

func TestZeroQuantityDeletesRow(t *testing.T) {
	svc, store := newHarness(t, allFeatures)
	ctx := context.Background()
	order := createOrder(t, svc)
	product := stockedProduct(t, svc, 5)

	purchase, _, err := svc.Add(ctx, order.ID, product, checkout.AddOptions{Quantity: 2})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.UpdateQuantities(ctx, order.ID, map[string]int{purchase.ID: 0}); err != nil {
		t.Fatalf("update quantities: %v", err)
	}
	if err := store.View(ctx, func(view domain.TransactionView) error {
		if items := view.PurchaseItemsByOrder(order.ID); len(items) != 0 {
			t.Fatalf("zero quantity left %d rows", len(items))
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
	if got := stockLevel(t, svc, product.ID); got != 5 {
		t.Fatalf("stock = %d, want 5", got)
	}
}

func TestStockBoundaryEvents(t *testing.T) {
	svc, _ := newHarness(t, allFeatures)
	ctx := context.Background()
	order := createOrder(t, svc)
	product := stockedProduct(t, svc, 2)

	outOfStock, replenished := 0, 0
	events := svc.Bindings().Product.CompositionType().Events()
	if err := events.Attach(inventory.EventOutOfStock, composition.PhaseAfter, func(*composition.Event) error {
		outOfStock++
		return nil
	}); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := events.Attach(inventory.EventStockReplenished, composition.PhaseAfter, func(*composition.Event) error {
		replenished++
		return nil
	}); err != nil {
		t.Fatalf("attach: %v", err)
	}

	if _, _, err := svc.Add(ctx, order.ID, product, checkout.AddOptions{Quantity: 2}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if outOfStock != 1 || replenished != 0 {
		t.Fatalf("after sellout: out_of_stock=%d replenished=%d", outOfStock, replenished)
	}

	if _, err := svc.Remove(ctx, order.ID, product.Ref()); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if replenished != 1 {
		t.Fatalf("after restock: replenished=%d", replenished)
	}
}

func TestUntrackedProductIgnoresStock(t *testing.T) {
	svc, _ := newHarness(t, allFeatures)
	ctx := context.Background()
	order := createOrder(t, svc)
	product := createProduct(t, svc, domain.Product{Price: gbp(1000)})

	if _, _, err := svc.Add(ctx, order.ID, product, checkout.AddOptions{Quantity: 50}); err != nil {
		t.Fatalf("add: %v", err)
	}
	after, _ := svc.Store().GetProduct(product.ID)
	if after.StockLevel != nil {
		t.Fatalf("untracked product grew a stock level")
	}
}
