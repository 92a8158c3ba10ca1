package checkout_test

import (
	"context"
	"testing"

	"cartcore/internal/checkout"
	"cartcore/internal/checkout/features/inventory"
	"cartcore/internal/checkout/features/offer"
	"cartcore/internal/checkout/features/refund"
	"cartcore/internal/checkout/features/shipping"
	"cartcore/internal/checkout/features/taxation"
	"cartcore/internal/infra/persistence/memory"
	"cartcore/pkg/composition"
	"cartcore/pkg/domain"
	"cartcore/pkg/money"
)

// allFeatures selects every built-in feature pack.
var allFeatures = []string{taxation.Name, shipping.Name, inventory.Name, offer.Name, refund.Name}

func newRegistry() *composition.Registry {
	reg := composition.NewRegistry()
	checkout.RegisterModels(reg)
	taxation.Register(reg)
	shipping.Register(reg)
	inventory.Register(reg)
	offer.Register(reg)
	refund.Register(reg)
	return reg
}

func newHarness(t *testing.T, features []string, opts ...checkout.ServiceOption) (*checkout.Service, *memory.Store) {
	t.Helper()
	bindings, err := checkout.NewDefaultContext(newRegistry(), features...)
	if err != nil {
		t.Fatalf("compose context: %v", err)
	}
	engine := domain.NewRulesEngine()
	for _, rule := range checkout.Rules(bindings) {
		engine.Register(rule)
	}
	store := memory.NewStore(engine)
	return checkout.NewService(store, bindings, opts...), store
}

func gbp(amount int64) money.Money {
	return money.Money{Amount: amount, Currency: "GBP"}
}

// approvingMerchant settles every charge.
func approvingMerchant() checkout.MerchantProcessor {
	return checkout.MerchantFunc(func(context.Context, *checkout.EventScope, domain.Order) (bool, error) {
		return true, nil
	})
}

func createOrder(t *testing.T, svc *checkout.Service) domain.Order {
	t.Helper()
	order, _, err := svc.CreateOrder(context.Background(), domain.Order{})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func createProduct(t *testing.T, svc *checkout.Service, product domain.Product) domain.Product {
	t.Helper()
	if product.DisplayName == "" {
		product.DisplayName = "Widget"
	}
	if product.Price.Currency == "" {
		product.Price.Currency = "GBP"
	}
	created, _, err := svc.CreateProduct(context.Background(), product)
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return created
}

// saveOrderAddress attaches a valid address to an order for the purpose.
func saveOrderAddress(t *testing.T, svc *checkout.Service, orderID string, purpose domain.AddressPurpose) domain.Address {
	t.Helper()
	owner := domain.ItemRef{Type: domain.EntityOrder, ID: orderID}
	saved, _, err := svc.SaveAddress(context.Background(), owner, domain.Address{
		Purpose:    purpose,
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Street:     "12 Byron Terrace",
		Locality:   "London",
		PostalCode: "N1 9GU",
		Country:    "GB",
		Email:      "ada@example.com",
	})
	if err != nil {
		t.Fatalf("save %s address: %v", purpose, err)
	}
	return saved
}

// settledOrder builds an order holding quantity units of a 9.99 product and
// runs checkout so refund tests start from a paid order.
func settledOrder(t *testing.T, svc *checkout.Service, quantity int) domain.Order {
	t.Helper()
	ctx := context.Background()
	order := createOrder(t, svc)
	product := createProduct(t, svc, domain.Product{Price: gbp(999)})
	if _, _, err := svc.Add(ctx, order.ID, product, checkout.AddOptions{Quantity: quantity}); err != nil {
		t.Fatalf("add: %v", err)
	}
	paid, _, err := svc.Checkout(ctx, order.ID)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !paid {
		t.Fatalf("expected checkout to settle")
	}
	settled, ok := svc.Store().GetOrder(order.ID)
	if !ok {
		t.Fatalf("order missing after checkout")
	}
	return settled
}
