package memory

import (
	"context"
	"errors"
	"testing"

	"cartcore/pkg/domain"
	"cartcore/pkg/money"
)

func TestCreateOrderDefaults(t *testing.T) {
	store := NewStore(nil)
	var created domain.Order
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		o, err := tx.CreateOrder(domain.Order{})
		created = o
		return err
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated order ID")
	}
	if created.Status != domain.StatusBasket {
		t.Fatalf("expected basket status, got %s", created.Status)
	}
	if created.SessionUID == "" {
		t.Fatalf("expected generated session uid")
	}
	if _, ok := store.GetOrder(created.ID); !ok {
		t.Fatalf("order not committed")
	}
}

func TestTransactionRollbackOnError(t *testing.T) {
	store := NewStore(nil)
	boom := errors.New("boom")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateOrder(domain.Order{Base: domain.Base{ID: "o-1"}}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, ok := store.GetOrder("o-1"); ok {
		t.Fatalf("rollback left order behind")
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "always_block" }

func (blockingRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	if len(changes) == 0 {
		return domain.Result{}, nil
	}
	return domain.Result{Violations: []domain.Violation{{
		Rule:     "always_block",
		Severity: domain.SeverityBlock,
		Message:  "no mutations allowed",
	}}}, nil
}

func TestBlockingViolationRollsBack(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockingRule{})
	store := NewStore(engine)

	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateOrder(domain.Order{Base: domain.Base{ID: "o-1"}})
		return err
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation error, got %v", err)
	}
	if _, ok := store.GetOrder("o-1"); ok {
		t.Fatalf("blocked transaction was committed")
	}
}

func TestPurchaseItemByRef(t *testing.T) {
	store := NewStore(nil)
	item := domain.ItemRef{Type: domain.EntityProduct, ID: "prod-1"}
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateOrder(domain.Order{Base: domain.Base{ID: "o-1"}}); err != nil {
			return err
		}
		_, err := tx.CreatePurchaseItem(domain.PurchaseItem{
			OrderID:  "o-1",
			Item:     item,
			Quantity: 2,
			Price:    money.New(999, "GBP"),
		})
		return err
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
	err = store.View(context.Background(), func(view domain.TransactionView) error {
		p, ok := view.PurchaseItemByRef("o-1", item)
		if !ok {
			t.Fatalf("purchase item not found by ref")
		}
		if got := p.TotalPrice(); got.Amount != 1998 {
			t.Fatalf("total price = %d, want 1998", got.Amount)
		}
		if _, ok := view.PurchaseItemByRef("o-1", domain.ItemRef{Type: domain.EntityProduct, ID: "other"}); ok {
			t.Fatalf("unexpected match for unrelated item")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestDeleteOrderCascades(t *testing.T) {
	store := NewStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateOrder(domain.Order{Base: domain.Base{ID: "o-1"}}); err != nil {
			return err
		}
		if _, err := tx.CreatePurchaseItem(domain.PurchaseItem{Base: domain.Base{ID: "p-1"}, OrderID: "o-1"}); err != nil {
			return err
		}
		if _, err := tx.CreateFeeAdjustment(domain.FeeAdjustment{Base: domain.Base{ID: "f-1"}, OrderID: "o-1", Purpose: domain.PurposeTax}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.DeleteOrder("o-1")
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	err = store.View(context.Background(), func(view domain.TransactionView) error {
		if items := view.PurchaseItemsByOrder("o-1"); len(items) != 0 {
			t.Fatalf("purchases survived order deletion: %d", len(items))
		}
		if fees := view.FeeAdjustmentsByOrder("o-1"); len(fees) != 0 {
			t.Fatalf("adjustments survived order deletion: %d", len(fees))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestUpdateOrderIsolation(t *testing.T) {
	store := NewStore(nil)
	total := money.New(1998, "GBP")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateOrder(domain.Order{Base: domain.Base{ID: "o-1"}, Total: &total})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, ok := store.GetOrder("o-1")
	if !ok {
		t.Fatalf("order missing")
	}
	got.Total.Amount = 1
	again, _ := store.GetOrder("o-1")
	if again.Total.Amount != 1998 {
		t.Fatalf("caller mutation leaked into store: %d", again.Total.Amount)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	source := NewStore(nil)
	stock := 5
	_, err := source.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateProduct(domain.Product{Base: domain.Base{ID: "prod-1"}, DisplayName: "Widget", Price: money.New(999, "GBP"), StockLevel: &stock}); err != nil {
			return err
		}
		if _, err := tx.CreateOrder(domain.Order{Base: domain.Base{ID: "o-1"}}); err != nil {
			return err
		}
		if _, err := tx.CreatePromotion(domain.Promotion{Base: domain.Base{ID: "promo-1"}, Summary: "10 percent off", DiscountCode: "SAVE10"}); err != nil {
			return err
		}
		_, err := tx.CreatePromotionDiscountItem(domain.PromotionDiscountItem{Base: domain.Base{ID: "d-1"}, PromotionID: "promo-1", Discounted: domain.ItemRef{Type: domain.EntityOrder, ID: "o-1"}})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	restored := NewStore(nil)
	restored.ImportState(source.ExportState())

	p, ok := restored.GetProduct("prod-1")
	if !ok {
		t.Fatalf("product missing after import")
	}
	if p.StockLevel == nil || *p.StockLevel != 5 {
		t.Fatalf("stock level lost in round trip")
	}
	if _, ok := restored.GetOrder("o-1"); !ok {
		t.Fatalf("order missing after import")
	}
	err = restored.View(context.Background(), func(view domain.TransactionView) error {
		if promos := view.PromotionsByCode("SAVE10"); len(promos) != 1 {
			t.Fatalf("promotion lookup by code returned %d rows", len(promos))
		}
		if links := view.DiscountItemsByPromotion("promo-1"); len(links) != 1 {
			t.Fatalf("discount links lost: %d", len(links))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}
