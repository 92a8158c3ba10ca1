package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"cartcore/pkg/domain"
	"cartcore/pkg/money"
)

func TestSnapshotSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shop.db")

	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	total := money.New(1998, "GBP")
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateOrder(domain.Order{Base: domain.Base{ID: "o-1"}, Status: domain.StatusSuccess, Total: &total}); err != nil {
			return err
		}
		_, err := tx.CreatePurchaseItem(domain.PurchaseItem{
			Base:    domain.Base{ID: "p-1"},
			OrderID: "o-1",
			Item:    domain.ItemRef{Type: domain.EntityProduct, ID: "prod-1"},
			Price:   money.New(999, "GBP"),
		})
		return err
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
	if err := store.DB().Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	order, ok := reopened.GetOrder("o-1")
	if !ok {
		t.Fatalf("order missing after reopen")
	}
	if order.Status != domain.StatusSuccess {
		t.Fatalf("status = %s, want success", order.Status)
	}
	if order.Total == nil || order.Total.Amount != 1998 {
		t.Fatalf("frozen total lost in snapshot")
	}
	err = reopened.View(context.Background(), func(view domain.TransactionView) error {
		if items := view.PurchaseItemsByOrder("o-1"); len(items) != 1 {
			t.Fatalf("purchases after reopen = %d, want 1", len(items))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestRolledBackTransactionNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shop.db")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateOrder(domain.Order{Base: domain.Base{ID: "o-1"}}); err != nil {
			return err
		}
		return context.Canceled
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := store.DB().Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, ok := reopened.GetOrder("o-1"); ok {
		t.Fatalf("rolled back order was persisted")
	}
}

func TestApplyDDL(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "shop.db"), nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS orders (id TEXT PRIMARY KEY, status TEXT NOT NULL)`,
		"",
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders (status)`,
	}
	if err := store.ApplyDDL(context.Background(), statements); err != nil {
		t.Fatalf("ApplyDDL: %v", err)
	}
	var name string
	err = store.DB().QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='orders'`).Scan(&name)
	if err != nil {
		t.Fatalf("orders table not created: %v", err)
	}
}
