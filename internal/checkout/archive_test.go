package checkout_test

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"cartcore/internal/checkout"
	"cartcore/internal/infra/blob"
	"cartcore/pkg/domain"
)

func TestCheckoutArchivesInvoice(t *testing.T) {
	archive := blob.NewMemory()
	svc, _ := newHarness(t, allFeatures,
		checkout.WithMerchant(approvingMerchant()),
		checkout.WithInvoiceArchiver(checkout.NewBlobInvoiceArchiver(archive, "")),
	)
	ctx := context.Background()
	order := settledOrder(t, svc, 2)

	infos, err := archive.List(ctx, "invoices/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("archived invoices = %d, want 1", len(infos))
	}

	_, rc, err := archive.Get(ctx, infos[0].Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var invoice checkout.Invoice
	if err := json.Unmarshal(body, &invoice); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if invoice.OrderID != order.ID {
		t.Fatalf("invoice order = %q, want %q", invoice.OrderID, order.ID)
	}
	if invoice.Status != string(domain.StatusSuccess) {
		t.Fatalf("invoice status = %s", invoice.Status)
	}
	if invoice.Total != gbp(1998) {
		t.Fatalf("invoice total = %+v, want 1998", invoice.Total)
	}
	if len(invoice.Lines) != 1 || invoice.Lines[0].Quantity != 2 {
		t.Fatalf("invoice lines = %+v", invoice.Lines)
	}
}

func TestBuildInvoiceIncludesAddresses(t *testing.T) {
	svc, _ := newHarness(t, allFeatures, checkout.WithMerchant(approvingMerchant()))
	ctx := context.Background()
	order := createOrder(t, svc)
	product := createProduct(t, svc, domain.Product{Price: gbp(999)})
	if _, _, err := svc.Add(ctx, order.ID, product, checkout.AddOptions{}); err != nil {
		t.Fatalf("add: %v", err)
	}
	saveOrderAddress(t, svc, order.ID, domain.AddressBilling)

	invoice, err := svc.BuildInvoice(ctx, order.ID)
	if err != nil {
		t.Fatalf("build invoice: %v", err)
	}
	if invoice.BillingAddress == nil {
		t.Fatalf("billing address missing from invoice")
	}
	if invoice.BillingAddress.Name != "Ada Lovelace" {
		t.Fatalf("billing name = %q", invoice.BillingAddress.Name)
	}
	if invoice.ShippingAddress != nil {
		t.Fatalf("unexpected shipping address")
	}
	if invoice.InvoiceNumber == "" {
		t.Fatalf("invoice number empty")
	}
}
