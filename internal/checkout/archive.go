package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cartcore/internal/infra/blob"
	"cartcore/pkg/domain"
	"cartcore/pkg/money"
)

// InvoiceArchiver receives the rendered invoice document for an order that
// completed checkout.
type InvoiceArchiver interface {
	ArchiveInvoice(ctx context.Context, key string, contentType string, body []byte) error
}

// Invoice is the archived record of a settled order.
type Invoice struct {
	InvoiceNumber   string        `json:"invoice_number"`
	OrderID         string        `json:"order_id"`
	Status          string        `json:"status"`
	IssuedAt        time.Time     `json:"issued_at"`
	PaymentDate     *time.Time    `json:"payment_date,omitempty"`
	Lines           []InvoiceLine `json:"lines"`
	Adjustments     []InvoiceLine `json:"adjustments,omitempty"`
	SubTotal        money.Money   `json:"sub_total"`
	AdjustmentTotal money.Money   `json:"adjustment_total"`
	Total           money.Money   `json:"total"`
	BillingAddress  *InvoiceParty `json:"billing_address,omitempty"`
	ShippingAddress *InvoiceParty `json:"shipping_address,omitempty"`
}

// InvoiceLine is one purchase or ledger row on the invoice.
type InvoiceLine struct {
	Description string      `json:"description"`
	Purpose     string      `json:"purpose,omitempty"`
	Quantity    int         `json:"quantity,omitempty"`
	UnitPrice   money.Money `json:"unit_price,omitempty"`
	Total       money.Money `json:"total"`
}

// InvoiceParty is the address block rendered on the invoice.
type InvoiceParty struct {
	Name       string `json:"name,omitempty"`
	Street     string `json:"street,omitempty"`
	Locality   string `json:"locality,omitempty"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
	Email      string `json:"email,omitempty"`
}

// BlobInvoiceArchiver writes invoices through a blob store under a key prefix.
type BlobInvoiceArchiver struct {
	store  blob.Store
	prefix string
}

// NewBlobInvoiceArchiver wires an archiver onto a blob store. An empty prefix
// defaults to "invoices".
func NewBlobInvoiceArchiver(store blob.Store, prefix string) *BlobInvoiceArchiver {
	if prefix == "" {
		prefix = "invoices"
	}
	return &BlobInvoiceArchiver{store: store, prefix: prefix}
}

func (a *BlobInvoiceArchiver) ArchiveInvoice(ctx context.Context, key string, contentType string, body []byte) error {
	_, err := a.store.Put(ctx, a.prefix+"/"+key, bytes.NewReader(body), blob.PutOptions{ContentType: contentType})
	return err
}

// BuildInvoice renders the invoice document for an order from committed
// state.
func (s *Service) BuildInvoice(ctx context.Context, orderID string) (Invoice, error) {
	var inv Invoice
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		order, ok := view.FindOrder(orderID)
		if !ok {
			return ErrNotFound{Entity: domain.EntityOrder, ID: orderID}
		}
		sub, err := s.SubTotal(view, orderID)
		if err != nil {
			return err
		}
		fees, err := s.AdjustmentTotal(view, orderID)
		if err != nil {
			return err
		}
		total, err := s.TotalPrice(view, order)
		if err != nil {
			return err
		}
		inv = Invoice{
			InvoiceNumber:   order.UID(),
			OrderID:         order.ID,
			Status:          string(order.Status),
			IssuedAt:        s.clock.Now(),
			PaymentDate:     order.PaymentDate,
			SubTotal:        sub,
			AdjustmentTotal: fees,
			Total:           total,
		}
		for _, item := range view.PurchaseItemsByOrder(orderID) {
			inv.Lines = append(inv.Lines, InvoiceLine{
				Description: item.DisplayName,
				Quantity:    item.Quantity,
				UnitPrice:   item.Price,
				Total:       item.TotalPrice(),
			})
		}
		for _, fee := range view.FeeAdjustmentsByOrder(orderID) {
			inv.Adjustments = append(inv.Adjustments, InvoiceLine{
				Description: fee.DisplayName,
				Purpose:     string(fee.Purpose),
				Quantity:    fee.Quantity,
				Total:       fee.Price,
			})
		}
		owner := domain.ItemRef{Type: domain.EntityOrder, ID: orderID}
		if addr, ok := addressByPurpose(view, owner, domain.AddressBilling); ok {
			inv.BillingAddress = invoiceParty(addr)
		}
		if addr, ok := addressByPurpose(view, owner, domain.AddressShipping); ok {
			inv.ShippingAddress = invoiceParty(addr)
		}
		return nil
	})
	return inv, err
}

func invoiceParty(addr domain.Address) *InvoiceParty {
	name := addr.FirstName
	if addr.LastName != "" {
		if name != "" {
			name += " "
		}
		name += addr.LastName
	}
	return &InvoiceParty{
		Name:       name,
		Street:     addr.Street,
		Locality:   addr.Locality,
		Region:     addr.Region,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
		Email:      addr.Email,
	}
}

// archiveInvoice runs after a successful checkout commit. Archive failures
// are logged, never surfaced: the order is already settled.
func (s *Service) archiveInvoice(ctx context.Context, orderID string) {
	if s.archiver == nil {
		return
	}
	inv, err := s.BuildInvoice(ctx, orderID)
	if err != nil {
		s.logger.Warn("invoice build failed", "order_id", orderID, "error", err)
		return
	}
	body, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		s.logger.Warn("invoice encode failed", "order_id", orderID, "error", err)
		return
	}
	key := fmt.Sprintf("%s.json", orderID)
	if err := s.archiver.ArchiveInvoice(ctx, key, "application/json", body); err != nil {
		s.logger.Warn("invoice archive failed", "order_id", orderID, "error", err)
		return
	}
	s.logger.Info("invoice archived", "order_id", orderID, "invoice_number", inv.InvoiceNumber)
}
