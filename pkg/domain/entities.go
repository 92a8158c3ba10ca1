// Package domain defines the persistent shop entities, their closed value
// sets, and the validation and persistence primitives shared by every
// storage backend.
package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"cartcore/pkg/money"
)

// EntityType identifies the type of record stored in the shop domain.
type EntityType string

// Supported entity type identifiers used in Change records, persistence
// buckets, and polymorphic item references.
const (
	EntityOrder                 EntityType = "order"
	EntityPurchaseItem          EntityType = "purchase_item"
	EntityFeeAdjustment         EntityType = "fee_adjustment"
	EntityAddress               EntityType = "address"
	EntityProduct               EntityType = "product"
	EntityPromotion             EntityType = "promotion"
	EntityPromotionDiscountItem EntityType = "promotion_discount_item"
)

// OrderStatus is one of the closed set of order lifecycle states.
type OrderStatus string

// Canonical order statuses. The list is append-extensible via
// RegisterOrderStatus; entries are never removed.
const (
	StatusBasket          OrderStatus = "basket"
	StatusPending         OrderStatus = "pending"
	StatusSuccess         OrderStatus = "success"
	StatusFailed          OrderStatus = "failed"
	StatusCancelled       OrderStatus = "cancelled"
	StatusRefunded        OrderStatus = "refunded"
	StatusPartRefunded    OrderStatus = "part_refunded"
	StatusFullyRefunded   OrderStatus = "fully_refunded"
	StatusRefundRequested OrderStatus = "refund_requested"
)

var orderStatuses = []OrderStatus{
	StatusRefundRequested,
	StatusPartRefunded,
	StatusFullyRefunded,
	StatusSuccess,
	StatusPending,
	StatusFailed,
	StatusCancelled,
	StatusRefunded,
	StatusBasket,
}

// OrderStatuses returns the declared status list in declaration order.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(orderStatuses))
	copy(out, orderStatuses)
	return out
}

// RegisterOrderStatus appends a status to the declared list. Registration is
// idempotent and happens at load time only.
func RegisterOrderStatus(status OrderStatus) {
	for _, s := range orderStatuses {
		if s == status {
			return
		}
	}
	orderStatuses = append(orderStatuses, status)
}

// ValidOrderStatus reports membership in the declared status list.
func ValidOrderStatus(status OrderStatus) bool {
	for _, s := range orderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// AdjustmentPurpose is one of the closed set of fee adjustment reasons.
type AdjustmentPurpose string

// Canonical adjustment purposes. Tax, shipping, discounts, and refunds are
// all uniform ledger lines so the order total stays a single summation.
const (
	PurposeTax              AdjustmentPurpose = "tax"
	PurposeShipping         AdjustmentPurpose = "shipping"
	PurposeOfferToken       AdjustmentPurpose = "offer_token"
	PurposeManualAlteration AdjustmentPurpose = "manual_alteration"
	PurposeCoupon           AdjustmentPurpose = "coupon"
	PurposeDiscount         AdjustmentPurpose = "discount"
	PurposeLayawayPayment   AdjustmentPurpose = "layaway_payment"
	PurposeRefund           AdjustmentPurpose = "refund"
)

// AdjustmentPurposes returns the declared purpose set.
func AdjustmentPurposes() []AdjustmentPurpose {
	return []AdjustmentPurpose{
		PurposeTax, PurposeShipping, PurposeOfferToken, PurposeManualAlteration,
		PurposeCoupon, PurposeDiscount, PurposeLayawayPayment, PurposeRefund,
	}
}

// ValidAdjustmentPurpose reports membership in the declared purpose set.
func ValidAdjustmentPurpose(p AdjustmentPurpose) bool {
	for _, candidate := range AdjustmentPurposes() {
		if candidate == p {
			return true
		}
	}
	return false
}

// AddressPurpose distinguishes billing from shipping addresses.
type AddressPurpose string

// Address purposes.
const (
	AddressBilling  AddressPurpose = "billing"
	AddressShipping AddressPurpose = "shipping"
)

// ItemRef is a polymorphic reference to an arbitrary entity by type name and
// id. Purchase items, fee adjustments, and promotion discount links use it to
// point at purchasable or discountable entities.
type ItemRef struct {
	Type EntityType `json:"type"`
	ID   string     `json:"id"`
}

// IsZero reports whether the reference is unset.
func (r ItemRef) IsZero() bool {
	return r.Type == "" && r.ID == ""
}

// Equal reports whether two references identify the same entity.
func (r ItemRef) Equal(other ItemRef) bool {
	return r.Type == other.Type && r.ID == other.ID
}

// Purchasable is the duck-typed capability purchase items require of the
// entities they reference: a stable reference plus invoice data to freeze at
// purchase time.
type Purchasable interface {
	Ref() ItemRef
	PurchasePrice() money.Money
	PurchaseDisplayName() string
}

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Order is the container for purchased items. Orders are not always tied to
// a user account: SessionUID tracks anonymous baskets, which can later be
// correlated with a user.
type Order struct {
	Base
	Status        OrderStatus  `json:"status"`
	SessionUID    string       `json:"session_uid"`
	UserID        *string      `json:"user_id,omitempty"`
	Total         *money.Money `json:"total,omitempty"` // explicit total; nil or zero means live calculation
	Currency      string       `json:"currency,omitempty"`
	PaymentDate   *time.Time   `json:"payment_date,omitempty"`
	CustomerNotes string       `json:"customer_notes,omitempty"`
	InternalNotes string       `json:"internal_notes,omitempty"`
	TrackingCode  string       `json:"tracking_code,omitempty"` // shipping feature
	DispatchDate  *time.Time   `json:"dispatch_date,omitempty"` // shipping feature
}

// UID returns a short stable identifier for invoices and refund messages.
func (o Order) UID() string {
	sum := sha1.Sum([]byte(o.ID))
	return hex.EncodeToString(sum[:])[:8]
}

// Basket reports whether the order is still a mutable basket.
func (o Order) Basket() bool { return o.Status == StatusBasket }

// Completed reports whether the order finished checkout.
func (o Order) Completed() bool {
	return o.Status == StatusSuccess || o.Status == StatusRefunded
}

// Refund reports whether any refund state applies.
func (o Order) Refund() bool {
	switch o.Status {
	case StatusRefunded, StatusPartRefunded, StatusFullyRefunded:
		return true
	}
	return false
}

// FullyRefunded reports whether no further refunds may be issued.
func (o Order) FullyRefunded() bool { return o.Status == StatusFullyRefunded }

// Dispatched reports whether the order has left the warehouse.
func (o Order) Dispatched() bool { return o.DispatchDate != nil }

// PurchaseItem links a purchasable entity to an order. Unit price and display
// name are copied from the referenced item while the order is a basket, so
// invoice data stays frozen once checkout completes.
type PurchaseItem struct {
	Base
	OrderID     string      `json:"order_id"`
	Item        ItemRef     `json:"brought_item"`
	Quantity    int         `json:"quantity"`
	Price       money.Money `json:"price"` // captured unit price
	DisplayName string      `json:"display_name"`
}

// TotalPrice returns unit price times quantity.
func (p PurchaseItem) TotalPrice() money.Money {
	return p.Price.Mul(int64(p.Quantity))
}

// Ref returns the polymorphic reference identifying this purchase row.
func (p PurchaseItem) Ref() ItemRef {
	return ItemRef{Type: EntityPurchaseItem, ID: p.ID}
}

// FeeAdjustment is a uniform ledger line for any signed monetary effect on an
// order: tax, shipping, discounts, refunds, manual alterations.
type FeeAdjustment struct {
	Base
	OrderID       string            `json:"order_id"`
	Purpose       AdjustmentPurpose `json:"purpose"`
	Price         money.Money       `json:"price"`
	DisplayName   string            `json:"display_name"`
	Related       ItemRef           `json:"related_adjustment_item,omitempty"` // item that caused the adjustment
	Quantity      int               `json:"quantity,omitempty"`                // refunded quantity
	DiscountCode  string            `json:"discount_code,omitempty"`
	ProcessedDate *time.Time        `json:"processed_date,omitempty"`
}

// Mutable reports whether the adjustment may be edited after creation. Tax
// and shipping lines are recalculated, not edited; refunds are history.
func (f FeeAdjustment) Mutable() bool {
	return f.Purpose == PurposeManualAlteration || f.Purpose == PurposeDiscount
}

// Address holds billing or shipping details for an order. The addressable
// reference keeps the entity reusable for other owners.
type Address struct {
	Base
	Addressable ItemRef        `json:"addressable"`
	Purpose     AddressPurpose `json:"purpose"`
	Role        string         `json:"role,omitempty"`
	Building    string         `json:"building,omitempty"`
	Street      string         `json:"street,omitempty"`
	Locality    string         `json:"locality,omitempty"`
	Region      string         `json:"region,omitempty"`
	Country     string         `json:"country,omitempty"`
	PostalCode  string         `json:"postal_code,omitempty"`
	Email       string         `json:"email,omitempty"`
	Phone       string         `json:"phone,omitempty"`
	FirstName   string         `json:"first_name,omitempty"`
	LastName    string         `json:"last_name,omitempty"`
}

// Name joins the contact name fields.
func (a Address) Name() string {
	parts := make([]string, 0, 2)
	for _, p := range []string{a.FirstName, a.LastName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Lines returns the non-empty location lines in postal order.
func (a Address) Lines() []string {
	fields := []string{a.Building, a.Street, a.Locality, a.Region, a.Country, a.PostalCode}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// SameLocation reports whether two addresses share every location line.
func (a Address) SameLocation(other Address) bool {
	left, right := a.Lines(), other.Lines()
	if len(left) != len(right) {
		return false
	}
	for i := range left {
		if left[i] != right[i] {
			return false
		}
	}
	return true
}

// AsText renders the location lines as a block of text.
func (a Address) AsText() string {
	return strings.Join(a.Lines(), "\n")
}

// CopyLocationFrom assigns the other address's location fields, keeping the
// receiver's purpose and contact details.
func (a *Address) CopyLocationFrom(other Address) {
	a.Building = other.Building
	a.Street = other.Street
	a.Locality = other.Locality
	a.Region = other.Region
	a.Country = other.Country
	a.PostalCode = other.PostalCode
}

// Product is a purchasable catalog entry. Feature-added fields (tax rate,
// weight, stock level) are zero-valued unless the owning deployment applied
// the relevant feature's schema.
type Product struct {
	Base
	DisplayName          string       `json:"display_name"`
	Description          string       `json:"description,omitempty"`
	Price                money.Money  `json:"price"`
	TaxRate              float64      `json:"tax_rate,omitempty"`               // taxation feature
	Weight               int          `json:"weight,omitempty"`                 // shipping feature, grams
	UseWeightForShipping bool         `json:"use_weight_for_shipping"`          // shipping feature
	ShippingPrice        *money.Money `json:"shipping_price,omitempty"`         // fixed-cost shipping
	StockLevel           *int         `json:"stock_levels,omitempty"`           // inventory feature; nil disables tracking
}

// Ref returns the polymorphic reference for purchase rows.
func (p Product) Ref() ItemRef { return ItemRef{Type: EntityProduct, ID: p.ID} }

// PurchasePrice returns the current unit price.
func (p Product) PurchasePrice() money.Money { return p.Price }

// PurchaseDisplayName returns the invoice display name.
func (p Product) PurchaseDisplayName() string { return p.DisplayName }

// TrackingInventory reports whether stock levels apply to the product.
func (p Product) TrackingInventory() bool { return p.StockLevel != nil }

// HasInventory reports whether the product can satisfy a purchase of the
// given amount. Untracked products always can.
func (p Product) HasInventory(amount int) bool {
	return !p.TrackingInventory() || *p.StockLevel >= amount
}

// InStock reports whether at least one unit is available.
func (p Product) InStock() bool { return p.HasInventory(1) }

// HasShippingWeight reports whether weight-based shipping applies.
func (p Product) HasShippingWeight() bool {
	return p.Weight > 0 && p.UseWeightForShipping
}

// Promotion acts as a template for coupons: a redeemed promotion becomes a
// coupon fee adjustment on the order.
type Promotion struct {
	Base
	Summary          string      `json:"summary"`
	Details          string      `json:"details,omitempty"`
	Terms            string      `json:"terms_and_conditions,omitempty"`
	Discount         money.Money `json:"discount"`
	DiscountStrategy string      `json:"discount_strategy,omitempty"` // fixed | percentage
	DiscountAmount   float64     `json:"discount_amount,omitempty"`   // percentage value
	DiscountCode     string      `json:"discount_code,omitempty"`
	StartsAt         *time.Time  `json:"starts_at,omitempty"`
	FinishesAt       *time.Time  `json:"finishes_at,omitempty"`
	Disabled         bool        `json:"disabled"`
}

// Ref returns the polymorphic reference for coupon adjustments.
func (p Promotion) Ref() ItemRef { return ItemRef{Type: EntityPromotion, ID: p.ID} }

// HasDiscountCode reports whether redemption requires a code.
func (p Promotion) HasDiscountCode() bool { return p.DiscountCode != "" }

// PromotionDiscountItem joins a promotion to one discounted entity. Unique
// per (promotion, discounted) pair.
type PromotionDiscountItem struct {
	Base
	PromotionID string  `json:"promotion_id"`
	Discounted  ItemRef `json:"discounted"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions captured for validation and audit.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)
