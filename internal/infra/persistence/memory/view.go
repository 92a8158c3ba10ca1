package memory

import (
	"sort"

	"cartcore/pkg/domain"
)

// view implements domain.TransactionView over a state snapshot. It never
// mutates the state it reads and always returns clones of pointer-bearing
// rows.
type view struct {
	state *state
}

func newView(s *state) *view {
	return &view{state: s}
}

var _ domain.TransactionView = (*view)(nil)

func (v *view) FindOrder(id string) (domain.Order, bool) {
	o, ok := v.state.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return cloneOrder(o), true
}

func (v *view) ListOrders() []domain.Order {
	out := make([]domain.Order, 0, len(v.state.orders))
	for _, o := range v.state.orders {
		out = append(out, cloneOrder(o))
	}
	sortByID(out, func(o domain.Order) string { return o.ID })
	return out
}

func (v *view) FindPurchaseItem(id string) (domain.PurchaseItem, bool) {
	p, ok := v.state.purchases[id]
	return p, ok
}

// PurchaseItemByRef locates the purchase row for an order and brought item.
// The (order, item) pair is unique within an order.
func (v *view) PurchaseItemByRef(orderID string, item domain.ItemRef) (domain.PurchaseItem, bool) {
	for _, p := range v.purchasesSorted() {
		if p.OrderID == orderID && p.Item.Equal(item) {
			return p, true
		}
	}
	return domain.PurchaseItem{}, false
}

func (v *view) PurchaseItemsByOrder(orderID string) []domain.PurchaseItem {
	var out []domain.PurchaseItem
	for _, p := range v.purchasesSorted() {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out
}

func (v *view) purchasesSorted() []domain.PurchaseItem {
	out := make([]domain.PurchaseItem, 0, len(v.state.purchases))
	for _, p := range v.state.purchases {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (v *view) FindFeeAdjustment(id string) (domain.FeeAdjustment, bool) {
	f, ok := v.state.adjustments[id]
	if !ok {
		return domain.FeeAdjustment{}, false
	}
	return cloneAdjustment(f), true
}

func (v *view) FeeAdjustmentsByOrder(orderID string) []domain.FeeAdjustment {
	var out []domain.FeeAdjustment
	for _, f := range v.adjustmentsSorted() {
		if f.OrderID == orderID {
			out = append(out, cloneAdjustment(f))
		}
	}
	return out
}

// AdjustmentsByRelated returns ledger lines tied to a specific related item,
// such as refund lines pointing at a purchase.
func (v *view) AdjustmentsByRelated(related domain.ItemRef) []domain.FeeAdjustment {
	var out []domain.FeeAdjustment
	for _, f := range v.adjustmentsSorted() {
		if f.Related.Equal(related) {
			out = append(out, cloneAdjustment(f))
		}
	}
	return out
}

func (v *view) adjustmentsSorted() []domain.FeeAdjustment {
	out := make([]domain.FeeAdjustment, 0, len(v.state.adjustments))
	for _, f := range v.state.adjustments {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (v *view) FindAddress(id string) (domain.Address, bool) {
	a, ok := v.state.addresses[id]
	return a, ok
}

func (v *view) AddressesFor(owner domain.ItemRef) []domain.Address {
	out := make([]domain.Address, 0, 2)
	for _, a := range v.state.addresses {
		if a.Addressable.Equal(owner) {
			out = append(out, a)
		}
	}
	sortByID(out, func(a domain.Address) string { return a.ID })
	return out
}

func (v *view) FindProduct(id string) (domain.Product, bool) {
	p, ok := v.state.products[id]
	if !ok {
		return domain.Product{}, false
	}
	return cloneProduct(p), true
}

func (v *view) ListProducts() []domain.Product {
	out := make([]domain.Product, 0, len(v.state.products))
	for _, p := range v.state.products {
		out = append(out, cloneProduct(p))
	}
	sortByID(out, func(p domain.Product) string { return p.ID })
	return out
}

func (v *view) FindPromotion(id string) (domain.Promotion, bool) {
	p, ok := v.state.promotions[id]
	if !ok {
		return domain.Promotion{}, false
	}
	return clonePromotion(p), true
}

func (v *view) ListPromotions() []domain.Promotion {
	out := make([]domain.Promotion, 0, len(v.state.promotions))
	for _, p := range v.state.promotions {
		out = append(out, clonePromotion(p))
	}
	sortByID(out, func(p domain.Promotion) string { return p.ID })
	return out
}

// PromotionsByCode returns promotions matching a discount code exactly.
func (v *view) PromotionsByCode(code string) []domain.Promotion {
	if code == "" {
		return nil
	}
	var out []domain.Promotion
	for _, p := range v.state.promotions {
		if p.DiscountCode == code {
			out = append(out, clonePromotion(p))
		}
	}
	sortByID(out, func(p domain.Promotion) string { return p.ID })
	return out
}

func (v *view) DiscountItemsByPromotion(promotionID string) []domain.PromotionDiscountItem {
	var out []domain.PromotionDiscountItem
	for _, d := range v.state.discountItems {
		if d.PromotionID == promotionID {
			out = append(out, d)
		}
	}
	sortByID(out, func(d domain.PromotionDiscountItem) string { return d.ID })
	return out
}
