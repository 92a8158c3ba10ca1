package memory

import "cartcore/pkg/domain"

// StateSnapshot is the serializable form of the store contents. The durable
// backends persist it as JSON after each committed transaction and restore
// it on open.
type StateSnapshot struct {
	Orders        []domain.Order                 `json:"orders"`
	Purchases     []domain.PurchaseItem          `json:"purchase_items"`
	Adjustments   []domain.FeeAdjustment         `json:"fee_adjustments"`
	Addresses     []domain.Address               `json:"addresses"`
	Products      []domain.Product               `json:"products"`
	Promotions    []domain.Promotion             `json:"promotions"`
	DiscountItems []domain.PromotionDiscountItem `json:"promotion_discount_items"`
}

// ExportState captures the committed store contents in deterministic order.
func (s *Store) ExportState() StateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StateSnapshot{}
	for _, o := range s.state.orders {
		snap.Orders = append(snap.Orders, cloneOrder(o))
	}
	sortByID(snap.Orders, func(o domain.Order) string { return o.ID })
	for _, p := range s.state.purchases {
		snap.Purchases = append(snap.Purchases, p)
	}
	sortByID(snap.Purchases, func(p domain.PurchaseItem) string { return p.ID })
	for _, f := range s.state.adjustments {
		snap.Adjustments = append(snap.Adjustments, cloneAdjustment(f))
	}
	sortByID(snap.Adjustments, func(f domain.FeeAdjustment) string { return f.ID })
	for _, a := range s.state.addresses {
		snap.Addresses = append(snap.Addresses, a)
	}
	sortByID(snap.Addresses, func(a domain.Address) string { return a.ID })
	for _, p := range s.state.products {
		snap.Products = append(snap.Products, cloneProduct(p))
	}
	sortByID(snap.Products, func(p domain.Product) string { return p.ID })
	for _, p := range s.state.promotions {
		snap.Promotions = append(snap.Promotions, clonePromotion(p))
	}
	sortByID(snap.Promotions, func(p domain.Promotion) string { return p.ID })
	for _, d := range s.state.discountItems {
		snap.DiscountItems = append(snap.DiscountItems, d)
	}
	sortByID(snap.DiscountItems, func(d domain.PromotionDiscountItem) string { return d.ID })
	return snap
}

// ImportState replaces the committed store contents with a snapshot.
func (s *Store) ImportState(snap StateSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := newState()
	for _, o := range snap.Orders {
		next.orders[o.ID] = cloneOrder(o)
	}
	for _, p := range snap.Purchases {
		next.purchases[p.ID] = p
	}
	for _, f := range snap.Adjustments {
		next.adjustments[f.ID] = cloneAdjustment(f)
	}
	for _, a := range snap.Addresses {
		next.addresses[a.ID] = a
	}
	for _, p := range snap.Products {
		next.products[p.ID] = cloneProduct(p)
	}
	for _, p := range snap.Promotions {
		next.promotions[p.ID] = clonePromotion(p)
	}
	for _, d := range snap.DiscountItems {
		next.discountItems[d.ID] = d
	}
	s.state = next
}
