package checkout

import (
	"context"
	"fmt"

	"cartcore/pkg/domain"
)

// Rules returns the validation rules for a bound context, ready to register
// on a rules engine before the store is constructed.
func Rules(bindings *Bindings) []domain.Rule {
	rules := []domain.Rule{
		orderStatusRule{},
		adjustmentPurposeRule{},
		purchaseUniquenessRule{},
		promotionLinkUniquenessRule{},
		addressContactRule{},
	}
	if bindings != nil && bindings.Product != nil && bindings.Product.PurchaseBacked {
		rules = append(rules, purchasedProductGuardRule{})
	}
	return rules
}

func blocking(rule, message string, entity domain.EntityType, id string) domain.Result {
	return domain.Result{Violations: []domain.Violation{{
		Rule:     rule,
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   entity,
		EntityID: id,
	}}}
}

// orderStatusRule keeps order statuses within the declared list and warns
// when a non-basket order lacks a billing address.
type orderStatusRule struct{}

func (orderStatusRule) Name() string { return "order_status_inclusion" }

func (orderStatusRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var result domain.Result
	for _, change := range changes {
		if change.Entity != domain.EntityOrder || change.Action == domain.ActionDelete {
			continue
		}
		order, ok := change.After.(domain.Order)
		if !ok {
			continue
		}
		if !domain.ValidOrderStatus(order.Status) {
			result.Merge(blocking("order_status_inclusion",
				fmt.Sprintf("status %q is not in the declared status list", order.Status),
				domain.EntityOrder, order.ID))
		}
		if order.SessionUID == "" {
			result.Merge(blocking("order_status_inclusion",
				"session uid is required", domain.EntityOrder, order.ID))
		}
		if !order.Basket() {
			if !hasBillingAddress(view, order.ID) {
				result.Merge(domain.Result{Violations: []domain.Violation{{
					Rule:     "order_status_inclusion",
					Severity: domain.SeverityWarn,
					Message:  "order has no billing address",
					Entity:   domain.EntityOrder,
					EntityID: order.ID,
				}}})
			}
		}
	}
	return result, nil
}

func hasBillingAddress(view domain.RuleView, orderID string) bool {
	owner := domain.ItemRef{Type: domain.EntityOrder, ID: orderID}
	for _, addr := range view.AddressesFor(owner) {
		if addr.Purpose == domain.AddressBilling {
			return true
		}
	}
	return false
}

// adjustmentPurposeRule keeps ledger purposes within the declared set and
// requires the line essentials.
type adjustmentPurposeRule struct{}

func (adjustmentPurposeRule) Name() string { return "adjustment_purpose_inclusion" }

func (adjustmentPurposeRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var result domain.Result
	for _, change := range changes {
		if change.Entity != domain.EntityFeeAdjustment || change.Action == domain.ActionDelete {
			continue
		}
		fee, ok := change.After.(domain.FeeAdjustment)
		if !ok {
			continue
		}
		if !domain.ValidAdjustmentPurpose(fee.Purpose) {
			result.Merge(blocking("adjustment_purpose_inclusion",
				fmt.Sprintf("purpose %q is not in the declared purpose set", fee.Purpose),
				domain.EntityFeeAdjustment, fee.ID))
		}
		if fee.DisplayName == "" {
			result.Merge(blocking("adjustment_purpose_inclusion",
				"display name is required", domain.EntityFeeAdjustment, fee.ID))
		}
		if fee.OrderID == "" {
			result.Merge(blocking("adjustment_purpose_inclusion",
				"order reference is required", domain.EntityFeeAdjustment, fee.ID))
		} else if _, ok := view.FindOrder(fee.OrderID); !ok {
			result.Merge(blocking("adjustment_purpose_inclusion",
				fmt.Sprintf("order %q does not exist", fee.OrderID),
				domain.EntityFeeAdjustment, fee.ID))
		}
	}
	return result, nil
}

// purchaseUniquenessRule enforces one purchase row per (order, brought item).
type purchaseUniquenessRule struct{}

func (purchaseUniquenessRule) Name() string { return "purchase_uniqueness" }

func (purchaseUniquenessRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var result domain.Result
	touched := map[string]struct{}{}
	for _, change := range changes {
		if change.Entity != domain.EntityPurchaseItem || change.Action == domain.ActionDelete {
			continue
		}
		purchase, ok := change.After.(domain.PurchaseItem)
		if !ok {
			continue
		}
		if _, seen := touched[purchase.OrderID]; seen {
			continue
		}
		touched[purchase.OrderID] = struct{}{}
		seen := map[string]string{}
		for _, row := range view.PurchaseItemsByOrder(purchase.OrderID) {
			key := string(row.Item.Type) + "/" + row.Item.ID
			if prior, dup := seen[key]; dup {
				result.Merge(blocking("purchase_uniqueness",
					fmt.Sprintf("item %s already purchased on order %s (row %s)", key, purchase.OrderID, prior),
					domain.EntityPurchaseItem, row.ID))
				continue
			}
			seen[key] = row.ID
		}
	}
	return result, nil
}

// promotionLinkUniquenessRule enforces one join row per (promotion,
// discounted item).
type promotionLinkUniquenessRule struct{}

func (promotionLinkUniquenessRule) Name() string { return "promotion_link_uniqueness" }

func (promotionLinkUniquenessRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var result domain.Result
	for _, change := range changes {
		if change.Entity != domain.EntityPromotionDiscountItem || change.Action != domain.ActionCreate {
			continue
		}
		link, ok := change.After.(domain.PromotionDiscountItem)
		if !ok {
			continue
		}
		for _, row := range view.DiscountItemsByPromotion(link.PromotionID) {
			if row.ID != link.ID && row.Discounted.Equal(link.Discounted) {
				result.Merge(blocking("promotion_link_uniqueness",
					fmt.Sprintf("item %s/%s already linked to promotion %s", link.Discounted.Type, link.Discounted.ID, link.PromotionID),
					domain.EntityPromotionDiscountItem, link.ID))
			}
		}
	}
	return result, nil
}

// addressContactRule requires an email or phone contact plus the location
// essentials on every address.
type addressContactRule struct{}

func (addressContactRule) Name() string { return "address_contact_details" }

func (addressContactRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var result domain.Result
	for _, change := range changes {
		if change.Entity != domain.EntityAddress || change.Action == domain.ActionDelete {
			continue
		}
		addr, ok := change.After.(domain.Address)
		if !ok {
			continue
		}
		if addr.Email == "" && addr.Phone == "" {
			result.Merge(blocking("address_contact_details",
				"either an email or phone contact is required",
				domain.EntityAddress, addr.ID))
		}
		if addr.Purpose != domain.AddressBilling && addr.Purpose != domain.AddressShipping {
			result.Merge(blocking("address_contact_details",
				fmt.Sprintf("purpose %q is not billing or shipping", addr.Purpose),
				domain.EntityAddress, addr.ID))
		}
		if addr.PostalCode == "" || addr.Country == "" || addr.Street == "" {
			result.Merge(blocking("address_contact_details",
				"postal code, country, and street are required",
				domain.EntityAddress, addr.ID))
		}
	}
	return result, nil
}

// purchasedProductGuardRule blocks deleting products that purchase rows
// still reference. Registered only when the purchase model marks products
// as purchase backed during composition setup.
type purchasedProductGuardRule struct{}

func (purchasedProductGuardRule) Name() string { return "purchased_product_guard" }

func (purchasedProductGuardRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var result domain.Result
	for _, change := range changes {
		if change.Entity != domain.EntityProduct || change.Action != domain.ActionDelete {
			continue
		}
		product, ok := change.Before.(domain.Product)
		if !ok {
			continue
		}
		for _, order := range view.ListOrders() {
			for _, purchase := range view.PurchaseItemsByOrder(order.ID) {
				if purchase.Item.Equal(product.Ref()) {
					result.Merge(blocking("purchased_product_guard",
						fmt.Sprintf("product %s has purchases and cannot be deleted", product.ID),
						domain.EntityProduct, product.ID))
				}
			}
		}
	}
	return result, nil
}
