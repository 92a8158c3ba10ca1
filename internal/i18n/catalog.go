// Package i18n provides localized display names for ledger lines and
// customer-facing order messages.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

// Message keys used by the checkout service and features.
const (
	KeyEmptyBasket      = "orders.errors.empty_basket"
	KeyRefundPurchase   = "orders.refund.purchase"
	KeyRefundOrder      = "orders.refund.order"
	KeyTaxationItemName = "orders.taxation.item_name"
	KeyShippingItemName = "orders.shipping.item_name"
	KeyCouponItemName   = "orders.offer.coupon_item_name"
	KeyOfferItemName    = "orders.offer.item_name"
)

var supportedTags = []language.Tag{
	language.BritishEnglish,
	language.English,
}

var tagMatcher = language.NewMatcher(supportedTags)

var messages = map[language.Tag]map[string]string{
	language.BritishEnglish: {
		KeyEmptyBasket:      "basket has no items",
		KeyRefundPurchase:   "Refunded %{item}",
		KeyRefundOrder:      "Refund for order %{order}",
		KeyTaxationItemName: "Tax",
		KeyShippingItemName: "Shipping",
		KeyCouponItemName:   "Coupon %{code}",
		KeyOfferItemName:    "%{summary}",
	},
	language.English: {
		KeyEmptyBasket:      "cart has no items",
		KeyRefundPurchase:   "Refunded %{item}",
		KeyRefundOrder:      "Refund for order %{order}",
		KeyTaxationItemName: "Tax",
		KeyShippingItemName: "Shipping",
		KeyCouponItemName:   "Coupon %{code}",
		KeyOfferItemName:    "%{summary}",
	},
}

// Default returns the default language tag.
func Default() language.Tag {
	return language.BritishEnglish
}

// Catalog resolves message keys for one matched locale.
type Catalog struct {
	tag language.Tag
}

// NewCatalog matches the requested locale against the supported set and
// returns a catalog bound to the best match. Empty or unknown locales fall
// back to the default.
func NewCatalog(locale string) *Catalog {
	tag := Default()
	if locale != "" {
		if parsed, err := language.Parse(locale); err == nil {
			matched, _, confidence := tagMatcher.Match(parsed)
			if confidence != language.No {
				tag = canonical(matched)
			}
		}
	}
	return &Catalog{tag: tag}
}

// Tag returns the resolved language tag.
func (c *Catalog) Tag() language.Tag { return c.tag }

// T resolves a message key and interpolates %{name} placeholders from args.
// Unknown keys return the key itself so missing translations stay visible.
func (c *Catalog) T(key string, args map[string]string) string {
	table, ok := messages[c.tag]
	if !ok {
		table = messages[Default()]
	}
	template, ok := table[key]
	if !ok {
		return key
	}
	if len(args) == 0 {
		return template
	}
	out := template
	for name, value := range args {
		out = strings.ReplaceAll(out, "%{"+name+"}", value)
	}
	return out
}

// canonical maps matcher output back to one of the supported tags. The
// matcher can return inexact tags such as en-u-rg-gbzzzz for regional
// variants.
func canonical(matched language.Tag) language.Tag {
	base, _ := matched.Base()
	region, _ := matched.Region()
	for _, tag := range supportedTags {
		tb, _ := tag.Base()
		tr, _ := tag.Region()
		if tb == base && tr == region {
			return tag
		}
	}
	for _, tag := range supportedTags {
		tb, _ := tag.Base()
		if tb == base {
			return tag
		}
	}
	return Default()
}
