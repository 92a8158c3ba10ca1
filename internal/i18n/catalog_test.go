package i18n

import (
	"testing"

	"golang.org/x/text/language"
)

func TestInterpolation(t *testing.T) {
	cat := NewCatalog("en-GB")
	got := cat.T(KeyRefundPurchase, map[string]string{"item": "Widget"})
	if got != "Refunded Widget" {
		t.Fatalf("T = %q", got)
	}
}

func TestLocaleMatching(t *testing.T) {
	cases := []struct {
		locale string
		want   language.Tag
	}{
		{"en-GB", language.BritishEnglish},
		{"en-US", language.English},
		{"en", language.English},
		{"", language.BritishEnglish},
		{"zz-bogus", language.BritishEnglish},
	}
	for _, tc := range cases {
		cat := NewCatalog(tc.locale)
		if cat.Tag() != tc.want {
			t.Fatalf("locale %q matched %v, want %v", tc.locale, cat.Tag(), tc.want)
		}
	}
}

func TestRegionalMessage(t *testing.T) {
	if got := NewCatalog("en-GB").T(KeyEmptyBasket, nil); got != "basket has no items" {
		t.Fatalf("en-GB empty basket = %q", got)
	}
	if got := NewCatalog("en-US").T(KeyEmptyBasket, nil); got != "cart has no items" {
		t.Fatalf("en-US empty basket = %q", got)
	}
}

func TestUnknownKeyReturnsKey(t *testing.T) {
	if got := NewCatalog("").T("orders.missing", nil); got != "orders.missing" {
		t.Fatalf("unknown key resolved to %q", got)
	}
}
