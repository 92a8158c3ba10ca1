package checkout

import (
	"fmt"

	"cartcore/pkg/composition"
	"cartcore/pkg/domain"
)

// Model names registered by this package. Feature packs target these names.
const (
	ModelOrder                 = "order"
	ModelPurchaseItem          = "purchase_item"
	ModelFeeAdjustment         = "fee_adjustment"
	ModelAddress               = "address"
	ModelProduct               = "product"
	ModelPromotion             = "promotion"
	ModelPromotionDiscountItem = "promotion_discount_item"
)

// Payment lifecycle events declared on the order type, in addition to one
// event per order status.
const (
	EventCompletedPayment   = "completed_payment"
	EventFailedPayment      = "failed_payment"
	EventProcessPayment     = "process_payment"
	EventMerchantProcessing = "merchant_processing"
	EventBasketModify       = "basket_modify"
)

var addressActions = []string{"save", "create", "update", "destroy"}

// AddressEvent builds an address event name such as save_address or
// destroy_shipping_address.
func AddressEvent(action string, purpose domain.AddressPurpose) string {
	if purpose == "" {
		return action + "_address"
	}
	return fmt.Sprintf("%s_%s_address", action, purpose)
}

func orderAddressEvents() []string {
	var names []string
	for _, action := range addressActions {
		names = append(names, AddressEvent(action, ""))
		names = append(names, AddressEvent(action, domain.AddressBilling))
		names = append(names, AddressEvent(action, domain.AddressShipping))
	}
	return names
}

// RegisterModels installs the built-in model definitions. Call once per
// registry at startup, before defining feature packs.
func RegisterModels(reg *composition.Registry) {
	reg.DefineModel(ModelOrder, func(m *composition.Model) {
		frag := composition.Fragment{
			Name: "orders",
			Columns: append([]composition.Column{
				{Name: "internal_notes", Kind: composition.KindText},
				{Name: "customer_notes", Kind: composition.KindText},
				{Name: "payment_date", Kind: composition.KindDatetime},
				{Name: "status", Kind: composition.KindString},
				{Name: "session_uid", Kind: composition.KindString},
				{Name: "total_currency", Kind: composition.KindString},
				{Name: "total_amount", Kind: composition.KindDecimal},
			}, composition.Timestamps()...),
			Indexes: [][]string{
				{"total_amount"}, {"status"}, {"session_uid"},
				{"created_at"}, {"updated_at"},
			},
		}
		m.Structure(frag)
		m.Behavior(func(t *composition.Type, b composition.Bindable) error {
			if _, ok := b.(*OrderBinding); !ok {
				return fmt.Errorf("order model requires *OrderBinding, got %T", b)
			}
			for _, status := range domain.OrderStatuses() {
				t.Events().Declare(string(status))
			}
			t.Events().Declare(
				EventCompletedPayment,
				EventFailedPayment,
				EventProcessPayment,
				EventMerchantProcessing,
			)
			t.Events().Declare(orderAddressEvents()...)
			return nil
		})
	})

	reg.DefineModel(ModelPurchaseItem, func(m *composition.Model) {
		frag := composition.Fragment{
			Name: "purchase_order_lines",
			Columns: append(append(
				composition.Reference("brought_item"),
				composition.BelongsTo("order"),
				composition.Column{Name: "price_amount", Kind: composition.KindInteger},
				composition.Column{Name: "price_currency", Kind: composition.KindString},
				composition.Column{Name: "display_name", Kind: composition.KindString},
			), composition.Timestamps()...),
			Indexes: [][]string{
				{"brought_item_type"}, {"brought_item_id"},
				{"order_id"}, {"price_amount"},
			},
		}
		m.Structure(frag)
		m.Behavior(func(t *composition.Type, b composition.Bindable) error {
			if _, ok := b.(*PurchaseItemBinding); !ok {
				return fmt.Errorf("purchase_item model requires *PurchaseItemBinding, got %T", b)
			}
			t.Events().Declare(EventBasketModify)
			// Guard purchase-backed products once the full type graph exists.
			t.Setup(func() error {
				if pb, ok := t.Context().Bound(ModelProduct).(*ProductBinding); ok {
					pb.PurchaseBacked = true
				}
				return nil
			})
			return nil
		})
	})

	reg.DefineModel(ModelFeeAdjustment, func(m *composition.Model) {
		frag := composition.Fragment{
			Name: "fee_adjustments",
			Columns: append(
				append([]composition.Column{composition.BelongsTo("order")},
					composition.Reference("related_adjustment_item")...),
				composition.Column{Name: "purpose", Kind: composition.KindString},
				composition.Column{Name: "display_name", Kind: composition.KindString},
				composition.Column{Name: "price_currency", Kind: composition.KindString},
				composition.Column{Name: "price_amount", Kind: composition.KindInteger},
				composition.Column{Name: "created_at", Kind: composition.KindDatetime},
				composition.Column{Name: "processed_date", Kind: composition.KindDatetime},
			),
			Indexes: [][]string{
				{"purpose"}, {"order_id"}, {"price_amount"},
				{"related_adjustment_item_type"}, {"related_adjustment_item_id"},
			},
		}
		m.Structure(frag)
		m.Behavior(func(t *composition.Type, b composition.Bindable) error {
			if _, ok := b.(*FeeAdjustmentBinding); !ok {
				return fmt.Errorf("fee_adjustment model requires *FeeAdjustmentBinding, got %T", b)
			}
			return nil
		})
	})

	reg.DefineModel(ModelAddress, func(m *composition.Model) {
		contact := []string{
			"postal_code", "country", "region", "locality", "street", "building",
			"role", "purpose", "email", "first_name", "last_name", "phone",
		}
		columns := append([]composition.Column{
			{Name: "position", Kind: composition.KindInteger},
		}, composition.Reference("addressable")...)
		for _, name := range contact {
			columns = append(columns, composition.Column{Name: name, Kind: composition.KindString})
		}
		columns = append(columns, composition.Timestamps()...)
		m.Structure(composition.Fragment{
			Name:    "addressable",
			Columns: columns,
			Indexes: [][]string{
				{"position"}, {"addressable_type"}, {"addressable_id"},
				{"role"}, {"purpose"},
			},
		})
		m.Behavior(func(t *composition.Type, b composition.Bindable) error {
			if _, ok := b.(*AddressBinding); !ok {
				return fmt.Errorf("address model requires *AddressBinding, got %T", b)
			}
			return nil
		})
	})

	reg.DefineModel(ModelProduct, func(m *composition.Model) {
		m.Structure(composition.Fragment{
			Name: "products",
			Columns: append([]composition.Column{
				{Name: "display_name", Kind: composition.KindString},
				{Name: "description", Kind: composition.KindText},
				{Name: "price_amount", Kind: composition.KindInteger},
				{Name: "price_currency", Kind: composition.KindString},
			}, composition.Timestamps()...),
			Indexes: [][]string{{"display_name"}, {"price_amount"}},
		})
		m.Behavior(func(t *composition.Type, b composition.Bindable) error {
			if _, ok := b.(*ProductBinding); !ok {
				return fmt.Errorf("product model requires *ProductBinding, got %T", b)
			}
			return nil
		})
	})

	// Promotion structure and behaviors come from the offer feature pack; the
	// base definitions exist so the names can always be bound.
	reg.DefineModel(ModelPromotion, func(m *composition.Model) {
		m.Behavior(func(t *composition.Type, b composition.Bindable) error {
			if _, ok := b.(*PromotionBinding); !ok {
				return fmt.Errorf("promotion model requires *PromotionBinding, got %T", b)
			}
			return nil
		})
	})
	reg.DefineModel(ModelPromotionDiscountItem, func(m *composition.Model) {
		m.Behavior(func(t *composition.Type, b composition.Bindable) error {
			if _, ok := b.(*PromotionDiscountItemBinding); !ok {
				return fmt.Errorf("promotion_discount_item model requires *PromotionDiscountItemBinding, got %T", b)
			}
			return nil
		})
	})
}

// NewBindings constructs fresh unbound descriptors.
func NewBindings() *Bindings {
	return &Bindings{
		Order:                 &OrderBinding{},
		PurchaseItem:          &PurchaseItemBinding{},
		FeeAdjustment:         &FeeAdjustmentBinding{},
		Address:               &AddressBinding{},
		Product:               &ProductBinding{},
		Promotion:             &PromotionBinding{DiscountStrategies: make(map[string]DiscountStrategy)},
		PromotionDiscountItem: &PromotionDiscountItemBinding{},
	}
}

// NewDefaultContext binds every built-in model into a fresh context, selects
// the requested features, and applies the composition.
func NewDefaultContext(reg *composition.Registry, features ...string) (*Bindings, error) {
	b := NewBindings()
	ctx := reg.NewContext("shop")
	ctx.Bind(ModelOrder, b.Order)
	ctx.Bind(ModelPurchaseItem, b.PurchaseItem)
	ctx.Bind(ModelFeeAdjustment, b.FeeAdjustment)
	ctx.Bind(ModelAddress, b.Address)
	ctx.Bind(ModelProduct, b.Product)
	ctx.Bind(ModelPromotion, b.Promotion)
	ctx.Bind(ModelPromotionDiscountItem, b.PromotionDiscountItem)
	for _, feature := range features {
		ctx.Select(feature)
	}
	if err := ctx.Apply(); err != nil {
		return nil, err
	}
	b.Context = ctx
	return b, nil
}
