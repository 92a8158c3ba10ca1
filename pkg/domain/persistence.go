package domain

import "context"

// Transaction exposes the domain operations a persistence implementation
// must support within an atomic scope. Mutators receive a pointer to the
// current row and may return an error to abort.
type Transaction interface {
	Snapshot() TransactionView

	CreateOrder(Order) (Order, error)
	UpdateOrder(id string, mutator func(*Order) error) (Order, error)
	DeleteOrder(id string) error

	CreatePurchaseItem(PurchaseItem) (PurchaseItem, error)
	UpdatePurchaseItem(id string, mutator func(*PurchaseItem) error) (PurchaseItem, error)
	DeletePurchaseItem(id string) error

	CreateFeeAdjustment(FeeAdjustment) (FeeAdjustment, error)
	UpdateFeeAdjustment(id string, mutator func(*FeeAdjustment) error) (FeeAdjustment, error)
	DeleteFeeAdjustment(id string) error

	CreateAddress(Address) (Address, error)
	UpdateAddress(id string, mutator func(*Address) error) (Address, error)
	DeleteAddress(id string) error

	CreateProduct(Product) (Product, error)
	UpdateProduct(id string, mutator func(*Product) error) (Product, error)
	DeleteProduct(id string) error

	CreatePromotion(Promotion) (Promotion, error)
	UpdatePromotion(id string, mutator func(*Promotion) error) (Promotion, error)
	DeletePromotion(id string) error

	CreatePromotionDiscountItem(PromotionDiscountItem) (PromotionDiscountItem, error)
	DeletePromotionDiscountItem(id string) error
}

// TransactionView provides read-only access to snapshot data within a
// transaction or a committed view.
type TransactionView interface {
	RuleView

	FindPurchaseItem(id string) (PurchaseItem, bool)
	PurchaseItemByRef(orderID string, item ItemRef) (PurchaseItem, bool)
	FindFeeAdjustment(id string) (FeeAdjustment, bool)
	AdjustmentsByRelated(related ItemRef) []FeeAdjustment
	FindAddress(id string) (Address, bool)
	ListProducts() []Product
	FindPromotion(id string) (Promotion, bool)
	PromotionsByCode(code string) []Promotion
}

// PersistentStore is the minimal abstraction over durable backends used by
// the checkout service and supporting tooling.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error

	GetOrder(id string) (Order, bool)
	ListOrders() []Order
	GetProduct(id string) (Product, bool)
	ListProducts() []Product
	GetPromotion(id string) (Promotion, bool)
	ListPromotions() []Promotion
}
