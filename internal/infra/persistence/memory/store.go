// Package memory implements the in-memory transactional store backing tests
// and the snapshotting durable backends. Transactions run against a deep
// clone of the state; validation rules are evaluated against the prospective
// state before commit, and blocking violations roll the whole mutation back.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"cartcore/pkg/domain"
)

type state struct {
	orders        map[string]domain.Order
	purchases     map[string]domain.PurchaseItem
	adjustments   map[string]domain.FeeAdjustment
	addresses     map[string]domain.Address
	products      map[string]domain.Product
	promotions    map[string]domain.Promotion
	discountItems map[string]domain.PromotionDiscountItem
}

func newState() state {
	return state{
		orders:        make(map[string]domain.Order),
		purchases:     make(map[string]domain.PurchaseItem),
		adjustments:   make(map[string]domain.FeeAdjustment),
		addresses:     make(map[string]domain.Address),
		products:      make(map[string]domain.Product),
		promotions:    make(map[string]domain.Promotion),
		discountItems: make(map[string]domain.PromotionDiscountItem),
	}
}

func (s state) clone() state {
	cloned := newState()
	for k, v := range s.orders {
		cloned.orders[k] = cloneOrder(v)
	}
	for k, v := range s.purchases {
		cloned.purchases[k] = v
	}
	for k, v := range s.adjustments {
		cloned.adjustments[k] = cloneAdjustment(v)
	}
	for k, v := range s.addresses {
		cloned.addresses[k] = v
	}
	for k, v := range s.products {
		cloned.products[k] = cloneProduct(v)
	}
	for k, v := range s.promotions {
		cloned.promotions[k] = clonePromotion(v)
	}
	for k, v := range s.discountItems {
		cloned.discountItems[k] = v
	}
	return cloned
}

func cloneOrder(o domain.Order) domain.Order {
	cp := o
	if o.Total != nil {
		total := *o.Total
		cp.Total = &total
	}
	if o.PaymentDate != nil {
		d := *o.PaymentDate
		cp.PaymentDate = &d
	}
	if o.DispatchDate != nil {
		d := *o.DispatchDate
		cp.DispatchDate = &d
	}
	if o.UserID != nil {
		u := *o.UserID
		cp.UserID = &u
	}
	return cp
}

func cloneAdjustment(f domain.FeeAdjustment) domain.FeeAdjustment {
	cp := f
	if f.ProcessedDate != nil {
		d := *f.ProcessedDate
		cp.ProcessedDate = &d
	}
	return cp
}

func cloneProduct(p domain.Product) domain.Product {
	cp := p
	if p.StockLevel != nil {
		level := *p.StockLevel
		cp.StockLevel = &level
	}
	if p.ShippingPrice != nil {
		price := *p.ShippingPrice
		cp.ShippingPrice = &price
	}
	return cp
}

func clonePromotion(p domain.Promotion) domain.Promotion {
	cp := p
	if p.StartsAt != nil {
		d := *p.StartsAt
		cp.StartsAt = &d
	}
	if p.FinishesAt != nil {
		d := *p.FinishesAt
		cp.FinishesAt = &d
	}
	return cp
}

// Store provides an in-memory transactional store for the shop domain.
type Store struct {
	mu     sync.RWMutex
	state  state
	engine *domain.RulesEngine
	nowFn  func() time.Time
	newID  func() string
}

// NewStore constructs an in-memory store validated by the provided engine.
func NewStore(engine *domain.RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// Compile-time contract assertion.
var _ domain.PersistentStore = (*Store)(nil)

// Transaction is a mutation set applied to a clone of the store state.
type Transaction struct {
	store   *Store
	state   state
	changes []domain.Change
	now     time.Time
}

var _ domain.Transaction = (*Transaction)(nil)

// RunInTransaction executes fn within a transactional copy of the store
// state, evaluates validation rules against the result, and commits only
// when fn succeeds without blocking violations.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Transaction{store: s, state: s.state.clone(), now: s.nowFn()}
	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	if s.engine != nil {
		view := newView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return domain.Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the committed state.
func (s *Store) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(newView(&snapshot))
}

// Snapshot exposes the transactional state to service-layer reads within fn.
func (tx *Transaction) Snapshot() domain.TransactionView {
	return newView(&tx.state)
}

func (tx *Transaction) record(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

// --- Orders ---

// CreateOrder stores a new order within the transaction.
func (tx *Transaction) CreateOrder(o domain.Order) (domain.Order, error) {
	if o.ID == "" {
		o.ID = tx.store.newID()
	}
	if _, exists := tx.state.orders[o.ID]; exists {
		return domain.Order{}, fmt.Errorf("order %q already exists", o.ID)
	}
	if o.Status == "" {
		o.Status = domain.StatusBasket
	}
	if o.SessionUID == "" {
		o.SessionUID = tx.store.newID()
	}
	o.CreatedAt = tx.now
	o.UpdatedAt = tx.now
	tx.state.orders[o.ID] = cloneOrder(o)
	tx.record(domain.Change{Entity: domain.EntityOrder, Action: domain.ActionCreate, After: cloneOrder(o)})
	return cloneOrder(o), nil
}

// UpdateOrder mutates an order using the provided mutator.
func (tx *Transaction) UpdateOrder(id string, mutator func(*domain.Order) error) (domain.Order, error) {
	current, ok := tx.state.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("order %q not found", id)
	}
	before := cloneOrder(current)
	if err := mutator(&current); err != nil {
		return domain.Order{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.orders[id] = cloneOrder(current)
	tx.record(domain.Change{Entity: domain.EntityOrder, Action: domain.ActionUpdate, Before: before, After: cloneOrder(current)})
	return cloneOrder(current), nil
}

// DeleteOrder removes an order and its dependent rows.
func (tx *Transaction) DeleteOrder(id string) error {
	current, ok := tx.state.orders[id]
	if !ok {
		return fmt.Errorf("order %q not found", id)
	}
	delete(tx.state.orders, id)
	for pid, p := range tx.state.purchases {
		if p.OrderID == id {
			delete(tx.state.purchases, pid)
		}
	}
	for aid, a := range tx.state.adjustments {
		if a.OrderID == id {
			delete(tx.state.adjustments, aid)
		}
	}
	tx.record(domain.Change{Entity: domain.EntityOrder, Action: domain.ActionDelete, Before: cloneOrder(current)})
	return nil
}

// --- Purchase items ---

// CreatePurchaseItem stores a new purchase row.
func (tx *Transaction) CreatePurchaseItem(p domain.PurchaseItem) (domain.PurchaseItem, error) {
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.purchases[p.ID]; exists {
		return domain.PurchaseItem{}, fmt.Errorf("purchase item %q already exists", p.ID)
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.purchases[p.ID] = p
	tx.record(domain.Change{Entity: domain.EntityPurchaseItem, Action: domain.ActionCreate, After: p})
	return p, nil
}

// UpdatePurchaseItem mutates a purchase row.
func (tx *Transaction) UpdatePurchaseItem(id string, mutator func(*domain.PurchaseItem) error) (domain.PurchaseItem, error) {
	current, ok := tx.state.purchases[id]
	if !ok {
		return domain.PurchaseItem{}, fmt.Errorf("purchase item %q not found", id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return domain.PurchaseItem{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.purchases[id] = current
	tx.record(domain.Change{Entity: domain.EntityPurchaseItem, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeletePurchaseItem removes a purchase row.
func (tx *Transaction) DeletePurchaseItem(id string) error {
	current, ok := tx.state.purchases[id]
	if !ok {
		return fmt.Errorf("purchase item %q not found", id)
	}
	delete(tx.state.purchases, id)
	tx.record(domain.Change{Entity: domain.EntityPurchaseItem, Action: domain.ActionDelete, Before: current})
	return nil
}

// --- Fee adjustments ---

// CreateFeeAdjustment stores a new ledger line.
func (tx *Transaction) CreateFeeAdjustment(f domain.FeeAdjustment) (domain.FeeAdjustment, error) {
	if f.ID == "" {
		f.ID = tx.store.newID()
	}
	if _, exists := tx.state.adjustments[f.ID]; exists {
		return domain.FeeAdjustment{}, fmt.Errorf("fee adjustment %q already exists", f.ID)
	}
	f.CreatedAt = tx.now
	f.UpdatedAt = tx.now
	tx.state.adjustments[f.ID] = cloneAdjustment(f)
	tx.record(domain.Change{Entity: domain.EntityFeeAdjustment, Action: domain.ActionCreate, After: cloneAdjustment(f)})
	return cloneAdjustment(f), nil
}

// UpdateFeeAdjustment mutates a ledger line.
func (tx *Transaction) UpdateFeeAdjustment(id string, mutator func(*domain.FeeAdjustment) error) (domain.FeeAdjustment, error) {
	current, ok := tx.state.adjustments[id]
	if !ok {
		return domain.FeeAdjustment{}, fmt.Errorf("fee adjustment %q not found", id)
	}
	before := cloneAdjustment(current)
	if err := mutator(&current); err != nil {
		return domain.FeeAdjustment{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.adjustments[id] = cloneAdjustment(current)
	tx.record(domain.Change{Entity: domain.EntityFeeAdjustment, Action: domain.ActionUpdate, Before: before, After: cloneAdjustment(current)})
	return cloneAdjustment(current), nil
}

// DeleteFeeAdjustment removes a ledger line.
func (tx *Transaction) DeleteFeeAdjustment(id string) error {
	current, ok := tx.state.adjustments[id]
	if !ok {
		return fmt.Errorf("fee adjustment %q not found", id)
	}
	delete(tx.state.adjustments, id)
	tx.record(domain.Change{Entity: domain.EntityFeeAdjustment, Action: domain.ActionDelete, Before: cloneAdjustment(current)})
	return nil
}

// --- Addresses ---

// CreateAddress stores a new address.
func (tx *Transaction) CreateAddress(a domain.Address) (domain.Address, error) {
	if a.ID == "" {
		a.ID = tx.store.newID()
	}
	if _, exists := tx.state.addresses[a.ID]; exists {
		return domain.Address{}, fmt.Errorf("address %q already exists", a.ID)
	}
	a.CreatedAt = tx.now
	a.UpdatedAt = tx.now
	tx.state.addresses[a.ID] = a
	tx.record(domain.Change{Entity: domain.EntityAddress, Action: domain.ActionCreate, After: a})
	return a, nil
}

// UpdateAddress mutates an address.
func (tx *Transaction) UpdateAddress(id string, mutator func(*domain.Address) error) (domain.Address, error) {
	current, ok := tx.state.addresses[id]
	if !ok {
		return domain.Address{}, fmt.Errorf("address %q not found", id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return domain.Address{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.addresses[id] = current
	tx.record(domain.Change{Entity: domain.EntityAddress, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteAddress removes an address.
func (tx *Transaction) DeleteAddress(id string) error {
	current, ok := tx.state.addresses[id]
	if !ok {
		return fmt.Errorf("address %q not found", id)
	}
	delete(tx.state.addresses, id)
	tx.record(domain.Change{Entity: domain.EntityAddress, Action: domain.ActionDelete, Before: current})
	return nil
}

// --- Products ---

// CreateProduct stores a new catalog entry.
func (tx *Transaction) CreateProduct(p domain.Product) (domain.Product, error) {
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.products[p.ID]; exists {
		return domain.Product{}, fmt.Errorf("product %q already exists", p.ID)
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.products[p.ID] = cloneProduct(p)
	tx.record(domain.Change{Entity: domain.EntityProduct, Action: domain.ActionCreate, After: cloneProduct(p)})
	return cloneProduct(p), nil
}

// UpdateProduct mutates a catalog entry.
func (tx *Transaction) UpdateProduct(id string, mutator func(*domain.Product) error) (domain.Product, error) {
	current, ok := tx.state.products[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %q not found", id)
	}
	before := cloneProduct(current)
	if err := mutator(&current); err != nil {
		return domain.Product{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.products[id] = cloneProduct(current)
	tx.record(domain.Change{Entity: domain.EntityProduct, Action: domain.ActionUpdate, Before: before, After: cloneProduct(current)})
	return cloneProduct(current), nil
}

// DeleteProduct removes a catalog entry.
func (tx *Transaction) DeleteProduct(id string) error {
	current, ok := tx.state.products[id]
	if !ok {
		return fmt.Errorf("product %q not found", id)
	}
	delete(tx.state.products, id)
	tx.record(domain.Change{Entity: domain.EntityProduct, Action: domain.ActionDelete, Before: cloneProduct(current)})
	return nil
}

// --- Promotions ---

// CreatePromotion stores a promotion template.
func (tx *Transaction) CreatePromotion(p domain.Promotion) (domain.Promotion, error) {
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.promotions[p.ID]; exists {
		return domain.Promotion{}, fmt.Errorf("promotion %q already exists", p.ID)
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.promotions[p.ID] = clonePromotion(p)
	tx.record(domain.Change{Entity: domain.EntityPromotion, Action: domain.ActionCreate, After: clonePromotion(p)})
	return clonePromotion(p), nil
}

// UpdatePromotion mutates a promotion template.
func (tx *Transaction) UpdatePromotion(id string, mutator func(*domain.Promotion) error) (domain.Promotion, error) {
	current, ok := tx.state.promotions[id]
	if !ok {
		return domain.Promotion{}, fmt.Errorf("promotion %q not found", id)
	}
	before := clonePromotion(current)
	if err := mutator(&current); err != nil {
		return domain.Promotion{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.promotions[id] = clonePromotion(current)
	tx.record(domain.Change{Entity: domain.EntityPromotion, Action: domain.ActionUpdate, Before: before, After: clonePromotion(current)})
	return clonePromotion(current), nil
}

// DeletePromotion removes a promotion and its discount links.
func (tx *Transaction) DeletePromotion(id string) error {
	current, ok := tx.state.promotions[id]
	if !ok {
		return fmt.Errorf("promotion %q not found", id)
	}
	delete(tx.state.promotions, id)
	for did, item := range tx.state.discountItems {
		if item.PromotionID == id {
			delete(tx.state.discountItems, did)
		}
	}
	tx.record(domain.Change{Entity: domain.EntityPromotion, Action: domain.ActionDelete, Before: clonePromotion(current)})
	return nil
}

// CreatePromotionDiscountItem stores a promotion/discounted join row.
func (tx *Transaction) CreatePromotionDiscountItem(d domain.PromotionDiscountItem) (domain.PromotionDiscountItem, error) {
	if d.ID == "" {
		d.ID = tx.store.newID()
	}
	if _, exists := tx.state.discountItems[d.ID]; exists {
		return domain.PromotionDiscountItem{}, fmt.Errorf("promotion discount item %q already exists", d.ID)
	}
	d.CreatedAt = tx.now
	d.UpdatedAt = tx.now
	tx.state.discountItems[d.ID] = d
	tx.record(domain.Change{Entity: domain.EntityPromotionDiscountItem, Action: domain.ActionCreate, After: d})
	return d, nil
}

// DeletePromotionDiscountItem removes a join row.
func (tx *Transaction) DeletePromotionDiscountItem(id string) error {
	current, ok := tx.state.discountItems[id]
	if !ok {
		return fmt.Errorf("promotion discount item %q not found", id)
	}
	delete(tx.state.discountItems, id)
	tx.record(domain.Change{Entity: domain.EntityPromotionDiscountItem, Action: domain.ActionDelete, Before: current})
	return nil
}

// --- Committed reads ---

// GetOrder retrieves an order from committed state.
func (s *Store) GetOrder(id string) (domain.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.state.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return cloneOrder(o), true
}

// ListOrders returns all committed orders.
func (s *Store) ListOrders() []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Order, 0, len(s.state.orders))
	for _, o := range s.state.orders {
		out = append(out, cloneOrder(o))
	}
	sortByID(out, func(o domain.Order) string { return o.ID })
	return out
}

// GetProduct retrieves a product from committed state.
func (s *Store) GetProduct(id string) (domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.products[id]
	if !ok {
		return domain.Product{}, false
	}
	return cloneProduct(p), true
}

// ListProducts returns all committed products.
func (s *Store) ListProducts() []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Product, 0, len(s.state.products))
	for _, p := range s.state.products {
		out = append(out, cloneProduct(p))
	}
	sortByID(out, func(p domain.Product) string { return p.ID })
	return out
}

// GetPromotion retrieves a promotion from committed state.
func (s *Store) GetPromotion(id string) (domain.Promotion, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.promotions[id]
	if !ok {
		return domain.Promotion{}, false
	}
	return clonePromotion(p), true
}

// ListPromotions returns all committed promotions.
func (s *Store) ListPromotions() []domain.Promotion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Promotion, 0, len(s.state.promotions))
	for _, p := range s.state.promotions {
		out = append(out, clonePromotion(p))
	}
	sortByID(out, func(p domain.Promotion) string { return p.ID })
	return out
}

func sortByID[T any](items []T, id func(T) string) {
	sort.Slice(items, func(i, j int) bool { return id(items[i]) < id(items[j]) })
}
