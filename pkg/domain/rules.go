package domain

import "context"

// Severity captures validation outcomes.
type Severity string

// Validation severities determine commit behavior.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn records a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports one failed validation check. Violations are surfaced as
// values attached to results, never panics: user-visible field problems stay
// recoverable.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
	Field    string
}

// Result aggregates violations from rule evaluation.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking reports whether the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations abort a commit.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by validation rules"
}

// RuleView provides read-only access to domain entities for rule evaluation.
type RuleView interface {
	FindOrder(id string) (Order, bool)
	ListOrders() []Order
	PurchaseItemsByOrder(orderID string) []PurchaseItem
	FeeAdjustmentsByOrder(orderID string) []FeeAdjustment
	AddressesFor(owner ItemRef) []Address
	FindProduct(id string) (Product, bool)
	ListPromotions() []Promotion
	DiscountItemsByPromotion(promotionID string) []PromotionDiscountItem
}

// Rule defines a validation executed within a transaction boundary, before
// commit, against the prospective state.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	if rule != nil {
		e.rules = append(e.rules, rule)
	}
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}
