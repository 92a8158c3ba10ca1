package checkout

import (
	"context"
	"time"

	"cartcore/internal/i18n"
	"cartcore/pkg/composition"
	"cartcore/pkg/domain"
	"cartcore/pkg/money"
)

// Refund events declared by the refund feature pack.
const (
	EventRefundPurchase = "refund_purchase"
	EventRefundPayment  = "refund_payment"

	// FeatureRefund names the refund feature pack.
	FeatureRefund = "refund"
)

// RefundOptions tune a refund operation. Zero values mean "derive".
type RefundOptions struct {
	Amount      *money.Money // overrides the derived refund amount
	Quantity    int          // purchase refunds: overrides the unrefunded remainder
	DisplayName string       // overrides the localized ledger line name
	Processed   *time.Time   // stamps the refund as processed
}

// RefundedQuantity sums the quantities already refunded against a purchase.
func RefundedQuantity(view domain.TransactionView, purchase domain.PurchaseItem) int {
	total := 0
	for _, fee := range view.AdjustmentsByRelated(purchase.Ref()) {
		if fee.Purpose == domain.PurposeRefund && fee.OrderID == purchase.OrderID {
			total += fee.Quantity
		}
	}
	return total
}

// RefundPurchase refunds a purchased line as a negative ledger adjustment
// linked to the purchase, marking the order part refunded. Returns nil
// without error when the order is already fully refunded.
func (s *Service) RefundPurchase(ctx context.Context, purchaseID string, opts RefundOptions) (*domain.FeeAdjustment, domain.Result, error) {
	if !s.hasFeature(FeatureRefund) {
		return nil, domain.Result{}, ErrFeatureDisabled{Feature: FeatureRefund}
	}
	started := s.clock.Now()
	var refund *domain.FeeAdjustment
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var txErr error
		refund, txErr = s.refundPurchaseIn(ctx, tx, purchaseID, opts)
		return txErr
	})
	s.observe(ctx, "refund_purchase", err == nil, started)
	return refund, res, err
}

func (s *Service) refundPurchaseIn(ctx context.Context, tx domain.Transaction, purchaseID string, opts RefundOptions) (*domain.FeeAdjustment, error) {
	view := tx.Snapshot()
	purchase, ok := view.FindPurchaseItem(purchaseID)
	if !ok {
		return nil, ErrNotFound{Entity: domain.EntityPurchaseItem, ID: purchaseID}
	}
	order, ok := view.FindOrder(purchase.OrderID)
	if !ok {
		return nil, ErrNotFound{Entity: domain.EntityOrder, ID: purchase.OrderID}
	}
	if order.FullyRefunded() {
		return nil, nil
	}

	var refund *domain.FeeAdjustment
	scope := &EventScope{Ctx: ctx, Tx: tx, Svc: s, OrderID: order.ID}
	err := s.purchaseEvents().Fire(&composition.Event{
		Name: EventRefundPurchase, Context: ctx, Subject: &purchase, Scope: scope,
	}, func() error {
		if _, err := tx.UpdateOrder(order.ID, func(o *domain.Order) error {
			o.Status = domain.StatusPartRefunded
			return nil
		}); err != nil {
			return err
		}
		count := opts.Quantity
		if count == 0 {
			count = purchase.Quantity - RefundedQuantity(view, purchase)
		}
		amount := purchase.Price.Mul(int64(count))
		if opts.Amount != nil {
			amount = *opts.Amount
		}
		name := opts.DisplayName
		if name == "" {
			name = s.catalog.T(i18n.KeyRefundPurchase, map[string]string{"item": purchase.DisplayName})
		}
		created, err := tx.CreateFeeAdjustment(domain.FeeAdjustment{
			OrderID:       order.ID,
			Purpose:       domain.PurposeRefund,
			Price:         amount.Neg(),
			DisplayName:   name,
			Related:       purchase.Ref(),
			Quantity:      count,
			ProcessedDate: opts.Processed,
		})
		if err != nil {
			return err
		}
		refund = &created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refund, nil
}

// FullRefund refunds every purchase on the order inside refund_payment and
// marks the order fully refunded. The boolean reports whether anything was
// refunded; fully refunded orders are a no-op.
func (s *Service) FullRefund(ctx context.Context, orderID string, opts RefundOptions) (bool, domain.Result, error) {
	if !s.hasFeature(FeatureRefund) {
		return false, domain.Result{}, ErrFeatureDisabled{Feature: FeatureRefund}
	}
	started := s.clock.Now()
	refunded := false
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		view := tx.Snapshot()
		order, ok := view.FindOrder(orderID)
		if !ok {
			return ErrNotFound{Entity: domain.EntityOrder, ID: orderID}
		}
		if order.FullyRefunded() {
			return nil
		}
		scope := &EventScope{Ctx: ctx, Tx: tx, Svc: s, OrderID: orderID}
		err := s.orderEvents().Fire(&composition.Event{
			Name: EventRefundPayment, Context: ctx, Subject: &order, Scope: scope,
		}, func() error {
			for _, purchase := range view.PurchaseItemsByOrder(orderID) {
				lineOpts := RefundOptions{Processed: opts.Processed}
				if _, err := s.refundPurchaseIn(ctx, tx, purchase.ID, lineOpts); err != nil {
					return err
				}
			}
			_, err := tx.UpdateOrder(orderID, func(o *domain.Order) error {
				o.Status = domain.StatusFullyRefunded
				return nil
			})
			return err
		})
		if err != nil {
			return err
		}
		refunded = true
		return nil
	})
	s.observe(ctx, "full_refund", err == nil, started)
	return refunded, res, err
}

// GeneralRefund records a single ad-hoc refund adjustment. The amount
// defaults to the order's total price; the order lands in part_refunded when
// the amount is below the live calculated total and fully_refunded
// otherwise. Fully refunded orders and zero amounts are no-ops.
func (s *Service) GeneralRefund(ctx context.Context, orderID string, opts RefundOptions) (*domain.FeeAdjustment, domain.Result, error) {
	if !s.hasFeature(FeatureRefund) {
		return nil, domain.Result{}, ErrFeatureDisabled{Feature: FeatureRefund}
	}
	started := s.clock.Now()
	var refund *domain.FeeAdjustment
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		view := tx.Snapshot()
		order, ok := view.FindOrder(orderID)
		if !ok {
			return ErrNotFound{Entity: domain.EntityOrder, ID: orderID}
		}
		if order.FullyRefunded() {
			return nil
		}
		liveTotal, err := s.CalculatedTotal(view, orderID)
		if err != nil {
			return err
		}
		amount, err := s.TotalPrice(view, order)
		if err != nil {
			return err
		}
		if opts.Amount != nil {
			amount = *opts.Amount
		}
		if amount.IsZero() {
			return nil
		}
		status := domain.StatusFullyRefunded
		if cmp, err := amount.Cmp(liveTotal); err == nil && cmp < 0 {
			status = domain.StatusPartRefunded
		}
		name := opts.DisplayName
		if name == "" {
			name = s.catalog.T(i18n.KeyRefundOrder, map[string]string{"order": order.UID()})
		}
		scope := &EventScope{Ctx: ctx, Tx: tx, Svc: s, OrderID: orderID}
		return s.orderEvents().Fire(&composition.Event{
			Name: EventRefundPayment, Context: ctx, Subject: &order, Scope: scope,
		}, func() error {
			created, err := tx.CreateFeeAdjustment(domain.FeeAdjustment{
				OrderID:       orderID,
				Purpose:       domain.PurposeRefund,
				Price:         amount.Neg(),
				DisplayName:   name,
				ProcessedDate: opts.Processed,
			})
			if err != nil {
				return err
			}
			refund = &created
			_, err = tx.UpdateOrder(orderID, func(o *domain.Order) error {
				o.Status = status
				return nil
			})
			return err
		})
	})
	s.observe(ctx, "general_refund", err == nil, started)
	return refund, res, err
}
