package checkout

import (
	"context"
	"fmt"

	"cartcore/internal/i18n"
	"cartcore/pkg/composition"
	"cartcore/pkg/domain"
)

// Transition moves an order to the named status in one transaction, firing
// the status event around the persist.
func (s *Service) Transition(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, domain.Result, error) {
	started := s.clock.Now()
	var updated domain.Order
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.Snapshot().FindOrder(orderID); !ok {
			return ErrNotFound{Entity: domain.EntityOrder, ID: orderID}
		}
		var txErr error
		updated, txErr = s.transitionIn(ctx, tx, orderID, status)
		return txErr
	})
	s.observe(ctx, "transition_"+string(status), err == nil, started)
	return updated, res, err
}

// transitionIn performs a status transition inside an open transaction.
func (s *Service) transitionIn(ctx context.Context, tx domain.Transaction, orderID string, status domain.OrderStatus) (domain.Order, error) {
	if !domain.ValidOrderStatus(status) {
		return domain.Order{}, fmt.Errorf("unknown order status %q", status)
	}
	order, ok := tx.Snapshot().FindOrder(orderID)
	if !ok {
		return domain.Order{}, ErrNotFound{Entity: domain.EntityOrder, ID: orderID}
	}
	scope := &EventScope{Ctx: ctx, Tx: tx, Svc: s, OrderID: orderID}
	err := s.orderEvents().Fire(&composition.Event{
		Name: string(status), Context: ctx, Subject: &order, Scope: scope,
	}, func() error {
		var txErr error
		order, txErr = tx.UpdateOrder(orderID, func(o *domain.Order) error {
			o.Status = status
			return nil
		})
		return txErr
	})
	return order, err
}

// Checkout processes payment for a basket order. It freezes the live total,
// requires a valid non-empty basket, transitions through pending, and runs
// merchant processing inside the payment events. The boolean reports whether
// the payment succeeded; a failed merchant call is an unsuccessful outcome,
// not an error. Checkout on a non-basket order is a no-op returning false.
func (s *Service) Checkout(ctx context.Context, orderID string) (bool, domain.Result, error) {
	started := s.clock.Now()
	paid := false
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		view := tx.Snapshot()
		order, ok := view.FindOrder(orderID)
		if !ok {
			return ErrNotFound{Entity: domain.EntityOrder, ID: orderID}
		}
		if !order.Basket() {
			return nil
		}

		total, err := s.TotalPrice(view, order)
		if err != nil {
			return err
		}
		order, err = tx.UpdateOrder(orderID, func(o *domain.Order) error {
			frozen := total
			o.Total = &frozen
			o.Currency = total.Currency
			return nil
		})
		if err != nil {
			return err
		}

		if len(view.PurchaseItemsByOrder(orderID)) == 0 {
			s.logger.Warn("checkout rejected", "order_id", orderID, "reason", s.catalog.T(i18n.KeyEmptyBasket, nil))
			return s.paymentFailed(ctx, tx, orderID)
		}
		if !s.orderValid(order) {
			return s.paymentFailed(ctx, tx, orderID)
		}

		if _, err := s.transitionIn(ctx, tx, orderID, domain.StatusPending); err != nil {
			return err
		}

		scope := &EventScope{Ctx: ctx, Tx: tx, Svc: s, OrderID: orderID}
		settled := false
		err = s.orderEvents().Fire(&composition.Event{
			Name: EventProcessPayment, Context: ctx, Subject: &order, Scope: scope,
		}, func() error {
			var mErr error
			settled, mErr = s.handleMerchantProcessing(ctx, scope, order)
			return mErr
		})
		if err != nil {
			return err
		}

		if settled {
			if err := s.paymentSuccess(ctx, tx, orderID); err != nil {
				return err
			}
			paid = true
			return nil
		}
		return s.paymentFailed(ctx, tx, orderID)
	})
	s.observe(ctx, "checkout", err == nil && paid, started)
	if err != nil {
		return false, res, err
	}
	if paid {
		s.archiveInvoice(ctx, orderID)
	}
	return paid, res, nil
}

// orderValid applies the intrinsic order checks that gate checkout.
func (s *Service) orderValid(order domain.Order) bool {
	return order.SessionUID != "" && domain.ValidOrderStatus(order.Status)
}

// handleMerchantProcessing dispatches the merchant processor inside the
// merchant_processing event, skipping dispatch entirely for zero totals.
func (s *Service) handleMerchantProcessing(ctx context.Context, scope *EventScope, order domain.Order) (bool, error) {
	if s.skipMerchantProcessing(order) {
		return true, nil
	}
	ok := false
	err := s.orderEvents().Fire(&composition.Event{
		Name: EventMerchantProcessing, Context: ctx, Subject: &order, Scope: scope,
	}, func() error {
		var mErr error
		ok, mErr = s.merchant.Process(ctx, scope, order)
		return mErr
	})
	return ok, err
}

// skipMerchantProcessing reports whether the gateway can be bypassed, which
// is the case for zero-value orders.
func (s *Service) skipMerchantProcessing(order domain.Order) bool {
	return order.Total == nil || order.Total.IsZero()
}

// paymentSuccess records the payment date and fires completed_payment around
// the success transition.
func (s *Service) paymentSuccess(ctx context.Context, tx domain.Transaction, orderID string) error {
	now := s.clock.Now()
	if _, err := tx.UpdateOrder(orderID, func(o *domain.Order) error {
		o.PaymentDate = &now
		return nil
	}); err != nil {
		return err
	}
	scope := &EventScope{Ctx: ctx, Tx: tx, Svc: s, OrderID: orderID}
	return s.orderEvents().Fire(&composition.Event{
		Name: EventCompletedPayment, Context: ctx, Scope: scope,
	}, func() error {
		_, err := s.transitionIn(ctx, tx, orderID, domain.StatusSuccess)
		return err
	})
}

// paymentFailed fires failed_payment around the failed transition.
func (s *Service) paymentFailed(ctx context.Context, tx domain.Transaction, orderID string) error {
	scope := &EventScope{Ctx: ctx, Tx: tx, Svc: s, OrderID: orderID}
	return s.orderEvents().Fire(&composition.Event{
		Name: EventFailedPayment, Context: ctx, Scope: scope,
	}, func() error {
		_, err := s.transitionIn(ctx, tx, orderID, domain.StatusFailed)
		return err
	})
}

// MarkPaid stamps the payment date without changing status.
func (s *Service) MarkPaid(ctx context.Context, orderID string) (domain.Order, domain.Result, error) {
	var updated domain.Order
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		now := s.clock.Now()
		var txErr error
		updated, txErr = tx.UpdateOrder(orderID, func(o *domain.Order) error {
			o.PaymentDate = &now
			return nil
		})
		return txErr
	})
	return updated, res, err
}
