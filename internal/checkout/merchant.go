package checkout

import (
	"context"
	"errors"

	"cartcore/pkg/domain"
)

// ErrMerchantNotImplemented is returned by the default processor so
// deployments cannot silently take payments without wiring a gateway.
var ErrMerchantNotImplemented = errors.New("merchant processing not implemented")

// MerchantProcessor settles payment for an order during checkout. The
// boolean reports whether the charge succeeded; errors are reserved for
// infrastructure failures and abort the checkout transaction.
type MerchantProcessor interface {
	Process(ctx context.Context, scope *EventScope, order domain.Order) (bool, error)
}

// MerchantFunc adapts a function to MerchantProcessor.
type MerchantFunc func(ctx context.Context, scope *EventScope, order domain.Order) (bool, error)

// Process implements MerchantProcessor.
func (f MerchantFunc) Process(ctx context.Context, scope *EventScope, order domain.Order) (bool, error) {
	return f(ctx, scope, order)
}

// UnimplementedMerchant is the default processor.
type UnimplementedMerchant struct{}

// Process always fails with ErrMerchantNotImplemented.
func (UnimplementedMerchant) Process(context.Context, *EventScope, domain.Order) (bool, error) {
	return false, ErrMerchantNotImplemented
}
