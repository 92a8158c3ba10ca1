package checkout

import (
	"context"

	"cartcore/pkg/composition"
	"cartcore/pkg/domain"
)

// AddressFor returns the owner's address for a purpose from committed state.
func (s *Service) AddressFor(ctx context.Context, owner domain.ItemRef, purpose domain.AddressPurpose) (domain.Address, bool, error) {
	var found domain.Address
	var ok bool
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		found, ok = addressByPurpose(view, owner, purpose)
		return nil
	})
	return found, ok, err
}

func addressByPurpose(view domain.TransactionView, owner domain.ItemRef, purpose domain.AddressPurpose) (domain.Address, bool) {
	for _, addr := range view.AddressesFor(owner) {
		if addr.Purpose == purpose {
			return addr, true
		}
	}
	return domain.Address{}, false
}

// SaveAddress creates or replaces the owner's address for its purpose. When
// the owner is an order, the save and create/update address events fire
// around the persist so the taxation and shipping packs can recalculate.
func (s *Service) SaveAddress(ctx context.Context, owner domain.ItemRef, addr domain.Address) (domain.Address, domain.Result, error) {
	started := s.clock.Now()
	var saved domain.Address
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		view := tx.Snapshot()
		addr.Addressable = owner
		existing, found := addressByPurpose(view, owner, addr.Purpose)

		action := "create"
		if found {
			action = "update"
		}
		work := func() error {
			var txErr error
			if found {
				saved, txErr = tx.UpdateAddress(existing.ID, func(a *domain.Address) error {
					id := a.ID
					*a = addr
					a.ID = id
					return nil
				})
			} else {
				saved, txErr = tx.CreateAddress(addr)
			}
			return txErr
		}
		return s.fireAddressEvents(ctx, tx, owner, &addr, action, work)
	})
	s.observe(ctx, "save_address", err == nil, started)
	return saved, res, err
}

// DestroyAddress removes the owner's address for a purpose, firing the
// destroy address events for order owners.
func (s *Service) DestroyAddress(ctx context.Context, owner domain.ItemRef, purpose domain.AddressPurpose) (domain.Result, error) {
	started := s.clock.Now()
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		view := tx.Snapshot()
		existing, found := addressByPurpose(view, owner, purpose)
		if !found {
			return nil
		}
		work := func() error {
			return tx.DeleteAddress(existing.ID)
		}
		return s.fireAddressEvents(ctx, tx, owner, &existing, "destroy", work)
	})
	s.observe(ctx, "destroy_address", err == nil, started)
	return res, err
}

// fireAddressEvents nests the generic and purpose-specific event pairs
// around the persist: save_address, save_<purpose>_address, then the
// create/update/destroy variants.
func (s *Service) fireAddressEvents(ctx context.Context, tx domain.Transaction, owner domain.ItemRef, addr *domain.Address, action string, work func() error) error {
	if owner.Type != domain.EntityOrder {
		return work()
	}
	events := s.orderEvents()
	scope := &EventScope{Ctx: ctx, Tx: tx, Svc: s, OrderID: owner.ID}

	var names []string
	if action == "create" || action == "update" {
		names = append(names, AddressEvent("save", ""), AddressEvent("save", addr.Purpose))
	}
	names = append(names, AddressEvent(action, ""), AddressEvent(action, addr.Purpose))

	run := work
	for i := len(names) - 1; i >= 0; i-- {
		name := names[i]
		inner := run
		run = func() error {
			return events.Fire(&composition.Event{
				Name: name, Context: ctx, Subject: addr, Scope: scope,
			}, inner)
		}
	}
	return run()
}

// CopyAddressesFrom clones the source owner's addresses onto the target for
// every purpose the target is missing.
func (s *Service) CopyAddressesFrom(ctx context.Context, target, source domain.ItemRef) (domain.Result, error) {
	return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		for _, purpose := range []domain.AddressPurpose{domain.AddressBilling, domain.AddressShipping} {
			view := tx.Snapshot()
			if _, exists := addressByPurpose(view, target, purpose); exists {
				continue
			}
			src, ok := addressByPurpose(view, source, purpose)
			if !ok {
				continue
			}
			clone := src
			clone.ID = ""
			clone.Addressable = target
			work := func() error {
				_, txErr := tx.CreateAddress(clone)
				return txErr
			}
			if err := s.fireAddressEvents(ctx, tx, target, &clone, "create", work); err != nil {
				return err
			}
		}
		return nil
	})
}
