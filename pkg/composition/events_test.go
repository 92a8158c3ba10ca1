package composition

import (
	"context"
	"errors"
	"testing"
)

func TestDeclareIsIdempotentAndCumulative(t *testing.T) {
	e := NewEvents()
	e.Declare("process_payment")
	calls := 0
	if err := e.Attach("process_payment", PhaseBefore, func(*Event) error {
		calls++
		return nil
	}); err != nil {
		t.Fatalf("attach: %v", err)
	}

	// Declaring again must neither duplicate the entry nor clear observers.
	e.Declare("process_payment")
	if got := len(e.EventList()); got != 1 {
		t.Fatalf("expected one declared event, got %d", got)
	}
	if err := e.Fire(&Event{Name: "process_payment", Context: context.Background()}, nil); err != nil {
		t.Fatalf("fire: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected observer kept across redeclare, fired %d times", calls)
	}
}

func TestAttachRequiresDeclaration(t *testing.T) {
	e := NewEvents()
	if err := e.Attach("unknown", PhaseBefore, func(*Event) error { return nil }); err == nil {
		t.Fatalf("expected error attaching to undeclared event")
	}
	if err := e.Fire(&Event{Name: "unknown"}, nil); err == nil {
		t.Fatalf("expected error firing undeclared event")
	}
}

func TestFireOrdering(t *testing.T) {
	e := NewEvents()
	e.Declare("checkout")
	var trace []string
	log := func(step string) Observer {
		return func(*Event) error {
			trace = append(trace, step)
			return nil
		}
	}
	if err := e.Attach("checkout", PhaseBefore, log("before1")); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := e.Attach("checkout", PhaseBefore, log("before2")); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := e.AttachAround("checkout", func(ev *Event, next func() error) error {
		trace = append(trace, "around1-in")
		err := next()
		trace = append(trace, "around1-out")
		return err
	}); err != nil {
		t.Fatalf("attach around: %v", err)
	}
	if err := e.AttachAround("checkout", func(ev *Event, next func() error) error {
		trace = append(trace, "around2-in")
		err := next()
		trace = append(trace, "around2-out")
		return err
	}); err != nil {
		t.Fatalf("attach around: %v", err)
	}
	if err := e.Attach("checkout", PhaseAfter, log("after")); err != nil {
		t.Fatalf("attach: %v", err)
	}

	err := e.Fire(&Event{Name: "checkout"}, func() error {
		trace = append(trace, "work")
		return nil
	})
	if err != nil {
		t.Fatalf("fire: %v", err)
	}
	want := []string{"before1", "before2", "around1-in", "around2-in", "work", "around2-out", "around1-out", "after"}
	if len(trace) != len(want) {
		t.Fatalf("trace %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace %v, want %v", trace, want)
		}
	}
}

func TestBeforeVetoStopsWork(t *testing.T) {
	e := NewEvents()
	e.Declare("basket_modify")
	veto := errors.New("insufficient stock")
	if err := e.Attach("basket_modify", PhaseBefore, func(*Event) error { return veto }); err != nil {
		t.Fatalf("attach: %v", err)
	}
	ran := false
	afterRan := false
	if err := e.Attach("basket_modify", PhaseAfter, func(*Event) error {
		afterRan = true
		return nil
	}); err != nil {
		t.Fatalf("attach: %v", err)
	}
	err := e.Fire(&Event{Name: "basket_modify"}, func() error {
		ran = true
		return nil
	})
	if !errors.Is(err, veto) {
		t.Fatalf("expected veto error, got %v", err)
	}
	if ran || afterRan {
		t.Fatalf("work or after observer ran despite veto")
	}
}

func TestAroundFailureSkipsWork(t *testing.T) {
	e := NewEvents()
	e.Declare("process_payment")
	boom := errors.New("gateway down")
	if err := e.AttachAround("process_payment", func(ev *Event, next func() error) error {
		return boom
	}); err != nil {
		t.Fatalf("attach: %v", err)
	}
	ran := false
	err := e.Fire(&Event{Name: "process_payment"}, func() error {
		ran = true
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected around error, got %v", err)
	}
	if ran {
		t.Fatalf("work ran despite around failure")
	}
}

func TestInstanceScopedObserver(t *testing.T) {
	type order struct{ id string }
	e := NewEvents()
	e.Declare("success")
	fired := 0
	watched := &order{id: "a"}
	err := e.AttachMatched("success", PhaseBefore, func(subject any) bool {
		o, ok := subject.(*order)
		return ok && o == watched
	}, func(*Event) error {
		fired++
		return nil
	})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}

	if err := e.Fire(&Event{Name: "success", Subject: watched}, nil); err != nil {
		t.Fatalf("fire: %v", err)
	}
	if err := e.Fire(&Event{Name: "success", Subject: &order{id: "b"}}, nil); err != nil {
		t.Fatalf("fire: %v", err)
	}
	if fired != 1 {
		t.Fatalf("expected spy to fire once, fired %d", fired)
	}
}
