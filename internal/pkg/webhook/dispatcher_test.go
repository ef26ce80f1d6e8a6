package webhook

import (
	"errors"
	"strings"
	"testing"
)

func TestDispatchRunsAllHandlersDespiteFailure(t *testing.T) {
	r := NewRegistry()
	var secondRan bool
	r.Register("customer.subscription.updated", Handler{Name: "failing", Fn: func(*Event) error {
		return errors.New("boom")
	}})
	r.Register("customer.subscription.updated", Handler{Name: "second", Fn: func(*Event) error {
		secondRan = true
		return nil
	}})

	d := NewDispatcher(r)
	report := d.Dispatch(&Event{ID: "evt_1", Type: "customer.subscription.updated"})

	if !secondRan {
		t.Fatalf("second handler must run even when the first fails")
	}
	if !report.Handled {
		t.Fatalf("expected report.Handled")
	}
	if len(report.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(report.Results))
	}
	if report.Results[0].Err == nil || report.Results[1].Err != nil {
		t.Fatalf("unexpected per-handler outcomes: %+v", report.Results)
	}
	if report.OK() {
		t.Fatalf("report.OK must be false with a failed handler")
	}
	if report.FirstError() == nil {
		t.Fatalf("expected FirstError to surface the failure")
	}
}

func TestDispatchRecoversPanickingHandler(t *testing.T) {
	r := NewRegistry()
	var secondRan bool
	r.Register("checkout.session.completed", Handler{Name: "panicky", Fn: func(*Event) error {
		panic("nil map write")
	}})
	r.Register("checkout.session.completed", Handler{Name: "steady", Fn: func(*Event) error {
		secondRan = true
		return nil
	}})

	report := NewDispatcher(r).Dispatch(&Event{ID: "evt_2", Type: "checkout.session.completed"})

	if !secondRan {
		t.Fatalf("handler after a panic must still run")
	}
	err := report.Results[0].Err
	if err == nil || !strings.Contains(err.Error(), "panicked") {
		t.Fatalf("panic should be captured as a handler error, got %v", err)
	}
}

func TestDispatchNoHandlersRegistered(t *testing.T) {
	report := NewDispatcher(NewRegistry()).Dispatch(&Event{ID: "evt_3", Type: "invoice.paid"})

	if report.Handled {
		t.Fatalf("expected Handled=false for unknown event type")
	}
	if len(report.Results) != 0 {
		t.Fatalf("expected no results, got %d", len(report.Results))
	}
	if !report.OK() {
		t.Fatalf("no-handler dispatch must still be OK (acknowledged)")
	}
	if report.Summary() != "no handlers registered" {
		t.Fatalf("unexpected summary: %q", report.Summary())
	}
}
