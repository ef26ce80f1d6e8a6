package webhook

import (
	"fmt"
	"log"
	"strings"
)

// HandlerResult is the outcome of one handler invocation.
type HandlerResult struct {
	Handler string
	Err     error
}

// DispatchReport summarizes one dispatch call. Handled is false when no
// handler is registered for the event type; that is informational, not an
// error -- the event is still acknowledged so Stripe does not redeliver it.
type DispatchReport struct {
	EventID   string
	EventType string
	Handled   bool
	Results   []HandlerResult
}

// OK reports whether every invoked handler succeeded.
func (r DispatchReport) OK() bool {
	for _, res := range r.Results {
		if res.Err != nil {
			return false
		}
	}
	return true
}

// FirstError returns the first captured handler failure, or nil.
func (r DispatchReport) FirstError() error {
	for _, res := range r.Results {
		if res.Err != nil {
			return res.Err
		}
	}
	return nil
}

// Summary renders the per-handler outcomes as a single log-friendly line.
func (r DispatchReport) Summary() string {
	if !r.Handled {
		return "no handlers registered"
	}
	parts := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		if res.Err != nil {
			parts = append(parts, fmt.Sprintf("%s: %v", res.Handler, res.Err))
		} else {
			parts = append(parts, res.Handler+": ok")
		}
	}
	return strings.Join(parts, "; ")
}

// Dispatcher routes events to their registered handlers. Delivery is
// single-shot: every matched handler runs exactly once, synchronously, and a
// failure in one handler never prevents the next from running. The caller's
// transport is expected to retry entire events if it wants retries.
type Dispatcher struct {
	registry *Registry
}

func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Dispatch invokes all handlers registered for the event's type and collects
// their outcomes. It never fails as a whole: handler errors (including
// recovered panics) are captured in the report for logging and telemetry so
// the upstream provider always receives an acknowledgment.
func (d *Dispatcher) Dispatch(event *Event) DispatchReport {
	report := DispatchReport{
		EventID:   event.ID,
		EventType: event.Type,
	}

	handlers := d.registry.Lookup(event.Type)
	if len(handlers) == 0 {
		log.Printf("No handlers registered for event type: %s (id=%s)", event.Type, event.ID)
		return report
	}
	report.Handled = true

	for _, h := range handlers {
		err := invoke(h, event)
		if err != nil {
			log.Printf("Error in handler %s for event %s (id=%s): %v", h.Name, event.Type, event.ID, err)
		} else {
			log.Printf("Handled event %s (id=%s) with %s", event.Type, event.ID, h.Name)
		}
		report.Results = append(report.Results, HandlerResult{Handler: h.Name, Err: err})
	}
	return report
}

func invoke(h Handler, event *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler %s panicked: %v", h.Name, r)
		}
	}()
	return h.Fn(event)
}
