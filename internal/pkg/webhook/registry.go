package webhook

// Handler is a named procedure invoked for every event of its registered
// type. The name is surfaced in dispatch reports and logs.
type Handler struct {
	Name string
	Fn   func(event *Event) error
}

// Registry maps event types to ordered handler lists. It is built once at
// process start and read-only afterwards, so lookups need no locking.
type Registry struct {
	handlers map[string][]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string][]Handler)}
}

// Register appends a handler to the list for eventType. Multiple handlers per
// type are preserved in registration order and all are invoked.
func (r *Registry) Register(eventType string, handler Handler) {
	r.handlers[eventType] = append(r.handlers[eventType], handler)
}

// Lookup returns the registered handlers for eventType in registration order.
// Unknown types yield an empty slice, not an error.
func (r *Registry) Lookup(eventType string) []Handler {
	return r.handlers[eventType]
}
