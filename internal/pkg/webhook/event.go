package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Event is one decoded Stripe webhook notification. It is treated as
// immutable once parsed; Stripe does not guarantee unique delivery, so the
// same event id may be seen more than once.
type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Data EventData `json:"data"`

	// Raw keeps the original payload for audit storage and orphan records.
	Raw []byte `json:"-"`
}

type EventData struct {
	Object             json.RawMessage `json:"object"`
	PreviousAttributes json.RawMessage `json:"previous_attributes,omitempty"`
}

// ParseEvent decodes a verified webhook body into an Event. The body is
// expected to have passed signature verification already.
func ParseEvent(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("webhook: invalid event payload: %w", err)
	}
	if strings.TrimSpace(ev.ID) == "" {
		return nil, errors.New("webhook: event payload missing id")
	}
	if strings.TrimSpace(ev.Type) == "" {
		return nil, errors.New("webhook: event payload missing type")
	}
	ev.Raw = append([]byte(nil), body...)
	return &ev, nil
}

// SubscriptionPayload is the subset of a Stripe subscription object consumed
// during reconciliation. Pointer fields distinguish "not sent" from "sent as
// zero"; that distinction drives the merge rules.
type SubscriptionPayload struct {
	ID                string
	Customer          string
	Status            string
	Created           *int64
	StartDate         *int64
	CancelAt          *int64
	CanceledAt        *int64
	CancelAtPeriodEnd *bool
	Metadata          map[string]any
}

// SubscriptionPreviousAttributes carries the prior values Stripe includes on
// customer.subscription.updated events. Only cancel_at participates in
// renewal detection.
type SubscriptionPreviousAttributes struct {
	CancelAt *int64
}

// CheckoutSessionPayload is the subset of a checkout.session object consumed
// by the checkout-completion handler.
type CheckoutSessionPayload struct {
	ID                string
	Subscription      string
	Customer          string
	ClientReferenceID string
	CustomerEmail     string
	Created           *int64
	Metadata          map[string]any
}

// DecodeSubscriptionPayload decodes data.object for subscription events.
// A field that fails to decode (e.g. a non-numeric timestamp) is skipped and
// reported as a warning rather than failing the whole event, so the remaining
// fields still reconcile.
func DecodeSubscriptionPayload(raw json.RawMessage) (*SubscriptionPayload, []string, error) {
	fields, err := rawFields(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("webhook: invalid subscription object: %w", err)
	}

	p := &SubscriptionPayload{}
	var warnings []string
	decodeString(fields, "id", &p.ID, &warnings)
	decodeString(fields, "customer", &p.Customer, &warnings)
	decodeString(fields, "status", &p.Status, &warnings)
	decodeInt64(fields, "created", &p.Created, &warnings)
	decodeInt64(fields, "start_date", &p.StartDate, &warnings)
	decodeInt64(fields, "cancel_at", &p.CancelAt, &warnings)
	decodeInt64(fields, "canceled_at", &p.CanceledAt, &warnings)
	decodeBool(fields, "cancel_at_period_end", &p.CancelAtPeriodEnd, &warnings)
	decodeMetadata(fields, &p.Metadata, &warnings)
	return p, warnings, nil
}

// DecodePreviousAttributes decodes data.previous_attributes. A nil or empty
// raw message yields a nil result, meaning the event carried none.
func DecodePreviousAttributes(raw json.RawMessage) (*SubscriptionPreviousAttributes, []string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil, nil
	}
	fields, err := rawFields(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("webhook: invalid previous_attributes: %w", err)
	}

	prev := &SubscriptionPreviousAttributes{}
	var warnings []string
	decodeInt64(fields, "cancel_at", &prev.CancelAt, &warnings)
	return prev, warnings, nil
}

// DecodeCheckoutSessionPayload decodes data.object for
// checkout.session.completed events.
func DecodeCheckoutSessionPayload(raw json.RawMessage) (*CheckoutSessionPayload, []string, error) {
	fields, err := rawFields(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("webhook: invalid checkout session object: %w", err)
	}

	p := &CheckoutSessionPayload{}
	var warnings []string
	decodeString(fields, "id", &p.ID, &warnings)
	decodeString(fields, "subscription", &p.Subscription, &warnings)
	decodeString(fields, "customer", &p.Customer, &warnings)
	decodeString(fields, "client_reference_id", &p.ClientReferenceID, &warnings)
	decodeString(fields, "customer_email", &p.CustomerEmail, &warnings)
	decodeInt64(fields, "created", &p.Created, &warnings)
	decodeMetadata(fields, &p.Metadata, &warnings)
	return p, warnings, nil
}

func rawFields(raw json.RawMessage) (map[string]json.RawMessage, error) {
	if len(raw) == 0 {
		return map[string]json.RawMessage{}, nil
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func decodeString(fields map[string]json.RawMessage, key string, dst *string, warnings *[]string) {
	raw, ok := present(fields, key)
	if !ok {
		return
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		*warnings = append(*warnings, fmt.Sprintf("field %q is not a string, skipped", key))
		return
	}
	*dst = v
}

func decodeInt64(fields map[string]json.RawMessage, key string, dst **int64, warnings *[]string) {
	raw, ok := present(fields, key)
	if !ok {
		return
	}
	var v int64
	if err := json.Unmarshal(raw, &v); err != nil {
		*warnings = append(*warnings, fmt.Sprintf("field %q is not a unix timestamp, skipped", key))
		return
	}
	*dst = &v
}

func decodeBool(fields map[string]json.RawMessage, key string, dst **bool, warnings *[]string) {
	raw, ok := present(fields, key)
	if !ok {
		return
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		*warnings = append(*warnings, fmt.Sprintf("field %q is not a boolean, skipped", key))
		return
	}
	*dst = &v
}

func decodeMetadata(fields map[string]json.RawMessage, dst *map[string]any, warnings *[]string) {
	raw, ok := present(fields, "metadata")
	if !ok {
		return
	}
	v := map[string]any{}
	if err := json.Unmarshal(raw, &v); err != nil {
		*warnings = append(*warnings, `field "metadata" is not an object, skipped`)
		return
	}
	*dst = v
}

// present filters out both absent keys and explicit JSON nulls. Stripe sends
// null for fields it wants to surface as unset; the merge rules treat those
// the same as absent.
func present(fields map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := fields[key]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil, false
	}
	return raw, true
}
