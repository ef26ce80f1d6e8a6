package webhook

import (
	"encoding/json"
	"testing"
)

func TestParseEvent(t *testing.T) {
	raw := []byte(`{
		"id": "evt_1",
		"type": "customer.subscription.updated",
		"data": {
			"object": {"id": "sub_1"},
			"previous_attributes": {"cancel_at": 1700000000}
		}
	}`)

	ev, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if ev.ID != "evt_1" || ev.Type != "customer.subscription.updated" {
		t.Fatalf("unexpected event fields: id=%q type=%q", ev.ID, ev.Type)
	}
	if len(ev.Data.Object) == 0 || len(ev.Data.PreviousAttributes) == 0 {
		t.Fatalf("expected data.object and previous_attributes to be kept raw")
	}
	if string(ev.Raw) != string(raw) {
		t.Fatalf("expected raw body to be preserved")
	}
}

func TestParseEventRejectsMissingIdentity(t *testing.T) {
	if _, err := ParseEvent([]byte(`{"type":"customer.subscription.updated"}`)); err == nil {
		t.Fatalf("expected missing id to fail")
	}
	if _, err := ParseEvent([]byte(`{"id":"evt_1"}`)); err == nil {
		t.Fatalf("expected missing type to fail")
	}
	if _, err := ParseEvent([]byte(`not json`)); err == nil {
		t.Fatalf("expected invalid JSON to fail")
	}
}

func TestDecodeSubscriptionPayloadPresenceRules(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "sub_1",
		"customer": "cus_1",
		"status": "active",
		"cancel_at": 1700000000,
		"canceled_at": null,
		"cancel_at_period_end": true,
		"metadata": {"plan": "pro"}
	}`)

	p, warnings, err := DecodeSubscriptionPayload(raw)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if p.ID != "sub_1" || p.Customer != "cus_1" || p.Status != "active" {
		t.Fatalf("unexpected scalar fields: %+v", p)
	}
	if p.CancelAt == nil || *p.CancelAt != 1700000000 {
		t.Fatalf("expected cancel_at to be present")
	}
	// Explicit null must decode the same as absent.
	if p.CanceledAt != nil {
		t.Fatalf("expected canceled_at null to decode as absent")
	}
	if p.Created != nil || p.StartDate != nil {
		t.Fatalf("expected unsent timestamps to stay nil")
	}
	if p.CancelAtPeriodEnd == nil || !*p.CancelAtPeriodEnd {
		t.Fatalf("expected cancel_at_period_end true")
	}
	if p.Metadata["plan"] != "pro" {
		t.Fatalf("expected metadata to decode, got %v", p.Metadata)
	}
}

func TestDecodeSubscriptionPayloadZeroTimestamp(t *testing.T) {
	p, _, err := DecodeSubscriptionPayload(json.RawMessage(`{"id":"sub_1","cancel_at":0}`))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if p.CancelAt == nil || *p.CancelAt != 0 {
		t.Fatalf("zero timestamp must stay distinguishable from absent, got %v", p.CancelAt)
	}
}

func TestDecodeSubscriptionPayloadSkipsMalformedField(t *testing.T) {
	p, warnings, err := DecodeSubscriptionPayload(json.RawMessage(`{
		"id": "sub_1",
		"cancel_at": "not-a-timestamp",
		"status": "active"
	}`))
	if err != nil {
		t.Fatalf("a malformed field must not fail the whole payload: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}
	if p.CancelAt != nil {
		t.Fatalf("malformed cancel_at must be skipped")
	}
	if p.Status != "active" {
		t.Fatalf("other fields must survive a malformed sibling")
	}
}

func TestDecodePreviousAttributes(t *testing.T) {
	prev, _, err := DecodePreviousAttributes(json.RawMessage(`{"cancel_at": 1700000000}`))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if prev == nil || prev.CancelAt == nil || *prev.CancelAt != 1700000000 {
		t.Fatalf("unexpected previous attributes: %+v", prev)
	}

	prev, _, err = DecodePreviousAttributes(nil)
	if err != nil || prev != nil {
		t.Fatalf("absent previous_attributes must decode to nil, got %+v, %v", prev, err)
	}
	prev, _, err = DecodePreviousAttributes(json.RawMessage(`null`))
	if err != nil || prev != nil {
		t.Fatalf("null previous_attributes must decode to nil, got %+v, %v", prev, err)
	}
}

func TestDecodeCheckoutSessionPayload(t *testing.T) {
	p, warnings, err := DecodeCheckoutSessionPayload(json.RawMessage(`{
		"id": "cs_1",
		"subscription": "sub_1",
		"customer": "cus_1",
		"client_reference_id": "user-guid-42",
		"customer_email": "jo@example.com",
		"created": 1700000100,
		"metadata": {"points_limit": "10"}
	}`))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if p.Subscription != "sub_1" || p.ClientReferenceID != "user-guid-42" || p.CustomerEmail != "jo@example.com" {
		t.Fatalf("unexpected fields: %+v", p)
	}
	if p.Created == nil || *p.Created != 1700000100 {
		t.Fatalf("expected created timestamp")
	}
}
