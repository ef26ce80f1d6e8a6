package billing

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/mfeldt/litestripe/app/models"
	"github.com/mfeldt/litestripe/internal/pkg/webhook"
	"gorm.io/gorm"
)

// ErrMissingIdentifier is returned when an event payload lacks the
// subscription id required to key the record. The store is never touched in
// that case.
var ErrMissingIdentifier = errors.New("billing: payload missing subscription id")

// Service reconciles Stripe webhook payloads into durable subscription
// records. It exclusively owns the write path to StripeSubscription rows.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// ReconcileSubscription merges a subscription event payload into the record
// keyed by the payload's id, creating the record on first sight.
//
// Renewal detection compares previous_attributes.cancel_at against the
// record's stored cancel_at BEFORE this event's updates are applied; a match
// means the scheduled cancellation was rescinded. The comparison assumes
// events for one subscription arrive in provider-delivery order.
//
// Merge policy: fields present in the payload overwrite the record after unix
// timestamp -> UTC conversion; absent fields are left untouched. A detected
// renewal clears cancel_at and cancelled_at regardless of what the payload
// carries for them. Metadata keys are namespaced as "<event_type>.<key>" so
// different event types never collide.
func (s *Service) ReconcileSubscription(
	eventType string,
	payload *webhook.SubscriptionPayload,
	previous *webhook.SubscriptionPreviousAttributes,
) (*models.StripeSubscription, error) {
	subscriptionID := strings.TrimSpace(payload.ID)
	if subscriptionID == "" {
		return nil, ErrMissingIdentifier
	}

	sub, created, err := s.repo.GetOrCreateSubscription(subscriptionID)
	if err != nil {
		return nil, err
	}

	isRenewed := detectRenewal(sub, previous)

	if payload.Customer != "" {
		sub.StripeCustomerID = payload.Customer
	}
	if payload.Created != nil {
		sub.Created = unixToUTC(payload.Created)
	}
	if payload.StartDate != nil {
		sub.StartDate = unixToUTC(payload.StartDate)
	}
	if payload.CancelAt != nil || isRenewed {
		if isRenewed {
			sub.CancelAt = nil
		} else {
			sub.CancelAt = unixToUTC(payload.CancelAt)
		}
	}
	if payload.CanceledAt != nil || isRenewed {
		if isRenewed {
			sub.CancelledAt = nil
		} else {
			sub.CancelledAt = unixToUTC(payload.CanceledAt)
		}
	}
	if payload.CancelAtPeriodEnd != nil {
		v := *payload.CancelAtPeriodEnd
		sub.CancelAtPeriodEnd = &v
	}
	if payload.Status != "" {
		sub.Status = payload.Status
	}

	for key, value := range payload.Metadata {
		sub.SetMetadata(eventType+"."+key, value)
	}

	if isRenewed {
		renewedAt := s.now().UTC().Format(time.RFC3339)
		sub.SetMetadata(models.MetadataKeyLastRenewed, renewedAt)
		log.Printf(
			"Renewal detected on %s for subscription %s, metadata entry added (%s: %s)",
			eventType, subscriptionID, models.MetadataKeyLastRenewed, renewedAt,
		)
	}

	if err := s.repo.SaveSubscription(sub); err != nil {
		return nil, err
	}
	log.Printf("Processed %s for subscription %s (created=%t)", eventType, subscriptionID, created)
	return sub, nil
}

// SyncCheckoutSession performs the restricted reconciliation pass for
// checkout.session.completed: correlation and creation fields plus namespaced
// metadata only. Checkout completion never carries previous_attributes, so no
// renewal logic runs here. Sessions without a subscription id fall through to
// the orphan recorder and the handler still succeeds.
func (s *Service) SyncCheckoutSession(event *webhook.Event, payload *webhook.CheckoutSessionPayload) (*models.StripeSubscription, error) {
	subscriptionID := strings.TrimSpace(payload.Subscription)
	if subscriptionID == "" {
		log.Printf("No subscription ID in checkout.session.completed event (id=%s)", event.ID)
		if _, err := s.RecordOrphanedPayment(event, payload.Customer, payload.CustomerEmail, "missing subscription id"); err != nil {
			return nil, err
		}
		return nil, nil
	}

	sub, created, err := s.repo.GetOrCreateSubscription(subscriptionID)
	if err != nil {
		return nil, err
	}

	if payload.Customer != "" {
		sub.StripeCustomerID = payload.Customer
	}
	if payload.ClientReferenceID != "" {
		sub.ClientReferenceID = payload.ClientReferenceID
	}
	if payload.Created != nil {
		sub.Created = unixToUTC(payload.Created)
	}
	for key, value := range payload.Metadata {
		sub.SetMetadata(models.EventCheckoutSessionCompleted+"."+key, value)
	}

	if err := s.repo.SaveSubscription(sub); err != nil {
		return nil, err
	}
	log.Printf("Processed %s for subscription %s (created=%t)", models.EventCheckoutSessionCompleted, subscriptionID, created)
	return sub, nil
}

// RecordOrphanedPayment appends an orphan record unconditionally: no lookup,
// no merge, never updated afterwards. Recovery is a human reading these rows.
func (s *Service) RecordOrphanedPayment(event *webhook.Event, stripeCustomerID, customerEmail, reason string) (*models.OrphanedPayment, error) {
	orphan := &models.OrphanedPayment{
		StripeCustomerID: strings.TrimSpace(stripeCustomerID),
		CustomerEmail:    strings.TrimSpace(customerEmail),
		Event:            string(event.Raw),
		Reason:           reason,
	}
	if err := orphan.Validate(); err != nil {
		// A malformed email must not lose the orphan; keep the raw event and
		// drop the offending field.
		orphan.CustomerEmail = ""
	}
	if err := s.repo.CreateOrphanedPayment(orphan); err != nil {
		return nil, err
	}
	log.Printf("CRITICAL: Orphaned payment (%s), event id=%s customer=%s", reason, event.ID, orphan.StripeCustomerID)
	return orphan, nil
}

// RecordWebhookEvent persists a received webhook payload idempotently. The
// bool reports whether this delivery was the first sighting of the event id.
func (s *Service) RecordWebhookEvent(ctx context.Context, event *webhook.Event, signatureValid bool) (bool, *models.WebhookEvent, error) {
	_ = ctx
	record := &models.WebhookEvent{
		StripeEventID:  event.ID,
		EventType:      event.Type,
		PayloadJSON:    string(event.Raw),
		SignatureValid: signatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(record)
}

// MarkWebhookProcessed marks an audit row as processed and stores an optional
// error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("billing: webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}

// GetSubscription reads one record for the admin API.
func (s *Service) GetSubscription(stripeSubscriptionID string) (*models.StripeSubscription, error) {
	id := strings.TrimSpace(stripeSubscriptionID)
	if id == "" {
		return nil, ErrMissingIdentifier
	}
	return s.repo.GetSubscription(id)
}

// ListOrphanedPayments reads recent orphan records for the admin API.
func (s *Service) ListOrphanedPayments(limit int) ([]models.OrphanedPayment, error) {
	return s.repo.ListOrphanedPayments(limit)
}

// detectRenewal checks whether the cancellation recorded on the subscription
// was rescinded: previous_attributes.cancel_at matching the currently stored
// cancel_at means this event is the renewal that cleared it. The stored value
// is read before any of this event's updates are applied, otherwise a renewal
// carrying its own (stale) cancel_at would go undetected.
func detectRenewal(sub *models.StripeSubscription, previous *webhook.SubscriptionPreviousAttributes) bool {
	if previous == nil || previous.CancelAt == nil {
		return false
	}
	prevCancelAt := unixToUTC(previous.CancelAt)
	return sub.CancelAt != nil && sub.CancelAt.Equal(*prevCancelAt)
}

// unixToUTC converts a unix timestamp into a UTC time, preserving the
// distinction between "field not sent" (nil) and "sent as zero" (epoch).
func unixToUTC(ts *int64) *time.Time {
	if ts == nil {
		return nil
	}
	t := time.Unix(*ts, 0).UTC()
	return &t
}
