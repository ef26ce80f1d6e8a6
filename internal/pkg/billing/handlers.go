package billing

import (
	"log"

	"github.com/mfeldt/litestripe/app/models"
	"github.com/mfeldt/litestripe/internal/pkg/webhook"
)

// RegisterHandlers wires the billing handlers into the registry. Registration
// happens once at process start; the same handler may serve several event
// types, and several handlers may share one type (all run in registration
// order).
func RegisterHandlers(r *webhook.Registry, svc *Service) {
	subscriptionSync := webhook.Handler{Name: "subscription_sync", Fn: svc.handleSubscriptionEvent}
	r.Register(models.EventCustomerSubscriptionCreated, subscriptionSync)
	r.Register(models.EventCustomerSubscriptionUpdated, subscriptionSync)

	r.Register(models.EventCheckoutSessionCompleted, webhook.Handler{
		Name: "checkout_session_completed",
		Fn:   svc.handleCheckoutSessionCompleted,
	})
}

func (s *Service) handleSubscriptionEvent(event *webhook.Event) error {
	payload, warnings, err := webhook.DecodeSubscriptionPayload(event.Data.Object)
	if err != nil {
		return err
	}
	logFieldWarnings(event, warnings)

	previous, prevWarnings, err := webhook.DecodePreviousAttributes(event.Data.PreviousAttributes)
	if err != nil {
		return err
	}
	logFieldWarnings(event, prevWarnings)

	_, err = s.ReconcileSubscription(event.Type, payload, previous)
	return err
}

func (s *Service) handleCheckoutSessionCompleted(event *webhook.Event) error {
	payload, warnings, err := webhook.DecodeCheckoutSessionPayload(event.Data.Object)
	if err != nil {
		return err
	}
	logFieldWarnings(event, warnings)

	_, err = s.SyncCheckoutSession(event, payload)
	return err
}

func logFieldWarnings(event *webhook.Event, warnings []string) {
	for _, w := range warnings {
		log.Printf("Warning: event %s (id=%s): %s", event.Type, event.ID, w)
	}
}
