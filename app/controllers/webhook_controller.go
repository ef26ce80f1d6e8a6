package controllers

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/mfeldt/litestripe/internal/pkg/billing"
	"github.com/mfeldt/litestripe/internal/pkg/cache"
	"github.com/mfeldt/litestripe/internal/pkg/env"
	"github.com/mfeldt/litestripe/internal/pkg/webhook"
)

const eventSeenCacheTTL = 24 * time.Hour

// EventCache is the duplicate-delivery pre-filter in front of the audit
// table. The DB unique index on the event id stays authoritative; the cache
// only saves a round trip for recently seen deliveries.
type EventCache interface {
	SetNX(key string, value interface{}, expiration time.Duration) (bool, error)
	Delete(key string) error
}

type redisEventCache struct{}

// NewRedisEventCache returns the Redis-backed EventCache used in production.
func NewRedisEventCache() EventCache { return redisEventCache{} }

func (redisEventCache) SetNX(key string, value interface{}, expiration time.Duration) (bool, error) {
	return cache.SetNX(key, value, expiration)
}

func (redisEventCache) Delete(key string) error {
	return cache.Delete(key)
}

// WebhookController owns the Stripe webhook endpoint. The registry and
// dispatcher are built once at process start and injected here; the
// controller itself only does transport work (UUID gate, signature check,
// audit persistence) before handing the event to the dispatcher.
type WebhookController struct {
	dispatcher *webhook.Dispatcher
	svc        *billing.Service
	events     EventCache
}

func NewWebhookController(dispatcher *webhook.Dispatcher, svc *billing.Service, events EventCache) *WebhookController {
	return &WebhookController{dispatcher: dispatcher, svc: svc, events: events}
}

// HandleStripeWebhook processes POST /webhooks/stripe/:uuid.
//
// Handler failures never surface as non-2xx responses: Stripe redelivers on
// non-2xx, and a permanently failing handler would otherwise reprocess
// forever. Only a failure to persist the audit row returns 500, since then
// nothing durable recorded the delivery.
func (wc *WebhookController) HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	hookUUID := strings.TrimSpace(c.Params("uuid"))
	configured := strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_UUID", ""))
	if _, err := uuid.Parse(hookUUID); err != nil || configured == "" || hookUUID != configured {
		log.Printf("Received webhook with invalid UUID: %s", hookUUID)
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unconfigured_endpoint"})
	}

	signature := c.Get("Stripe-Signature")
	secret := env.GetEnv("STRIPE_WEBHOOK_SECRET", "")
	if !webhook.VerifySignature(rawBody, signature, secret) {
		log.Printf("Invalid signature for Stripe webhook")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	}

	event, err := webhook.ParseEvent(rawBody)
	if err != nil {
		log.Printf("Invalid payload received for Stripe webhook: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}
	log.Printf("Stripe webhook received: id=%s, type=%s", event.ID, event.Type)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Cheap redelivery short-circuit; the DB's unique event index below is
	// the authoritative dedupe.
	eventKey := "webhook:event:" + event.ID
	if fresh, cacheErr := wc.events.SetNX(eventKey, 1, eventSeenCacheTTL); cacheErr == nil && !fresh {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "success", "duplicate": true})
	}

	created, stored, err := wc.svc.RecordWebhookEvent(ctx, event, true)
	if err != nil {
		// Release the pre-filter key, otherwise the provider's retry of
		// this delivery would be swallowed as a duplicate.
		_ = wc.events.Delete(eventKey)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if !created {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "success", "duplicate": true})
	}

	report := wc.dispatcher.Dispatch(event)
	_ = wc.svc.MarkWebhookProcessed(ctx, stored.ID, report.FirstError())

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":   "success",
		"handled":  report.Handled,
		"handlers": handlerOutcomes(report),
	})
}

func handlerOutcomes(report webhook.DispatchReport) []fiber.Map {
	outcomes := make([]fiber.Map, 0, len(report.Results))
	for _, res := range report.Results {
		outcome := fiber.Map{"handler": res.Handler, "outcome": "success"}
		if res.Err != nil {
			outcome["outcome"] = "failure"
			outcome["message"] = res.Err.Error()
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}
