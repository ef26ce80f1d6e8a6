package controllers

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mfeldt/litestripe/internal/pkg/billing"
	"github.com/mfeldt/litestripe/internal/pkg/cache"
	"gorm.io/gorm"
)

const subscriptionCacheTTL = 60 * time.Second

// ApiController serves the read-only admin API: subscription lookups and the
// orphaned-payment review list.
type ApiController struct {
	svc *billing.Service
}

func NewApiController(svc *billing.Service) *ApiController {
	return &ApiController{svc: svc}
}

// HandleGetSubscription returns one reconciled subscription record by its
// Stripe subscription id, with a short read-through cache in front of the DB.
func (ac *ApiController) HandleGetSubscription(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "subscription id missing"})
	}

	cacheKey := "subscription:" + id
	if cached, err := cache.Get(cacheKey); err == nil && cached != "" {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Status(fiber.StatusOK).SendString(cached)
	}

	sub, err := ac.svc.GetSubscription(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
		}
		if errors.Is(err, billing.ErrMissingIdentifier) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "lookup_failed"})
	}

	body := fiber.Map{
		"stripe_subscription_id": sub.StripeSubscriptionID,
		"stripe_customer_id":     sub.StripeCustomerID,
		"client_reference_id":    sub.ClientReferenceID,
		"status":                 sub.Status,
		"created":                formatTimePtr(sub.Created),
		"start_date":             formatTimePtr(sub.StartDate),
		"cancel_at":              formatTimePtr(sub.CancelAt),
		"cancelled_at":           formatTimePtr(sub.CancelledAt),
		"cancel_at_period_end":   sub.CancelAtPeriodEnd,
		"metadata":               sub.GetMetadata(),
		"dt_created":             sub.DtCreated.UTC().Format(time.RFC3339),
		"dt_last_updated":        sub.DtLastUpdated.UTC().Format(time.RFC3339),
	}

	if raw, err := json.Marshal(body); err == nil {
		_ = cache.Set(cacheKey, string(raw), subscriptionCacheTTL)
	}
	return c.Status(fiber.StatusOK).JSON(body)
}

// HandleListOrphanedPayments returns recent orphan records, newest first.
func (ac *ApiController) HandleListOrphanedPayments(c *fiber.Ctx) error {
	limit := 50
	if q := strings.TrimSpace(c.Query("limit")); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 || n > 500 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "limit must be 1-500"})
		}
		limit = n
	}

	orphans, err := ac.svc.ListOrphanedPayments(limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "lookup_failed"})
	}

	items := make([]fiber.Map, 0, len(orphans))
	for _, o := range orphans {
		items = append(items, fiber.Map{
			"id":                 o.ID,
			"stripe_customer_id": o.StripeCustomerID,
			"customer_email":     o.CustomerEmail,
			"reason":             o.Reason,
			"event":              json.RawMessage(o.Event),
			"dt_created":         o.DtCreated.UTC().Format(time.RFC3339),
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"orphaned_payments": items})
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
