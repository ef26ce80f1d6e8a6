package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mfeldt/litestripe/app/controllers"
)

type HttpRouter struct {
	webhooks *controllers.WebhookController
}

func NewHttpRouter(webhooks *controllers.WebhookController) *HttpRouter {
	return &HttpRouter{webhooks: webhooks}
}

func (h *HttpRouter) InstallRouter(app *fiber.App) {
	// Payment provider webhooks (no auth middleware, signature-verified in
	// the controller; the URL carries a configured UUID as a cheap gate)
	app.Post("/webhooks/stripe/:uuid", h.webhooks.HandleStripeWebhook)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
}
