package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/mfeldt/litestripe/app/controllers"
	"github.com/mfeldt/litestripe/internal/pkg/env"
)

type ApiRouter struct {
	api *controllers.ApiController
}

func NewApiRouter(api *controllers.ApiController) *ApiRouter {
	return &ApiRouter{api: api}
}

func (h *ApiRouter) InstallRouter(app *fiber.App) {
	group := app.Group("/api", limiter.New())

	// Admin read API: subscription lookups and orphan review
	v1 := group.Group("/v1", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("ADMIN_API_USER", "admin"): env.GetEnv("ADMIN_API_PASSWORD", "admin"),
		},
	}))
	v1.Get("/subscriptions/:id", h.api.HandleGetSubscription)
	v1.Get("/orphaned-payments", h.api.HandleListOrphanedPayments)
}
