package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mfeldt/litestripe/app/controllers"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter registers all routes. The controllers carry the process-wide
// dispatcher and service, constructed once in main.
func InstallRouter(app *fiber.App, webhooks *controllers.WebhookController, api *controllers.ApiController) {
	setup(app, NewHttpRouter(webhooks), NewApiRouter(api))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
