package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/mfeldt/litestripe/app/controllers"
	"github.com/mfeldt/litestripe/internal/pkg/billing"
	"github.com/mfeldt/litestripe/internal/pkg/cache"
	"github.com/mfeldt/litestripe/internal/pkg/database"
	"github.com/mfeldt/litestripe/internal/pkg/env"
	"github.com/mfeldt/litestripe/internal/pkg/router"
	"github.com/mfeldt/litestripe/internal/pkg/webhook"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	// Handler registration happens once here; the registry is read-only
	// afterwards and shared by reference.
	svc := billing.NewServiceFromDB(database.GetDB())
	registry := webhook.NewRegistry()
	billing.RegisterHandlers(registry, svc)
	dispatcher := webhook.NewDispatcher(registry)

	app := fiber.New(fiber.Config{
		AppName: "litestripe",
	})

	app.Use(recover.New(), logger.New())

	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "admin"),
		},
	}), monitor.New())

	if docsPath := openAPIDocPath(); docsPath != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: docsPath,
			Path:     "v1",
		}))
	}

	router.InstallRouter(app, controllers.NewWebhookController(dispatcher, svc, controllers.NewRedisEventCache()), controllers.NewApiController(svc))

	return app
}

func openAPIDocPath() string {
	candidates := []string{
		"public/docs/v1/openapi.yml",
		"../../public/docs/v1/openapi.yml",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
