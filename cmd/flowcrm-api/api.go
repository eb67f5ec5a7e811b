// Package main provides the flowcrm API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/dukex/flowcrm/pkg/auth"
	"github.com/dukex/flowcrm/pkg/condition"
	"github.com/dukex/flowcrm/pkg/persistence"
	"github.com/dukex/flowcrm/pkg/schema"
	"github.com/dukex/flowcrm/pkg/secrets"
	"github.com/dukex/flowcrm/pkg/services"
	"github.com/dukex/flowcrm/pkg/web"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	issuer      *auth.Issuer
	crypter     secrets.Crypter
	resolver    *condition.NameResolver
}

// NewAPI wires the workflow service behind bearer authentication. crypter and resolver may be nil.
func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	issuer *auth.Issuer,
	crypter secrets.Crypter,
	resolver *condition.NameResolver,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		issuer:      issuer,
		crypter:     crypter,
		resolver:    resolver,
	}
}

func (a *API) App() *fiber.App {
	workflowService := services.NewWorkflow(a.persistence, schema.Default(), a.crypter, a.resolver)
	handlers := web.NewAPIHandlers(workflowService)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("flowcrm API")
	})

	w := app.Group("/workflows", web.Authenticate(a.issuer))
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Put("/:id", handlers.UpdateWorkflow)
	w.Post("/:id/activate", handlers.ActivateWorkflow)
	w.Post("/:id/deactivate", handlers.DeactivateWorkflow)

	app.Get("/health", handlers.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	a.logger.Info("Starting flowcrm API", "port", port)

	return app.Listen(":" + strconv.Itoa(port))
}
