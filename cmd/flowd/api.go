// Package main provides the flowd API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/mdrealofficial/node-bot-sub005/pkg/engine"
	"github.com/mdrealofficial/node-bot-sub005/pkg/persistence"
	"github.com/mdrealofficial/node-bot-sub005/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	engine      *engine.Engine
	validate    *validator.Validate
}

func NewAPI(logger *slog.Logger, p persistence.Persistence, eng *engine.Engine) *API {
	return &API{
		logger:      logger,
		persistence: p,
		engine:      eng,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.engine, a.persistence, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Botflow API")
	})

	flows := app.Group("/flows")
	flows.Get("/", handlers.GetFlows)
	flows.Put("/:id", handlers.UpsertFlow)
	flows.Get("/:id", handlers.GetFlow)

	executions := app.Group("/executions")
	executions.Post("/", handlers.TriggerExecution)
	executions.Post("/:id/resume", handlers.ResumeExecution)
	executions.Get("/:id", handlers.GetExecution)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
