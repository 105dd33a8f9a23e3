package main

import (
	"context"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/mdrealofficial/node-bot-sub005/pkg/cmd"
	"github.com/mdrealofficial/node-bot-sub005/pkg/engine"
	"github.com/mdrealofficial/node-bot-sub005/pkg/log"
	"github.com/mdrealofficial/node-bot-sub005/pkg/otelhelper"
)

const defaultPort = 9080

func main() {
	logger := log.WithModule("flowd")

	command := &cli.Command{
		Name:                  "flowd",
		Usage:                 "Run conversational flow executions over messaging channels",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider for lifecycle events (kafka, gochannel, empty to disable)",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringSliceFlag{
				Name:    "kafka-brokers",
				Usage:   "Kafka broker addresses for the kafka event bus",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for trigger deduplication (empty to disable)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.DurationFlag{
				Name:    "dedupe-ttl",
				Usage:   "How long trigger event ids are remembered",
				Value:   24 * time.Hour,
				Sources: cli.EnvVars("DEDUPE_TTL"),
			},
			&cli.DurationFlag{
				Name:    "waiting-ttl",
				Usage:   "How long an execution may wait for a reply before it is failed",
				Value:   engine.DefaultWaitingTTL,
				Sources: cli.EnvVars("WAITING_TTL"),
			},
			&cli.StringFlag{
				Name:    "reaper-schedule",
				Usage:   "Cron schedule for the stale execution reaper",
				Value:   "@hourly",
				Sources: cli.EnvVars("REAPER_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "whatsapp-phone-number-id",
				Usage:   "WhatsApp Cloud API phone number id (empty disables the whatsapp channel)",
				Sources: cli.EnvVars("WHATSAPP_PHONE_NUMBER_ID"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OpenTelemetry tracing",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing flow execution engine")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			adapters := cmd.NewAdapters(logger, command.String("whatsapp-phone-number-id"))

			var options []engine.Option

			eventBus := cmd.NewEventBus(command.String("event-bus"), command.StringSlice("kafka-brokers"), logger)
			if eventBus != nil {
				defer func() {
					if err := eventBus.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
					}
				}()

				options = append(options, engine.WithEventBus(eventBus))
			}

			if redisClient := cmd.NewRedisClient(command.String("redis-url")); redisClient != nil {
				options = append(options, engine.WithDeduper(
					engine.NewRedisDeduper(redisClient, command.Duration("dedupe-ttl"))))
			}

			if command.Bool("tracing") {
				tracer, err := otelhelper.NewTracer(ctx, "flowd")
				if err != nil {
					return err
				}

				options = append(options, engine.WithTracer(tracer))
			}

			eng := engine.NewEngine(persistence, adapters, logger, options...)

			reaper := engine.NewReaper(persistence, logger, command.Duration("waiting-ttl"))

			err := reaper.Start(ctx, command.String("reaper-schedule"))
			if err != nil {
				return err
			}
			defer reaper.Stop()

			api := NewAPI(logger, persistence, eng)

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
