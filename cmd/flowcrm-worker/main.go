package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dukex/flowcrm/pkg/actions"
	"github.com/dukex/flowcrm/pkg/auth"
	"github.com/dukex/flowcrm/pkg/channels/kafka"
	"github.com/dukex/flowcrm/pkg/cmd"
	"github.com/dukex/flowcrm/pkg/log"
	"github.com/dukex/flowcrm/pkg/otelhelper"
	"github.com/dukex/flowcrm/pkg/schema"
	"github.com/dukex/flowcrm/pkg/workflow"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "flowcrm-worker",
		EnableShellCompletion: true,
		Usage:                 "Run workflows against CRM record events",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated list of Kafka brokers",
				Value:   "localhost:9092",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "kafka-consumer-group",
				Usage:   "Kafka consumer group shared by every worker",
				Value:   "flowcrm-worker",
				Sources: cli.EnvVars("KAFKA_CONSUMER_GROUP"),
			},
			&cli.StringFlag{
				Name:     "lookup-base-url",
				Usage:    "Base URL of the CRM services that own users, tenants and contacts",
				Required: true,
				Sources:  cli.EnvVars("LOOKUP_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL used to cache lookups (disabled when empty)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.DurationFlag{
				Name:    "lookup-cache-ttl",
				Usage:   "How long cached lookups are kept",
				Value:   5 * time.Minute,
				Sources: cli.EnvVars("LOOKUP_CACHE_TTL"),
			},
			&cli.StringFlag{
				Name:     "service-token-secret",
				Usage:    "Secret used to sign the tokens actions present to the CRM services",
				Required: true,
				Sources:  cli.EnvVars("SERVICE_TOKEN_SECRET"),
			},
			&cli.StringFlag{
				Name:    "credentials-key",
				Usage:   "Passphrase protecting webhook credentials",
				Sources: cli.EnvVars("CREDENTIALS_KEY"),
			},
			&cli.StringFlag{
				Name:    "credentials-salt",
				Usage:   "Salt used to derive the webhook credentials key",
				Value:   "flowcrm-credentials",
				Sources: cli.EnvVars("CREDENTIALS_SALT"),
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Address serving Prometheus metrics (disabled when empty)",
				Value:   ":9102",
				Sources: cli.EnvVars("METRICS_ADDR"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("flowcrm-worker").With("workerId", workerID)

			logger.InfoContext(ctx, "Initializing flowcrm worker")

			if command.Bool("tracing") {
				shutdown, err := otelhelper.Setup(ctx, "flowcrm-worker")
				if err != nil {
					return err
				}

				defer func() {
					err := shutdown(context.WithoutCancel(ctx))
					if err != nil {
						logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
					}
				}()
			}

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), kafka.Config{
				Brokers:       strings.Split(command.String("kafka-brokers"), ","),
				ConsumerGroup: command.String("kafka-consumer-group"),
			}, logger)
			if err != nil {
				return err
			}

			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := persistence.Close(context.WithoutCancel(ctx))
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			collaborators, closeCollaborators, err := cmd.NewCollaborators(
				ctx,
				logger,
				command.String("lookup-base-url"),
				command.String("redis-url"),
				command.Duration("lookup-cache-ttl"),
			)
			if err != nil {
				return err
			}

			defer func() {
				err := closeCollaborators()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close lookup cache", "error", err)
				}
			}()

			crypter, err := cmd.NewCrypter(command.String("credentials-key"), command.String("credentials-salt"))
			if err != nil {
				return err
			}

			issuer, err := auth.NewIssuer([]byte(command.String("service-token-secret")), "flowcrm-worker", 5*time.Minute)
			if err != nil {
				return err
			}

			env := &actions.Env{
				Registry: schema.Default(),
				Users:    collaborators,
				Tenants:  collaborators,
				Contacts: collaborators,
				Crypter:  crypter,
				Logger:   logger,
			}

			processor := workflow.NewProcessor(persistence, eventBus, env, issuer, logger)

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			worker := NewWorkerManager(workerID, processor, eventBus, logger)

			return worker.Start(ctx, command.String("metrics-addr"))
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
