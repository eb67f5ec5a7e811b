package main

import (
	"context"
	"os"
	"time"

	"github.com/dukex/flowcrm/pkg/auth"
	"github.com/dukex/flowcrm/pkg/cmd"
	"github.com/dukex/flowcrm/pkg/condition"
	"github.com/dukex/flowcrm/pkg/log"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "flowcrm-api",
		Usage:                 "Create and manage CRM workflows",
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
				Name:     "token-secret",
				Usage:    "Secret used to verify the bearer tokens of API callers",
				Required: true,
				Sources:  cli.EnvVars("SERVICE_TOKEN_SECRET"),
			},
			&cli.StringFlag{
				Name:    "lookup-base-url",
				Usage:   "Base URL of the CRM services used to show names in conditions (disabled when empty)",
				Sources: cli.EnvVars("LOOKUP_BASE_URL"),
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

			logger := log.WithModule("flowcrm-api")

			logger.InfoContext(ctx, "Initializing flowcrm API")

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

			issuer, err := auth.NewIssuer([]byte(command.String("token-secret")), "flowcrm-api", time.Hour)
			if err != nil {
				return err
			}

			crypter, err := cmd.NewCrypter(command.String("credentials-key"), command.String("credentials-salt"))
			if err != nil {
				return err
			}

			var resolver *condition.NameResolver

			if baseURL := command.String("lookup-base-url"); baseURL != "" {
				collaborators, closeCollaborators, err := cmd.NewCollaborators(
					ctx,
					logger,
					baseURL,
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

				resolver = condition.NewNameResolver(collaborators, collaborators, collaborators, logger)
			}

			api := NewAPI(logger, persistence, issuer, crypter, resolver)

			return api.Start(command.Int("port"))
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
