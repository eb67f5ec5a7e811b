package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukex/flowcrm/pkg/lookup"
	"github.com/dukex/flowcrm/pkg/secrets"
	"github.com/redis/go-redis/v9"
)

const lookupTimeout = 10 * time.Second

// NewCollaborators returns the lookup client of the CRM services, cached in redis when redisURL is
// set. The returned close function releases the redis client.
func NewCollaborators(
	ctx context.Context,
	logger *slog.Logger,
	baseURL string,
	redisURL string,
	ttl time.Duration,
) (lookup.Collaborators, func() error, error) {
	client := lookup.NewClient(baseURL, &http.Client{Timeout: lookupTimeout}, logger)

	if redisURL == "" {
		return client, func() error { return nil }, nil
	}

	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(options)

	err = rdb.Ping(ctx).Err()
	if err != nil {
		_ = rdb.Close()

		return nil, nil, fmt.Errorf("failed to reach redis: %w", err)
	}

	return lookup.NewCache(client, rdb, ttl, logger), rdb.Close, nil
}

// NewCrypter returns nil when no passphrase is configured; webhooks with credentials are then
// rejected.
func NewCrypter(passphrase, salt string) (secrets.Crypter, error) {
	if passphrase == "" {
		return nil, nil
	}

	crypter, err := secrets.NewAESCrypter(passphrase, []byte(salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create credentials crypter: %w", err)
	}

	return crypter, nil
}
