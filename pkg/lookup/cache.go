package lookup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowcrm/pkg/models"
	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "flowcrm:lookup:"

// Cache keeps collaborator responses in redis for a bounded time. Redis failures fall
// through to the wrapped collaborators.
type Cache struct {
	next   Collaborators
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewCache(next Collaborators, client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger.With("module", "lookup_cache"),
	}
}

func (c *Cache) GetUser(ctx context.Context, id int64, token string) (*models.User, error) {
	return cached(ctx, c, scopedKey(token, "user", id), func() (*models.User, error) {
		return c.next.GetUser(ctx, id, token)
	})
}

func (c *Cache) GetTenant(ctx context.Context, token string) (*models.Tenant, error) {
	return cached(ctx, c, "tenant:"+tokenDigest(token), func() (*models.Tenant, error) {
		return c.next.GetTenant(ctx, token)
	})
}

func (c *Cache) GetPipeline(ctx context.Context, id int64, token string) (models.IdName, error) {
	return cached(ctx, c, scopedKey(token, "pipeline", id), func() (models.IdName, error) {
		return c.next.GetPipeline(ctx, id, token)
	})
}

func (c *Cache) GetPipelineStage(ctx context.Context, id int64, token string) (models.IdName, error) {
	return cached(ctx, c, scopedKey(token, "pipeline-stage", id), func() (models.IdName, error) {
		return c.next.GetPipelineStage(ctx, id, token)
	})
}

func (c *Cache) GetProduct(ctx context.Context, id int64, token string) (models.IdName, error) {
	return cached(ctx, c, scopedKey(token, "product", id), func() (models.IdName, error) {
		return c.next.GetProduct(ctx, id, token)
	})
}

func (c *Cache) GetContact(ctx context.Context, id int64, token string) (*models.Contact, error) {
	return cached(ctx, c, scopedKey(token, "contact", id), func() (*models.Contact, error) {
		return c.next.GetContact(ctx, id, token)
	})
}

// tokenDigest identifies the caller the collaborators authorize against.
func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))

	return hex.EncodeToString(sum[:16])
}

func scopedKey(token, kind string, id int64) string {
	return fmt.Sprintf("%s:%s:%d", tokenDigest(token), kind, id)
}

func cached[T any](ctx context.Context, c *Cache, key string, load func() (T, error)) (T, error) {
	key = keyPrefix + key

	data, err := c.client.Get(ctx, key).Bytes()

	switch {
	case err == nil:
		var value T
		if err := json.Unmarshal(data, &value); err == nil {
			return value, nil
		}

		c.logger.WarnContext(ctx, "Discarding unreadable cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "Cache read failed", "key", key, "error", err)
	}

	value, err := load()
	if err != nil {
		return value, err
	}

	data, err = json.Marshal(value)
	if err != nil {
		return value, nil
	}

	err = c.client.Set(ctx, key, data, c.ttl).Err()
	if err != nil {
		c.logger.WarnContext(ctx, "Cache write failed", "key", key, "error", err)
	}

	return value, nil
}
