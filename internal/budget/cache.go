package budget

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Cache stores raw provider payloads in Postgres with per-class TTLs.
// Redis sits in front as an optional read-through layer; Postgres is
// the source of truth and the system works with Redis down.
type Cache struct {
	db    *sql.DB
	redis *redis.Client // nil when disabled
	clock Clock
	log   *logrus.Entry
}

func NewCache(db *sql.DB, redisClient *redis.Client, log *logrus.Logger) *Cache {
	return &Cache{
		db:    db,
		redis: redisClient,
		clock: time.Now,
		log:   log.WithField("component", "cache"),
	}
}

// SetClock overrides the time source. Test hook.
func (c *Cache) SetClock(clock Clock) {
	c.clock = clock
}

// Put stores a payload under (provider, endpoint class, key) with the
// class TTL. Empty payloads are refused outright.
func (c *Cache) Put(ctx context.Context, provider, class, key string, payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyPayload
	}

	now := c.clock().UTC()
	expires := now.Add(TTLFor(class))

	query := `
		INSERT INTO api_cache (provider, endpoint_class, cache_key, payload, fetched_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider, endpoint_class, cache_key)
		DO UPDATE SET payload = EXCLUDED.payload,
		              fetched_at = EXCLUDED.fetched_at,
		              expires_at = EXCLUDED.expires_at,
		              hit_count = 0
	`
	if _, err := c.db.ExecContext(ctx, query, provider, class, key, payload, now, expires); err != nil {
		return fmt.Errorf("cache put %s/%s: %w", class, key, err)
	}

	if c.redis != nil {
		if err := c.redis.Set(ctx, c.redisKey(provider, class, key), payload, TTLFor(class)).Err(); err != nil {
			// Redis is best-effort; the row is already durable.
			c.log.WithError(err).WithField("key", key).Debug("redis write skipped")
		}
	}
	return nil
}

// Get returns a fresh payload or ErrCacheMiss. Redis hits skip the
// database entirely; database hits bump the row's hit counter and
// repopulate Redis for whatever lifetime the row has left.
func (c *Cache) Get(ctx context.Context, provider, class, key string) ([]byte, error) {
	if c.redis != nil {
		payload, err := c.redis.Get(ctx, c.redisKey(provider, class, key)).Bytes()
		if err == nil && len(payload) > 0 {
			return payload, nil
		}
		if err != nil && err != redis.Nil {
			c.log.WithError(err).Debug("redis read skipped")
		}
	}

	now := c.clock().UTC()
	var (
		payload []byte
		expires time.Time
	)
	err := c.db.QueryRowContext(ctx, `
		UPDATE api_cache SET hit_count = hit_count + 1
		WHERE provider = $1 AND endpoint_class = $2 AND cache_key = $3 AND expires_at > $4
		RETURNING payload, expires_at
	`, provider, class, key, now).Scan(&payload, &expires)
	if err == sql.ErrNoRows {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s/%s: %w", class, key, err)
	}

	if c.redis != nil {
		if ttl := remainingTTL(expires, now); ttl > 0 {
			_ = c.redis.Set(ctx, c.redisKey(provider, class, key), payload, ttl).Err()
		}
	}
	return payload, nil
}

// remainingTTL is how long a row fetched at now stays fresh. Redis must
// never outlive the Postgres row, so the full class TTL is wrong here.
func remainingTTL(expires, now time.Time) time.Duration {
	return expires.Sub(now)
}

// Prune deletes expired rows. Called once per engine cycle.
func (c *Cache) Prune(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM api_cache WHERE expires_at <= $1`, c.clock().UTC())
	if err != nil {
		return 0, fmt.Errorf("cache prune: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		c.log.WithField("rows", n).Debug("expired cache rows pruned")
	}
	return n, nil
}

func (c *Cache) redisKey(provider, class, key string) string {
	return fmt.Sprintf("apicache:%s:%s:%s", provider, class, key)
}
