package principals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-pm/odyssey-pm/internal/access"
)

const (
	keyPrefix  = "access:principal:"
	versionKey = "access:principal:version"
)

// Cache outcomes reported to a CacheObserver.
const (
	OutcomeHit         = "hit"
	OutcomeMiss        = "miss"
	OutcomeError       = "error"
	OutcomeInvalidated = "invalidated"
)

// Source loads a fresh snapshot.
type Source interface {
	Load(ctx context.Context, userID string) (*access.Principal, error)
}

// CacheObserver receives cache outcomes.
type CacheObserver interface {
	ObserveCache(outcome string)
}

// LoadObserver is optionally implemented by a CacheObserver that also
// tracks snapshot build latency.
type LoadObserver interface {
	ObserveLoad(d time.Duration)
}

// Cache keeps principal snapshots in Redis keyed by user ID. Concurrent
// misses for the same user share one load. Snapshots are replaced on
// refresh and never merged. A nil Redis client loads on every call.
type Cache struct {
	client   *redis.Client
	source   Source
	ttl      time.Duration
	group    singleflight.Group
	observer CacheObserver
	logger   *slog.Logger
}

// NewCache constructs a Cache.
func NewCache(client *redis.Client, source Source, ttl time.Duration, observer CacheObserver, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, source: source, ttl: ttl, observer: observer, logger: logger}
}

// Get returns the cached snapshot for userID, loading it on a miss. Redis
// read failures fall back to a direct load.
func (c *Cache) Get(ctx context.Context, userID string) (*access.Principal, error) {
	if userID == "" {
		return nil, errors.New("principals: user id required")
	}
	if c.client == nil {
		return c.load(ctx, userID, "")
	}
	key, err := c.key(ctx, userID)
	if err != nil {
		c.observe(OutcomeError)
		c.logger.Warn("principal cache version", slog.Any("error", err))
		return c.load(ctx, userID, "")
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p access.Principal
		if err := json.Unmarshal(payload, &p); err == nil {
			c.observe(OutcomeHit)
			return &p, nil
		}
		c.observe(OutcomeError)
	case errors.Is(err, redis.Nil):
		c.observe(OutcomeMiss)
	default:
		c.observe(OutcomeError)
		c.logger.Warn("principal cache read", slog.String("user_id", userID), slog.Any("error", err))
		return c.load(ctx, userID, "")
	}
	return c.load(ctx, userID, key)
}

// Refresh rebuilds and stores the snapshot for userID, replacing any
// cached copy.
func (c *Cache) Refresh(ctx context.Context, userID string) (*access.Principal, error) {
	if c.client == nil {
		return c.source.Load(ctx, userID)
	}
	key, err := c.key(ctx, userID)
	if err != nil {
		return nil, err
	}
	// Later callers must not join a load that began before the change.
	c.group.Forget(userID)
	p, err := c.source.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := c.store(ctx, key, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Invalidate drops the cached snapshot for userID.
func (c *Cache) Invalidate(ctx context.Context, userID string) error {
	c.group.Forget(userID)
	if c.client == nil {
		return nil
	}
	key, err := c.key(ctx, userID)
	if err != nil {
		return err
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("principals: invalidate %s: %w", userID, err)
	}
	c.observe(OutcomeInvalidated)
	return nil
}

// InvalidateAll retires every cached snapshot by bumping the key version.
func (c *Cache) InvalidateAll(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Incr(ctx, versionKey).Err(); err != nil {
		return fmt.Errorf("principals: bump version: %w", err)
	}
	c.observe(OutcomeInvalidated)
	return nil
}

func (c *Cache) load(ctx context.Context, userID, key string) (*access.Principal, error) {
	ch := c.group.DoChan(userID, func() (interface{}, error) {
		started := time.Now()
		p, err := c.source.Load(context.WithoutCancel(ctx), userID)
		if lo, ok := c.observer.(LoadObserver); ok {
			lo.ObserveLoad(time.Since(started))
		}
		if err != nil {
			return nil, err
		}
		if key != "" {
			if err := c.store(context.WithoutCancel(ctx), key, p); err != nil {
				c.logger.Warn("principal cache write", slog.String("user_id", userID), slog.Any("error", err))
			}
		}
		return p, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return clone(res.Val.(*access.Principal)), nil
	}
}

func (c *Cache) store(ctx context.Context, key string, p *access.Principal) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

func (c *Cache) key(ctx context.Context, userID string) (string, error) {
	ver, err := c.client.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		ver = 0
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s:%d", keyPrefix, userID, ver), nil
}

func (c *Cache) observe(outcome string) {
	if c.observer != nil {
		c.observer.ObserveCache(outcome)
	}
}

// clone gives each caller its own snapshot so shared singleflight results
// cannot be mutated across requests.
func clone(p *access.Principal) *access.Principal {
	out := *p
	out.Grants.ProjectIDs = append([]string(nil), p.Grants.ProjectIDs...)
	out.Grants.TaskIDs = append([]string(nil), p.Grants.TaskIDs...)
	out.ProjectIDs = append([]string(nil), p.ProjectIDs...)
	out.Tasks = append([]access.TaskRef(nil), p.Tasks...)
	return &out
}
