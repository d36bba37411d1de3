package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrLoaderRequired is returned by FetchJSON when no loader is given.
	ErrLoaderRequired = errors.New("platform/cache: loader required")
	// ErrStoreFailed wraps a failed write after dest was already populated.
	ErrStoreFailed = errors.New("platform/cache: store failed")
)

// Observer is notified of cache lookups, typically to feed metrics.
type Observer interface {
	CacheHit(namespace string)
	CacheMiss(namespace string)
}

// Versioned is a JSON cache whose keys embed a namespace version. Bumping the
// version orphans every key built before it; orphans expire with the TTL.
//
// A nil *Versioned, or one without a client, calls the loader every time.
type Versioned struct {
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration
	observer  Observer
}

// NewVersioned builds a cache for namespace. observer may be nil.
func NewVersioned(client redis.UniversalClient, namespace string, ttl time.Duration, observer Observer) *Versioned {
	return &Versioned{client: client, namespace: namespace, ttl: ttl, observer: observer}
}

func (c *Versioned) enabled() bool {
	return c != nil && c.client != nil
}

func (c *Versioned) versionKey() string {
	return c.namespace + ":version"
}

// Version returns the current namespace version, initialising it to 1.
func (c *Versioned) Version(ctx context.Context) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, c.versionKey()).Int64()
	if errors.Is(err, redis.Nil) || (err == nil && ver <= 0) {
		// SETNX keeps a concurrent Bump from being overwritten.
		if err := c.client.SetNX(ctx, c.versionKey(), 1, 0).Err(); err != nil {
			return 0, fmt.Errorf("platform/cache: init version: %w", err)
		}
		return c.client.Get(ctx, c.versionKey()).Int64()
	}
	if err != nil {
		return 0, fmt.Errorf("platform/cache: version: %w", err)
	}
	return ver, nil
}

// BuildKey joins parts under the namespace and appends the current version.
func (c *Versioned) BuildKey(ctx context.Context, parts ...string) (string, error) {
	if !c.enabled() {
		return strings.Join(parts, ":"), nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s:v%d", c.namespace, strings.Join(parts, ":"), ver), nil
}

// FetchJSON decodes the cached value at key into dest, or runs loader and
// stores its result. Redis read failures fall through to the loader. A write
// failure is reported as ErrStoreFailed with dest already populated.
func (c *Versioned) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return ErrLoaderRequired
	}
	if c.enabled() {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			if jerr := json.Unmarshal(payload, dest); jerr == nil {
				c.hit()
				return nil
			}
		}
	}
	c.miss()

	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("platform/cache: encode: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("platform/cache: decode: %w", err)
	}
	if !c.enabled() {
		return nil
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStoreFailed, key, err)
	}
	return nil
}

// Bump increments the namespace version and returns the new value.
func (c *Versioned) Bump(ctx context.Context) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	ver, err := c.client.Incr(ctx, c.versionKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("platform/cache: bump: %w", err)
	}
	return ver, nil
}

func (c *Versioned) hit() {
	if c != nil && c.observer != nil {
		c.observer.CacheHit(c.namespace)
	}
}

func (c *Versioned) miss() {
	if c != nil && c.observer != nil {
		c.observer.CacheMiss(c.namespace)
	}
}
