package customer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"customers/internal/customer/models"
	id "customers/pkg/domain"
	"customers/pkg/platform/tx"
)

const (
	defaultCacheTTL   = 5 * time.Minute
	defaultKeyPrefix  = "customers:"
	cacheWriteTimeout = time.Second
	cacheLoadTimeout  = 5 * time.Second
)

// errStaleLoad aborts a cache fill whose key was evicted while it loaded.
var errStaleLoad = errors.New("cache entry evicted during load")

// Backend is the store a Cached decorator reads through to.
type Backend interface {
	FindAll(ctx context.Context) ([]*models.Customer, error)
	FindByID(ctx context.Context, customerID id.CustomerID) (*models.Customer, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByID(ctx context.Context, customerID id.CustomerID) (bool, error)
	Save(ctx context.Context, c *models.Customer) (*models.Customer, error)
	DeleteByID(ctx context.Context, customerID id.CustomerID) error
}

// Cached is a read-through Redis cache for single-customer lookups. Writes go
// to the backend first and then evict the cached entry.
//
// Every eviction bumps a per-customer generation counter. A miss records the
// generation before loading from the backend and only fills the cache if the
// generation is unchanged, so a load that raced a write never puts the old
// record back. Reads inside a transaction bypass the cache. Redis failures
// degrade to backend reads.
type Cached struct {
	next        Backend
	client      redis.UniversalClient
	ttl         time.Duration
	loadTimeout time.Duration
	prefix      string
	logger      *slog.Logger
	group       singleflight.Group
}

// CacheOption configures a Cached store.
type CacheOption func(*Cached)

// WithCacheTTL sets how long entries live in Redis.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *Cached) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithKeyPrefix namespaces cache keys.
func WithKeyPrefix(prefix string) CacheOption {
	return func(c *Cached) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithLoadTimeout bounds a backend load shared by concurrent misses.
func WithLoadTimeout(d time.Duration) CacheOption {
	return func(c *Cached) {
		if d > 0 {
			c.loadTimeout = d
		}
	}
}

// WithCacheLogger reports cache failures that are otherwise swallowed.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *Cached) {
		c.logger = logger
	}
}

// NewCached wraps next with a Redis read-through cache.
func NewCached(next Backend, client redis.UniversalClient, opts ...CacheOption) *Cached {
	c := &Cached{
		next:        next,
		client:      client,
		ttl:         defaultCacheTTL,
		loadTimeout: cacheLoadTimeout,
		prefix:      defaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cached) FindAll(ctx context.Context) ([]*models.Customer, error) {
	return c.next.FindAll(ctx)
}

// FindByID serves from Redis when possible. Concurrent misses for the same id
// and generation share one backend load, which runs detached from any single
// caller's cancellation.
func (c *Cached) FindByID(ctx context.Context, customerID id.CustomerID) (*models.Customer, error) {
	if _, inTx := tx.From(ctx); inTx {
		return c.next.FindByID(ctx, customerID)
	}

	key := c.key(customerID)
	genKey := c.generationKey(customerID)

	var gen int64
	fillable := false
	vals, err := c.client.MGet(ctx, key, genKey).Result()
	if err != nil {
		c.warn(ctx, "cache read failed", key, err)
	} else {
		if raw, ok := vals[0].(string); ok {
			var cached models.Customer
			if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
				return &cached, nil
			}
			c.warn(ctx, "discarding undecodable cache entry", key, nil)
		}
		if raw, ok := vals[1].(string); ok {
			gen, _ = strconv.ParseInt(raw, 10, 64)
		}
		fillable = true
	}

	flight := c.group.DoChan(key+"@"+strconv.FormatInt(gen, 10), func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()

		found, err := c.next.FindByID(loadCtx, customerID)
		if err != nil {
			return nil, err
		}
		if fillable {
			c.fill(loadCtx, key, genKey, gen, found)
		}
		return found, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Customer).Clone(), nil
	}
}

func (c *Cached) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return c.next.ExistsByEmail(ctx, email)
}

func (c *Cached) ExistsByID(ctx context.Context, customerID id.CustomerID) (bool, error) {
	return c.next.ExistsByID(ctx, customerID)
}

func (c *Cached) Save(ctx context.Context, customer *models.Customer) (*models.Customer, error) {
	saved, err := c.next.Save(ctx, customer)
	if err != nil {
		return nil, err
	}
	c.evictAfterCommit(ctx, saved.ID)
	return saved, nil
}

func (c *Cached) DeleteByID(ctx context.Context, customerID id.CustomerID) error {
	if err := c.next.DeleteByID(ctx, customerID); err != nil {
		return err
	}
	c.evictAfterCommit(ctx, customerID)
	return nil
}

func (c *Cached) key(customerID id.CustomerID) string {
	return fmt.Sprintf("%s%d", c.prefix, int64(customerID))
}

func (c *Cached) generationKey(customerID id.CustomerID) string {
	return c.key(customerID) + ":gen"
}

// fill writes the loaded record unless an eviction bumped the generation
// since gen was read. WATCH aborts the write if the bump lands in between.
func (c *Cached) fill(ctx context.Context, key, genKey string, gen int64, customer *models.Customer) {
	payload, err := json.Marshal(customer)
	if err != nil {
		return
	}

	err = c.client.Watch(ctx, func(rtx *redis.Tx) error {
		current, err := rtx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStaleLoad
		}
		_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, c.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil, errors.Is(err, errStaleLoad), errors.Is(err, redis.TxFailedErr):
	default:
		c.warn(ctx, "cache write failed", key, err)
	}
}

// evictAfterCommit evicts now and, when ctx carries a transaction, again once
// it commits so a load of the uncommitted row cannot survive.
func (c *Cached) evictAfterCommit(ctx context.Context, customerID id.CustomerID) {
	c.evict(ctx, customerID)
	if _, inTx := tx.From(ctx); inTx {
		tx.AfterCommit(ctx, func() { c.evict(ctx, customerID) })
	}
}

// evict runs on a detached context so a cancelled request cannot leave a
// stale entry behind after its write committed.
func (c *Cached) evict(ctx context.Context, customerID id.CustomerID) {
	key := c.key(customerID)
	genKey := c.generationKey(customerID)
	evictCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheWriteTimeout)
	defer cancel()

	_, err := c.client.TxPipelined(evictCtx, func(pipe redis.Pipeliner) error {
		pipe.Incr(evictCtx, genKey)
		pipe.Expire(evictCtx, genKey, c.ttl+c.loadTimeout)
		pipe.Del(evictCtx, key)
		return nil
	})
	if err != nil {
		c.warn(ctx, "cache eviction failed", key, err)
	}
}

func (c *Cached) warn(ctx context.Context, msg, key string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.WarnContext(ctx, msg, "key", key, "error", err)
}
