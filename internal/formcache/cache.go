// Package formcache keeps in-progress checkout form data across restarts. It holds
// the checkout draft only, never the cart.
package formcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"campusrunner/internal/domain"

	"github.com/redis/go-redis/v9"
)

// Draft is the partially filled checkout form.
type Draft struct {
	Delivery      domain.DeliveryInfo  `json:"delivery"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod,omitempty"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

type Cache interface {
	Load(ctx context.Context, requesterID string) (Draft, bool, error)
	Save(ctx context.Context, requesterID string, d Draft) error
	Delete(ctx context.Context, requesterID string) error
}

type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: "checkout-draft"}
}

func (c *RedisCache) Key(requesterID string) string {
	return fmt.Sprintf("%s:%s", c.prefix, requesterID)
}

func (c *RedisCache) Load(ctx context.Context, requesterID string) (Draft, bool, error) {
	raw, err := c.rdb.Get(ctx, c.Key(requesterID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Draft{}, false, nil
	}
	if err != nil {
		return Draft{}, false, err
	}
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return Draft{}, false, fmt.Errorf("decode draft: %w", err)
	}
	return d, true, nil
}

func (c *RedisCache) Save(ctx context.Context, requesterID string, d Draft) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.Key(requesterID), raw, c.ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, requesterID string) error {
	return c.rdb.Del(ctx, c.Key(requesterID)).Err()
}

// Memory is a process-local Cache for tests and single-node runs.
type Memory struct {
	mu     sync.Mutex
	drafts map[string]Draft
}

func NewMemory() *Memory {
	return &Memory{drafts: make(map[string]Draft)}
}

func (m *Memory) Load(_ context.Context, requesterID string) (Draft, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[requesterID]
	return d, ok, nil
}

func (m *Memory) Save(_ context.Context, requesterID string, d Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[requesterID] = d
	return nil
}

func (m *Memory) Delete(_ context.Context, requesterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, requesterID)
	return nil
}
