package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/drivethru/pkg/board"
	"github.com/example/drivethru/pkg/config"
	"github.com/example/drivethru/pkg/models"
	"github.com/go-redis/redis/v8"
)

type RedisRepository struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config: cfg,
	}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

type jsonStore interface {
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) error
	Del(ctx context.Context, keys ...string) error
}

// OrderMirror keeps a read-only copy of the board in Redis for tools outside the
// kiosk process. Keys are order:<id>; board:seq holds the last applied sequence.
type OrderMirror struct {
	store jsonStore
	ttl   time.Duration
}

func NewOrderMirror(store jsonStore, ttl time.Duration) *OrderMirror {
	return &OrderMirror{store: store, ttl: ttl}
}

func OrderKey(sessionID string) string {
	return fmt.Sprintf("order:%s", sessionID)
}

const seqKey = "board:seq"

func (m *OrderMirror) Name() string { return "redis-mirror" }

func (m *OrderMirror) HandleEvent(ctx context.Context, ev board.Event) error {
	switch ev.Type {
	case board.EventInit:
		for i := range ev.Orders {
			if err := m.store.SetJSON(ctx, OrderKey(ev.Orders[i].ID), &ev.Orders[i], m.ttl); err != nil {
				return fmt.Errorf("mirror snapshot order %s: %w", ev.Orders[i].ID, err)
			}
		}
	case board.EventNew, board.EventUpdate:
		if err := m.store.SetJSON(ctx, OrderKey(ev.Order.ID), ev.Order, m.ttl); err != nil {
			return fmt.Errorf("mirror order %s: %w", ev.Order.ID, err)
		}
	case board.EventDelete:
		if err := m.store.Del(ctx, OrderKey(ev.ID)); err != nil {
			return fmt.Errorf("unmirror order %s: %w", ev.ID, err)
		}
	}
	return m.store.SetJSON(ctx, seqKey, ev.Seq, 0)
}

// Lookup reads a mirrored order back.
func (m *OrderMirror) Lookup(ctx context.Context, sessionID string) (*models.Order, error) {
	var order models.Order
	if err := m.store.GetJSON(ctx, OrderKey(sessionID), &order); err != nil {
		return nil, err
	}
	return &order, nil
}
