package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the connection settings for the Redis broker.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	Schema   string
}

// Redis is both a Source and a Publisher backed by Redis Pub/Sub.
type Redis struct {
	client *redis.Client
	prefix string
	schema string
}

var (
	_ Source    = (*Redis)(nil)
	_ Publisher = (*Redis)(nil)
)

// ConnectRedis creates a client and checks it with PING.
func ConnectRedis(cfg RedisConfig) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedis(rdb, cfg.Prefix, cfg.Schema), nil
}

func NewRedis(client *redis.Client, prefix, schema string) *Redis {
	return &Redis{client: client, prefix: prefix, schema: schema}
}

type redisChannel struct {
	ps     *redis.PubSub
	events chan ChangeEvent
	done   chan struct{}
	once   sync.Once
}

func (r *Redis) Open(ctx context.Context, table string) (Channel, error) {
	name := ChannelName(r.prefix, table)
	ps := r.client.Subscribe(ctx, name)
	// wait for the subscription confirmation so no publish is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", name, err)
	}

	c := &redisChannel{ps: ps, events: make(chan ChangeEvent, channelBuffer), done: make(chan struct{})}
	go c.loop(ctx, r.schema, table)
	return c, nil
}

func (c *redisChannel) loop(ctx context.Context, schema, table string) {
	defer close(c.events)
	msgs := c.ps.Channel()
	for {
		select {
		case m, ok := <-msgs:
			if !ok {
				return
			}
			ev := Decode(m.Payload, schema, table)
			select {
			case c.events <- ev:
			case <-c.done:
				return
			case <-ctx.Done():
				return
			}
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *redisChannel) Events() <-chan ChangeEvent { return c.events }

func (c *redisChannel) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.ps.Close()
	})
	return err
}

func (r *Redis) Publish(ctx context.Context, ev ChangeEvent) error {
	payload, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, ChannelName(r.prefix, ev.Table), payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", ev.Table, err)
	}
	return nil
}

// Close gracefully closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
