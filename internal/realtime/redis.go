package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"slackclone/internal/config"
)

const RedisChannelPrefix = "slackclone:"

func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("cannot connect to redis at %s: %w", cfg.Addr, err)
	}

	log.Printf("✅ Connected to Redis at %s", cfg.Addr)
	return rdb, nil
}

// RedisPublisher is the part of the Redis client the broadcaster uses.
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisBroadcaster publishes events to Redis pub/sub so that every API
// instance running a RedisRelay sees them.
type RedisBroadcaster struct {
	client RedisPublisher
}

func NewRedisBroadcaster(client RedisPublisher) *RedisBroadcaster {
	return &RedisBroadcaster{client: client}
}

func (b *RedisBroadcaster) Name() string {
	return "redis"
}

func (b *RedisBroadcaster) Send(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return b.client.Publish(ctx, RedisChannelPrefix+ev.Topic, data).Err()
}

// RedisRelay feeds events published by any instance into the local hub.
type RedisRelay struct {
	client redis.UniversalClient
	hub    *Hub
}

func NewRedisRelay(client redis.UniversalClient, hub *Hub) *RedisRelay {
	return &RedisRelay{client: client, hub: hub}
}

// Run blocks until ctx is cancelled or the subscription fails.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, RedisChannelPrefix+"channel-*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to redis: %w", err)
	}
	log.Printf("Redis relay subscribed to %schannel-*", RedisChannelPrefix)

	return r.consume(ctx, pubsub.Channel())
}

func (r *RedisRelay) consume(ctx context.Context, messages <-chan *redis.Message) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			r.relay(ctx, msg)
		}
	}
}

func (r *RedisRelay) relay(ctx context.Context, msg *redis.Message) {
	var ev Event
	if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
		log.Printf("Ignoring malformed event on %s: %v", msg.Channel, err)
		return
	}
	if ev.Topic == "" {
		ev.Topic = strings.TrimPrefix(msg.Channel, RedisChannelPrefix)
	}
	r.hub.Send(ctx, ev)
}
