// internal/app/system/realtime/relay.go
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dalemusser/campushub/internal/domain/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the Redis pub/sub channel used when none is configured.
const DefaultChannel = "campushub:notifications"

// RedisRelay publishes notifications on a Redis channel and feeds every
// message received on that channel into the local Hub. With a relay in
// place the dispatcher publishes to Redis only; the relay's own
// subscription delivers to local sockets.
type RedisRelay struct {
	client  *redis.Client
	channel string
	hub     *Hub
	log     *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRedisRelay(client *redis.Client, channel string, hub *Hub, logger *zap.Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisRelay{client: client, channel: channel, hub: hub, log: logger}
}

// Publish sends n to every subscribed process.
func (r *RedisRelay) Publish(ctx context.Context, n models.Notification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, b).Err()
}

// Start subscribes and relays until Stop. It returns once the subscription
// is confirmed so nothing published after Start is missed.
func (r *RedisRelay) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	sub := r.client.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		cancel()
		_ = sub.Close()
		return err
	}
	r.cancel = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var n models.Notification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					r.log.Warn("bad relay payload", zap.Error(err))
					continue
				}
				_ = r.hub.Publish(ctx, n)
			}
		}
	}()
	r.log.Info("realtime redis relay started", zap.String("channel", r.channel))
	return nil
}

func (r *RedisRelay) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.log.Info("realtime redis relay stopped")
}
