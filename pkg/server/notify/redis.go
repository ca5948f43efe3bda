/* Copyright 2025 Readsync Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package notify

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a Redis bus
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// Redis relays notices through a Redis Pub/Sub channel so that every server
// process delivers to its own connections
type Redis struct {
	client  *redis.Client
	pubsub  *redis.PubSub
	channel string
	done    chan struct{}
}

// NewRedis connects to Redis and subscribes the sink to the channel
func NewRedis(ctx context.Context, cfg RedisConfig, sink Sink) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address missing")
	}
	if cfg.Channel == "" {
		return nil, errors.New("redis channel missing")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}

	pubsub := client.Subscribe(ctx, cfg.Channel)
	if _, err := pubsub.Receive(pingCtx); err != nil {
		pubsub.Close()
		client.Close()
		return nil, errors.Wrapf(err, "subscribing to %s", cfg.Channel)
	}

	b := &Redis{
		client:  client,
		pubsub:  pubsub,
		channel: cfg.Channel,
		done:    make(chan struct{}),
	}

	go b.listen(sink)

	return b, nil
}

func (b *Redis) listen(sink Sink) {
	defer close(b.done)

	for msg := range b.pubsub.Channel() {
		relay(sink, []byte(msg.Payload))
	}
}

// Publish sends the notice to every subscribed process
func (b *Redis) Publish(ctx context.Context, n Notice) error {
	if n.empty() {
		return nil
	}

	data, err := encode(n)
	if err != nil {
		return err
	}

	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return errors.Wrap(err, "publishing notice to redis")
	}

	return nil
}

// Close unsubscribes and waits for the listener to stop
func (b *Redis) Close() error {
	if err := b.pubsub.Close(); err != nil {
		return errors.Wrap(err, "closing redis subscription")
	}
	<-b.done

	return b.client.Close()
}
