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

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/server/log"
)

// NATSConfig configures a NATS bus
type NATSConfig struct {
	URL     string
	Subject string
	Name    string
}

// NATS relays notices through a NATS subject so that every server process
// delivers to its own connections
type NATS struct {
	conn    *nats.Conn
	sub     *nats.Subscription
	subject string
}

// NewNATS connects to NATS and subscribes the sink to the subject
func NewNATS(cfg NATSConfig, sink Sink) (*NATS, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats url missing")
	}
	if cfg.Subject == "" {
		return nil, errors.New("nats subject missing")
	}

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500 * time.Millisecond),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(3 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.ErrorWrap(err, "nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.WithFields(log.Fields{
				"url": c.ConnectedUrl(),
			}).Info("nats reconnected")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to nats")
	}

	sub, err := conn.Subscribe(cfg.Subject, func(m *nats.Msg) {
		relay(sink, m.Data)
	})
	if err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "subscribing to %s", cfg.Subject)
	}

	return &NATS{conn: conn, sub: sub, subject: cfg.Subject}, nil
}

// Publish sends the notice to every subscribed process
func (b *NATS) Publish(ctx context.Context, n Notice) error {
	if n.empty() {
		return nil
	}

	data, err := encode(n)
	if err != nil {
		return err
	}

	if err := b.conn.Publish(b.subject, data); err != nil {
		return errors.Wrap(err, "publishing notice to nats")
	}

	return nil
}

// Close drains the subscription and the connection
func (b *NATS) Close() error {
	if err := b.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		log.ErrorWrap(err, "unsubscribing from nats")
	}

	return b.conn.Drain()
}
