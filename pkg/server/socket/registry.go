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

// Package socket serves the sync WebSocket and fans out notices to the live
// connections of an account.
package socket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/readsync/readsync/pkg/server/log"
	"github.com/readsync/readsync/pkg/server/metrics"
	"github.com/readsync/readsync/pkg/server/notify"
)

// Registry maps accounts to their live connections. It implements
// notify.Sink.
type Registry struct {
	mu        sync.RWMutex
	byAccount map[string]map[string]*Conn
	metrics   *metrics.Metrics
}

// NewRegistry returns an empty registry
func NewRegistry(m *metrics.Metrics) *Registry {
	return &Registry{
		byAccount: map[string]map[string]*Conn{},
		metrics:   m,
	}
}

// Add registers a connection under its account
func (r *Registry) Add(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.byAccount[c.AccountID]
	if !ok {
		conns = map[string]*Conn{}
		r.byAccount[c.AccountID] = conns
	}
	conns[c.ID] = c
}

// Remove unregisters a connection. It is a no-op for unknown connections.
func (r *Registry) Remove(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.byAccount[c.AccountID]
	if !ok {
		return
	}

	delete(conns, c.ID)
	if len(conns) == 0 {
		delete(r.byAccount, c.AccountID)
	}
}

// Count returns the number of live connections of the account
func (r *Registry) Count(accountID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byAccount[accountID])
}

// Stats returns the number of accounts and connections
func (r *Registry) Stats() (accounts, conns int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.byAccount {
		conns += len(m)
	}

	return len(r.byAccount), conns
}

func (r *Registry) snapshot(accountID string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.byAccount[accountID]
	ret := make([]*Conn, 0, len(conns))
	for _, c := range conns {
		ret = append(ret, c)
	}

	return ret
}

// Deliver queues an events_available message on every connection of the
// account. It never blocks; connections with a full queue miss the notice.
func (r *Registry) Deliver(n notify.Notice) int {
	if n.ServerCursor == "" {
		return 0
	}

	conns := r.snapshot(n.AccountID)
	if len(conns) == 0 {
		return 0
	}

	msg, err := json.Marshal(eventsAvailableMessage{Type: typeEventsAvailable, ServerCursor: n.ServerCursor})
	if err != nil {
		log.ErrorWrap(err, "marshalling events_available")
		return 0
	}

	delivered := 0
	for _, c := range conns {
		if c.offer(msg) {
			delivered++
			continue
		}

		r.metrics.NoticesDropped.Inc()
		log.WithFields(log.Fields{
			"accountId": n.AccountID,
			"connId":    c.ID,
		}).Warn("dropping events_available")
	}

	return delivered
}

// closePollInterval is how often CloseAll checks for remaining connections
const closePollInterval = 10 * time.Millisecond

// CloseAll sends a normal closure to every live connection and waits until
// they have all unregistered or ctx is done. It returns the number of
// connections it closed.
func (r *Registry) CloseAll(ctx context.Context) (int, error) {
	r.mu.RLock()
	var conns []*Conn
	for _, m := range r.byAccount {
		for _, c := range m {
			conns = append(conns, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range conns {
		c.stop()
	}

	ticker := time.NewTicker(closePollInterval)
	defer ticker.Stop()

	for {
		if _, n := r.Stats(); n == 0 {
			return len(conns), nil
		}

		select {
		case <-ctx.Done():
			return len(conns), ctx.Err()
		case <-ticker.C:
		}
	}
}
