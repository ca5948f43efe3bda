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

package socket

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/readsync/readsync/pkg/assert"
	"github.com/readsync/readsync/pkg/server/metrics"
	"github.com/readsync/readsync/pkg/server/notify"
)

func newTestConn(id, accountID string, queueSize int) *Conn {
	return newConn(id, accountID, nil, queueSize)
}

func TestRegistryAddRemove(t *testing.T) {
	r := NewRegistry(metrics.New())

	c1 := newTestConn("c1", "u1", 1)
	c2 := newTestConn("c2", "u1", 1)
	c3 := newTestConn("c3", "u2", 1)
	r.Add(c1)
	r.Add(c2)
	r.Add(c3)

	assert.Equal(t, r.Count("u1"), 2, "u1 count mismatch")
	assert.Equal(t, r.Count("u2"), 1, "u2 count mismatch")

	accounts, conns := r.Stats()
	assert.Equal(t, accounts, 2, "accounts mismatch")
	assert.Equal(t, conns, 3, "conns mismatch")

	r.Remove(c1)
	r.Remove(c3)
	// unknown connections are ignored
	r.Remove(newTestConn("c4", "u3", 1))

	assert.Equal(t, r.Count("u1"), 1, "u1 count after remove mismatch")
	assert.Equal(t, r.Count("u2"), 0, "u2 count after remove mismatch")

	accounts, conns = r.Stats()
	assert.Equal(t, accounts, 1, "accounts after remove mismatch")
	assert.Equal(t, conns, 1, "conns after remove mismatch")
}

func TestRegistryDeliver(t *testing.T) {
	r := NewRegistry(metrics.New())

	c1 := newTestConn("c1", "u1", 4)
	c2 := newTestConn("c2", "u1", 4)
	other := newTestConn("c3", "u2", 4)
	r.Add(c1)
	r.Add(c2)
	r.Add(other)

	n := r.Deliver(notify.Notice{AccountID: "u1", ServerCursor: "cur-1"})
	assert.Equal(t, n, 2, "delivered count mismatch")

	for _, c := range []*Conn{c1, c2} {
		assert.Equal(t, len(c.send), 1, "queue length mismatch for "+c.ID)

		var msg eventsAvailableMessage
		if err := json.Unmarshal(<-c.send, &msg); err != nil {
			t.Fatal(err)
		}
		assert.Equal(t, msg.Type, typeEventsAvailable, "type mismatch")
		assert.Equal(t, msg.ServerCursor, "cur-1", "cursor mismatch")
	}

	assert.Equal(t, len(other.send), 0, "other account should not be notified")
}

func TestRegistryDeliver_emptyCursor(t *testing.T) {
	r := NewRegistry(metrics.New())
	c := newTestConn("c1", "u1", 4)
	r.Add(c)

	assert.Equal(t, r.Deliver(notify.Notice{AccountID: "u1"}), 0, "delivered count mismatch")
	assert.Equal(t, len(c.send), 0, "queue should be empty")
}

func TestRegistryDeliver_noConnections(t *testing.T) {
	r := NewRegistry(metrics.New())

	assert.Equal(t, r.Deliver(notify.Notice{AccountID: "u1", ServerCursor: "cur-1"}), 0, "delivered count mismatch")
}

func TestRegistryDeliver_fullQueue(t *testing.T) {
	m := metrics.New()
	r := NewRegistry(m)

	slow := newTestConn("slow", "u1", 1)
	fast := newTestConn("fast", "u1", 2)
	r.Add(slow)
	r.Add(fast)

	assert.Equal(t, r.Deliver(notify.Notice{AccountID: "u1", ServerCursor: "cur-1"}), 2, "first delivery mismatch")
	assert.Equal(t, r.Deliver(notify.Notice{AccountID: "u1", ServerCursor: "cur-2"}), 1, "second delivery mismatch")

	assert.Equal(t, len(slow.send), 1, "slow queue length mismatch")
	assert.Equal(t, len(fast.send), 2, "fast queue length mismatch")
	assert.Equal(t, testutil.ToFloat64(m.NoticesDropped), float64(1), "dropped notices mismatch")
}

func TestConnOffer_closed(t *testing.T) {
	c := newTestConn("c1", "u1", 4)
	close(c.done)

	assert.Equal(t, c.offer([]byte("x")), false, "offer on closed connection")
}

func TestParseInbound(t *testing.T) {
	testCases := []struct {
		input    string
		expected inbound
		reason   string
	}{
		{
			input:    `{"type":"hello","deviceId":"d1","lastSeenCursor":"c1"}`,
			expected: inbound{Type: "hello", DeviceID: "d1", LastSeenCursor: "c1"},
		},
		{
			input:    `{"type":"pull","cursor":"abc"}`,
			expected: inbound{Type: "pull", Cursor: "abc"},
		},
		{
			input:    `{"type":"hello","deviceId":42}`,
			expected: inbound{Type: "hello"},
		},
		{
			input:    `{"type":7}`,
			expected: inbound{},
		},
		{
			input:    `{"type":null}`,
			expected: inbound{},
		},
		{
			input:  `not json`,
			reason: reasonInvalidJSON,
		},
		{
			input:  `{"type":`,
			reason: reasonInvalidJSON,
		},
		{
			input:  `[1,2]`,
			reason: reasonInvalidMessage,
		},
		{
			input:  `"hello"`,
			reason: reasonInvalidMessage,
		},
		{
			input:  `null`,
			reason: reasonInvalidMessage,
		},
		{
			input:  `{"deviceId":"d1"}`,
			reason: reasonInvalidMessage,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, reason := parseInbound([]byte(tc.input))

			assert.Equal(t, reason, tc.reason, "reason mismatch")
			assert.Equal(t, got, tc.expected, "inbound mismatch")
		})
	}
}

func TestRegistryCloseAll_empty(t *testing.T) {
	r := NewRegistry(metrics.New())

	n, err := r.CloseAll(context.Background())
	assert.Equal(t, err, nil, "unexpected error")
	assert.Equal(t, n, 0, "closed connection count mismatch")
}
