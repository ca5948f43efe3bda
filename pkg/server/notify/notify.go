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

// Package notify tells live connections of an account that new events exist.
// A Bus carries notices, possibly across processes, and hands them to the
// Sink owned by the socket transport.
package notify

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/server/log"
)

// Notice announces that the account's log now extends to ServerCursor
type Notice struct {
	AccountID    string `json:"accountId"`
	ServerCursor string `json:"serverCursor"`
}

// Bus publishes notices
type Bus interface {
	Publish(ctx context.Context, n Notice) error
	Close() error
}

// Sink receives notices and reports how many connections were told
type Sink interface {
	Deliver(n Notice) int
}

// SinkFunc adapts a function to a Sink
type SinkFunc func(n Notice) int

// Deliver calls f(n)
func (f SinkFunc) Deliver(n Notice) int {
	return f(n)
}

// empty reports whether the notice carries nothing worth delivering
func (n Notice) empty() bool {
	return n.AccountID == "" || n.ServerCursor == ""
}

func encode(n Notice) ([]byte, error) {
	b, err := json.Marshal(n)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling notice")
	}

	return b, nil
}

func decode(b []byte) (Notice, error) {
	var n Notice
	if err := json.Unmarshal(b, &n); err != nil {
		return Notice{}, errors.Wrap(err, "unmarshalling notice")
	}

	return n, nil
}

// deliver hands a notice to the sink and logs the fan-out
func deliver(sink Sink, n Notice) int {
	if n.empty() {
		return 0
	}

	count := sink.Deliver(n)

	log.WithFields(log.Fields{
		"accountId":    n.AccountID,
		"serverCursor": n.ServerCursor,
		"delivered":    count,
	}).Debug("sync.ws.events_available")

	return count
}

// relay decodes a notice received from a broker and delivers it
func relay(sink Sink, data []byte) {
	n, err := decode(data)
	if err != nil {
		log.WithFields(log.Fields{
			"size": len(data),
		}).ErrorWrap(err, "relaying notice")
		return
	}

	deliver(sink, n)
}
