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
)

// Local delivers notices to a sink in the same process
type Local struct {
	sink Sink
}

// NewLocal returns a bus that delivers straight to the sink
func NewLocal(sink Sink) *Local {
	return &Local{sink: sink}
}

// Publish delivers the notice synchronously. Delivery never blocks on a
// connection.
func (l *Local) Publish(ctx context.Context, n Notice) error {
	deliver(l.sink, n)

	return nil
}

// Close is a no-op
func (l *Local) Close() error {
	return nil
}
