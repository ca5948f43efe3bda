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

package app

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/server/notify"
	"github.com/readsync/readsync/pkg/server/store"
	"github.com/readsync/readsync/pkg/server/testutils"
	"gorm.io/gorm"
)

type recordingBus struct {
	mu      sync.Mutex
	notices []notify.Notice
	err     error
}

func (b *recordingBus) Publish(ctx context.Context, n notify.Notice) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.notices = append(b.notices, n)
	return b.err
}

func (b *recordingBus) Close() error {
	return nil
}

func (b *recordingBus) published() []notify.Notice {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]notify.Notice(nil), b.notices...)
}

// newTestApp returns an app backed by an in-memory database and a recording bus
func newTestApp(t *testing.T) (App, *gorm.DB, *recordingBus) {
	db := testutils.InitMemoryDB(t)
	s := store.New(db)
	bus := &recordingBus{}

	a := NewTest()
	a.Events = s
	a.State = s
	a.Bus = bus

	if err := a.Validate(); err != nil {
		t.Fatal(errors.Wrap(err, "validating test app"))
	}

	return a, db, bus
}

func intPtr(i int) *int {
	return &i
}

func strPtr(s string) *string {
	return &s
}

func makeEvent(id, createdAt string) EventInput {
	return EventInput{
		ID:            id,
		EntityType:    "note",
		EntityID:      "n-" + id,
		Op:            "add",
		Payload:       json.RawMessage(`{"body":"hello"}`),
		CreatedAt:     createdAt,
		SchemaVersion: intPtr(SupportedSchemaVersion),
	}
}
