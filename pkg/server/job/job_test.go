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

package job

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/readsync/readsync/pkg/assert"
	"github.com/readsync/readsync/pkg/server/log"
	"github.com/readsync/readsync/pkg/server/testutils"
)

type fixedStats struct {
	accounts int
	conns    int
}

func (s fixedStats) Stats() (int, int) {
	return s.accounts, s.conns
}

func TestNewRunner(t *testing.T) {
	db := testutils.InitMemoryDB(t)

	_, err := NewRunner(nil, fixedStats{})
	assert.NotEqual(t, err, nil, "expected an error without a DB")

	_, err = NewRunner(db, nil)
	assert.NotEqual(t, err, nil, "expected an error without a stats source")

	_, err = NewRunner(db, fixedStats{})
	assert.Equal(t, err, nil, "unexpected error")
}

func TestDo(t *testing.T) {
	db := testutils.InitMemoryDB(t)

	r, err := NewRunner(db, fixedStats{})
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Do(); err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	assert.Equal(t, len(r.cron.Entries()), 3, "scheduled job count mismatch")
}

type countingEvicter struct {
	calls int
}

func (e *countingEvicter) EvictIdle() int {
	e.calls++
	return 7
}

func TestDo_withLimiter(t *testing.T) {
	r, err := NewRunner(testutils.InitMemoryDB(t), fixedStats{})
	if err != nil {
		t.Fatal(err)
	}
	r.Limiter = &countingEvicter{}

	if err := r.Do(); err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	assert.Equal(t, len(r.cron.Entries()), 4, "scheduled job count mismatch")
}

func TestEvictVisitors(t *testing.T) {
	r, err := NewRunner(testutils.InitMemoryDB(t), fixedStats{})
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, r.EvictVisitors(), nil, "evicting without a limiter should be a no-op")

	e := &countingEvicter{}
	r.Limiter = e
	assert.Equal(t, r.EvictVisitors(), nil, "evict error")
	assert.Equal(t, e.calls, 1, "evicter call count mismatch")
}

func TestMaintenance(t *testing.T) {
	db := testutils.InitMemoryDB(t)
	testutils.SetupEvent(t, db, "u1", "e1", testutils.MustTime(t, "2024-01-01T00:00:00Z"))

	r, err := NewRunner(db, fixedStats{})
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, r.CheckpointWAL(), nil, "checkpoint error")
	assert.Equal(t, r.Vacuum(), nil, "vacuum error")
}

func TestLogSocketStats(t *testing.T) {
	// opening the database logs the migration run
	r, err := NewRunner(testutils.InitMemoryDB(t), fixedStats{accounts: 2, conns: 5})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	prev := log.SetOutput(&buf)
	defer log.SetOutput(prev)

	if err := r.LogSocketStats(); err != nil {
		t.Fatal(err)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, entry["msg"], "sync.ws.stats", "message mismatch")
	assert.Equal(t, entry["accounts"], float64(2), "accounts mismatch")
	assert.Equal(t, entry["connections"], float64(5), "connections mismatch")
}
