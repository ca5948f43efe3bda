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
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/readsync/readsync/pkg/assert"
	"github.com/readsync/readsync/pkg/server/cursor"
	"github.com/readsync/readsync/pkg/server/database"
	"github.com/readsync/readsync/pkg/server/notify"
	"github.com/readsync/readsync/pkg/server/testutils"
)

func TestAppendEvents_acceptThenDuplicate(t *testing.T) {
	a, db, bus := newTestApp(t)
	ctx := context.Background()

	e1 := makeEvent("e1", "2024-01-01T00:00:00Z")
	expectedCursor := cursor.Encode(testutils.MustTime(t, "2024-01-01T00:00:00Z"), "e1")

	res, err := a.AppendEvents(ctx, AppendParams{AccountID: "u1", DeviceID: "d1", Events: []EventInput{e1}})
	if err != nil {
		t.Fatal(err)
	}

	assert.DeepEqual(t, res.Acks, []Ack{{ID: "e1", Status: AckAccepted}}, "first acks mismatch")
	assert.Equal(t, res.ServerCursor, expectedCursor, "first cursor mismatch")

	res, err = a.AppendEvents(ctx, AppendParams{AccountID: "u1", DeviceID: "d2", Events: []EventInput{e1}})
	if err != nil {
		t.Fatal(err)
	}

	assert.DeepEqual(t, res.Acks, []Ack{{ID: "e1", Status: AckDuplicate}}, "second acks mismatch")
	assert.Equal(t, res.ServerCursor, expectedCursor, "second cursor mismatch")

	var count int64
	testutils.MustExec(t, db.Model(&database.Event{}).Count(&count), "counting events")
	assert.Equal(t, count, int64(1), "event count mismatch")

	assert.DeepEqual(t, bus.published(), []notify.Notice{{AccountID: "u1", ServerCursor: expectedCursor}}, "only the accepting call publishes")

	assert.Equal(t, testutil.ToFloat64(a.Metrics.EventsAccepted), float64(1), "accepted counter")
	assert.Equal(t, testutil.ToFloat64(a.Metrics.EventsDuplicate), float64(1), "duplicate counter")
}

func TestAppendEvents_mixedBatch(t *testing.T) {
	a, db, bus := newTestApp(t)
	ctx := context.Background()

	testutils.SetupEvent(t, db, "u1", "old", testutils.MustTime(t, "2024-01-01T00:00:00Z"))

	v2 := makeEvent("v2", "2024-01-03T00:00:00Z")
	v2.SchemaVersion = intPtr(2)

	res, err := a.AppendEvents(ctx, AppendParams{
		AccountID: "u1",
		DeviceID:  "d1",
		Events: []EventInput{
			makeEvent("new", "2024-01-02T00:00:00Z"),
			makeEvent("old", "2024-01-01T00:00:00Z"),
			v2,
			makeEvent("new", "2024-01-02T00:00:00Z"),
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	assert.DeepEqual(t, res.Acks, []Ack{
		{ID: "new", Status: AckAccepted},
		{ID: "old", Status: AckDuplicate},
		{ID: "v2", Status: AckRejected, Reason: "unsupported_schema_version"},
		{ID: "new", Status: AckDuplicate},
	}, "acks mismatch")
	assert.Equal(t, res.ServerCursor, cursor.Encode(testutils.MustTime(t, "2024-01-02T00:00:00Z"), "new"), "cursor mismatch")

	var ids []string
	testutils.MustExec(t, db.Model(&database.Event{}).Order("id ASC").Pluck("id", &ids), "listing ids")
	assert.DeepEqual(t, ids, []string{"new", "old"}, "stored ids mismatch")

	assert.Equal(t, len(bus.published()), 1, "publish count")
	assert.Equal(t, testutil.ToFloat64(a.Metrics.EventsRejected), float64(1), "rejected counter")
}

func TestAppendEvents_noPublishWithoutAccepted(t *testing.T) {
	a, db, bus := newTestApp(t)
	ctx := context.Background()

	testutils.SetupEvent(t, db, "u1", "e1", testutils.MustTime(t, "2024-01-01T00:00:00Z"))

	v9 := makeEvent("e9", "2024-01-01T00:00:00Z")
	v9.SchemaVersion = intPtr(9)

	res, err := a.AppendEvents(ctx, AppendParams{
		AccountID: "u1",
		DeviceID:  "d1",
		Events:    []EventInput{makeEvent("e1", "2024-01-01T00:00:00Z"), v9},
	})
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, len(bus.published()), 0, "nothing should be published")
	assert.NotEqual(t, res.ServerCursor, "", "cursor should reflect the stored event")

	res, err = a.AppendEvents(ctx, AppendParams{AccountID: "u-empty", DeviceID: "d1", Events: []EventInput{}})
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, len(res.Acks), 0, "no acks expected")
	assert.Equal(t, res.ServerCursor, "", "empty account has empty cursor")
	assert.Equal(t, len(bus.published()), 0, "nothing should be published")
}

func TestAppendEvents_serverCursorIsLatestNotSubmitted(t *testing.T) {
	a, db, _ := newTestApp(t)
	ctx := context.Background()

	latest := testutils.SetupEvent(t, db, "u1", "late", testutils.MustTime(t, "2024-06-01T00:00:00Z"))

	res, err := a.AppendEvents(ctx, AppendParams{
		AccountID: "u1",
		DeviceID:  "d1",
		Events:    []EventInput{makeEvent("early", "2024-01-01T00:00:00Z")},
	})
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, res.ServerCursor, testutils.CursorOf(latest), "server cursor should not go backward")
}

func TestAppendEvents_recordsDeviceCursor(t *testing.T) {
	a, db, _ := newTestApp(t)
	ctx := context.Background()

	if _, err := a.AppendEvents(ctx, AppendParams{AccountID: "u1", DeviceID: "d1", Cursor: " c-opaque ", Events: []EventInput{}}); err != nil {
		t.Fatal(err)
	}

	var rows []database.DeviceCursor
	testutils.MustExec(t, db.Find(&rows), "finding device cursors")

	assert.Equal(t, len(rows), 1, "row count")
	assert.Equal(t, rows[0].DeviceID, "d1", "device id")
	assert.Equal(t, rows[0].LastCursor, "c-opaque", "cursor")
	assert.Equal(t, rows[0].UpdatedAt.Equal(a.Clock.Now()), true, "updatedAt should come from the clock")
}

func TestAppendEvents_normalizesCreatedAt(t *testing.T) {
	a, db, _ := newTestApp(t)
	ctx := context.Background()

	if _, err := a.AppendEvents(ctx, AppendParams{
		AccountID: "u1",
		DeviceID:  "d1",
		Events:    []EventInput{makeEvent("e1", "2024-01-01T09:00:00.123456+09:00")},
	}); err != nil {
		t.Fatal(err)
	}

	var e database.Event
	testutils.MustExec(t, db.First(&e), "finding event")

	assert.Equal(t, e.CreatedAt.UTC(), time.Date(2024, 1, 1, 0, 0, 0, 123000000, time.UTC), "createdAt mismatch")
	assert.Equal(t, e.DeviceID, "d1", "deviceId mismatch")
	assert.Equal(t, e.AccountID, "u1", "accountId mismatch")
	assert.Equal(t, string(e.Payload), `{"body":"hello"}`, "payload mismatch")
}

func TestAppendEvents_validation(t *testing.T) {
	tooMany := make([]EventInput, MaxEventsPerBatch+1)
	for i := range tooMany {
		tooMany[i] = makeEvent(fmt.Sprintf("e%d", i), "2024-01-01T00:00:00Z")
	}

	mutate := func(f func(e *EventInput)) []EventInput {
		e := makeEvent("e1", "2024-01-01T00:00:00Z")
		f(&e)
		return []EventInput{e}
	}

	testCases := []struct {
		name        string
		params      AppendParams
		expectedErr error
	}{
		{"too many events", AppendParams{AccountID: "u1", DeviceID: "d1", Events: tooMany}, ErrTooManyEvents},
		{"blank device", AppendParams{AccountID: "u1", DeviceID: "  ", Events: mutate(func(e *EventInput) {})}, ErrInvalidInput},
		{"no account", AppendParams{DeviceID: "d1", Events: mutate(func(e *EventInput) {})}, ErrInvalidInput},
		{"no id", AppendParams{AccountID: "u1", DeviceID: "d1", Events: mutate(func(e *EventInput) { e.ID = "" })}, ErrInvalidInput},
		{"no entityType", AppendParams{AccountID: "u1", DeviceID: "d1", Events: mutate(func(e *EventInput) { e.EntityType = "" })}, ErrInvalidInput},
		{"no entityId", AppendParams{AccountID: "u1", DeviceID: "d1", Events: mutate(func(e *EventInput) { e.EntityID = "" })}, ErrInvalidInput},
		{"bad op", AppendParams{AccountID: "u1", DeviceID: "d1", Events: mutate(func(e *EventInput) { e.Op = "merge" })}, ErrInvalidInput},
		{"payload array", AppendParams{AccountID: "u1", DeviceID: "d1", Events: mutate(func(e *EventInput) { e.Payload = json.RawMessage(`[1]`) })}, ErrInvalidInput},
		{"payload null", AppendParams{AccountID: "u1", DeviceID: "d1", Events: mutate(func(e *EventInput) { e.Payload = json.RawMessage(`null`) })}, ErrInvalidInput},
		{"payload missing", AppendParams{AccountID: "u1", DeviceID: "d1", Events: mutate(func(e *EventInput) { e.Payload = nil })}, ErrInvalidInput},
		{"bad createdAt", AppendParams{AccountID: "u1", DeviceID: "d1", Events: mutate(func(e *EventInput) { e.CreatedAt = "yesterday" })}, ErrInvalidInput},
		{"no schemaVersion", AppendParams{AccountID: "u1", DeviceID: "d1", Events: mutate(func(e *EventInput) { e.SchemaVersion = nil })}, ErrInvalidInput},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a, db, bus := newTestApp(t)

			_, err := a.AppendEvents(context.Background(), tc.params)
			assert.Equal(t, errors.Cause(err), tc.expectedErr, "error mismatch")

			var count int64
			testutils.MustExec(t, db.Model(&database.Event{}).Count(&count), "counting events")
			assert.Equal(t, count, int64(0), "nothing should be stored")
			assert.Equal(t, len(bus.published()), 0, "nothing should be published")
		})
	}
}

func TestAppendEvents_publishFailureIsNotFatal(t *testing.T) {
	a, _, bus := newTestApp(t)
	bus.err = errors.New("broker down")

	res, err := a.AppendEvents(context.Background(), AppendParams{
		AccountID: "u1",
		DeviceID:  "d1",
		Events:    []EventInput{makeEvent("e1", "2024-01-01T00:00:00Z")},
	})
	if err != nil {
		t.Fatalf("append should succeed, got %v", err)
	}

	assert.DeepEqual(t, res.Acks, []Ack{{ID: "e1", Status: AckAccepted}}, "acks mismatch")
}

func TestAppendEvents_concurrentSameID(t *testing.T) {
	a, db, _ := newTestApp(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 6)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := a.AppendEvents(ctx, AppendParams{
				AccountID: "u1",
				DeviceID:  fmt.Sprintf("d%d", i),
				Events:    []EventInput{makeEvent("shared", "2024-01-01T00:00:00Z")},
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent append: %v", err)
		}
	}

	var count int64
	testutils.MustExec(t, db.Model(&database.Event{}).Count(&count), "counting events")
	assert.Equal(t, count, int64(1), "exactly one stored row expected")
}

func TestPullEvents_order(t *testing.T) {
	a, _, _ := newTestApp(t)
	ctx := context.Background()

	if _, err := a.AppendEvents(ctx, AppendParams{
		AccountID: "u1",
		DeviceID:  "d1",
		Events: []EventInput{
			makeEvent("x", "2024-01-01T10:00:00Z"),
			makeEvent("y", "2024-01-01T09:00:00Z"),
		},
	}); err != nil {
		t.Fatal(err)
	}

	res, err := a.PullEvents(ctx, PullParams{AccountID: "u1"})
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, len(res.Events), 2, "event count")
	assert.Equal(t, res.Events[0].ID, "y", "first id")
	assert.Equal(t, res.Events[1].ID, "x", "second id")
	assert.Equal(t, res.ServerCursor, cursor.Encode(testutils.MustTime(t, "2024-01-01T10:00:00Z"), "x"), "cursor mismatch")

	again, err := a.PullEvents(ctx, PullParams{AccountID: "u1", Cursor: res.ServerCursor})
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, len(again.Events), 0, "no events after the last cursor")
	assert.Equal(t, again.ServerCursor, res.ServerCursor, "empty page echoes cursor")
}

func TestPullEvents_emptyAccount(t *testing.T) {
	a, _, _ := newTestApp(t)

	res, err := a.PullEvents(context.Background(), PullParams{AccountID: "nobody"})
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, len(res.Events), 0, "event count")
	assert.Equal(t, res.ServerCursor, "", "cursor should be empty")
}

func TestPullEvents_invalidCursor(t *testing.T) {
	a, _, _ := newTestApp(t)

	foreign := cursor.Encode(time.Now(), "e1")
	foreign = foreign[:len(foreign)-2]

	for _, c := range []string{"garbage", foreign, "eyJ2IjoyLCJjcmVhdGVkQXQiOiIyMDI0LTAxLTAxVDAwOjAwOjAwWiIsImlkIjoiZTEifQ"} {
		_, err := a.PullEvents(context.Background(), PullParams{AccountID: "u1", Cursor: c})
		assert.Equal(t, err, ErrInvalidCursor, fmt.Sprintf("cursor %q", c))
	}
}

func TestPullEvents_idempotent(t *testing.T) {
	a, db, _ := newTestApp(t)
	ctx := context.Background()

	base := testutils.MustTime(t, "2024-01-01T00:00:00Z")
	for i := 0; i < 5; i++ {
		testutils.SetupEvent(t, db, "u1", fmt.Sprintf("e%d", i), base.Add(time.Duration(i)*time.Second))
	}

	first, err := a.PullEvents(ctx, PullParams{AccountID: "u1", Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.PullEvents(ctx, PullParams{AccountID: "u1", Limit: 3})
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, first.ServerCursor, second.ServerCursor, "cursor should be stable")
	assert.Equal(t, len(first.Events), 3, "page size")
	for i := range first.Events {
		assert.Equal(t, first.Events[i].ID, second.Events[i].ID, "page should be stable")
	}
}

func TestPullEvents_chainingWithConcurrentAppends(t *testing.T) {
	a, _, _ := newTestApp(t)
	ctx := context.Background()

	base := testutils.MustTime(t, "2024-01-01T00:00:00Z")
	total := 30

	seen := map[string]int{}
	next := 0
	c := ""

	for round := 0; round < 100 && len(seen) < total; round++ {
		// interleave: submit two new events with increasing createdAt, then pull a small page
		for j := 0; j < 2 && next < total; j++ {
			e := makeEvent(fmt.Sprintf("e%02d", next), base.Add(time.Duration(next)*time.Minute).Format(time.RFC3339))
			if _, err := a.AppendEvents(ctx, AppendParams{AccountID: "u1", DeviceID: "d1", Events: []EventInput{e}}); err != nil {
				t.Fatal(err)
			}
			next++
		}

		res, err := a.PullEvents(ctx, PullParams{AccountID: "u1", Cursor: c, Limit: 3})
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range res.Events {
			seen[e.ID]++
		}
		c = res.ServerCursor
	}

	assert.Equal(t, len(seen), total, "all events should eventually be pulled")
	for id, n := range seen {
		assert.Equal(t, n, 1, fmt.Sprintf("event %s pulled more than once", id))
	}
}

func TestClampLimit(t *testing.T) {
	testCases := []struct {
		input    int
		expected int
	}{
		{0, DefaultPageSize},
		{-5, 1},
		{1, 1},
		{50, 50},
		{200, 200},
		{201, 200},
		{10000, 200},
	}

	for _, tc := range testCases {
		assert.Equal(t, clampLimit(tc.input), tc.expected, fmt.Sprintf("limit %d", tc.input))
	}
}

func TestPullEvents_limitClamped(t *testing.T) {
	a, db, _ := newTestApp(t)

	base := testutils.MustTime(t, "2024-01-01T00:00:00Z")
	for i := 0; i < 3; i++ {
		testutils.SetupEvent(t, db, "u1", fmt.Sprintf("e%d", i), base.Add(time.Duration(i)*time.Second))
	}

	res, err := a.PullEvents(context.Background(), PullParams{AccountID: "u1", Limit: -1})
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, len(res.Events), 1, "negative limit clamps to 1")
}
