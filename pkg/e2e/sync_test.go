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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/assert"
	"github.com/readsync/readsync/pkg/client"
	"github.com/readsync/readsync/pkg/server/token"
)

func mustClient(t *testing.T, endpoint, accountID, deviceID string) *client.Client {
	tok, err := token.Issue(token.Options{Secret: testSecret, TTL: time.Hour}, accountID, time.Now())
	if err != nil {
		t.Fatal(errors.Wrap(err, "issuing token"))
	}

	return client.New(endpoint, tok, deviceID)
}

func note(id, createdAt string) client.Event {
	return client.Event{
		ID:            id,
		EntityType:    "note",
		EntityID:      "n-" + id,
		Op:            "add",
		Payload:       json.RawMessage(fmt.Sprintf(`{"body":"%s"}`, id)),
		CreatedAt:     createdAt,
		SchemaVersion: 1,
	}
}

func eventIDs(events []client.Event) []string {
	ret := []string{}
	for _, e := range events {
		ret = append(ret, e.ID)
	}

	return ret
}

func TestSync_twoDevicesConverge(t *testing.T) {
	port := "13458"
	startServer(t, port)
	endpoint := "http://localhost:" + port
	ctx := context.Background()

	laptop := mustClient(t, endpoint, "u1", "laptop")
	phone := mustClient(t, endpoint, "u1", "phone")
	stranger := mustClient(t, endpoint, "u2", "tablet")

	sock, err := phone.Dial(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	defer sock.Close()

	// the hello has no reply; a pull round trip confirms the socket is registered
	if err := sock.Pull(""); err != nil {
		t.Fatal(err)
	}
	msg, err := sock.Read()
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, msg.Type, client.MessageEvents, "initial pull type mismatch")
	assert.EqualLen(t, msg.Events, 0, "initial pull should be empty")

	up, err := laptop.UploadEvents(ctx, "", []client.Event{
		note("e2", "2024-01-01T00:00:02Z"),
		note("e1", "2024-01-01T00:00:01Z"),
		note("e3", "2024-01-01T00:00:03Z"),
	})
	if err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, up.Acks, []client.Ack{
		{ID: "e2", Status: "accepted"},
		{ID: "e1", Status: "accepted"},
		{ID: "e3", Status: "accepted"},
	}, "acks mismatch")

	msg, err = sock.Read()
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, msg.Type, client.MessageEventsAvailable, "notice type mismatch")
	assert.Equal(t, msg.ServerCursor, up.ServerCursor, "notice cursor mismatch")

	events, cursor, err := phone.PullAll(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, eventIDs(events), []string{"e1", "e2", "e3"}, "pulled ids mismatch")
	assert.Equal(t, cursor, up.ServerCursor, "pulled cursor mismatch")

	// a retried upload changes nothing
	again, err := laptop.UploadEvents(ctx, cursor, []client.Event{note("e1", "2024-01-01T00:00:01Z")})
	if err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, again.Acks, []client.Ack{{ID: "e1", Status: "duplicate"}}, "retry acks mismatch")

	rest, _, err := phone.PullAll(ctx, cursor)
	if err != nil {
		t.Fatal(err)
	}
	assert.EqualLen(t, rest, 0, "nothing new after a duplicate")

	// other accounts see nothing
	theirs, _, err := stranger.PullAll(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	assert.EqualLen(t, theirs, 0, "other account should see no events")
}

func TestSync_state(t *testing.T) {
	port := "13459"
	startServer(t, port)
	endpoint := "http://localhost:" + port
	ctx := context.Background()

	c := mustClient(t, endpoint, "u1", "laptop")

	offset := 120
	chapter := "ch3.xhtml"
	positions := []client.ReadingPosition{
		{BookID: "b1", ChapterHref: &chapter, Offset: &offset, UpdatedAt: "2024-01-01T00:00:00Z"},
	}

	if err := c.UploadState(ctx, "", positions, 1); err != nil {
		t.Fatal(err)
	}

	err := c.UploadState(ctx, "", positions, 2)
	httpErr, ok := errors.Cause(err).(*client.HTTPError)
	if !ok {
		t.Fatalf("expected an HTTPError, got %v", err)
	}
	assert.Equal(t, httpErr.StatusCode, 422, "status code mismatch")
	assert.Equal(t, httpErr.Reason, "unsupported_schema_version", "reason mismatch")
}

func TestSync_invalidCursor(t *testing.T) {
	port := "13460"
	startServer(t, port)
	ctx := context.Background()

	c := mustClient(t, "http://localhost:"+port, "u1", "laptop")

	_, err := c.PullEvents(ctx, "not-a-cursor", 0)
	httpErr, ok := errors.Cause(err).(*client.HTTPError)
	if !ok {
		t.Fatalf("expected an HTTPError, got %v", err)
	}
	assert.Equal(t, httpErr.IsInvalidCursor(), true, "expected an invalid cursor error")
}

func TestSync_unauthorized(t *testing.T) {
	port := "13461"
	startServer(t, port)
	ctx := context.Background()

	c := client.New("http://localhost:"+port, "forged", "laptop")

	_, err := c.PullEvents(ctx, "", 0)
	httpErr, ok := errors.Cause(err).(*client.HTTPError)
	if !ok {
		t.Fatalf("expected an HTTPError, got %v", err)
	}
	assert.Equal(t, httpErr.StatusCode, 401, "status code mismatch")

	_, err = c.Dial(ctx, "")
	assert.NotEqual(t, err, nil, "socket should reject a forged token")
}
