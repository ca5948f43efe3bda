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

package pull

import (
	stdctx "context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/readsync/readsync/pkg/assert"
	"github.com/readsync/readsync/pkg/cli/config"
	"github.com/readsync/readsync/pkg/cli/context"
	"github.com/readsync/readsync/pkg/cli/testutils"
	"github.com/readsync/readsync/pkg/client"
)

func upload(t *testing.T, ctx *context.Ctx, ids ...string) {
	c, err := ctx.Client()
	if err != nil {
		t.Fatal(err)
	}

	events := []client.Event{}
	for i, id := range ids {
		events = append(events, client.Event{
			ID:            id,
			EntityType:    "note",
			EntityID:      "n1",
			Op:            "add",
			Payload:       json.RawMessage(`{}`),
			CreatedAt:     "2024-01-01T00:00:0" + string(rune('0'+i)) + "Z",
			SchemaVersion: 1,
		})
	}

	if _, err := c.UploadEvents(stdctx.Background(), "", events); err != nil {
		t.Fatal(err)
	}
}

func lineIDs(t *testing.T, out string) []string {
	ret := []string{}
	for _, l := range strings.Split(strings.TrimSpace(out), "\n") {
		if l == "" {
			continue
		}

		var e client.Event
		if err := json.Unmarshal([]byte(l), &e); err != nil {
			t.Fatalf("unmarshalling %q: %v", l, err)
		}
		ret = append(ret, e.ID)
	}

	return ret
}

func TestPull(t *testing.T) {
	server := testutils.NewServer(t)
	ctx := testutils.NewCtx(t, server.URL, "u1", "laptop", "")
	upload(t, ctx, "e1", "e2")

	out, err := testutils.RunCmd(NewCmd(ctx))
	if err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, lineIDs(t, out), []string{"e1", "e2"}, "first pull mismatch")

	saved, err := config.Read(ctx.ConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	assert.NotEqual(t, saved.Cursor, "", "cursor should be saved")

	out, err = testutils.RunCmd(NewCmd(ctx))
	if err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, lineIDs(t, out), []string{}, "second pull should be empty")

	out, err = testutils.RunCmd(NewCmd(ctx), "--full")
	if err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, lineIDs(t, out), []string{"e1", "e2"}, "full pull mismatch")
}

func TestPull_rejectedCursor(t *testing.T) {
	server := testutils.NewServer(t)
	ctx := testutils.NewCtx(t, server.URL, "u1", "laptop", "")
	ctx.Config.Cursor = "garbage"
	upload(t, ctx, "e1")

	out, err := testutils.RunCmd(NewCmd(ctx))
	if err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, lineIDs(t, out), []string{"e1"}, "pull should restart from the beginning")
	assert.NotEqual(t, ctx.Config.Cursor, "garbage", "cursor should be replaced")
}

func TestPull_notLoggedIn(t *testing.T) {
	server := testutils.NewServer(t)
	ctx := testutils.NewCtx(t, server.URL, "", "laptop", "")

	_, err := testutils.RunCmd(NewCmd(ctx))
	assert.Equal(t, err, context.ErrNotLoggedIn, "error mismatch")
}
