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

package push

import (
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/context"
	"github.com/readsync/readsync/pkg/cli/log"
	"github.com/readsync/readsync/pkg/cli/output"
	"github.com/readsync/readsync/pkg/client"
	"github.com/spf13/cobra"
)

var example = `
  * Upload events from a file
  readsync push events.json

  * Upload events from standard input
  readsync pull --config a.yaml | readsync push --config b.yaml`

// batchSize is the most events the server accepts in one upload
const batchSize = 200

// NewCmd returns a new push command
func NewCmd(ctx *context.Ctx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "push [file]",
		Short:   "Upload events read from a file or standard input",
		Example: example,
		Args:    cobra.MaximumNArgs(1),
		RunE:    newRun(ctx),
	}

	return cmd
}

// fill gives the event the defaults a hand-written event usually omits
func fill(e client.Event, now time.Time) client.Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt == "" {
		e.CreatedAt = now.UTC().Format(time.RFC3339Nano)
	}
	if e.SchemaVersion == 0 {
		e.SchemaVersion = 1
	}
	if len(e.Payload) == 0 {
		e.Payload = []byte("{}")
	}

	return e
}

// Summary counts the acks of a push
type Summary struct {
	Accepted  int
	Duplicate int
	Rejected  int
}

// Push uploads the events in batches and reports every ack
func Push(cmd *cobra.Command, ctx *context.Ctx, events []client.Event) (Summary, error) {
	var ret Summary

	c, err := ctx.Client()
	if err != nil {
		return ret, err
	}

	now := time.Now()
	for i := range events {
		events[i] = fill(events[i], now)
	}

	for start := 0; start < len(events); start += batchSize {
		end := start + batchSize
		if end > len(events) {
			end = len(events)
		}

		resp, err := c.UploadEvents(cmd.Context(), ctx.Config.Cursor, events[start:end])
		if err != nil {
			return ret, err
		}

		for _, ack := range resp.Acks {
			log.Ack(ack.ID, ack.Status, ack.Reason)

			switch ack.Status {
			case "accepted":
				ret.Accepted++
			case "duplicate":
				ret.Duplicate++
			default:
				ret.Rejected++
			}
		}
	}

	return ret, nil
}

func readInput(ctx *context.Ctx, args []string) ([]client.Event, error) {
	var r io.Reader = ctx.In
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, errors.Wrap(err, "opening the events file")
		}
		defer f.Close()

		r = f
	}

	return output.ReadEvents(r)
}

func newRun(ctx *context.Ctx) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		events, err := readInput(ctx, args)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			log.Infof("no events to push\n")
			return nil
		}

		s, err := Push(cmd, ctx, events)
		if err != nil {
			return err
		}

		log.Infof("%d accepted, %d duplicate, %d rejected\n", s.Accepted, s.Duplicate, s.Rejected)
		if s.Rejected > 0 {
			return errors.Errorf("%d events were rejected", s.Rejected)
		}

		return nil
	}
}
