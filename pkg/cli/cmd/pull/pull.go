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
	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/context"
	"github.com/readsync/readsync/pkg/cli/log"
	"github.com/readsync/readsync/pkg/cli/output"
	"github.com/readsync/readsync/pkg/client"
	"github.com/spf13/cobra"
)

var example = `
  * Print the events since the last pull
  readsync pull

  * Print every event of the account
  readsync pull --full`

var fullFlag bool

// NewCmd returns a new pull command
func NewCmd(ctx *context.Ctx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pull",
		Short:   "Print new events as JSON lines",
		Example: example,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.BoolVarP(&fullFlag, "full", "f", false, "pull from the start of the log instead of the saved cursor")

	return cmd
}

// Run pulls every event after the saved cursor, writes them out and saves
// the new cursor. A saved cursor the server no longer accepts is dropped and
// the pull restarts from the beginning.
func Run(cmd *cobra.Command, ctx *context.Ctx, full bool) (int, error) {
	c, err := ctx.Client()
	if err != nil {
		return 0, err
	}

	cursor := ctx.Config.Cursor
	if full {
		cursor = ""
	}

	events, next, err := c.PullAll(cmd.Context(), cursor)
	if httpErr, ok := errors.Cause(err).(*client.HTTPError); ok && httpErr.IsInvalidCursor() && cursor != "" {
		log.Warnf("the saved cursor was rejected. pulling from the start\n")
		events, next, err = c.PullAll(cmd.Context(), "")
	}
	if err != nil {
		return 0, err
	}

	if err := output.Events(cmd.OutOrStdout(), events); err != nil {
		return 0, err
	}
	if err := ctx.SaveCursor(next); err != nil {
		return len(events), err
	}

	log.Debug("pulled %d events up to %s\n", len(events), next)

	return len(events), nil
}

func newRun(ctx *context.Ctx) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		_, err := Run(cmd, ctx, fullFlag)

		return err
	}
}
