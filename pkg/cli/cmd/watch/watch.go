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

package watch

import (
	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/cmd/pull"
	"github.com/readsync/readsync/pkg/cli/context"
	"github.com/readsync/readsync/pkg/cli/log"
	"github.com/readsync/readsync/pkg/client"
	"github.com/spf13/cobra"
)

var example = `
  * Print events as other devices upload them
  readsync watch`

var countFlag int

// NewCmd returns a new watch command
func NewCmd(ctx *context.Ctx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "watch",
		Short:   "Keep a live connection and print new events as they arrive",
		Example: example,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.IntVarP(&countFlag, "count", "n", 0, "exit after this many notifications. 0 watches until interrupted")

	return cmd
}

func newRun(ctx *context.Ctx) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, err := ctx.Client()
		if err != nil {
			return err
		}

		sock, err := c.Dial(cmd.Context(), ctx.Config.Cursor)
		if err != nil {
			return err
		}

		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-cmd.Context().Done():
			case <-done:
			}
			sock.Close()
		}()

		// catch up on what happened while offline
		if _, err := pull.Run(cmd, ctx, false); err != nil {
			return errors.Wrap(err, "catching up")
		}

		log.Infof("watching %s as device %s\n", ctx.Config.Endpoint, ctx.Config.DeviceID)

		seen := 0
		for countFlag == 0 || seen < countFlag {
			msg, err := sock.Read()
			if err != nil {
				if cmd.Context().Err() != nil {
					return nil
				}
				return err
			}

			switch msg.Type {
			case client.MessageEventsAvailable:
				seen++
				if _, err := pull.Run(cmd, ctx, false); err != nil {
					return err
				}
			case client.MessageError:
				log.Warnf("server error: %s\n", msg.Reason)
			}
		}

		return nil
	}
}
