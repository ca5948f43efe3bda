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

package login

import (
	stdctx "context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/context"
	"github.com/readsync/readsync/pkg/cli/log"
	"github.com/readsync/readsync/pkg/client"
	"github.com/readsync/readsync/pkg/prompt"
	"github.com/spf13/cobra"
)

var example = `
  readsync login --endpoint https://sync.example.com --token <jwt>
  readsync login --device kindle`

var (
	endpointFlag string
	tokenFlag    string
	deviceFlag   string
)

// NewCmd returns a new login command
func NewCmd(ctx *context.Ctx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "login",
		Short:   "Store the server endpoint and access token",
		Example: example,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.StringVar(&endpointFlag, "endpoint", "", "the server endpoint")
	f.StringVar(&tokenFlag, "token", "", "the access token. asked for when omitted")
	f.StringVar(&deviceFlag, "device", "", "the device id. generated when omitted")

	return cmd
}

// confirmOverwrite asks before replacing a token that is already stored
func confirmOverwrite(ctx *context.Ctx) (bool, error) {
	if ctx.Config.Token == "" {
		return true, nil
	}

	log.Askf("%s", prompt.FormatQuestion("a token is already stored. overwrite it?", false))

	return prompt.ReadYesNo(ctx.In, false)
}

func readToken(ctx *context.Ctx) (string, error) {
	if tokenFlag != "" {
		return tokenFlag, nil
	}

	log.Askf("token")

	return prompt.ReadLine(ctx.In)
}

// verify makes an authenticated request so that a bad token fails now
func verify(c *client.Client) error {
	_, err := c.PullEvents(stdctx.Background(), "", 1)
	if err == nil {
		return nil
	}

	if httpErr, ok := errors.Cause(err).(*client.HTTPError); ok && httpErr.StatusCode == 401 {
		return errors.New("the server rejected the token")
	}

	return errors.Wrap(err, "verifying the token")
}

func newRun(ctx *context.Ctx) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ok, err := confirmOverwrite(ctx)
		if err != nil {
			return errors.Wrap(err, "confirming")
		}
		if !ok {
			log.Warnf("aborted\n")
			return nil
		}

		tok, err := readToken(ctx)
		if err != nil {
			return errors.Wrap(err, "reading the token")
		}
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return errors.New("token is empty")
		}

		cf := ctx.Config
		if endpointFlag != "" {
			cf.Endpoint = strings.TrimSuffix(endpointFlag, "/")
		}
		if deviceFlag != "" {
			cf.DeviceID = deviceFlag
		}
		if cf.DeviceID == "" {
			cf.DeviceID = uuid.NewString()
		}
		if cf.Endpoint != ctx.Config.Endpoint {
			// cursors are only meaningful on the server that issued them
			cf.Cursor = ""
		}
		cf.Token = tok

		c := client.New(cf.Endpoint, cf.Token, cf.DeviceID)
		if ctx.HTTPClient != nil {
			c.HTTPClient = ctx.HTTPClient
		}
		if err := verify(c); err != nil {
			return err
		}

		ctx.Config = cf
		if err := ctx.Save(); err != nil {
			return errors.Wrap(err, "saving config")
		}

		log.Successf("logged in to %s as device %s\n", cf.Endpoint, cf.DeviceID)

		return nil
	}
}
