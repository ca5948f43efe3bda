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

// Package testutils provides utilities used in the command line tests
package testutils

import (
	"bytes"
	stdctx "context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/readsync/readsync/pkg/cli/config"
	"github.com/readsync/readsync/pkg/cli/context"
	"github.com/readsync/readsync/pkg/server/app"
	"github.com/readsync/readsync/pkg/server/controllers"
	"github.com/readsync/readsync/pkg/server/store"
	"github.com/readsync/readsync/pkg/server/testutils"
	"github.com/spf13/cobra"
)

// NewServer starts a sync server backed by an in-memory database
func NewServer(t *testing.T) *httptest.Server {
	db := testutils.InitMemoryDB(t)
	s := store.New(db)

	a := app.NewTest()
	a.Events = s
	a.State = s

	server := controllers.MustNewServer(t, &a)
	t.Cleanup(server.Close)

	return server
}

// NewCtx returns a context logged in to the endpoint as the account. Answers
// to prompts are read from input.
func NewCtx(t *testing.T, endpoint, accountID, deviceID, input string) *context.Ctx {
	cf := config.Config{Endpoint: endpoint, DeviceID: deviceID}
	if accountID != "" {
		cf.Token = testutils.MustToken(t, accountID)
	}

	return &context.Ctx{
		ConfigPath: filepath.Join(t.TempDir(), "cli.yaml"),
		Config:     cf,
		Version:    "test",
		In:         strings.NewReader(input),
	}
}

// RunCmd executes the command with the arguments and returns what it wrote
// to its output
func RunCmd(cmd *cobra.Command, args ...string) (string, error) {
	return RunCmdContext(stdctx.Background(), cmd, args...)
}

// RunCmdContext is RunCmd with a context that stops the command when cancelled
func RunCmdContext(ctx stdctx.Context, cmd *cobra.Command, args ...string) (string, error) {
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true

	err := cmd.ExecuteContext(ctx)

	return buf.String(), err
}
