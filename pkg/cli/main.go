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
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/config"
	clictx "github.com/readsync/readsync/pkg/cli/context"
	"github.com/readsync/readsync/pkg/cli/log"
	"github.com/readsync/readsync/pkg/client"

	// commands
	"github.com/readsync/readsync/pkg/cli/cmd/login"
	"github.com/readsync/readsync/pkg/cli/cmd/pull"
	"github.com/readsync/readsync/pkg/cli/cmd/push"
	"github.com/readsync/readsync/pkg/cli/cmd/root"
	"github.com/readsync/readsync/pkg/cli/cmd/version"
	"github.com/readsync/readsync/pkg/cli/cmd/watch"
)

// versionTag is populated during link time
var versionTag = "master"

// parseConfigPath extracts the --config flag value from the arguments
// regardless of where it appears. The config is needed before cobra parses
// flags.
func parseConfigPath(args []string) string {
	for i, arg := range args {
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}

	return ""
}

func initCtx(args []string) (*clictx.Ctx, error) {
	path := parseConfigPath(args)
	if path == "" {
		path = config.GetPath()
	}

	cf, err := config.Read(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}

	return &clictx.Ctx{
		ConfigPath: path,
		Config:     cf,
		Version:    versionTag,
		HTTPClient: client.NewRateLimitedHTTPClient(),
		In:         os.Stdin,
	}, nil
}

func main() {
	ctx, err := initCtx(os.Args[1:])
	if err != nil {
		log.Errorf("%s\n", err.Error())
		os.Exit(1)
	}

	root.Register(login.NewCmd(ctx))
	root.Register(pull.NewCmd(ctx))
	root.Register(push.NewCmd(ctx))
	root.Register(watch.NewCmd(ctx))
	root.Register(version.NewCmd(ctx))

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.Execute(sigCtx); err != nil {
		log.Errorf("%s\n", err.Error())
		stop()
		os.Exit(1)
	}
}
