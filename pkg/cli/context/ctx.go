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

// Package context holds the runtime state shared by the readsync commands
package context

import (
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/config"
	"github.com/readsync/readsync/pkg/client"
)

// ErrNotLoggedIn is returned when a command needs a token and none is configured
var ErrNotLoggedIn = errors.New("not logged in. run 'readsync login' first")

// Ctx is a context holding the information of the current runtime
type Ctx struct {
	ConfigPath string
	Config     config.Config
	Version    string
	HTTPClient *http.Client
	// In is where interactive answers are read from
	In io.Reader
}

// Client returns an API client for the configured endpoint, token and device
func (c *Ctx) Client() (*client.Client, error) {
	if c.Config.Token == "" {
		return nil, ErrNotLoggedIn
	}

	ret := client.New(c.Config.Endpoint, c.Config.Token, c.Config.DeviceID)
	if c.HTTPClient != nil {
		ret.HTTPClient = c.HTTPClient
	}

	return ret, nil
}

// Save persists the current configuration
func (c *Ctx) Save() error {
	return config.Write(c.ConfigPath, c.Config)
}

// SaveCursor records the cursor the device has pulled up to
func (c *Ctx) SaveCursor(cursor string) error {
	if cursor == "" || cursor == c.Config.Cursor {
		return nil
	}

	c.Config.Cursor = cursor

	return errors.Wrap(c.Save(), "saving cursor")
}
