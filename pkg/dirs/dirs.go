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

// Package dirs resolves the XDG base directories used for the server's
// default database and configuration file locations
package dirs

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	envConfigHome = "XDG_CONFIG_HOME"
	envDataHome   = "XDG_DATA_HOME"
)

var (
	// ConfigHome is the directory for user-specific configuration files
	ConfigHome string
	// DataHome is the directory for user-specific data files
	DataHome string
)

func init() {
	Reload()
}

// Reload re-reads the environment and recomputes the directories
func Reload() {
	home := homeDir()

	ConfigHome = readPath(envConfigHome, filepath.Join(home, ".config"))
	DataHome = readPath(envDataHome, filepath.Join(home, ".local", "share"))
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		panic(errors.Wrap(err, "getting home dir"))
	}

	return home
}

func readPath(envName, defaultPath string) string {
	if dir := os.Getenv(envName); dir != "" {
		return dir
	}

	return defaultPath
}
