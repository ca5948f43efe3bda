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

// Package config reads and writes the readsync command line configuration
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/dirs"
	"gopkg.in/yaml.v2"
)

const (
	dirName  = "readsync"
	fileName = "cli.yaml"

	// DefaultEndpoint is the server used when none is configured
	DefaultEndpoint = "http://localhost:3001"
)

// Config holds the command line configuration
type Config struct {
	Endpoint string `yaml:"endpoint"`
	Token    string `yaml:"token"`
	DeviceID string `yaml:"deviceId"`
	// Cursor is the last server cursor this device has pulled up to
	Cursor string `yaml:"cursor,omitempty"`
}

// GetPath returns the path to the config file
func GetPath() string {
	return filepath.Join(dirs.ConfigHome, dirName, fileName)
}

// Read reads the config file at the path. A missing file yields the defaults.
func Read(path string) (Config, error) {
	ret := Config{Endpoint: DefaultEndpoint}

	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ret, nil
	}
	if err != nil {
		return ret, errors.Wrap(err, "reading config file")
	}

	if err := yaml.Unmarshal(b, &ret); err != nil {
		return ret, errors.Wrap(err, "unmarshalling config")
	}
	if ret.Endpoint == "" {
		ret.Endpoint = DefaultEndpoint
	}

	return ret, nil
}

// Write writes the config to the path, creating its directory
func Write(path string, cf Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "creating config directory")
	}

	b, err := yaml.Marshal(cf)
	if err != nil {
		return errors.Wrap(err, "marshalling config into YAML")
	}

	if err := os.WriteFile(path, b, 0600); err != nil {
		return errors.Wrap(err, "writing the config file")
	}

	return nil
}
