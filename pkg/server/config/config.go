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

package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/dirs"
	"gopkg.in/yaml.v2"
)

const (
	// AppEnvProduction represents an app environment for production.
	AppEnvProduction string = "PRODUCTION"
	// DefaultDBDir is the default directory name for readsync data
	DefaultDBDir = "readsync"
	// DefaultDBFilename is the default database filename
	DefaultDBFilename = "server.db"
	// DefaultNotifyChannel is the NATS subject or Redis channel notices travel on
	DefaultNotifyChannel = "readsync.events"
)

const (
	// NotifyDriverLocal delivers notices within the process
	NotifyDriverLocal = "local"
	// NotifyDriverNATS relays notices between processes over NATS
	NotifyDriverNATS = "nats"
	// NotifyDriverRedis relays notices between processes over Redis Pub/Sub
	NotifyDriverRedis = "redis"
)

var (
	// DefaultDBPath is the default path to the database file
	DefaultDBPath = filepath.Join(dirs.DataHome, DefaultDBDir, DefaultDBFilename)
)

var (
	// ErrDBMissingPath is an error for an incomplete configuration missing the database path
	ErrDBMissingPath = errors.New("DB Path is empty")
	// ErrPortInvalid is an error for an incomplete configuration with invalid port
	ErrPortInvalid = errors.New("Invalid Port")
	// ErrJWTSecretMissing is an error for a configuration without a token secret
	ErrJWTSecretMissing = errors.New("JWT_SECRET is empty")
	// ErrNotifyDriverInvalid is an error for an unknown notification driver
	ErrNotifyDriverInvalid = errors.New("Invalid NOTIFY_DRIVER")
	// ErrNATSURLMissing is an error for the nats driver without a server url
	ErrNATSURLMissing = errors.New("NATS_URL is empty")
	// ErrRedisAddrMissing is an error for the redis driver without an address
	ErrRedisAddrMissing = errors.New("REDIS_ADDR is empty")
)

// getOrEnv returns value if non-empty, otherwise env var, otherwise default
func getOrEnv(value, envKey, defaultVal string) string {
	if value != "" {
		return value
	}
	if env := os.Getenv(envKey); env != "" {
		return env
	}
	return defaultVal
}

// Config is an application configuration
type Config struct {
	AppEnv        string
	Port          string
	DBPath        string
	DatabaseURL   string
	LogLevel      string
	JWTSecret     string
	NotifyDriver  string
	NATSURL       string
	RedisAddr     string
	NotifyChannel string
}

// Params are the configuration parameters for creating a new Config. They
// can also be read from a YAML file.
type Params struct {
	AppEnv        string `yaml:"appEnv"`
	Port          string `yaml:"port"`
	DBPath        string `yaml:"dbPath"`
	DatabaseURL   string `yaml:"databaseUrl"`
	LogLevel      string `yaml:"logLevel"`
	JWTSecret     string `yaml:"jwtSecret"`
	NotifyDriver  string `yaml:"notifyDriver"`
	NATSURL       string `yaml:"natsUrl"`
	RedisAddr     string `yaml:"redisAddr"`
	NotifyChannel string `yaml:"notifyChannel"`
}

// Merge returns p with its empty fields taken from o
func (p Params) Merge(o Params) Params {
	pick := func(a, b string) string {
		if a != "" {
			return a
		}
		return b
	}

	return Params{
		AppEnv:        pick(p.AppEnv, o.AppEnv),
		Port:          pick(p.Port, o.Port),
		DBPath:        pick(p.DBPath, o.DBPath),
		DatabaseURL:   pick(p.DatabaseURL, o.DatabaseURL),
		LogLevel:      pick(p.LogLevel, o.LogLevel),
		JWTSecret:     pick(p.JWTSecret, o.JWTSecret),
		NotifyDriver:  pick(p.NotifyDriver, o.NotifyDriver),
		NATSURL:       pick(p.NATSURL, o.NATSURL),
		RedisAddr:     pick(p.RedisAddr, o.RedisAddr),
		NotifyChannel: pick(p.NotifyChannel, o.NotifyChannel),
	}
}

// ReadFile reads params from a YAML file
func ReadFile(path string) (Params, error) {
	var ret Params

	b, err := os.ReadFile(path)
	if err != nil {
		return ret, errors.Wrap(err, "reading config file")
	}

	if err := yaml.Unmarshal(b, &ret); err != nil {
		return ret, errors.Wrap(err, "unmarshalling config")
	}

	return ret, nil
}

// LoadEnv loads .env files into the environment without overriding
// variables that are already set. Missing files are skipped.
func LoadEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		if err := godotenv.Load(path); err != nil {
			return errors.Wrapf(err, "loading env file %s", path)
		}
	}

	return nil
}

// New constructs and returns a new validated config.
// Empty string params will fall back to environment variables and defaults.
func New(p Params) (Config, error) {
	c := Config{
		AppEnv:        getOrEnv(p.AppEnv, "APP_ENV", AppEnvProduction),
		Port:          getOrEnv(p.Port, "PORT", "3001"),
		DBPath:        getOrEnv(p.DBPath, "DBPath", DefaultDBPath),
		DatabaseURL:   getOrEnv(p.DatabaseURL, "DATABASE_URL", ""),
		LogLevel:      getOrEnv(p.LogLevel, "LOG_LEVEL", "info"),
		JWTSecret:     getOrEnv(p.JWTSecret, "JWT_SECRET", ""),
		NotifyDriver:  getOrEnv(p.NotifyDriver, "NOTIFY_DRIVER", NotifyDriverLocal),
		NATSURL:       getOrEnv(p.NATSURL, "NATS_URL", ""),
		RedisAddr:     getOrEnv(p.RedisAddr, "REDIS_ADDR", ""),
		NotifyChannel: getOrEnv(p.NotifyChannel, "NOTIFY_CHANNEL", DefaultNotifyChannel),
	}

	if err := validate(c); err != nil {
		return Config{}, err
	}

	return c, nil
}

// IsProd checks if the app environment is configured to be production.
func (c Config) IsProd() bool {
	return c.AppEnv == AppEnvProduction
}

func validate(c Config) error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return errors.Wrapf(ErrPortInvalid, "'%s'", c.Port)
	}

	if c.DBPath == "" && c.DatabaseURL == "" {
		return ErrDBMissingPath
	}
	if c.JWTSecret == "" {
		return ErrJWTSecretMissing
	}

	switch c.NotifyDriver {
	case NotifyDriverLocal:
	case NotifyDriverNATS:
		if c.NATSURL == "" {
			return ErrNATSURLMissing
		}
	case NotifyDriverRedis:
		if c.RedisAddr == "" {
			return ErrRedisAddrMissing
		}
	default:
		return errors.Wrapf(ErrNotifyDriverInvalid, "'%s'", c.NotifyDriver)
	}

	return nil
}
