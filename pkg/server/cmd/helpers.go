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

package cmd

import (
	"context"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/clock"
	"github.com/readsync/readsync/pkg/server/app"
	"github.com/readsync/readsync/pkg/server/buildinfo"
	"github.com/readsync/readsync/pkg/server/config"
	"github.com/readsync/readsync/pkg/server/database"
	"github.com/readsync/readsync/pkg/server/metrics"
	"github.com/readsync/readsync/pkg/server/notify"
	"github.com/readsync/readsync/pkg/server/store"
	"github.com/readsync/readsync/pkg/server/token"
	"gorm.io/gorm"
)

// loadConfig resolves the config from flags, the config file, the
// environment and defaults, in that order
func loadConfig(p config.Params) (config.Config, error) {
	if envFileFlag != "" {
		if err := config.LoadEnv(envFileFlag); err != nil {
			return config.Config{}, err
		}
	}

	if configPathFlag != "" {
		fileParams, err := config.ReadFile(configPathFlag)
		if err != nil {
			return config.Config{}, err
		}

		p = p.Merge(fileParams)
	}

	return config.New(p)
}

func initDB(cfg config.Config) (*gorm.DB, error) {
	db, err := database.Open(database.Options{
		Path:     cfg.DBPath,
		URL:      cfg.DatabaseURL,
		LogLevel: cfg.LogLevel,
	})
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	if err := database.Prepare(db); err != nil {
		return nil, errors.Wrap(err, "preparing database")
	}

	return db, nil
}

// newBus returns the notification bus selected by the config. Notices
// reach the sink whichever driver is used.
func newBus(ctx context.Context, cfg config.Config, sink notify.Sink) (notify.Bus, error) {
	switch cfg.NotifyDriver {
	case config.NotifyDriverNATS:
		return notify.NewNATS(notify.NATSConfig{
			URL:     cfg.NATSURL,
			Subject: cfg.NotifyChannel,
			Name:    "readsync-server-" + buildinfo.Version,
		}, sink)
	case config.NotifyDriverRedis:
		return notify.NewRedis(ctx, notify.RedisConfig{
			Addr:    cfg.RedisAddr,
			Channel: cfg.NotifyChannel,
		}, sink)
	case config.NotifyDriverLocal:
		return notify.NewLocal(sink), nil
	}

	return nil, errors.Wrapf(config.ErrNotifyDriverInvalid, "'%s'", cfg.NotifyDriver)
}

func initApp(cfg config.Config, db *gorm.DB, bus notify.Bus, m *metrics.Metrics) (app.App, error) {
	c := clock.New()

	verifier, err := token.NewVerifier(cfg.JWTSecret, c)
	if err != nil {
		return app.App{}, errors.Wrap(err, "initializing token verifier")
	}

	s := store.New(db)

	a := app.App{
		Events:   s,
		State:    s,
		Bus:      bus,
		Clock:    c,
		Verifier: verifier,
		Metrics:  m,
		AppEnv:   cfg.AppEnv,
		Port:     cfg.Port,
	}
	if err := a.Validate(); err != nil {
		return app.App{}, errors.Wrap(err, "validating app")
	}

	return a, nil
}
