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
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/server/buildinfo"
	"github.com/readsync/readsync/pkg/server/config"
	"github.com/readsync/readsync/pkg/server/controllers"
	"github.com/readsync/readsync/pkg/server/job"
	"github.com/readsync/readsync/pkg/server/log"
	"github.com/readsync/readsync/pkg/server/metrics"
	"github.com/readsync/readsync/pkg/server/middleware"
	"github.com/readsync/readsync/pkg/server/socket"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newStartCmd() *cobra.Command {
	var p config.Params

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(p)
			if err != nil {
				return errors.Wrap(err, "loading config")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServer(ctx, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&p.AppEnv, "appEnv", "", "App environment (env: APP_ENV, default: PRODUCTION)")
	f.StringVar(&p.Port, "port", "", "Server port (env: PORT, default: 3001)")
	f.StringVar(&p.DBPath, "dbPath", "", "Path to SQLite database file (env: DBPath, default: $XDG_DATA_HOME/readsync/server.db)")
	f.StringVar(&p.DatabaseURL, "databaseUrl", "", "PostgreSQL connection string; takes precedence over dbPath (env: DATABASE_URL)")
	f.StringVar(&p.LogLevel, "logLevel", "", "Log level: debug, info, warn, or error (env: LOG_LEVEL, default: info)")
	f.StringVar(&p.JWTSecret, "jwtSecret", "", "Secret used to verify bearer tokens (env: JWT_SECRET)")
	f.StringVar(&p.NotifyDriver, "notifyDriver", "", "Notification driver: local, nats, or redis (env: NOTIFY_DRIVER, default: local)")
	f.StringVar(&p.NATSURL, "natsUrl", "", "NATS server url (env: NATS_URL)")
	f.StringVar(&p.RedisAddr, "redisAddr", "", "Redis address (env: REDIS_ADDR)")
	f.StringVar(&p.NotifyChannel, "notifyChannel", "", "NATS subject or Redis channel for notices (env: NOTIFY_CHANNEL, default: readsync.events)")

	return cmd
}

func runServer(ctx context.Context, cfg config.Config) error {
	log.SetLevel(cfg.LogLevel)

	db, err := initDB(cfg)
	if err != nil {
		return err
	}
	defer func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}()

	m := metrics.New()
	registry := socket.NewRegistry(m)

	bus, err := newBus(ctx, cfg, registry)
	if err != nil {
		return errors.Wrap(err, "initializing notification bus")
	}
	defer bus.Close()

	a, err := initApp(cfg, db, bus, m)
	if err != nil {
		return err
	}

	ctl := controllers.New(&a, socket.NewGateway(&a, registry))
	rc := controllers.RouteConfig{
		APIRoutes:   controllers.NewAPIRoutes(&a, ctl),
		Controllers: ctl,
	}

	r, err := controllers.NewRouter(&a, rc)
	if err != nil {
		return errors.Wrap(err, "initializing router")
	}

	runner, err := job.NewRunner(db, registry)
	if err != nil {
		return errors.Wrap(err, "initializing job runner")
	}
	runner.Limiter = middleware.DefaultLimiter()
	if err := runner.Do(); err != nil {
		return errors.Wrap(err, "starting jobs")
	}
	defer runner.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.WithFields(log.Fields{
		"version":      buildinfo.Version,
		"port":         cfg.Port,
		"notifyDriver": cfg.NotifyDriver,
	}).Info("Readsync server starting")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "serving")
	case <-ctx.Done():
	}

	log.Info("Readsync server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Shutdown does not track hijacked connections, so sockets are closed here
	shutdownErr := srv.Shutdown(shutdownCtx)

	closed, err := registry.CloseAll(shutdownCtx)
	log.WithFields(log.Fields{
		"connections": closed,
	}).Info("sync.ws.closed")
	if err != nil {
		log.ErrorWrap(err, "closing sockets")
	}

	if shutdownErr != nil {
		return errors.Wrap(shutdownErr, "shutting down")
	}

	return nil
}
