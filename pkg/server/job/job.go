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

// Package job runs periodic maintenance in the background
package job

import (
	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/server/database"
	"github.com/readsync/readsync/pkg/server/log"
	"github.com/robfig/cron"
	"gorm.io/gorm"
)

const (
	checkpointSpec = "@every 5m"
	vacuumSpec     = "@daily"
	statsSpec      = "@every 1m"
	evictSpec      = "@every 1m"
)

// StatsSource reports the number of live socket accounts and connections
type StatsSource interface {
	Stats() (accounts, conns int)
}

// IdleEvicter forgets per-client state that has not been used for a while
type IdleEvicter interface {
	EvictIdle() int
}

// Runner schedules and runs the jobs
type Runner struct {
	DB    *gorm.DB
	Stats StatsSource
	// Limiter is optional. When set, its idle visitors are evicted every minute.
	Limiter IdleEvicter

	cron *cron.Cron
}

// NewRunner returns a new runner
func NewRunner(db *gorm.DB, stats StatsSource) (Runner, error) {
	if db == nil {
		return Runner{}, errors.New("DB is not provided")
	}
	if stats == nil {
		return Runner{}, errors.New("stats source is not provided")
	}

	return Runner{
		DB:    db,
		Stats: stats,
		cron:  cron.New(),
	}, nil
}

func (r *Runner) isSQLite() bool {
	return r.DB.Dialector.Name() == database.DialectSQLite
}

func (r *Runner) schedule(spec string, name string, fn func() error) error {
	err := r.cron.AddFunc(spec, func() {
		if err := fn(); err != nil {
			log.WithFields(log.Fields{
				"job": name,
			}).ErrorWrap(err, "running job")
		}
	})
	if err != nil {
		return errors.Wrapf(err, "scheduling %s", name)
	}

	return nil
}

// Do schedules every job and starts the scheduler
func (r *Runner) Do() error {
	if r.isSQLite() {
		if err := r.schedule(checkpointSpec, "wal_checkpoint", r.CheckpointWAL); err != nil {
			return err
		}
	}
	if err := r.schedule(vacuumSpec, "vacuum", r.Vacuum); err != nil {
		return err
	}
	if err := r.schedule(statsSpec, "socket_stats", r.LogSocketStats); err != nil {
		return err
	}
	if r.Limiter != nil {
		if err := r.schedule(evictSpec, "evict_visitors", r.EvictVisitors); err != nil {
			return err
		}
	}

	r.cron.Start()

	return nil
}

// Stop stops the scheduler. Running jobs are not interrupted.
func (r *Runner) Stop() {
	r.cron.Stop()
}

// CheckpointWAL folds the SQLite write-ahead log back into the database file
func (r *Runner) CheckpointWAL() error {
	if !r.isSQLite() {
		return nil
	}

	if err := r.DB.Exec("PRAGMA wal_checkpoint(TRUNCATE)").Error; err != nil {
		return errors.Wrap(err, "checkpointing wal")
	}

	log.Debug("wal checkpointed")
	return nil
}

// Vacuum reclaims space and refreshes planner statistics
func (r *Runner) Vacuum() error {
	stmt := "VACUUM ANALYZE"
	if r.isSQLite() {
		stmt = "VACUUM"
	}

	if err := r.DB.Exec(stmt).Error; err != nil {
		return errors.Wrap(err, "vacuuming")
	}

	log.Info("database vacuumed")
	return nil
}

// LogSocketStats logs the number of live sockets
func (r *Runner) LogSocketStats() error {
	accounts, conns := r.Stats.Stats()

	log.WithFields(log.Fields{
		"accounts":    accounts,
		"connections": conns,
	}).Info("sync.ws.stats")

	return nil
}

// EvictVisitors drops idle rate limiter visitors
func (r *Runner) EvictVisitors() error {
	if r.Limiter == nil {
		return nil
	}

	n := r.Limiter.EvictIdle()
	log.WithFields(log.Fields{
		"evicted": n,
	}).Debug("rate limiter visitors evicted")

	return nil
}
