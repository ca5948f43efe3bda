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

package database

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/server/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	// DialectSQLite is the gorm dialector name for SQLite
	DialectSQLite = "sqlite"
	// DialectPostgres is the gorm dialector name for PostgreSQL
	DialectPostgres = "postgres"
)

// Options configures a database connection
type Options struct {
	// Path is the SQLite database file. It is ignored when URL is set.
	Path string
	// URL is a PostgreSQL connection string
	URL string
	// LogLevel is the application log level; the gorm logger follows it
	LogLevel string
}

// getDBLogLevel maps the application log level to a gorm log level
func getDBLogLevel(level string) logger.LogLevel {
	switch level {
	case log.LevelDebug:
		return logger.Info
	case log.LevelWarn:
		return logger.Warn
	case log.LevelError:
		return logger.Error
	default:
		return logger.Silent
	}
}

// sqliteDSN appends the pragmas the server relies on to a SQLite path
func sqliteDSN(path string) string {
	pragmas := "_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
	if strings.Contains(path, "?") {
		return path + "&" + pragmas
	}

	return path + "?" + pragmas
}

// Open initializes the database connection. PostgreSQL is used when a URL is
// given, SQLite otherwise.
func Open(opts Options) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(getDBLogLevel(opts.LogLevel)),
	}

	if opts.URL != "" {
		db, err := gorm.Open(postgres.Open(opts.URL), cfg)
		if err != nil {
			return nil, errors.Wrap(err, "opening postgres connection")
		}

		return db, nil
	}

	if opts.Path == "" {
		return nil, errors.New("database path is empty")
	}

	dir := filepath.Dir(opts.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating database directory at %s", dir)
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(opts.Path)), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite connection")
	}

	return db, nil
}

// InitSchema migrates database schema to reflect the latest model definition
func InitSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&Event{},
		&ReadingPosition{},
		&DeviceCursor{},
	); err != nil {
		return errors.Wrap(err, "auto-migrating models")
	}

	return nil
}

// Prepare brings the schema up to date: models first, then SQL migrations
func Prepare(db *gorm.DB) error {
	if err := InitSchema(db); err != nil {
		return err
	}
	if err := Migrate(db); err != nil {
		return errors.Wrap(err, "running migrations")
	}

	return nil
}
