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
	"bytes"
	"io/fs"
	"regexp"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/server/database/migrations"
	"github.com/readsync/readsync/pkg/server/log"
	migrate "github.com/rubenv/sql-migrate"
	"gorm.io/gorm"
)

// MigrationTableName is the name of the table that keeps track of migrations
const MigrationTableName = "migrations"

// migrationFilename matches NNN-description.sql
var migrationFilename = regexp.MustCompile(`^([0-9]{3})-([a-z0-9][a-z0-9-]*)\.sql$`)

// loadMigrations parses every file in fsys into a sql-migrate source.
// sql-migrate orders them by their numeric prefix.
func loadMigrations(fsys fs.FS) (*migrate.MemoryMigrationSource, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, errors.Wrap(err, "reading migration directory")
	}

	src := &migrate.MemoryMigrationSource{}
	versions := map[string]string{}

	for _, e := range entries {
		name := e.Name()

		m := migrationFilename.FindStringSubmatch(name)
		if m == nil {
			return nil, errors.Errorf("invalid migration filename %s: must be NNN-description.sql", name)
		}
		if prev, ok := versions[m[1]]; ok {
			return nil, errors.Errorf("duplicate migration version %s: %s and %s", m[1], prev, name)
		}
		versions[m[1]] = name

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, errors.Wrapf(err, "reading migration file %s", name)
		}
		if len(bytes.TrimSpace(body)) == 0 {
			return nil, errors.Errorf("migration file %s is empty", name)
		}

		parsed, err := migrate.ParseMigration(name, bytes.NewReader(body))
		if err != nil {
			return nil, errors.Wrapf(err, "parsing migration file %s", name)
		}

		src.Migrations = append(src.Migrations, parsed)
	}

	return src, nil
}

// sqlMigrateDialect returns the sql-migrate dialect for the connection
func sqlMigrateDialect(db *gorm.DB) (string, error) {
	switch name := db.Dialector.Name(); name {
	case DialectSQLite:
		return "sqlite3", nil
	case DialectPostgres:
		return "postgres", nil
	default:
		return "", errors.Errorf("unsupported dialect %s", name)
	}
}

// Migrate applies the embedded migrations that have not run yet
func Migrate(db *gorm.DB) error {
	return runMigrations(db, migrations.Files)
}

func runMigrations(db *gorm.DB, fsys fs.FS) error {
	src, err := loadMigrations(fsys)
	if err != nil {
		return err
	}

	dialect, err := sqlMigrateDialect(db)
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "getting sql.DB")
	}

	set := migrate.MigrationSet{TableName: MigrationTableName}

	n, err := set.Exec(sqlDB, dialect, src, migrate.Up)
	if err != nil {
		return errors.Wrap(err, "applying migrations")
	}

	log.WithFields(log.Fields{
		"applied": n,
		"known":   len(src.Migrations),
	}).Info("db.migrate")

	return nil
}
