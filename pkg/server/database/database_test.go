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
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/readsync/readsync/pkg/assert"
	"github.com/readsync/readsync/pkg/server/log"
	"gorm.io/gorm/logger"
)

func TestGetDBLogLevel(t *testing.T) {
	testCases := []struct {
		name     string
		level    string
		expected logger.LogLevel
	}{
		{
			name:     "debug level maps to Info",
			level:    log.LevelDebug,
			expected: logger.Info,
		},
		{
			name:     "info level maps to Silent",
			level:    log.LevelInfo,
			expected: logger.Silent,
		},
		{
			name:     "warn level maps to Warn",
			level:    log.LevelWarn,
			expected: logger.Warn,
		},
		{
			name:     "error level maps to Error",
			level:    log.LevelError,
			expected: logger.Error,
		},
		{
			name:     "unknown level maps to Silent",
			level:    "unknown",
			expected: logger.Silent,
		},
		{
			name:     "empty string maps to Silent",
			level:    "",
			expected: logger.Silent,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := getDBLogLevel(tc.level)
			assert.Equal(t, result, tc.expected, "log level mismatch")
		})
	}
}

func TestOpenSQLiteCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "server.db")

	db, err := Open(Options{Path: path, LogLevel: log.LevelError})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	assert.Equal(t, db.Dialector.Name(), DialectSQLite, "dialect mismatch")

	if err := Prepare(db); err != nil {
		t.Fatalf("preparing schema: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file not created: %v", err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Options{})
	if err == nil {
		t.Fatal("expected error for empty path, got nil")
	}
}

func TestSqliteDSN(t *testing.T) {
	assert.Equal(t, sqliteDSN("/tmp/a.db"), "/tmp/a.db?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", "plain path")
	assert.Equal(t, sqliteDSN("file:a.db?mode=rwc"), "file:a.db?mode=rwc&_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", "path with query")
}

func TestPrepareCreatesIndexes(t *testing.T) {
	db := openMemoryDB(t)

	if err := Prepare(db); err != nil {
		t.Fatalf("preparing schema: %v", err)
	}
	// a second run applies nothing new
	if err := Prepare(db); err != nil {
		t.Fatalf("preparing schema twice: %v", err)
	}

	for _, idx := range []string{"idx_events_account_order", "idx_device_cursors_updated_at"} {
		var count int64
		if err := db.Raw("SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ?", idx).Scan(&count).Error; err != nil {
			t.Fatalf("querying index %s: %v", idx, err)
		}
		assert.Equal(t, count, int64(1), fmt.Sprintf("index %s count mismatch", idx))
	}
}

func TestValidOp(t *testing.T) {
	testCases := []struct {
		op       string
		expected bool
	}{
		{OpAdd, true},
		{OpUpdate, true},
		{OpDelete, true},
		{"", false},
		{"ADD", false},
		{"upsert", false},
	}

	for _, tc := range testCases {
		assert.Equal(t, ValidOp(tc.op), tc.expected, fmt.Sprintf("op %q", tc.op))
	}
}
