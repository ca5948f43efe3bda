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

package main

import (
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/readsync/readsync/pkg/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestServerStart(t *testing.T) {
	port := "13456"
	dbPath := startServer(t, port)

	// Verify database file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatalf("database file was not created at %s", dbPath)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// Verify migrations ran
	var count int64
	if err := db.Raw("SELECT COUNT(*) FROM migrations").Scan(&count).Error; err != nil {
		t.Fatalf("migrations table not found: %v", err)
	}
	if count == 0 {
		t.Fatal("no migrations were run")
	}

	for _, table := range []string{"events", "reading_positions", "device_cursors"} {
		assert.Equal(t, db.Migrator().HasTable(table), true, table+" should exist")
	}
}

func TestServerStart_missingSecret(t *testing.T) {
	cmd := exec.Command(testServerBinary, "start", "--port", "13457", "--envFile", "")
	cmd.Env = append(os.Environ(), "JWT_SECRET=", "DBPath="+t.TempDir()+"/server.db")

	output, err := cmd.CombinedOutput()
	if err == nil {
		t.Fatal("expected the server to refuse to start")
	}

	if !strings.Contains(string(output), "JWT_SECRET is empty") {
		t.Errorf("output should explain the failure, got %q", output)
	}
}

func TestServerVersion(t *testing.T) {
	output, err := exec.Command(testServerBinary, "version").CombinedOutput()
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	if !strings.HasPrefix(string(output), "readsync-server-") {
		t.Errorf("unexpected version output %q", output)
	}
}

func TestServerUnknownCommand(t *testing.T) {
	output, err := exec.Command(testServerBinary, "frobnicate").CombinedOutput()
	if err == nil {
		t.Fatal("expected an error for an unknown command")
	}

	if !strings.Contains(string(output), "unknown command") {
		t.Errorf("unexpected output %q", output)
	}
}
