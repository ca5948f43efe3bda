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

// Package testutils provides utilities used in tests
package testutils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/server/cursor"
	"github.com/readsync/readsync/pkg/server/database"
	"github.com/readsync/readsync/pkg/server/helpers"
	"github.com/readsync/readsync/pkg/server/token"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TokenSecret is the secret used to sign tokens in tests
const TokenSecret = "readsync-test-secret"

// InitMemoryDB creates an in-memory SQLite database with the schema initialized
func InitMemoryDB(t *testing.T) *gorm.DB {
	// Use file-based in-memory database with unique UUID per test to avoid sharing
	uuid, err := helpers.GenUUID()
	if err != nil {
		t.Fatalf("failed to generate UUID for test database: %v", err)
	}
	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid)
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	// a shared-cache memory database locks per table across connections
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Prepare(db); err != nil {
		t.Fatalf("failed to prepare schema: %v", err)
	}

	return db
}

// MustTime parses an RFC 3339 timestamp and fails the test on error
func MustTime(t *testing.T, s string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t.Fatal(errors.Wrapf(err, "parsing time %s", s))
	}
	return ts.UTC()
}

// SetupEvent inserts an event for the account and returns it
func SetupEvent(t *testing.T, db *gorm.DB, accountID, id string, createdAt time.Time) database.Event {
	e := database.Event{
		ID:            id,
		AccountID:     accountID,
		DeviceID:      "d-setup",
		EntityType:    "note",
		EntityID:      "n-" + id,
		Op:            database.OpAdd,
		Payload:       datatypes.JSON(`{"body":"setup"}`),
		CreatedAt:     createdAt.UTC(),
		ReceivedAt:    createdAt.UTC(),
		SchemaVersion: 1,
	}

	MustExec(t, db.Create(&e), fmt.Sprintf("preparing event %s", id))

	return e
}

// CursorOf returns the cursor naming the given event
func CursorOf(e database.Event) string {
	return cursor.Encode(e.CreatedAt, e.ID)
}

// MustToken issues a token for the account signed with TokenSecret
func MustToken(t *testing.T, accountID string) string {
	tok, err := token.Issue(token.Options{Secret: TokenSecret, TTL: 24 * time.Hour}, accountID, time.Now())
	if err != nil {
		t.Fatal(errors.Wrap(err, "issuing token"))
	}
	return tok
}

// HTTPDo makes an HTTP request and returns a response
func HTTPDo(t *testing.T, req *http.Request) *http.Response {
	hc := http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	res, err := hc.Do(req)
	if err != nil {
		t.Fatal(errors.Wrap(err, "performing http request"))
	}

	return res
}

// SetReqAuthHeader sets a bearer token for the account on the request
func SetReqAuthHeader(t *testing.T, req *http.Request, accountID string) {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", MustToken(t, accountID)))
}

// HTTPAuthDo makes an HTTP request authenticated as the given account
func HTTPAuthDo(t *testing.T, req *http.Request, accountID string) *http.Response {
	SetReqAuthHeader(t, req, accountID)

	return HTTPDo(t, req)
}

// MakeReq makes an HTTP request and returns a response
func MakeReq(endpoint string, method, path, data string) *http.Request {
	u := fmt.Sprintf("%s%s", endpoint, path)

	req, err := http.NewRequest(method, u, strings.NewReader(data))
	if err != nil {
		panic(errors.Wrap(err, "constructing http request"))
	}

	if data != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return req
}

// MustExec fails the test if the given database query has error
func MustExec(t *testing.T, db *gorm.DB, message string) {
	if err := db.Error; err != nil {
		t.Fatalf("%s: %s", message, err.Error())
	}
}

// MustDecodeJSON decodes the response body into v and fails the test on error
func MustDecodeJSON(t *testing.T, res *http.Response, v interface{}) {
	defer res.Body.Close()

	if err := json.NewDecoder(res.Body).Decode(v); err != nil {
		t.Fatal(errors.Wrap(err, "decoding response body"))
	}
}
