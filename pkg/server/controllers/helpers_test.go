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

package controllers

import (
	"strings"
	"testing"

	"github.com/readsync/readsync/pkg/server/app"
	"github.com/readsync/readsync/pkg/server/store"
	"github.com/readsync/readsync/pkg/server/testutils"
	"gorm.io/gorm"
)

// newTestApp returns an app backed by an in-memory database
func newTestApp(t *testing.T) (*app.App, *gorm.DB) {
	db := testutils.InitMemoryDB(t)
	s := store.New(db)

	a := app.NewTest()
	a.Events = s
	a.State = s

	return &a, db
}

type errorResp struct {
	Error string `json:"error"`
}

// oversizedBody closes the JSON object opened by prefix after a padding
// field that pushes the body past maxBodySize
func oversizedBody(prefix string) string {
	return prefix + `,"pad":"` + strings.Repeat("a", maxBodySize) + `"}`
}
