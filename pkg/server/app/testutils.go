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

package app

import (
	"github.com/readsync/readsync/pkg/clock"
	"github.com/readsync/readsync/pkg/server/metrics"
	"github.com/readsync/readsync/pkg/server/notify"
	"github.com/readsync/readsync/pkg/server/testutils"
	"github.com/readsync/readsync/pkg/server/token"
)

// NewTest returns an app for a testing environment. Stores must be set by
// the caller.
func NewTest() App {
	verifier, err := token.NewVerifier(testutils.TokenSecret, clock.New())
	if err != nil {
		panic(err)
	}

	return App{
		Bus:      notify.NewLocal(notify.SinkFunc(func(notify.Notice) int { return 0 })),
		Clock:    clock.NewMock(),
		Verifier: verifier,
		Metrics:  metrics.New(),
		AppEnv:   "TEST",
		Port:     "3000",
	}
}
