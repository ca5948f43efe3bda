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

package middleware

import (
	"net/http"

	"github.com/readsync/readsync/pkg/server/app"
)

// Middleware wraps a route handler
type Middleware func(h http.HandlerFunc, app *app.App, pattern string, rateLimit bool) http.Handler

// APIMw is the middleware chain of API routes
func APIMw(next http.HandlerFunc, app *app.App, pattern string, rateLimit bool) http.Handler {
	limit := rateLimit && app.AppEnv != "TEST"

	return Logging(app.Metrics, pattern, ApplyLimit(next, limit))
}

// Global is the middleware wrapping the whole router
func Global(h http.Handler) http.Handler {
	return RequestID(h)
}
