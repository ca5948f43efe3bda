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
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/server/app"
	mw "github.com/readsync/readsync/pkg/server/middleware"
)

// Route represents a single route
type Route struct {
	Method    string
	Pattern   string
	Handler   http.HandlerFunc
	RateLimit bool
}

// RouteConfig is the configuration for routes
type RouteConfig struct {
	Controllers *Controllers
	APIRoutes   []Route
}

// NewAPIRoutes returns a new api routes
func NewAPIRoutes(a *app.App, c *Controllers) []Route {
	return []Route{
		{"POST", "/sync/events", mw.Auth(a.Verifier, c.Sync.UploadEvents), true},
		{"GET", "/sync/events", mw.Auth(a.Verifier, c.Sync.PullEvents), true},
		{"POST", "/sync/state", mw.Auth(a.Verifier, c.Sync.UploadState), true},
		{"GET", "/sync/ws", mw.Auth(a.Verifier, c.Sync.Socket), true},

		{"GET", "/health", c.Health.Index, false},
	}
}

func registerRoutes(router *mux.Router, wrapper mw.Middleware, app *app.App, routes []Route) {
	for _, route := range routes {
		wrappedHandler := wrapper(route.Handler, app, route.Pattern, route.RateLimit)

		router.
			Handle(route.Pattern, wrappedHandler).
			Methods(route.Method)
	}
}

// NewRouter creates and returns a new router
func NewRouter(app *app.App, rc RouteConfig) (http.Handler, error) {
	if err := app.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating the app parameters")
	}

	router := mux.NewRouter().StrictSlash(true)
	registerRoutes(router, mw.APIMw, app, rc.APIRoutes)

	router.Handle("/metrics", app.Metrics.Handler()).Methods("GET")

	router.NotFoundHandler = http.HandlerFunc(mw.NotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(mw.MethodNotAllowed)

	return mw.Global(router), nil
}
