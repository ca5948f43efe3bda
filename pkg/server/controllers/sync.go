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
	"net/url"
	"sort"

	"github.com/gorilla/schema"
	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/server/app"
	"github.com/readsync/readsync/pkg/server/context"
	mw "github.com/readsync/readsync/pkg/server/middleware"
	"github.com/readsync/readsync/pkg/server/presenters"
	"github.com/readsync/readsync/pkg/server/socket"
)

const apiVersion = "v0.1"

// NewSync creates a new Sync controller
func NewSync(app *app.App, gateway *socket.Gateway) *Sync {
	return &Sync{
		app:     app,
		gateway: gateway,
	}
}

// Sync is a synchronization controller
type Sync struct {
	app     *app.App
	gateway *socket.Gateway
}

type uploadEventsPayload struct {
	DeviceID string           `json:"deviceId"`
	Cursor   string           `json:"cursor"`
	Events   []app.EventInput `json:"events"`
}

// UploadEventsResp is the response of an event upload
type UploadEventsResp struct {
	APIVersion   string    `json:"apiVersion"`
	Acks         []app.Ack `json:"acks"`
	ServerCursor string    `json:"serverCursor"`
}

// UploadEvents handles POST /sync/events
func (s *Sync) UploadEvents(w http.ResponseWriter, r *http.Request) {
	var payload uploadEventsPayload
	if err := parseRequestData(w, r, &payload); err != nil {
		handleJSONError(w, err, "parsing payload")
		return
	}

	res, err := s.app.AppendEvents(r.Context(), app.AppendParams{
		AccountID: context.Account(r.Context()),
		DeviceID:  payload.DeviceID,
		Cursor:    payload.Cursor,
		Events:    payload.Events,
	})
	if err != nil {
		handleJSONError(w, err, "appending events")
		return
	}

	acks := res.Acks
	if acks == nil {
		acks = []app.Ack{}
	}

	mw.RespondJSON(w, http.StatusOK, UploadEventsResp{
		APIVersion:   apiVersion,
		Acks:         acks,
		ServerCursor: res.ServerCursor,
	})
}

type pullQuery struct {
	Cursor string `schema:"cursor"`
	Limit  int    `schema:"limit"`
}

var queryDecoder = newQueryDecoder()

func newQueryDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)

	return d
}

func parsePullQuery(q url.Values) (pullQuery, error) {
	var ret pullQuery

	err := queryDecoder.Decode(&ret, q)
	if err == nil {
		return ret, nil
	}

	me, ok := err.(schema.MultiError)
	if !ok || len(me) == 0 {
		return pullQuery{}, errors.Wrap(err, "decoding query")
	}

	keys := make([]string, 0, len(me))
	for key := range me {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	key := keys[0]
	return pullQuery{}, &queryParamError{
		key:     key,
		value:   q.Get(key),
		message: "invalid value",
	}
}

// PullEventsResp is the response of an event pull
type PullEventsResp struct {
	APIVersion   string             `json:"apiVersion"`
	Events       []presenters.Event `json:"events"`
	ServerCursor string             `json:"serverCursor"`
}

// PullEvents handles GET /sync/events
func (s *Sync) PullEvents(w http.ResponseWriter, r *http.Request) {
	q, err := parsePullQuery(r.URL.Query())
	if err != nil {
		handleJSONError(w, err, "parsing query")
		return
	}

	res, err := s.app.PullEvents(r.Context(), app.PullParams{
		AccountID: context.Account(r.Context()),
		Cursor:    q.Cursor,
		Limit:     q.Limit,
	})
	if err != nil {
		handleJSONError(w, err, "pulling events")
		return
	}

	mw.RespondJSON(w, http.StatusOK, PullEventsResp{
		APIVersion:   apiVersion,
		Events:       presenters.PresentEvents(res.Events),
		ServerCursor: res.ServerCursor,
	})
}

type uploadStatePayload struct {
	DeviceID         string              `json:"deviceId"`
	LastSeenCursor   string              `json:"lastSeenCursor"`
	ReadingPositions []app.PositionInput `json:"readingPositions"`
	SchemaVersion    int                 `json:"schemaVersion"`
}

// StatusResp is a bare acknowledgement
type StatusResp struct {
	APIVersion string `json:"apiVersion"`
	Status     string `json:"status"`
}

// UploadState handles POST /sync/state
func (s *Sync) UploadState(w http.ResponseWriter, r *http.Request) {
	var payload uploadStatePayload
	if err := parseRequestData(w, r, &payload); err != nil {
		handleJSONError(w, err, "parsing payload")
		return
	}

	err := s.app.ReconcileState(r.Context(), app.ReconcileParams{
		AccountID:      context.Account(r.Context()),
		DeviceID:       payload.DeviceID,
		LastSeenCursor: payload.LastSeenCursor,
		Positions:      payload.ReadingPositions,
		SchemaVersion:  payload.SchemaVersion,
	})
	if err != nil {
		handleJSONError(w, err, "reconciling state")
		return
	}

	mw.RespondJSON(w, http.StatusOK, StatusResp{
		APIVersion: apiVersion,
		Status:     "ok",
	})
}

// Socket handles GET /sync/ws
func (s *Sync) Socket(w http.ResponseWriter, r *http.Request) {
	s.gateway.ServeHTTP(w, r)
}
