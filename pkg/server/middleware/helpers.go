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
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/server/log"
)

const reasonInternal = "internal_error"

type errorBody struct {
	Error string `json:"error"`
}

// RespondJSON writes v as a JSON response with the given status
func RespondJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.ErrorWrap(err, "encoding response")
	}
}

// RespondError writes a JSON error body carrying the reason
func RespondError(w http.ResponseWriter, statusCode int, reason string) {
	RespondJSON(w, statusCode, errorBody{Error: reason})
}

// DoError logs the error and responds with the status. Server errors never
// leak their message to the client.
func DoError(w http.ResponseWriter, msg string, err error, statusCode int) {
	reason := reasonInternal
	if statusCode < http.StatusInternalServerError && err != nil {
		reason = errors.Cause(err).Error()
	}

	if statusCode >= http.StatusInternalServerError {
		log.WithFields(log.Fields{
			"statusCode": statusCode,
		}).ErrorWrap(err, msg)
	}

	RespondError(w, statusCode, reason)
}

// NotFound responds with 404
func NotFound(w http.ResponseWriter, r *http.Request) {
	RespondError(w, http.StatusNotFound, "not_found")
}

// MethodNotAllowed responds with 405
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	RespondError(w, http.StatusMethodNotAllowed, "method_not_allowed")
}
