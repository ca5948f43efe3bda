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
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/server/app"
	mw "github.com/readsync/readsync/pkg/server/middleware"
)

// maxBodySize caps a JSON request body. A full batch of events with
// reader-sized payloads fits well below it.
const maxBodySize = 4 << 20

var (
	errInvalidBody  = errors.New("invalid_body")
	errBodyTooLarge = errors.New("payload_too_large")
)

// queryParamError is a query parameter that could not be decoded
type queryParamError struct {
	key     string
	value   string
	message string
}

func (e *queryParamError) Error() string {
	return fmt.Sprintf("invalid query param %s=%s: %s", e.key, e.value, e.message)
}

// parseRequestData decodes the JSON request body into v. Bodies larger than
// maxBodySize are rejected.
func parseRequestData(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if r.Body == nil {
		return errInvalidBody
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.Wrapf(errBodyTooLarge, "limit %d bytes", tooLarge.Limit)
		}

		return errors.Wrap(errInvalidBody, err.Error())
	}

	return nil
}

// getStatusCode maps an error to the response status
func getStatusCode(err error) int {
	cause := errors.Cause(err)

	if _, ok := cause.(*queryParamError); ok {
		return http.StatusBadRequest
	}

	switch cause {
	case app.ErrInvalidCursor, errInvalidBody:
		return http.StatusBadRequest
	case errBodyTooLarge:
		return http.StatusRequestEntityTooLarge
	case app.ErrInvalidInput, app.ErrTooManyEvents, app.ErrTooManyPositions, app.ErrUnsupportedSchemaVersion:
		return http.StatusUnprocessableEntity
	}

	return http.StatusInternalServerError
}

// handleJSONError responds with the status and reason for the error
func handleJSONError(w http.ResponseWriter, err error, msg string) {
	statusCode := getStatusCode(err)

	if _, ok := errors.Cause(err).(*queryParamError); ok {
		mw.RespondError(w, statusCode, "invalid_query")
		return
	}

	mw.DoError(w, msg, err, statusCode)
}
