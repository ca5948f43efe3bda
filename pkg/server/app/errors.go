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

// appError is a sentinel error whose message is the reason reported to clients
type appError string

func (e appError) Error() string {
	return string(e)
}

const (
	// ErrInvalidCursor is returned when a non-empty cursor cannot be decoded
	ErrInvalidCursor appError = "invalid_cursor"
	// ErrInvalidInput is returned when a call carries malformed fields
	ErrInvalidInput appError = "invalid_input"
	// ErrTooManyEvents is returned when a batch exceeds MaxEventsPerBatch
	ErrTooManyEvents appError = "too_many_events"
	// ErrTooManyPositions is returned when a batch exceeds MaxPositionsPerBatch
	ErrTooManyPositions appError = "too_many_positions"
	// ErrUnsupportedSchemaVersion is returned when a state upload has an unknown schema version
	ErrUnsupportedSchemaVersion appError = "unsupported_schema_version"
)

const (
	// SupportedSchemaVersion is the only schema version the server accepts
	SupportedSchemaVersion = 1
	// MaxEventsPerBatch is the most events one append call may carry
	MaxEventsPerBatch = 200
	// MaxPositionsPerBatch is the most reading positions one state upload may carry
	MaxPositionsPerBatch = 200
	// MaxPageSize is the largest page returned by a pull
	MaxPageSize = 200
	// DefaultPageSize is used when a pull does not ask for a size
	DefaultPageSize = 200
)

const (
	// AckAccepted means the event was stored by this call
	AckAccepted = "accepted"
	// AckDuplicate means an event with the same id already exists
	AckDuplicate = "duplicate"
	// AckRejected means the event was not stored; see the reason
	AckRejected = "rejected"
)
