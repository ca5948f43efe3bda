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

package socket

import (
	"encoding/json"

	"github.com/readsync/readsync/pkg/server/presenters"
)

const (
	typeHello           = "hello"
	typePull            = "pull"
	typeEvents          = "events"
	typeEventsAvailable = "events_available"
	typeError           = "error"
)

const (
	reasonInvalidJSON     = "invalid_json"
	reasonInvalidMessage  = "invalid_message"
	reasonInvalidDeviceID = "invalid_device_id"
	reasonInvalidCursor   = "invalid_cursor"
	reasonUnknownType     = "unknown_type"
	reasonInternal        = "internal_error"
)

type errorMessage struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type eventsMessage struct {
	Type         string             `json:"type"`
	Events       []presenters.Event `json:"events"`
	ServerCursor string             `json:"serverCursor"`
}

type eventsAvailableMessage struct {
	Type         string `json:"type"`
	ServerCursor string `json:"serverCursor"`
}

// inbound is a parsed client frame. Fields that are absent or not strings
// are left empty.
type inbound struct {
	Type           string
	DeviceID       string
	LastSeenCursor string
	Cursor         string
}

// parseInbound decodes a client frame. The returned reason is non-empty when
// the frame must be answered with an error.
func parseInbound(data []byte) (inbound, string) {
	if !json.Valid(data) {
		return inbound{}, reasonInvalidJSON
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return inbound{}, reasonInvalidMessage
	}

	rawType, ok := fields["type"]
	if !ok {
		return inbound{}, reasonInvalidMessage
	}

	return inbound{
		Type:           stringValue(rawType),
		DeviceID:       stringValue(fields["deviceId"]),
		LastSeenCursor: stringValue(fields["lastSeenCursor"]),
		Cursor:         stringValue(fields["cursor"]),
	}, ""
}

func stringValue(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}

	return s
}
