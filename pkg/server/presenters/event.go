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

package presenters

import (
	"encoding/json"

	"github.com/readsync/readsync/pkg/server/database"
)

// Event is a result of PresentEvent
type Event struct {
	ID            string          `json:"id"`
	EntityType    string          `json:"entityType"`
	EntityID      string          `json:"entityId"`
	Op            string          `json:"op"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     string          `json:"createdAt"`
	SchemaVersion int             `json:"schemaVersion"`
}

// PresentEvent presents an event
func PresentEvent(e database.Event) Event {
	payload := json.RawMessage(e.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	return Event{
		ID:            e.ID,
		EntityType:    e.EntityType,
		EntityID:      e.EntityID,
		Op:            e.Op,
		Payload:       payload,
		CreatedAt:     FormatTS(e.CreatedAt),
		SchemaVersion: e.SchemaVersion,
	}
}

// PresentEvents presents events
func PresentEvents(events []database.Event) []Event {
	ret := []Event{}

	for _, e := range events {
		ret = append(ret, PresentEvent(e))
	}

	return ret
}
