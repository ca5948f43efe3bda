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
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/server/cursor"
	svrContext "github.com/readsync/readsync/pkg/server/context"
	"github.com/readsync/readsync/pkg/server/database"
	"github.com/readsync/readsync/pkg/server/log"
	"github.com/readsync/readsync/pkg/server/notify"
	"gorm.io/datatypes"
)

// EventInput is an event as submitted by a device
type EventInput struct {
	ID            string          `json:"id"`
	EntityType    string          `json:"entityType"`
	EntityID      string          `json:"entityId"`
	Op            string          `json:"op"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     string          `json:"createdAt"`
	SchemaVersion *int            `json:"schemaVersion"`
}

// Ack reports the outcome of one submitted event
type Ack struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// AppendParams is the input of AppendEvents
type AppendParams struct {
	AccountID string
	DeviceID  string
	// Cursor is the last cursor the device has seen. It is only recorded.
	Cursor string
	Events []EventInput
}

// AppendResult is the output of AppendEvents
type AppendResult struct {
	Acks         []Ack
	ServerCursor string
}

// PullParams is the input of PullEvents
type PullParams struct {
	AccountID string
	Cursor    string
	Limit     int
}

// PullResult is the output of PullEvents
type PullResult struct {
	Events       []database.Event
	ServerCursor string
}

// parseTimestamp parses an RFC 3339 timestamp and normalizes it to UTC
// millisecond precision
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}

	return t.UTC().Truncate(time.Millisecond), nil
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}

	return json.Valid(trimmed)
}

// validateEvent checks the shape of an event. Schema version is checked per
// event later and never fails the call.
func validateEvent(e EventInput) (time.Time, error) {
	if e.ID == "" {
		return time.Time{}, errors.Wrap(ErrInvalidInput, "event id is empty")
	}
	if e.EntityType == "" {
		return time.Time{}, errors.Wrapf(ErrInvalidInput, "event %s has no entityType", e.ID)
	}
	if e.EntityID == "" {
		return time.Time{}, errors.Wrapf(ErrInvalidInput, "event %s has no entityId", e.ID)
	}
	if !database.ValidOp(e.Op) {
		return time.Time{}, errors.Wrapf(ErrInvalidInput, "event %s has invalid op %q", e.ID, e.Op)
	}
	if !isJSONObject(e.Payload) {
		return time.Time{}, errors.Wrapf(ErrInvalidInput, "event %s payload is not an object", e.ID)
	}
	if e.SchemaVersion == nil {
		return time.Time{}, errors.Wrapf(ErrInvalidInput, "event %s has no schemaVersion", e.ID)
	}

	createdAt, err := parseTimestamp(e.CreatedAt)
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrInvalidInput, "event %s has invalid createdAt", e.ID)
	}

	return createdAt, nil
}

// latestCursor returns the cursor of the account's last event, or an empty
// string when the account has none
func (a *App) latestCursor(ctx context.Context, accountID string) (string, error) {
	latest, err := a.Events.LatestEvent(ctx, accountID)
	if err != nil {
		return "", errors.Wrap(err, "finding latest event")
	}
	if latest == nil {
		return "", nil
	}

	return cursor.Encode(latest.CreatedAt, latest.ID), nil
}

// AppendEvents validates, deduplicates and stores a batch of events. Each
// event gets an ack in submission order. Storage errors fail the whole call.
func (a *App) AppendEvents(ctx context.Context, p AppendParams) (AppendResult, error) {
	requestID := svrContext.RequestID(ctx)
	deviceID := strings.TrimSpace(p.DeviceID)
	clientCursor := strings.TrimSpace(p.Cursor)

	log.WithFields(log.Fields{
		"accountId": p.AccountID,
		"deviceId":  deviceID,
		"cursor":    clientCursor,
		"count":     len(p.Events),
		"requestId": requestID,
	}).Info("sync.upload")

	if len(p.Events) > MaxEventsPerBatch {
		return AppendResult{}, ErrTooManyEvents
	}
	if p.AccountID == "" {
		return AppendResult{}, errors.Wrap(ErrInvalidInput, "account id is empty")
	}
	if deviceID == "" {
		return AppendResult{}, errors.Wrap(ErrInvalidInput, "device id is empty")
	}

	createdAts := make([]time.Time, len(p.Events))
	ids := make([]string, len(p.Events))
	for i, e := range p.Events {
		createdAt, err := validateEvent(e)
		if err != nil {
			return AppendResult{}, err
		}

		createdAts[i] = createdAt
		ids[i] = e.ID
	}

	now := a.Clock.Now()

	if clientCursor != "" {
		if err := a.State.UpsertDeviceCursor(ctx, p.AccountID, deviceID, clientCursor, now); err != nil {
			return AppendResult{}, errors.Wrap(err, "recording device cursor")
		}
	}

	existing, err := a.Events.ExistingEventIDs(ctx, ids)
	if err != nil {
		return AppendResult{}, errors.Wrap(err, "finding existing event ids")
	}

	acks := make([]Ack, 0, len(p.Events))
	accepted := []database.Event{}
	seen := map[string]bool{}
	var duplicateCount, rejectedCount int

	for i, e := range p.Events {
		if *e.SchemaVersion != SupportedSchemaVersion {
			acks = append(acks, Ack{ID: e.ID, Status: AckRejected, Reason: string(ErrUnsupportedSchemaVersion)})
			rejectedCount++
			continue
		}
		if existing[e.ID] || seen[e.ID] {
			acks = append(acks, Ack{ID: e.ID, Status: AckDuplicate})
			duplicateCount++
			continue
		}

		seen[e.ID] = true
		accepted = append(accepted, database.Event{
			ID:            e.ID,
			AccountID:     p.AccountID,
			DeviceID:      deviceID,
			EntityType:    e.EntityType,
			EntityID:      e.EntityID,
			Op:            e.Op,
			Payload:       datatypes.JSON(bytes.TrimSpace(e.Payload)),
			CreatedAt:     createdAts[i],
			ReceivedAt:    now,
			SchemaVersion: *e.SchemaVersion,
		})
		acks = append(acks, Ack{ID: e.ID, Status: AckAccepted})
	}

	if err := a.Events.InsertEvents(ctx, accepted); err != nil {
		return AppendResult{}, errors.Wrap(err, "inserting accepted events")
	}

	if len(acks) > 0 {
		a.Metrics.EventsAccepted.Add(float64(len(accepted)))
		a.Metrics.EventsDuplicate.Add(float64(duplicateCount))
		a.Metrics.EventsRejected.Add(float64(rejectedCount))

		log.WithFields(log.Fields{
			"accountId": p.AccountID,
			"deviceId":  deviceID,
			"accepted":  len(accepted),
			"duplicate": duplicateCount,
			"rejected":  rejectedCount,
			"requestId": requestID,
		}).Info("sync.ack")
	}

	serverCursor, err := a.latestCursor(ctx, p.AccountID)
	if err != nil {
		return AppendResult{}, err
	}

	if len(accepted) > 0 && serverCursor != "" {
		n := notify.Notice{AccountID: p.AccountID, ServerCursor: serverCursor}
		if err := a.Bus.Publish(ctx, n); err != nil {
			log.WithFields(log.Fields{
				"accountId": p.AccountID,
				"requestId": requestID,
			}).ErrorWrap(err, "publishing events_available")
		}
	}

	return AppendResult{Acks: acks, ServerCursor: serverCursor}, nil
}

// clampLimit resolves the page size of a pull
func clampLimit(limit int) int {
	if limit == 0 {
		return DefaultPageSize
	}
	if limit < 1 {
		return 1
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}

	return limit
}

// PullEvents returns the account's events strictly after the cursor. On an
// empty page the given cursor is echoed back.
func (a *App) PullEvents(ctx context.Context, p PullParams) (PullResult, error) {
	limit := clampLimit(p.Limit)

	key, err := cursor.Parse(p.Cursor)
	if err != nil {
		return PullResult{}, ErrInvalidCursor
	}

	events, err := a.Events.ListEvents(ctx, p.AccountID, key, limit)
	if err != nil {
		return PullResult{}, errors.Wrap(err, "listing events")
	}

	serverCursor := p.Cursor
	if len(events) > 0 {
		last := events[len(events)-1]
		serverCursor = cursor.Encode(last.CreatedAt, last.ID)
	}

	a.Metrics.EventsPulled.Add(float64(len(events)))

	log.WithFields(log.Fields{
		"accountId": p.AccountID,
		"cursor":    p.Cursor,
		"limit":     limit,
		"returned":  len(events),
		"requestId": svrContext.RequestID(ctx),
	}).Info("sync.pull")

	return PullResult{Events: events, ServerCursor: serverCursor}, nil
}
