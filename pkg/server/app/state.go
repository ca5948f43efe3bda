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
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/server/cursor"
	svrContext "github.com/readsync/readsync/pkg/server/context"
	"github.com/readsync/readsync/pkg/server/database"
	"github.com/readsync/readsync/pkg/server/log"
)

// PositionInput is a reading position as submitted by a device
type PositionInput struct {
	BookID      string  `json:"bookId"`
	ChapterHref *string `json:"chapterHref"`
	Anchor      *string `json:"anchor"`
	Offset      *int    `json:"offset"`
	UpdatedAt   string  `json:"updatedAt"`
}

// ReconcileParams is the input of ReconcileState
type ReconcileParams struct {
	AccountID      string
	DeviceID       string
	LastSeenCursor string
	Positions      []PositionInput
	SchemaVersion  int
}

// ReconcileState overwrites the account's reading positions with the given
// ones. Either every position is written or none is. The stored updatedAt is
// not compared, so the last call wins.
func (a *App) ReconcileState(ctx context.Context, p ReconcileParams) error {
	deviceID := strings.TrimSpace(p.DeviceID)
	lastSeen := strings.TrimSpace(p.LastSeenCursor)

	log.WithFields(log.Fields{
		"accountId":      p.AccountID,
		"deviceId":       deviceID,
		"lastSeenCursor": lastSeen,
		"count":          len(p.Positions),
		"schemaVersion":  p.SchemaVersion,
		"requestId":      svrContext.RequestID(ctx),
	}).Info("sync.state")

	if p.SchemaVersion != SupportedSchemaVersion {
		return ErrUnsupportedSchemaVersion
	}
	if len(p.Positions) > MaxPositionsPerBatch {
		return ErrTooManyPositions
	}
	if p.AccountID == "" {
		return errors.Wrap(ErrInvalidInput, "account id is empty")
	}
	if deviceID == "" {
		return errors.Wrap(ErrInvalidInput, "device id is empty")
	}

	rows := make([]database.ReadingPosition, 0, len(p.Positions))
	for _, pos := range p.Positions {
		if pos.BookID == "" {
			return errors.Wrap(ErrInvalidInput, "reading position has no bookId")
		}

		updatedAt, err := parseTimestamp(pos.UpdatedAt)
		if err != nil {
			return errors.Wrapf(ErrInvalidInput, "reading position for book %s has invalid updatedAt", pos.BookID)
		}

		rows = append(rows, database.ReadingPosition{
			AccountID:   p.AccountID,
			BookID:      pos.BookID,
			ChapterHref: pos.ChapterHref,
			Anchor:      pos.Anchor,
			Offset:      pos.Offset,
			UpdatedAt:   updatedAt,
		})
	}

	if lastSeen != "" {
		if _, err := cursor.Decode(lastSeen); err != nil {
			return ErrInvalidCursor
		}

		if err := a.State.UpsertDeviceCursor(ctx, p.AccountID, deviceID, lastSeen, a.Clock.Now()); err != nil {
			return errors.Wrap(err, "recording device cursor")
		}
	}

	if err := a.State.UpsertReadingPositions(ctx, p.AccountID, rows); err != nil {
		return errors.Wrap(err, "writing reading positions")
	}

	a.Metrics.StateUpdates.Add(float64(len(rows)))

	return nil
}

// HelloParams is the input of Hello
type HelloParams struct {
	AccountID      string
	DeviceID       string
	LastSeenCursor string
}

// Hello registers a socket's device. When the device reports a cursor it is
// recorded as the device's bookmark.
func (a *App) Hello(ctx context.Context, p HelloParams) error {
	deviceID := strings.TrimSpace(p.DeviceID)
	if deviceID == "" {
		return errors.Wrap(ErrInvalidInput, "device id is empty")
	}

	lastSeen := strings.TrimSpace(p.LastSeenCursor)

	log.WithFields(log.Fields{
		"accountId":      p.AccountID,
		"deviceId":       deviceID,
		"lastSeenCursor": lastSeen,
	}).Info("sync.ws.hello")

	if lastSeen == "" {
		return nil
	}

	if err := a.State.UpsertDeviceCursor(ctx, p.AccountID, deviceID, lastSeen, a.Clock.Now()); err != nil {
		return errors.Wrap(err, "recording device cursor")
	}

	return nil
}
