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

// Package store persists the event log, reading positions and device
// bookmarks with gorm.
package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/server/cursor"
	"github.com/readsync/readsync/pkg/server/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// insertBatchSize bounds the rows sent in one INSERT statement
const insertBatchSize = 100

// Store is the gorm backed event log and state store
type Store struct {
	db *gorm.DB
}

// New returns a store on the given connection
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying connection
func (s *Store) DB() *gorm.DB {
	return s.db
}

// ExistingEventIDs returns the subset of ids already present in the log,
// regardless of account
func (s *Store) ExistingEventIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	ret := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return ret, nil
	}

	var found []string
	if err := s.db.WithContext(ctx).
		Model(&database.Event{}).
		Where("id IN ?", ids).
		Pluck("id", &found).Error; err != nil {
		return nil, errors.Wrap(err, "finding existing event ids")
	}

	for _, id := range found {
		ret[id] = true
	}

	return ret, nil
}

// InsertEvents bulk inserts events, skipping any whose id already exists
func (s *Store) InsertEvents(ctx context.Context, events []database.Event) error {
	if len(events) == 0 {
		return nil
	}

	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		CreateInBatches(&events, insertBatchSize).Error; err != nil {
		return errors.Wrap(err, "inserting events")
	}

	return nil
}

// ListEvents returns up to limit events of the account strictly after the
// given key in (created_at, id) order. A nil key starts from the beginning.
func (s *Store) ListEvents(ctx context.Context, accountID string, after *cursor.Key, limit int) ([]database.Event, error) {
	conn := s.db.WithContext(ctx).Where("account_id = ?", accountID)
	if after != nil {
		conn = conn.Where("(created_at > ? OR (created_at = ? AND id > ?))", after.CreatedAt, after.CreatedAt, after.ID)
	}

	var events []database.Event
	if err := conn.
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, errors.Wrap(err, "listing events")
	}

	for i := range events {
		events[i].CreatedAt = events[i].CreatedAt.UTC()
		events[i].ReceivedAt = events[i].ReceivedAt.UTC()
	}

	return events, nil
}

// LatestEvent returns the last event of the account in (created_at, id)
// order, or nil if the account has none
func (s *Store) LatestEvent(ctx context.Context, accountID string) (*database.Event, error) {
	var events []database.Event
	if err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(1).
		Find(&events).Error; err != nil {
		return nil, errors.Wrap(err, "finding latest event")
	}

	if len(events) == 0 {
		return nil, nil
	}

	e := events[0]
	e.CreatedAt = e.CreatedAt.UTC()

	return &e, nil
}

// UpsertDeviceCursor records the last cursor reported by a device
func (s *Store) UpsertDeviceCursor(ctx context.Context, accountID, deviceID, lastCursor string, at time.Time) error {
	row := database.DeviceCursor{
		AccountID:  accountID,
		DeviceID:   deviceID,
		LastCursor: lastCursor,
		UpdatedAt:  at.UTC(),
	}

	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}, {Name: "device_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_cursor", "updated_at"}),
		}).
		Create(&row).Error; err != nil {
		return errors.Wrap(err, "upserting device cursor")
	}

	return nil
}

// UpsertReadingPositions replaces the reading positions of the account in a
// single transaction
func (s *Store) UpsertReadingPositions(ctx context.Context, accountID string, positions []database.ReadingPosition) error {
	if len(positions) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range positions {
			p.AccountID = accountID
			p.UpdatedAt = p.UpdatedAt.UTC()

			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "account_id"}, {Name: "book_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"chapter_href", "anchor", "position_offset", "updated_at"}),
			}).Create(&p).Error; err != nil {
				return errors.Wrapf(err, "upserting reading position for book %s", p.BookID)
			}
		}

		return nil
	})
	if err != nil {
		return errors.Wrap(err, "upserting reading positions")
	}

	return nil
}

// ReadingPositions returns the stored reading positions of the account
func (s *Store) ReadingPositions(ctx context.Context, accountID string) ([]database.ReadingPosition, error) {
	var ret []database.ReadingPosition
	if err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("book_id ASC").
		Find(&ret).Error; err != nil {
		return nil, errors.Wrap(err, "listing reading positions")
	}

	return ret, nil
}
