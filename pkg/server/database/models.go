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

package database

import (
	"time"

	"gorm.io/datatypes"
)

// Event is an immutable record in an account's event log. ID is generated by
// the client and is unique across all accounts.
type Event struct {
	ID            string         `gorm:"primaryKey;type:text"`
	AccountID     string         `gorm:"not null;type:text"`
	DeviceID      string         `gorm:"not null;type:text"`
	EntityType    string         `gorm:"not null;type:text"`
	EntityID      string         `gorm:"not null;type:text"`
	Op            string         `gorm:"not null;type:text"`
	Payload       datatypes.JSON `gorm:"not null"`
	CreatedAt     time.Time      `gorm:"not null;autoCreateTime:false"`
	ReceivedAt    time.Time      `gorm:"not null;autoCreateTime:false"`
	SchemaVersion int            `gorm:"not null"`
}

// ReadingPosition is the last known reading location of a book for an account
type ReadingPosition struct {
	AccountID   string    `gorm:"primaryKey;type:text"`
	BookID      string    `gorm:"primaryKey;type:text"`
	ChapterHref *string   `gorm:"type:text"`
	Anchor      *string   `gorm:"type:text"`
	Offset      *int      `gorm:"column:position_offset"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime:false"`
}

// DeviceCursor is the last cursor a device reported having seen
type DeviceCursor struct {
	AccountID  string    `gorm:"primaryKey;type:text"`
	DeviceID   string    `gorm:"primaryKey;type:text"`
	LastCursor string    `gorm:"not null;type:text"`
	UpdatedAt  time.Time `gorm:"not null;autoUpdateTime:false"`
}

const (
	// OpAdd marks an event that creates an entity
	OpAdd = "add"
	// OpUpdate marks an event that modifies an entity
	OpUpdate = "update"
	// OpDelete marks an event that removes an entity
	OpDelete = "delete"
)

// ValidOp reports whether op is a known event operation
func ValidOp(op string) bool {
	switch op {
	case OpAdd, OpUpdate, OpDelete:
		return true
	}

	return false
}
