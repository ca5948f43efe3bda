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
	"time"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/clock"
	"github.com/readsync/readsync/pkg/server/cursor"
	"github.com/readsync/readsync/pkg/server/database"
	"github.com/readsync/readsync/pkg/server/metrics"
	"github.com/readsync/readsync/pkg/server/notify"
	"github.com/readsync/readsync/pkg/server/token"
)

var (
	// ErrEmptyEventStore is an error for missing event store in the app configuration
	ErrEmptyEventStore = errors.New("No event store was provided")
	// ErrEmptyStateStore is an error for missing state store in the app configuration
	ErrEmptyStateStore = errors.New("No state store was provided")
	// ErrEmptyBus is an error for missing notification bus in the app configuration
	ErrEmptyBus = errors.New("No notification bus was provided")
	// ErrEmptyClock is an error for missing clock in the app configuration
	ErrEmptyClock = errors.New("No clock was provided")
	// ErrEmptyVerifier is an error for missing token verifier in the app configuration
	ErrEmptyVerifier = errors.New("No token verifier was provided")
	// ErrEmptyMetrics is an error for missing metrics in the app configuration
	ErrEmptyMetrics = errors.New("No metrics were provided")
)

// EventStore is the durable, ordered event log
type EventStore interface {
	// ExistingEventIDs returns which of the ids are already stored, across all accounts
	ExistingEventIDs(ctx context.Context, ids []string) (map[string]bool, error)
	// InsertEvents inserts events, silently skipping ids that already exist
	InsertEvents(ctx context.Context, events []database.Event) error
	// ListEvents returns up to limit events of the account strictly after the key
	ListEvents(ctx context.Context, accountID string, after *cursor.Key, limit int) ([]database.Event, error)
	// LatestEvent returns the last event of the account, or nil
	LatestEvent(ctx context.Context, accountID string) (*database.Event, error)
}

// StateStore keeps per-account state outside the event log
type StateStore interface {
	UpsertDeviceCursor(ctx context.Context, accountID, deviceID, lastCursor string, at time.Time) error
	UpsertReadingPositions(ctx context.Context, accountID string, positions []database.ReadingPosition) error
}

// App is an application context
type App struct {
	Events   EventStore
	State    StateStore
	Bus      notify.Bus
	Clock    clock.Clock
	Verifier *token.Verifier
	Metrics  *metrics.Metrics
	AppEnv   string
	Port     string
}

// Validate validates the app configuration
func (a *App) Validate() error {
	if a.Events == nil {
		return ErrEmptyEventStore
	}
	if a.State == nil {
		return ErrEmptyStateStore
	}
	if a.Bus == nil {
		return ErrEmptyBus
	}
	if a.Clock == nil {
		return ErrEmptyClock
	}
	if a.Verifier == nil {
		return ErrEmptyVerifier
	}
	if a.Metrics == nil {
		return ErrEmptyMetrics
	}

	return nil
}
