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

// Package cursor encodes and decodes opaque positions in the event log.
// A cursor names the (createdAt, id) of one event; the empty string names
// the beginning of the log.
package cursor

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Version is the only cursor format this server reads or writes
const Version = 1

// ErrInvalid is returned for any cursor that cannot be decoded
var ErrInvalid = errors.New("invalid_cursor")

// Key is a position in the (createdAt, id) total order of an account's events
type Key struct {
	CreatedAt time.Time
	ID        string
}

// After reports whether k sorts strictly after o
func (k Key) After(o Key) bool {
	if k.CreatedAt.Equal(o.CreatedAt) {
		return k.ID > o.ID
	}

	return k.CreatedAt.After(o.CreatedAt)
}

type payload struct {
	V         *int    `json:"v"`
	CreatedAt *string `json:"createdAt"`
	ID        *string `json:"id"`
}

// Encode returns the cursor for the event with the given createdAt and id
func Encode(createdAt time.Time, id string) string {
	v := Version
	ts := createdAt.UTC().Format(time.RFC3339Nano)

	b, err := json.Marshal(payload{V: &v, CreatedAt: &ts, ID: &id})
	if err != nil {
		// strings and ints always marshal
		panic(errors.Wrap(err, "marshalling cursor"))
	}

	return base64.RawURLEncoding.EncodeToString(b)
}

// Decode parses a cursor produced by Encode. Any malformed, tampered or
// foreign-version input yields ErrInvalid.
func Decode(s string) (Key, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return Key{}, ErrInvalid
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var p payload
	if err := dec.Decode(&p); err != nil {
		return Key{}, ErrInvalid
	}
	if dec.More() {
		return Key{}, ErrInvalid
	}

	if p.V == nil || *p.V != Version || p.CreatedAt == nil || p.ID == nil {
		return Key{}, ErrInvalid
	}

	createdAt, err := time.Parse(time.RFC3339Nano, *p.CreatedAt)
	if err != nil {
		return Key{}, ErrInvalid
	}

	return Key{CreatedAt: createdAt.UTC(), ID: *p.ID}, nil
}

// Parse decodes an optional cursor. A blank string means the beginning of
// the log and returns a nil key.
func Parse(s string) (*Key, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	k, err := Decode(s)
	if err != nil {
		return nil, err
	}

	return &k, nil
}
