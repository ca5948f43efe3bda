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

// Package output writes sync data for other programs to consume
package output

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/client"
)

// Events writes the events as JSON lines
func Events(w io.Writer, events []client.Event) error {
	enc := json.NewEncoder(w)

	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			return errors.Wrapf(err, "writing event %s", e.ID)
		}
	}

	return nil
}

// ReadEvents reads either a JSON array of events or JSON lines of events,
// so that the output of Events can be read back
func ReadEvents(r io.Reader) ([]client.Event, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading events")
	}

	ret := []client.Event{}

	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		if err := json.Unmarshal(b, &ret); err != nil {
			return nil, errors.Wrap(err, "decoding events")
		}

		return ret, nil
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	for {
		var e client.Event
		err := dec.Decode(&e)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "decoding event %d", len(ret)+1)
		}

		ret = append(ret, e)
	}

	return ret, nil
}
