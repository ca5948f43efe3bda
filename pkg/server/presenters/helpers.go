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
	"time"
)

// timestampLayout matches JavaScript's Date.prototype.toISOString
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTS renders the given timestamp in UTC with millisecond precision
func FormatTS(ts time.Time) string {
	return ts.UTC().Truncate(time.Millisecond).Format(timestampLayout)
}
