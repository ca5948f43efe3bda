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

package middleware

import (
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/server/context"
	"github.com/readsync/readsync/pkg/server/log"
	"github.com/readsync/readsync/pkg/server/token"
)

var errMalformedAuthHeader = errors.New("malformed authorization header")

// GetCredential extracts the bearer token from the Authorization header. It
// returns an empty string if the header is absent.
func GetCredential(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", nil
	}

	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errMalformedAuthHeader
	}

	return strings.TrimSpace(parts[1]), nil
}

// RespondUnauthorized responds with 401 and a JSON error body
func RespondUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="readsync"`)
	RespondError(w, http.StatusUnauthorized, "unauthorized")
}

// Auth is an authentication middleware. It verifies the bearer token and
// puts the account id on the request context.
func Auth(v *token.Verifier, next http.HandlerFunc) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := GetCredential(r)
		if err != nil || raw == "" {
			RespondUnauthorized(w)
			return
		}

		accountID, err := v.Verify(raw)
		if err != nil {
			log.WithFields(log.Fields{
				"requestId": context.RequestID(r.Context()),
				"path":      r.URL.Path,
			}).Debug("rejecting token: " + err.Error())

			RespondUnauthorized(w)
			return
		}

		ctx := context.WithAccount(r.Context(), accountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
