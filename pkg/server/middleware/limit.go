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
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/readsync/readsync/pkg/server/log"
	"golang.org/x/time/rate"
)

const (
	// serverRateLimitPerSecond is the max requests per second the server will accept per IP
	serverRateLimitPerSecond = 50
	// serverRateLimitBurst is the burst capacity for rate limiting
	serverRateLimitBurst = 100
	// visitorTTL is how long an idle visitor's limiter is kept
	visitorTTL = 3 * time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds the per-IP token buckets
type RateLimiter struct {
	visitors map[string]*visitor
	mtx      sync.Mutex
	limit    rate.Limit
	burst    int
}

func newRateLimiter(limit rate.Limit, burst int) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		burst:    burst,
	}
}

var defaultLimiter = newRateLimiter(rate.Limit(serverRateLimitPerSecond), serverRateLimitBurst)

// DefaultLimiter returns the limiter used by ApplyLimit. Idle visitors are
// only forgotten when EvictIdle is called.
func DefaultLimiter() *RateLimiter {
	return defaultLimiter
}

// getVisitor returns a limiter for a visitor with the given identifier. It
// adds the visitor to the map if not seen before.
func (rl *RateLimiter) getVisitor(identifier string) *rate.Limiter {
	rl.mtx.Lock()
	defer rl.mtx.Unlock()

	v, exists := rl.visitors[identifier]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[identifier] = v
	}
	v.lastSeen = time.Now()

	return v.limiter
}

// evict deletes visitors that have not been seen since the cutoff
func (rl *RateLimiter) evict(cutoff time.Time) int {
	rl.mtx.Lock()
	defer rl.mtx.Unlock()

	n := 0
	for identifier, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, identifier)
			n++
		}
	}

	return n
}

// EvictIdle forgets visitors idle for longer than visitorTTL and returns how
// many were dropped
func (rl *RateLimiter) EvictIdle() int {
	return rl.evict(time.Now().Add(-visitorTTL))
}

// lookupIP returns the request's IP
func lookupIP(r *http.Request) string {
	realIP := r.Header.Get("X-Real-IP")
	forwardedFor := r.Header.Get("X-Forwarded-For")

	if forwardedFor != "" {
		parts := strings.Split(forwardedFor, ",")
		return strings.TrimSpace(parts[0])
	}

	if realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

// Limit is a middleware to rate limit the handler
func (rl *RateLimiter) Limit(next http.Handler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identifier := lookupIP(r)
		limiter := rl.getVisitor(identifier)

		if !limiter.Allow() {
			RespondError(w, http.StatusTooManyRequests, "rate_limited")
			log.WithFields(log.Fields{
				"ip": identifier,
			}).Warn("http.rate_limited")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ApplyLimit applies rate limit conditionally using the global limiter
func ApplyLimit(h http.HandlerFunc, rateLimit bool) http.Handler {
	if rateLimit {
		return defaultLimiter.Limit(h)
	}

	return h
}
