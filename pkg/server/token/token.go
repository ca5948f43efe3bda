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

// Package token verifies and issues the bearer tokens that identify an account
package token

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/clock"
)

var (
	// ErrInvalid is returned for tokens that fail parsing, signature or time checks
	ErrInvalid = errors.New("invalid token")
	// ErrNoAccount is returned for valid tokens that do not name an account
	ErrNoAccount = errors.New("token has no account id")
	// ErrEmptySecret is returned when signing or verifying without a secret
	ErrEmptySecret = errors.New("empty token secret")
)

// accountClaims are checked in order for the account id
var accountClaims = []string{"sub", "userId", "uid"}

var validMethods = []string{"HS256", "HS384", "HS512"}

// Verifier checks HMAC signed JWTs and extracts the account id
type Verifier struct {
	secret []byte
	clock  clock.Clock
}

// NewVerifier returns a verifier for tokens signed with the given secret
func NewVerifier(secret string, c clock.Clock) (*Verifier, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	return &Verifier{secret: []byte(secret), clock: c}, nil
}

// Verify validates the token and returns the account id it carries
func (v *Verifier) Verify(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalid
	}

	parser := jwtlib.NewParser(
		jwtlib.WithValidMethods(validMethods),
		jwtlib.WithTimeFunc(v.clock.Now),
	)

	claims := jwtlib.MapClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(t *jwtlib.Token) (interface{}, error) {
		return v.secret, nil
	}); err != nil {
		return "", errors.Wrap(ErrInvalid, err.Error())
	}

	for _, key := range accountClaims {
		if id, ok := claims[key].(string); ok && id != "" {
			return id, nil
		}
	}

	return "", ErrNoAccount
}

// Options controls issued tokens
type Options struct {
	Secret string
	// Alg is HS256, HS384 or HS512. HS256 when empty.
	Alg string
	TTL time.Duration
}

func signingMethod(alg string) (jwtlib.SigningMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "", "HS256":
		return jwtlib.SigningMethodHS256, nil
	case "HS384":
		return jwtlib.SigningMethodHS384, nil
	case "HS512":
		return jwtlib.SigningMethodHS512, nil
	default:
		return nil, errors.Errorf("unsupported alg: %s", alg)
	}
}

// Issue signs a token for the account. A non-positive TTL issues a token
// without expiry.
func Issue(opts Options, accountID string, now time.Time) (string, error) {
	if opts.Secret == "" {
		return "", ErrEmptySecret
	}
	if accountID == "" {
		return "", ErrNoAccount
	}

	method, err := signingMethod(opts.Alg)
	if err != nil {
		return "", err
	}

	claims := jwtlib.MapClaims{
		"sub": accountID,
		"iat": now.Unix(),
		"nbf": now.Unix(),
	}
	if opts.TTL > 0 {
		claims["exp"] = now.Add(opts.TTL).Unix()
	}

	signed, err := jwtlib.NewWithClaims(method, claims).SignedString([]byte(opts.Secret))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}

	return signed, nil
}
