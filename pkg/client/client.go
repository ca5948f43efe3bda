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

// Package client provides the functionality to call the readsync server
// and the data structures for requests and responses
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// ErrContentTypeMismatch is an error for a response that is not JSON
var ErrContentTypeMismatch = errors.New("content type mismatch")

// HTTPError represents an HTTP error response from the server
type HTTPError struct {
	StatusCode int
	// Reason is the error reason reported by the server
	Reason string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf(`response %d "%s"`, e.StatusCode, e.Reason)
}

// IsInvalidCursor returns true if the server rejected the cursor
func (e *HTTPError) IsInvalidCursor() bool {
	return e.StatusCode == http.StatusBadRequest && e.Reason == "invalid_cursor"
}

const contentTypeApplicationJSON = "application/json"

const (
	// clientRateLimitPerSecond is the max requests per second the client will make
	clientRateLimitPerSecond = 50
	// clientRateLimitBurst is the burst capacity for rate limiting
	clientRateLimitBurst = 100
)

// rateLimitedTransport wraps an http.RoundTripper with rate limiting
type rateLimitedTransport struct {
	transport http.RoundTripper
	limiter   *rate.Limiter
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Wait for rate limiter to allow the request
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.transport.RoundTrip(req)
}

// NewRateLimitedHTTPClient creates an HTTP client with rate limiting
func NewRateLimitedHTTPClient() *http.Client {
	// Calculate interval from rate: 1 second / requests per second
	interval := time.Second / time.Duration(clientRateLimitPerSecond)

	transport := &rateLimitedTransport{
		transport: http.DefaultTransport,
		limiter:   rate.NewLimiter(rate.Every(interval), clientRateLimitBurst),
	}
	return &http.Client{
		Transport: transport,
	}
}

// Client calls the sync API as one device of one account
type Client struct {
	// Endpoint is the server url without a trailing slash
	Endpoint string
	Token    string
	DeviceID string

	HTTPClient *http.Client
}

// New returns a client with a rate limited HTTP client
func New(endpoint, token, deviceID string) *Client {
	return &Client{
		Endpoint:   strings.TrimRight(endpoint, "/"),
		Token:      token,
		DeviceID:   deviceID,
		HTTPClient: NewRateLimitedHTTPClient(),
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}

	return http.DefaultClient
}

// checkRespErr turns an error response into an HTTPError
func checkRespErr(res *http.Response) error {
	if res.StatusCode < 400 {
		return nil
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return errors.Wrapf(err, "server responded with %d but client could not read the response body", res.StatusCode)
	}

	var payload struct {
		Error string `json:"error"`
	}
	reason := strings.TrimRight(string(body), "\n")
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		reason = payload.Error
	}

	return &HTTPError{
		StatusCode: res.StatusCode,
		Reason:     reason,
	}
}

func checkContentType(res *http.Response) error {
	got := res.Header.Get("Content-Type")
	if !strings.HasPrefix(got, contentTypeApplicationJSON) {
		return errors.Wrapf(ErrContentTypeMismatch, "got: '%s' want: '%s'. Did you configure your endpoint correctly?", got, contentTypeApplicationJSON)
	}

	return nil
}

// do sends an authorized request and decodes the JSON response into ret
func (c *Client) do(ctx context.Context, method, path string, payload, ret interface{}) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "marshalling payload")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Endpoint+path, body)
	if err != nil {
		return errors.Wrap(err, "constructing http request")
	}
	if payload != nil {
		req.Header.Set("Content-Type", contentTypeApplicationJSON)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.Token))
	}

	res, err := c.httpClient().Do(req)
	if err != nil {
		return errors.Wrap(err, "making http request")
	}
	defer res.Body.Close()

	if err := checkRespErr(res); err != nil {
		return errors.Wrap(err, "server responded with an error")
	}
	if err := checkContentType(res); err != nil {
		return errors.Wrap(err, "unexpected Content-Type")
	}

	if err := json.NewDecoder(res.Body).Decode(ret); err != nil {
		return errors.Wrap(err, "unmarshalling the payload")
	}

	return nil
}

// Event is an event as exchanged with the server
type Event struct {
	ID            string          `json:"id"`
	EntityType    string          `json:"entityType"`
	EntityID      string          `json:"entityId"`
	Op            string          `json:"op"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     string          `json:"createdAt"`
	SchemaVersion int             `json:"schemaVersion"`
}

// Ack is the server's verdict on one uploaded event
type Ack struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// UploadEventsPayload is the payload of an event upload
type UploadEventsPayload struct {
	DeviceID string  `json:"deviceId"`
	Cursor   string  `json:"cursor,omitempty"`
	Events   []Event `json:"events"`
}

// UploadEventsResp is the response of an event upload
type UploadEventsResp struct {
	APIVersion   string `json:"apiVersion"`
	Acks         []Ack  `json:"acks"`
	ServerCursor string `json:"serverCursor"`
}

// UploadEvents appends events to the account's log. cursor is the last
// cursor this device has seen and may be empty.
func (c *Client) UploadEvents(ctx context.Context, cursor string, events []Event) (UploadEventsResp, error) {
	var ret UploadEventsResp

	payload := UploadEventsPayload{
		DeviceID: c.DeviceID,
		Cursor:   cursor,
		Events:   events,
	}
	if err := c.do(ctx, "POST", "/sync/events", payload, &ret); err != nil {
		return ret, errors.Wrap(err, "uploading events")
	}

	return ret, nil
}

// PullEventsResp is the response of an event pull
type PullEventsResp struct {
	APIVersion   string  `json:"apiVersion"`
	Events       []Event `json:"events"`
	ServerCursor string  `json:"serverCursor"`
}

// PullEvents fetches one page of events after the cursor. A zero limit
// uses the server default.
func (c *Client) PullEvents(ctx context.Context, cursor string, limit int) (PullEventsResp, error) {
	var ret PullEventsResp

	v := url.Values{}
	if cursor != "" {
		v.Set("cursor", cursor)
	}
	if limit != 0 {
		v.Set("limit", strconv.Itoa(limit))
	}

	path := "/sync/events"
	if q := v.Encode(); q != "" {
		path = path + "?" + q
	}

	if err := c.do(ctx, "GET", path, nil, &ret); err != nil {
		return ret, errors.Wrap(err, "pulling events")
	}

	return ret, nil
}

// PullAll pages through every event after the cursor and returns them with
// the last server cursor
func (c *Client) PullAll(ctx context.Context, cursor string) ([]Event, string, error) {
	ret := []Event{}

	for {
		page, err := c.PullEvents(ctx, cursor, 0)
		if err != nil {
			return nil, cursor, err
		}

		ret = append(ret, page.Events...)
		cursor = page.ServerCursor

		if len(page.Events) == 0 {
			return ret, cursor, nil
		}
	}
}

// ReadingPosition is a device's place in a book
type ReadingPosition struct {
	BookID      string  `json:"bookId"`
	ChapterHref *string `json:"chapterHref"`
	Anchor      *string `json:"anchor"`
	Offset      *int    `json:"offset"`
	UpdatedAt   string  `json:"updatedAt"`
}

// UploadStatePayload is the payload of a state upload
type UploadStatePayload struct {
	DeviceID         string            `json:"deviceId"`
	LastSeenCursor   string            `json:"lastSeenCursor,omitempty"`
	ReadingPositions []ReadingPosition `json:"readingPositions"`
	SchemaVersion    int               `json:"schemaVersion"`
}

// StatusResp is a bare acknowledgement
type StatusResp struct {
	APIVersion string `json:"apiVersion"`
	Status     string `json:"status"`
}

// UploadState overwrites the account's reading positions
func (c *Client) UploadState(ctx context.Context, lastSeenCursor string, positions []ReadingPosition, schemaVersion int) error {
	var ret StatusResp

	payload := UploadStatePayload{
		DeviceID:         c.DeviceID,
		LastSeenCursor:   lastSeenCursor,
		ReadingPositions: positions,
		SchemaVersion:    schemaVersion,
	}
	if err := c.do(ctx, "POST", "/sync/state", payload, &ret); err != nil {
		return errors.Wrap(err, "uploading state")
	}

	return nil
}
