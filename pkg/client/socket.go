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

package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Socket message types
const (
	MessageEvents          = "events"
	MessageEventsAvailable = "events_available"
	MessageError           = "error"
)

// Message is a frame sent by the server over the socket
type Message struct {
	Type         string  `json:"type"`
	Events       []Event `json:"events,omitempty"`
	ServerCursor string  `json:"serverCursor,omitempty"`
	Reason       string  `json:"reason,omitempty"`
}

// Socket is a live connection to the sync socket
type Socket struct {
	conn *websocket.Conn
}

func socketURL(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return "wss://" + strings.TrimPrefix(endpoint, "https://") + "/sync/ws"
	case strings.HasPrefix(endpoint, "http://"):
		return "ws://" + strings.TrimPrefix(endpoint, "http://") + "/sync/ws"
	}

	return endpoint + "/sync/ws"
}

// Dial opens the sync socket and announces the device
func (c *Client) Dial(ctx context.Context, lastSeenCursor string) (*Socket, error) {
	header := http.Header{}
	header.Set("Authorization", fmt.Sprintf("Bearer %s", c.Token))

	conn, res, err := websocket.DefaultDialer.DialContext(ctx, socketURL(c.Endpoint), header)
	if err != nil {
		if res != nil {
			return nil, errors.Wrapf(err, "dialing socket: status %d", res.StatusCode)
		}
		return nil, errors.Wrap(err, "dialing socket")
	}

	s := &Socket{conn: conn}

	hello := map[string]string{"type": "hello", "deviceId": c.DeviceID}
	if lastSeenCursor != "" {
		hello["lastSeenCursor"] = lastSeenCursor
	}
	if err := conn.WriteJSON(hello); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "sending hello")
	}

	return s, nil
}

// Pull asks for the events after the cursor. The reply arrives through Read.
func (s *Socket) Pull(cursor string) error {
	msg := map[string]string{"type": "pull"}
	if cursor != "" {
		msg["cursor"] = cursor
	}

	if err := s.conn.WriteJSON(msg); err != nil {
		return errors.Wrap(err, "sending pull")
	}

	return nil
}

// Read blocks until the next server frame arrives
func (s *Socket) Read() (Message, error) {
	var ret Message
	if err := s.conn.ReadJSON(&ret); err != nil {
		return ret, errors.Wrap(err, "reading socket message")
	}

	return ret, nil
}

// Close closes the connection
func (s *Socket) Close() error {
	s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	return s.conn.Close()
}
