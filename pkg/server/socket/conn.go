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

package socket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one live socket of an account. Only its write pump writes to the
// underlying connection.
type Conn struct {
	ID        string
	AccountID string

	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	mu       sync.Mutex
	deviceID string
}

func newConn(id, accountID string, ws *websocket.Conn, queueSize int) *Conn {
	return &Conn{
		ID:        id,
		AccountID: accountID,
		ws:        ws,
		send:      make(chan []byte, queueSize),
		done:      make(chan struct{}),
	}
}

// DeviceID returns the device announced by the hello message
func (c *Conn) DeviceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.deviceID
}

func (c *Conn) setDeviceID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.deviceID = id
}

// offer queues msg without blocking. It reports false when the connection
// is closed or its queue is full.
func (c *Conn) offer(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// reply queues msg, waiting for room unless the connection closes first
func (c *Conn) reply(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	case <-c.done:
		return false
	}
}

// stop asks the write pump to send a normal closure and close the socket.
// Safe to call more than once.
func (c *Conn) stop() {
	c.once.Do(func() {
		close(c.done)
	})
}

// close stops the write pump and closes the socket right away
func (c *Conn) close() {
	c.stop()
	c.ws.Close()
}

// writePump drains the send queue and keeps the peer alive with pings
func (c *Conn) writePump(writeWait, pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
