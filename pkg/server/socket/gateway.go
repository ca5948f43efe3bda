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
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/server/app"
	svrContext "github.com/readsync/readsync/pkg/server/context"
	"github.com/readsync/readsync/pkg/server/helpers"
	"github.com/readsync/readsync/pkg/server/log"
	"github.com/readsync/readsync/pkg/server/presenters"
)

const (
	defaultWriteWait      = 10 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultMaxMessageSize = 64 * 1024
	defaultQueueSize      = 64
)

// Gateway upgrades authenticated requests to sockets and serves the sync
// protocol on them
type Gateway struct {
	app      *app.App
	registry *Registry
	upgrader websocket.Upgrader

	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	QueueSize      int
}

// NewGateway returns a gateway registering connections in the registry
func NewGateway(a *app.App, r *Registry) *Gateway {
	return &Gateway{
		app:      a,
		registry: r,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// clients authenticate with a bearer header, not cookies
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		WriteWait:      defaultWriteWait,
		PongWait:       defaultPongWait,
		MaxMessageSize: defaultMaxMessageSize,
		QueueSize:      defaultQueueSize,
	}
}

func (g *Gateway) pingPeriod() time.Duration {
	return g.PongWait * 9 / 10
}

// ServeHTTP upgrades the request. The account must already be on the
// request context.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	accountID := svrContext.Account(r.Context())
	if accountID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	connID, err := helpers.GenUUID()
	if err != nil {
		log.ErrorWrap(err, "generating connection id")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written an error response
		log.WithFields(log.Fields{
			"accountId": accountID,
		}).Warn("upgrading socket: " + err.Error())
		return
	}

	c := newConn(connID, accountID, ws, g.QueueSize)
	g.app.Metrics.WSConnected.Inc()
	g.app.Metrics.WSActive.Inc()
	g.registry.Add(c)

	log.WithFields(log.Fields{
		"accountId": accountID,
		"connId":    connID,
	}).Info("sync.ws.connected")

	go c.writePump(g.WriteWait, g.pingPeriod())
	g.readPump(c)
}

// readPump reads frames until the peer goes away, then unregisters the
// connection
func (g *Gateway) readPump(c *Conn) {
	defer func() {
		g.registry.Remove(c)
		c.close()
		g.app.Metrics.WSDisconnects.Inc()
		g.app.Metrics.WSActive.Dec()

		log.WithFields(log.Fields{
			"accountId": c.AccountID,
			"connId":    c.ID,
		}).Info("sync.ws.disconnected")
	}()

	c.ws.SetReadLimit(g.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(g.PongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(g.PongWait))
		return nil
	})

	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.WithFields(log.Fields{
					"connId": c.ID,
				}).Warn("socket read: " + err.Error())
			} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
				log.WithFields(log.Fields{
					"connId": c.ID,
				}).Info("socket read timeout")
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		if resp := g.handle(context.Background(), c, data); resp != nil {
			if !c.reply(resp) {
				return
			}
		}
	}
}

func marshal(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		log.ErrorWrap(err, "marshalling socket message")
		return nil
	}

	return b
}

func errorReply(reason string) []byte {
	return marshal(errorMessage{Type: typeError, Reason: reason})
}

// handle processes one client frame and returns the reply, if any
func (g *Gateway) handle(ctx context.Context, c *Conn, data []byte) []byte {
	msg, reason := parseInbound(data)
	if reason != "" {
		return errorReply(reason)
	}

	switch msg.Type {
	case typeHello:
		return g.handleHello(ctx, c, msg)
	case typePull:
		return g.handlePull(ctx, c, msg)
	default:
		return errorReply(reasonUnknownType)
	}
}

func (g *Gateway) handleHello(ctx context.Context, c *Conn, msg inbound) []byte {
	deviceID := strings.TrimSpace(msg.DeviceID)
	if deviceID == "" {
		return errorReply(reasonInvalidDeviceID)
	}

	c.setDeviceID(deviceID)

	err := g.app.Hello(ctx, app.HelloParams{
		AccountID:      c.AccountID,
		DeviceID:       deviceID,
		LastSeenCursor: msg.LastSeenCursor,
	})
	if err != nil {
		if errors.Cause(err) == app.ErrInvalidInput {
			return errorReply(reasonInvalidDeviceID)
		}

		// the bookmark is informational; the hello still succeeds
		log.WithFields(log.Fields{
			"accountId": c.AccountID,
			"connId":    c.ID,
		}).ErrorWrap(err, "recording hello bookmark")
	}

	return nil
}

func (g *Gateway) handlePull(ctx context.Context, c *Conn, msg inbound) []byte {
	res, err := g.app.PullEvents(ctx, app.PullParams{
		AccountID: c.AccountID,
		Cursor:    msg.Cursor,
		Limit:     app.MaxPageSize,
	})
	if err != nil {
		if errors.Cause(err) == app.ErrInvalidCursor {
			return errorReply(reasonInvalidCursor)
		}

		log.WithFields(log.Fields{
			"accountId": c.AccountID,
			"connId":    c.ID,
		}).ErrorWrap(err, "pulling events over socket")
		return errorReply(reasonInternal)
	}

	log.WithFields(log.Fields{
		"accountId": c.AccountID,
		"deviceId":  c.DeviceID(),
		"cursor":    msg.Cursor,
		"limit":     app.MaxPageSize,
		"returned":  len(res.Events),
	}).Info("sync.ws.pull")

	return marshal(eventsMessage{
		Type:         typeEvents,
		Events:       presenters.PresentEvents(res.Events),
		ServerCursor: res.ServerCursor,
	})
}
