/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	ws "nhooyr.io/websocket"

	"github.com/friendsincode/gnb_scheduler/internal/events"
	"github.com/friendsincode/gnb_scheduler/internal/telemetry"
)

const eventPingInterval = 15 * time.Second

type streamedEvent struct {
	Type    events.EventType `json:"type"`
	Payload events.Payload   `json:"payload"`
}

// handleEvents streams scheduler notifications over a websocket.
// Query params: types (comma separated, default all).
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	eventTypes := parseEventTypes(r.URL.Query().Get("types"))
	if len(eventTypes) == 0 {
		eventTypes = events.AllEventTypes
	}

	// Subscribe before the handshake so nothing published after it is missed.
	subscribers := make([]events.Subscriber, len(eventTypes))
	for i, eventType := range eventTypes {
		subscribers[i] = a.bus.Subscribe(eventType)
	}
	var wg sync.WaitGroup
	defer func() {
		for i, eventType := range eventTypes {
			a.bus.Unsubscribe(eventType, subscribers[i])
		}
		wg.Wait()
	}()

	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	telemetry.WebsocketConnections.Inc()
	defer telemetry.WebsocketConnections.Dec()

	// Clients only receive; CloseRead handles control frames and cancels ctx
	// when the peer goes away.
	ctx, cancel := context.WithCancel(conn.CloseRead(r.Context()))
	defer cancel()

	merged := make(chan streamedEvent, 16)
	for i, eventType := range eventTypes {
		wg.Add(1)
		go func(eventType events.EventType, sub events.Subscriber) {
			defer wg.Done()
			for payload := range sub {
				select {
				case merged <- streamedEvent{Type: eventType, Payload: payload}:
				case <-ctx.Done():
					return
				}
			}
		}(eventType, subscribers[i])
	}

	ticker := time.NewTicker(eventPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "")
			return
		case <-ticker.C:
			if err := conn.Write(ctx, ws.MessageText, []byte(`{"type":"ping"}`)); err != nil {
				a.logger.Debug().Err(err).Msg("websocket ping failed")
				return
			}
		case ev := <-merged:
			if err := a.writeEvent(ctx, conn, ev); err != nil {
				a.logger.Debug().Err(err).Msg("websocket write failed")
				return
			}
		}
	}
}

func (a *API) writeEvent(ctx context.Context, conn *ws.Conn, ev streamedEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return conn.Write(ctx, ws.MessageText, data)
}
