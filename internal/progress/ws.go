// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package progress

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeTimeout bounds a single frame write to a client.
	writeTimeout = 10 * time.Second

	// maxCommandSize bounds inbound command frames. Commands are tiny;
	// anything larger is a misbehaving client.
	maxCommandSize = 1024
)

// command is the inbound message schema from subscribers.
type command struct {
	Action     string `json:"action"`
	DownloadID string `json:"downloadId"`
}

// WSHandler upgrades HTTP requests on the progress endpoint into hub
// subscriptions.
type WSHandler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWSHandler builds the WebSocket handler for a hub.
//
// Origin checking is left open: the endpoint sits behind the API-key
// middleware, and the service fronts a private reader deployment, not the
// public internet.
func NewWSHandler(hub *Hub, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.With(slog.String("component", "progress_ws")),
	}
}

// ServeHTTP handles GET /api/v1/downloads/progress.
//
// On connect the server pushes {type: connected}; afterwards the client
// may send {"action":"subscribe","downloadId":...} to filter events or
// {"action":"ping"} to receive a pong. Any write or read error closes the
// connection.
func (h *WSHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	conn, err := h.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Warn("ws_upgrade_failed", slog.String("error", err.Error()))
		return
	}

	sub := h.hub.Subscribe()
	defer h.hub.Unsubscribe(sub)

	h.logger.Info("ws_client_connected", slog.String("remote", conn.RemoteAddr().String()))

	go h.readPump(conn, sub)
	h.writePump(conn, sub)

	conn.Close() //nolint:errcheck
	h.logger.Info("ws_client_disconnected", slog.String("remote", conn.RemoteAddr().String()))
}

// writePump serializes hub events onto the connection until the
// subscriber channel closes or a write fails.
func (h *WSHandler) writePump(conn *websocket.Conn, sub *Subscriber) {
	for event := range sub.C {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
		if err := conn.WriteJSON(event); err != nil {
			h.logger.Warn("ws_write_failed", slog.String("error", err.Error()))
			return
		}
	}
}

// readPump consumes inbound command frames. Unknown actions are ignored
// rather than fatal, so newer clients degrade gracefully against older
// servers.
func (h *WSHandler) readPump(conn *websocket.Conn, sub *Subscriber) {
	// Unsubscribing closes sub.C, which also ends the write pump.
	defer h.hub.Unsubscribe(sub)

	conn.SetReadLimit(maxCommandSize)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			h.logger.Warn("ws_command_malformed", slog.String("error", err.Error()))
			continue
		}

		switch cmd.Action {
		case "subscribe":
			sub.SetFilter(cmd.DownloadID)
		case "ping":
			h.hub.Send(sub, Event{Type: EventPong})
		}
	}
}
