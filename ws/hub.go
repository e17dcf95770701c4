// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/danielhkuo/classpulse/cliparse"
	"github.com/danielhkuo/classpulse/models"
)

// kickGrace is how long a kicked client keeps its connection after the
// kicked notice, so the notice can flush before the close.
const kickGrace = 500 * time.Millisecond

// maxChatLen truncates relayed chat messages.
const maxChatLen = 500

// CommandHandler receives the decoded commands from connections. The
// session coordinator implements it.
type CommandHandler interface {
	Register(connID, displayName, role string)
	Disconnect(connID string)
	CreatePoll(connID, question string, options []string, durationSec int)
	SubmitAnswer(connID string, optionIndex int)
	EndPoll(connID string)
	Kick(connID, targetName string) (string, bool)
}

// Hub owns the live connections and implements session.Broadcaster.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*Client

	handler  CommandHandler
	upgrader websocket.Upgrader
}

func NewHub(cfg cliparse.Config) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || cfg.AllowsOrigin(origin)
			},
		},
	}
}

// Bind attaches the command handler. Must be called before ServeWS;
// split from NewHub because the hub and the coordinator reference each
// other.
func (h *Hub) Bind(handler CommandHandler) {
	h.handler = handler
}

// ServeWS handles GET /ws, upgrading the connection and starting its
// pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	client := &Client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()

	slog.Info("connected", "conn_id", client.id, "remote", r.RemoteAddr)

	go client.writePump()
	go client.readPump()
}

// AnnounceAll implements session.Broadcaster.
func (h *Hub) AnnounceAll(kind string, payload interface{}) {
	msg, ok := marshalEnvelope(kind, payload)
	if !ok {
		return
	}

	h.mu.Lock()
	for _, c := range h.clients {
		c.enqueue(msg)
	}
	h.mu.Unlock()
}

// AnnounceOne implements session.Broadcaster.
func (h *Hub) AnnounceOne(connID string, kind string, payload interface{}) {
	msg, ok := marshalEnvelope(kind, payload)
	if !ok {
		return
	}

	// Enqueue under the lock so a concurrent drop cannot close the
	// send channel between the lookup and the send.
	h.mu.Lock()
	if c, found := h.clients[connID]; found {
		c.enqueue(msg)
	}
	h.mu.Unlock()
}

// dispatch routes one inbound envelope to the command handler.
func (h *Hub) dispatch(c *Client, env models.Envelope) {
	switch env.Type {
	case models.CmdRegister:
		var req models.RegisterRequest
		if !decode(env.Data, &req, c.id, env.Type) {
			return
		}
		h.handler.Register(c.id, req.Name, req.Role)

	case models.CmdCreatePoll:
		var req models.CreatePollRequest
		if !decode(env.Data, &req, c.id, env.Type) {
			return
		}
		h.handler.CreatePoll(c.id, req.Question, req.Options, req.DurationSec)

	case models.CmdSubmit:
		var req models.SubmitAnswerRequest
		if !decode(env.Data, &req, c.id, env.Type) {
			return
		}
		h.handler.SubmitAnswer(c.id, req.OptionIndex)

	case models.CmdEndPoll:
		h.handler.EndPoll(c.id)

	case models.CmdChat:
		var req models.ChatRequest
		if !decode(env.Data, &req, c.id, env.Type) {
			return
		}
		h.relayChat(req)

	case models.CmdKick:
		var req models.KickRequest
		if !decode(env.Data, &req, c.id, env.Type) {
			return
		}
		if targetID, ok := h.handler.Kick(c.id, req.Name); ok {
			h.scheduleClose(targetID)
		}

	default:
		slog.Warn("unknown command", "type", env.Type, "conn_id", c.id)
	}
}

// relayChat broadcasts a chat message to everyone, including the
// sender.
func (h *Hub) relayChat(req models.ChatRequest) {
	sender := req.Sender
	if sender == "" {
		sender = "Anonymous"
	}
	msg := req.Message
	if len(msg) > maxChatLen {
		// Back up to a rune boundary so the cut never splits a
		// multi-byte character.
		cut := maxChatLen
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	role := req.Role
	if role == "" {
		role = models.RoleStudent
	}

	h.AnnounceAll(models.EventChatMessage, models.ChatMessageEvent{
		Sender:  sender,
		Message: msg,
		Role:    role,
		At:      time.Now().UnixMilli(),
	})
}

// scheduleClose force-disconnects a kicked client after the grace
// delay.
func (h *Hub) scheduleClose(connID string) {
	time.AfterFunc(kickGrace, func() {
		h.mu.Lock()
		c, found := h.clients[connID]
		h.mu.Unlock()

		if found {
			c.conn.Close()
		}
	})
}

// drop removes a client after its read pump exits and tells the
// handler the participant is gone.
func (h *Hub) drop(c *Client) {
	h.mu.Lock()
	if _, found := h.clients[c.id]; found {
		delete(h.clients, c.id)
		close(c.send)
	}
	h.mu.Unlock()

	h.handler.Disconnect(c.id)
	slog.Info("disconnected", "conn_id", c.id)
}

func decode(data json.RawMessage, v interface{}, connID, kind string) bool {
	if err := json.Unmarshal(data, v); err != nil {
		slog.Warn("malformed command payload", "type", kind, "conn_id", connID, "error", err)
		return false
	}
	return true
}
