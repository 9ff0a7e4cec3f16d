// Package ws provides the realtime layer for telemedicine visits. Each
// appointment of type Telemed gets a room keyed by its appointment id;
// the doctor and patient join the room and exchange signalling messages
// (offers, answers, ICE candidates) plus lifecycle events pushed by the
// server when the visit changes status. The hub relays payloads only —
// media itself flows peer to peer.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Event is a message delivered to room members.
type Event struct {
	Type      string          `json:"type"`
	Room      string          `json:"room"`
	From      string          `json:"from,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ClientMessage is an inbound message from a connected participant.
type ClientMessage struct {
	Action string          `json:"action"` // join, leave, signal
	Room   string          `json:"room"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// EventPublisher lets domain services push visit events into rooms without
// depending on the hub directly.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client represents a single connected participant.
type Client struct {
	ID    string
	Rooms []string
	Send  chan []byte
	hub   *Hub
	conn  Conn
}

// Hub tracks connected participants and their room memberships.
// All operations are thread-safe via sync.RWMutex.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{} // room -> set of members
	all     map[*Client]struct{}
}

// NewHub creates a new Hub ready to manage telemed rooms.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]struct{}),
		all:   make(map[*Client]struct{}),
	}
}

// Register adds a client to the hub and joins it to its initial rooms.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}

	for _, room := range client.Rooms {
		if h.rooms[room] == nil {
			h.rooms[room] = make(map[*Client]struct{})
		}
		h.rooms[room][client] = struct{}{}
	}
}

// Unregister removes a client from the hub and all rooms, and closes the
// client's Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}

	for _, room := range client.Rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}

	delete(h.all, client)
	close(client.Send)
}

// Join adds the client to a room.
func (h *Hub) Join(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][client] = struct{}{}
	client.Rooms = append(client.Rooms, room)
}

// Leave removes the client from a room.
func (h *Hub) Leave(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}

	remaining := make([]string, 0, len(client.Rooms))
	for _, r := range client.Rooms {
		if r != room {
			remaining = append(remaining, r)
		}
	}
	client.Rooms = remaining
}

// ProcessMessage handles an inbound ClientMessage.
func (h *Hub) ProcessMessage(client *Client, msg ClientMessage) {
	switch msg.Action {
	case "join":
		h.Join(client, msg.Room)
		h.Broadcast(msg.Room, Event{
			Type:      "participant.joined",
			Room:      msg.Room,
			From:      client.ID,
			Timestamp: time.Now().UTC(),
		})
	case "leave":
		h.Leave(client, msg.Room)
		h.Broadcast(msg.Room, Event{
			Type:      "participant.left",
			Room:      msg.Room,
			From:      client.ID,
			Timestamp: time.Now().UTC(),
		})
	case "signal":
		// Relay signalling payloads to everyone else in the room.
		h.broadcastExcept(msg.Room, client, Event{
			Type:      "signal",
			Room:      msg.Room,
			From:      client.ID,
			Timestamp: time.Now().UTC(),
			Data:      msg.Data,
		})
	}
}

// Broadcast sends an event to every member of the given room.
func (h *Hub) Broadcast(room string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("ws: failed to marshal event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[room] {
		select {
		case client.Send <- data:
		default:
			// Client buffer full; skip to avoid blocking.
		}
	}
}

func (h *Hub) broadcastExcept(room string, sender *Client, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("ws: failed to marshal event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[room] {
		if client == sender {
			continue
		}
		select {
		case client.Send <- data:
		default:
		}
	}
}

// Publish implements EventPublisher by broadcasting the event to the
// event's room.
func (h *Hub) Publish(_ context.Context, event Event) error {
	h.Broadcast(event.Room, event)
	return nil
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// RoomCount returns the number of members in a room.
func (h *Hub) RoomCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ---------------------------------------------------------------------------
// Handler — Echo HTTP handler for WebSocket connections
// ---------------------------------------------------------------------------

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; tighten in production.
	},
}

// Handler handles HTTP-to-WebSocket upgrades and message routing.
type Handler struct {
	hub *Hub
}

// NewHandler creates a new handler bound to the given Hub.
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// RegisterRoutes registers the telemed WebSocket endpoint.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/telemed", h.HandleConnect)
}

// HandleConnect upgrades an HTTP connection to WebSocket, registers the
// client with the hub, and starts read/write pumps.
func (h *Handler) HandleConnect(c echo.Context) error {
	sock, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		ID:    uuid.New().String(),
		Rooms: []string{},
		Send:  make(chan []byte, 256),
		hub:   h.hub,
		conn:  &gorillaConnAdapter{sock},
	}

	h.hub.Register(client)

	go h.writePump(client, sock)
	go h.readPump(client, sock)

	return nil
}

func (h *Handler) readPump(client *Client, sock *gorillawebsocket.Conn) {
	defer func() {
		h.hub.Unregister(client)
		sock.Close()
	}()

	for {
		_, message, err := sock.ReadMessage()
		if err != nil {
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue // Ignore malformed messages.
		}

		h.hub.ProcessMessage(client, msg)
	}
}

func (h *Handler) writePump(client *Client, sock *gorillawebsocket.Conn) {
	defer sock.Close()

	for message := range client.Send {
		if err := sock.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			break
		}
	}
}

// gorillaConnAdapter wraps a gorilla/websocket.Conn to satisfy the Conn interface.
type gorillaConnAdapter struct {
	conn *gorillawebsocket.Conn
}

func (a *gorillaConnAdapter) ReadMessage() (int, []byte, error) {
	return a.conn.ReadMessage()
}

func (a *gorillaConnAdapter) WriteMessage(messageType int, data []byte) error {
	return a.conn.WriteMessage(messageType, data)
}

func (a *gorillaConnAdapter) Close() error {
	return a.conn.Close()
}
