// Package events broadcasts sync lifecycle events to WebSocket clients.
//
// The Hub is an http.Handler meant to be mounted at /ws. Producers call
// Publish; a single broadcast goroutine fans each message out to every
// connected client. Clients that fail a write are dropped.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// MessageType names an event.
type MessageType string

const (
	// MessageTypeConnected is sent once to each new client
	MessageTypeConnected MessageType = "connected"

	// MessageTypeSyncStarted indicates a sync run began
	MessageTypeSyncStarted MessageType = "sync_started"

	// MessageTypeSyncComplete indicates a sync run committed
	MessageTypeSyncComplete MessageType = "sync_complete"

	// MessageTypeSyncError indicates a sync run failed and the project is in error
	MessageTypeSyncError MessageType = "sync_error"
)

// Message is one broadcast frame.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// SyncData describes a sync run.
type SyncData struct {
	RunID   string `json:"run_id"`
	Slug    string `json:"slug"`
	Added   int    `json:"added"`
	Updated int    `json:"updated"`
	Skipped int    `json:"skipped"`
	Deleted int    `json:"deleted"`
	Errors  int    `json:"errors"`
	Error   string `json:"error,omitempty"`
}

// ConnectedData is the payload of the welcome message.
type ConnectedData struct {
	Clients int `json:"clients"`
}

// NewMessage marshals data into a Message of type typ.
func NewMessage(typ MessageType, data any) (Message, error) {
	msg := Message{Type: typ, Timestamp: time.Now().UTC()}
	if data == nil {
		return msg, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal %s data: %w", typ, err)
	}
	msg.Data = raw
	return msg, nil
}

// writeTimeout bounds each write to a client.
const writeTimeout = 5 * time.Second

// Hub manages WebSocket clients and broadcasts messages to them.
type Hub struct {
	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once

	// originPatterns are accepted cross-origin hosts; same-origin is
	// always accepted
	originPatterns []string

	logger *log.Logger
}

// NewHub creates a hub. Call Start before publishing.
//
// If logger is nil, a default logger writing to stderr is used.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(os.Stderr, "[events] ", log.LstdFlags)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}
}

// AllowOrigins sets the host patterns (path.Match syntax) whose pages may
// connect in addition to same-origin ones. Call it before serving.
func (h *Hub) AllowOrigins(patterns ...string) {
	h.originPatterns = append([]string(nil), patterns...)
}

// Start launches the broadcast loop. Calling it more than once has no effect.
func (h *Hub) Start() {
	h.startOnce.Do(func() {
		h.wg.Add(1)
		go h.broadcastLoop()
	})
}

// Stop disconnects every client and waits for the broadcast loop to exit.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		h.cancel()

		h.clientsMu.Lock()
		for conn := range h.clients {
			_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
			delete(h.clients, conn)
		}
		h.clientsMu.Unlock()

		h.wg.Wait()
	})
}

// Publish queues msg for broadcast. It never blocks; when the queue is full
// the message is dropped with a warning.
func (h *Hub) Publish(msg Message) {
	select {
	case <-h.ctx.Done():
		return
	default:
	}

	select {
	case h.broadcast <- msg:
	default:
		h.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcastLoop() {
	defer h.wg.Done()

	for {
		select {
		case <-h.ctx.Done():
			return

		case msg := <-h.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now().UTC()
			}

			data, err := json.Marshal(msg)
			if err != nil {
				h.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			h.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(h.clients))
			for conn := range h.clients {
				clients = append(clients, conn)
			}
			h.clientsMu.RUnlock()

			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					h.logger.Printf("Failed to send to client: %v", err)
					h.removeClient(conn)
				}
			}
		}
	}
}

// ServeHTTP upgrades the request to a WebSocket and holds it open until the
// client disconnects or the hub stops.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.clientsMu.Lock()
	h.clients[conn] = true
	clientCount := len(h.clients)
	h.clientsMu.Unlock()

	h.logger.Printf("Client connected (total: %d)", clientCount)

	welcome, err := NewMessage(MessageTypeConnected, ConnectedData{Clients: clientCount})
	if err == nil {
		data, _ := json.Marshal(welcome)
		ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
		_ = conn.Write(ctx, websocket.MessageText, data)
		cancel()
	}

	h.readLoop(conn)
}

// readLoop drains client frames until the connection closes. Client
// messages carry no meaning.
func (h *Hub) readLoop(conn *websocket.Conn) {
	defer h.removeClient(conn)

	for {
		if _, _, err := conn.Read(h.ctx); err != nil {
			return
		}
	}
}

func (h *Hub) removeClient(conn *websocket.Conn) {
	h.clientsMu.Lock()
	if _, exists := h.clients[conn]; exists {
		delete(h.clients, conn)
		clientCount := len(h.clients)
		h.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		h.logger.Printf("Client disconnected (total: %d)", clientCount)
	} else {
		h.clientsMu.Unlock()
	}
}
