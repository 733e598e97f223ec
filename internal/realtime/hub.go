// Package realtime pushes ride events to connected websocket clients so ride
// lists can refresh without polling.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/yourorg/sity/internal/events"
)

const (
	pingInterval   = 30 * time.Second
	pongWait       = 60 * time.Second
	writeWait      = 10 * time.Second
	maxMessageSize = 1024
	sendBuffer     = 64
)

type client struct {
	id     string
	rideID string // empty means every ride
	conn   *websocket.Conn
	send   chan []byte
}

type message struct {
	rideID string
	body   []byte
}

// Hub tracks feed subscribers. Run owns the client map; everything else talks
// to it through channels. done is closed when Run returns.
type Hub struct {
	clients    map[string]*client
	done       chan struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan message
	count      chan chan int
	logger     *slog.Logger
}

// NewHub creates a hub; call Run before serving connections
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[string]*client),
		done:       make(chan struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan message, 256),
		count:      make(chan chan int),
		logger:     logger,
	}
}

// Run processes registrations and broadcasts until ctx is done
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
			}
			h.logger.Info("ride feed hub stopped")
			return

		case c := <-h.register:
			h.clients[c.id] = c
			h.logger.Debug("feed client registered",
				slog.String("client_id", c.id),
				slog.String("ride_id", c.rideID),
			)

		case c := <-h.unregister:
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
				h.logger.Debug("feed client unregistered", slog.String("client_id", c.id))
			}

		case msg := <-h.broadcast:
			for id, c := range h.clients {
				if c.rideID != "" && c.rideID != msg.rideID {
					continue
				}
				select {
				case c.send <- msg.body:
				default:
					// Slow consumer; drop it rather than stall the hub.
					close(c.send)
					delete(h.clients, id)
					h.logger.Warn("feed client dropped", slog.String("client_id", id))
				}
			}

		case reply := <-h.count:
			reply <- len(h.clients)
		}
	}
}

// Publish implements events.Publisher. It never blocks on slow clients.
func (h *Hub) Publish(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	select {
	case h.broadcast <- message{rideID: event.RideID, body: body}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("ride feed broadcast queue full")
	}
}

// Clients returns the number of connected subscribers
func (h *Hub) Clients(ctx context.Context) (int, error) {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case n := <-reply:
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Serve registers an upgraded connection and pumps events to it until the
// peer goes away. rideID narrows the feed to one ride.
func (h *Hub) Serve(conn *websocket.Conn, rideID string) {
	c := &client{
		id:     uuid.NewString(),
		rideID: rideID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go h.writePump(c)
	h.readPump(c)
}

// readPump only exists to notice closes and answer pongs
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("feed read ended",
					slog.String("client_id", c.id),
					slog.String("reason", err.Error()),
				)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case body, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, body); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
