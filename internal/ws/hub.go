package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dinein-pos/api/internal/notify"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AllTables is the room staff terminals join; it receives every table's events.
var AllTables = uuid.Nil

// ErrBacklogFull is returned when the hub cannot accept another event.
var ErrBacklogFull = errors.New("websocket hub backlog full")

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	TableID uuid.UUID       `json:"table_id"`
	Payload json.RawMessage `json:"payload"`
}

// tableEvent is an internal struct for routing events to a table's room
type tableEvent struct {
	TableID uuid.UUID
	Message []byte
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by table ID (AllTables for staff)
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *tableEvent
	done       chan struct{}

	mu     sync.RWMutex
	logger *zap.Logger
}

// NewHub creates a new Hub instance
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *tableEvent, 256),
		done:       make(chan struct{}),
		logger:     logger.Named("ws"),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.tableID] == nil {
				h.rooms[client.tableID] = make(map[*Client]bool)
			}
			h.rooms[client.tableID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			h.sendLocked(event.TableID, event.Message)
			if event.TableID != AllTables {
				h.sendLocked(AllTables, event.Message)
			}
			h.mu.Unlock()
		}
	}
}

// join and leave give up once Run has returned.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) sendLocked(room uuid.UUID, message []byte) {
	for client := range h.rooms[room] {
		select {
		case client.send <- message:
		default:
			// Slow consumer: drop it rather than stall every table.
			h.removeLocked(client)
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.rooms[client.tableID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.tableID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.rooms {
		for client := range clients {
			h.removeLocked(client)
		}
	}
}

// BroadcastToTable queues an event for a table's room and the staff room.
// It never blocks; a full backlog drops the event.
func (h *Hub) BroadcastToTable(tableID uuid.UUID, event Event) error {
	message, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	select {
	case h.broadcast <- &tableEvent{TableID: tableID, Message: message}:
		return nil
	default:
		return ErrBacklogFull
	}
}

// Notify implements notify.Notifier.
func (h *Hub) Notify(_ context.Context, evt notify.Event) error {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return h.BroadcastToTable(evt.TableID, Event{
		Type:    evt.Type,
		TableID: evt.TableID,
		Payload: payload,
	})
}

var _ notify.Notifier = (*Hub)(nil)
