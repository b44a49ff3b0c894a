package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"squizy/internal/model"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MsgSnapshot MessageType = "snapshot"
	MsgError    MessageType = "error"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SnapshotSource streams whole-document snapshots of a room
type SnapshotSource interface {
	Subscribe(ctx context.Context, code string) (<-chan model.Update, error)
}

// Connection represents a WebSocket connection to one room
type Connection struct {
	RoomCode string
	Send     chan []byte
	Hub      *Hub
}

// room is one followed store subscription and its connections
type room struct {
	conns  map[*Connection]struct{}
	last   []byte
	cancel context.CancelFunc
}

// BroadcastMessage is a snapshot to push to every connection of a room
type BroadcastMessage struct {
	RoomCode string
	room     *room
	Data     []byte
}

// Hub fans room snapshots out to WebSocket connections. It follows a room in
// the store while at least one connection is open for it.
type Hub struct {
	source SnapshotSource
	rooms  map[string]*room // only touched by run

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *BroadcastMessage
	connCount  chan chan map[string]int
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub creates a new WebSocket hub
func NewHub(source SnapshotSource) *Hub {
	h := &Hub{
		source:     source,
		rooms:      make(map[string]*room),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan *BroadcastMessage, 256),
		connCount:  make(chan chan map[string]int),
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			for code, rm := range h.rooms {
				rm.cancel()
				for conn := range rm.conns {
					close(conn.Send)
				}
				delete(h.rooms, code)
			}
			return

		case conn := <-h.register:
			rm, ok := h.rooms[conn.RoomCode]
			if !ok {
				ctx, cancel := context.WithCancel(context.Background())
				rm = &room{conns: make(map[*Connection]struct{}), cancel: cancel}
				h.rooms[conn.RoomCode] = rm
				go h.follow(ctx, conn.RoomCode, rm)
			}
			rm.conns[conn] = struct{}{}
			if rm.last != nil {
				conn.Send <- rm.last // fresh buffer, never blocks
			}
			log.Printf("[relay] client connected to room %s (%d open)", conn.RoomCode, len(rm.conns))

		case conn := <-h.unregister:
			h.remove(conn)

		case msg := <-h.broadcast:
			rm, ok := h.rooms[msg.RoomCode]
			if !ok || rm != msg.room {
				continue // stale subscription
			}
			rm.last = msg.Data
			for conn := range rm.conns {
				select {
				case conn.Send <- msg.Data:
				default:
					// A client that cannot keep up would miss the latest state
					log.Printf("[relay] room %s: dropping slow client", msg.RoomCode)
					h.remove(conn)
				}
			}

		case reply := <-h.connCount:
			counts := make(map[string]int, len(h.rooms))
			for code, rm := range h.rooms {
				counts[code] = len(rm.conns)
			}
			reply <- counts
		}
	}
}

// remove must only be called from run
func (h *Hub) remove(conn *Connection) {
	rm, ok := h.rooms[conn.RoomCode]
	if !ok {
		return
	}
	if _, ok := rm.conns[conn]; !ok {
		return
	}
	delete(rm.conns, conn)
	close(conn.Send)
	log.Printf("[relay] client disconnected from room %s (%d open)", conn.RoomCode, len(rm.conns))

	if len(rm.conns) == 0 {
		rm.cancel()
		delete(h.rooms, conn.RoomCode)
	}
}

// follow forwards store snapshots of one room into the broadcast loop
func (h *Hub) follow(ctx context.Context, code string, rm *room) {
	ch, err := h.source.Subscribe(ctx, code)
	if err != nil {
		log.Printf("[relay] room %s: subscribe failed: %v", code, err)
		return
	}
	for u := range ch {
		data, err := Encode(MsgSnapshot, u)
		if err != nil {
			log.Printf("[relay] room %s: encode snapshot: %v", code, err)
			continue
		}
		select {
		case h.broadcast <- &BroadcastMessage{RoomCode: code, room: rm, Data: data}:
		case <-ctx.Done():
			return
		case <-h.done:
			return
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
		close(conn.Send)
	}
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Connections returns the number of open connections per followed room
func (h *Hub) Connections() map[string]int {
	reply := make(chan map[string]int, 1)
	select {
	case h.connCount <- reply:
		return <-reply
	case <-h.done:
		return map[string]int{}
	}
}

// Close disconnects every client and stops following rooms
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Encode wraps a payload in the message envelope
func Encode(t MessageType, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Message{Type: t, Payload: data})
}
