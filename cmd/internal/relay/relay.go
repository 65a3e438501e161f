// Package relay fans appointment-change events out to every listener
// currently connected to the appointments WebSocket endpoint. Delivery
// is best-effort: nothing is persisted, and a listener that is
// disconnected (or too slow to drain its buffer) misses the event.
package relay

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// Event is the payload fanned out to every member of the group.
type Event struct {
	Message string `json:"message"`
}

// Listener is one connected WebSocket client.
type Listener struct {
	ID   string
	Send chan []byte
}

// Group is a named broadcast set. Membership is the only shared mutable
// state in the system; it is guarded by the RWMutex.
type Group struct {
	mu      sync.RWMutex
	members map[*Listener]struct{}
}

func NewGroup() *Group {
	return &Group{members: make(map[*Listener]struct{})}
}

func (g *Group) Join(l *Listener) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members[l] = struct{}{}
}

// Leave removes the listener and closes its Send channel, which stops
// its write pump.
func (g *Group) Leave(l *Listener) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.members[l]; !ok {
		return
	}
	delete(g.members, l)
	close(l.Send)
}

// Publish delivers the event to every current member, including the
// publisher if it is connected. Publish never blocks: a member whose
// buffer is full is skipped.
func (g *Group) Publish(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Errorf("relay: failed to marshal event: %v", err)
		return
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	for member := range g.members {
		select {
		case member.Send <- data:
		default:
			// Member buffer full; skip to avoid blocking.
		}
	}
}

func (g *Group) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.members)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; tighten in production.
	},
}

// Handler upgrades HTTP requests to WebSocket connections on the
// appointments group.
type Handler struct {
	group *Group
}

func NewHandler(group *Group) *Handler {
	return &Handler{group: group}
}

// HandleAppointments joins the caller to the group and starts its
// read/write pumps. An inbound {"message": ...} frame is re-broadcast
// to every member, the sender included.
func (h *Handler) HandleAppointments(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	listener := &Listener{
		ID:   uuid.New().String(),
		Send: make(chan []byte, 256),
	}
	h.group.Join(listener)

	go h.writePump(listener, ws)
	go h.readPump(listener, ws)

	return nil
}

func (h *Handler) readPump(l *Listener, ws *websocket.Conn) {
	defer func() {
		h.group.Leave(l)
		ws.Close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			break
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			continue // Ignore malformed frames.
		}

		h.group.Publish(event)
	}
}

func (h *Handler) writePump(l *Listener, ws *websocket.Conn) {
	defer ws.Close()

	for data := range l.Send {
		if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
			break
		}
	}
}
