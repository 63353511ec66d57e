package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/facegate/internal/detector"
	"github.com/ayusman/facegate/internal/notify"
	"github.com/ayusman/facegate/internal/render"
)

const (
	writeWait    = 2 * time.Second
	resultBuffer = 4
	eventBuffer  = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Message is a frame sent to detection clients.
type Message struct {
	Type string `json:"type"` // "result" or "event"

	Seq        uint64               `json:"seq,omitempty"`
	Mode       string               `json:"mode,omitempty"`
	Captures   int                  `json:"captures,omitempty"`
	Fault      bool                 `json:"fault,omitempty"`
	Width      int                  `json:"width,omitempty"`
	Height     int                  `json:"height,omitempty"`
	Detections []detector.Detection `json:"detections,omitempty"`

	Event *notify.Event `json:"event,omitempty"`

	Timestamp int64 `json:"timestamp"`
}

type client struct {
	conn    *websocket.Conn
	results chan []byte
	events  chan []byte
	done    chan struct{}
}

// DetectionsHub pushes routed results and session events to WebSocket
// clients. It is a render.Sink and a notify.Notifier; slow clients miss
// messages rather than stall the pipeline.
type DetectionsHub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

var (
	_ render.Sink     = (*DetectionsHub)(nil)
	_ notify.Notifier = (*DetectionsHub)(nil)
)

// NewDetectionsHub creates an empty hub.
func NewDetectionsHub() *DetectionsHub {
	return &DetectionsHub{clients: make(map[*client]struct{})}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *DetectionsHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	c := &client{
		conn:    conn,
		results: make(chan []byte, resultBuffer),
		events:  make(chan []byte, eventBuffer),
		done:    make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writeLoop()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	close(c.done)
	conn.Close()
}

// writeLoop writes queued messages, events first.
func (c *client) writeLoop() {
	for {
		var msg []byte
		select {
		case <-c.done:
			return
		case msg = <-c.events:
		default:
			select {
			case <-c.done:
				return
			case msg = <-c.events:
			case msg = <-c.results:
			}
		}

		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			// the read loop sees the closed connection and unregisters us
			c.conn.Close()
			return
		}
	}
}

// Clients returns the number of connected clients.
func (h *DetectionsHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Render broadcasts a routed result.
func (h *DetectionsHub) Render(r render.Result) {
	if h.Clients() == 0 {
		return
	}
	h.broadcast(false, Message{
		Type:       "result",
		Seq:        r.Seq,
		Mode:       r.Mode,
		Captures:   r.Captures,
		Fault:      r.Fault,
		Width:      r.Frame.Width,
		Height:     r.Frame.Height,
		Detections: r.Detections,
		Timestamp:  r.At.UnixMilli(),
	})
}

// Notify broadcasts a session event.
func (h *DetectionsHub) Notify(e notify.Event) {
	h.broadcast(true, Message{
		Type:      "event",
		Event:     &e,
		Timestamp: e.At.UnixMilli(),
	})
}

func (h *DetectionsHub) broadcast(event bool, m Message) {
	msg, err := json.Marshal(m)
	if err != nil {
		log.Printf("detections: marshal: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		queue := c.results
		if event {
			queue = c.events
		}
		select {
		case queue <- msg:
		default:
		}
	}
}
