package realtime

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/soundcheck-live/soundcheck/logging"
	"github.com/soundcheck-live/soundcheck/metrics"
	"github.com/soundcheck-live/soundcheck/setlist"
)

// Hub fans events out to the websocket clients watching each show. It runs
// under a suture supervisor; while it isn't running, new connections are
// refused and Connected reports false so views can say so.
type Hub struct {
	mu    sync.Mutex
	shows map[string]map[*client]bool

	events  chan setlist.Event
	serving atomic.Bool

	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		shows:  map[string]map[*client]bool{},
		events: make(chan setlist.Event, 256),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The voting surface is same-origin in production and the
			// events carry nothing sensitive.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Serve drains the broadcast queue until the context is canceled. It
// implements suture.Service.
func (h *Hub) Serve(ctx context.Context) error {
	h.serving.Store(true)
	defer func() {
		h.serving.Store(false)
		h.closeAll()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-h.events:
			h.broadcast(ev)
		}
	}
}

// Connected reports whether the hub is running and able to deliver events.
func (h *Hub) Connected() bool { return h.serving.Load() }

// Broadcast queues an event for fan-out without blocking the caller. When
// the queue is full the event is dropped; clients converge on the next one
// since events carry absolute counts.
func (h *Hub) Broadcast(ev setlist.Event) {
	select {
	case h.events <- ev:
	default:
		logging.Warn().Str("show", ev.ShowID).Msg("event backlog full, dropping broadcast")
	}
}

// HandleWS upgrades the request and streams the show's events to it until
// either side hangs up.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request, showID string) {
	if showID == "" {
		http.Error(w, "no show id", http.StatusBadRequest)
		return
	}
	if !h.serving.Load() {
		http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade wrote the error response already.
		logging.Debug().Err(err).Str("show", showID).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		hub:    h,
		conn:   conn,
		showID: showID,
		send:   make(chan setlist.Event, 32),
	}
	h.add(c)
	go c.writePump()
	go c.readPump()
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.shows[c.showID] == nil {
		h.shows[c.showID] = map[*client]bool{}
	}
	h.shows[c.showID][c] = true
	metrics.WSClients.Inc()
}

// remove drops the client and closes its send channel. Safe to call twice;
// only the first call does anything.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	clients, ok := h.shows[c.showID]
	if !ok || !clients[c] {
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.shows, c.showID)
	}
	close(c.send)
	metrics.WSClients.Dec()
}

func (h *Hub) broadcast(ev setlist.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.shows[ev.ShowID] {
		select {
		case c.send <- ev:
		default:
			// A consumer this far behind is better dropped than waited on.
			h.removeLocked(c)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.shows {
		for c := range clients {
			close(c.send)
			metrics.WSClients.Dec()
		}
	}
	h.shows = map[string]map[*client]bool{}
}

func (h *Hub) String() string { return "realtime-hub" }
