// Package hub streams catalog events to browsers as server-sent events.
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/xid"
	log "github.com/sirupsen/logrus"

	"diffkit/internal/service"
)

// KeepAlive is the interval between comment lines on idle streams
var KeepAlive = 30 * time.Second

type client struct {
	id     string
	frames chan []byte
}

// Hub owns the set of open event streams. All membership changes and
// fan-out happen on the Run goroutine.
type Hub struct {
	mu      sync.RWMutex
	streams map[*client]struct{}

	join   chan *client
	leave  chan *client
	events chan service.Event
	done   chan struct{}
	seq    uint64

	log log.FieldLogger
}

// New creates a Hub. Nothing is delivered until Run is started.
func New() *Hub {
	return &Hub{
		streams: make(map[*client]struct{}),
		join:    make(chan *client),
		leave:   make(chan *client),
		events:  make(chan service.Event, 256),
		done:    make(chan struct{}),
		log:     log.WithField("component", "sse"),
	}
}

// frame renders one SSE message: a sequence id, the event type as the SSE
// event name and the JSON event as data.
func frame(id uint64, ev service.Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "id: %d\nevent: %s\ndata: %s\n\n", id, ev.Type, data)
	return b.Bytes(), nil
}

// Run serves joins, leaves and broadcasts until ctx is done, then closes
// every stream.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.join:
			h.mu.Lock()
			h.streams[c] = struct{}{}
			n := len(h.streams)
			h.mu.Unlock()
			h.log.WithFields(log.Fields{"client": c.id, "streams": n}).Debug("stream opened")

		case c := <-h.leave:
			h.mu.Lock()
			if _, ok := h.streams[c]; ok {
				delete(h.streams, c)
				close(c.frames)
			}
			n := len(h.streams)
			h.mu.Unlock()
			h.log.WithFields(log.Fields{"client": c.id, "streams": n}).Debug("stream closed")

		case ev := <-h.events:
			h.seq++
			msg, err := frame(h.seq, ev)
			if err != nil {
				h.log.WithError(err).Error("failed to encode event")
				continue
			}
			h.mu.RLock()
			for c := range h.streams {
				select {
				case c.frames <- msg:
				default:
					h.log.WithFields(log.Fields{"client": c.id, "event": ev.Type}).Warn("stream is behind, event dropped")
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.streams {
				delete(h.streams, c)
				close(c.frames)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Broadcast queues ev for every open stream. A full queue drops the event.
func (h *Hub) Broadcast(ev service.Event) {
	select {
	case h.events <- ev:
	default:
		h.log.WithField("event", ev.Type).Warn("broadcast queue full, event dropped")
	}
}

// Forward subscribes to bus and broadcasts its events until ctx is done.
func (h *Hub) Forward(ctx context.Context, bus *service.EventBus) {
	ch := make(chan service.Event, 100)
	bus.Subscribe(ch)
	go func() {
		defer bus.Unsubscribe(ch)
		for {
			select {
			case ev := <-ch:
				h.Broadcast(ev)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// ClientCount returns the number of open streams
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams)
}

// ServeHTTP opens an event stream for the request
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	c := &client{
		id:     xid.New().String(),
		frames: make(chan []byte, 64),
	}
	select {
	case h.join <- c:
	case <-h.done:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	case <-r.Context().Done():
		return
	}
	defer func() {
		select {
		case h.leave <- c:
		case <-h.done:
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.frames:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
