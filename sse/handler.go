package sse

import (
	"fmt"
	"net/http"
	"time"
)

// StreamOptions tunes a single connection.
type StreamOptions struct {
	// Initial events are written right after the connected event, e.g. a
	// snapshot of current state. A Final initial event ends the stream.
	Initial   []Event
	KeepAlive time.Duration
}

// ServeSSE streams events for clientID until the request is cancelled, the
// hub stops, or a Final event is written.
func ServeSSE(hub *Hub, w http.ResponseWriter, r *http.Request, clientID string, opts StreamOptions) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = 30 * time.Second
	}

	// Long-lived stream; the server's WriteTimeout must not cut it off.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	client := NewClient(clientID)
	if !hub.Register(client) {
		return
	}
	defer hub.Unregister(client)

	writeEvent(w, Event{Type: EventTypeConnected, Data: fmt.Appendf(nil, `{"client_id":%q}`, clientID)})
	for _, ev := range opts.Initial {
		writeEvent(w, ev)
		if ev.Final {
			flusher.Flush()
			return
		}
	}
	flusher.Flush()

	keepAlive := time.NewTicker(opts.KeepAlive)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-client.Events():
			if !ok {
				return
			}
			writeEvent(w, ev)
			flusher.Flush()
			if ev.Final {
				return
			}
		case <-keepAlive.C:
			_, _ = fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix())
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, ev Event) {
	if ev.Type != "" {
		_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", ev.Data)
}
