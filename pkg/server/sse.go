package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ubitech/deskmate/pkg/bus"
)

// handleEvents streams store events to the client as server-sent events.
// The subject becomes the SSE event name and the payload the data line.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := make(chan *bus.Message, 64)
	sub, err := s.store.Subscribe(r.Context(), "deskmate.store.*", func(msg *bus.Message) {
		select {
		case events <- msg:
		default:
			// Slow consumer, drop
		}
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	defer sub.Unsubscribe()

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg := <-events:
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Subject, msg.Data)
			flusher.Flush()
		}
	}
}
