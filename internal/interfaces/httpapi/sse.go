package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"tradefeed/internal/application"
)

// streamTransactions pushes aggregator events over server-sent events.
// The per-request context cancels the producer when the client goes away.
func (s *Server) streamTransactions(w http.ResponseWriter, r *http.Request, fid uint64) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for event := range s.source.StreamByFID(r.Context(), fid) {
		if err := writeSSEEvent(w, event); err != nil {
			// Broken pipe: draining stops here, the request context
			// unwinds the producer goroutine.
			return
		}
		flusher.Flush()
	}
}

func writeSSEEvent(w io.Writer, event application.StreamEvent) error {
	payload, err := json.Marshal(ssePayload(event))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload)
	return err
}

func ssePayload(event application.StreamEvent) any {
	switch event.Type {
	case application.StreamEventTransaction:
		return event.Transactions
	case application.StreamEventError:
		return map[string]string{"message": event.Message, "error": event.Detail}
	default:
		return map[string]string{"message": event.Message}
	}
}
