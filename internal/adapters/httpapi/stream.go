package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bnema/numsel/internal/application"
	"github.com/bnema/numsel/internal/domain"
)

// handleStream serves one Server-Sent Events stream per client. Each
// delivery from the sync channel becomes a "snapshot" event; a lagging
// client only ever sees the most recent one.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "streaming_unsupported", Message: "response does not support flushing"})
		return
	}

	updates := make(chan domain.Snapshot, 1)
	sub, err := s.channel.Subscribe(r.Context(), func(snapshot domain.Snapshot) {
		for {
			select {
			case updates <- snapshot:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer sub.Unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.logger.Debug("stream opened", "subscription", sub.ID(), "client", s.clientKey(r))

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("stream closed", "subscription", sub.ID())
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case snapshot := <-updates:
			data, err := json.Marshal(application.Summarize(snapshot))
			if err != nil {
				s.logger.Error("encode snapshot", "error", err)
				return
			}
			if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
