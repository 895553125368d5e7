package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"
)

// SSEWriter helps write Server-Sent Events
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter creates a new SSE writer
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends an SSE event
func (s *SSEWriter) WriteEvent(event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.writeRaw(event, jsonData)
}

func (s *SSEWriter) writeRaw(event string, data []byte) error {
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteError sends an error event
func (s *SSEWriter) WriteError(message string) {
	s.WriteEvent("error", map[string]string{"error": message}) //nolint:errcheck
}

// WriteComplete sends the completion event of a report.
func (s *SSEWriter) WriteComplete(reportID, status string) {
	s.WriteEvent("complete", map[string]string{ //nolint:errcheck
		"reportId": reportID,
		"status":   status,
	})
}

// handleProgressStream pushes a "progress" event whenever the snapshot changes and
// a "complete" event once the report reaches a terminal status.
func (s *Server) handleProgressStream(w http.ResponseWriter, r *http.Request) {
	userID, err := s.pathUser(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rt := reportType(r)
	// reject a bad report type before switching to event-stream
	if _, err := s.service.Progress(r.Context(), userID, rt); err != nil {
		s.writeError(w, r, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	// a report running overtime keeps its stream past the server write timeout
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		log.Printf("[sse] failed to clear write deadline: %v", err)
	}
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	var last []byte
	for {
		progress, err := s.service.Progress(r.Context(), userID, rt)
		if err != nil {
			if r.Context().Err() == nil {
				sse.WriteError("Failed to read progress")
			}
			return
		}

		data, err := json.Marshal(progress)
		if err != nil {
			sse.WriteError(err.Error())
			return
		}
		if !bytes.Equal(data, last) {
			if err := sse.writeRaw("progress", data); err != nil {
				return
			}
			last = data
		}
		if progress.OverallStatus.IsTerminal() {
			sse.WriteComplete(progress.ReportID, string(progress.OverallStatus))
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
