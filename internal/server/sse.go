package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/jonathan/job-applier/internal/types"
)

// SSE event names
const (
	eventProgress = "progress"
	eventResult   = "result"
	eventError    = "error"
)

var errStreamClosed = errors.New("event stream closed")

// eventStream writes numbered Server-Sent Events. Emit may be called from the
// pipeline goroutine while the handler writes the final event.
type eventStream struct {
	mu     sync.Mutex
	w      http.ResponseWriter
	rc     *http.ResponseController
	nextID int
	closed bool // set after the first failed write
}

// openEventStream sends the stream headers and flushes them so the client sees
// the response start before the first event.
func openEventStream(w http.ResponseWriter) (*eventStream, error) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return nil, fmt.Errorf("streaming not supported: %w", err)
	}
	return &eventStream{w: w, rc: rc, nextID: 1}, nil
}

// send writes one event. Once a write fails the stream drops further events.
func (s *eventStream) send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStreamClosed
	}
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.nextID, event, payload); err != nil {
		s.closed = true
		return err
	}
	s.nextID++
	if err := s.rc.Flush(); err != nil {
		s.closed = true
		return err
	}
	return nil
}

// Emit forwards a pipeline progress event; a disconnected client is ignored.
func (s *eventStream) Emit(event types.ProgressEvent) {
	_ = s.send(eventProgress, event)
}

func (s *eventStream) result(result *types.ApplicationResult) {
	_ = s.send(eventResult, result)
}

func (s *eventStream) fail(message string) {
	_ = s.send(eventError, map[string]string{"error": message})
}
