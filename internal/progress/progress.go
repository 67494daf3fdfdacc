// Package progress delivers pipeline progress events to streaming consumers.
// Delivery is fire-and-forget: a sink never reports failure to the pipeline.
package progress

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/jonathan/job-applier/internal/types"
)

// EventType is the type tag carried by every progress event
const EventType = "progress"

// Sink receives progress events
type Sink interface {
	Emit(event types.ProgressEvent)
}

// Func adapts a plain callback to a Sink
type Func func(event types.ProgressEvent)

// Emit calls f
func (f Func) Emit(event types.ProgressEvent) {
	if f != nil {
		f(event)
	}
}

// Discard drops every event
var Discard Sink = Func(nil)

// NewEvent builds a progress event against the fixed step total
func NewEvent(action string, step int, status types.StepStatus, message string) types.ProgressEvent {
	return types.ProgressEvent{
		Type:       EventType,
		Action:     action,
		Step:       step,
		TotalSteps: types.TotalSteps,
		Status:     status,
		Message:    message,
	}
}

// LineWriter writes one JSON object per line
type LineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLineWriter returns a newline-delimited JSON sink over w
func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: w}
}

// Emit writes the event; encoding and write errors are dropped
func (l *LineWriter) Emit(event types.ProgressEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.w.Write(data)
}

type multi []Sink

func (m multi) Emit(event types.ProgressEvent) {
	for _, s := range m {
		s.Emit(event)
	}
}

// Multi fans events out to every non-nil sink in order
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Recorder keeps every event in memory
type Recorder struct {
	mu     sync.Mutex
	events []types.ProgressEvent
}

// Emit appends the event
func (r *Recorder) Emit(event types.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []types.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.ProgressEvent(nil), r.events...)
}
