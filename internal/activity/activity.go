package activity

import (
	"log/slog"
	"time"
)

// Event is one structured activity entry.
type Event struct {
	Time   time.Time      `json:"time"`
	Action string         `json:"action"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Logger records activity events. Implementations must be safe for
// concurrent use and must never block the caller on slow storage.
type Logger interface {
	Record(event Event)
}

// ErrorSink records failure messages.
type ErrorSink interface {
	RecordError(message string)
}

// NewEvent stamps an event with the current time.
func NewEvent(action string, fields map[string]any) Event {
	return Event{Time: time.Now().UTC(), Action: action, Fields: fields}
}

// SlogSink adapts a slog.Logger into both sink interfaces. Useful in tests
// and for running without the journal database.
type SlogSink struct {
	Logger *slog.Logger
}

// Record implements Logger.
func (s SlogSink) Record(event Event) {
	if s.Logger == nil {
		return
	}
	attrs := make([]any, 0, len(event.Fields)+1)
	attrs = append(attrs, slog.String("action", event.Action))
	for key, value := range event.Fields {
		attrs = append(attrs, slog.Any(key, value))
	}
	s.Logger.Info("activity", attrs...)
}

// RecordError implements ErrorSink.
func (s SlogSink) RecordError(message string) {
	if s.Logger == nil {
		return
	}
	s.Logger.Error("activity error", slog.String("message", message))
}

// Nop discards everything.
type Nop struct{}

func (Nop) Record(Event) {}

func (Nop) RecordError(string) {}
