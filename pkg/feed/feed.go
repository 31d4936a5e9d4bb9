// Package feed records operator-visible events. Recording is fire-and-forget:
// a failing sink never interrupts the scan that produced the event.
package feed

import (
	"context"
	"time"

	"github.com/google/uuid"
	"prompthunter/pkg/logger"
	"prompthunter/pkg/models"
)

// Sink accepts events
type Sink interface {
	Record(ctx context.Context, kind models.EventKind, message string, details map[string]interface{})
}

// EventStore persists events, keeping at most limit of the newest
type EventStore interface {
	RecordEvent(ctx context.Context, event models.Event, limit int) error
}

// StoreSink writes events to an EventStore
type StoreSink struct {
	store  EventStore
	limit  int
	now    func() time.Time
	logger logger.Logger
}

// NewStoreSink creates a sink that keeps the newest limit events
func NewStoreSink(store EventStore, limit int, log logger.Logger) *StoreSink {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &StoreSink{store: store, limit: limit, now: time.Now, logger: log}
}

// Record stores the event; failures are logged at debug level and dropped
func (s *StoreSink) Record(ctx context.Context, kind models.EventKind, message string, details map[string]interface{}) {
	event := models.Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		Details:   details,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.RecordEvent(ctx, event, s.limit); err != nil {
		s.logger.WithError(err).DebugWithFields("failed to record event", map[string]interface{}{
			"kind":    string(kind),
			"message": message,
		})
	}
}

// LoggerSink mirrors events into the structured log
type LoggerSink struct {
	logger logger.Logger
}

// NewLoggerSink creates a sink backed by l
func NewLoggerSink(l logger.Logger) *LoggerSink {
	return &LoggerSink{logger: l}
}

// Record logs the event at a level matching its kind
func (s *LoggerSink) Record(_ context.Context, kind models.EventKind, message string, details map[string]interface{}) {
	l := s.logger.WithField("event", string(kind))
	switch kind {
	case models.EventError:
		l.ErrorWithFields(message, details)
	case models.EventWarning:
		l.WarnWithFields(message, details)
	case models.EventAPI:
		l.DebugWithFields(message, details)
	default:
		l.InfoWithFields(message, details)
	}
}

// Multi fans an event out to several sinks
type Multi []Sink

// Record forwards to every sink
func (m Multi) Record(ctx context.Context, kind models.EventKind, message string, details map[string]interface{}) {
	for _, s := range m {
		s.Record(ctx, kind, message, details)
	}
}

// Discard drops every event
type Discard struct{}

// Record does nothing
func (Discard) Record(context.Context, models.EventKind, string, map[string]interface{}) {}

// Recorder keeps events in memory, for tests and dry runs
type Recorder struct {
	Events []models.Event
}

// Record appends the event
func (r *Recorder) Record(_ context.Context, kind models.EventKind, message string, details map[string]interface{}) {
	r.Events = append(r.Events, models.Event{Kind: kind, Message: message, Details: details})
}

// Kinds lists recorded kinds in order
func (r *Recorder) Kinds() []models.EventKind {
	kinds := make([]models.EventKind, len(r.Events))
	for i, e := range r.Events {
		kinds[i] = e.Kind
	}
	return kinds
}
