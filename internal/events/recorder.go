// Package events records side-channel notifications, such as reaction
// acknowledgements, against a reply session without dispatching a reply.
package events

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const defaultSeenCapacity = 1024

// Event is one recorded notification.
type Event struct {
	Text       string    `json:"text"`
	SessionKey string    `json:"session_key"`
	ContextKey string    `json:"context_key,omitempty"`
	At         time.Time `json:"at"`
}

// Sink receives recorded events.
type Sink interface {
	Record(ctx context.Context, ev Event) error
}

// LogSink writes events to the logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink builds a sink that logs each event.
func NewLogSink(log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.Default()
	}
	return &LogSink{logger: log.With(slog.String("component", "events"))}
}

// Record logs the event.
func (s *LogSink) Record(_ context.Context, ev Event) error {
	s.logger.Info("system event",
		slog.String("session", ev.SessionKey),
		slog.String("text", ev.Text))
	return nil
}

// Recorder forwards events to a sink, skipping duplicates by context key.
// The seen set is bounded; the oldest keys are evicted once it fills.
type Recorder struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	order    []string
	capacity int
	sink     Sink
	logger   *slog.Logger
}

// NewRecorder builds a recorder over the given sink. A nil sink logs
// events instead; a non-positive capacity falls back to 1024.
func NewRecorder(log *slog.Logger, sink Sink, capacity int) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	if sink == nil {
		sink = NewLogSink(log)
	}
	if capacity <= 0 {
		capacity = defaultSeenCapacity
	}
	return &Recorder{
		seen:     make(map[string]struct{}, capacity),
		capacity: capacity,
		sink:     sink,
		logger:   log.With(slog.String("component", "events")),
	}
}

// Enqueue records one event. It reports false when the context key was
// already seen or the text is empty. Sink failures are logged and do not
// resurrect the key.
func (r *Recorder) Enqueue(ctx context.Context, text, sessionKey, contextKey string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	if contextKey != "" && !r.markSeen(contextKey) {
		return false
	}
	ev := Event{
		Text:       text,
		SessionKey: sessionKey,
		ContextKey: contextKey,
		At:         time.Now(),
	}
	if err := r.sink.Record(ctx, ev); err != nil {
		r.logger.Warn("record event failed",
			slog.String("session", sessionKey),
			slog.Any("error", err))
		return false
	}
	return true
}

// markSeen reports true when the key is new, evicting the oldest keys
// once capacity is reached.
func (r *Recorder) markSeen(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.seen[key]; ok {
		return false
	}
	if len(r.order) >= r.capacity {
		evict := r.order[0]
		r.order = r.order[1:]
		delete(r.seen, evict)
	}
	r.seen[key] = struct{}{}
	r.order = append(r.order, key)
	return true
}
