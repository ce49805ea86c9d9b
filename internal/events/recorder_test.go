package events

import (
	"context"
	"fmt"
	"io"
	"testing"
)

type captureSink struct {
	events []Event
	err    error
}

func (s *captureSink) Record(_ context.Context, ev Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func TestRecorderDeduplicatesByContextKey(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	rec := NewRecorder(nil, sink, 8)

	if !rec.Enqueue(context.Background(), "reaction added", "session-a", "added|peer|msg|sender|👍") {
		t.Fatal("first Enqueue() = false, want true")
	}
	if rec.Enqueue(context.Background(), "reaction added", "session-a", "added|peer|msg|sender|👍") {
		t.Fatal("duplicate Enqueue() = true, want false")
	}
	if !rec.Enqueue(context.Background(), "reaction removed", "session-a", "removed|peer|msg|sender|👍") {
		t.Fatal("distinct key Enqueue() = false, want true")
	}
	if len(sink.events) != 2 {
		t.Fatalf("recorded events = %d, want 2", len(sink.events))
	}
	if sink.events[0].SessionKey != "session-a" {
		t.Fatalf("SessionKey = %q", sink.events[0].SessionKey)
	}
	if sink.events[0].At.IsZero() {
		t.Fatal("At is zero")
	}
}

func TestRecorderEmptyContextKeyAlwaysRecords(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	rec := NewRecorder(nil, sink, 8)

	for i := 0; i < 3; i++ {
		if !rec.Enqueue(context.Background(), "hello", "session-a", "") {
			t.Fatalf("Enqueue() #%d = false, want true", i)
		}
	}
	if len(sink.events) != 3 {
		t.Fatalf("recorded events = %d, want 3", len(sink.events))
	}
}

func TestRecorderSkipsEmptyText(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	rec := NewRecorder(nil, sink, 8)

	if rec.Enqueue(context.Background(), "   ", "session-a", "key") {
		t.Fatal("Enqueue() with blank text = true, want false")
	}
	if len(sink.events) != 0 {
		t.Fatalf("recorded events = %d, want 0", len(sink.events))
	}
}

func TestRecorderEvictsOldestKeys(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	rec := NewRecorder(nil, sink, 2)

	rec.Enqueue(context.Background(), "a", "s", "k1")
	rec.Enqueue(context.Background(), "b", "s", "k2")
	rec.Enqueue(context.Background(), "c", "s", "k3")

	// k1 was evicted to make room for k3 and may be recorded again.
	if !rec.Enqueue(context.Background(), "a again", "s", "k1") {
		t.Fatal("Enqueue() after eviction = false, want true")
	}
	// k3 is still tracked.
	if rec.Enqueue(context.Background(), "c again", "s", "k3") {
		t.Fatal("Enqueue() for tracked key = true, want false")
	}
}

func TestRecorderSinkFailureLogged(t *testing.T) {
	t.Parallel()

	sink := &captureSink{err: io.ErrClosedPipe}
	rec := NewRecorder(nil, sink, 8)

	if rec.Enqueue(context.Background(), "text", "s", "k1") {
		t.Fatal("Enqueue() with failing sink = true, want false")
	}
	// The key stays consumed so a broken sink does not loop duplicates.
	sink.err = nil
	if rec.Enqueue(context.Background(), "text", "s", "k1") {
		t.Fatal("Enqueue() after sink recovery reused key, want dedupe")
	}
}

func TestRecorderConcurrentEnqueueSingleRecord(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	rec := NewRecorder(nil, sink, 64)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			rec.Enqueue(context.Background(), "text", "s", "shared-key")
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	if len(sink.events) != 1 {
		t.Fatalf("recorded events = %d, want 1", len(sink.events))
	}
}

func TestRecorderDistinctSessions(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	rec := NewRecorder(nil, sink, 8)

	for i := 0; i < 3; i++ {
		key := fmt.Sprintf("added|peer-%d|msg|sender|👍", i)
		if !rec.Enqueue(context.Background(), "reaction", fmt.Sprintf("session-%d", i), key) {
			t.Fatalf("Enqueue() #%d = false, want true", i)
		}
	}
	if len(sink.events) != 3 {
		t.Fatalf("recorded events = %d, want 3", len(sink.events))
	}
}
