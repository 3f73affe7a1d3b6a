package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInvoker drives sessions in tests without a real model.
type fakeInvoker struct {
	events []Event
	result *Result
	err    error
	block  bool // never return until the context is cancelled
	panics bool
}

func (f *fakeInvoker) Invoke(ctx context.Context, _ string, onEvent func(Event)) (*Result, error) {
	for _, ev := range f.events {
		onEvent(ev)
	}
	if f.panics {
		panic("computation blew up")
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func testSession(inv Invoker, cfg Config) *Session {
	return NewSession(inv, NewState(NewSplitter("", "", DefaultLookahead)), cfg)
}

func collect(s *Session) []Event {
	var events []Event
	for ev := range s.Events() {
		events = append(events, ev)
	}
	return events
}

func TestSessionNormalCompletion(t *testing.T) {
	inv := &fakeInvoker{
		events: []Event{{"data": "a"}, {"data": "b"}},
		result: &Result{},
	}
	s := testSession(inv, Config{})
	s.Start(context.Background(), "hi")

	events := collect(s)
	require.Len(t, events, 3)
	assert.Equal(t, "a", events[0]["data"])
	assert.Equal(t, "b", events[1]["data"])
	assert.True(t, Terminal(events[2]))
	assert.Equal(t, PhaseCompleted, s.Outcome())
	assert.Equal(t, PhaseDrained, s.Phase())
}

func TestSessionComputationError(t *testing.T) {
	inv := &fakeInvoker{err: errors.New("broken")}
	s := testSession(inv, Config{})
	s.Start(context.Background(), "hi")

	events := collect(s)
	require.Len(t, events, 1)
	assert.Equal(t, true, events[0]["force_stop"])
	assert.Equal(t, "broken", events[0]["force_stop_reason"])
}

func TestSessionComputationPanic(t *testing.T) {
	inv := &fakeInvoker{panics: true}
	s := testSession(inv, Config{})
	s.Start(context.Background(), "hi")

	events := collect(s)
	require.Len(t, events, 1)
	assert.Equal(t, true, events[0]["force_stop"])
	assert.Contains(t, events[0]["force_stop_reason"], "computation blew up")
}

func TestSessionTimeout(t *testing.T) {
	inv := &fakeInvoker{
		events: []Event{{"data": "partial"}},
		block:  true,
	}
	s := testSession(inv, Config{
		Deadline:    60 * time.Millisecond,
		WaitTimeout: 10 * time.Millisecond,
	})
	s.Start(context.Background(), "hi")

	start := time.Now()
	events := collect(s)
	elapsed := time.Since(start)

	require.Len(t, events, 2)
	assert.Equal(t, "partial", events[0]["data"])
	assert.Equal(t, true, events[1]["force_stop"])
	assert.Equal(t, "Timeout", events[1]["force_stop_reason"])
	assert.Equal(t, PhaseTimedOut, s.Outcome())
	assert.Equal(t, PhaseDrained, s.Phase())
	assert.Less(t, elapsed, 5*time.Second, "cleanup must not hang on the abandoned producer")
}

func TestSessionSlowChunksDoNotFalseTimeout(t *testing.T) {
	// Gaps longer than the wait timeout but shorter than the deadline must
	// keep the stream alive.
	inv := &slowInvoker{gap: 30 * time.Millisecond, chunks: 3}
	s := testSession(inv, Config{
		Deadline:    time.Second,
		WaitTimeout: 10 * time.Millisecond,
	})
	s.Start(context.Background(), "hi")

	events := collect(s)
	require.Len(t, events, 4)
	for _, ev := range events[:3] {
		assert.Equal(t, KindData, Classify(ev))
	}
	assert.True(t, Terminal(events[3]))
	assert.Equal(t, PhaseCompleted, s.Outcome())
}

type slowInvoker struct {
	gap    time.Duration
	chunks int
}

func (s *slowInvoker) Invoke(ctx context.Context, _ string, onEvent func(Event)) (*Result, error) {
	for i := 0; i < s.chunks; i++ {
		time.Sleep(s.gap)
		onEvent(Event{"data": "chunk"})
	}
	return &Result{}, nil
}

func TestSessionEarlyBreakCleansUp(t *testing.T) {
	inv := &fakeInvoker{
		events: []Event{{"data": "a"}, {"data": "b"}, {"data": "c"}},
		result: &Result{},
	}
	s := testSession(inv, Config{})
	s.Start(context.Background(), "hi")

	for range s.Events() {
		break // abandon after the first event
	}
	assert.Equal(t, PhaseDrained, s.Phase())

	// The next turn starts clean: no stale events from the first run.
	s.Start(context.Background(), "again")
	events := collect(s)
	require.Len(t, events, 4)
	assert.Equal(t, "a", events[0]["data"])
}

func TestSessionReuseAcrossTurns(t *testing.T) {
	inv := &fakeInvoker{events: []Event{{"data": "x"}}, result: &Result{}}
	s := testSession(inv, Config{})

	for i := 0; i < 3; i++ {
		s.Start(context.Background(), "turn")
		events := collect(s)
		require.Len(t, events, 2, "turn %d", i)
		assert.Equal(t, PhaseDrained, s.Phase())
	}
}

func TestSessionEventsBeforeStart(t *testing.T) {
	s := testSession(&fakeInvoker{}, Config{})
	assert.Empty(t, collect(s))
}

func TestSessionOrderPreserved(t *testing.T) {
	var events []Event
	for i := 0; i < 50; i++ {
		events = append(events, Event{"data": string(rune('a' + i%26))})
	}
	inv := &fakeInvoker{events: events, result: &Result{}}
	s := testSession(inv, Config{QueueSize: 128})
	s.Start(context.Background(), "hi")

	got := collect(s)
	require.Len(t, got, 51)
	for i, ev := range got[:50] {
		assert.Equal(t, events[i]["data"], ev["data"])
	}
}
