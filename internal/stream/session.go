package stream

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"
)

// Invoker is the external computation: a blocking call that fires FIFO
// callback events while it runs and finally returns a result or an error.
// It does not support interruption; a timed-out invocation is abandoned, its
// late events and result discarded during cleanup.
type Invoker interface {
	Invoke(ctx context.Context, input string, onEvent func(Event)) (*Result, error)
}

// Config is the session tuning surface. Zero values fall back to defaults.
type Config struct {
	Deadline    time.Duration // overall wall-clock cap per session
	WaitTimeout time.Duration // per-receive heartbeat on the queue
	QueueSize   int           // event queue capacity
}

const (
	DefaultDeadline    = 30 * time.Second
	DefaultWaitTimeout = time.Second
	DefaultQueueSize   = 256
)

func (c Config) withDefaults() Config {
	if c.Deadline <= 0 {
		c.Deadline = DefaultDeadline
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = DefaultWaitTimeout
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	return c
}

// Phase is the session lifecycle position.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseRunning      Phase = "running"
	PhaseCompleted    Phase = "completed"
	PhaseForceStopped Phase = "force_stopped"
	PhaseTimedOut     Phase = "timed_out"
	PhaseDrained      Phase = "drained"
)

// Session owns one background invocation of the computation. The producer
// goroutine only enqueues; all dispatch work happens on the consumer side,
// strictly one event at a time. A Session is reusable: Start resets it for
// the next turn.
type Session struct {
	invoker Invoker
	cfg     Config
	state   *State

	queue   chan Event
	done    chan struct{}
	cancel  context.CancelFunc
	phase   Phase
	outcome Phase
	started time.Time
}

// NewSession builds a session around an invoker and the shared state its
// handlers mutate.
func NewSession(invoker Invoker, state *State, cfg Config) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		invoker: invoker,
		cfg:     cfg,
		state:   state,
		queue:   make(chan Event, cfg.QueueSize),
		phase:   PhaseIdle,
	}
}

// State returns the session state the built-in handlers mutate.
func (s *Session) State() *State { return s.state }

// Phase returns the current lifecycle position. Only meaningful from the
// consumer side; the producer never touches it.
func (s *Session) Phase() Phase { return s.phase }

// Outcome reports how the last turn ended: completed, force-stopped or
// timed out. Empty while a turn is still running.
func (s *Session) Outcome() Phase { return s.outcome }

// Start clears stale queued events, resets the state, and launches the
// computation on its own goroutine. The callback handed to the invoker only
// enqueues, preserving arrival order and never blocking the computation on
// rendering work.
func (s *Session) Start(ctx context.Context, input string) {
	s.drainQueue()
	s.state.Reset()
	s.done = make(chan struct{})
	s.phase = PhaseRunning
	s.outcome = ""
	s.started = time.Now()

	ctx, s.cancel = context.WithCancel(ctx)
	go s.produce(ctx, input)
}

// produce runs the blocking invocation. A computation error is converted to a
// force-stop event, never re-raised; the goroutine itself cannot escape with
// a panic either.
func (s *Session) produce(ctx context.Context, input string) {
	defer close(s.done)
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("computation panicked", "panic", rec)
			s.enqueue(Event{"force_stop": true, "force_stop_reason": fmt.Sprint(rec)})
		}
	}()

	result, err := s.invoker.Invoke(ctx, input, s.enqueue)
	if err != nil {
		s.enqueue(Event{"force_stop": true, "force_stop_reason": err.Error()})
		return
	}
	s.enqueue(Event{"result": result})
}

func (s *Session) enqueue(ev Event) {
	s.queue <- ev
}

// Events returns the lazy, single-pass event sequence for the current turn.
// Each receive blocks up to WaitTimeout; a terminal event ends the sequence,
// and total silence past Deadline synthesizes a single force-stop with reason
// "Timeout". Whatever way the iteration ends — normal exhaustion, an early
// break, or a panic in the loop body — the deferred cleanup joins the
// producer and drains leftovers so the next Start begins clean.
func (s *Session) Events() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		if s.done == nil {
			return // never started
		}
		defer s.cleanup()

		for {
			select {
			case ev := <-s.queue:
				if !s.emit(ev, yield) {
					return
				}
			case <-time.After(s.cfg.WaitTimeout):
				// The timer and a queued event can race; prefer the event.
				select {
				case ev := <-s.queue:
					if !s.emit(ev, yield) {
						return
					}
					continue
				default:
				}

				select {
				case <-s.done:
					// Producer exited without a terminal event.
					s.outcome = PhaseForceStopped
					return
				default:
				}

				if time.Since(s.started) > s.cfg.Deadline {
					s.outcome = PhaseTimedOut
					yield(Event{"force_stop": true, "force_stop_reason": "Timeout"})
					return
				}
			}
		}
	}
}

// emit yields one event and reports whether iteration should continue.
func (s *Session) emit(ev Event, yield func(Event) bool) bool {
	cont := yield(ev)
	if Terminal(ev) {
		if stopped, _ := ev[string(KindForceStop)].(bool); stopped {
			s.outcome = PhaseForceStopped
		} else {
			s.outcome = PhaseCompleted
		}
		return false
	}
	return cont
}

// cleanup joins the producer goroutine and discards everything still queued.
// The computation cannot be interrupted for real; cancelling its context is
// advisory, so a context-deaf invoker keeps running and whatever it produces
// late is thrown away here. Discarding while joining matters: an abandoned
// producer may be mid-send, and a plain join would deadlock against a full
// queue.
func (s *Session) cleanup() {
	s.cancel()
	for {
		select {
		case <-s.queue:
		case <-s.done:
			s.drainQueue()
			s.phase = PhaseDrained
			return
		}
	}
}

func (s *Session) drainQueue() {
	dropped := 0
	for {
		select {
		case <-s.queue:
			dropped++
		default:
			if dropped > 0 {
				slog.Debug("discarded stale events", "count", dropped)
			}
			return
		}
	}
}
