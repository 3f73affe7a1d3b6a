package stream

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubHandler records the events it sees and replies with canned data.
type stubHandler struct {
	name   string
	kinds  map[Kind]bool // nil accepts everything
	data   map[string]any
	err    error
	panics bool
	seen   []Event
}

func (h *stubHandler) Name() string { return h.name }

func (h *stubHandler) CanHandle(kind Kind) bool {
	if h.kinds == nil {
		return true
	}
	return h.kinds[kind]
}

func (h *stubHandler) Handle(ev Event) (map[string]any, error) {
	h.seen = append(h.seen, ev)
	if h.panics {
		panic("handler exploded")
	}
	return h.data, h.err
}

func TestRegistryPriorityOrder(t *testing.T) {
	var order []string
	mk := func(name string) *stubHandler {
		return &stubHandler{name: name, data: map[string]any{"from": name}}
	}

	r := NewRegistry()
	a, b, c := mk("a"), mk("b"), mk("c")
	r.Register(c, 90)
	r.Register(a, 10)
	r.Register(b, 50)

	for _, o := range r.Dispatch(Event{"data": "x"}) {
		order = append(order, o.Handler)
	}
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestRegistryStableTies(t *testing.T) {
	r := NewRegistry()
	first := &stubHandler{name: "first", data: map[string]any{"n": 1}}
	second := &stubHandler{name: "second", data: map[string]any{"n": 2}}
	r.Register(first, 50)
	r.Register(second, 50)

	outcomes := r.Dispatch(Event{"data": "x"})
	require.Len(t, outcomes, 2)
	assert.Equal(t, "first", outcomes[0].Handler)
	assert.Equal(t, "second", outcomes[1].Handler)
}

func TestDispatchSkipsNonAccepting(t *testing.T) {
	r := NewRegistry()
	dataOnly := &stubHandler{name: "data-only", kinds: map[Kind]bool{KindData: true}}
	all := &stubHandler{name: "all"}
	r.Register(dataOnly, 10)
	r.Register(all, 20)

	r.Dispatch(Event{"reasoningText": "hmm"})
	assert.Empty(t, dataOnly.seen)
	assert.Len(t, all.seen, 1)
}

func TestDispatchIsolatesFailures(t *testing.T) {
	tests := []struct {
		name    string
		failing *stubHandler
		errKind string
	}{
		{"error return", &stubHandler{name: "bad", err: errors.New("boom")}, "*errors.errorString"},
		{"panic", &stubHandler{name: "bad", panics: true}, "*errors.errorString"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			after := &stubHandler{name: "after", data: map[string]any{"ok": true}}
			r.Register(tt.failing, 10)
			r.Register(after, 20)

			var outcomes []Outcome
			require.NotPanics(t, func() {
				outcomes = r.Dispatch(Event{"data": "x"})
			})

			require.Len(t, outcomes, 2)
			require.NotNil(t, outcomes[0].Err)
			assert.Equal(t, "bad", outcomes[0].Err.Handler)
			assert.Equal(t, KindData, outcomes[0].Err.Event)
			assert.Equal(t, tt.errKind, outcomes[0].Err.ErrKind)
			assert.NotEmpty(t, outcomes[0].Err.Message)

			// The failure never blocked the later handler.
			assert.Len(t, after.seen, 1)
			assert.Equal(t, map[string]any{"ok": true}, outcomes[1].Data)
		})
	}
}

func TestDispatchAlwaysFailingHandlerNeverStopsOthers(t *testing.T) {
	r := NewRegistry()
	bad := &stubHandler{name: "bad", panics: true}
	good := &stubHandler{name: "good", data: map[string]any{"ok": true}}
	r.Register(bad, 10)
	r.Register(good, 20)

	for _, ev := range []Event{{"data": "a"}, {"data": "b"}, {"reasoningText": "c"}} {
		r.Dispatch(ev)
	}
	assert.Len(t, good.seen, 3)
}

func TestDispatchDropsUnclaimedEvents(t *testing.T) {
	r := NewRegistry()
	dataOnly := &stubHandler{name: "data-only", kinds: map[Kind]bool{KindData: true}}
	r.Register(dataOnly, 10)

	assert.Empty(t, r.Dispatch(Event{"mystery": 1}))
	assert.Empty(t, r.Dispatch(Event{}))
}

func TestDispatchNilDataProducesNoOutcome(t *testing.T) {
	r := NewRegistry()
	quiet := &stubHandler{name: "quiet"}
	r.Register(quiet, 10)

	assert.Empty(t, r.Dispatch(Event{"data": "x"}))
	assert.Len(t, quiet.seen, 1)
}
