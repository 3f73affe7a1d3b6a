package agent

import (
	"context"
	"time"

	"eddy/internal/stream"
)

// ScriptedInvoker replays a fixed event sequence and returns a canned result.
// It backs the --mock mode of chat and gateway, where a live model is
// unavailable or unwanted.
type ScriptedInvoker struct {
	Events []stream.Event
	Result *stream.Result
	Err    error
	Delay  time.Duration // pause between events, 0 for none
}

func (s *ScriptedInvoker) Invoke(ctx context.Context, _ string, onEvent func(stream.Event)) (*stream.Result, error) {
	for _, ev := range s.Events {
		if s.Delay > 0 {
			select {
			case <-time.After(s.Delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		onEvent(ev)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Result != nil {
		return s.Result, nil
	}
	return &stream.Result{}, nil
}

// Script builds the demo invoker used by `eddy chat --mock`: a reasoning
// block hidden in the visible stream, one tool round-trip, and a final text.
func Script(input string) *ScriptedInvoker {
	return &ScriptedInvoker{
		Delay: 40 * time.Millisecond,
		Events: []stream.Event{
			{"init_event_loop": true},
			{"data": "<thin"},
			{"data": "king>The user said: " + input + ". A short answer will do.</thinking>"},
			{"current_tool_use": map[string]any{"toolUseId": "mock-1", "name": "weather", "input": `{"location":"Oslo"}`}},
			{"tool_result": map[string]any{"toolUseId": "mock-1", "output": "Sunny, 22°C"}},
			{"data": "Here is what I found: "},
			{"data": "sunny skies ahead."},
			{"complete": true},
		},
		Result: &stream.Result{
			Message: map[string]any{"content": []any{map[string]any{"text": "Here is what I found: sunny skies ahead."}}},
		},
	}
}
