package stream

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ToolStatus is the running display state of one tool invocation.
type ToolStatus string

const (
	ToolPending  ToolStatus = "pending"
	ToolRunning  ToolStatus = "running"
	ToolComplete ToolStatus = "complete"
	ToolError    ToolStatus = "error"
)

// ToolCall accumulates one tool invocation's identity, input and result as
// observed across events. Entries are created on first sighting, mutated in
// place, and live until the session state is reset.
type ToolCall struct {
	Name         string     `json:"name"`
	ID           string     `json:"tool_use_id,omitempty"`
	Input        any        `json:"input,omitempty"`
	InputIsJSON  bool       `json:"input_is_json"`
	Result       any        `json:"result,omitempty"`
	ResultIsJSON bool       `json:"result_is_json"`
	Status       ToolStatus `json:"status"`
}

// Result is what the computation ultimately returned: its final message
// payload plus post-hoc metrics.
type Result struct {
	Message map[string]any
	Metrics Metrics
}

// Metrics is auxiliary data the computation runtime gathered after the fact.
// ToolInputs maps tool_use_id to the input the runtime recorded for it.
type Metrics struct {
	InputTokens  int64
	OutputTokens int64
	ToolInputs   map[string]any
}

// State is the per-session accumulation mutated by the dispatch handlers.
// Only the consumer side touches it, so it needs no locking; the event queue
// is the lone synchronized structure.
type State struct {
	Raw       strings.Builder // every data chunk as received
	Filtered  strings.Builder // marker-split visible text
	Reasoning strings.Builder // reasoningText event payloads
	Splitter  *Splitter
	Tools     []*ToolCall
	Final     *Result
	StopErr   string // force-stop reason, "" if none

	toolByID map[string]*ToolCall
}

// NewState builds session state around the given marker splitter.
func NewState(sp *Splitter) *State {
	return &State{Splitter: sp, toolByID: make(map[string]*ToolCall)}
}

// Reset clears everything for the next session, reusing the splitter.
func (s *State) Reset() {
	s.Raw.Reset()
	s.Filtered.Reset()
	s.Reasoning.Reset()
	s.Splitter.Reset()
	s.Tools = nil
	s.Final = nil
	s.StopErr = ""
	s.toolByID = make(map[string]*ToolCall)
}

// UpsertTool finds the entry for a starting tool invocation, creating it on
// first sighting. Identity is the tool_use_id when present.
func (s *State) UpsertTool(id, name string, input any) *ToolCall {
	if id != "" {
		if tc, ok := s.toolByID[id]; ok {
			if tc.Input == nil && input != nil {
				tc.Input, tc.InputIsJSON = NormalizeValue(input)
			}
			return tc
		}
	}

	if name == "" {
		name = fmt.Sprintf("Tool %d", len(s.Tools)+1)
	}
	value, isJSON := NormalizeValue(input)
	tc := &ToolCall{
		Name:        name,
		ID:          id,
		Input:       value,
		InputIsJSON: isJSON,
		Status:      ToolRunning,
	}
	s.Tools = append(s.Tools, tc)
	if id != "" {
		s.toolByID[id] = tc
	}
	return tc
}

// AttachResult records a tool result. A known tool_use_id wins; otherwise the
// payload lands on the most recent entry, or a fresh anonymous one.
func (s *State) AttachResult(id string, payload any) *ToolCall {
	var tc *ToolCall
	switch {
	case id != "" && s.toolByID[id] != nil:
		tc = s.toolByID[id]
	case len(s.Tools) > 0:
		tc = s.Tools[len(s.Tools)-1]
	default:
		tc = &ToolCall{Name: "Tool", ID: id, Status: ToolRunning}
		s.Tools = append(s.Tools, tc)
		if id != "" {
			s.toolByID[id] = tc
		}
	}

	value, isJSON := NormalizeValue(payload)
	if value != nil {
		tc.Result = value
	} else {
		tc.Result = payload
	}
	_, structured := payload.(map[string]any)
	if _, list := payload.([]any); list {
		structured = true
	}
	tc.ResultIsJSON = isJSON || structured
	tc.Status = ToolComplete
	return tc
}

// ToolByID returns the entry for a tool_use_id, if one exists.
func (s *State) ToolByID(id string) (*ToolCall, bool) {
	tc, ok := s.toolByID[id]
	return tc, ok
}

// MarkToolsErrored flips every entry to the error status after a force stop.
func (s *State) MarkToolsErrored() {
	for _, tc := range s.Tools {
		tc.Status = ToolError
	}
}

// NormalizeValue turns a tool payload into a display value plus a structured
// flag. Strings that look like JSON documents are parsed; everything already
// structured passes through.
func NormalizeValue(value any) (any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case map[string]any, []any:
		return v, true
	case string:
		trimmed := strings.TrimSpace(v)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			if gjson.Valid(trimmed) {
				var parsed any
				if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
					return parsed, true
				}
			}
		}
		return v, false
	default:
		return v, false
	}
}
