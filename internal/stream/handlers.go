package stream

import "log/slog"

// RegisterDefaults wires the built-in handlers at their standard priorities.
// Callers that want event capture add a DebugHandler at priority 95.
func RegisterDefaults(r *Registry, state *State) {
	r.Register(NewTextHandler(state), 10)
	r.Register(NewToolHandler(state), 20)
	r.Register(NewReasoningHandler(state), 30)
	r.Register(LifecycleHandler{}, 50)
	r.Register(LogHandler{}, 80)
}

// TextHandler accumulates data chunks into the session state, running the
// marker splitter so hidden reasoning never reaches the visible text. It also
// records the terminal result or force-stop.
type TextHandler struct {
	state *State
}

func NewTextHandler(state *State) *TextHandler {
	return &TextHandler{state: state}
}

func (h *TextHandler) Name() string { return "text" }

func (h *TextHandler) CanHandle(kind Kind) bool {
	switch kind {
	case KindData, KindResult, KindForceStop:
		return true
	}
	return false
}

func (h *TextHandler) Handle(ev Event) (map[string]any, error) {
	if chunk, ok := ev[string(KindData)].(string); ok {
		h.state.Raw.WriteString(chunk)
		h.state.Filtered.WriteString(h.state.Splitter.Feed(chunk))
		return nil, nil
	}
	if res, ok := ev[string(KindResult)].(*Result); ok {
		h.state.Final = res
		return nil, nil
	}
	if stopped, _ := ev[string(KindForceStop)].(bool); stopped {
		reason := StopReason(ev)
		if reason == "" {
			reason = "Unknown error"
		}
		h.state.StopErr = reason
		h.state.MarkToolsErrored()
	}
	return nil, nil
}

// ToolHandler maintains the ordered tool invocation entries.
type ToolHandler struct {
	state *State
}

func NewToolHandler(state *State) *ToolHandler {
	return &ToolHandler{state: state}
}

func (h *ToolHandler) Name() string { return "tools" }

func (h *ToolHandler) CanHandle(kind Kind) bool {
	return kind == KindToolUse || kind == KindToolResult
}

func (h *ToolHandler) Handle(ev Event) (map[string]any, error) {
	if use, ok := ev[string(KindToolUse)].(map[string]any); ok {
		name, _ := use["name"].(string)
		h.state.UpsertTool(toolUseID(use), name, use["input"])
		return nil, nil
	}
	if payload, ok := ev[string(KindToolResult)]; ok {
		id := ""
		display := payload
		if m, isMap := payload.(map[string]any); isMap {
			id = toolUseID(m)
			display = unwrapResult(m)
		}
		h.state.AttachResult(id, display)
	}
	return nil, nil
}

func toolUseID(m map[string]any) string {
	if id, ok := m["toolUseId"].(string); ok && id != "" {
		return id
	}
	id, _ := m["tool_use_id"].(string)
	return id
}

// unwrapResult pulls the interesting part out of a result payload: an
// explicit output or content field wins, otherwise the payload minus its id
// keys.
func unwrapResult(m map[string]any) any {
	if out, ok := m["output"]; ok {
		return out
	}
	if content, ok := m["content"]; ok {
		return content
	}
	stripped := make(map[string]any, len(m))
	for k, v := range m {
		if k == "toolUseId" || k == "tool_use_id" {
			continue
		}
		stripped[k] = v
	}
	if len(stripped) == 0 {
		return m
	}
	return stripped
}

// ReasoningHandler accumulates the computation's own reasoning deltas, the
// ones delivered as explicit events rather than inline markers.
type ReasoningHandler struct {
	state *State
}

func NewReasoningHandler(state *State) *ReasoningHandler {
	return &ReasoningHandler{state: state}
}

func (h *ReasoningHandler) Name() string { return "reasoning" }

func (h *ReasoningHandler) CanHandle(kind Kind) bool {
	switch kind {
	case KindReasoning, KindReasoningSig, KindRedacted:
		return true
	}
	return false
}

func (h *ReasoningHandler) Handle(ev Event) (map[string]any, error) {
	if text, ok := ev[string(KindReasoning)].(string); ok && text != "" {
		h.state.Reasoning.WriteString(text)
	}
	return map[string]any{"reasoning_processed": string(Classify(ev))}, nil
}

// LifecycleHandler acknowledges lifecycle events. Log only for now.
type LifecycleHandler struct{}

func (LifecycleHandler) Name() string { return "lifecycle" }

func (LifecycleHandler) CanHandle(kind Kind) bool {
	switch kind {
	case KindInit, KindStart, KindStartLoop, KindMessage, KindProgressEvent, KindComplete:
		return true
	}
	return false
}

func (LifecycleHandler) Handle(ev Event) (map[string]any, error) {
	kind := Classify(ev)
	slog.Debug("lifecycle event", "kind", kind)
	return map[string]any{"lifecycle_processed": string(kind)}, nil
}

// LogHandler logs every event at a level matched to its kind. Placed late in
// the dispatch order so the stateful handlers have already run.
type LogHandler struct{}

func (LogHandler) Name() string { return "log" }

func (LogHandler) CanHandle(Kind) bool { return true }

func (LogHandler) Handle(ev Event) (map[string]any, error) {
	kind := Classify(ev)
	switch kind {
	case KindData:
		chunk, _ := ev[string(KindData)].(string)
		slog.Debug("stream chunk", "bytes", len(chunk))
	case KindToolUse, KindToolResult:
		name := "unknown"
		if m, ok := ev[string(kind)].(map[string]any); ok {
			if n, ok := m["name"].(string); ok && n != "" {
				name = n
			}
		}
		slog.Info("tool event", "kind", kind, "tool", name)
	case KindForceStop:
		slog.Error("stream force stop", "reason", StopReason(ev))
	default:
		slog.Info("stream event", "kind", kind)
	}
	return nil, nil
}

// DebugHandler keeps a bounded ring of recent events for inspection. Disabled
// handlers claim nothing, so the dispatcher skips them entirely.
type DebugHandler struct {
	Enabled bool
	max     int
	log     []Event
}

func NewDebugHandler(enabled bool, max int) *DebugHandler {
	if max <= 0 {
		max = 100
	}
	return &DebugHandler{Enabled: enabled, max: max}
}

func (h *DebugHandler) Name() string { return "debug" }

func (h *DebugHandler) CanHandle(Kind) bool { return h.Enabled }

func (h *DebugHandler) Handle(ev Event) (map[string]any, error) {
	h.log = append(h.log, ev)
	if len(h.log) > h.max {
		h.log = h.log[len(h.log)-h.max:]
	}
	return nil, nil
}

// Events returns the retained debug events, oldest first.
func (h *DebugHandler) Events() []Event { return h.log }
