package stream

// Message is the structured result of one session, ready for rendering and
// persistence.
type Message struct {
	Text      string      `json:"text"`
	Reasoning string      `json:"reasoning,omitempty"`
	Tools     []*ToolCall `json:"tool_calls,omitempty"`
	Stopped   bool        `json:"force_stop,omitempty"`
}

// Snapshot is the partial view a renderer can show while the session is still
// streaming.
type Snapshot struct {
	Text      string
	Reasoning string
	Tools     []*ToolCall
}

// Assembler folds the session state into the final message once the event
// sequence ends, and exposes live partial state before that.
type Assembler struct {
	state *State
}

func NewAssembler(state *State) *Assembler {
	return &Assembler{state: state}
}

// Snapshot returns the current partial progress: the marker-filtered text so
// far, reasoning so far, and the tool entries with their running statuses.
func (a *Assembler) Snapshot() Snapshot {
	return Snapshot{
		Text:      a.state.Filtered.String(),
		Reasoning: a.reasoning(),
		Tools:     a.state.Tools,
	}
}

// Finalize freezes the session state into one message. A force-stopped
// session yields only the stop reason as display text; otherwise the visible
// text is the filtered stream (plus whatever the splitter still held), with a
// fallback to the text of the computation's own final result when nothing was
// ever streamed.
func (a *Assembler) Finalize() *Message {
	st := a.state

	if st.StopErr != "" {
		return &Message{Text: "Error: " + st.StopErr, Stopped: true}
	}

	st.Filtered.WriteString(st.Splitter.Close())
	text := st.Filtered.String()

	if st.Raw.Len() == 0 && st.Final != nil {
		text = extractText(st.Final.Message)
	}
	if text == "" {
		text = "Computation completed."
	}

	if st.Final != nil {
		a.Backfill(st.Final.Metrics)
	}

	return &Message{
		Text:      text,
		Reasoning: a.reasoning(),
		Tools:     st.Tools,
	}
}

// Backfill fills tool inputs from post-hoc metrics. Strictly by tool_use_id,
// and only into entries whose input is still unset: a populated input is
// never overwritten, and metrics without an id match are dropped rather than
// guessed onto a same-named entry.
func (a *Assembler) Backfill(m Metrics) {
	for id, input := range m.ToolInputs {
		tc, ok := a.state.ToolByID(id)
		if !ok || tc.Input != nil {
			continue
		}
		tc.Input, tc.InputIsJSON = NormalizeValue(input)
	}
}

// reasoning prefers marker-extracted hidden text over explicit reasoning
// events; the stream rarely carries both.
func (a *Assembler) reasoning() string {
	if hidden := a.state.Splitter.Hidden(); hidden != "" {
		return hidden
	}
	return a.state.Reasoning.String()
}

// extractText digs the display text out of a final result message payload,
// which mirrors the provider shape {"content": [{"text": ...}, ...]}.
func extractText(message map[string]any) string {
	if message == nil {
		return ""
	}
	switch content := message["content"].(type) {
	case string:
		return content
	case []any:
		for _, item := range content {
			block, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := block["text"].(string); ok && text != "" {
				return text
			}
		}
	}
	return ""
}
