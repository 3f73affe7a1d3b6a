// Package render draws streaming progress on a terminal. It only displays
// what the assembler exposes; all filtering and accumulation happens upstream.
package render

import (
	"fmt"
	"io"
	"strings"

	"eddy/internal/stream"
)

// Terminal prints incremental text as it arrives and a summary block at the
// end of the turn.
type Terminal struct {
	w       io.Writer
	printed int // bytes of visible text already written
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

// Update prints whatever visible text appeared since the last call. Tool and
// reasoning activity is shown as single status lines the first time it is
// seen.
func (t *Terminal) Update(snap stream.Snapshot) {
	if len(snap.Text) > t.printed {
		fmt.Fprint(t.w, snap.Text[t.printed:])
		t.printed = len(snap.Text)
	}
}

// ToolStarted announces a tool invocation.
func (t *Terminal) ToolStarted(tc *stream.ToolCall) {
	fmt.Fprintf(t.w, "\n[tool] %s running...\n", tc.Name)
}

// ToolFinished announces a tool result.
func (t *Terminal) ToolFinished(tc *stream.ToolCall) {
	fmt.Fprintf(t.w, "[tool] %s done\n", tc.Name)
}

// Finish prints the end-of-turn summary: reasoning, tool table, and the final
// text if streaming never printed it.
func (t *Terminal) Finish(msg *stream.Message) {
	if msg.Stopped {
		fmt.Fprintf(t.w, "\n%s\n", msg.Text)
		return
	}

	if t.printed == 0 && msg.Text != "" {
		fmt.Fprintln(t.w, msg.Text)
	} else {
		fmt.Fprintln(t.w)
	}

	if msg.Reasoning != "" {
		fmt.Fprintf(t.w, "\n--- reasoning ---\n%s\n", strings.TrimSpace(msg.Reasoning))
	}

	for _, tc := range msg.Tools {
		fmt.Fprintf(t.w, "\n[tool] %s (%s)", tc.Name, tc.Status)
		if tc.ID != "" {
			fmt.Fprintf(t.w, " id=%s", tc.ID)
		}
		fmt.Fprintln(t.w)
		if tc.Input != nil {
			fmt.Fprintf(t.w, "  input: %s\n", formatValue(tc.Input))
		}
		if tc.Result != nil {
			fmt.Fprintf(t.w, "  result: %s\n", formatValue(tc.Result))
		}
	}
}

// Reset prepares the renderer for the next turn.
func (t *Terminal) Reset() {
	t.printed = 0
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
