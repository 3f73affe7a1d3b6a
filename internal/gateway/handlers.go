package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"eddy/internal/stream"
)

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// handleChat runs one streamed turn. Every consumer-side step happens here in
// order: receive an event, dispatch it through the registry, push the SSE
// frames, and after the sequence ends send the assembled message.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if req.SessionID == "" || req.Message == "" {
		http.Error(w, `{"error":"session_id and message are required"}`, http.StatusBadRequest)
		return
	}

	splitter := stream.NewSplitter(s.cfg.Marker.Open, s.cfg.Marker.Close, s.cfg.Marker.Lookahead)
	state := stream.NewState(splitter)
	registry := stream.NewRegistry()
	stream.RegisterDefaults(registry, state)

	session := stream.NewSession(s.invoker, state, s.cfg.Session)
	assembler := stream.NewAssembler(state)

	sse := NewSSEWriter(w)
	session.Start(r.Context(), req.Message)

	for ev := range session.Events() {
		outcomes := registry.Dispatch(ev)
		for _, outcome := range outcomes {
			if outcome.Err != nil {
				sse.Send("handler_error", outcome.Err)
			}
		}
		s.sendFrame(sse, ev, assembler)
	}

	msg := assembler.Finalize()
	sse.Send("done", msg)

	if s.store != nil {
		if err := s.store.EnsureSession(r.Context(), req.SessionID, "gateway"); err != nil {
			slog.Warn("failed to ensure session", "session_id", req.SessionID, "error", err)
		}
		if err := s.store.SaveTurn(r.Context(), req.SessionID, req.Message, msg); err != nil {
			slog.Warn("failed to save turn", "session_id", req.SessionID, "error", err)
		}
	}
}

// sendFrame translates one event into its SSE frame. The visible text frame
// carries the marker-filtered text so clients never glimpse hidden content.
func (s *Server) sendFrame(sse *SSEWriter, ev stream.Event, assembler *stream.Assembler) {
	switch stream.Classify(ev) {
	case stream.KindData:
		sse.Send("text", map[string]string{"content": assembler.Snapshot().Text})
	case stream.KindToolUse:
		sse.Send("tool_use", ev[string(stream.KindToolUse)])
	case stream.KindToolResult:
		sse.Send("tool_result", ev[string(stream.KindToolResult)])
	case stream.KindReasoning:
		sse.Send("reasoning", map[string]string{"content": assembler.Snapshot().Reasoning})
	case stream.KindForceStop:
		sse.Send("error", map[string]string{"error": stream.StopReason(ev)})
	}
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, `{"error":"history disabled"}`, http.StatusNotFound)
		return
	}
	turns, err := s.store.Turns(r.Context(), r.PathValue("id"))
	if err != nil {
		slog.Error("failed to load turns", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"turns": turns})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
