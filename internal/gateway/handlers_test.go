package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"eddy/internal/stream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubInvoker struct {
	events []stream.Event
	result *stream.Result
}

func (s *stubInvoker) Invoke(_ context.Context, _ string, onEvent func(stream.Event)) (*stream.Result, error) {
	for _, ev := range s.events {
		onEvent(ev)
	}
	return s.result, nil
}

func testServer(inv stream.Invoker, token string) *Server {
	return NewServer(inv, nil, Config{
		Token: token,
		Session: stream.Config{
			Deadline:    2 * time.Second,
			WaitTimeout: 50 * time.Millisecond,
		},
	})
}

func TestChatStreamsFrames(t *testing.T) {
	inv := &stubInvoker{
		events: []stream.Event{
			{"data": "Hello "},
			{"data": "<thinking>secret</thinking>"},
			{"current_tool_use": map[string]any{"toolUseId": "t1", "name": "calculator", "input": `{"expression":"6*7"}`}},
			{"tool_result": map[string]any{"toolUseId": "t1", "output": "42"}},
			{"data": "World"},
		},
		result: &stream.Result{},
	}
	srv := testServer(inv, "")

	req := httptest.NewRequest(http.MethodPost, "/v1/chat",
		strings.NewReader(`{"session_id":"s1","message":"hi"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: text")
	assert.Contains(t, body, `"content":"Hello World"`)
	assert.Contains(t, body, "event: tool_use")
	assert.Contains(t, body, "event: tool_result")
	assert.Contains(t, body, "event: done")
	assert.Contains(t, body, `"text":"Hello World"`)
	assert.Contains(t, body, `"reasoning":"secret"`)

	// No text frame may ever carry the hidden content.
	for _, frame := range strings.Split(body, "\n\n") {
		if strings.HasPrefix(frame, "event: text") {
			assert.NotContains(t, frame, "secret")
		}
	}
}

func TestChatRejectsBadRequests(t *testing.T) {
	srv := testServer(&stubInvoker{result: &stream.Result{}}, "")

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "{nope"},
		{"missing message", `{"session_id":"s1"}`},
		{"missing session", `{"message":"hi"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAuth(t *testing.T) {
	srv := testServer(&stubInvoker{result: &stream.Result{}}, "sekrit")

	req := httptest.NewRequest(http.MethodPost, "/v1/chat",
		strings.NewReader(`{"session_id":"s1","message":"hi"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/chat",
		strings.NewReader(`{"session_id":"s1","message":"hi"}`))
	req.Header.Set("Authorization", "Bearer sekrit")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthzSkipsAuth(t *testing.T) {
	srv := testServer(&stubInvoker{}, "sekrit")
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetSessionWithoutStore(t *testing.T) {
	srv := testServer(&stubInvoker{}, "")
	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/s1", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
