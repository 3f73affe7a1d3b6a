package gateway

import (
	"net/http"

	"eddy/internal/history"
	"eddy/internal/stream"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Server streams chat sessions over SSE. Each request gets its own session,
// state and dispatch registry; nothing is shared between concurrent chats.
type Server struct {
	invoker stream.Invoker
	store   *history.Store
	cfg     Config
	mux     *http.ServeMux
}

// Config is the gateway's slice of the application config.
type Config struct {
	Token   string // bearer token, empty disables auth
	Session stream.Config
	Marker  MarkerConfig
}

type MarkerConfig struct {
	Open      string
	Close     string
	Lookahead int
}

// NewServer wires the routes. store may be nil to disable persistence.
func NewServer(invoker stream.Invoker, store *history.Store, cfg Config) *Server {
	s := &Server{
		invoker: invoker,
		store:   store,
		cfg:     cfg,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("POST /v1/chat", otelhttp.NewHandler(http.HandlerFunc(s.handleChat), "gateway.chat"))
	s.mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
}

func (s *Server) Handler() http.Handler {
	if s.cfg.Token == "" {
		return s.mux
	}
	return s.auth(s.mux)
}

func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+s.cfg.Token {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
