package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"eddy/internal/agent"
	"eddy/internal/config"
	"eddy/internal/db"
	gw "eddy/internal/gateway"
	"eddy/internal/history"
	"eddy/internal/stream"
	"eddy/internal/tools"
	"eddy/internal/trace"

	"github.com/spf13/cobra"
)

var (
	addr string
	mock bool
)

var Cmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the SSE gateway server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if addr != "" {
			cfg.Gateway.Addr = addr
		}

		if cfg.Trace.Endpoint != "" {
			shutdown, err := trace.Init(cmd.Context(), trace.Config{
				Endpoint: cfg.Trace.Endpoint,
				URLPath:  cfg.Trace.URLPath,
				APIKey:   cfg.Trace.APIKey,
			})
			if err != nil {
				slog.Warn("tracing disabled", "error", err)
			} else {
				defer shutdown(cmd.Context())
			}
		}

		srv := gw.NewServer(buildInvoker(cfg), openStore(cfg), gw.Config{
			Token: cfg.Gateway.Token,
			Session: stream.Config{
				Deadline:    cfg.Stream.Deadline.Duration,
				WaitTimeout: cfg.Stream.WaitTimeout.Duration,
				QueueSize:   cfg.Stream.QueueSize,
			},
			Marker: gw.MarkerConfig{
				Open:      cfg.Stream.MarkerOpen,
				Close:     cfg.Stream.MarkerClose,
				Lookahead: cfg.Stream.Lookahead,
			},
		})

		slog.Info("starting gateway", "addr", cfg.Gateway.Addr, "mock", mock)
		return srv.ListenAndServe(cfg.Gateway.Addr)
	},
}

func init() {
	Cmd.Flags().StringVarP(&addr, "addr", "a", "", "override gateway listen address")
	Cmd.Flags().BoolVar(&mock, "mock", false, "use the scripted demo agent instead of a live model")
}

func buildInvoker(cfg *config.Config) stream.Invoker {
	if mock {
		return invokerFunc(func(ctx context.Context, input string, onEvent func(stream.Event)) (*stream.Result, error) {
			return agent.Script(input).Invoke(ctx, input, onEvent)
		})
	}

	registry := agent.NewRegistry()
	registry.Register(tools.NewCalculator())
	registry.Register(tools.NewWeather())
	if cfg.BraveAPIKey != "" {
		registry.Register(tools.NewWeb(cfg.BraveAPIKey))
	}
	return agent.NewOpenAI(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, registry)
}

func openStore(cfg *config.Config) *history.Store {
	database, err := db.Open(cfg.DB.Path)
	if err != nil {
		slog.Warn("history disabled", "error", err)
		return nil
	}
	if err := database.Migrate(); err != nil {
		slog.Warn("history disabled", "error", err)
		return nil
	}
	return history.NewStore(database)
}

// invokerFunc adapts a function to the stream.Invoker interface.
type invokerFunc func(context.Context, string, func(stream.Event)) (*stream.Result, error)

func (f invokerFunc) Invoke(ctx context.Context, input string, onEvent func(stream.Event)) (*stream.Result, error) {
	return f(ctx, input, onEvent)
}
