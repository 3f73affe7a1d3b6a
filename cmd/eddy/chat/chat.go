package chat

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"

	"eddy/internal/agent"
	"eddy/internal/config"
	"eddy/internal/db"
	"eddy/internal/history"
	"eddy/internal/render"
	"eddy/internal/stream"
	"eddy/internal/tools"
	"eddy/internal/trace"

	"github.com/spf13/cobra"
)

var (
	sessionID string
	mock      bool
)

var Cmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the agent from the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return run(cmd.Context(), cfg)
	},
}

func init() {
	Cmd.Flags().StringVarP(&sessionID, "session", "s", "default", "session id for history")
	Cmd.Flags().BoolVar(&mock, "mock", false, "use the scripted demo agent instead of a live model")
}

func run(ctx context.Context, cfg *config.Config) error {
	if cfg.Trace.Endpoint != "" {
		shutdown, err := trace.Init(ctx, trace.Config{
			Endpoint: cfg.Trace.Endpoint,
			URLPath:  cfg.Trace.URLPath,
			APIKey:   cfg.Trace.APIKey,
		})
		if err != nil {
			slog.Warn("tracing disabled", "error", err)
		} else {
			defer shutdown(ctx)
		}
	}

	store := openStore(cfg)

	invoker := buildInvoker(cfg)
	splitter := stream.NewSplitter(cfg.Stream.MarkerOpen, cfg.Stream.MarkerClose, cfg.Stream.Lookahead)
	state := stream.NewState(splitter)
	registry := stream.NewRegistry()
	stream.RegisterDefaults(registry, state)
	if cfg.Stream.Debug {
		registry.Register(stream.NewDebugHandler(true, cfg.Stream.DebugEvents), 95)
	}

	session := stream.NewSession(invoker, state, stream.Config{
		Deadline:    cfg.Stream.Deadline.Duration,
		WaitTimeout: cfg.Stream.WaitTimeout.Duration,
		QueueSize:   cfg.Stream.QueueSize,
	})
	assembler := stream.NewAssembler(state)
	terminal := render.NewTerminal(os.Stdout)

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		input := scanner.Text()
		if input == "" {
			fmt.Print("> ")
			continue
		}

		terminal.Reset()
		session.Start(ctx, input)

		for ev := range session.Events() {
			registry.Dispatch(ev)
			switch stream.Classify(ev) {
			case stream.KindToolUse:
				if n := len(state.Tools); n > 0 {
					terminal.ToolStarted(state.Tools[n-1])
				}
			case stream.KindToolResult:
				if n := len(state.Tools); n > 0 {
					terminal.ToolFinished(state.Tools[n-1])
				}
			}
			terminal.Update(assembler.Snapshot())
		}

		msg := assembler.Finalize()
		terminal.Finish(msg)

		if store != nil {
			if err := store.SaveTurn(ctx, sessionID, input, msg); err != nil {
				slog.Warn("failed to save turn", "error", err)
			}
		}

		fmt.Print("\n> ")
	}
	return scanner.Err()
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
	store := history.NewStore(database)
	if err := store.EnsureSession(context.Background(), sessionID, "terminal"); err != nil {
		slog.Warn("failed to ensure session", "error", err)
	}
	return store
}

// invokerFunc adapts a function to the stream.Invoker interface.
type invokerFunc func(context.Context, string, func(stream.Event)) (*stream.Result, error)

func (f invokerFunc) Invoke(ctx context.Context, input string, onEvent func(stream.Event)) (*stream.Result, error) {
	return f(ctx, input, onEvent)
}
