package agent

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"eddy/internal/stream"
	"eddy/internal/trace"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const defaultSystemPrompt = "You are a helpful assistant. When you need to think " +
	"through a problem, put your reasoning inside <thinking></thinking> tags before answering."

// OpenAIInvoker runs the model through the Responses API, executing registry
// tools between turns until the model stops asking for them. It emits the
// callback events the stream handlers understand: lifecycle markers, data
// deltas, reasoning deltas, tool use and tool results.
type OpenAIInvoker struct {
	client       *openai.Client
	model        string
	registry     *Registry
	tools        []responses.ToolUnionParam
	systemPrompt string
}

type OpenAIOption func(*OpenAIInvoker)

func WithSystemPrompt(s string) OpenAIOption {
	return func(o *OpenAIInvoker) { o.systemPrompt = s }
}

func NewOpenAI(baseURL, apiKey, model string, registry *Registry, opts ...OpenAIOption) *OpenAIInvoker {
	var copts []option.RequestOption
	if apiKey != "" {
		copts = append(copts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		copts = append(copts, option.WithBaseURL(baseURL))
	}
	copts = append(copts, option.WithHTTPClient(&http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}))
	client := openai.NewClient(copts...)

	inv := &OpenAIInvoker{
		client:       &client,
		model:        model,
		registry:     registry,
		systemPrompt: defaultSystemPrompt,
	}
	for _, opt := range opts {
		opt(inv)
	}

	for _, t := range registry.All() {
		schema, _ := t.InputSchema().(map[string]any)
		inv.tools = append(inv.tools, responses.ToolUnionParam{
			OfFunction: &responses.FunctionToolParam{
				Name:        t.Name(),
				Description: openai.String(t.Description()),
				Parameters:  schema,
				Strict:      openai.Bool(true),
			},
		})
	}
	return inv
}

// Invoke blocks until the model finishes the whole turn, emitting events as
// output arrives. Tool results are fed back into the model until it produces
// a final answer.
func (o *OpenAIInvoker) Invoke(ctx context.Context, input string, onEvent func(stream.Event)) (*stream.Result, error) {
	ctx, span := trace.Tracer().Start(ctx, "agent.invoke",
		oteltrace.WithAttributes(attribute.String("llm.model", o.model)),
	)
	defer span.End()

	onEvent(stream.Event{"init_event_loop": true})

	items := []responses.ResponseInputItemUnionParam{
		responses.ResponseInputItemParamOfMessage(o.systemPrompt, "developer"),
		responses.ResponseInputItemParamOfMessage(input, "user"),
	}

	metrics := stream.Metrics{ToolInputs: make(map[string]any)}
	var lastText string
	iteration := 0

	for {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		onEvent(stream.Event{"start_event_loop": iteration})

		resp, text, err := o.turn(ctx, items, onEvent)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		iteration++
		metrics.InputTokens += resp.Usage.InputTokens
		metrics.OutputTokens += resp.Usage.OutputTokens
		if text != "" {
			lastText = text
		}

		// Feed the model's output (including its reasoning) back into context.
		items = append(items, outputToInput(resp.Output)...)

		var calls []responses.ResponseOutputItemUnion
		for _, item := range resp.Output {
			if item.Type == "function_call" {
				calls = append(calls, item)
			}
		}

		// No tool calls: the model considers the turn done.
		if len(calls) == 0 {
			onEvent(stream.Event{"complete": true})
			return &stream.Result{
				Message: map[string]any{
					"content": []any{map[string]any{"text": lastText}},
				},
				Metrics: metrics,
			}, nil
		}

		items = append(items, o.act(ctx, calls, metrics.ToolInputs, onEvent)...)
	}
}

// turn is a single streaming model call. Text and reasoning deltas are
// emitted as they arrive.
func (o *OpenAIInvoker) turn(ctx context.Context, items []responses.ResponseInputItemUnionParam, onEvent func(stream.Event)) (*responses.Response, string, error) {
	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(o.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: items,
		},
		Tools: o.tools,
	}

	s := o.client.Responses.NewStreaming(ctx, params)

	var completed *responses.Response
	var text string

	for s.Next() {
		event := s.Current()
		switch event.Type {
		case "response.output_text.delta":
			if event.Delta != "" {
				text += event.Delta
				onEvent(stream.Event{"data": event.Delta})
			}
		case "response.reasoning_summary_text.delta":
			if event.Delta != "" {
				onEvent(stream.Event{"reasoningText": event.Delta})
			}
		case "response.completed":
			completed = &event.Response
		case "response.failed":
			return nil, "", fmt.Errorf("response failed: %s", event.Response.Error.Message)
		}
	}
	if err := s.Err(); err != nil {
		return nil, "", err
	}
	if completed == nil {
		return nil, "", fmt.Errorf("stream ended without a completed response")
	}
	return completed, text, nil
}

// act executes tool calls one at a time so the emitted events stay in FIFO
// order, and returns the results as input items for the next model turn.
// Tool inputs are also recorded for post-hoc backfill.
func (o *OpenAIInvoker) act(ctx context.Context, calls []responses.ResponseOutputItemUnion, toolInputs map[string]any, onEvent func(stream.Event)) []responses.ResponseInputItemUnionParam {
	results := make([]responses.ResponseInputItemUnionParam, 0, len(calls))

	for _, call := range calls {
		fc := call.AsFunctionCall()
		toolInputs[fc.CallID] = fc.Arguments

		onEvent(stream.Event{"current_tool_use": map[string]any{
			"toolUseId": fc.CallID,
			"name":      fc.Name,
			"input":     fc.Arguments,
		}})

		output := o.execute(ctx, fc.Name, fc.Arguments)
		results = append(results, responses.ResponseInputItemParamOfFunctionCallOutput(fc.CallID, output))

		onEvent(stream.Event{"tool_result": map[string]any{
			"toolUseId": fc.CallID,
			"name":      fc.Name,
			"output":    output,
		}})
	}
	return results
}

func (o *OpenAIInvoker) execute(ctx context.Context, name, args string) string {
	tool, ok := o.registry.Get(name)
	if !ok {
		slog.Warn("unknown tool call", "name", name)
		return "error: unknown tool"
	}

	result, err := withTrace(tool).Execute(ctx, args)
	if err != nil {
		slog.Warn("tool execution failed", "name", name, "error", err)
		return "error: " + err.Error()
	}
	return result
}

// outputToInput converts response output items into input item params for the
// next API call. Each ToParam() round-trips losslessly via RawJSON.
func outputToInput(output []responses.ResponseOutputItemUnion) []responses.ResponseInputItemUnionParam {
	var items []responses.ResponseInputItemUnionParam
	for _, item := range output {
		switch item.Type {
		case "message":
			v := item.AsMessage().ToParam()
			items = append(items, responses.ResponseInputItemUnionParam{OfOutputMessage: &v})
		case "function_call":
			v := item.AsFunctionCall().ToParam()
			items = append(items, responses.ResponseInputItemUnionParam{OfFunctionCall: &v})
		case "reasoning":
			v := item.AsReasoning().ToParam()
			items = append(items, responses.ResponseInputItemUnionParam{OfReasoning: &v})
		default:
			slog.Debug("skipping unknown output item type", "type", item.Type)
		}
	}
	return items
}
