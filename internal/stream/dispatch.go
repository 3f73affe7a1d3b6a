package stream

import (
	"fmt"
	"sort"
)

// Handler processes events of the kinds it claims. Handle may return derived
// data for the dispatch outcome list, or nil when it has nothing to report.
type Handler interface {
	Name() string
	CanHandle(kind Kind) bool
	Handle(ev Event) (map[string]any, error)
}

// HandlerError captures a single handler failure as data. It never propagates
// as a raised error; the stream keeps going.
type HandlerError struct {
	Handler string `json:"handler"`
	ErrKind string `json:"error_type"`
	Message string `json:"error_message"`
	Event   Kind   `json:"event_type"`
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s failed on %s event: %s", e.Handler, e.Event, e.Message)
}

// Outcome is one handler's contribution to a dispatch call: either derived
// data or a captured failure.
type Outcome struct {
	Handler string         `json:"handler"`
	Kind    Kind           `json:"event_type"`
	Data    map[string]any `json:"data,omitempty"`
	Err     *HandlerError  `json:"handler_error,omitempty"`
}

type registration struct {
	handler  Handler
	priority int
}

// Registry routes events to handlers in priority order (lower first, ties in
// registration order).
type Registry struct {
	handlers []registration
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a handler at the given priority and re-sorts. The sort is
// stable so equal priorities keep registration order.
func (r *Registry) Register(h Handler, priority int) {
	r.handlers = append(r.handlers, registration{handler: h, priority: priority})
	sort.SliceStable(r.handlers, func(i, j int) bool {
		return r.handlers[i].priority < r.handlers[j].priority
	})
}

// Handlers returns the registered handlers that claim the given kind, in
// dispatch order.
func (r *Registry) Handlers(kind Kind) []Handler {
	var out []Handler
	for _, reg := range r.handlers {
		if reg.handler.CanHandle(kind) {
			out = append(out, reg.handler)
		}
	}
	return out
}

// Dispatch classifies the event once and runs every accepting handler in
// order. A failing handler (error return or panic) becomes a structured
// Outcome and the remaining handlers still run; Dispatch itself never fails.
// An event no handler claims is silently dropped.
func (r *Registry) Dispatch(ev Event) []Outcome {
	kind := Classify(ev)

	var outcomes []Outcome
	for _, reg := range r.handlers {
		if !reg.handler.CanHandle(kind) {
			continue
		}
		data, err := r.invoke(reg.handler, ev)
		if err != nil {
			outcomes = append(outcomes, Outcome{
				Handler: reg.handler.Name(),
				Kind:    kind,
				Err: &HandlerError{
					Handler: reg.handler.Name(),
					ErrKind: fmt.Sprintf("%T", err),
					Message: err.Error(),
					Event:   kind,
				},
			})
			continue
		}
		if len(data) > 0 {
			outcomes = append(outcomes, Outcome{
				Handler: reg.handler.Name(),
				Kind:    kind,
				Data:    data,
			})
		}
	}
	return outcomes
}

// invoke isolates a single handler call, turning panics into errors.
func (r *Registry) invoke(h Handler, ev Event) (data map[string]any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return h.Handle(ev)
}
