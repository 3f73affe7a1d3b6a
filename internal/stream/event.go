package stream

// Event is one callback payload from the computation. Events are built once
// by the producer and never mutated after that; handlers only read them.
type Event map[string]any

// Kind classifies an event for dispatch routing. It is derived, never stored.
type Kind string

const (
	KindData          Kind = "data"
	KindToolUse       Kind = "current_tool_use"
	KindToolResult    Kind = "tool_result"
	KindReasoning     Kind = "reasoningText"
	KindReasoningSig  Kind = "reasoning_signature"
	KindRedacted      Kind = "redactedContent"
	KindResult        Kind = "result"
	KindForceStop     Kind = "force_stop"
	KindInit          Kind = "init_event_loop"
	KindStart         Kind = "start"
	KindStartLoop     Kind = "start_event_loop"
	KindMessage       Kind = "message"
	KindProgressEvent Kind = "event"
	KindComplete      Kind = "complete"
	KindUnknown       Kind = "unknown"
)

// classifyOrder is the fixed priority list for events that carry several keys,
// e.g. {"force_stop": true, "force_stop_reason": "..."} classifies as force_stop
// and a combined delta classifies as data.
var classifyOrder = []Kind{
	KindData,
	KindToolUse,
	KindToolResult,
	KindReasoning,
	KindResult,
	KindForceStop,
}

// Classify derives the kind of an event. It is deterministic and total: known
// keys win in classifyOrder, otherwise the smallest key names the kind (map
// iteration order must not leak into routing), and an empty event is KindUnknown.
func Classify(ev Event) Kind {
	for _, k := range classifyOrder {
		if _, ok := ev[string(k)]; ok {
			return k
		}
	}
	first := ""
	for key := range ev {
		if first == "" || key < first {
			first = key
		}
	}
	if first == "" {
		return KindUnknown
	}
	return Kind(first)
}

// Terminal reports whether an event ends the stream: either the computation
// returned a result or it was force-stopped.
func Terminal(ev Event) bool {
	if _, ok := ev[string(KindResult)]; ok {
		return true
	}
	stopped, _ := ev[string(KindForceStop)].(bool)
	return stopped
}

// StopReason extracts the force-stop reason, if present.
func StopReason(ev Event) string {
	reason, _ := ev["force_stop_reason"].(string)
	return reason
}
