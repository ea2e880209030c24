package live

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/fluentvoice/tutorlive/pkg/live/protocol"
)

// Entry is one finalized user/model exchange, immutable once emitted.
type Entry struct {
	User     string
	Model    string
	Feedback *Feedback
}

// ToolResponder acknowledges tool invocations. Satisfied by *Session.
type ToolResponder interface {
	SendToolResult(id, name string, result map[string]any) error
}

// Aggregator accumulates per-turn transcription deltas and the latest
// feedback, emitting one Entry per turn boundary. All methods are called
// from the single inbound dispatch context; the mutex guards against
// concurrent teardown.
type Aggregator struct {
	responder ToolResponder
	emit      func(Entry)
	logger    *slog.Logger

	mu       sync.Mutex
	input    strings.Builder
	output   strings.Builder
	feedback *Feedback
}

// NewAggregator creates an Aggregator. emit may be nil when no transcript
// consumer is attached.
func NewAggregator(responder ToolResponder, emit func(Entry), logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{responder: responder, emit: emit, logger: logger}
}

// AddInput appends a user transcription delta to the current turn.
func (a *Aggregator) AddInput(delta string) {
	a.mu.Lock()
	a.input.WriteString(delta)
	a.mu.Unlock()
}

// AddOutput appends a model transcription delta to the current turn.
func (a *Aggregator) AddOutput(delta string) {
	a.mu.Lock()
	a.output.WriteString(delta)
	a.mu.Unlock()
}

// HandleToolCalls processes invocations in arrival order. A provideFeedback
// call replaces any pending feedback for the turn (latest wins); every call,
// recognized or not, is acknowledged exactly once so the remote turn can
// proceed.
func (a *Aggregator) HandleToolCalls(calls []protocol.FunctionCall) {
	for _, call := range calls {
		if call.Name == FeedbackToolName {
			fb, err := ParseFeedback(call.Args)
			if err != nil {
				a.logger.Warn("ignoring malformed feedback arguments",
					"tool_id", call.ID, "error", err)
			} else {
				a.mu.Lock()
				a.feedback = fb
				a.mu.Unlock()
			}
		}
		if err := a.responder.SendToolResult(call.ID, call.Name, toolAck()); err != nil {
			a.logger.Warn("tool acknowledgment failed",
				"tool_id", call.ID, "tool_name", call.Name, "error", err)
		}
	}
}

// CompleteTurn emits one Entry if either accumulator is non-empty, then
// unconditionally resets all per-turn state so stale feedback never leaks
// into the next turn.
func (a *Aggregator) CompleteTurn() {
	a.mu.Lock()
	user := strings.TrimSpace(a.input.String())
	model := strings.TrimSpace(a.output.String())
	feedback := a.feedback
	a.input.Reset()
	a.output.Reset()
	a.feedback = nil
	a.mu.Unlock()

	if user == "" && model == "" {
		return
	}
	turnsCompleted.Inc()
	if a.emit != nil {
		a.emit(Entry{User: user, Model: model, Feedback: feedback})
	}
}

// Reset discards all per-turn state without emitting.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.input.Reset()
	a.output.Reset()
	a.feedback = nil
	a.mu.Unlock()
}
