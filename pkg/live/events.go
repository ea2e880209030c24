package live

import (
	"github.com/fluentvoice/tutorlive/pkg/live/protocol"
)

// Event is the interface for all inbound session events. Events are emitted
// in arrival order; one server frame may expand to several events when it
// carries more than one kind of payload.
type Event interface {
	// EventType returns the event type string for logging.
	EventType() string
}

// ToolCallEvent carries tool invocations requested by the model mid-turn.
// Each invocation must receive exactly one acknowledgment.
type ToolCallEvent struct {
	Calls []protocol.FunctionCall
}

func (e ToolCallEvent) EventType() string { return "tool_call" }

// InputTranscriptionEvent is a partial transcription delta of user speech.
type InputTranscriptionEvent struct {
	Text string
}

func (e InputTranscriptionEvent) EventType() string { return "input_transcription" }

// OutputTranscriptionEvent is a partial transcription delta of model speech.
type OutputTranscriptionEvent struct {
	Text string
}

func (e OutputTranscriptionEvent) EventType() string { return "output_transcription" }

// TurnCompleteEvent marks a turn boundary.
type TurnCompleteEvent struct{}

func (e TurnCompleteEvent) EventType() string { return "turn_complete" }

// AudioChunkEvent carries one inline audio payload (base64 PCM) for playback.
type AudioChunkEvent struct {
	Chunk protocol.Blob
}

func (e AudioChunkEvent) EventType() string { return "audio_chunk" }

// InterruptedEvent signals the user barged in over model speech; all
// in-flight playback must stop immediately.
type InterruptedEvent struct{}

func (e InterruptedEvent) EventType() string { return "interrupted" }

// GoAwayEvent warns that the server will close the connection soon.
type GoAwayEvent struct {
	TimeLeft string
}

func (e GoAwayEvent) EventType() string { return "go_away" }

// eventsFromServerMessage expands one decoded server frame into dispatch
// events. The order within a frame matters and is fixed: tool calls, input
// transcription, output transcription, turn complete, audio, interruption.
func eventsFromServerMessage(msg *protocol.ServerMessage) []Event {
	var events []Event

	if msg.ToolCall != nil && len(msg.ToolCall.FunctionCalls) > 0 {
		events = append(events, ToolCallEvent{Calls: msg.ToolCall.FunctionCalls})
	}
	if sc := msg.ServerContent; sc != nil {
		if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
			events = append(events, InputTranscriptionEvent{Text: sc.InputTranscription.Text})
		}
		if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
			events = append(events, OutputTranscriptionEvent{Text: sc.OutputTranscription.Text})
		}
		if sc.TurnComplete {
			events = append(events, TurnCompleteEvent{})
		}
		for _, blob := range sc.InlineAudio() {
			events = append(events, AudioChunkEvent{Chunk: blob})
		}
		if sc.Interrupted {
			events = append(events, InterruptedEvent{})
		}
	}
	if msg.GoAway != nil {
		events = append(events, GoAwayEvent{TimeLeft: msg.GoAway.TimeLeft})
	}

	return events
}
