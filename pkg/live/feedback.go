package live

import (
	"fmt"

	"github.com/fluentvoice/tutorlive/pkg/live/protocol"
)

// FeedbackToolName is the sole tool advertised to the model.
const FeedbackToolName = "provideFeedback"

// SystemInstruction is the fixed tutoring directive sent at session setup.
// It mandates one provideFeedback invocation per user utterance before the
// model responds verbally.
const SystemInstruction = `You are a friendly and helpful English tutor. Your goal is to help the user practice speaking English.
1. Listen carefully to what the user says.
2. ALWAYS call the "provideFeedback" tool to evaluate their sentence structure, grammar, and naturalness. Give a score (0-100), a corrected version of their sentence (Better way to say), and a short explanation.
3. After calling the tool, respond verbally to the content of their message to keep the conversation flowing naturally. Be encouraging. Do not explicitly read out the score or the correction unless it is a major error that hinders understanding.`

// Feedback is the structured payload of one provideFeedback invocation.
// Grading is entirely the remote model's responsibility; the client only
// validates shape and passes it through.
type Feedback struct {
	Score           float64 `json:"score"`
	CorrectedPhrase string  `json:"correctedPhrase"`
	Explanation     string  `json:"explanation"`
}

// FeedbackTool returns the tool declaration advertised at setup time.
func FeedbackTool() protocol.Tool {
	return protocol.Tool{
		FunctionDeclarations: []protocol.FunctionDeclaration{{
			Name:        FeedbackToolName,
			Description: "Provides feedback on the user's English grammar, sentence structure, and fluency.",
			Parameters: &protocol.Schema{
				Type: protocol.TypeObject,
				Properties: map[string]*protocol.Schema{
					"score": {
						Type:        protocol.TypeNumber,
						Description: "A score from 0 to 100 based on grammar, vocabulary usage, and clarity.",
					},
					"correctedPhrase": {
						Type:        protocol.TypeString,
						Description: "A corrected or more natural version of what the user said. If it was perfect, just repeat it or make it slightly more native-like.",
					},
					"explanation": {
						Type:        protocol.TypeString,
						Description: "A brief explanation of the grammar error or a tip to sound more natural.",
					},
				},
				Required: []string{"score", "correctedPhrase", "explanation"},
			},
		}},
	}
}

// ParseFeedback loosely validates tool arguments: fields must be of the
// expected kind when present. Missing strings decode as empty.
func ParseFeedback(args map[string]any) (*Feedback, error) {
	fb := &Feedback{}

	score, ok := args["score"].(float64)
	if !ok {
		return nil, fmt.Errorf("feedback score is %T, want number", args["score"])
	}
	fb.Score = score

	if v, present := args["correctedPhrase"]; present {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("feedback correctedPhrase is %T, want string", v)
		}
		fb.CorrectedPhrase = s
	}
	if v, present := args["explanation"]; present {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("feedback explanation is %T, want string", v)
		}
		fb.Explanation = s
	}
	return fb, nil
}

// toolAck is the generic acknowledgment payload for every invocation.
func toolAck() map[string]any {
	return map[string]any{"result": "ok"}
}
