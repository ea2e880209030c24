// Package protocol defines the wire messages exchanged with the Gemini Live
// bidirectional websocket API (BidiGenerateContent). All frames are JSON text
// frames; exactly one top-level field is set per message.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// DefaultHost is the production Live API host.
	DefaultHost = "generativelanguage.googleapis.com"

	// BidiPath is the websocket path for bidirectional generation.
	BidiPath = "/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	// ModalityAudio requests spoken responses.
	ModalityAudio = "AUDIO"

	// Schema type names used by function declarations.
	TypeObject = "OBJECT"
	TypeString = "STRING"
	TypeNumber = "NUMBER"
)

// Blob is an inline media payload. Data is standard base64.
type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Part is one piece of model or user content.
type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inlineData,omitempty"`
}

// Content is an ordered list of parts with an optional role.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts,omitempty"`
}

// Schema is the subset of JSON Schema the Live API accepts for tool parameters.
type Schema struct {
	Type        string             `json:"type,omitempty"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// FunctionDeclaration describes one callable tool.
type FunctionDeclaration struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Parameters  *Schema `json:"parameters,omitempty"`
}

// Tool groups function declarations advertised at setup time.
type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations,omitempty"`
}

// GenerationConfig carries the requested response modalities.
type GenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

// TranscriptionConfig enables transcription for one direction. The API takes
// an empty object; presence is what matters.
type TranscriptionConfig struct{}

// Setup is the first client frame of every session.
type Setup struct {
	Model                    string               `json:"model"`
	GenerationConfig         *GenerationConfig    `json:"generationConfig,omitempty"`
	SystemInstruction        *Content             `json:"systemInstruction,omitempty"`
	Tools                    []Tool               `json:"tools,omitempty"`
	InputAudioTranscription  *TranscriptionConfig `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *TranscriptionConfig `json:"outputAudioTranscription,omitempty"`
}

// RealtimeInput streams captured media to the model.
type RealtimeInput struct {
	MediaChunks []Blob `json:"mediaChunks,omitempty"`
}

// FunctionResponse acknowledges one tool invocation.
type FunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name,omitempty"`
	Response map[string]any `json:"response,omitempty"`
}

// ToolResponse carries function responses back to the model.
type ToolResponse struct {
	FunctionResponses []FunctionResponse `json:"functionResponses,omitempty"`
}

// ClientMessage is the envelope for all client frames.
type ClientMessage struct {
	Setup         *Setup         `json:"setup,omitempty"`
	RealtimeInput *RealtimeInput `json:"realtimeInput,omitempty"`
	ToolResponse  *ToolResponse  `json:"toolResponse,omitempty"`
}

// SetupComplete acknowledges stream establishment.
type SetupComplete struct{}

// Transcription is a partial transcription delta for one direction.
type Transcription struct {
	Text     string `json:"text,omitempty"`
	Finished bool   `json:"finished,omitempty"`
}

// ServerContent is incremental model output. Several fields may be populated
// in the same frame; consumers must not assume any two are exclusive.
type ServerContent struct {
	ModelTurn           *Content       `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	GenerationComplete  bool           `json:"generationComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	InputTranscription  *Transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *Transcription `json:"outputTranscription,omitempty"`
}

// FunctionCall is one tool invocation requested by the model.
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name,omitempty"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolCall requests client-side tool execution mid-turn.
type ToolCall struct {
	FunctionCalls []FunctionCall `json:"functionCalls,omitempty"`
}

// ToolCallCancellation withdraws previously issued tool calls.
type ToolCallCancellation struct {
	IDs []string `json:"ids,omitempty"`
}

// GoAway warns that the server will close the connection soon.
type GoAway struct {
	TimeLeft string `json:"timeLeft,omitempty"`
}

// ServerMessage is the envelope for all server frames.
type ServerMessage struct {
	SetupComplete        *SetupComplete        `json:"setupComplete,omitempty"`
	ServerContent        *ServerContent        `json:"serverContent,omitempty"`
	ToolCall             *ToolCall             `json:"toolCall,omitempty"`
	ToolCallCancellation *ToolCallCancellation `json:"toolCallCancellation,omitempty"`
	GoAway               *GoAway               `json:"goAway,omitempty"`
	UsageMetadata        json.RawMessage       `json:"usageMetadata,omitempty"`
}

// DecodeServerMessage parses one server frame. A frame with no recognized
// top-level field decodes successfully but IsEmpty reports true; callers treat
// that as a skippable protocol anomaly.
func DecodeServerMessage(data []byte) (*ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode server frame: %w", err)
	}
	return &msg, nil
}

// IsEmpty reports whether no known top-level field is present.
func (m *ServerMessage) IsEmpty() bool {
	if m == nil {
		return true
	}
	return m.SetupComplete == nil &&
		m.ServerContent == nil &&
		m.ToolCall == nil &&
		m.ToolCallCancellation == nil &&
		m.GoAway == nil &&
		len(m.UsageMetadata) == 0
}

// InlineAudio returns the inline audio blobs of a model turn, in part order.
func (c *ServerContent) InlineAudio() []Blob {
	if c == nil || c.ModelTurn == nil {
		return nil
	}
	var blobs []Blob
	for _, part := range c.ModelTurn.Parts {
		if part.InlineData != nil && strings.HasPrefix(part.InlineData.MIMEType, "audio/") {
			blobs = append(blobs, *part.InlineData)
		}
	}
	return blobs
}
