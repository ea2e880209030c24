package live

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fluentvoice/tutorlive/pkg/live/protocol"
)

// DefaultModel is the native-audio conversational model.
const DefaultModel = "models/gemini-2.5-flash-native-audio-preview-09-2025"

const defaultHandshakeTimeout = 15 * time.Second

// SessionState is the connection state of a Session.
type SessionState int32

const (
	// StateIdle means no connection exists.
	StateIdle SessionState = iota
	// StateConnecting means the websocket dial or setup handshake is in flight.
	StateConnecting
	// StateOpen means the stream is established and audio may flow.
	StateOpen
	// StateClosing means teardown has begun.
	StateClosing
	// StateError means the session ended with an unrecoverable error.
	StateError
)

// String returns a human-readable state name.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// SessionConfig configures one live session.
type SessionConfig struct {
	// APIKey authenticates against the Live API. Required.
	APIKey string

	// Model overrides DefaultModel.
	Model string

	// SystemInstruction overrides the default tutoring directive.
	SystemInstruction string

	// Tools are the function declarations advertised at setup. Defaults to
	// the feedback tool as the sole tool.
	Tools []protocol.Tool

	// Endpoint overrides the full websocket URL (scheme, host and path).
	// The API key query parameter is appended by Connect. Used by tests.
	Endpoint string

	// HandshakeTimeout bounds dial plus setup acknowledgment.
	HandshakeTimeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (c SessionConfig) normalized() (SessionConfig, error) {
	c.APIKey = strings.TrimSpace(c.APIKey)
	if c.APIKey == "" {
		return c, NewAuthError("API key is not configured", nil)
	}
	if strings.TrimSpace(c.Model) == "" {
		c.Model = DefaultModel
	}
	if strings.TrimSpace(c.SystemInstruction) == "" {
		c.SystemInstruction = SystemInstruction
	}
	if c.Tools == nil {
		c.Tools = []protocol.Tool{FeedbackTool()}
	}
	if c.Endpoint == "" {
		c.Endpoint = "wss://" + protocol.DefaultHost + protocol.BidiPath
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = defaultHandshakeTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c, nil
}

// Session owns the bidirectional connection to the remote conversational
// service. Inbound frames are decoded by a single read loop and emitted as
// typed events in arrival order on Events(); the channel closes when the
// session ends for any reason.
type Session struct {
	conn   *websocket.Conn
	logger *slog.Logger

	state  atomic.Int32
	events chan Event
	done   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once

	errMu sync.Mutex
	err   error
}

// Connect establishes the stream: dial, send the setup frame, await the
// setup acknowledgment. On failure the returned error is an auth error for
// rejected credentials and a connection error otherwise.
func Connect(ctx context.Context, cfg SessionConfig) (*Session, error) {
	cfg, err := cfg.normalized()
	if err != nil {
		return nil, err
	}

	s := &Session{
		logger: cfg.Logger,
		events: make(chan Event, 256),
		done:   make(chan struct{}),
	}
	s.state.Store(int32(StateConnecting))

	wsURL, err := sessionURL(cfg)
	if err != nil {
		s.state.Store(int32(StateError))
		return nil, NewConnectionError("invalid session endpoint", err)
	}

	dialCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.HandshakeTimeout)
		defer cancel()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, wsURL, nil)
	if err != nil {
		s.state.Store(int32(StateError))
		if resp != nil && (resp.StatusCode == 401 || resp.StatusCode == 403) {
			return nil, NewAuthError("the service rejected the API key", err)
		}
		return nil, NewConnectionError("failed to open live session", err)
	}
	s.conn = conn

	setup := protocol.ClientMessage{Setup: &protocol.Setup{
		Model:                    cfg.Model,
		GenerationConfig:         &protocol.GenerationConfig{ResponseModalities: []string{protocol.ModalityAudio}},
		SystemInstruction:        &protocol.Content{Parts: []protocol.Part{{Text: cfg.SystemInstruction}}},
		Tools:                    cfg.Tools,
		InputAudioTranscription:  &protocol.TranscriptionConfig{},
		OutputAudioTranscription: &protocol.TranscriptionConfig{},
	}}
	if err := conn.WriteJSON(setup); err != nil {
		_ = conn.Close()
		s.state.Store(int32(StateError))
		return nil, NewConnectionError("failed to send session setup", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(cfg.HandshakeTimeout))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		s.state.Store(int32(StateError))
		return nil, classifyCloseError("setup was not acknowledged", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	first, err := protocol.DecodeServerMessage(payload)
	if err != nil || first.SetupComplete == nil {
		_ = conn.Close()
		s.state.Store(int32(StateError))
		return nil, NewConnectionError("unexpected first frame from service", err)
	}

	s.state.Store(int32(StateOpen))
	go s.readLoop()
	return s, nil
}

func sessionURL(cfg SessionConfig) (string, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("key", cfg.APIKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// State returns the current connection state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Events yields inbound events in arrival order. Closed on session end.
func (s *Session) Events() <-chan Event {
	return s.events
}

// SendAudio submits one wire-encoded audio chunk, fire-and-forget. Sends
// while the session is not open are silently dropped.
func (s *Session) SendAudio(mimeType string, pcm []byte) error {
	if s.State() != StateOpen {
		return nil
	}
	msg := protocol.ClientMessage{RealtimeInput: &protocol.RealtimeInput{
		MediaChunks: []protocol.Blob{{
			MIMEType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(pcm),
		}},
	}}
	return s.sendJSON(msg)
}

// SendToolResult acknowledges one tool invocation. Every received invocation
// must be acknowledged or the remote turn stalls indefinitely.
func (s *Session) SendToolResult(id, name string, result map[string]any) error {
	if s.State() != StateOpen {
		return NewConnectionError("cannot acknowledge tool call: session is not open", nil)
	}
	msg := protocol.ClientMessage{ToolResponse: &protocol.ToolResponse{
		FunctionResponses: []protocol.FunctionResponse{{
			ID:       id,
			Name:     name,
			Response: result,
		}},
	}}
	return s.sendJSON(msg)
}

func (s *Session) sendJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

// Close releases the connection. Idempotent and safe from error paths; it
// returns after the read loop has drained.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosing))
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(2*time.Second))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
	<-s.done
	if s.State() != StateError {
		s.state.Store(int32(StateIdle))
	}
	return nil
}

// Err returns the terminal session error, if any, once the session ends.
func (s *Session) Err() error {
	<-s.done
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Session) setErr(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *Session) readLoop() {
	defer close(s.done)
	defer close(s.events)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
				s.State() == StateClosing {
				// Orderly close, remote- or self-initiated.
				if s.State() != StateClosing {
					s.state.Store(int32(StateIdle))
				}
				return
			}
			s.setErr(classifyCloseError("live session transport failed", err))
			s.state.Store(int32(StateError))
			return
		}

		msg, err := protocol.DecodeServerMessage(data)
		if err != nil {
			protocolSkips.Inc()
			s.logger.Warn("skipping malformed inbound frame", "error", err)
			continue
		}
		if msg.IsEmpty() {
			protocolSkips.Inc()
			s.logger.Warn("skipping unrecognized inbound frame")
			continue
		}

		for _, event := range eventsFromServerMessage(msg) {
			s.emit(event)
		}
	}
}

func (s *Session) emit(event Event) {
	select {
	case s.events <- event:
	default:
		// Do not block the read loop if the consumer stalls.
		s.logger.Warn("dropping inbound event: consumer not keeping up",
			"event", event.EventType())
	}
}

// classifyCloseError distinguishes credential rejection from generic
// transport failure so callers can prompt for a new key instead of retrying.
func classifyCloseError(message string, err error) *Error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		text := strings.ToLower(closeErr.Text)
		if closeErr.Code == websocket.ClosePolicyViolation ||
			strings.Contains(text, "api key") ||
			strings.Contains(text, "permission_denied") ||
			strings.Contains(text, "unauthenticated") {
			return NewAuthError("the service rejected the API key", err)
		}
	}
	return NewConnectionError(message, err)
}
