package live

import (
	"log/slog"

	"github.com/fluentvoice/tutorlive/pkg/audio"
)

// AudioSender forwards wire-encoded audio to the remote session. Satisfied
// by *Session.
type AudioSender interface {
	SendAudio(mimeType string, pcm []byte) error
}

// OutboundEncoder converts captured float frames to 16-bit signed PCM and
// forwards them to the session at capture cadence. Sends are unacknowledged
// and apply no backpressure: a slow send path never delays the next frame,
// and frames submitted while no session is open are silently dropped by the
// sender. Failures are counted, not surfaced.
type OutboundEncoder struct {
	sink   AudioSender
	logger *slog.Logger
}

// NewOutboundEncoder creates an encoder feeding the given sink.
func NewOutboundEncoder(sink AudioSender, logger *slog.Logger) *OutboundEncoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboundEncoder{sink: sink, logger: logger}
}

// Push encodes one frame and submits it, fire-and-forget.
func (e *OutboundEncoder) Push(frame audio.Frame) {
	pcm := audio.EncodeS16LE(frame)
	if err := e.sink.SendAudio(audio.InputMIMEType, pcm); err != nil {
		sendFailures.Inc()
		e.logger.Debug("outbound frame send failed", "error", err)
		return
	}
	framesSent.Inc()
}
