package live

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// The outbound path is fire-and-forget with no backpressure, so counters are
// the only visibility into dropped or failed sends.
var (
	framesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutorlive_frames_sent_total",
		Help: "Outbound audio frames submitted to the session",
	})

	sendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutorlive_send_failures_total",
		Help: "Outbound audio frames that failed to send",
	})

	chunksScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutorlive_audio_chunks_scheduled_total",
		Help: "Inbound audio chunks scheduled for playback",
	})

	playbackDecodeDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutorlive_playback_decode_drops_total",
		Help: "Inbound audio chunks dropped because they failed to decode or play",
	})

	interrupts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutorlive_interrupts_total",
		Help: "Barge-in interruptions that cancelled scheduled playback",
	})

	turnsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutorlive_turns_total",
		Help: "Completed conversation turns emitted to the transcript log",
	})

	protocolSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutorlive_protocol_skips_total",
		Help: "Inbound frames skipped as malformed or unrecognized",
	})
)
