package live

import (
	"encoding/base64"
	"log/slog"
	"sync"

	"github.com/fluentvoice/tutorlive/pkg/live/protocol"
)

// Clock reads the output clock position in seconds.
type Clock interface {
	Now() float64
}

// Source is one scheduled playback buffer that can be cancelled.
type Source interface {
	Stop()
}

// OutputDevice schedules PCM buffers for playback against its own clock.
// onEnded fires once after natural completion, never synchronously from Play
// and never after Stop.
type OutputDevice interface {
	Clock
	Play(pcm []byte, at float64, onEnded func()) (Source, error)
}

// Scheduler decodes inbound audio chunks and schedules them for gapless
// sequential playback. The cursor and pending set are owned exclusively by
// the scheduler and mutated only through Enqueue and Interrupt.
type Scheduler struct {
	dev        OutputDevice
	sampleRate int
	logger     *slog.Logger

	mu      sync.Mutex
	cursor  float64
	epoch   uint64
	pending map[*pendingSource]struct{}
}

type pendingSource struct {
	src      Source
	finished bool
}

// NewScheduler creates a Scheduler playing at the given sample rate.
func NewScheduler(dev OutputDevice, sampleRate int, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		dev:        dev,
		sampleRate: sampleRate,
		logger:     logger,
		pending:    make(map[*pendingSource]struct{}),
	}
}

// Enqueue decodes one base64 PCM chunk and schedules it to start at
// max(cursor, now), then advances the cursor by the buffer duration. Chunks
// therefore play back-to-back regardless of network arrival jitter, and are
// never scheduled earlier than the device clock. A decode failure drops the
// chunk and returns a playback decode error; playback continues.
func (p *Scheduler) Enqueue(chunk protocol.Blob) error {
	pcm, err := base64.StdEncoding.DecodeString(chunk.Data)
	if err != nil {
		playbackDecodeDrops.Inc()
		return NewPlaybackDecodeError("dropping undecodable audio chunk", err)
	}
	if len(pcm) < 2 {
		return nil
	}
	duration := float64(len(pcm)/2) / float64(p.sampleRate)

	p.mu.Lock()
	start := p.cursor
	if now := p.dev.Now(); now > start {
		start = now
	}
	p.cursor = start + duration
	epoch := p.epoch
	entry := &pendingSource{}
	p.mu.Unlock()

	src, err := p.dev.Play(pcm, start, func() { p.finish(entry) })
	if err != nil {
		playbackDecodeDrops.Inc()
		p.mu.Lock()
		if p.epoch == epoch {
			p.cursor -= duration
		}
		p.mu.Unlock()
		return NewPlaybackDecodeError("dropping unplayable audio chunk", err)
	}

	p.mu.Lock()
	if p.epoch != epoch {
		// Interrupted while scheduling; this buffer must not play.
		p.mu.Unlock()
		src.Stop()
		return nil
	}
	if !entry.finished {
		entry.src = src
		p.pending[entry] = struct{}{}
	}
	p.mu.Unlock()

	chunksScheduled.Inc()
	return nil
}

// Interrupt stops every pending buffer immediately, clears the set and
// resets the cursor to zero. The next Enqueue re-anchors at the current
// clock time, so no pre-interruption audio remains audible.
func (p *Scheduler) Interrupt() {
	p.mu.Lock()
	sources := make([]Source, 0, len(p.pending))
	for entry := range p.pending {
		if entry.src != nil {
			sources = append(sources, entry.src)
		}
	}
	p.pending = make(map[*pendingSource]struct{})
	p.cursor = 0
	p.epoch++
	p.mu.Unlock()

	for _, src := range sources {
		src.Stop()
	}
	if len(sources) > 0 {
		interrupts.Inc()
	}
}

// Pending returns the number of scheduled-but-unfinished buffers.
func (p *Scheduler) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *Scheduler) finish(entry *pendingSource) {
	p.mu.Lock()
	entry.finished = true
	delete(p.pending, entry)
	p.mu.Unlock()
}
