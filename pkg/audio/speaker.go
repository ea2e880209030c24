package audio

import (
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// Speaker plays scheduled PCM segments through the default output device.
// It exposes a sample-domain clock: Now advances as the player consumes
// samples, so scheduled start times are exact in the output clock domain.
//
// Segments are queued in start-time order (the scheduler guarantees
// monotonically non-decreasing starts); gaps between segments are filled
// with silence.
type Speaker struct {
	otoCtx *oto.Context
	player *oto.Player

	mu       sync.Mutex
	queue    []*segment
	consumed int64 // samples pulled by the player since creation
	closed   bool
}

type segment struct {
	pcm         []byte
	startSample int64
	offset      int
	cancelled   bool
	onEnded     func()
}

// speakerSource cancels one scheduled segment.
type speakerSource struct {
	s   *Speaker
	seg *segment
}

// Stop removes the segment from playback immediately. Any un-played audio is
// discarded and the completion callback never fires.
func (src *speakerSource) Stop() {
	src.s.mu.Lock()
	src.seg.cancelled = true
	src.s.mu.Unlock()
}

// NewSpeaker opens the default output device at OutputSampleRate and starts
// the pull loop. The device plays silence until segments are scheduled.
func NewSpeaker() (*Speaker, error) {
	s := &Speaker{}

	opts := &oto.NewContextOptions{
		SampleRate:   OutputSampleRate,
		ChannelCount: Channels,
		Format:       oto.FormatSignedInt16LE,
		// ~100ms pull buffer keeps barge-in latency low.
		BufferSize: OutputSampleRate * 2 / 10,
	}
	otoCtx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	<-ready

	s.otoCtx = otoCtx
	s.player = otoCtx.NewPlayer(s)
	s.player.Play()
	return s, nil
}

// Now returns the output clock position in seconds.
func (s *Speaker) Now() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.consumed) / OutputSampleRate
}

// Play schedules s16le mono PCM to start at the given clock position in
// seconds. onEnded fires once after the segment has fully played; it is never
// invoked synchronously and never after Stop.
func (s *Speaker) Play(pcm []byte, at float64, onEnded func()) (interface{ Stop() }, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("speaker is closed")
	}
	seg := &segment{
		pcm:         pcm,
		startSample: int64(at * OutputSampleRate),
		onEnded:     onEnded,
	}
	s.queue = append(s.queue, seg)
	return &speakerSource{s: s, seg: seg}, nil
}

// Read implements io.Reader for the pull-based player. It mixes queued
// segments against the sample clock, padding with silence outside segments.
func (s *Speaker) Read(p []byte) (int, error) {
	if len(p) < 2 {
		return 0, nil
	}
	n := len(p) &^ 1 // whole samples only

	s.mu.Lock()
	var ended []func()
	for i := 0; i < n; {
		seg := s.head()
		if seg == nil {
			// No segment pending: silence to the end of the request.
			for ; i < n; i++ {
				p[i] = 0
			}
			break
		}
		if s.consumed < seg.startSample {
			// Silence until the segment's scheduled start.
			gap := (seg.startSample - s.consumed) * 2
			for ; i < n && gap > 0; gap -= 2 {
				p[i] = 0
				p[i+1] = 0
				i += 2
				s.consumed++
			}
			continue
		}
		copied := copy(p[i:n], seg.pcm[seg.offset:])
		copied &^= 1
		seg.offset += copied
		i += copied
		s.consumed += int64(copied / 2)
		if seg.offset >= len(seg.pcm) {
			s.queue = s.queue[1:]
			if seg.onEnded != nil {
				ended = append(ended, seg.onEnded)
			}
		}
	}
	s.mu.Unlock()

	// Completion callbacks run outside the lock; they re-enter the scheduler.
	for _, fn := range ended {
		fn()
	}
	return n, nil
}

// head returns the first non-cancelled segment, dropping cancelled ones.
// Caller holds s.mu.
func (s *Speaker) head() *segment {
	for len(s.queue) > 0 {
		seg := s.queue[0]
		if !seg.cancelled {
			return seg
		}
		s.queue = s.queue[1:]
	}
	return nil
}

// Close stops playback and releases the output device. Idempotent.
func (s *Speaker) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.queue = nil
	s.mu.Unlock()

	if s.player != nil {
		return s.player.Close()
	}
	return nil
}
