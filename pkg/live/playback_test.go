package live

import (
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/fluentvoice/tutorlive/pkg/live/protocol"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSource struct {
	mu      sync.Mutex
	stopped bool
}

func (s *fakeSource) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}

func (s *fakeSource) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type scheduledPlay struct {
	pcm     []byte
	at      float64
	onEnded func()
	src     *fakeSource
}

// fakeDevice records Play calls against a manually advanced clock.
type fakeDevice struct {
	now     float64
	plays   []scheduledPlay
	playErr error
}

func (d *fakeDevice) Now() float64 { return d.now }

func (d *fakeDevice) Play(pcm []byte, at float64, onEnded func()) (Source, error) {
	if d.playErr != nil {
		return nil, d.playErr
	}
	src := &fakeSource{}
	d.plays = append(d.plays, scheduledPlay{pcm: pcm, at: at, onEnded: onEnded, src: src})
	return src, nil
}

func pcmChunk(samples int) protocol.Blob {
	pcm := make([]byte, samples*2)
	return protocol.Blob{
		MIMEType: "audio/pcm;rate=24000",
		Data:     base64.StdEncoding.EncodeToString(pcm),
	}
}

func TestSchedulerGaplessSequencing(t *testing.T) {
	dev := &fakeDevice{}
	sched := NewScheduler(dev, 24000, testLogger())

	// Three chunks of 0.5s each arrive faster than realtime.
	for i := 0; i < 3; i++ {
		if err := sched.Enqueue(pcmChunk(12000)); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	if len(dev.plays) != 3 {
		t.Fatalf("got %d plays, want 3", len(dev.plays))
	}
	wantStarts := []float64{0, 0.5, 1.0}
	for i, play := range dev.plays {
		if play.at != wantStarts[i] {
			t.Errorf("chunk %d start = %v, want %v", i, play.at, wantStarts[i])
		}
	}
	if sched.Pending() != 3 {
		t.Errorf("pending = %d, want 3", sched.Pending())
	}
}

func TestSchedulerNeverSchedulesInThePast(t *testing.T) {
	dev := &fakeDevice{}
	sched := NewScheduler(dev, 24000, testLogger())

	if err := sched.Enqueue(pcmChunk(12000)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	// Playback has run past the cursor by the time the next chunk lands.
	dev.now = 2.0
	if err := sched.Enqueue(pcmChunk(12000)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if got := dev.plays[1].at; got != 2.0 {
		t.Errorf("late chunk start = %v, want 2.0", got)
	}
	// Cursor advanced from the re-anchored start.
	if err := sched.Enqueue(pcmChunk(12000)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if got := dev.plays[2].at; got != 2.5 {
		t.Errorf("follow-up chunk start = %v, want 2.5", got)
	}
}

func TestSchedulerInterruptStopsEverything(t *testing.T) {
	dev := &fakeDevice{}
	sched := NewScheduler(dev, 24000, testLogger())

	for i := 0; i < 3; i++ {
		if err := sched.Enqueue(pcmChunk(12000)); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	sched.Interrupt()

	for i, play := range dev.plays {
		if !play.src.Stopped() {
			t.Errorf("chunk %d still playing after interrupt", i)
		}
	}
	if sched.Pending() != 0 {
		t.Errorf("pending = %d after interrupt, want 0", sched.Pending())
	}

	// Next chunk anchors at the device clock, not the stale cursor.
	dev.now = 0.25
	if err := sched.Enqueue(pcmChunk(12000)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if got := dev.plays[3].at; got != 0.25 {
		t.Errorf("post-interrupt start = %v, want 0.25", got)
	}
}

func TestSchedulerCompletionRemovesPending(t *testing.T) {
	dev := &fakeDevice{}
	sched := NewScheduler(dev, 24000, testLogger())

	if err := sched.Enqueue(pcmChunk(12000)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	dev.plays[0].onEnded()

	if sched.Pending() != 0 {
		t.Errorf("pending = %d after completion, want 0", sched.Pending())
	}
	// A completed source must not be stopped by a later interrupt.
	sched.Interrupt()
	if dev.plays[0].src.Stopped() {
		t.Error("completed source was stopped by interrupt")
	}
}

func TestSchedulerDropsUndecodableChunk(t *testing.T) {
	dev := &fakeDevice{}
	sched := NewScheduler(dev, 24000, testLogger())

	err := sched.Enqueue(protocol.Blob{MIMEType: "audio/pcm;rate=24000", Data: "not base64!!!"})
	if KindOf(err) != ErrPlaybackDecode {
		t.Fatalf("got %v, want playback decode error", err)
	}
	if len(dev.plays) != 0 {
		t.Fatalf("undecodable chunk reached the device")
	}

	// The pipeline keeps playing afterwards.
	if err := sched.Enqueue(pcmChunk(12000)); err != nil {
		t.Fatalf("Enqueue after drop: %v", err)
	}
	if got := dev.plays[0].at; got != 0 {
		t.Errorf("start after drop = %v, want 0", got)
	}
}

func TestSchedulerRollsBackCursorOnPlayFailure(t *testing.T) {
	dev := &fakeDevice{playErr: errors.New("device gone")}
	sched := NewScheduler(dev, 24000, testLogger())

	if err := sched.Enqueue(pcmChunk(12000)); KindOf(err) != ErrPlaybackDecode {
		t.Fatalf("got %v, want playback decode error", err)
	}

	dev.playErr = nil
	if err := sched.Enqueue(pcmChunk(12000)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if got := dev.plays[0].at; got != 0 {
		t.Errorf("start after failed play = %v, want 0", got)
	}
}
