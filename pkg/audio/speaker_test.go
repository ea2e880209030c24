package audio

import (
	"bytes"
	"testing"
)

// newTestSpeaker builds a Speaker without opening a real output device; the
// test drives the pull loop by calling Read directly.
func newTestSpeaker() *Speaker {
	return &Speaker{}
}

func pcmOf(b byte, samples int) []byte {
	return bytes.Repeat([]byte{b, b}, samples)
}

func TestSpeaker_SilenceWhenIdle(t *testing.T) {
	s := newTestSpeaker()
	buf := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	n, err := s.Read(buf)
	if err != nil || n != 4 {
		t.Fatalf("Read() = %d, %v", n, err)
	}
	if !bytes.Equal(buf, []byte{0, 0, 0, 0}) {
		t.Fatalf("idle output = %v, want silence", buf)
	}
	if got := s.Now(); got != 0 {
		t.Fatalf("Now() = %v, want 0 (idle silence does not advance past queue)", got)
	}
}

func TestSpeaker_PlaysSegmentAtScheduledStart(t *testing.T) {
	s := newTestSpeaker()
	// Two samples of audio starting at sample 2.
	at := 2.0 / OutputSampleRate
	if _, err := s.Play(pcmOf(0x11, 2), at, nil); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	buf := make([]byte, 8)
	if _, err := s.Read(buf); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	want := []byte{0, 0, 0, 0, 0x11, 0x11, 0x11, 0x11}
	if !bytes.Equal(buf, want) {
		t.Fatalf("output = %v, want %v", buf, want)
	}
	if got := s.Now(); got != 4.0/OutputSampleRate {
		t.Fatalf("Now() = %v, want 4 samples", got)
	}
}

func TestSpeaker_BackToBackSegmentsAreGapless(t *testing.T) {
	s := newTestSpeaker()
	if _, err := s.Play(pcmOf(0x01, 2), 0, nil); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if _, err := s.Play(pcmOf(0x02, 2), 2.0/OutputSampleRate, nil); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	buf := make([]byte, 8)
	if _, err := s.Read(buf); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	want := []byte{0x01, 0x01, 0x01, 0x01, 0x02, 0x02, 0x02, 0x02}
	if !bytes.Equal(buf, want) {
		t.Fatalf("output = %v, want %v", buf, want)
	}
}

func TestSpeaker_CompletionFiresOncePerSegment(t *testing.T) {
	s := newTestSpeaker()
	ended := 0
	if _, err := s.Play(pcmOf(0x01, 2), 0, func() { ended++ }); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	buf := make([]byte, 4)
	if _, err := s.Read(buf); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if ended != 1 {
		t.Fatalf("ended = %d after completion, want 1", ended)
	}
	if _, err := s.Read(buf); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if ended != 1 {
		t.Fatalf("ended = %d after extra read, want 1", ended)
	}
}

func TestSpeaker_StoppedSegmentIsSkippedWithoutCallback(t *testing.T) {
	s := newTestSpeaker()
	ended := false
	src, err := s.Play(pcmOf(0x01, 2), 0, func() { ended = true })
	if err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if _, err := s.Play(pcmOf(0x02, 2), 2.0/OutputSampleRate, nil); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	src.Stop()

	buf := make([]byte, 8)
	if _, err := s.Read(buf); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	// The second segment is scheduled at sample 2; with the first cancelled,
	// samples 0-1 are silence and the second plays at its scheduled start.
	want := []byte{0, 0, 0, 0, 0x02, 0x02, 0x02, 0x02}
	if !bytes.Equal(buf, want) {
		t.Fatalf("output = %v, want %v", buf, want)
	}
	if ended {
		t.Fatal("onEnded fired for a stopped segment")
	}
}

func TestSpeaker_CloseIsIdempotentAndRejectsPlay(t *testing.T) {
	s := newTestSpeaker()
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if _, err := s.Play(pcmOf(0x01, 1), 0, nil); err == nil {
		t.Fatal("Play() after Close succeeded")
	}
}
