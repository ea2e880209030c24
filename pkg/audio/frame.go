// Package audio provides the PCM frame model and the microphone/speaker
// device layer for the live pipeline.
package audio

const (
	// InputSampleRate is the capture rate sent to the model.
	InputSampleRate = 16000

	// OutputSampleRate is the rate of inbound model audio.
	OutputSampleRate = 24000

	// Channels is mono everywhere; the Live API accepts nothing else.
	Channels = 1

	// FrameSize is the fixed capture block in samples (~256ms at 16kHz).
	FrameSize = 4096

	// InputMIMEType tags outbound media chunks with codec and rate.
	InputMIMEType = "audio/pcm;rate=16000"

	// OutputMIMEType is the expected inbound chunk descriptor.
	OutputMIMEType = "audio/pcm;rate=24000"
)

// Frame is one fixed-size block of normalized mono samples in [-1, 1].
type Frame []float32

// EncodeS16LE converts normalized float samples to 16-bit signed
// little-endian PCM. Samples outside [-1, 1] are clamped.
func EncodeS16LE(frame Frame) []byte {
	out := make([]byte, len(frame)*2)
	for i, sample := range frame {
		if sample > 1 {
			sample = 1
		} else if sample < -1 {
			sample = -1
		}
		v := int16(sample * 32767)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// DecodeS16LE converts 16-bit signed little-endian PCM to normalized float
// samples. A trailing odd byte is ignored.
func DecodeS16LE(data []byte) Frame {
	n := len(data) / 2
	frame := make(Frame, n)
	for i := 0; i < n; i++ {
		v := int16(uint16(data[i*2]) | uint16(data[i*2+1])<<8)
		frame[i] = float32(v) / 32768
	}
	return frame
}

// PCMDuration returns the playback duration in seconds of s16le mono PCM at
// the given rate.
func PCMDuration(pcm []byte, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(len(pcm)/2) / float64(sampleRate)
}
