package audio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// CaptureContext owns the backend audio context shared by capture devices.
// It must outlive every Microphone created from it and be closed last during
// teardown, after all devices have stopped.
type CaptureContext struct {
	ctx *malgo.AllocatedContext
}

// NewCaptureContext initializes the host audio backend.
func NewCaptureContext() (*CaptureContext, error) {
	config := malgo.ContextConfig{}
	config.ThreadPriority = malgo.ThreadPriorityRealtime

	ctx, err := malgo.InitContext(nil, config, nil)
	if err != nil {
		return nil, fmt.Errorf("init capture context: %w", err)
	}
	return &CaptureContext{ctx: ctx}, nil
}

// Close releases the backend context.
func (c *CaptureContext) Close() {
	if c == nil || c.ctx == nil {
		return
	}
	_ = c.ctx.Uninit()
	c.ctx.Free()
	c.ctx = nil
}

// Microphone captures mono PCM from the default input device and emits
// fixed-size normalized frames at a steady cadence. Frames stop the moment
// Stop returns; a late device callback after that is discarded.
type Microphone struct {
	device  *malgo.Device
	onFrame func(Frame)

	mu      sync.Mutex
	pending Frame

	stopped  atomic.Bool
	stopOnce sync.Once
}

// NewMicrophone opens the default capture device at InputSampleRate. The
// device is initialized but not started. Failure here means the device is
// unavailable or permission was denied.
func NewMicrophone(ctx *CaptureContext, onFrame func(Frame)) (*Microphone, error) {
	if ctx == nil || ctx.ctx == nil {
		return nil, fmt.Errorf("capture context is closed")
	}
	if onFrame == nil {
		return nil, fmt.Errorf("onFrame must not be nil")
	}

	m := &Microphone{
		onFrame: onFrame,
		pending: make(Frame, 0, FrameSize),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = Channels
	deviceConfig.SampleRate = InputSampleRate
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			m.push(input)
		},
	}

	device, err := malgo.InitDevice(ctx.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("init microphone: %w", err)
	}
	m.device = device
	return m, nil
}

// Start begins frame production.
func (m *Microphone) Start() error {
	if err := m.device.Start(); err != nil {
		return fmt.Errorf("start microphone: %w", err)
	}
	return nil
}

// Stop halts capture and releases the device. Idempotent.
func (m *Microphone) Stop() {
	if m == nil {
		return
	}
	m.stopOnce.Do(func() {
		m.stopped.Store(true)
		if m.device != nil {
			_ = m.device.Stop()
			m.device.Uninit()
		}
	})
}

func (m *Microphone) push(input []byte) {
	if m.stopped.Load() {
		return
	}

	m.mu.Lock()
	m.pending = append(m.pending, DecodeS16LE(input)...)
	var frames []Frame
	for len(m.pending) >= FrameSize {
		frame := make(Frame, FrameSize)
		copy(frame, m.pending[:FrameSize])
		m.pending = m.pending[:copy(m.pending, m.pending[FrameSize:])]
		frames = append(frames, frame)
	}
	m.mu.Unlock()

	for _, frame := range frames {
		if m.stopped.Load() {
			return
		}
		m.onFrame(frame)
	}
}
