package live

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fluentvoice/tutorlive/pkg/audio"
)

// Config configures one Conversation.
type Config struct {
	// APIKey authenticates against the remote service. Required.
	APIKey string

	// Model overrides DefaultModel.
	Model string

	// SystemInstruction overrides the default tutoring directive.
	SystemInstruction string

	// Endpoint overrides the websocket URL. Used by tests.
	Endpoint string

	// OnEntry receives finalized transcript entries in turn order. Called
	// from the dispatch goroutine; must not block for long.
	OnEntry func(Entry)

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// conversationSession is the slice of Session the pipeline consumes.
type conversationSession interface {
	Events() <-chan Event
	SendAudio(mimeType string, pcm []byte) error
	SendToolResult(id, name string, result map[string]any) error
	Close() error
	Err() error
}

// frameProducer is the capture side: it emits frames after Start and stops
// emitting the moment Stop returns. Release frees the underlying device
// context and must run after Stop.
type frameProducer interface {
	Start(onFrame func(audio.Frame)) error
	Stop()
	Release()
}

// micProducer adapts the malgo capture layer to frameProducer.
type micProducer struct {
	ctx *audio.CaptureContext
	mic *audio.Microphone
}

func newMicProducer() (frameProducer, error) {
	ctx, err := audio.NewCaptureContext()
	if err != nil {
		return nil, err
	}
	return &micProducer{ctx: ctx}, nil
}

func (p *micProducer) Start(onFrame func(audio.Frame)) error {
	mic, err := audio.NewMicrophone(p.ctx, onFrame)
	if err != nil {
		return err
	}
	p.mic = mic
	return mic.Start()
}

func (p *micProducer) Stop() {
	if p.mic != nil {
		p.mic.Stop()
	}
}

func (p *micProducer) Release() {
	p.ctx.Close()
}

// speakerDevice adapts audio.Speaker to the scheduler's OutputDevice.
type speakerDevice struct {
	*audio.Speaker
}

func (d speakerDevice) Play(pcm []byte, at float64, onEnded func()) (Source, error) {
	return d.Speaker.Play(pcm, at, onEnded)
}

// Conversation owns every resource of one live tutoring session: the
// capture device, the output device, the playback scheduler, the transcript
// aggregator and the remote session. It is one-shot: construct, Start,
// Stop. Exactly one should be active at a time; Manager enforces that.
type Conversation struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	started bool

	producer frameProducer
	closeOut func() error
	sched    *Scheduler
	agg      *Aggregator
	session  conversationSession

	done     chan struct{}
	stopOnce sync.Once

	// Factory seams; tests substitute fakes, production uses real devices.
	newProducer func() (frameProducer, error)
	newOutput   func() (OutputDevice, func() error, error)
	connect     func(ctx context.Context) (conversationSession, error)
}

// NewConversation validates the config and prepares a Conversation. No
// resources are acquired until Start.
func NewConversation(cfg Config) (*Conversation, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	c := &Conversation{
		cfg:    cfg,
		logger: cfg.Logger,
		done:   make(chan struct{}),
	}
	c.newProducer = newMicProducer
	c.newOutput = func() (OutputDevice, func() error, error) {
		speaker, err := audio.NewSpeaker()
		if err != nil {
			return nil, nil, err
		}
		return speakerDevice{speaker}, speaker.Close, nil
	}
	c.connect = func(ctx context.Context) (conversationSession, error) {
		return Connect(ctx, SessionConfig{
			APIKey:            cfg.APIKey,
			Model:             cfg.Model,
			SystemInstruction: cfg.SystemInstruction,
			Endpoint:          cfg.Endpoint,
			Logger:            cfg.Logger,
		})
	}
	return c, nil
}

// Start acquires the capture and playback devices, connects the session and
// begins streaming. On any failure every already-acquired resource is
// released and the error is returned; device failures surface as device
// errors, credential rejection as an auth error.
func (c *Conversation) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return NewConnectionError("conversation already started; create a new one", nil)
	}
	c.started = true
	c.mu.Unlock()

	producer, err := c.newProducer()
	if err != nil {
		c.Stop()
		return NewDeviceError("microphone is unavailable", err)
	}
	c.setProducer(producer)

	output, closeOut, err := c.newOutput()
	if err != nil {
		c.Stop()
		return NewDeviceError("audio output is unavailable", err)
	}
	c.setOutput(closeOut)

	session, err := c.connect(ctx)
	if err != nil {
		c.Stop()
		return err
	}

	c.mu.Lock()
	c.session = session
	c.sched = NewScheduler(output, audio.OutputSampleRate, c.logger)
	c.agg = NewAggregator(session, c.cfg.OnEntry, c.logger)
	c.mu.Unlock()

	encoder := NewOutboundEncoder(session, c.logger)
	if err := producer.Start(encoder.Push); err != nil {
		c.Stop()
		return NewDeviceError("microphone capture failed to start", err)
	}

	go c.run()
	return nil
}

// run dispatches inbound events until the session ends, then tears down.
func (c *Conversation) run() {
	for event := range c.session.Events() {
		c.dispatch(event)
	}
	if err := c.session.Err(); err != nil {
		c.logger.Error("session ended", "error", err)
	} else {
		c.logger.Info("session closed")
	}
	c.Stop()
}

// dispatch routes one inbound event. Playback and transcript state machines
// are each internally sequential but deliberately not synchronized with one
// another; a transcript entry may land slightly before or after its audio.
func (c *Conversation) dispatch(event Event) {
	switch e := event.(type) {
	case ToolCallEvent:
		c.agg.HandleToolCalls(e.Calls)
	case InputTranscriptionEvent:
		c.agg.AddInput(e.Text)
	case OutputTranscriptionEvent:
		c.agg.AddOutput(e.Text)
	case TurnCompleteEvent:
		c.agg.CompleteTurn()
	case AudioChunkEvent:
		if err := c.sched.Enqueue(e.Chunk); err != nil {
			c.logger.Warn("audio chunk dropped", "error", err)
		}
	case InterruptedEvent:
		c.sched.Interrupt()
	case GoAwayEvent:
		c.logger.Info("service will close the session soon", "time_left", e.TimeLeft)
	default:
		c.logger.Warn("unhandled event", "event", event.EventType())
	}
}

// Stop runs the full teardown exactly once: stop frame production,
// disconnect capture, release the capture device context, cancel scheduled
// playback, release the output device, close the transport. Each step's
// failure is logged and never aborts the remaining steps. Safe to call
// repeatedly and from error paths.
func (c *Conversation) Stop() {
	c.stopOnce.Do(c.teardown)
}

// Done closes after teardown has completed.
func (c *Conversation) Done() <-chan struct{} {
	return c.done
}

func (c *Conversation) teardown() {
	defer close(c.done)

	c.mu.Lock()
	producer := c.producer
	closeOut := c.closeOut
	sched := c.sched
	session := c.session
	agg := c.agg
	c.mu.Unlock()

	// Capture first, so no callback fires against a released device.
	if producer != nil {
		producer.Stop()
	}
	if sched != nil {
		sched.Interrupt()
	}
	if producer != nil {
		producer.Release()
	}
	if closeOut != nil {
		if err := closeOut(); err != nil {
			c.logger.Warn("closing audio output failed", "error", err)
		}
	}
	if agg != nil {
		agg.Reset()
	}
	if session != nil {
		if err := session.Close(); err != nil {
			c.logger.Warn("closing session failed", "error", err)
		}
	}
}

func (c *Conversation) setProducer(p frameProducer) {
	c.mu.Lock()
	c.producer = p
	c.mu.Unlock()
}

func (c *Conversation) setOutput(closeFn func() error) {
	c.mu.Lock()
	c.closeOut = closeFn
	c.mu.Unlock()
}
