package live

import (
	"context"
	"log/slog"
	"sync"
)

// Manager serializes conversation lifecycle so at most one Conversation is
// ever active. Starting while one is active tears the old one down fully,
// devices released and transport closed, before any new resource is
// acquired.
type Manager struct {
	logger *slog.Logger

	mu     sync.Mutex
	active *Conversation

	// newConversation is a seam for tests.
	newConversation func(Config) (*Conversation, error)
}

// NewManager creates a Manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger, newConversation: NewConversation}
}

// Start tears down any active conversation, then starts a new one with the
// given config. On failure no conversation is left active.
func (m *Manager) Start(ctx context.Context, cfg Config) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		m.logger.Info("stopping previous conversation before starting a new one")
		m.active.Stop()
		<-m.active.Done()
		m.active = nil
	}

	if cfg.Logger == nil {
		cfg.Logger = m.logger
	}
	conv, err := m.newConversation(cfg)
	if err != nil {
		return nil, err
	}
	if err := conv.Start(ctx); err != nil {
		<-conv.Done()
		return nil, err
	}
	m.active = conv
	return conv, nil
}

// Stop tears down the active conversation, if any, and waits for teardown
// to complete.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return
	}
	m.active.Stop()
	<-m.active.Done()
	m.active = nil
}

// Active reports whether a conversation is currently active. A conversation
// that ended on its own still counts until Stop or the next Start clears it.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}
