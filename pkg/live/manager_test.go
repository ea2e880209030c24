package live

import (
	"context"
	"testing"
)

// managedRig builds a Manager whose conversations run entirely on fakes,
// returning the rigs in creation order.
func managedRig(t *testing.T) (*Manager, *[]*fakeRig) {
	t.Helper()
	rigs := &[]*fakeRig{}
	m := NewManager(testLogger())
	m.newConversation = func(cfg Config) (*Conversation, error) {
		conv, err := NewConversation(cfg)
		if err != nil {
			return nil, err
		}
		rig := newFakeRig()
		rig.install(conv)
		*rigs = append(*rigs, rig)
		return conv, nil
	}
	return m, rigs
}

func TestManagerEnforcesSingleSession(t *testing.T) {
	m, rigs := managedRig(t)

	first, err := m.Start(context.Background(), Config{APIKey: "k"})
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if !m.Active() {
		t.Fatal("no active conversation after Start")
	}

	second, err := m.Start(context.Background(), Config{APIKey: "k"})
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if second == first {
		t.Fatal("Start returned the same conversation twice")
	}

	// The first conversation was fully torn down before the second started.
	select {
	case <-first.Done():
	default:
		t.Fatal("previous conversation still running after new Start")
	}
	firstOrder := (*rigs)[0].rec.order()
	if firstOrder[len(firstOrder)-1] != "session closed" {
		t.Errorf("previous session not closed: %v", firstOrder)
	}

	m.Stop()
	if m.Active() {
		t.Error("conversation still active after Stop")
	}
	select {
	case <-second.Done():
	default:
		t.Error("Stop returned before teardown completed")
	}
}

func TestManagerStopWithoutStart(t *testing.T) {
	m := NewManager(testLogger())
	m.Stop()
	if m.Active() {
		t.Error("Active after Stop on empty manager")
	}
}

func TestManagerStartFailureLeavesNothingActive(t *testing.T) {
	m, _ := managedRig(t)
	m.newConversation = func(cfg Config) (*Conversation, error) {
		conv, err := NewConversation(cfg)
		if err != nil {
			return nil, err
		}
		rig := newFakeRig()
		rig.install(conv)
		conv.connect = func(context.Context) (conversationSession, error) {
			return nil, NewConnectionError("failed to open live session", nil)
		}
		return conv, nil
	}

	if _, err := m.Start(context.Background(), Config{APIKey: "k"}); KindOf(err) != ErrConnection {
		t.Fatalf("got %v, want connection error", err)
	}
	if m.Active() {
		t.Error("failed Start left a conversation active")
	}
}
