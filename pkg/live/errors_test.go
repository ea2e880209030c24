package live

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKindsAndFatality(t *testing.T) {
	cases := []struct {
		err   *Error
		kind  ErrorKind
		fatal bool
	}{
		{NewDeviceError("mic", nil), ErrDevice, true},
		{NewConnectionError("ws", nil), ErrConnection, true},
		{NewAuthError("key", nil), ErrAuth, true},
		{NewProtocolError("frame", nil), ErrProtocol, false},
		{NewPlaybackDecodeError("chunk", nil), ErrPlaybackDecode, false},
	}
	for _, c := range cases {
		if c.err.Kind != c.kind {
			t.Errorf("kind = %v, want %v", c.err.Kind, c.kind)
		}
		if c.err.Fatal() != c.fatal {
			t.Errorf("%v Fatal() = %v, want %v", c.kind, c.err.Fatal(), c.fatal)
		}
	}
}

func TestErrorUnwrapAndKindOf(t *testing.T) {
	cause := errors.New("underlying")
	err := NewConnectionError("transport failed", cause)

	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
	wrapped := fmt.Errorf("starting: %w", err)
	if KindOf(wrapped) != ErrConnection {
		t.Errorf("KindOf(wrapped) = %q", KindOf(wrapped))
	}
	if KindOf(cause) != "" {
		t.Errorf("KindOf(plain) = %q, want empty", KindOf(cause))
	}
	if got := err.Error(); got != "connection_error: transport failed: underlying" {
		t.Errorf("Error() = %q", got)
	}
}
