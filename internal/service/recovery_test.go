package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gowa-keeper/internal/model"
	"gowa-keeper/internal/wa"
)

// readyInstance creates "a" and drives it to ready.
func readyInstance(t *testing.T, m *Manager) {
	t.Helper()
	if _, err := m.Create("a"); err != nil {
		t.Fatal(err)
	}
	m.handleClientEvent("a", wa.EventReady{Info: wa.ProfileInfo{JID: "a@s.whatsapp.net"}})
	mustStatus(t, m, "a", model.StatusReady)
	t.Cleanup(func() { m.stopKeepAlive("a") })
}

func TestSendRequiresReady(t *testing.T) {
	m, _, _, _ := newTestManager(nil)
	if _, err := m.Create("a"); err != nil {
		t.Fatal(err)
	}
	_, err := m.SendText(context.Background(), "a", "62812@s.whatsapp.net", "hi")
	if !errors.Is(err, ErrInstanceNotReady) {
		t.Fatalf("err = %v, want ErrInstanceNotReady", err)
	}

	_, err = m.SendText(context.Background(), "ghost", "62812@s.whatsapp.net", "hi")
	if !errors.Is(err, ErrInstanceNotFound) {
		t.Fatalf("err = %v, want ErrInstanceNotFound", err)
	}
}

func TestTransientErrorRecoversAndRetries(t *testing.T) {
	m, factory, _, _ := newTestManager(nil)
	readyInstance(t, m)

	// First send dies with a transient signature; the retry runs against the
	// rebuilt client and must surface the retried result.
	factory.client(0).mu.Lock()
	factory.client(0).sendErrs = []error{errors.New("websocket disconnected before response")}
	factory.client(0).mu.Unlock()

	receipt, err := m.SendText(context.Background(), "a", "62812@s.whatsapp.net", "hi")
	if err != nil {
		t.Fatalf("SendText after recovery: %v", err)
	}
	if factory.built() != 2 {
		t.Fatalf("clients built = %d, want 2 (one rebuild)", factory.built())
	}
	if !strings.HasPrefix(receipt.MessageID, "a-msg-") {
		t.Fatalf("unexpected receipt %q", receipt.MessageID)
	}
	if factory.client(1).sendCalls != 1 {
		t.Fatalf("retry must run on the fresh client, sendCalls = %d", factory.client(1).sendCalls)
	}
	if m.registry.IsReconnecting("a") {
		t.Fatal("recovery must release the reconnect slot when done")
	}
}

func TestRecoveryYieldsToActiveReconnect(t *testing.T) {
	m, factory, _, _ := newTestManager(nil)
	readyInstance(t, m)

	// Another goroutine already owns the rebuild slot, as the auto-reconnector
	// would mid-attempt.
	if !m.registry.BeginReconnect("a") {
		t.Fatal("claiming the reconnect slot failed")
	}
	defer m.registry.EndReconnect("a")

	factory.client(0).mu.Lock()
	factory.client(0).sendErrs = []error{errors.New("websocket disconnected before response")}
	factory.client(0).mu.Unlock()

	_, err := m.SendText(context.Background(), "a", "62812@s.whatsapp.net", "hi")
	if !errors.Is(err, ErrRecoveryFailed) {
		t.Fatalf("err = %v, want ErrRecoveryFailed", err)
	}
	if factory.built() != 1 {
		t.Fatalf("clients built = %d, want 1 (no second rebuild while an attempt holds the slot)", factory.built())
	}
	if factory.client(0).destroyed {
		t.Fatal("the live client must not be torn down by the yielded recovery")
	}
}

func TestNonTransientErrorPropagates(t *testing.T) {
	m, factory, _, _ := newTestManager(nil)
	readyInstance(t, m)

	boom := errors.New("message too long")
	factory.client(0).mu.Lock()
	factory.client(0).sendErrs = []error{boom}
	factory.client(0).mu.Unlock()

	_, err := m.SendText(context.Background(), "a", "62812@s.whatsapp.net", "hi")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want the original error", err)
	}
	if factory.built() != 1 {
		t.Fatal("non-transient errors must not trigger a rebuild")
	}
}

func TestRecoveryFailureIsDistinct(t *testing.T) {
	m, factory, _, _ := newTestManager(nil)
	readyInstance(t, m)

	// Every client built from now on refuses to connect, so the one-shot
	// recovery itself fails.
	factory.mu.Lock()
	factory.prepare = func(c *fakeClient) {
		c.connectErr = errors.New("connection refused")
	}
	factory.mu.Unlock()

	factory.client(0).mu.Lock()
	factory.client(0).sendErrs = []error{errors.New("stream ended unexpectedly")}
	factory.client(0).mu.Unlock()

	_, err := m.SendText(context.Background(), "a", "62812@s.whatsapp.net", "hi")
	if !errors.Is(err, ErrRecoveryFailed) {
		t.Fatalf("err = %v, want ErrRecoveryFailed", err)
	}
}

func TestRetryFailurePropagatesAsIs(t *testing.T) {
	m, _, _, _ := newTestManager(nil)
	factory := m.factory.(*fakeFactory)
	retryErr := errors.New("recipient rejected")
	factory.prepare = func(c *fakeClient) {
		if len(factory.clients) > 0 {
			// Rebuilt client: the retry itself fails with a plain error.
			c.sendErrs = []error{retryErr}
		}
	}
	readyInstance(t, m)

	factory.client(0).mu.Lock()
	factory.client(0).sendErrs = []error{errors.New("websocket is closed")}
	factory.client(0).mu.Unlock()

	_, err := m.SendText(context.Background(), "a", "62812@s.whatsapp.net", "hi")
	if !errors.Is(err, retryErr) {
		t.Fatalf("err = %v, want the retry's own error", err)
	}
}

func TestTransientSignatureMatching(t *testing.T) {
	cases := []struct {
		err       error
		transient bool
	}{
		{errors.New("websocket disconnected"), true},
		{errors.New("failed to send: Connection Closed by peer"), true},
		{errors.New("stream replaced by another client"), true},
		{errors.New("invalid JID"), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := wa.IsTransientSessionError(tc.err); got != tc.transient {
			t.Errorf("IsTransientSessionError(%v) = %v, want %v", tc.err, got, tc.transient)
		}
	}
}
