package service

import (
	"testing"
	"time"

	"gowa-keeper/internal/model"
)

func addInstance(t *testing.T, r *Registry, id string, status model.Status) {
	t.Helper()
	err := r.Add(&model.Instance{
		ID:        id,
		Status:    status,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Add(%s): %v", id, err)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	addInstance(t, r, "a", model.StatusInitializing)
	if err := r.Add(&model.Instance{ID: "a"}); err != ErrInstanceExists {
		t.Fatalf("err = %v, want ErrInstanceExists", err)
	}
	if r.Count() != 1 {
		t.Fatalf("count = %d, want 1", r.Count())
	}
}

func TestRegistryGuardsTransitions(t *testing.T) {
	r := NewRegistry()
	addInstance(t, r, "a", model.StatusInitializing)

	if _, applied := r.Transition("a", model.StatusQRReady); !applied {
		t.Fatal("initializing -> qr_ready should be allowed")
	}
	if _, applied := r.Transition("a", model.StatusAuthenticated); !applied {
		t.Fatal("qr_ready -> authenticated should be allowed")
	}
	if _, applied := r.Transition("a", model.StatusReady); !applied {
		t.Fatal("authenticated -> ready should be allowed")
	}

	// failed is terminal.
	r.Transition("a", model.StatusDisconnected)
	r.Transition("a", model.StatusFailed)
	if _, applied := r.Transition("a", model.StatusReady); applied {
		t.Fatal("failed -> ready must be rejected")
	}
	status, _ := r.Status("a")
	if status != model.StatusFailed {
		t.Fatalf("status = %s, want failed", status)
	}
}

func TestRegistryTerminalAuthFailed(t *testing.T) {
	r := NewRegistry()
	addInstance(t, r, "a", model.StatusQRReady)
	r.Transition("a", model.StatusAuthFailed)

	for _, next := range []model.Status{
		model.StatusInitializing, model.StatusReady, model.StatusDisconnected,
	} {
		if _, applied := r.Transition("a", next); applied {
			t.Fatalf("auth_failed -> %s must be rejected", next)
		}
	}
}

func TestRegistrySameStatusIsNoop(t *testing.T) {
	r := NewRegistry()
	addInstance(t, r, "a", model.StatusReady)
	from, changed := r.Transition("a", model.StatusReady)
	if changed {
		t.Fatal("same-status transition must report no change")
	}
	if from != model.StatusReady {
		t.Fatalf("from = %s, want ready", from)
	}
}

func TestRegistryAttemptsAreMonotonicUntilReset(t *testing.T) {
	r := NewRegistry()
	addInstance(t, r, "a", model.StatusDisconnected)

	prev := 0
	for i := 0; i < 5; i++ {
		n := r.IncrementAttempts("a")
		if n != prev+1 {
			t.Fatalf("attempt %d: counter = %d, want %d", i, n, prev+1)
		}
		prev = n
	}
	r.ResetAttempts("a")
	if n := r.IncrementAttempts("a"); n != 1 {
		t.Fatalf("counter after reset = %d, want 1", n)
	}
}

func TestRegistrySnapshotsAreDetached(t *testing.T) {
	r := NewRegistry()
	addInstance(t, r, "a", model.StatusInitializing)

	snap, err := r.Snapshot("a")
	if err != nil {
		t.Fatal(err)
	}
	snap.Status = model.StatusFailed

	status, _ := r.Status("a")
	if status != model.StatusInitializing {
		t.Fatal("mutating a snapshot must not touch the live record")
	}
}

func TestRegistryKeepAliveSwap(t *testing.T) {
	r := NewRegistry()
	addInstance(t, r, "a", model.StatusReady)

	first := make(chan struct{})
	if prev := r.SwapKeepAlive("a", first); prev != nil {
		t.Fatal("no previous channel expected")
	}
	second := make(chan struct{})
	prev := r.SwapKeepAlive("a", second)
	if prev == nil {
		t.Fatal("expected the first channel back")
	}
	if prev := r.SwapKeepAlive("a", nil); prev == nil {
		t.Fatal("expected the second channel back on detach")
	}
}
