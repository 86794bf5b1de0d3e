package service

import (
	"fmt"
	"time"

	"gowa-keeper/internal/model"
)

// StartAutoReconnector sweeps for disconnected instances with valid stored
// auth and brings them back. The sweep is coarse; detected drops also
// schedule their own attempt (health.go), and a running attempt reschedules
// itself between retries, so the sweep only has to catch stragglers.
func (m *Manager) StartAutoReconnector(stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(m.cfg.ReconnectSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.sweepReconnect()
			}
		}
	}()
}

func (m *Manager) sweepReconnect() {
	for _, snap := range m.registry.Snapshots() {
		if snap.Status != model.StatusDisconnected || !snap.HasValidAuth || snap.Reconnecting {
			continue
		}
		go m.attemptReconnection(snap.ID)
	}
}

// attemptReconnection runs the bounded retry loop for one instance. The
// reconnecting flag is held for the whole run, so at most one loop per id is
// ever in flight.
func (m *Manager) attemptReconnection(id string) {
	if !m.registry.BeginReconnect(id) {
		return
	}
	defer m.registry.EndReconnect(id)

	for {
		attempts := m.registry.IncrementAttempts(id)
		if attempts > m.cfg.MaxReconnectAttempts {
			fmt.Println("✗ Max reconnect attempts reached, giving up on instance:", id)
			m.setStatus(id, model.StatusFailed)
			return
		}

		fmt.Printf("↻ Reconnect attempt %d/%d for instance: %s\n", attempts, m.cfg.MaxReconnectAttempts, id)
		err := m.reinitialize(id)
		if err == nil {
			fmt.Println("✓ Reconnected instance:", id)
			m.registry.ResetAttempts(id)
			return
		}

		fmt.Println("✗ Reconnect attempt failed for instance:", id, err)
		m.setStatus(id, model.StatusDisconnected)

		time.Sleep(m.cfg.ReconnectRetryDelay)
		if !m.registry.Exists(id) {
			return
		}
	}
}

// AttemptReconnect is the manually-triggered variant exposed to the API. It
// acks immediately; progress is observable through status notifications.
func (m *Manager) AttemptReconnect(id string) error {
	snap, err := m.registry.Snapshot(id)
	if err != nil {
		return err
	}
	switch {
	case snap.Status == model.StatusFailed:
		return ErrMaxReconnects
	case snap.Status == model.StatusReady:
		return nil
	case snap.Reconnecting:
		return nil
	}
	go m.attemptReconnection(id)
	return nil
}
