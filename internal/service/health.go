package service

import (
	"context"
	"fmt"
	"time"

	"gowa-keeper/internal/model"
	"gowa-keeper/internal/notify"
)

// StartHealthMonitor sweeps every ready instance on a fixed interval and
// probes its connection. Runs until stop is closed.
func (m *Manager) StartHealthMonitor(stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(m.cfg.HealthCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.sweepHealth()
			}
		}
	}()
}

func (m *Manager) sweepHealth() {
	for _, snap := range m.registry.Snapshots() {
		if snap.Status != model.StatusReady {
			continue
		}
		id := snap.ID
		if err := m.probe(id); err != nil {
			fmt.Println("⚠ Health probe failed for instance:", id, err)
			m.markDisconnected(id, "health probe failed")
			m.scheduleReconnect(id)
			continue
		}
		m.registry.Touch(id)
	}
}

// probe issues the lightweight liveness check bounded by the probe timeout.
func (m *Manager) probe(id string) error {
	client, ok := m.registry.Client(id)
	if !ok {
		return ErrInstanceNotFound
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ProbeTimeout)
	defer cancel()
	return client.Probe(ctx)
}

func (m *Manager) markDisconnected(id, reason string) {
	m.stopKeepAlive(id)
	if m.setStatus(id, model.StatusDisconnected) {
		m.notifier.Publish(notify.EventDisconnected, id, map[string]interface{}{
			"reason": reason,
		})
	}
}

// scheduleReconnect kicks off a reconnection attempt shortly after a detected
// drop, without waiting for the next sweep.
func (m *Manager) scheduleReconnect(id string) {
	time.AfterFunc(m.cfg.ReconnectDelay, func() {
		// Conditions may have changed while the timer was pending.
		status, ok := m.registry.Status(id)
		if !ok || status != model.StatusDisconnected || !m.registry.HasValidAuth(id) {
			return
		}
		m.attemptReconnection(id)
	})
}

// startKeepAlive spins up the per-instance heartbeat. Any previous loop for
// the id is stopped first so an instance never carries two.
func (m *Manager) startKeepAlive(id string) {
	stop := make(chan struct{})
	if prev := m.registry.SwapKeepAlive(id, stop); prev != nil {
		close(prev)
	}

	go func() {
		ticker := time.NewTicker(m.cfg.KeepAliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				fmt.Println("⏹ Stopping heartbeat for:", id)
				return
			case <-ticker.C:
				status, ok := m.registry.Status(id)
				if !ok {
					return
				}
				if status != model.StatusReady {
					continue
				}
				if err := m.probe(id); err == nil {
					fmt.Println("💓 Heartbeat sent for:", id)
					m.registry.Touch(id)
					continue
				}

				// One failure is not a verdict. Re-check shortly after; only
				// a second miss on a still-ready instance demotes it.
				fmt.Println("⚠ Heartbeat failed for:", id)
				time.Sleep(m.cfg.KeepAliveRecheckDelay)
				status, ok = m.registry.Status(id)
				if !ok || status != model.StatusReady {
					continue
				}
				if err := m.probe(id); err != nil {
					fmt.Println("⚠ Heartbeat re-check failed, marking disconnected:", id)
					m.markDisconnected(id, "keep-alive probe failed")
					m.scheduleReconnect(id)
					return
				}
				m.registry.Touch(id)
			}
		}
	}()
}

func (m *Manager) stopKeepAlive(id string) {
	if prev := m.registry.SwapKeepAlive(id, nil); prev != nil {
		close(prev)
	}
}
