package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gowa-keeper/config"
	"gowa-keeper/internal/model"
	"gowa-keeper/internal/notify"
	"gowa-keeper/internal/wa"
)

// Manager is the lifecycle controller: it owns the registry, builds clients
// through the factory and turns client events into state transitions. Health
// monitoring and reconnection run on top of it (health.go, reconnect.go).
type Manager struct {
	cfg      *config.Config
	registry *Registry
	factory  wa.Factory
	store    wa.SessionStore
	messages wa.MessageLog
	notifier *notify.Notifier
	pics     *profilePicCache
}

func NewManager(cfg *config.Config, factory wa.Factory, store wa.SessionStore, messages wa.MessageLog, notifier *notify.Notifier) *Manager {
	return &Manager{
		cfg:      cfg,
		registry: NewRegistry(),
		factory:  factory,
		store:    store,
		messages: messages,
		notifier: notifier,
		pics:     newProfilePicCache(cfg.ProfilePicCacheTTL),
	}
}

func (m *Manager) Registry() *Registry {
	return m.registry
}

// Create registers a new instance in `initializing`. With an empty id a
// random one is generated.
func (m *Manager) Create(id string) (model.Snapshot, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if m.registry.Exists(id) {
		return model.Snapshot{}, ErrInstanceExists
	}

	client, err := m.factory.NewClient(id, m.eventHandler(id))
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("build client for %s: %w", id, err)
	}

	now := time.Now()
	inst := &model.Instance{
		ID:           id,
		Client:       client,
		Status:       model.StatusInitializing,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := m.registry.Add(inst); err != nil {
		// Lost the race to another create; drop the spare client.
		_ = client.Destroy()
		return model.Snapshot{}, err
	}

	fmt.Println("✓ Instance created:", id)
	m.notifier.Publish(notify.EventStatusChanged, id, map[string]interface{}{
		"from": "", "to": string(model.StatusInitializing),
	})
	return m.registry.Snapshot(id)
}

// Initialize starts the connect sequence. Already-ready instances are a
// no-op; failed ones need destroy+create first.
func (m *Manager) Initialize(id string) (model.Snapshot, error) {
	snap, err := m.registry.Snapshot(id)
	if err != nil {
		return model.Snapshot{}, err
	}
	switch snap.Status {
	case model.StatusReady:
		return snap, nil
	case model.StatusFailed:
		return model.Snapshot{}, ErrMaxReconnects
	}

	if snap.HasValidAuth {
		m.setStatus(id, model.StatusRecovering)
	} else {
		m.setStatus(id, model.StatusQRRequired)
	}
	go m.connect(id)

	return m.registry.Snapshot(id)
}

// Destroy tears the instance down completely: client, stored session,
// registry entry. Client teardown errors are swallowed.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	client, ok := m.registry.Client(id)
	if !ok && !m.registry.Exists(id) {
		return ErrInstanceNotFound
	}

	m.stopKeepAlive(id)
	if client != nil {
		if err := client.Destroy(); err != nil {
			fmt.Println("⚠ Client teardown failed for instance:", id, err)
		}
	}
	if err := m.store.Delete(ctx, id); err != nil {
		fmt.Println("⚠ Failed to delete stored session for instance:", id, err)
	}

	m.registry.Remove(id)
	m.pics.DropInstance(id)
	fmt.Println("✓ Instance destroyed:", id)
	m.notifier.Publish(notify.EventDestroyed, id, nil)
	return nil
}

// RecoverExistingSessions rebuilds an instance for every stored session found
// at startup. One broken session never aborts recovery of the rest.
func (m *Manager) RecoverExistingSessions(ctx context.Context) error {
	stored, err := m.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list stored sessions: %w", err)
	}
	fmt.Printf("Found %d saved sessions in database\n", len(stored))

	recovered := 0
	for _, s := range stored {
		if m.registry.Exists(s.ID) {
			continue
		}

		client, err := m.factory.NewClient(s.ID, m.eventHandler(s.ID))
		if err != nil {
			fmt.Printf("Failed to build client for instance %s: %v\n", s.ID, err)
			continue
		}

		now := time.Now()
		inst := &model.Instance{
			ID:           s.ID,
			Client:       client,
			Status:       model.StatusInitializing,
			CreatedAt:    now,
			LastActivity: now,
			IsRecovered:  true,
			HasValidAuth: s.HasValidAuth,
			SkipQR:       s.HasValidAuth,
		}
		if err := m.registry.Add(inst); err != nil {
			_ = client.Destroy()
			continue
		}

		if s.HasValidAuth {
			m.setStatus(s.ID, model.StatusRecovering)
		} else {
			m.setStatus(s.ID, model.StatusQRRequired)
		}
		go m.connect(s.ID)

		recovered++
		fmt.Printf("✓ Recovering instance: %s (hasValidAuth=%v)\n", s.ID, s.HasValidAuth)
	}
	fmt.Printf("✓ Session recovery started for %d instance(s)\n", recovered)
	return nil
}

// connect runs the client's connect sequence bounded by the initialize
// timeout. Runs in its own goroutine per instance.
func (m *Manager) connect(id string) {
	client, ok := m.registry.Client(id)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.InitializeTimeout)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		fmt.Println("✗ Connect failed for instance:", id, err)
		if m.setStatus(id, model.StatusDisconnected) {
			m.notifier.Publish(notify.EventDisconnected, id, map[string]interface{}{
				"reason": err.Error(),
			})
		}
	}
}

// reinitialize tears the current client down and builds a fresh one bound to
// the same stored session. Shared by the auto-reconnector and the operation
// recovery wrapper.
func (m *Manager) reinitialize(id string) error {
	old, ok := m.registry.Client(id)
	if !ok {
		return ErrInstanceNotFound
	}

	m.stopKeepAlive(id)
	if err := old.Destroy(); err != nil {
		fmt.Println("⚠ Old client teardown failed for instance:", id, err)
	}
	time.Sleep(m.cfg.ReinitCleanupDelay)

	client, err := m.factory.NewClient(id, m.eventHandler(id))
	if err != nil {
		return fmt.Errorf("rebuild client for %s: %w", id, err)
	}
	m.registry.SetClient(id, client)
	m.registry.ClearQR(id)
	m.setStatus(id, model.StatusDisconnected)
	m.setStatus(id, model.StatusRecovering)
	m.setStatus(id, model.StatusInitializing)

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.InitializeTimeout)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrInitializeTimeout
		}
		return err
	}
	return nil
}

// eventHandler adapts client events for one instance into the single
// transition function below.
func (m *Manager) eventHandler(id string) wa.EventHandler {
	return func(evt interface{}) {
		m.handleClientEvent(id, evt)
	}
}

// handleClientEvent is the only place client events mutate lifecycle state.
func (m *Manager) handleClientEvent(id string, evt interface{}) {
	switch e := evt.(type) {
	case wa.EventQR:
		// A QR for a session we believed authenticated means the stored
		// credentials are dead: demote and pair from scratch.
		if m.registry.HasValidAuth(id) {
			fmt.Println("⚠ Stored session invalid, fresh pairing required for:", id)
			m.registry.SetValidAuth(id, false)
			m.setStatus(id, model.StatusQRRequired)
		}
		m.registry.SetQR(id, e.Code, e.ExpiresAt)
		m.setStatus(id, model.StatusQRReady)
		m.notifier.Publish(notify.EventQR, id, map[string]interface{}{
			"qr":        e.Code,
			"expiresAt": e.ExpiresAt.Unix(),
		})

	case wa.EventAuthenticated:
		fmt.Println("✓ Pair Success! Instance:", id)
		m.registry.SetValidAuth(id, true)
		m.registry.ClearQR(id)
		m.setStatus(id, model.StatusAuthenticated)
		m.notifier.Publish(notify.EventAuthenticated, id, nil)

	case wa.EventAuthFailure:
		fmt.Println("✗ Auth failure! Instance:", id, "reason:", e.Reason)
		m.stopKeepAlive(id)
		m.setStatus(id, model.StatusAuthFailed)
		m.notifier.Publish(notify.EventAuthFailure, id, map[string]interface{}{
			"reason": e.Reason,
		})

	case wa.EventReady:
		fmt.Println("✓ Connected! Instance:", id, "JID:", e.Info.JID)
		m.registry.SetValidAuth(id, true)
		m.registry.ClearQR(id)
		m.registry.SetProfile(id, &e.Info)
		m.registry.Touch(id)
		m.registry.ResetAttempts(id)
		m.setStatus(id, model.StatusReady)
		m.startKeepAlive(id)
		m.notifier.Publish(notify.EventReady, id, map[string]interface{}{
			"jid":         e.Info.JID,
			"phoneNumber": e.Info.PhoneNumber,
			"pushName":    e.Info.PushName,
			"platform":    e.Info.Platform,
		})

	case wa.EventDisconnected:
		fmt.Println("⚠ Disconnected! Instance:", id, "reason:", e.Reason)
		m.stopKeepAlive(id)
		// The reconnection loop owns the counter while it holds the flag; a
		// client-driven disconnect outside of it starts a fresh count.
		if !m.registry.IsReconnecting(id) {
			m.registry.ResetAttempts(id)
		}
		if m.setStatus(id, model.StatusDisconnected) {
			m.notifier.Publish(notify.EventDisconnected, id, map[string]interface{}{
				"reason": e.Reason,
			})
		}

	case wa.EventMessage:
		m.registry.Touch(id)
		m.notifier.Publish(notify.EventMessage, id, map[string]interface{}{
			"messageId": e.Message.ID,
			"chatId":    e.Message.ChatID,
			"senderId":  e.Message.SenderID,
			"fromMe":    e.Message.FromMe,
			"text":      e.Message.Text,
			"mediaType": e.Message.MediaType,
			"timestamp": e.Message.Timestamp,
		})
	}
}

// Shutdown tears everything down in order: keep-alives first, then clients,
// then the registry and cache. The periodic monitors must already be stopped
// by the caller so nothing fires against a half-destroyed instance.
func (m *Manager) Shutdown() {
	for _, id := range m.registry.IDs() {
		m.stopKeepAlive(id)
	}
	for _, id := range m.registry.IDs() {
		if client, ok := m.registry.Client(id); ok {
			if err := client.Destroy(); err != nil {
				fmt.Println("⚠ Client teardown failed during shutdown:", id, err)
			}
		}
		m.registry.Remove(id)
	}
	fmt.Println("✓ All sessions shut down")
}

// setStatus applies a guarded transition and broadcasts it when it actually
// changed something.
func (m *Manager) setStatus(id string, to model.Status) bool {
	from, changed := m.registry.Transition(id, to)
	if changed {
		m.notifier.Publish(notify.EventStatusChanged, id, map[string]interface{}{
			"from": string(from),
			"to":   string(to),
		})
	}
	return changed
}
