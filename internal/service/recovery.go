package service

import (
	"context"
	"fmt"
	"time"

	"gowa-keeper/internal/model"
	"gowa-keeper/internal/wa"
)

// runWithRecovery executes a client operation for a ready instance. A
// transient session error triggers exactly one rebuild of the client followed
// by one retry; the retry's own outcome is what the caller sees. Rebuild
// failure surfaces as ErrRecoveryFailed instead of the original error.
func runWithRecovery[T any](ctx context.Context, m *Manager, id string, op func(context.Context, wa.Client) (T, error)) (T, error) {
	var zero T

	client, ok := m.registry.Client(id)
	if !ok {
		return zero, ErrInstanceNotFound
	}
	if status, _ := m.registry.Status(id); status != model.StatusReady {
		return zero, ErrInstanceNotReady
	}

	result, err := op(ctx, client)
	if err == nil {
		m.registry.Touch(id)
		return result, nil
	}
	if !wa.IsTransientSessionError(err) {
		return zero, err
	}

	fmt.Println("⚠ Transient session error, recovering instance:", id, err)
	// The rebuild needs the same per-instance slot the auto-reconnector uses;
	// if an attempt is already in flight, yield to it instead of racing it
	// with a second client.
	if !m.registry.BeginReconnect(id) {
		fmt.Println("✗ Recovery skipped, reconnect already in flight for instance:", id)
		return zero, ErrRecoveryFailed
	}
	rerr := m.reinitialize(id)
	m.registry.EndReconnect(id)
	if rerr != nil {
		fmt.Println("✗ Recovery failed for instance:", id, rerr)
		return zero, ErrRecoveryFailed
	}
	time.Sleep(m.cfg.RecoverySettleDelay)

	// The handle was swapped during reinitialize; the retry must run against
	// the fresh client.
	client, ok = m.registry.Client(id)
	if !ok {
		return zero, ErrRecoveryFailed
	}
	result, err = op(ctx, client)
	if err != nil {
		return zero, err
	}
	m.registry.Touch(id)
	return result, nil
}

// SendText sends a plain text message through a ready instance.
func (m *Manager) SendText(ctx context.Context, id, chatID, text string) (*wa.SendReceipt, error) {
	return runWithRecovery(ctx, m, id, func(ctx context.Context, client wa.Client) (*wa.SendReceipt, error) {
		return client.SendText(ctx, chatID, text)
	})
}

// SendMedia sends an image or document message.
func (m *Manager) SendMedia(ctx context.Context, id, chatID string, media wa.MediaPayload) (*wa.SendReceipt, error) {
	return runWithRecovery(ctx, m, id, func(ctx context.Context, client wa.Client) (*wa.SendReceipt, error) {
		return client.SendMedia(ctx, chatID, media)
	})
}

// CheckNumber verifies whether a phone number is registered.
func (m *Manager) CheckNumber(ctx context.Context, id, number string) (*wa.NumberCheck, error) {
	return runWithRecovery(ctx, m, id, func(ctx context.Context, client wa.Client) (*wa.NumberCheck, error) {
		return client.GetNumberID(ctx, number)
	})
}

// GetChatMessages returns the stored message history for one chat.
func (m *Manager) GetChatMessages(ctx context.Context, id, chatID string, limit int) ([]wa.Message, error) {
	return runWithRecovery(ctx, m, id, func(ctx context.Context, client wa.Client) ([]wa.Message, error) {
		return client.FetchMessages(ctx, chatID, limit)
	})
}

// GetGroupInfo returns group metadata including the participant list.
func (m *Manager) GetGroupInfo(ctx context.Context, id, groupID string) (*wa.GroupInfo, error) {
	return runWithRecovery(ctx, m, id, func(ctx context.Context, client wa.Client) (*wa.GroupInfo, error) {
		return client.GetGroupInfo(ctx, groupID)
	})
}

// GetContactAbout returns a contact's status/about text.
func (m *Manager) GetContactAbout(ctx context.Context, id, contactID string) (string, error) {
	return runWithRecovery(ctx, m, id, func(ctx context.Context, client wa.Client) (string, error) {
		return client.GetContactAbout(ctx, contactID)
	})
}
