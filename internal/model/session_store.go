package model

import (
	"context"
	"fmt"
	"log"

	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"

	"gowa-keeper/internal/wa"
)

// SessionStore is the production wa.SessionStore: instance rows in the app DB
// plus whatsmeow device records in the container. The auth heuristic lives
// here on purpose — it is specific to how whatsmeow persists credentials and
// the manager must not depend on it.
type SessionStore struct {
	Container *sqlstore.Container
}

func NewSessionStore(container *sqlstore.Container) *SessionStore {
	return &SessionStore{Container: container}
}

func (s *SessionStore) List(ctx context.Context) ([]wa.StoredSession, error) {
	records, err := GetAllInstanceRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list instance records: %w", err)
	}

	devices, err := s.Container.GetAllDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	paired := make(map[string]bool, len(devices))
	for _, device := range devices {
		if device.ID != nil {
			paired[device.ID.String()] = true
		}
	}

	sessions := make([]wa.StoredSession, 0, len(records))
	for _, rec := range records {
		// A session has valid auth when its row points at a device that
		// still holds a paired JID in the container.
		hasAuth := rec.JID.Valid && rec.JID.String != "" && paired[rec.JID.String]
		sessions = append(sessions, wa.StoredSession{
			ID:           rec.InstanceID,
			JID:          rec.JID.String,
			HasValidAuth: hasAuth,
		})
	}
	return sessions, nil
}

func (s *SessionStore) Delete(ctx context.Context, instanceID string) error {
	jid, err := GetInstanceJID(ctx, instanceID)
	if err == nil && jid != "" {
		parsed, perr := types.ParseJID(jid)
		if perr == nil {
			device, derr := s.Container.GetDevice(ctx, parsed)
			if derr == nil && device != nil {
				if err := s.Container.DeleteDevice(ctx, device); err != nil {
					log.Println("⚠ Failed to delete device store:", err)
				}
			}
		}
	}
	return DeleteInstanceRecord(ctx, instanceID)
}
