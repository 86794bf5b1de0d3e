package model

import (
	"time"

	"gowa-keeper/internal/wa"
)

// Status is the single source of truth for an instance's readiness.
type Status string

const (
	StatusInitializing   Status = "initializing"
	StatusQRRequired     Status = "qr_required"
	StatusQRReady        Status = "qr_ready"
	StatusAuthenticating Status = "authenticating"
	StatusRecovering     Status = "recovering"
	StatusAuthenticated  Status = "authenticated"
	StatusReady          Status = "ready"
	StatusDisconnected   Status = "disconnected"
	StatusFailed         Status = "failed"
	StatusAuthFailed     Status = "auth_failed"
)

// Instance is one managed session: the client handle plus lifecycle metadata.
// Owned exclusively by the registry; every mutation goes through it.
type Instance struct {
	ID     string
	Client wa.Client
	Status Status

	// QRCode holds the last pairing payload, cleared once authenticated.
	QRCode      string
	QRExpiresAt time.Time

	// ProfileInfo is snapshotted on ready and kept for display after
	// disconnect; it must never be read as a liveness signal.
	ProfileInfo *wa.ProfileInfo

	CreatedAt    time.Time
	LastActivity time.Time

	IsRecovered  bool
	HasValidAuth bool // sole gate for automatic reconnection
	SkipQR       bool

	ReconnectAttempts int
	Reconnecting      bool

	// KeepAliveStop is the owned keep-alive timer resource, released on
	// teardown or disconnect.
	KeepAliveStop chan struct{}
}

// Snapshot is the externally visible view of an instance. Handlers and
// notifications only ever see snapshots, never the live record.
type Snapshot struct {
	ID                string          `json:"instanceId"`
	Status            Status          `json:"status"`
	ProfileInfo       *wa.ProfileInfo `json:"profileInfo,omitempty"`
	QRCode            string          `json:"qrCode,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	LastActivity      time.Time       `json:"lastActivity"`
	IsRecovered       bool            `json:"isRecovered"`
	HasValidAuth      bool            `json:"hasValidAuth"`
	ReconnectAttempts int             `json:"reconnectAttempts"`
	Reconnecting      bool            `json:"reconnecting"`
}

func (i *Instance) Snapshot() Snapshot {
	return Snapshot{
		ID:                i.ID,
		Status:            i.Status,
		ProfileInfo:       i.ProfileInfo,
		QRCode:            i.QRCode,
		CreatedAt:         i.CreatedAt,
		LastActivity:      i.LastActivity,
		IsRecovered:       i.IsRecovered,
		HasValidAuth:      i.HasValidAuth,
		ReconnectAttempts: i.ReconnectAttempts,
		Reconnecting:      i.Reconnecting,
	}
}
