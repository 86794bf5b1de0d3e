package wa

import (
	"context"
	"strings"
	"time"
)

// Client is the per-instance messaging capability. The lifecycle manager only
// talks to this boundary; the whatsmeow implementation lives in whatsmeow.go
// and fakes live in the service tests.
type Client interface {
	// Connect starts the connect/auth sequence. For a fresh instance this
	// drives QR pairing; events are delivered to the handler given at
	// construction. Blocks until the underlying transport is up or ctx ends.
	Connect(ctx context.Context) error
	// Destroy tears the client down. The handle must not be reused after.
	Destroy() error

	IsConnected() bool
	ConnectionState() string

	// Probe is a lightweight liveness check (presence send).
	Probe(ctx context.Context) error

	SendText(ctx context.Context, chatID, text string) (*SendReceipt, error)
	SendMedia(ctx context.Context, chatID string, media MediaPayload) (*SendReceipt, error)
	GetNumberID(ctx context.Context, number string) (*NumberCheck, error)
	ListChats(ctx context.Context) ([]Chat, error)
	FetchMessages(ctx context.Context, chatID string, limit int) ([]Message, error)
	GetContactByID(ctx context.Context, id string) (*Contact, error)
	GetContactAbout(ctx context.Context, id string) (string, error)
	GetProfilePictureURL(ctx context.Context, entityID string) (string, error)
	GetGroupInfo(ctx context.Context, id string) (*GroupInfo, error)
}

// Factory builds a Client bound to one instance identity. The manager swaps
// handles wholesale on every reinitialize, so the factory must return a fresh
// client each call, wired to the same session store identity.
type Factory interface {
	NewClient(instanceID string, handler EventHandler) (Client, error)
}

// EventHandler receives lifecycle events from a client. Events are the typed
// structs below, dispatched teacher-style with a type switch.
type EventHandler func(evt interface{})

type EventQR struct {
	Code      string
	ExpiresAt time.Time
}

type EventAuthenticated struct{}

type EventAuthFailure struct {
	Reason string
}

type EventReady struct {
	Info ProfileInfo
}

type EventDisconnected struct {
	Reason string
}

type EventMessage struct {
	Message Message
}

type ProfileInfo struct {
	JID         string `json:"jid"`
	PhoneNumber string `json:"phoneNumber"`
	PushName    string `json:"pushName,omitempty"`
	Platform    string `json:"platform,omitempty"`
}

type Chat struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsGroup   bool   `json:"isGroup"`
	Timestamp int64  `json:"timestamp"` // unix seconds of last activity, 0 if unknown
}

type Contact struct {
	JID         string `json:"jid"`
	PhoneNumber string `json:"phoneNumber"`
	Name        string `json:"name"`
	PushName    string `json:"pushName,omitempty"`
	IsBusiness  bool   `json:"isBusiness"`
	About       string `json:"about,omitempty"`
}

type GroupInfo struct {
	JID          string   `json:"jid"`
	Name         string   `json:"name"`
	Topic        string   `json:"topic,omitempty"`
	OwnerJID     string   `json:"ownerJid,omitempty"`
	Participants []string `json:"participants"`
	CreatedAt    int64    `json:"createdAt,omitempty"`
}

type Message struct {
	ID        string `json:"id"`
	ChatID    string `json:"chatId"`
	SenderID  string `json:"senderId"`
	FromMe    bool   `json:"fromMe"`
	Text      string `json:"text,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type MediaPayload struct {
	Data     []byte
	MimeType string
	FileName string
	Caption  string
}

type SendReceipt struct {
	MessageID string `json:"messageId"`
	Timestamp int64  `json:"timestamp"`
}

type NumberCheck struct {
	Query        string `json:"query"`
	JID          string `json:"jid"`
	IsRegistered bool   `json:"isRegistered"`
}

// transientSignatures is the small fixed set of error shapes that mean the
// session transport died underneath an otherwise valid login. Anything else
// (bad JID, not logged in, upload rejected) is not recoverable by a rebuild.
var transientSignatures = []string{
	"websocket disconnected",
	"websocket is closed",
	"connection closed",
	"connection reset",
	"stream ended",
	"stream replaced",
	"not connected",
	"session closed",
	"server closed",
}

// IsTransientSessionError reports whether err matches a transient-session
// signature and is therefore eligible for one-shot recovery.
func IsTransientSessionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range transientSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
