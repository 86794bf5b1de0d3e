package wa

import (
	"context"
)

// StoredSession is one persisted session identity as seen at startup.
// HasValidAuth is the store's own heuristic; the manager never inspects
// session artifacts itself.
type StoredSession struct {
	ID           string
	JID          string
	HasValidAuth bool
}

// SessionStore is the persisted credential/session boundary. The production
// implementation sits on the whatsmeow device container (container.go); tests
// use an in-memory fake.
type SessionStore interface {
	List(ctx context.Context) ([]StoredSession, error)
	Delete(ctx context.Context, instanceID string) error
}
