package wa

import "context"

// MessageLog records message traffic per instance and serves history reads.
// whatsmeow has no server-side history fetch, so FetchMessages is backed by
// this log.
type MessageLog interface {
	Append(ctx context.Context, instanceID string, msg Message) error
	ListByChat(ctx context.Context, instanceID, chatID string, limit int) ([]Message, error)
	LastTimes(ctx context.Context, instanceID string) (map[string]int64, error)
}
