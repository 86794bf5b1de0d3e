package model

import (
	"context"

	"gowa-keeper/database"
	"gowa-keeper/internal/wa"
)

// MessageLog is the Postgres-backed message history. Inbound and outbound
// messages land here from client events; chat recency and history reads come
// back out.
type MessageLog struct{}

func NewMessageLog() *MessageLog {
	return &MessageLog{}
}

func (l *MessageLog) Append(ctx context.Context, instanceID string, msg wa.Message) error {
	_, err := database.AppDB.ExecContext(ctx,
		`INSERT INTO messages (instance_id, message_id, chat_id, sender_id, from_me, body, media_type, ts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (instance_id, chat_id, message_id) DO NOTHING`,
		instanceID, msg.ID, msg.ChatID, msg.SenderID, msg.FromMe, msg.Text, msg.MediaType, msg.Timestamp)
	return err
}

func (l *MessageLog) ListByChat(ctx context.Context, instanceID, chatID string, limit int) ([]wa.Message, error) {
	rows, err := database.AppDB.QueryContext(ctx,
		`SELECT message_id, chat_id, sender_id, from_me, body, media_type, ts
		 FROM messages
		 WHERE instance_id = $1 AND chat_id = $2
		 ORDER BY ts DESC
		 LIMIT $3`, instanceID, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []wa.Message
	for rows.Next() {
		var msg wa.Message
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.FromMe,
			&msg.Text, &msg.MediaType, &msg.Timestamp); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// LastTimes returns the newest message timestamp per chat, used for chat
// recency ordering.
func (l *MessageLog) LastTimes(ctx context.Context, instanceID string) (map[string]int64, error) {
	rows, err := database.AppDB.QueryContext(ctx,
		`SELECT chat_id, MAX(ts) FROM messages
		 WHERE instance_id = $1 GROUP BY chat_id`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	times := make(map[string]int64)
	for rows.Next() {
		var chatID string
		var ts int64
		if err := rows.Scan(&chatID, &ts); err != nil {
			return nil, err
		}
		times[chatID] = ts
	}
	return times, rows.Err()
}
