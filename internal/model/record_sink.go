package model

import (
	"context"
	"fmt"
	"time"

	"gowa-keeper/internal/notify"
	"gowa-keeper/internal/wa"
)

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

// AttachRecordSink subscribes the database to instance notifications so the
// instances table and the message log track what happens in memory. All
// writes are best-effort; a DB hiccup never disturbs the lifecycle.
func AttachRecordSink(notifier *notify.Notifier, messages *MessageLog) error {
	if err := notifier.Subscribe(notify.EventStatusChanged, func(n notify.Notification) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if asString(n.Data["from"]) == "" {
			if err := InsertInstanceRecord(ctx, n.InstanceID); err != nil {
				fmt.Println("Warning: failed to insert instance record:", err)
				return
			}
		}
		if err := UpdateInstanceStatus(ctx, n.InstanceID, asString(n.Data["to"])); err != nil {
			fmt.Println("Warning: failed to update instance status:", err)
		}
	}); err != nil {
		return err
	}

	if err := notifier.Subscribe(notify.EventReady, func(n notify.Notification) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := UpdateInstanceOnReady(ctx, n.InstanceID,
			asString(n.Data["jid"]), asString(n.Data["phoneNumber"])); err != nil {
			fmt.Println("Warning: failed to update instance on ready:", err)
		}
	}); err != nil {
		return err
	}

	return notifier.Subscribe(notify.EventMessage, func(n notify.Notification) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		msg := wa.Message{
			ID:        asString(n.Data["messageId"]),
			ChatID:    asString(n.Data["chatId"]),
			SenderID:  asString(n.Data["senderId"]),
			FromMe:    asBool(n.Data["fromMe"]),
			Text:      asString(n.Data["text"]),
			MediaType: asString(n.Data["mediaType"]),
			Timestamp: asInt64(n.Data["timestamp"]),
		}
		if msg.ID == "" || msg.ChatID == "" {
			return
		}
		if err := messages.Append(ctx, n.InstanceID, msg); err != nil {
			fmt.Println("Warning: failed to store incoming message:", err)
		}
	})
}
