package service

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"gowa-keeper/internal/notify"
)

// WebhookDispatcher forwards instance notifications to a configured HTTP
// endpoint, signed with HMAC-SHA256 when a secret is set.
type WebhookDispatcher struct {
	URL    string
	Secret string
	client *http.Client
}

func NewWebhookDispatcher(url, secret string) *WebhookDispatcher {
	return &WebhookDispatcher{
		URL:    url,
		Secret: secret,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Attach subscribes the dispatcher to every instance event on the notifier.
func (w *WebhookDispatcher) Attach(notifier *notify.Notifier) error {
	if w.URL == "" {
		return nil
	}
	return notifier.SubscribeAll(w.Send)
}

func (w *WebhookDispatcher) Send(n notify.Notification) {
	body, err := json.Marshal(n)
	if err != nil {
		log.Printf("webhook: marshal error: %v", err)
		return
	}

	req, err := http.NewRequest("POST", w.URL, bytes.NewReader(body))
	if err != nil {
		log.Printf("webhook: new request error: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	// If a webhook secret is set, add HMAC signature header
	if w.Secret != "" {
		mac := hmac.New(sha256.New, []byte(w.Secret))
		mac.Write(body)
		req.Header.Set("X-GOWA-Signature", hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		log.Printf("webhook: send error: %v", err)
		return
	}
	_ = resp.Body.Close()
}
