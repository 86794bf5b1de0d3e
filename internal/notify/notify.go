package notify

import (
	"fmt"
	"time"

	"github.com/asaskevich/EventBus"
)

// Event names published on the bus. Subscribers (websocket hub, webhook
// dispatcher, AMQP publisher, instance record sink) pick the ones they care
// about.
const (
	EventQR            = "instance.qr"
	EventAuthenticated = "instance.authenticated"
	EventReady         = "instance.ready"
	EventDisconnected  = "instance.disconnected"
	EventAuthFailure   = "instance.auth_failure"
	EventStatusChanged = "instance.status_changed"
	EventDestroyed     = "instance.destroyed"
	EventMessage       = "instance.message"
)

// Notification is the envelope every subscriber receives.
type Notification struct {
	Event      string                 `json:"event"`
	InstanceID string                 `json:"instanceId"`
	Timestamp  int64                  `json:"timestamp"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// Notifier fans instance lifecycle events out to all registered sinks over an
// in-process event bus.
type Notifier struct {
	bus EventBus.Bus
}

func New() *Notifier {
	return &Notifier{bus: EventBus.New()}
}

// Publish delivers the notification to every subscriber of the event, plus
// anyone listening on the wildcard topic.
func (n *Notifier) Publish(event, instanceID string, data map[string]interface{}) {
	notification := Notification{
		Event:      event,
		InstanceID: instanceID,
		Timestamp:  time.Now().Unix(),
		Data:       data,
	}
	n.bus.Publish(event, notification)
	n.bus.Publish("instance.*", notification)
}

// Subscribe registers a handler for a single event name. Handlers run
// asynchronously so a slow sink never stalls the publisher.
func (n *Notifier) Subscribe(event string, fn func(Notification)) error {
	if err := n.bus.SubscribeAsync(event, fn, false); err != nil {
		return fmt.Errorf("subscribe %s: %w", event, err)
	}
	return nil
}

// SubscribeAll registers a handler for every instance event.
func (n *Notifier) SubscribeAll(fn func(Notification)) error {
	if err := n.bus.SubscribeAsync("instance.*", fn, false); err != nil {
		return fmt.Errorf("subscribe wildcard: %w", err)
	}
	return nil
}

// Close waits for in-flight async handlers to finish.
func (n *Notifier) Close() {
	n.bus.WaitAsync()
}
