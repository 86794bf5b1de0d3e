package service

import (
	"fmt"
	"sync"
	"time"

	"gowa-keeper/internal/model"
	"gowa-keeper/internal/wa"
)

// Registry owns every live instance. All field mutation happens through its
// methods under the lock; callers outside the service layer only ever see
// snapshots.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]*model.Instance
}

func NewRegistry() *Registry {
	return &Registry{instances: make(map[string]*model.Instance)}
}

// allowedNext encodes the lifecycle state machine. A transition not listed
// here is ignored and logged, never applied.
var allowedNext = map[model.Status][]model.Status{
	model.StatusInitializing:   {model.StatusQRRequired, model.StatusQRReady, model.StatusAuthenticating, model.StatusRecovering, model.StatusAuthenticated, model.StatusReady, model.StatusDisconnected, model.StatusAuthFailed},
	model.StatusQRRequired:     {model.StatusQRReady, model.StatusAuthenticating, model.StatusAuthenticated, model.StatusDisconnected, model.StatusAuthFailed},
	model.StatusQRReady:        {model.StatusQRRequired, model.StatusQRReady, model.StatusAuthenticating, model.StatusAuthenticated, model.StatusDisconnected, model.StatusAuthFailed},
	model.StatusAuthenticating: {model.StatusQRRequired, model.StatusAuthenticated, model.StatusReady, model.StatusDisconnected, model.StatusAuthFailed},
	model.StatusRecovering:     {model.StatusQRRequired, model.StatusAuthenticated, model.StatusReady, model.StatusInitializing, model.StatusDisconnected, model.StatusAuthFailed},
	model.StatusAuthenticated:  {model.StatusQRRequired, model.StatusReady, model.StatusDisconnected, model.StatusAuthFailed},
	model.StatusReady:          {model.StatusQRRequired, model.StatusReady, model.StatusDisconnected, model.StatusAuthFailed},
	model.StatusDisconnected:   {model.StatusInitializing, model.StatusQRRequired, model.StatusRecovering, model.StatusAuthenticating, model.StatusAuthenticated, model.StatusReady, model.StatusFailed, model.StatusAuthFailed},
	model.StatusFailed:         {},
	model.StatusAuthFailed:     {},
}

func transitionAllowed(from, to model.Status) bool {
	if from == to {
		return true
	}
	for _, next := range allowedNext[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Add registers a new instance. The id must be free.
func (r *Registry) Add(inst *model.Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.instances[inst.ID]; exists {
		return ErrInstanceExists
	}
	r.instances[inst.ID] = inst
	return nil
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, id)
}

func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.instances[id]
	return ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}

func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.instances))
	for id := range r.instances {
		ids = append(ids, id)
	}
	return ids
}

// Snapshot returns the external view of one instance.
func (r *Registry) Snapshot(id string) (model.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[id]
	if !ok {
		return model.Snapshot{}, ErrInstanceNotFound
	}
	return inst.Snapshot(), nil
}

func (r *Registry) Snapshots() []model.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Snapshot, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, inst.Snapshot())
	}
	return out
}

func (r *Registry) Status(id string) (model.Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[id]
	if !ok {
		return "", false
	}
	return inst.Status, true
}

// Client returns the current client handle. The handle is replaced wholesale
// on reinitialize, so callers must re-fetch it after any recovery.
func (r *Registry) Client(id string) (wa.Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[id]
	if !ok || inst.Client == nil {
		return nil, false
	}
	return inst.Client, true
}

// Transition applies a guarded status change and reports whether it was
// applied. Illegal transitions are logged and dropped.
func (r *Registry) Transition(id string, to model.Status) (model.Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[id]
	if !ok {
		return "", false
	}
	from := inst.Status
	if !transitionAllowed(from, to) {
		fmt.Printf("⚠ Ignoring illegal transition %s -> %s for instance %s\n", from, to, id)
		return from, false
	}
	inst.Status = to
	return from, from != to
}

func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instances[id]; ok {
		inst.LastActivity = time.Now()
	}
}

func (r *Registry) SetQR(id, code string, expiresAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instances[id]; ok {
		inst.QRCode = code
		inst.QRExpiresAt = expiresAt
	}
}

func (r *Registry) ClearQR(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instances[id]; ok {
		inst.QRCode = ""
		inst.QRExpiresAt = time.Time{}
	}
}

func (r *Registry) SetProfile(id string, info *wa.ProfileInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instances[id]; ok {
		inst.ProfileInfo = info
	}
}

func (r *Registry) SetValidAuth(id string, valid bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instances[id]; ok {
		inst.HasValidAuth = valid
		if !valid {
			inst.SkipQR = false
		}
	}
}

func (r *Registry) HasValidAuth(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[id]
	return ok && inst.HasValidAuth
}

// SetClient swaps in a freshly built client handle. The old handle is never
// mutated in place.
func (r *Registry) SetClient(id string, client wa.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instances[id]; ok {
		inst.Client = client
	}
}

// BeginReconnect claims the per-instance reconnection slot. Returns false if
// another attempt is already in flight.
func (r *Registry) BeginReconnect(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[id]
	if !ok || inst.Reconnecting {
		return false
	}
	inst.Reconnecting = true
	return true
}

func (r *Registry) EndReconnect(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instances[id]; ok {
		inst.Reconnecting = false
	}
}

func (r *Registry) IsReconnecting(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[id]
	return ok && inst.Reconnecting
}

// IncrementAttempts bumps the reconnect counter and returns the new value.
func (r *Registry) IncrementAttempts(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[id]
	if !ok {
		return 0
	}
	inst.ReconnectAttempts++
	return inst.ReconnectAttempts
}

func (r *Registry) ResetAttempts(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instances[id]; ok {
		inst.ReconnectAttempts = 0
	}
}

// SwapKeepAlive installs a new keep-alive stop channel and returns the
// previous one so the caller can close it. Passing nil just detaches.
func (r *Registry) SwapKeepAlive(id string, stop chan struct{}) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[id]
	if !ok {
		return nil
	}
	prev := inst.KeepAliveStop
	inst.KeepAliveStop = stop
	return prev
}
