package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"gowa-keeper/internal/wa"
)

type picEntry struct {
	url       *string // nil is a cached negative
	fetchedAt time.Time
}

// profilePicCache remembers avatar lookups per (instance, entity) pair,
// including the ones that came back empty, so repeated chat listings do not
// hammer the client.
type profilePicCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]picEntry
}

func newProfilePicCache(ttl time.Duration) *profilePicCache {
	return &profilePicCache{ttl: ttl, entries: make(map[string]picEntry)}
}

func picKey(instanceID, entityID string) string {
	return instanceID + "|" + entityID
}

func (c *profilePicCache) Get(instanceID, entityID string) (*string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[picKey(instanceID, entityID)]
	if !ok || time.Since(entry.fetchedAt) >= c.ttl {
		return nil, false
	}
	return entry.url, true
}

func (c *profilePicCache) Put(instanceID, entityID string, url *string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[picKey(instanceID, entityID)] = picEntry{url: url, fetchedAt: time.Now()}
}

func (c *profilePicCache) DropInstance(instanceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := instanceID + "|"
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

// concurrencyFor picks the batch width from the input size.
func concurrencyFor(n int) int {
	switch {
	case n <= 10:
		return 3
	case n <= 20:
		return 4
	default:
		return 5
	}
}

// EnrichProfilePictures resolves avatar URLs for the given entity ids. The
// returned map always covers every requested id exactly once; unresolvable
// ids map to nil. Lookups run in consecutive batches of the concurrency
// width, each batch bounded by twice the per-item timeout, with a short pause
// between batches.
func (m *Manager) EnrichProfilePictures(ctx context.Context, instanceID string, entityIDs []string) map[string]*string {
	result := make(map[string]*string, len(entityIDs))
	for _, entityID := range entityIDs {
		result[entityID] = nil
	}
	if len(entityIDs) == 0 {
		return result
	}

	client, ok := m.registry.Client(instanceID)
	if !ok {
		return result
	}

	width := concurrencyFor(len(entityIDs))
	for start := 0; start < len(entityIDs); start += width {
		if start > 0 {
			select {
			case <-ctx.Done():
				return result
			case <-time.After(m.cfg.EnrichBatchPause):
			}
		}

		end := start + width
		if end > len(entityIDs) {
			end = len(entityIDs)
		}
		batch := entityIDs[start:end]

		batchCtx, cancel := context.WithTimeout(ctx, 2*m.cfg.ProfilePicTimeout)

		batchResults := make(map[string]*string, len(batch))
		var bmu sync.Mutex
		g := new(errgroup.Group)
		for _, entityID := range batch {
			entityID := entityID
			g.Go(func() error {
				url := m.lookupProfilePic(batchCtx, instanceID, client, entityID)
				bmu.Lock()
				batchResults[entityID] = url
				bmu.Unlock()
				return nil
			})
		}

		done := make(chan struct{})
		go func() {
			_ = g.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-batchCtx.Done():
			// Batch overran its bound. Everything unresolved stays nil; a
			// straggler finishing later only touches the batch-local map.
		}

		bmu.Lock()
		for _, entityID := range batch {
			if url, found := batchResults[entityID]; found {
				result[entityID] = url
			}
		}
		bmu.Unlock()
		cancel()
		// Stragglers exit once their item contexts fire; waiting for them here
		// keeps the concurrency cap strict across batch boundaries.
		<-done
	}
	return result
}

// lookupProfilePic serves one id: fresh cache hit, otherwise a client lookup
// bounded by the per-item timeout. Timeouts and errors are cached as
// negatives; a batch-level cancellation is not cached at all.
func (m *Manager) lookupProfilePic(ctx context.Context, instanceID string, client wa.Client, entityID string) *string {
	if url, hit := m.pics.Get(instanceID, entityID); hit {
		return url
	}

	itemCtx, cancel := context.WithTimeout(ctx, m.cfg.ProfilePicTimeout)
	defer cancel()

	url, err := client.GetProfilePictureURL(itemCtx, entityID)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		m.pics.Put(instanceID, entityID, nil)
		return nil
	}

	var value *string
	if url != "" {
		value = &url
	}
	m.pics.Put(instanceID, entityID, value)
	return value
}
