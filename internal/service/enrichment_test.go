package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestConcurrencyWidth(t *testing.T) {
	cases := []struct{ n, want int }{
		{1, 3}, {10, 3}, {11, 4}, {20, 4}, {21, 5}, {100, 5},
	}
	for _, tc := range cases {
		if got := concurrencyFor(tc.n); got != tc.want {
			t.Errorf("concurrencyFor(%d) = %d, want %d", tc.n, got, tc.want)
		}
	}
}

func TestEnrichmentMappingIsComplete(t *testing.T) {
	m, factory, _, _ := newTestManager(nil)
	readyInstance(t, m)

	factory.client(0).mu.Lock()
	factory.client(0).picURLs = map[string]string{
		"c1": "https://pps.example/c1.jpg",
		"c3": "https://pps.example/c3.jpg",
	}
	factory.client(0).mu.Unlock()

	ids := []string{"c1", "c2", "c3", "c4", "c5", "c6", "c7"}
	result := m.EnrichProfilePictures(context.Background(), "a", ids)

	if len(result) != len(ids) {
		t.Fatalf("mapping has %d entries, want %d", len(result), len(ids))
	}
	for _, id := range ids {
		if _, present := result[id]; !present {
			t.Fatalf("id %s missing from mapping", id)
		}
	}
	if result["c1"] == nil || *result["c1"] != "https://pps.example/c1.jpg" {
		t.Fatal("resolved url not returned")
	}
	if result["c2"] != nil {
		t.Fatal("unresolved id must map to nil")
	}
}

func TestEnrichmentCachesWithinTTL(t *testing.T) {
	m, factory, _, _ := newTestManager(nil)
	readyInstance(t, m)

	factory.client(0).mu.Lock()
	factory.client(0).picURLs = map[string]string{"c1": "https://pps.example/c1.jpg"}
	factory.client(0).mu.Unlock()

	ids := []string{"c1", "c2"}
	m.EnrichProfilePictures(context.Background(), "a", ids)

	factory.client(0).mu.Lock()
	calls := factory.client(0).picCalls
	factory.client(0).mu.Unlock()
	if calls != 2 {
		t.Fatalf("first pass picCalls = %d, want 2", calls)
	}

	// Second pass inside the TTL: both the positive and the negative entry
	// come from cache.
	result := m.EnrichProfilePictures(context.Background(), "a", ids)

	factory.client(0).mu.Lock()
	calls = factory.client(0).picCalls
	factory.client(0).mu.Unlock()
	if calls != 2 {
		t.Fatalf("cached pass picCalls = %d, want 2", calls)
	}
	if result["c1"] == nil || result["c2"] != nil {
		t.Fatal("cached values differ from the original lookups")
	}
}

func TestEnrichmentCacheExpires(t *testing.T) {
	m, factory, _, _ := newTestManager(nil)
	m.pics = newProfilePicCache(10 * time.Millisecond)
	readyInstance(t, m)

	m.EnrichProfilePictures(context.Background(), "a", []string{"c1"})
	time.Sleep(15 * time.Millisecond)
	m.EnrichProfilePictures(context.Background(), "a", []string{"c1"})

	factory.client(0).mu.Lock()
	calls := factory.client(0).picCalls
	factory.client(0).mu.Unlock()
	if calls != 2 {
		t.Fatalf("picCalls = %d, want 2 (refetch after TTL)", calls)
	}
}

func TestEnrichmentErrorsAreCachedNegatives(t *testing.T) {
	m, factory, _, _ := newTestManager(nil)
	readyInstance(t, m)

	factory.client(0).mu.Lock()
	factory.client(0).picErr = errors.New("rate-overlimit")
	factory.client(0).mu.Unlock()

	result := m.EnrichProfilePictures(context.Background(), "a", []string{"c1"})
	if result["c1"] != nil {
		t.Fatal("errored lookup must map to nil")
	}

	// The failure was cached; no second client call.
	m.EnrichProfilePictures(context.Background(), "a", []string{"c1"})
	factory.client(0).mu.Lock()
	calls := factory.client(0).picCalls
	factory.client(0).mu.Unlock()
	if calls != 1 {
		t.Fatalf("picCalls = %d, want 1", calls)
	}
}

func TestEnrichmentBatchingHonorsWidthAndPause(t *testing.T) {
	m, factory, _, _ := newTestManager(nil)
	readyInstance(t, m)

	ids := make([]string, 25)
	for i := range ids {
		ids[i] = fmt.Sprintf("c%02d", i)
	}

	factory.client(0).mu.Lock()
	factory.client(0).picDelay = 2 * time.Millisecond
	factory.client(0).mu.Unlock()

	start := time.Now()
	result := m.EnrichProfilePictures(context.Background(), "a", ids)
	elapsed := time.Since(start)

	if len(result) != 25 {
		t.Fatalf("mapping has %d entries, want 25", len(result))
	}
	factory.client(0).mu.Lock()
	maxInFlight := factory.client(0).maxInFlight
	calls := factory.client(0).picCalls
	factory.client(0).mu.Unlock()

	if maxInFlight > 5 {
		t.Fatalf("max concurrent lookups = %d, want <= 5", maxInFlight)
	}
	if calls != 25 {
		t.Fatalf("picCalls = %d, want 25", calls)
	}
	// 25 ids at width 5 is 5 batches, so 4 inter-batch pauses.
	if minElapsed := 4 * m.cfg.EnrichBatchPause; elapsed < minElapsed {
		t.Fatalf("elapsed = %v, want at least %v of inter-batch pauses", elapsed, minElapsed)
	}
}

func TestEnrichmentBatchTimeoutMarksNulls(t *testing.T) {
	m, factory, _, _ := newTestManager(nil)
	m.cfg.ProfilePicTimeout = 10 * time.Millisecond
	readyInstance(t, m)

	// Lookups hang past the whole batch bound (2x item timeout).
	factory.client(0).mu.Lock()
	factory.client(0).picDelay = 200 * time.Millisecond
	factory.client(0).picURLs = map[string]string{"c1": "https://pps.example/c1.jpg"}
	factory.client(0).mu.Unlock()

	result := m.EnrichProfilePictures(context.Background(), "a", []string{"c1", "c2"})
	if len(result) != 2 {
		t.Fatalf("mapping has %d entries, want 2", len(result))
	}
	if result["c1"] != nil || result["c2"] != nil {
		t.Fatal("timed-out batch must resolve every id to nil")
	}
}

func TestEnrichmentCapHoldsAcrossBatches(t *testing.T) {
	m, factory, _, _ := newTestManager(nil)
	m.cfg.ProfilePicTimeout = 5 * time.Millisecond
	readyInstance(t, m)

	// Lookups ignore cancellation and outlive the batch bound, like a client
	// stuck on a dead socket.
	factory.client(0).mu.Lock()
	factory.client(0).picDelay = 30 * time.Millisecond
	factory.client(0).picIgnoreCtx = true
	factory.client(0).mu.Unlock()

	ids := []string{"c1", "c2", "c3", "c4", "c5", "c6"}
	result := m.EnrichProfilePictures(context.Background(), "a", ids)
	if len(result) != len(ids) {
		t.Fatalf("mapping has %d entries, want %d", len(result), len(ids))
	}

	// The second batch must not start while first-batch stragglers still run.
	factory.client(0).mu.Lock()
	maxInFlight := factory.client(0).maxInFlight
	factory.client(0).mu.Unlock()
	if maxInFlight > 3 {
		t.Fatalf("max concurrent lookups = %d, want <= 3 across batch boundaries", maxInFlight)
	}
}

func TestProfilePicCacheIsPerInstance(t *testing.T) {
	cache := newProfilePicCache(time.Minute)
	url := "https://pps.example/x.jpg"
	cache.Put("inst1", "c1", &url)

	if _, hit := cache.Get("inst2", "c1"); hit {
		t.Fatal("cache must be keyed per instance")
	}
	got, hit := cache.Get("inst1", "c1")
	if !hit || got == nil || *got != url {
		t.Fatal("expected cache hit for the writing instance")
	}

	cache.DropInstance("inst1")
	if _, hit := cache.Get("inst1", "c1"); hit {
		t.Fatal("DropInstance must evict the instance's entries")
	}
}
