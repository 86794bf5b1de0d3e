package service

import (
	"context"
	"fmt"
	"testing"

	"gowa-keeper/internal/wa"
)

func seedChats(t *testing.T, m *Manager, factory *fakeFactory, messages *fakeMessageLog) {
	t.Helper()
	readyInstance(t, m)

	factory.client(0).mu.Lock()
	factory.client(0).chats = []wa.Chat{
		{ID: "c1@s.whatsapp.net", Name: "Ana"},
		{ID: "c2@s.whatsapp.net", Name: "Budi", Timestamp: 100},
		{ID: "g1@g.us", Name: "Team", IsGroup: true},
		{ID: "c3@s.whatsapp.net", Name: "Caca"},
	}
	factory.client(0).mu.Unlock()

	// Message-log recency overrides the client's own timestamps.
	messages.mu.Lock()
	messages.lastTimes = map[string]int64{
		"c1@s.whatsapp.net": 300,
		"g1@g.us":           200,
	}
	messages.mu.Unlock()
}

func TestChatsSortedByRecency(t *testing.T) {
	m, factory, _, messages := newTestManager(nil)
	seedChats(t, m, factory, messages)

	page, err := m.GetChats(context.Background(), "a", PageOptions{})
	if err != nil {
		t.Fatalf("GetChats: %v", err)
	}

	wantOrder := []string{"c1@s.whatsapp.net", "g1@g.us", "c2@s.whatsapp.net", "c3@s.whatsapp.net"}
	if len(page.Chats) != len(wantOrder) {
		t.Fatalf("got %d chats, want %d", len(page.Chats), len(wantOrder))
	}
	for i, want := range wantOrder {
		if page.Chats[i].ID != want {
			t.Fatalf("chat[%d] = %s, want %s", i, page.Chats[i].ID, want)
		}
	}
	// Missing timestamp sorts as zero, at the bottom.
	if page.Chats[3].LastMessageAt != 0 {
		t.Fatalf("chat without activity has timestamp %d, want 0", page.Chats[3].LastMessageAt)
	}
}

func TestContactsAndGroupsSplit(t *testing.T) {
	m, factory, _, messages := newTestManager(nil)
	seedChats(t, m, factory, messages)

	contacts, err := m.GetContacts(context.Background(), "a", PageOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if contacts.Total != 3 {
		t.Fatalf("contacts total = %d, want 3", contacts.Total)
	}
	for _, chat := range contacts.Chats {
		if chat.IsGroup {
			t.Fatalf("group %s leaked into contacts", chat.ID)
		}
	}

	groups, err := m.GetGroups(context.Background(), "a", PageOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if groups.Total != 1 || !groups.Chats[0].IsGroup {
		t.Fatalf("groups total = %d, want 1 group", groups.Total)
	}
}

func TestPaginationMath(t *testing.T) {
	m, factory, _, messages := newTestManager(nil)
	readyInstance(t, m)

	var chats []wa.Chat
	for i := 0; i < 120; i++ {
		chats = append(chats, wa.Chat{
			ID:        fmt.Sprintf("c%03d@s.whatsapp.net", i),
			Name:      fmt.Sprintf("contact %d", i),
			Timestamp: int64(1000 - i),
		})
	}
	factory.client(0).mu.Lock()
	factory.client(0).chats = chats
	factory.client(0).mu.Unlock()
	_ = messages

	// Default limit.
	page, err := m.GetChats(context.Background(), "a", PageOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if page.Limit != 50 || len(page.Chats) != 50 {
		t.Fatalf("default page size = %d/%d, want 50", page.Limit, len(page.Chats))
	}
	if !page.HasMore || page.TotalPages != 3 || page.Total != 120 {
		t.Fatalf("meta = %+v, want hasMore, 3 pages, 120 total", page.PageMeta)
	}

	// Window in the middle: ranks [40, 70).
	page, err = m.GetChats(context.Background(), "a", PageOptions{Limit: 30, Offset: 40})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Chats) != 30 {
		t.Fatalf("page size = %d, want 30", len(page.Chats))
	}
	if page.Chats[0].ID != "c040@s.whatsapp.net" || page.Chats[29].ID != "c069@s.whatsapp.net" {
		t.Fatalf("window = [%s, %s], want [c040, c069]", page.Chats[0].ID, page.Chats[29].ID)
	}
	if !page.HasMore || page.TotalPages != 4 {
		t.Fatalf("meta = %+v, want hasMore and 4 pages", page.PageMeta)
	}

	// Last partial page.
	page, err = m.GetChats(context.Background(), "a", PageOptions{Limit: 50, Offset: 100})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Chats) != 20 || page.HasMore {
		t.Fatalf("last page size = %d hasMore = %v, want 20 and false", len(page.Chats), page.HasMore)
	}

	// Oversized limit clamps to 200.
	page, err = m.GetChats(context.Background(), "a", PageOptions{Limit: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if page.Limit != 200 {
		t.Fatalf("limit = %d, want clamped to 200", page.Limit)
	}

	// Offset past the end yields an empty page, not an error.
	page, err = m.GetChats(context.Background(), "a", PageOptions{Offset: 500})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Chats) != 0 || page.HasMore {
		t.Fatalf("out-of-range page = %d chats hasMore=%v, want empty", len(page.Chats), page.HasMore)
	}
}

func TestEnrichmentIsPageScoped(t *testing.T) {
	m, factory, _, messages := newTestManager(nil)
	readyInstance(t, m)

	var chats []wa.Chat
	for i := 0; i < 30; i++ {
		chats = append(chats, wa.Chat{
			ID:        fmt.Sprintf("c%02d@s.whatsapp.net", i),
			Timestamp: int64(1000 - i),
		})
	}
	factory.client(0).mu.Lock()
	factory.client(0).chats = chats
	factory.client(0).mu.Unlock()
	_ = messages

	page, err := m.GetChats(context.Background(), "a", PageOptions{Limit: 5, Enrich: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Chats) != 5 {
		t.Fatalf("page size = %d, want 5", len(page.Chats))
	}

	// Only the five ids on the page were looked up.
	factory.client(0).mu.Lock()
	calls := factory.client(0).picCalls
	factory.client(0).mu.Unlock()
	if calls != 5 {
		t.Fatalf("picCalls = %d, want 5 (page-scoped enrichment)", calls)
	}
}

func TestGetContactProfile(t *testing.T) {
	m, factory, _, _ := newTestManager(nil)
	readyInstance(t, m)

	factory.client(0).mu.Lock()
	factory.client(0).picURLs = map[string]string{"c1@s.whatsapp.net": "https://pps.example/c1.jpg"}
	factory.client(0).mu.Unlock()

	profile, err := m.GetContactProfile(context.Background(), "a", "c1@s.whatsapp.net")
	if err != nil {
		t.Fatalf("GetContactProfile: %v", err)
	}
	if profile.ProfilePicURL == nil || *profile.ProfilePicURL != "https://pps.example/c1.jpg" {
		t.Fatal("avatar url not resolved")
	}
	if profile.Name == "" {
		t.Fatal("contact fields missing")
	}
}

func TestGetMultipleContactProfiles(t *testing.T) {
	m, _, _, _ := newTestManager(nil)
	readyInstance(t, m)

	ids := []string{"c1@s.whatsapp.net", "c2@s.whatsapp.net", "c3@s.whatsapp.net"}
	profiles, err := m.GetMultipleContactProfiles(context.Background(), "a", ids)
	if err != nil {
		t.Fatalf("GetMultipleContactProfiles: %v", err)
	}
	if len(profiles) != len(ids) {
		t.Fatalf("profiles = %d, want %d", len(profiles), len(ids))
	}
}
