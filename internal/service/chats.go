package service

import (
	"context"
	"fmt"
	"sort"

	"gowa-keeper/internal/wa"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// PageOptions come straight from query params; zero values get defaults.
type PageOptions struct {
	Limit  int
	Offset int
	Enrich bool
}

type PageMeta struct {
	Total      int  `json:"total"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	HasMore    bool `json:"hasMore"`
	TotalPages int  `json:"totalPages"`
}

// ChatView is one chat row as served to the API: the raw chat plus recency
// and the optionally enriched avatar URL.
type ChatView struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	IsGroup       bool    `json:"isGroup"`
	LastMessageAt int64   `json:"lastMessageAt"`
	ProfilePicURL *string `json:"profilePicUrl"`
}

type ChatPage struct {
	Chats []ChatView `json:"chats"`
	PageMeta
}

// ContactProfile is a single contact with its avatar resolved.
type ContactProfile struct {
	wa.Contact
	ProfilePicURL *string `json:"profilePicUrl"`
}

// GetChats lists all chats sorted by recency, newest first, paginated.
func (m *Manager) GetChats(ctx context.Context, id string, opts PageOptions) (*ChatPage, error) {
	views, err := m.listChatsSorted(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.pageOf(ctx, id, views, opts), nil
}

// GetContacts is GetChats restricted to direct chats.
func (m *Manager) GetContacts(ctx context.Context, id string, opts PageOptions) (*ChatPage, error) {
	views, err := m.listChatsSorted(ctx, id)
	if err != nil {
		return nil, err
	}
	contacts := views[:0:0]
	for _, v := range views {
		if !v.IsGroup {
			contacts = append(contacts, v)
		}
	}
	return m.pageOf(ctx, id, contacts, opts), nil
}

// GetGroups is GetChats restricted to group chats.
func (m *Manager) GetGroups(ctx context.Context, id string, opts PageOptions) (*ChatPage, error) {
	views, err := m.listChatsSorted(ctx, id)
	if err != nil {
		return nil, err
	}
	groups := views[:0:0]
	for _, v := range views {
		if v.IsGroup {
			groups = append(groups, v)
		}
	}
	return m.pageOf(ctx, id, groups, opts), nil
}

// GetContactProfile resolves one contact with avatar and about text.
func (m *Manager) GetContactProfile(ctx context.Context, id, contactID string) (*ContactProfile, error) {
	contact, err := runWithRecovery(ctx, m, id, func(ctx context.Context, client wa.Client) (*wa.Contact, error) {
		return client.GetContactByID(ctx, contactID)
	})
	if err != nil {
		return nil, err
	}
	pics := m.EnrichProfilePictures(ctx, id, []string{contactID})
	return &ContactProfile{Contact: *contact, ProfilePicURL: pics[contactID]}, nil
}

// GetMultipleContactProfiles resolves a batch of contacts; avatars go through
// the enrichment pipeline so the usual batching and caching apply.
func (m *Manager) GetMultipleContactProfiles(ctx context.Context, id string, contactIDs []string) ([]ContactProfile, error) {
	contacts, err := runWithRecovery(ctx, m, id, func(ctx context.Context, client wa.Client) ([]wa.Contact, error) {
		out := make([]wa.Contact, 0, len(contactIDs))
		for _, contactID := range contactIDs {
			contact, err := client.GetContactByID(ctx, contactID)
			if err != nil {
				return nil, err
			}
			out = append(out, *contact)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	pics := m.EnrichProfilePictures(ctx, id, contactIDs)
	profiles := make([]ContactProfile, 0, len(contacts))
	for _, contact := range contacts {
		profiles = append(profiles, ContactProfile{
			Contact:       contact,
			ProfilePicURL: pics[contact.JID],
		})
	}
	return profiles, nil
}

// listChatsSorted merges the client's chat list with message-log recency and
// sorts newest first. A chat with no known activity sorts as timestamp 0.
func (m *Manager) listChatsSorted(ctx context.Context, id string) ([]ChatView, error) {
	chats, err := runWithRecovery(ctx, m, id, func(ctx context.Context, client wa.Client) ([]wa.Chat, error) {
		return client.ListChats(ctx)
	})
	if err != nil {
		return nil, err
	}

	times := map[string]int64{}
	if m.messages != nil {
		if t, err := m.messages.LastTimes(ctx, id); err == nil {
			times = t
		} else {
			fmt.Println("⚠ Failed to load chat recency for instance:", id, err)
		}
	}

	views := make([]ChatView, 0, len(chats))
	for _, chat := range chats {
		ts := chat.Timestamp
		if t, ok := times[chat.ID]; ok && t > ts {
			ts = t
		}
		views = append(views, ChatView{
			ID:            chat.ID,
			Name:          chat.Name,
			IsGroup:       chat.IsGroup,
			LastMessageAt: ts,
		})
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].LastMessageAt > views[j].LastMessageAt
	})
	return views, nil
}

// pageOf slices one page out of the sorted views and enriches only the ids
// on that page.
func (m *Manager) pageOf(ctx context.Context, id string, views []ChatView, opts PageOptions) *ChatPage {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	total := len(views)
	start := offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	page := views[start:end]

	if opts.Enrich && len(page) > 0 {
		ids := make([]string, 0, len(page))
		for _, v := range page {
			ids = append(ids, v.ID)
		}
		pics := m.EnrichProfilePictures(ctx, id, ids)
		for i := range page {
			page[i].ProfilePicURL = pics[page[i].ID]
		}
	}

	return &ChatPage{
		Chats: page,
		PageMeta: PageMeta{
			Total:      total,
			Limit:      limit,
			Offset:     offset,
			HasMore:    offset+limit < total,
			TotalPages: (total + limit - 1) / limit,
		},
	}
}
