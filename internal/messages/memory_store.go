package messages

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory message store for demo/development.
type MemoryStore struct {
	mu       sync.RWMutex
	channels map[string]*Channel // by ID
	msgs     map[string]*Message // by ID
}

// NewMemoryStore creates a new in-memory message store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		channels: make(map[string]*Channel),
		msgs:     make(map[string]*Message),
	}
}

func (m *MemoryStore) CreateChannel(_ context.Context, ch *Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := strings.ToLower(ch.Name)
	for _, existing := range m.channels {
		if existing.OrgID == ch.OrgID && strings.ToLower(existing.Name) == name {
			return ErrChannelExists
		}
	}

	cp := *ch
	m.channels[ch.ID] = &cp
	return nil
}

func (m *MemoryStore) GetChannel(_ context.Context, orgID, channelID string) (*Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ch, ok := m.channels[channelID]
	if !ok || ch.OrgID != orgID {
		return nil, ErrChannelNotFound
	}
	cp := *ch
	return &cp, nil
}

func (m *MemoryStore) ListChannels(_ context.Context, orgID string) ([]*Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Channel
	for _, ch := range m.channels {
		if ch.OrgID == orgID {
			cp := *ch
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) CreateMessage(_ context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.channels[msg.ChannelID]; !ok {
		return ErrChannelNotFound
	}
	cp := *msg
	m.msgs[msg.ID] = &cp
	return nil
}

func (m *MemoryStore) GetMessage(_ context.Context, channelID, messageID string) (*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msg, ok := m.msgs[messageID]
	if !ok || msg.ChannelID != channelID {
		return nil, ErrMessageNotFound
	}
	cp := *msg
	return &cp, nil
}

func (m *MemoryStore) ListMessages(_ context.Context, channelID string, before time.Time, beforeID string, limit int) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []*Message
	for _, msg := range m.msgs {
		if msg.ChannelID != channelID {
			continue
		}
		if !before.IsZero() {
			tie := msg.CreatedAt.Equal(before) && msg.ID < beforeID
			if !msg.CreatedAt.Before(before) && !tie {
				continue
			}
		}
		cp := *msg
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *MemoryStore) UpdateMessage(_ context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.msgs[msg.ID]
	if !ok || existing.ChannelID != msg.ChannelID {
		return ErrMessageNotFound
	}
	cp := *msg
	m.msgs[msg.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteMessage(_ context.Context, channelID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.msgs[messageID]
	if !ok || msg.ChannelID != channelID {
		return ErrMessageNotFound
	}
	delete(m.msgs, messageID)
	return nil
}
