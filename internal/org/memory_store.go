package org

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory org store for demo/development.
type MemoryStore struct {
	mu      sync.RWMutex
	orgs    map[string]*Organization // by ID
	slugs   map[string]string        // slug → ID
	members map[string]*Member       // by ID
}

// NewMemoryStore creates a new in-memory org store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orgs:    make(map[string]*Organization),
		slugs:   make(map[string]string),
		members: make(map[string]*Member),
	}
}

func (m *MemoryStore) CreateOrg(_ context.Context, o *Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.slugs[o.Slug]; exists {
		return ErrSlugTaken
	}

	cp := *o
	m.orgs[o.ID] = &cp
	m.slugs[o.Slug] = o.ID
	return nil
}

func (m *MemoryStore) GetOrg(_ context.Context, id string) (*Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orgs[id]
	if !ok {
		return nil, ErrOrgNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MemoryStore) GetOrgBySlug(_ context.Context, slug string) (*Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.slugs[slug]
	if !ok {
		return nil, ErrOrgNotFound
	}
	cp := *m.orgs[id]
	return &cp, nil
}

func (m *MemoryStore) UpdateOrg(_ context.Context, o *Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orgs[o.ID]; !ok {
		return ErrOrgNotFound
	}
	cp := *o
	m.orgs[o.ID] = &cp
	return nil
}

func (m *MemoryStore) AddMember(_ context.Context, mb *Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orgs[mb.OrgID]; !ok {
		return ErrOrgNotFound
	}
	email := strings.ToLower(mb.Email)
	for _, existing := range m.members {
		if existing.OrgID == mb.OrgID && strings.ToLower(existing.Email) == email {
			return ErrMemberExists
		}
	}

	cp := *mb
	m.members[mb.ID] = &cp
	return nil
}

func (m *MemoryStore) GetMember(_ context.Context, orgID, memberID string) (*Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mb, ok := m.members[memberID]
	if !ok || mb.OrgID != orgID {
		return nil, ErrMemberNotFound
	}
	cp := *mb
	return &cp, nil
}

func (m *MemoryStore) RemoveMember(_ context.Context, orgID, memberID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mb, ok := m.members[memberID]
	if !ok || mb.OrgID != orgID {
		return ErrMemberNotFound
	}
	delete(m.members, memberID)
	return nil
}

func (m *MemoryStore) ListMembers(_ context.Context, orgID string, limit, offset int) ([]*Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []*Member
	for _, mb := range m.members {
		if mb.OrgID == orgID {
			cp := *mb
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return []*Member{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *MemoryStore) CountMembers(_ context.Context, orgID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, mb := range m.members {
		if mb.OrgID == orgID {
			count++
		}
	}
	return count, nil
}
