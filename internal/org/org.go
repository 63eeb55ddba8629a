// Package org provides organization and membership management for the
// Koinonia platform. An organization's member count is its seat count
// for billing: every add or remove flows through to the subscription.
package org

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	ErrOrgNotFound    = errors.New("org: not found")
	ErrSlugTaken      = errors.New("org: slug already taken")
	ErrMemberNotFound = errors.New("org: member not found")
	ErrMemberExists   = errors.New("org: member email already registered")
)

// Status represents an organization's lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
)

// Role identifies a member's permission level within the organization.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Organization represents one church community on the platform.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Member is one seat within an organization.
type Member struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"orgId"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists organizations and members.
type Store interface {
	CreateOrg(ctx context.Context, o *Organization) error
	GetOrg(ctx context.Context, id string) (*Organization, error)
	GetOrgBySlug(ctx context.Context, slug string) (*Organization, error)
	UpdateOrg(ctx context.Context, o *Organization) error

	AddMember(ctx context.Context, m *Member) error
	GetMember(ctx context.Context, orgID, memberID string) (*Member, error)
	RemoveMember(ctx context.Context, orgID, memberID string) error
	ListMembers(ctx context.Context, orgID string, limit, offset int) ([]*Member, error)
	CountMembers(ctx context.Context, orgID string) (int, error)
}

// SeatSyncer reconciles an organization's subscription after its seat
// count changes. Implemented by the billing service.
type SeatSyncer interface {
	SyncSeats(ctx context.Context, orgID string, seats int) error
}
