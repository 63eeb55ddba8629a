// Package messages provides per-organization discussion channels.
// Delivery is pull-based: clients poll the list endpoint.
package messages

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	ErrChannelNotFound = errors.New("messages: channel not found")
	ErrChannelExists   = errors.New("messages: channel name already in use")
	ErrMessageNotFound = errors.New("messages: message not found")
)

// Channel is a named discussion space within an organization.
type Channel struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"orgId"`
	Name      string    `json:"name"`
	Topic     string    `json:"topic,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is one post in a channel.
type Message struct {
	ID        string     `json:"id"`
	ChannelID string     `json:"channelId"`
	OrgID     string     `json:"orgId"`
	AuthorID  string     `json:"authorId"`
	Body      string     `json:"body"`
	CreatedAt time.Time  `json:"createdAt"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
}

// Store persists channels and messages.
type Store interface {
	CreateChannel(ctx context.Context, ch *Channel) error
	GetChannel(ctx context.Context, orgID, channelID string) (*Channel, error)
	ListChannels(ctx context.Context, orgID string) ([]*Channel, error)

	CreateMessage(ctx context.Context, m *Message) error
	GetMessage(ctx context.Context, channelID, messageID string) (*Message, error)
	// ListMessages returns messages strictly before the (before,
	// beforeID) cursor position, newest first. Messages sharing the
	// cursor timestamp are broken on ID so none are skipped. A zero
	// cursor means "from the latest".
	ListMessages(ctx context.Context, channelID string, before time.Time, beforeID string, limit int) ([]*Message, error)
	UpdateMessage(ctx context.Context, m *Message) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}
