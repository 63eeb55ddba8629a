package messages

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// PostgresStore persists channels and messages in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed message store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) CreateChannel(ctx context.Context, ch *Channel) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO channels (id, org_id, name, topic, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		ch.ID, ch.OrgID, ch.Name, ch.Topic, ch.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrChannelExists
		}
		return err
	}
	return nil
}

func (p *PostgresStore) GetChannel(ctx context.Context, orgID, channelID string) (*Channel, error) {
	ch := &Channel{}
	err := p.db.QueryRowContext(ctx, `
		SELECT id, org_id, name, topic, created_at
		FROM channels WHERE id = $1 AND org_id = $2`, channelID, orgID,
	).Scan(&ch.ID, &ch.OrgID, &ch.Name, &ch.Topic, &ch.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrChannelNotFound
	}
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (p *PostgresStore) ListChannels(ctx context.Context, orgID string) ([]*Channel, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, org_id, name, topic, created_at
		FROM channels WHERE org_id = $1
		ORDER BY created_at, id`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	channels := []*Channel{}
	for rows.Next() {
		ch := &Channel{}
		if err := rows.Scan(&ch.ID, &ch.OrgID, &ch.Name, &ch.Topic, &ch.CreatedAt); err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

func (p *PostgresStore) CreateMessage(ctx context.Context, m *Message) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO messages (id, channel_id, org_id, author_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.ChannelID, m.OrgID, m.AuthorID, m.Body, m.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrChannelNotFound
		}
		return err
	}
	return nil
}

func (p *PostgresStore) GetMessage(ctx context.Context, channelID, messageID string) (*Message, error) {
	return p.scanMessage(p.db.QueryRowContext(ctx, `
		SELECT id, channel_id, org_id, author_id, body, created_at, edited_at
		FROM messages WHERE id = $1 AND channel_id = $2`, messageID, channelID))
}

func (p *PostgresStore) ListMessages(ctx context.Context, channelID string, before time.Time, beforeID string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		rows *sql.Rows
		err  error
	)
	if before.IsZero() {
		rows, err = p.db.QueryContext(ctx, `
			SELECT id, channel_id, org_id, author_id, body, created_at, edited_at
			FROM messages WHERE channel_id = $1
			ORDER BY created_at DESC, id DESC LIMIT $2`, channelID, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `
			SELECT id, channel_id, org_id, author_id, body, created_at, edited_at
			FROM messages WHERE channel_id = $1
			AND (created_at < $2 OR (created_at = $2 AND id < $3))
			ORDER BY created_at DESC, id DESC LIMIT $4`, channelID, before, beforeID, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []*Message{}
	for rows.Next() {
		m := &Message{}
		var edited sql.NullTime
		if err := rows.Scan(&m.ID, &m.ChannelID, &m.OrgID, &m.AuthorID, &m.Body, &m.CreatedAt, &edited); err != nil {
			return nil, err
		}
		if edited.Valid {
			m.EditedAt = &edited.Time
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (p *PostgresStore) UpdateMessage(ctx context.Context, m *Message) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE messages SET body = $1, edited_at = $2
		WHERE id = $3 AND channel_id = $4`,
		m.Body, m.EditedAt, m.ID, m.ChannelID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (p *PostgresStore) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	result, err := p.db.ExecContext(ctx, `
		DELETE FROM messages WHERE id = $1 AND channel_id = $2`, messageID, channelID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (p *PostgresStore) scanMessage(row *sql.Row) (*Message, error) {
	m := &Message{}
	var edited sql.NullTime
	err := row.Scan(&m.ID, &m.ChannelID, &m.OrgID, &m.AuthorID, &m.Body, &m.CreatedAt, &edited)
	if err == sql.ErrNoRows {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	if edited.Valid {
		m.EditedAt = &edited.Time
	}
	return m, nil
}
