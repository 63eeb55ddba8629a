package billing

import (
	"context"
	"database/sql"
)

// PostgresStore persists subscriptions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed subscription store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, s *Subscription) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO subscriptions (org_id, stripe_customer_id, stripe_subscription_id, status, seat_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (org_id) DO UPDATE SET
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			status = EXCLUDED.status,
			seat_count = EXCLUDED.seat_count,
			updated_at = EXCLUDED.updated_at`,
		s.OrgID, s.StripeCustomerID, s.StripeSubscriptionID, string(s.Status),
		s.SeatCount, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, orgID string) (*Subscription, error) {
	s := &Subscription{}
	var status string
	err := p.db.QueryRowContext(ctx, `
		SELECT org_id, stripe_customer_id, stripe_subscription_id, status, seat_count, created_at, updated_at
		FROM subscriptions WHERE org_id = $1`, orgID,
	).Scan(&s.OrgID, &s.StripeCustomerID, &s.StripeSubscriptionID, &status,
		&s.SeatCount, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSubNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Status = SubStatus(status)
	return s, nil
}

func (p *PostgresStore) Update(ctx context.Context, s *Subscription) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE subscriptions SET stripe_customer_id = $1, stripe_subscription_id = $2,
			status = $3, seat_count = $4, updated_at = $5
		WHERE org_id = $6`,
		s.StripeCustomerID, s.StripeSubscriptionID, string(s.Status),
		s.SeatCount, s.UpdatedAt, s.OrgID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrSubNotFound
	}
	return nil
}
