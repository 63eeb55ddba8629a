//go:build integration

package billing

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koinonia-labs/koinonia/internal/testutil"
)

func seedPGOrg(t *testing.T, db *sql.DB, id, slug string) {
	t.Helper()
	_, err := db.ExecContext(context.Background(), `
		INSERT INTO organizations (id, name, slug, status, created_at, updated_at)
		VALUES ($1, 'Test Org', $2, 'active', NOW(), NOW())`, id, slug)
	require.NoError(t, err)
}

func TestPostgresStore_SubscriptionLifecycle(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPostgresStore(db)
	seedPGOrg(t, db, "org_pg1", "grace-pg")

	_, err := store.Get(ctx, "org_pg1")
	assert.ErrorIs(t, err, ErrSubNotFound)

	now := time.Now().Truncate(time.Microsecond)
	sub := &Subscription{
		OrgID:            "org_pg1",
		StripeCustomerID: "cus_pg",
		Status:           StatusIncomplete,
		SeatCount:        10,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, store.Create(ctx, sub))

	got, err := store.Get(ctx, "org_pg1")
	require.NoError(t, err)
	assert.Equal(t, 10, got.SeatCount)
	assert.Equal(t, StatusIncomplete, got.Status)

	got.StripeSubscriptionID = "sub_pg"
	got.Status = StatusActive
	got.SeatCount = 60
	got.UpdatedAt = time.Now()
	require.NoError(t, store.Update(ctx, got))

	reloaded, err := store.Get(ctx, "org_pg1")
	require.NoError(t, err)
	assert.Equal(t, 60, reloaded.SeatCount)
	assert.Equal(t, StatusActive, reloaded.Status)
	assert.Equal(t, "sub_pg", reloaded.StripeSubscriptionID)

	// Create is an upsert keyed by org.
	sub.SeatCount = 75
	require.NoError(t, store.Create(ctx, sub))
	reloaded, err = store.Get(ctx, "org_pg1")
	require.NoError(t, err)
	assert.Equal(t, 75, reloaded.SeatCount)

	assert.ErrorIs(t, store.Update(ctx, &Subscription{OrgID: "org_missing"}), ErrSubNotFound)
}
