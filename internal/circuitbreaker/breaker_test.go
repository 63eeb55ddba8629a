package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllow_ClosedByDefault(t *testing.T) {
	b := New(3, 100*time.Millisecond)
	assert.True(t, b.Allow("stripe"))
	assert.Equal(t, StateClosed, b.State("stripe"))
}

func TestTripsAtThreshold(t *testing.T) {
	b := New(3, 100*time.Millisecond)

	b.RecordFailure("stripe")
	b.RecordFailure("stripe")
	assert.True(t, b.Allow("stripe"), "below threshold should still allow")

	b.RecordFailure("stripe")
	assert.False(t, b.Allow("stripe"))
	assert.Equal(t, StateOpen, b.State("stripe"))
}

func TestHalfOpenAfterWindow(t *testing.T) {
	b := New(2, 50*time.Millisecond)

	b.RecordFailure("stripe")
	b.RecordFailure("stripe")
	require.False(t, b.Allow("stripe"))

	time.Sleep(60 * time.Millisecond)

	assert.True(t, b.Allow("stripe"), "one probe goes through after the window")
	assert.Equal(t, StateHalfOpen, b.State("stripe"))
	assert.False(t, b.Allow("stripe"), "only one probe at a time")
}

func TestProbeSuccessCloses(t *testing.T) {
	b := New(2, 50*time.Millisecond)

	b.RecordFailure("stripe")
	b.RecordFailure("stripe")
	time.Sleep(60 * time.Millisecond)
	require.True(t, b.Allow("stripe"))

	b.RecordSuccess("stripe")
	assert.Equal(t, StateClosed, b.State("stripe"))
	assert.True(t, b.Allow("stripe"))
}

func TestProbeFailureReopens(t *testing.T) {
	b := New(2, 50*time.Millisecond)

	b.RecordFailure("stripe")
	b.RecordFailure("stripe")
	time.Sleep(60 * time.Millisecond)
	require.True(t, b.Allow("stripe"))

	b.RecordFailure("stripe")
	assert.Equal(t, StateOpen, b.State("stripe"))
}

func TestSuccessResetsStreak(t *testing.T) {
	b := New(3, 100*time.Millisecond)

	b.RecordFailure("stripe")
	b.RecordFailure("stripe")
	b.RecordSuccess("stripe")

	b.RecordFailure("stripe")
	assert.True(t, b.Allow("stripe"), "streak was reset, one failure must not trip")
}

func TestKeysAreIndependent(t *testing.T) {
	b := New(2, 100*time.Millisecond)

	b.RecordFailure("update_subscription")
	b.RecordFailure("update_subscription")

	assert.False(t, b.Allow("update_subscription"))
	assert.True(t, b.Allow("create_customer"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(99).String())
}
