package health

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyRegistryIsHealthy(t *testing.T) {
	r := NewRegistry()
	healthy, statuses := r.CheckAll(context.Background())
	assert.True(t, healthy)
	assert.Empty(t, statuses)
}

func TestAllHealthy(t *testing.T) {
	r := NewRegistry()
	r.Register(func(_ context.Context) Status {
		return Status{Name: "database", Healthy: true}
	})
	r.Register(func(_ context.Context) Status {
		return Status{Name: "stripe", Healthy: true, Detail: "configured"}
	})

	healthy, statuses := r.CheckAll(context.Background())
	assert.True(t, healthy)
	require.Len(t, statuses, 2)
	assert.Equal(t, "database", statuses[0].Name)
	assert.Equal(t, "stripe", statuses[1].Name)
}

func TestOneUnhealthyDegradesAggregate(t *testing.T) {
	r := NewRegistry()
	r.Register(func(_ context.Context) Status {
		return Status{Name: "database", Healthy: true}
	})
	r.Register(func(_ context.Context) Status {
		return Status{Name: "stripe", Healthy: false, Detail: "missing secret key"}
	})

	healthy, statuses := r.CheckAll(context.Background())
	assert.False(t, healthy)
	require.Len(t, statuses, 2)
	assert.Equal(t, "missing secret key", statuses[1].Detail)
}

func TestConcurrentRegisterAndCheck(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Register(func(_ context.Context) Status {
				return Status{Name: "checker", Healthy: true}
			})
		}()
	}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.CheckAll(context.Background())
		}()
	}
	wg.Wait()
}
