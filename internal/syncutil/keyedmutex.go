// Package syncutil provides keyed locking primitives.
package syncutil

import (
	"context"
	"hash/fnv"
)

const keyedShards = 128

// KeyedMutex serializes work per string key using a fixed pool of
// channel-based locks, so memory stays bounded no matter how many keys
// are seen. Keys hashing to the same shard occasionally contend with
// each other; callers waiting on a lock can bail out via their context.
//
// The billing service uses one of these keyed by organization ID so the
// fetch-compute-update sequence of a subscription sync never interleaves
// for the same org.
type KeyedMutex struct {
	shards [keyedShards]chan struct{}
}

// NewKeyedMutex creates a KeyedMutex with all shards unlocked.
func NewKeyedMutex() *KeyedMutex {
	m := &KeyedMutex{}
	for i := range m.shards {
		m.shards[i] = make(chan struct{}, 1)
		m.shards[i] <- struct{}{}
	}
	return m
}

// LockContext acquires the lock for key, or gives up when ctx is done.
// On success it returns an unlock function the caller must invoke.
func (m *KeyedMutex) LockContext(ctx context.Context, key string) (func(), error) {
	shard := m.shards[m.idx(key)]
	select {
	case <-shard:
		return func() { shard <- struct{}{} }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *KeyedMutex) idx(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % keyedShards
}
