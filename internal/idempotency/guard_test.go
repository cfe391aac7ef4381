package idempotency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}}
}

func (m *memoryStore) Key(scope, id string) string { return "test:" + scope + ":" + id }

func (m *memoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, m.err
}

func (m *memoryStore) SetNX(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value
	return true, nil
}

func (m *memoryStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return m.err
}

func (m *memoryStore) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return m.err
}

func TestNewGuard(t *testing.T) {
	_, err := NewGuard(nil, time.Hour)
	assert.Error(t, err)

	_, err = NewGuard(newMemoryStore(), 0)
	assert.Error(t, err)

	guard, err := NewGuard(newMemoryStore(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "test:create-order:user-1:abc", guard.Key("create-order:user-1", "abc"))
}

func TestGuard_Lifecycle(t *testing.T) {
	ctx := context.Background()
	guard, err := NewGuard(newMemoryStore(), time.Hour)
	require.NoError(t, err)

	key := guard.Key("create-order:user-1", "k1")

	record, err := guard.Begin(ctx, key, "hash-a")
	require.NoError(t, err)
	assert.Nil(t, record, "first request owns the key")

	_, err = guard.Begin(ctx, key, "hash-a")
	assert.ErrorIs(t, err, ErrInFlight)

	_, err = guard.Begin(ctx, key, "hash-b")
	assert.ErrorIs(t, err, ErrKeyReused)

	require.NoError(t, guard.Complete(ctx, key, "hash-a", 201, "application/json", []byte(`{"orderId":"order_1"}`)))

	record, err = guard.Begin(ctx, key, "hash-a")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 201, record.Status)
	assert.Equal(t, "application/json", record.ContentType)
	assert.JSONEq(t, `{"orderId":"order_1"}`, string(record.Body))

	require.NoError(t, guard.Release(ctx, key))
	record, err = guard.Begin(ctx, key, "hash-b")
	require.NoError(t, err)
	assert.Nil(t, record, "released key can be claimed again")
}

func TestGuard_ConcurrentClaims(t *testing.T) {
	ctx := context.Background()
	guard, err := NewGuard(newMemoryStore(), time.Hour)
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		owners  int
		blocked int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record, err := guard.Begin(ctx, "same", "h")
			mu.Lock()
			defer mu.Unlock()
			if err == nil && record == nil {
				owners++
			} else if errors.Is(err, ErrInFlight) {
				blocked++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, owners)
	assert.Equal(t, 9, blocked)
}

func TestGuard_StoreError(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("connection refused")
	guard, err := NewGuard(store, time.Hour)
	require.NoError(t, err)

	_, err = guard.Begin(context.Background(), "k", "h")
	assert.ErrorContains(t, err, "connection refused")
}
