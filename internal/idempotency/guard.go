package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Store is the key-value surface the guard needs.
type Store interface {
	Key(scope, id string) string
	Get(ctx context.Context, key string) (string, bool, error)
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

var (
	// ErrInFlight is returned while the first request with a key is still running.
	ErrInFlight = errors.New("idempotency: request with this key is in progress")

	// ErrKeyReused is returned when a key is replayed with a different request body.
	ErrKeyReused = errors.New("idempotency: key reused with a different request")
)

const (
	statePending   = "pending"
	stateCompleted = "completed"
)

// Record is what is stored under an idempotency key.
type Record struct {
	State       string `json:"state"`
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Guard claims idempotency keys and remembers completed responses.
type Guard struct {
	store Store
	ttl   time.Duration
}

// NewGuard creates a guard that keeps keys for ttl.
func NewGuard(store Store, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	return &Guard{store: store, ttl: ttl}, nil
}

// Key builds the storage key for scope and client key.
func (g *Guard) Key(scope, id string) string {
	return g.store.Key(scope, id)
}

// Begin claims key for a request. It returns (nil, nil) when the caller owns
// the key, the stored record when an earlier request already completed,
// ErrInFlight while that request is still running and ErrKeyReused when the
// body differs.
func (g *Guard) Begin(ctx context.Context, key, requestHash string) (*Record, error) {
	pending, err := json.Marshal(Record{State: statePending, RequestHash: requestHash})
	if err != nil {
		return nil, fmt.Errorf("marshal idempotency record: %w", err)
	}

	claimed, err := g.store.SetNX(ctx, key, string(pending), g.ttl)
	if err != nil {
		return nil, fmt.Errorf("set idempotency key: %w", err)
	}
	if claimed {
		return nil, nil
	}

	stored, found, err := g.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	if !found {
		// Expired or released between SetNX and Get; the caller may retry.
		return nil, ErrInFlight
	}

	var record Record
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}

	if record.RequestHash != requestHash {
		return nil, ErrKeyReused
	}
	if record.State != stateCompleted {
		return nil, ErrInFlight
	}

	return &record, nil
}

// Complete stores the final response for key.
func (g *Guard) Complete(ctx context.Context, key, requestHash string, status int, contentType string, body []byte) error {
	payload, err := json.Marshal(Record{
		State:       stateCompleted,
		RequestHash: requestHash,
		Status:      status,
		ContentType: contentType,
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("marshal idempotency record: %w", err)
	}
	if err := g.store.Set(ctx, key, string(payload), g.ttl); err != nil {
		return fmt.Errorf("persist idempotency record: %w", err)
	}
	return nil
}

// Release forgets key so the client can retry.
func (g *Guard) Release(ctx context.Context, key string) error {
	if err := g.store.Del(ctx, key); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
