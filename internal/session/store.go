package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Store.Get when no record exists for the id.
var ErrNotFound = errors.New("session not found")

// Store persists whole sessions by user id. Implementations must be safe for concurrent use;
// records for different ids never interact.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// Load returns the stored session, or a new one when none exists.
func Load(ctx context.Context, store Store, id string) (*Session, error) {
	s, err := store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return New(id), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	return s, nil
}

// Update runs one read-modify-write cycle for id while holding the id's lock, so concurrent
// turns from the same user cannot lose each other's writes. fn must not block on slow I/O.
// If fn returns an error nothing is saved.
func Update(ctx context.Context, store Store, locker *Locker, id string, fn func(*Session) error) (*Session, error) {
	unlock := locker.Lock(id)
	defer unlock()

	s, err := Load(ctx, store, id)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	s.UpdatedAt = time.Now().UTC()
	if err := store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session %s: %w", id, err)
	}
	return s, nil
}
