package sdk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// SessionStore is the single authoritative holder of the current Session:
// an in-memory value backed by a durable SessionStorage.
//
// The credential and the role set live in one immutable value swapped
// atomically, so readers never observe one without the other.
type SessionStore struct {
	storage SessionStorage
	logger  *slog.Logger

	mu      sync.Mutex // serializes writes to memory and storage
	current atomic.Pointer[Session]

	changes notifier[*Session]
}

// StoreOption configures a SessionStore.
type StoreOption func(*SessionStore)

// WithStoreLogger sets the logger used for storage warnings.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *SessionStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSessionStore creates a store over storage and hydrates it from the
// durable copy. A malformed durable copy yields an empty store.
func NewSessionStore(ctx context.Context, storage SessionStorage, opts ...StoreOption) (*SessionStore, error) {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	s := &SessionStore{
		storage: storage,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Read returns a copy of the current Session, or nil when there is none.
func (s *SessionStore) Read() *Session {
	return s.current.Load().Clone()
}

// Write replaces the stored Session. The durable copy is written first;
// when that fails nothing changes.
func (s *SessionStore) Write(ctx context.Context, session *Session) error {
	err := s.write(ctx, session)
	s.changes.drain()
	return err
}

// Clear removes the Session. Memory is cleared even if the durable clear fails.
func (s *SessionStore) Clear(ctx context.Context) error {
	err := s.clear(ctx)
	s.changes.drain()
	return err
}

// Subscribe registers fn to observe every change of the stored Session
// (nil after a clear). It returns a function that removes the subscription.
func (s *SessionStore) Subscribe(fn func(*Session)) func() {
	return s.changes.subscribe(fn)
}

// Reload re-reads the durable copy, picking up a change made by another
// process sharing the same storage. Storage errors are returned; malformed
// data is treated as no session.
func (s *SessionStore) Reload(ctx context.Context) error {
	_, err := s.reload(ctx)
	s.changes.drain()
	return err
}

func (s *SessionStore) reload(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots, err := s.storage.Load(ctx)
	if err != nil && !errors.Is(err, ErrMalformedSession) {
		return false, fmt.Errorf("load session: %w", err)
	}
	var next *Session
	if err == nil {
		next, err = DecodeSlots(slots)
	}
	if err != nil {
		s.logger.Warn("discarding stored session", slog.Any("error", err))
		next = nil
	}

	prev := s.current.Swap(next.Clone())
	if prev.Equivalent(next) {
		return false, nil
	}
	s.changes.enqueue(next.Clone())
	return true, nil
}

// write stores session without delivering notifications; callers drain.
func (s *SessionStore) write(ctx context.Context, session *Session) error {
	if !session.Valid() {
		return errors.New("write session: credential and roles are required")
	}
	slots, err := EncodeSlots(session)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Save(ctx, slots); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.current.Store(session.Clone())
	s.changes.enqueue(session.Clone())
	return nil
}

// clear removes the session without delivering notifications; callers drain.
func (s *SessionStore) clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	had := s.current.Swap(nil) != nil
	if had {
		s.changes.enqueue(nil)
	}
	if err := s.storage.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
