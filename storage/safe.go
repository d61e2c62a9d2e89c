package storage

import (
	"context"
	"fmt"

	"github.com/pitabwire/util"
)

type safeStore struct {
	name    string
	prefix  string
	backend Backend
}

// NewSafe wraps backend so that no operation ever fails. A nil backend
// behaves as storage that is permanently unavailable.
func NewSafe(backend Backend, opts ...Option) Store {
	o := NewOptions(opts...)
	return &safeStore{
		name:    o.Name,
		prefix:  o.KeyPrefix,
		backend: backend,
	}
}

func (s *safeStore) recoverPanic(ctx context.Context, op string, key string) {
	if r := recover(); r != nil {
		s.logFailure(ctx, op, key, fmt.Errorf("backend panic: %v", r))
	}
}

func (s *safeStore) logFailure(ctx context.Context, op string, key string, err error) {
	util.Log(ctx).
		WithError(err).
		WithField("store", s.name).
		WithField("op", op).
		WithField("key", key).
		Warn("storage unavailable, continuing without it")
}

func (s *safeStore) Get(ctx context.Context, key string) (value string, found bool) {
	if s.backend == nil {
		return "", false
	}
	defer s.recoverPanic(ctx, "get", key)

	value, found, err := s.backend.Get(ctx, s.prefix+key)
	if err != nil {
		s.logFailure(ctx, "get", key, err)
		return "", false
	}
	return value, found
}

func (s *safeStore) Set(ctx context.Context, key string, value string) {
	if s.backend == nil {
		return
	}
	defer s.recoverPanic(ctx, "set", key)

	if err := s.backend.Set(ctx, s.prefix+key, value); err != nil {
		s.logFailure(ctx, "set", key, err)
	}
}

func (s *safeStore) Remove(ctx context.Context, key string) {
	if s.backend == nil {
		return
	}
	defer s.recoverPanic(ctx, "remove", key)

	if err := s.backend.Delete(ctx, s.prefix+key); err != nil {
		s.logFailure(ctx, "remove", key, err)
	}
}

func (s *safeStore) Keys(ctx context.Context, prefix string) (keys []string) {
	if s.backend == nil {
		return nil
	}
	defer s.recoverPanic(ctx, "keys", prefix)

	raw, err := s.backend.Keys(ctx, s.prefix+prefix)
	if err != nil {
		s.logFailure(ctx, "keys", prefix, err)
		return nil
	}

	keys = make([]string, 0, len(raw))
	for _, k := range raw {
		keys = append(keys, k[len(s.prefix):])
	}
	return keys
}

func (s *safeStore) RemoveWithPrefix(ctx context.Context, prefix string) int {
	keys := s.Keys(ctx, prefix)
	for _, key := range keys {
		s.Remove(ctx, key)
	}
	return len(keys)
}
