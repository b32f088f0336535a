package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

type memoryStore struct {
	entries    *lru.Cache[string, memoryEntry]
	defaultTTL time.Duration
	now        func() time.Time
}

// NewMemoryStore builds a size-bounded in-process store. Entries expire lazily on read.
func NewMemoryStore(size int, defaultTTL time.Duration) (Store, error) {
	if size <= 0 {
		size = 10000
	}
	entries, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &memoryStore{entries: entries, defaultTTL: defaultTTL, now: time.Now}, nil
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	entry, ok := s.entries.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	if entry.expired(s.now()) {
		s.entries.Remove(key)
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), entry.value...), nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errors.New("cache key is required")
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.entries.Add(key, entry)
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.entries.Remove(key)
	return nil
}
