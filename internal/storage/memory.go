package storage

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Memory is the in-process backend. A single mutex is the atomic
// primitive that makes Incr linearizable; expired entries are reaped
// lazily on access and periodically by a janitor goroutine.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memEntry
	done    chan struct{}
	once    sync.Once
}

type memEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

const memoryCleanupEvery = 2 * time.Minute

// NewMemory creates an in-memory store and starts its janitor.
func NewMemory() *Memory {
	m := &Memory{
		entries: make(map[string]memEntry),
		done:    make(chan struct{}),
	}
	go m.janitor()
	return m
}

func (m *Memory) janitor() {
	t := time.NewTicker(memoryCleanupEvery)
	defer t.Stop()
	for {
		select {
		case <-m.done:
			return
		case now := <-t.C:
			m.mu.Lock()
			for k, e := range m.entries {
				if e.expired(now) {
					delete(m.entries, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || e.expired(time.Now()) {
		delete(m.entries, key)
		return nil, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memEntry{value: make([]byte, len(value))}
	copy(e.value, value)
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Incr(_ context.Context, key string, amount int64, ttl time.Duration) (int64, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || e.expired(now) {
		// Fresh counter with a fresh TTL.
		e = memEntry{value: []byte(strconv.FormatInt(amount, 10))}
		if ttl > 0 {
			e.expiresAt = now.Add(ttl)
		}
		m.entries[key] = e
		return amount, nil
	}

	n, err := strconv.ParseInt(string(e.value), 10, 64)
	if err != nil {
		return 0, errNotCounter(key)
	}
	n += amount
	e.value = []byte(strconv.FormatInt(n, 10))
	m.entries[key] = e
	return n, nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	if e.expired(time.Now()) {
		delete(m.entries, key)
		return false, nil
	}
	return true, nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string]memEntry)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}
