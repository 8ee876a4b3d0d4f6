package storage

import (
	"context"
	"testing"
	"time"
)

func TestMemoryContract(t *testing.T) {
	runContract(t, func(t *testing.T) Storage {
		m := NewMemory()
		t.Cleanup(func() { _ = m.Close() })
		return m
	})
}

func TestMemoryCloseIdempotent(t *testing.T) {
	m := NewMemory()
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestMemorySetOverwritesTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	t.Cleanup(func() { _ = m.Close() })

	// A re-set without TTL clears the previous expiry.
	if err := m.Set(ctx, "k", []byte("v1"), 50*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := m.Set(ctx, "k", []byte("v2"), 0); err != nil {
		t.Fatalf("re-set: %v", err)
	}
	time.Sleep(80 * time.Millisecond)
	got, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("expected re-set value to survive, got %q", got)
	}
}
