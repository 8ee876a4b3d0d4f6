package storage

import (
	"context"
	"sync"
	"testing"
	"time"
)

// runContract exercises the Storage invariants every backend must
// satisfy. Backend tests call it with a factory for a fresh, empty
// store; factories for networked backends can t.Skip when the backend
// is not reachable.
func runContract(t *testing.T, open func(t *testing.T) Storage) {
	ctx := context.Background()

	t.Run("GetSet", func(t *testing.T) {
		s := open(t)
		if err := s.Set(ctx, "k", []byte("v"), 0); err != nil {
			t.Fatalf("set: %v", err)
		}
		got, err := s.Get(ctx, "k")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if string(got) != "v" {
			t.Errorf("expected %q, got %q", "v", got)
		}

		got, err = s.Get(ctx, "missing")
		if err != nil {
			t.Fatalf("get missing: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil for missing key, got %q", got)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		s := open(t)
		_ = s.Set(ctx, "k", []byte("v"), 0)
		if err := s.Delete(ctx, "k"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if got, _ := s.Get(ctx, "k"); got != nil {
			t.Errorf("expected key gone after delete, got %q", got)
		}
		// Deleting an absent key must not error.
		if err := s.Delete(ctx, "missing"); err != nil {
			t.Errorf("delete missing: %v", err)
		}
	})

	t.Run("Exists", func(t *testing.T) {
		s := open(t)
		_ = s.Set(ctx, "k", []byte("v"), 0)
		ok, err := s.Exists(ctx, "k")
		if err != nil {
			t.Fatalf("exists: %v", err)
		}
		if !ok {
			t.Error("expected key to exist")
		}
		ok, _ = s.Exists(ctx, "missing")
		if ok {
			t.Error("expected missing key to not exist")
		}
	})

	t.Run("Incr", func(t *testing.T) {
		s := open(t)
		n, err := s.Incr(ctx, "counter", 1, 0)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1, got %d", n)
		}
		if n, _ = s.Incr(ctx, "counter", 1, 0); n != 2 {
			t.Errorf("expected 2, got %d", n)
		}
		if n, _ = s.Incr(ctx, "counter", 5, 0); n != 7 {
			t.Errorf("expected 7, got %d", n)
		}

		_ = s.Set(ctx, "text", []byte("not_a_number"), 0)
		if _, err := s.Incr(ctx, "text", 1, 0); err == nil {
			t.Error("expected error incrementing a non-numeric value")
		}
	})

	t.Run("TTL", func(t *testing.T) {
		s := open(t)
		if err := s.Set(ctx, "k", []byte("v"), 100*time.Millisecond); err != nil {
			t.Fatalf("set: %v", err)
		}
		if got, _ := s.Get(ctx, "k"); string(got) != "v" {
			t.Fatalf("expected value before expiry, got %q", got)
		}

		time.Sleep(150 * time.Millisecond)

		if got, _ := s.Get(ctx, "k"); got != nil {
			t.Errorf("expected key absent after TTL, got %q", got)
		}
		if ok, _ := s.Exists(ctx, "k"); ok {
			t.Error("expected exists=false after TTL")
		}
	})

	t.Run("IncrExpiredRestarts", func(t *testing.T) {
		s := open(t)
		if _, err := s.Incr(ctx, "counter", 3, 50*time.Millisecond); err != nil {
			t.Fatalf("incr: %v", err)
		}
		time.Sleep(80 * time.Millisecond)

		// Incrementing an expired counter restarts it at the amount.
		n, err := s.Incr(ctx, "counter", 1, 50*time.Millisecond)
		if err != nil {
			t.Fatalf("incr after expiry: %v", err)
		}
		if n != 1 {
			t.Errorf("expected counter restart at 1, got %d", n)
		}
	})

	t.Run("IncrConcurrent", func(t *testing.T) {
		s := open(t)
		const workers = 64
		var wg sync.WaitGroup
		wg.Add(workers)
		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()
				if _, err := s.Incr(ctx, "counter", 1, time.Minute); err != nil {
					t.Errorf("incr: %v", err)
				}
			}()
		}
		wg.Wait()

		n, err := s.Incr(ctx, "counter", 0, time.Minute)
		if err != nil {
			t.Fatalf("final read: %v", err)
		}
		if n != workers {
			t.Errorf("expected %d after %d concurrent increments, got %d", workers, workers, n)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		s := open(t)
		_ = s.Set(ctx, "a", []byte("1"), 0)
		_ = s.Set(ctx, "b", []byte("2"), 0)
		if err := s.Clear(ctx); err != nil {
			t.Fatalf("clear: %v", err)
		}
		if got, _ := s.Get(ctx, "a"); got != nil {
			t.Error("expected store empty after clear")
		}
	})

	t.Run("BanHelpers", func(t *testing.T) {
		s := open(t)
		rec, err := GetBan(ctx, s, "10.0.0.9")
		if err != nil {
			t.Fatalf("get ban: %v", err)
		}
		if rec != nil {
			t.Fatal("expected no ban record")
		}

		if err := SetBan(ctx, s, "10.0.0.9", "manual ban", time.Minute); err != nil {
			t.Fatalf("set ban: %v", err)
		}
		rec, err = GetBan(ctx, s, "10.0.0.9")
		if err != nil {
			t.Fatalf("get ban: %v", err)
		}
		if rec == nil {
			t.Fatal("expected active ban record")
		}
		if rec.Reason != "manual ban" {
			t.Errorf("expected reason %q, got %q", "manual ban", rec.Reason)
		}

		if err := RemoveBan(ctx, s, "10.0.0.9"); err != nil {
			t.Fatalf("remove ban: %v", err)
		}
		if rec, _ = GetBan(ctx, s, "10.0.0.9"); rec != nil {
			t.Error("expected ban gone after unban")
		}
	})

	t.Run("BanRecordExpiredTimestamp", func(t *testing.T) {
		s := open(t)
		// A ban whose timestamp has passed is treated as absent even if
		// the backend has not reaped the key yet.
		if err := SetBan(ctx, s, "10.0.0.9", "short", 30*time.Millisecond); err != nil {
			t.Fatalf("set ban: %v", err)
		}
		time.Sleep(60 * time.Millisecond)
		rec, err := GetBan(ctx, s, "10.0.0.9")
		if err != nil {
			t.Fatalf("get ban: %v", err)
		}
		if rec != nil {
			t.Errorf("expected expired ban to read as absent, got %+v", rec)
		}
	})
}
