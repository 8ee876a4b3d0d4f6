package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// Badger is the embedded-file backend. Badger entries carry native TTLs,
// and Incr runs inside a serializable transaction, retried on conflict,
// which gives the linearizable counter without external coordination.
type Badger struct {
	db     *badger.DB
	prefix []byte
}

const badgerIncrRetries = 16

// OpenBadger opens (or creates) a Badger database at dir.
func OpenBadger(dir, namespace string) (*Badger, error) {
	if dir == "" {
		dir = "webguard-data"
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger database: %w", err)
	}
	return &Badger{db: db, prefix: []byte(namespace + ":")}, nil
}

func (b *Badger) key(k string) []byte {
	return append(append([]byte{}, b.prefix...), k...)
}

func (b *Badger) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("badger get", err)
	}
	return out, nil
}

func (b *Badger) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(b.key(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return unavailable("badger set", err)
	}
	return nil
}

func (b *Badger) Delete(_ context.Context, key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(b.key(key))
	})
	if err != nil {
		return unavailable("badger delete", err)
	}
	return nil
}

func (b *Badger) Incr(_ context.Context, key string, amount int64, ttl time.Duration) (int64, error) {
	var n int64
	update := func(txn *badger.Txn) error {
		item, err := txn.Get(b.key(key))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			n = amount
			e := badger.NewEntry(b.key(key), []byte(strconv.FormatInt(n, 10)))
			if ttl > 0 {
				e = e.WithTTL(ttl)
			}
			return txn.SetEntry(e)
		case err != nil:
			return err
		}

		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		cur, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return errNotCounter(key)
		}
		n = cur + amount

		e := badger.NewEntry(b.key(key), []byte(strconv.FormatInt(n, 10)))
		// Preserve the remaining TTL of the live counter.
		if exp := item.ExpiresAt(); exp > 0 {
			remaining := time.Until(time.Unix(int64(exp), 0))
			if remaining <= 0 {
				remaining = time.Millisecond
			}
			e = e.WithTTL(remaining)
		}
		return txn.SetEntry(e)
	}

	var err error
	for i := 0; i < badgerIncrRetries; i++ {
		err = b.db.Update(update)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	if err != nil {
		return 0, unavailable("badger incr", err)
	}
	return n, nil
}

func (b *Badger) Exists(_ context.Context, key string) (bool, error) {
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(b.key(key))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, unavailable("badger exists", err)
	}
	return true, nil
}

func (b *Badger) Clear(_ context.Context) error {
	err := b.db.DropPrefix(b.prefix)
	if err != nil {
		return unavailable("badger clear", err)
	}
	return nil
}

func (b *Badger) Close() error { return b.db.Close() }
