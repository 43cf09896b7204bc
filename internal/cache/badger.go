package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// envelopeHeader prefixes every stored value with the creation time so
// durable entries can be aged without a secondary index.
const envelopeHeader = 8

// BadgerStore is the durable cache tier backed by an embedded Badger
// database. Entries expire through Badger's native TTL.
type BadgerStore struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenBadger opens (or creates) a Badger database at dir. ttl bounds the
// lifetime of every entry; zero means entries never expire.
func OpenBadger(dir string, ttl time.Duration) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open durable cache at %s: %w", dir, err)
	}
	return &BadgerStore{db: db, ttl: ttl}, nil
}

// Get returns the payload for key, or ErrNotFound.
func (s *BadgerStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var payload []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) < envelopeHeader {
				return fmt.Errorf("durable entry for %s is truncated", key)
			}
			payload = append([]byte(nil), val[envelopeHeader:]...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("durable cache read failed: %w", err)
	}
	return payload, nil
}

// Set stores the payload under key, stamping the creation time.
func (s *BadgerStore) Set(ctx context.Context, key string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	val := make([]byte, envelopeHeader+len(payload))
	binary.BigEndian.PutUint64(val, uint64(time.Now().UnixNano()))
	copy(val[envelopeHeader:], payload)

	err := s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), val)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("durable cache write failed: %w", err)
	}
	return nil
}

// CreatedAt reports when the entry for key was written.
func (s *BadgerStore) CreatedAt(ctx context.Context, key string) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}

	var created time.Time
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) < envelopeHeader {
				return fmt.Errorf("durable entry for %s is truncated", key)
			}
			created = time.Unix(0, int64(binary.BigEndian.Uint64(val)))
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("durable cache read failed: %w", err)
	}
	return created, nil
}

// Close flushes and closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
