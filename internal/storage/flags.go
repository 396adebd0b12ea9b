// Package storage persists small local flags, the equivalent of the
// browser's local storage for this client.
package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

var ErrClosed = errors.New("storage: closed")

type Flags struct {
	mu sync.RWMutex
	db *badger.DB
}

// OpenFlags opens the flag store under dir. An empty dir keeps the flags in
// memory for the lifetime of the process.
func OpenFlags(dir string) (*Flags, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open flags at %q: %w", dir, err)
	}
	return &Flags{db: db}, nil
}

func (f *Flags) Get(key string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.db == nil {
		return "", false, ErrClosed
	}

	var value []byte
	err := f.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get flag %s: %w", key, err)
	}
	return string(value), true, nil
}

func (f *Flags) Set(key, value string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.db == nil {
		return ErrClosed
	}
	if err := f.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	}); err != nil {
		return fmt.Errorf("set flag %s: %w", key, err)
	}
	return nil
}

func (f *Flags) Delete(key string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.db == nil {
		return ErrClosed
	}
	return f.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Close is safe to call more than once.
func (f *Flags) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.db == nil {
		return nil
	}
	err := f.db.Close()
	f.db = nil
	return err
}
