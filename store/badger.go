package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerKV is a KV backed by an embedded Badger database: the native
// analogue of the browser storage the format was designed around (durable,
// local, synchronous).
type BadgerKV struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a Badger database in dir.
func OpenBadger(dir string) (*BadgerKV, error) {
	return openBadger(badger.DefaultOptions(dir))
}

// OpenBadgerInMemory opens a Badger database that lives entirely in RAM.
// Used by tests and ephemeral editor runs.
func OpenBadgerInMemory() (*BadgerKV, error) {
	return openBadger(badger.DefaultOptions("").WithInMemory(true))
}

func openBadger(opts badger.Options) (*BadgerKV, error) {
	// Badger's default logger chats on stderr; the editor owns that stream.
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger: %w", err)
	}
	return &BadgerKV{db: db}, nil
}

func (s *BadgerKV) Get(key string) ([]byte, bool, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: get %q: %w", key, err)
	}
	return val, true, nil
}

func (s *BadgerKV) Set(key string, val []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), val)
	})
	if err != nil {
		return fmt.Errorf("store: set %q: %w", key, err)
	}
	return nil
}

func (s *BadgerKV) Delete(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("store: delete %q: %w", key, err)
	}
	return nil
}

func (s *BadgerKV) Close() error {
	return s.db.Close()
}
