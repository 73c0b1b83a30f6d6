// Package cache provides a persistent evaluation-score cache backed by
// BadgerDB, keyed by the position's FEN string.
package cache

import (
	"encoding/binary"
	"math"

	"github.com/dgraph-io/badger/v4"
)

// Cache wraps BadgerDB for persistent score storage.
type Cache struct {
	db *badger.DB
}

// Open opens (or creates) a cache in dir. An empty dir uses the
// platform-specific default directory.
func Open(dir string) (*Cache, error) {
	if dir == "" {
		var err error
		dir, err = DefaultDir()
		if err != nil {
			return nil, err
		}
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // Disable logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Cache{db: db}, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Get returns the cached score for a FEN, and whether it was present.
func (c *Cache) Get(fen string) (float64, bool, error) {
	var score float64
	found := false

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(fen))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return nil // Stale or foreign entry, treat as missing
			}
			score = math.Float64frombits(binary.LittleEndian.Uint64(val))
			found = true
			return nil
		})
	})

	return score, found, err
}

// Put stores the score for a FEN.
func (c *Cache) Put(fen string, score float64) error {
	var val [8]byte
	binary.LittleEndian.PutUint64(val[:], math.Float64bits(score))

	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(fen), val[:])
	})
}
