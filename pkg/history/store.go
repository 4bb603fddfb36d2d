package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	bolt "go.etcd.io/bbolt"
)

const historyBucket = "history"

// ErrNotFound is returned for unknown transaction hashes
var ErrNotFound = errors.New("history entry not found")

// Store persists history entries in bbolt, keyed by transaction hash
type Store struct {
	db *bolt.DB
}

// NewStore creates the history bucket if needed
func NewStore(db *bolt.DB) (*Store, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(historyBucket))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create history bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Add records a new entry
func (s *Store) Add(entry Entry) error {
	if entry.Hash == "" {
		return fmt.Errorf("entry has no hash")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(historyBucket))
		if b.Get([]byte(entry.Hash)) != nil {
			return fmt.Errorf("entry '%s' already exists", entry.Hash)
		}
		return b.Put([]byte(entry.Hash), data)
	})
}

// Get retrieves an entry by hash
func (s *Store) Get(hash string) (*Entry, error) {
	var entry Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(historyBucket)).Get([]byte(hash))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, hash)
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Update applies fn to a stored entry atomically and re-derives its status
func (s *Store) Update(hash string, fn func(*Entry)) (*Entry, error) {
	var entry Entry
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(historyBucket))
		data := b.Get([]byte(hash))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, hash)
		}
		if err := json.Unmarshal(data, &entry); err != nil {
			return fmt.Errorf("failed to unmarshal entry: %w", err)
		}

		fn(&entry)
		entry.resolve()
		entry.UpdatedAt = time.Now()

		updated, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal entry: %w", err)
		}
		return b.Put([]byte(hash), updated)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Store) filter(keep func(Entry) bool) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(historyBucket)).ForEach(func(_, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("failed to unmarshal entry: %w", err)
			}
			if keep(entry) {
				entries = append(entries, entry)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	// Newest first
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

// List returns the entries of an address, newest first
func (s *Store) List(address common.Address) ([]Entry, error) {
	return s.filter(func(e Entry) bool { return e.BelongsTo(address) })
}

// Ongoing returns every entry that has not settled yet
func (s *Store) Ongoing() ([]Entry, error) {
	return s.filter(func(e Entry) bool { return e.Status == StatusOngoing })
}

// Clear removes the entries of an address and returns how many were removed
func (s *Store) Clear(address common.Address) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(historyBucket))

		var keys [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			if entry.BelongsTo(address) {
				keys = append(keys, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	return removed, nil
}
