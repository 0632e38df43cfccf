// Package persist is the versioned key/value blob store used to save and
// restore navigator state across runs.
package persist

import (
	"fmt"
	"sync"

	"github.com/kk-code-lab/redit/internal/errs"
	bolt "go.etcd.io/bbolt"
)

// Store is the persistence bridge contract: namespaced blobs with an
// explicit commit point.
type Store interface {
	GetBlob(namespace, key string) ([]byte, error)
	SetBlob(namespace, key string, blob []byte) error
	Commit() error
	Close() error
}

// BoltStore persists blobs in a bbolt database, one bucket per namespace.
type BoltStore struct {
	db *bolt.DB

	mu     sync.Mutex
	staged map[string]map[string][]byte
}

// OpenBolt opens or creates the database at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open state db %s: %w: %v", path, errs.ErrIO, err)
	}
	return &BoltStore{db: db, staged: make(map[string]map[string][]byte)}, nil
}

// GetBlob returns the stored blob, preferring a staged but uncommitted
// value for the same key.
func (s *BoltStore) GetBlob(namespace, key string) ([]byte, error) {
	s.mu.Lock()
	if ns, ok := s.staged[namespace]; ok {
		if blob, ok := ns[key]; ok {
			out := append([]byte(nil), blob...)
			s.mu.Unlock()
			return out, nil
		}
	}
	s.mu.Unlock()

	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(namespace))
		if bucket == nil {
			return errs.ErrNotFound
		}
		blob := bucket.Get([]byte(key))
		if blob == nil {
			return errs.ErrNotFound
		}
		out = append([]byte(nil), blob...)
		return nil
	})
	if err != nil {
		if err == errs.ErrNotFound {
			return nil, fmt.Errorf("blob %s/%s: %w", namespace, key, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("blob %s/%s: %w: %v", namespace, key, errs.ErrIO, err)
	}
	return out, nil
}

// SetBlob stages a blob; it becomes durable on Commit.
func (s *BoltStore) SetBlob(namespace, key string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.staged[namespace]
	if !ok {
		ns = make(map[string][]byte)
		s.staged[namespace] = ns
	}
	ns[key] = append([]byte(nil), blob...)
	return nil
}

// Commit writes all staged blobs in one transaction.
func (s *BoltStore) Commit() error {
	s.mu.Lock()
	staged := s.staged
	s.staged = make(map[string]map[string][]byte)
	s.mu.Unlock()

	if len(staged) == 0 {
		return nil
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		for namespace, ns := range staged {
			bucket, err := tx.CreateBucketIfNotExists([]byte(namespace))
			if err != nil {
				return err
			}
			for key, blob := range ns {
				if err := bucket.Put([]byte(key), blob); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit state db: %w: %v", errs.ErrIO, err)
	}
	return nil
}

// Close releases the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// MemStore is an in-memory Store for tests.
type MemStore struct {
	mu    sync.Mutex
	blobs map[string][]byte

	// FailSet makes SetBlob fail, exercising the log-only persistence path.
	FailSet bool
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[string][]byte)}
}

func (s *MemStore) GetBlob(namespace, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, ok := s.blobs[namespace+"/"+key]
	if !ok {
		return nil, fmt.Errorf("blob %s/%s: %w", namespace, key, errs.ErrNotFound)
	}
	return append([]byte(nil), blob...), nil
}

func (s *MemStore) SetBlob(namespace, key string, blob []byte) error {
	if s.FailSet {
		return fmt.Errorf("blob %s/%s: %w", namespace, key, errs.ErrIO)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[namespace+"/"+key] = append([]byte(nil), blob...)
	return nil
}

func (s *MemStore) Commit() error { return nil }
func (s *MemStore) Close() error  { return nil }

// Corrupt flips one byte of a stored blob at off, for integrity tests.
func (s *MemStore) Corrupt(namespace, key string, off int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob := s.blobs[namespace+"/"+key]
	if off >= 0 && off < len(blob) {
		blob[off] ^= 0xFF
	}
}
