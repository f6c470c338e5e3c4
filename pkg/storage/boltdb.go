package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/cuemby/confsync/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketConfigurations = []byte("configurations")
	bucketMeta           = []byte("meta")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "confsync.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketConfigurations, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Configuration operations
func (s *BoltStore) CreateConfiguration(cfg *types.Configuration) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putConfiguration(tx.Bucket(bucketConfigurations), cfg)
	})
}

func (s *BoltStore) GetConfiguration(id string) (*types.Configuration, error) {
	var cfg types.Configuration
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketConfigurations).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("configuration %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &cfg)
	})
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ListConfigurations returns all configurations ordered by creation time, then ID
func (s *BoltStore) ListConfigurations() ([]*types.Configuration, error) {
	var cfgs []*types.Configuration
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketConfigurations).ForEach(func(k, v []byte) error {
			var cfg types.Configuration
			if err := json.Unmarshal(v, &cfg); err != nil {
				return fmt.Errorf("failed to decode configuration %s: %w", k, err)
			}
			cfgs = append(cfgs, &cfg)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(cfgs, func(i, j int) bool {
		if !cfgs[i].CreatedAt.Equal(cfgs[j].CreatedAt) {
			return cfgs[i].CreatedAt.Before(cfgs[j].CreatedAt)
		}
		return cfgs[i].ID < cfgs[j].ID
	})
	return cfgs, nil
}

func (s *BoltStore) UpdateConfiguration(cfg *types.Configuration) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketConfigurations)
		if b.Get([]byte(cfg.ID)) == nil {
			return fmt.Errorf("configuration %s: %w", cfg.ID, ErrNotFound)
		}
		return putConfiguration(b, cfg)
	})
}

func (s *BoltStore) DeleteConfiguration(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketConfigurations).Delete([]byte(id))
	})
}

func (s *BoltStore) ReplaceConfigurations(cfgs []*types.Configuration) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketConfigurations) != nil {
			if err := tx.DeleteBucket(bucketConfigurations); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucket(bucketConfigurations)
		if err != nil {
			return err
		}
		for _, cfg := range cfgs {
			if err := putConfiguration(b, cfg); err != nil {
				return err
			}
		}
		return nil
	})
}

func putConfiguration(b *bolt.Bucket, cfg *types.Configuration) error {
	if cfg.ID == "" {
		return fmt.Errorf("configuration has no id")
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return b.Put([]byte(cfg.ID), data)
}

// Metadata operations
func (s *BoltStore) GetMeta(key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("meta %s: %w", key, ErrNotFound)
		}
		value = string(data)
		return nil
	})
	return value, err
}

func (s *BoltStore) SetMeta(key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put([]byte(key), []byte(value))
	})
}
