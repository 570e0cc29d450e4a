package boltdb

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/dreamjournal/internal/client/storage"
)

var (
	// BoltDB bucket names
	bucketAuth     = []byte("auth")
	bucketMetadata = []byte("metadata")
)

// Storage represents BoltDB storage implementation for client
type Storage struct {
	db *bbolt.DB
}

var (
	_ storage.AuthStorage     = (*Storage)(nil)
	_ storage.MetadataStorage = (*Storage)(nil)
)

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string) (*Storage, error) {
	// Второй процесс с той же базой ждет блокировку не дольше секунды
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	s := &Storage{db: db}

	// Инициализируем buckets
	if err := s.initBuckets(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketAuth, bucketMetadata} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

func (s *Storage) update(fn func(tx *bbolt.Tx) error) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	return s.db.Update(fn)
}

func (s *Storage) view(fn func(tx *bbolt.Tx) error) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	return s.db.View(fn)
}

// bucket возвращает bucket или ошибку, если база создана без него
func bucket(tx *bbolt.Tx, name []byte) (*bbolt.Bucket, error) {
	b := tx.Bucket(name)
	if b == nil {
		return nil, fmt.Errorf("%s bucket not found", name)
	}
	return b, nil
}
