package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	keyLastRefresh = "last_refresh"
)

// SaveLastRefresh saves the time of the last successful journal refresh
func (s *Storage) SaveLastRefresh(ctx context.Context, at time.Time) error {
	return s.update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketMetadata)
		if err != nil {
			return err
		}

		// Храним unix nano в big endian
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(at.UnixNano()))

		if err := b.Put([]byte(keyLastRefresh), buf); err != nil {
			return fmt.Errorf("failed to save last refresh time: %w", err)
		}

		return nil
	})
}

// GetLastRefresh retrieves the time of the last successful journal refresh.
// Returns zero time if the journal was never loaded.
func (s *Storage) GetLastRefresh(ctx context.Context) (time.Time, error) {
	var at time.Time

	err := s.view(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketMetadata)
		if err != nil {
			return err
		}

		buf := b.Get([]byte(keyLastRefresh))
		if len(buf) != 8 {
			return nil
		}

		at = time.Unix(0, int64(binary.BigEndian.Uint64(buf)))
		return nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last refresh time: %w", err)
	}

	return at, nil
}
