package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/dreamjournal/internal/client/storage"
)

// Клиент держит не больше одной сессии
var keyCurrentSession = []byte("current")

// SaveAuth replaces the stored session
func (s *Storage) SaveAuth(ctx context.Context, auth *storage.AuthData) error {
	data, err := json.Marshal(auth)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	return s.update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketAuth)
		if err != nil {
			return err
		}
		if err := b.Put(keyCurrentSession, data); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		return nil
	})
}

// GetAuth returns the stored session or storage.ErrAuthNotFound
func (s *Storage) GetAuth(ctx context.Context) (*storage.AuthData, error) {
	var raw []byte
	err := s.view(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketAuth)
		if err != nil {
			return err
		}
		// Значение валидно только внутри транзакции
		if v := b.Get(keyCurrentSession); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, storage.ErrAuthNotFound
	}

	auth := &storage.AuthData{}
	if err := json.Unmarshal(raw, auth); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return auth, nil
}

// DeleteAuth forgets the stored session. A missing session is not an error.
func (s *Storage) DeleteAuth(ctx context.Context) error {
	return s.update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketAuth)
		if err != nil {
			return err
		}
		return b.Delete(keyCurrentSession)
	})
}
