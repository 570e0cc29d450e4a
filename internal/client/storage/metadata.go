package storage

import (
	"context"
	"time"
)

// MetadataStorage defines interface for storing client metadata
type MetadataStorage interface {
	// SaveLastRefresh сохраняет время последней успешной загрузки журнала
	SaveLastRefresh(ctx context.Context, at time.Time) error

	// GetLastRefresh возвращает время последней успешной загрузки журнала.
	// Возвращает нулевое время, если загрузок еще не было.
	GetLastRefresh(ctx context.Context) (time.Time, error)
}
