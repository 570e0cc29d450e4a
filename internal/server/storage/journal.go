package storage

import (
	"context"

	"github.com/iudanet/dreamjournal/internal/models"
)

// JournalStorage is the document store for dream entries and their comments.
type JournalStorage interface {
	// ListEntries returns every entry ordered by creation time (id breaks ties),
	// each with its comments resolved in the same order.
	// Returns empty slice if the journal is empty
	ListEntries(ctx context.Context) ([]models.Entry, error)

	// GetEntry retrieves a single entry with its comments
	// Returns ErrEntryNotFound if entry doesn't exist
	GetEntry(ctx context.Context, id string) (*models.Entry, error)

	// CreateEntry inserts a new entry. ID and CreatedAt must be set by the caller.
	CreateEntry(ctx context.Context, entry *models.Entry) error

	// DeleteEntry removes the entry and, through the cascade, all its comments.
	// Deleting an unknown id is not an error.
	DeleteEntry(ctx context.Context, id string) error

	// CreateComment inserts a comment under comment.EntryID
	// Returns ErrEntryNotFound if the parent entry doesn't exist
	CreateComment(ctx context.Context, comment *models.Comment) error

	// DeleteComment removes a comment of the given entry.
	// Deleting an unknown id is not an error.
	DeleteComment(ctx context.Context, entryID, commentID string) error
}

// Storage groups everything the server needs from its persistence layer.
type Storage interface {
	UserStorage
	TokenStorage
	JournalStorage

	// Ping checks that the underlying database is reachable
	Ping(ctx context.Context) error
}
