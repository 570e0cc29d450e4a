package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iudanet/dreamjournal/internal/models"
	"github.com/iudanet/dreamjournal/internal/server/storage"
)

const (
	entryColumns   = `id, owner_id, title, description, nickname, created_at`
	commentColumns = `id, dream_id, owner_id, text, nickname, created_at`
)

// ListEntries returns all entries with their comments, oldest first
func (s *Storage) ListEntries(ctx context.Context) ([]models.Entry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	entries, err := queryEntries(ctx, tx,
		`SELECT `+entryColumns+` FROM dreams ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}

	comments, err := queryComments(ctx, tx,
		`SELECT `+commentColumns+` FROM comments ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}

	// Раскладываем комментарии по записям, порядок сохраняется
	index := make(map[string]int, len(entries))
	for i := range entries {
		index[entries[i].ID] = i
	}
	for _, c := range comments {
		if i, ok := index[c.EntryID]; ok {
			entries[i].Comments = append(entries[i].Comments, c)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return entries, nil
}

// GetEntry retrieves a single entry with its comments
func (s *Storage) GetEntry(ctx context.Context, id string) (*models.Entry, error) {
	entries, err := queryEntries(ctx, s.db,
		`SELECT `+entryColumns+` FROM dreams WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, storage.ErrEntryNotFound
	}

	entry := entries[0]
	entry.Comments, err = queryComments(ctx, s.db,
		`SELECT `+commentColumns+` FROM comments WHERE dream_id = ? ORDER BY created_at, id`, id)
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

// CreateEntry inserts a new entry
func (s *Storage) CreateEntry(ctx context.Context, entry *models.Entry) error {
	query := `
		INSERT INTO dreams (` + entryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.OwnerID,
		entry.Title,
		entry.Description,
		entry.Nickname,
		entry.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	return nil
}

// DeleteEntry deletes the entry, comments go with it via ON DELETE CASCADE
func (s *Storage) DeleteEntry(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM dreams WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

// CreateComment inserts a comment after checking that its entry exists
func (s *Storage) CreateComment(ctx context.Context, comment *models.Comment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM dreams WHERE id = ?`, comment.EntryID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrEntryNotFound
		}
		return fmt.Errorf("failed to check entry: %w", err)
	}

	query := `
		INSERT INTO comments (` + commentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		comment.ID,
		comment.EntryID,
		comment.OwnerID,
		comment.Text,
		comment.Nickname,
		comment.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// DeleteComment deletes a comment of the given entry
func (s *Storage) DeleteComment(ctx context.Context, entryID, commentID string) error {
	query := `DELETE FROM comments WHERE id = ? AND dream_id = ?`
	if _, err := s.db.ExecContext(ctx, query, commentID, entryID); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryEntries(ctx context.Context, q querier, query string, args ...any) ([]models.Entry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	entries := make([]models.Entry, 0)
	for rows.Next() {
		var e models.Entry
		if err := rows.Scan(
			&e.ID,
			&e.OwnerID,
			&e.Title,
			&e.Description,
			&e.Nickname,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.Comments = []models.Comment{}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return entries, nil
}

func queryComments(ctx context.Context, q querier, query string, args ...any) ([]models.Comment, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	comments := make([]models.Comment, 0)
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(
			&c.ID,
			&c.EntryID,
			&c.OwnerID,
			&c.Text,
			&c.Nickname,
			&c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return comments, nil
}
