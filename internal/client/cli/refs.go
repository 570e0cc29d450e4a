package cli

import (
	"fmt"
	"strconv"

	"github.com/iudanet/dreamjournal/internal/models"
)

// resolveEntry находит запись по номеру из последнего вывода (с 1) или по id
func resolveEntry(entries []models.Entry, ref string) (*models.Entry, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(entries) {
			return nil, fmt.Errorf("no entry number %d (have %d)", n, len(entries))
		}
		return &entries[n-1], nil
	}
	for i := range entries {
		if entries[i].ID == ref {
			return &entries[i], nil
		}
	}
	return nil, fmt.Errorf("no entry with id %q", ref)
}

// resolveEntryID допускает id, которого нет в зеркале: удаление идемпотентно
func resolveEntryID(entries []models.Entry, ref string) (string, error) {
	if _, err := strconv.Atoi(ref); err == nil {
		e, err := resolveEntry(entries, ref)
		if err != nil {
			return "", err
		}
		return e.ID, nil
	}
	return ref, nil
}

// resolveCommentID находит комментарий по номеру внутри записи или по id
func resolveCommentID(e *models.Entry, ref string) (string, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(e.Comments) {
			return "", fmt.Errorf("entry %q has no comment number %d", e.Title, n)
		}
		return e.Comments[n-1].ID, nil
	}
	return ref, nil
}
