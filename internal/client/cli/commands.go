package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/iudanet/dreamjournal/internal/models"
)

// Register creates an account. Missing fields are prompted for.
func (a *App) Register(ctx context.Context, username, displayName string) error {
	var err error
	if username == "" {
		if username, err = a.io.ReadInput("Username: "); err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
	}

	password, err := a.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	confirm, err := a.io.ReadPassword("Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	if _, err := a.session.Register(ctx, username, password, displayName); err != nil {
		return err
	}

	a.render.Success(fmt.Sprintf("Account %s created. Run 'dreamjournal login' to sign in.", username))
	return nil
}

// Login signs in. Missing fields are prompted for.
func (a *App) Login(ctx context.Context, username string) error {
	var err error
	if username == "" {
		if username, err = a.io.ReadInput("Username: "); err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
	}

	password, err := a.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	a.setRefreshErr(nil)
	if err := a.session.Login(ctx, username, password); err != nil {
		return err
	}

	identity, _ := a.session.Identity()
	a.render.Success(fmt.Sprintf("Signed in as %s.", identity.DisplayName))
	// Журнал перезагружает подписчик сессии
	return a.refreshErr()
}

// Logout signs out
func (a *App) Logout(ctx context.Context) error {
	a.setRefreshErr(nil)
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	a.render.Success("Signed out.")
	return a.refreshErr()
}

// Status restores the session and prints it
func (a *App) Status(ctx context.Context) error {
	// Недоступность сервера не мешает показать статус
	if err := a.session.Start(ctx); err != nil {
		return err
	}
	return a.printStatus(ctx)
}

func (a *App) printStatus(ctx context.Context) error {
	lastRefresh, err := a.store.GetLastRefresh(ctx)
	if err != nil {
		return err
	}
	a.render.Status(a.session.State(), a.opts.ServerURL, lastRefresh)
	return nil
}

// AddEntry submits an entry. Empty title or description are prompted for.
func (a *App) AddEntry(ctx context.Context, title, description string) error {
	if err := a.requireSignedIn(); err != nil {
		return err
	}

	var err error
	if title == "" {
		if title, err = a.io.ReadInput("Title: "); err != nil {
			return fmt.Errorf("failed to read title: %w", err)
		}
	}
	if description == "" {
		if description, err = a.io.ReadInput("Description: "); err != nil {
			return fmt.Errorf("failed to read description: %w", err)
		}
	}

	created, err := a.journal.SubmitEntry(ctx, title, description)
	if err != nil {
		return err
	}

	a.render.Success("Entry saved.")
	entries := a.journal.Entries()
	for i := range entries {
		if entries[i].ID == created.ID {
			a.render.Entry(i+1, &entries[i])
			break
		}
	}
	return nil
}

// DeleteEntry deletes the entry addressed by number or id
func (a *App) DeleteEntry(ctx context.Context, ref string) error {
	if err := a.requireSignedIn(); err != nil {
		return err
	}

	id, err := resolveEntryID(a.view(), ref)
	if err != nil {
		return err
	}

	if err := a.journal.DeleteEntry(ctx, id); err != nil {
		return err
	}

	a.render.Success("Entry deleted.")
	return nil
}

// AddComment comments on the entry addressed by number or id. Empty text is
// prompted for; the previous unsent draft of that entry is offered again.
func (a *App) AddComment(ctx context.Context, ref, text string) error {
	if err := a.requireSignedIn(); err != nil {
		return err
	}

	entry, err := resolveEntry(a.view(), ref)
	if err != nil {
		return err
	}

	drafts := a.journal.Drafts()
	if text == "" {
		prompt := "Comment: "
		draft := drafts.Get(entry.ID)
		if draft != "" {
			prompt = fmt.Sprintf("Comment [%s]: ", draft)
		}
		if text, err = a.io.ReadInput(prompt); err != nil {
			return fmt.Errorf("failed to read comment: %w", err)
		}
		if text == "" {
			text = draft
		}
	}
	drafts.Set(entry.ID, text)

	if _, err := a.journal.SubmitComment(ctx, entry.ID); err != nil {
		return err
	}

	a.render.Success("Comment added.")
	return nil
}

// DeleteComment deletes a comment addressed by numbers or ids
func (a *App) DeleteComment(ctx context.Context, entryRef, commentRef string) error {
	if err := a.requireSignedIn(); err != nil {
		return err
	}

	var entryID, commentID string
	entry, err := resolveEntry(a.view(), entryRef)
	switch {
	case err == nil:
		entryID = entry.ID
		if commentID, err = resolveCommentID(entry, commentRef); err != nil {
			return err
		}
	case isNumber(entryRef) || isNumber(commentRef):
		return err
	default:
		// Оба id заданы явно, записи может не быть в зеркале
		entryID, commentID = entryRef, commentRef
	}

	if err := a.journal.DeleteComment(ctx, entryID, commentID); err != nil {
		return err
	}

	a.render.Success("Comment deleted.")
	return nil
}

// show выводит зеркало и запоминает нумерацию для ссылок по номеру
func (a *App) show() {
	entries := a.journal.Entries()
	a.mu.Lock()
	a.lastRendered = entries
	a.mu.Unlock()
	a.render.Entries(entries)
}

// view возвращает записи в нумерации последнего вывода
func (a *App) view() []models.Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastRendered != nil {
		return a.lastRendered
	}
	return a.journal.Entries()
}

func isNumber(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}
