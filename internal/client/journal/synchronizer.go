// Package journal keeps the client's in-memory mirror of the remote journal
// and routes every mutation through the remote store.
package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/iudanet/dreamjournal/internal/client/api"
	"github.com/iudanet/dreamjournal/internal/client/session"
	"github.com/iudanet/dreamjournal/internal/models"
	"github.com/iudanet/dreamjournal/internal/validation"
)

// Store is the remote document store
type Store interface {
	ListEntries(ctx context.Context) ([]models.Entry, error)
	CreateEntry(ctx context.Context, token string, entry models.NewEntry) (*models.Entry, error)
	DeleteEntry(ctx context.Context, token, id string) error
	CreateComment(ctx context.Context, token, entryID string, comment models.NewComment) (*models.Comment, error)
	DeleteComment(ctx context.Context, token, entryID, commentID string) error
}

// Session gates writes and supplies the access token
type Session interface {
	Identity() (models.Identity, bool)
	AccessToken(ctx context.Context) (string, error)
	Invalidate(ctx context.Context)
}

// Synchronizer owns the mirror. The mutex is never held across a store call,
// so racing mutations resolve as last-to-complete-wins.
type Synchronizer struct {
	store     Store
	session   Session
	logger    *slog.Logger
	drafts    *Drafts
	onRefresh func(ctx context.Context, at time.Time)
	now       func() time.Time
	policy    Policy

	mu       sync.Mutex
	entries  []models.Entry
	nickname string
}

// Option configures a Synchronizer
type Option func(*Synchronizer)

// WithPolicy sets the entry reconciliation policy
func WithPolicy(p Policy) Option {
	return func(s *Synchronizer) {
		s.policy = p
	}
}

// WithNickname sets the initial nickname
func WithNickname(nickname string) Option {
	return func(s *Synchronizer) {
		s.nickname = nickname
	}
}

// WithRefreshHook registers a callback run after every successful full load
func WithRefreshHook(fn func(ctx context.Context, at time.Time)) Option {
	return func(s *Synchronizer) {
		s.onRefresh = fn
	}
}

// New creates a synchronizer with an empty mirror. A nil session disables the
// write gate and writes go out without a token.
func New(store Store, sess Session, logger *slog.Logger, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:   store,
		session: sess,
		logger:  logger,
		drafts:  newDrafts(),
		now:     time.Now,
		policy:  ReconcileRefetch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the entry reconciliation policy
func (s *Synchronizer) Policy() Policy {
	return s.policy
}

// Drafts returns the per-entry comment drafts
func (s *Synchronizer) Drafts() *Drafts {
	return s.drafts
}

// SetNickname sets the nickname attached to subsequent submissions
func (s *Synchronizer) SetNickname(nickname string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nickname = nickname
}

// Nickname returns the current nickname
func (s *Synchronizer) Nickname() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nickname
}

// Entries returns a deep copy of the mirror
func (s *Synchronizer) Entries() []models.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Entry, len(s.entries))
	for i := range s.entries {
		out[i] = s.entries[i].Clone()
	}
	return out
}

// Entry returns a copy of one mirrored entry
func (s *Synchronizer) Entry(id string) (models.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexLocked(id); i >= 0 {
		return s.entries[i].Clone(), true
	}
	return models.Entry{}, false
}

// Listener returns a session listener that reloads the journal on every
// identity change. report receives the refresh failure, if any.
func (s *Synchronizer) Listener(report func(error)) session.Listener {
	return func(ctx context.Context, st session.State) {
		s.logger.DebugContext(ctx, "identity changed, reloading journal", "signed_in", st.SignedIn())
		if err := s.Refresh(ctx); err != nil && report != nil {
			report(err)
		}
	}
}

// Refresh replaces the mirror with the remote journal. On failure the
// mirror is left untouched.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	entries, err := s.store.ListEntries(ctx)
	if err != nil {
		return s.fail(ctx, OpRefresh, err)
	}
	s.replace(ctx, entries)
	return nil
}

// SubmitEntry creates an entry with the current nickname
func (s *Synchronizer) SubmitEntry(ctx context.Context, title, description string) (*models.Entry, error) {
	if err := validation.ValidateNewEntry(title, description); err != nil {
		return nil, &OpError{Op: OpSubmitEntry, Err: fmt.Errorf("%w: %w", api.ErrValidationFailed, err)}
	}

	token, err := s.writeToken(ctx)
	if err != nil {
		return nil, s.fail(ctx, OpSubmitEntry, err)
	}

	created, err := s.store.CreateEntry(ctx, token, models.NewEntry{
		Title:       title,
		Description: description,
		Nickname:    s.Nickname(),
	})
	if err != nil {
		return nil, s.fail(ctx, OpSubmitEntry, err)
	}

	s.logger.DebugContext(ctx, "entry created", "id", created.ID, "policy", s.policy.String())

	if s.policy == ReconcileRefetch {
		entries, err := s.store.ListEntries(ctx)
		if err == nil {
			s.replace(ctx, entries)
			return created, nil
		}
		// Запись уже создана на сервере, не теряем ее в зеркале
		s.logger.WarnContext(ctx, "refetch after create failed, patching mirror", "error", err)
	}

	s.appendEntry(*created)
	return created, nil
}

// DeleteEntry deletes an entry. Unknown ids succeed.
func (s *Synchronizer) DeleteEntry(ctx context.Context, id string) error {
	token, err := s.writeToken(ctx)
	if err != nil {
		return s.fail(ctx, OpDeleteEntry, err)
	}

	if err := s.store.DeleteEntry(ctx, token, id); err != nil {
		return s.fail(ctx, OpDeleteEntry, err)
	}

	s.removeEntry(id)
	s.drafts.Set(id, "")
	return nil
}

// SubmitComment sends the draft of the given entry. The draft is cleared on
// success and kept on failure.
func (s *Synchronizer) SubmitComment(ctx context.Context, entryID string) (*models.Comment, error) {
	text := s.drafts.Get(entryID)

	created, err := s.SubmitCommentText(ctx, entryID, text)
	if err != nil {
		return nil, err
	}

	s.drafts.clearIf(entryID, text)
	return created, nil
}

// SubmitCommentText adds a comment with explicit text
func (s *Synchronizer) SubmitCommentText(ctx context.Context, entryID, text string) (*models.Comment, error) {
	if err := validation.ValidateNewComment(text); err != nil {
		return nil, &OpError{Op: OpSubmitComment, Err: fmt.Errorf("%w: %w", api.ErrValidationFailed, err)}
	}

	token, err := s.writeToken(ctx)
	if err != nil {
		return nil, s.fail(ctx, OpSubmitComment, err)
	}

	created, err := s.store.CreateComment(ctx, token, entryID, models.NewComment{
		Text:     text,
		Nickname: s.Nickname(),
	})
	if err != nil {
		if errors.Is(err, api.ErrEntryNotFound) {
			// Запись удалена другим клиентом
			s.removeEntry(entryID)
		}
		return nil, s.fail(ctx, OpSubmitComment, err)
	}

	s.appendComment(entryID, *created)
	return created, nil
}

// DeleteComment deletes a comment. Unknown ids succeed.
func (s *Synchronizer) DeleteComment(ctx context.Context, entryID, commentID string) error {
	token, err := s.writeToken(ctx)
	if err != nil {
		return s.fail(ctx, OpDeleteComment, err)
	}

	if err := s.store.DeleteComment(ctx, token, entryID, commentID); err != nil {
		return s.fail(ctx, OpDeleteComment, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(entryID); i >= 0 {
		e := &s.entries[i]
		e.Comments = slices.DeleteFunc(e.Comments, func(c models.Comment) bool {
			return c.ID == commentID
		})
	}
	return nil
}

// writeToken проверяет наличие identity до любого сетевого вызова
func (s *Synchronizer) writeToken(ctx context.Context) (string, error) {
	if s.session == nil {
		return "", nil
	}
	if _, ok := s.session.Identity(); !ok {
		return "", fmt.Errorf("%w: %w", api.ErrPermissionDenied, ErrNotSignedIn)
	}

	token, err := s.session.AccessToken(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w: %w", api.ErrPermissionDenied, ErrNotSignedIn, err)
	}
	return token, nil
}

// fail оборачивает ошибку в OpError. Отказ backend в доступе на запись
// сбрасывает сессию. Чтение идет без токена, его отказ сессию не трогает.
func (s *Synchronizer) fail(ctx context.Context, op Op, err error) error {
	if s.session != nil && op != OpRefresh &&
		errors.Is(err, api.ErrPermissionDenied) && !errors.Is(err, ErrNotSignedIn) {
		s.session.Invalidate(ctx)
	}

	s.logger.WarnContext(ctx, "journal operation failed", "op", string(op), "error", err)
	return &OpError{Op: op, Err: err}
}

func (s *Synchronizer) replace(ctx context.Context, entries []models.Entry) {
	for i := range entries {
		if entries[i].Comments == nil {
			entries[i].Comments = []models.Comment{}
		}
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	if s.onRefresh != nil {
		s.onRefresh(ctx, s.now())
	}
}

func (s *Synchronizer) appendEntry(e models.Entry) {
	if e.Comments == nil {
		e.Comments = []models.Comment{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(e.ID) >= 0 {
		return
	}
	s.entries = append(s.entries, e)
}

func (s *Synchronizer) removeEntry(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = slices.DeleteFunc(s.entries, func(e models.Entry) bool {
		return e.ID == id
	})
}

// appendComment добавляет комментарий в конец, если запись еще в зеркале
func (s *Synchronizer) appendComment(entryID string, c models.Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(entryID)
	if i < 0 {
		return
	}
	e := &s.entries[i]
	if e.CommentIndex(c.ID) >= 0 {
		return
	}
	e.Comments = append(e.Comments, c)
}

func (s *Synchronizer) indexLocked(id string) int {
	return slices.IndexFunc(s.entries, func(e models.Entry) bool {
		return e.ID == id
	})
}
