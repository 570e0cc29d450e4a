package journal

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/dreamjournal/internal/client/api"
	"github.com/iudanet/dreamjournal/internal/models"
)

// fakeStore is an in-memory remote store that counts calls
type fakeStore struct {
	clock   time.Time
	errs    map[string]error
	calls   map[string]int
	tokens  []string
	entries []models.Entry
	mu      sync.Mutex
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clock: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *fakeStore) failOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = err
}

func (f *fakeStore) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeStore) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// begin учитывает вызов и возвращает заданную ошибку
func (f *fakeStore) begin(op, token string) error {
	f.calls[op]++
	if op != "list" {
		f.tokens = append(f.tokens, token)
	}
	return f.errs[op]
}

func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeStore) ListEntries(ctx context.Context) ([]models.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("list", ""); err != nil {
		return nil, err
	}
	out := make([]models.Entry, len(f.entries))
	for i := range f.entries {
		out[i] = f.entries[i].Clone()
	}
	return out, nil
}

func (f *fakeStore) CreateEntry(ctx context.Context, token string, entry models.NewEntry) (*models.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("create_entry", token); err != nil {
		return nil, err
	}
	e := models.Entry{
		ID:          uuid.NewString(),
		Title:       entry.Title,
		Description: entry.Description,
		Nickname:    entry.Nickname,
		CreatedAt:   f.tick(),
		Comments:    []models.Comment{},
	}
	f.entries = append(f.entries, e)
	out := e.Clone()
	return &out, nil
}

func (f *fakeStore) DeleteEntry(ctx context.Context, token, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("delete_entry", token); err != nil {
		return err
	}
	f.entries = slices.DeleteFunc(f.entries, func(e models.Entry) bool { return e.ID == id })
	return nil
}

func (f *fakeStore) CreateComment(ctx context.Context, token, entryID string, comment models.NewComment) (*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("create_comment", token); err != nil {
		return nil, err
	}
	i := slices.IndexFunc(f.entries, func(e models.Entry) bool { return e.ID == entryID })
	if i < 0 {
		return nil, fmt.Errorf("create comment failed: %w", api.ErrEntryNotFound)
	}
	c := models.Comment{
		ID:        uuid.NewString(),
		EntryID:   entryID,
		Text:      comment.Text,
		Nickname:  comment.Nickname,
		CreatedAt: f.tick(),
	}
	f.entries[i].Comments = append(f.entries[i].Comments, c)
	return &c, nil
}

func (f *fakeStore) DeleteComment(ctx context.Context, token, entryID, commentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("delete_comment", token); err != nil {
		return err
	}
	if i := slices.IndexFunc(f.entries, func(e models.Entry) bool { return e.ID == entryID }); i >= 0 {
		f.entries[i].Comments = slices.DeleteFunc(f.entries[i].Comments, func(c models.Comment) bool {
			return c.ID == commentID
		})
	}
	return nil
}

// seed добавляет запись напрямую, как будто ее создал другой клиент
func (f *fakeStore) seed(title string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.NewString()
	f.entries = append(f.entries, models.Entry{
		ID:          id,
		Title:       title,
		Description: title + " description",
		CreatedAt:   f.tick(),
		Comments:    []models.Comment{},
	})
	return id
}

// fakeSession implements Session
type fakeSession struct {
	tokenErr    error
	identity    *models.Identity
	token       string
	invalidated int
	mu          sync.Mutex
}

func signedIn() *fakeSession {
	return &fakeSession{
		identity: &models.Identity{UserID: "user-1", Username: "alex", DisplayName: "Alex"},
		token:    "access-token",
	}
}

func (s *fakeSession) Identity() (models.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return models.Identity{}, false
	}
	return *s.identity, true
}

func (s *fakeSession) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokenErr != nil {
		return "", s.tokenErr
	}
	return s.token, nil
}

func (s *fakeSession) Invalidate(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated++
	s.identity = nil
}

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
