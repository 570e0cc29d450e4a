package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iudanet/dreamjournal/internal/models"
	"github.com/iudanet/dreamjournal/internal/server/storage"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelError,
	}
	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}

// mockUserStorage is a mock implementation of UserStorage for testing
type mockUserStorage struct {
	users           map[string]*models.User // username -> User
	createError     error
	getUserError    error
	updateLastLogin func(ctx context.Context, userID string, loginTime time.Time) error
}

func newMockUserStorage() *mockUserStorage {
	return &mockUserStorage{users: make(map[string]*models.User)}
}

func (m *mockUserStorage) CreateUser(_ context.Context, user *models.User) error {
	if m.createError != nil {
		return m.createError
	}
	if _, exists := m.users[user.Username]; exists {
		return storage.ErrUserAlreadyExists
	}
	m.users[user.Username] = user
	return nil
}

func (m *mockUserStorage) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	if m.getUserError != nil {
		return nil, m.getUserError
	}
	user, ok := m.users[username]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserStorage) GetUserByID(_ context.Context, id string) (*models.User, error) {
	if m.getUserError != nil {
		return nil, m.getUserError
	}
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (m *mockUserStorage) UpdateLastLogin(ctx context.Context, userID string, loginTime time.Time) error {
	if m.updateLastLogin != nil {
		return m.updateLastLogin(ctx, userID, loginTime)
	}
	return nil
}

// mockTokenStorage is a mock implementation of TokenStorage for testing
type mockTokenStorage struct {
	tokens      map[string]*models.RefreshToken // hash -> RefreshToken
	saveError   error
	getError    error
	deleteError error
}

func newMockTokenStorage() *mockTokenStorage {
	return &mockTokenStorage{tokens: make(map[string]*models.RefreshToken)}
}

func (m *mockTokenStorage) SaveRefreshToken(_ context.Context, token *models.RefreshToken) error {
	if m.saveError != nil {
		return m.saveError
	}
	m.tokens[token.TokenHash] = token
	return nil
}

func (m *mockTokenStorage) GetRefreshToken(_ context.Context, hash string) (*models.RefreshToken, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	rt, ok := m.tokens[hash]
	if !ok {
		return nil, storage.ErrTokenNotFound
	}
	return rt, nil
}

func (m *mockTokenStorage) DeleteRefreshToken(_ context.Context, hash string) error {
	if m.deleteError != nil {
		return m.deleteError
	}
	if _, ok := m.tokens[hash]; !ok {
		return storage.ErrTokenNotFound
	}
	delete(m.tokens, hash)
	return nil
}

func (m *mockTokenStorage) DeleteUserTokens(_ context.Context, userID string) (int, error) {
	if m.deleteError != nil {
		return 0, m.deleteError
	}
	n := 0
	for hash, token := range m.tokens {
		if token.UserID == userID {
			delete(m.tokens, hash)
			n++
		}
	}
	return n, nil
}

func (m *mockTokenStorage) DeleteExpiredTokens(_ context.Context) (int, error) {
	return 0, nil
}

// mockJournalStorage keeps entries in memory in insertion order
type mockJournalStorage struct {
	err     error
	entries []models.Entry
	mu      sync.Mutex
}

func (m *mockJournalStorage) ListEntries(_ context.Context) ([]models.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]models.Entry, 0, len(m.entries))
	for i := range m.entries {
		out = append(out, m.entries[i].Clone())
	}
	return out, nil
}

func (m *mockJournalStorage) GetEntry(_ context.Context, id string) (*models.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.entries {
		if m.entries[i].ID == id {
			e := m.entries[i].Clone()
			return &e, nil
		}
	}
	return nil, storage.ErrEntryNotFound
}

func (m *mockJournalStorage) CreateEntry(_ context.Context, entry *models.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry.Clone())
	return nil
}

func (m *mockJournalStorage) DeleteEntry(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for i := range m.entries {
		if m.entries[i].ID == id {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			break
		}
	}
	return nil
}

func (m *mockJournalStorage) CreateComment(_ context.Context, comment *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for i := range m.entries {
		if m.entries[i].ID == comment.EntryID {
			m.entries[i].Comments = append(m.entries[i].Comments, *comment)
			return nil
		}
	}
	return storage.ErrEntryNotFound
}

func (m *mockJournalStorage) DeleteComment(_ context.Context, entryID, commentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for i := range m.entries {
		if m.entries[i].ID != entryID {
			continue
		}
		if j := m.entries[i].CommentIndex(commentID); j >= 0 {
			m.entries[i].Comments = append(m.entries[i].Comments[:j], m.entries[i].Comments[j+1:]...)
		}
	}
	return nil
}

// doJSON прогоняет запрос через handler и возвращает recorder
func doJSON(t *testing.T, h http.HandlerFunc, method, target string, body any, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, target, &buf)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}
