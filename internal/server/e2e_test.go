package server

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/dreamjournal/internal/client/api"
	"github.com/iudanet/dreamjournal/internal/client/journal"
	"github.com/iudanet/dreamjournal/internal/client/session"
	clientstorage "github.com/iudanet/dreamjournal/internal/client/storage"
	"github.com/iudanet/dreamjournal/internal/client/storage/boltdb"
	"github.com/iudanet/dreamjournal/internal/server/jwt"
	"github.com/iudanet/dreamjournal/internal/server/metrics"
	"github.com/iudanet/dreamjournal/internal/server/storage/sqlite"
)

const testSecret = "test-secret-key-at-least-32-bytes-long"

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

type testBackend struct {
	server *httptest.Server
	store  *sqlite.Storage
}

func startBackend(t *testing.T, accessTTL time.Duration, allowAnonymousWrites bool) *testBackend {
	t.Helper()

	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)

	tokens := jwt.NewService([]byte(testSecret), accessTTL, time.Hour)
	srv := httptest.NewServer(NewRouter(setupTestLogger(), store, tokens, metrics.New(), allowAnonymousWrites, "test"))

	t.Cleanup(func() {
		srv.Close()
		_ = store.Close()
	})

	return &testBackend{server: srv, store: store}
}

type testClient struct {
	api     *api.Client
	local   *boltdb.Storage
	session *session.Manager
	journal *journal.Synchronizer
}

// newTestClient собирает клиент так же, как cli.Open
func newTestClient(t *testing.T, baseURL, dbPath string, opts ...journal.Option) *testClient {
	t.Helper()
	logger := setupTestLogger()

	local, err := boltdb.New(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })

	client := api.NewClient(baseURL, api.WithTimeout(5*time.Second))
	sess := session.NewManager(client, local, logger)
	sync := journal.New(client, sess, logger, opts...)
	sess.Subscribe(sync.Listener(nil))

	return &testClient{api: client, local: local, session: sess, journal: sync}
}

func TestEndToEnd_JournalLifecycle(t *testing.T) {
	ctx := context.Background()
	backend := startBackend(t, 15*time.Minute, false)
	dbPath := filepath.Join(t.TempDir(), "client.db")
	c := newTestClient(t, backend.server.URL, dbPath)

	// Старт без сохраненной сессии: только чтение
	require.NoError(t, c.session.Start(ctx))
	assert.False(t, c.session.State().SignedIn())
	assert.Empty(t, c.journal.Entries())

	_, err := c.journal.SubmitEntry(ctx, "Flying Dream", "I dreamt I could fly")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrPermissionDenied)
	assert.Empty(t, c.journal.Entries())

	_, err = c.session.Register(ctx, "alex", "password123", "Alex")
	require.NoError(t, err)
	require.NoError(t, c.session.Login(ctx, "alex", "password123"))
	identity, ok := c.session.Identity()
	require.True(t, ok)
	assert.Equal(t, "Alex", identity.DisplayName)

	// Flying Dream: создание и удаление
	c.journal.SetNickname("Alex")
	created, err := c.journal.SubmitEntry(ctx, "Flying Dream", "I dreamt I could fly")
	require.NoError(t, err)

	entries := c.journal.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, created.ID, entries[0].ID)
	assert.Equal(t, "Flying Dream", entries[0].Title)
	assert.Equal(t, "Alex", entries[0].Nickname)
	assert.Equal(t, identity.UserID, entries[0].OwnerID)

	// Два комментария по порядку
	c.journal.Drafts().Set(created.ID, "Nice!")
	_, err = c.journal.SubmitComment(ctx, created.ID)
	require.NoError(t, err)
	c.journal.SetNickname("Sam")
	_, err = c.journal.SubmitCommentText(ctx, created.ID, "Same here!")
	require.NoError(t, err)

	require.NoError(t, c.journal.Refresh(ctx))
	entry, ok := c.journal.Entry(created.ID)
	require.True(t, ok)
	require.Len(t, entry.Comments, 2)
	assert.Equal(t, "Nice!", entry.Comments[0].Text)
	assert.Equal(t, "Alex", entry.Comments[0].Nickname)
	assert.Equal(t, "Same here!", entry.Comments[1].Text)
	assert.Equal(t, "Sam", entry.Comments[1].Nickname)

	// Одна запись доступна анонимно
	resp, err := http.Get(backend.server.URL + "/api/v1/dreams/" + created.ID)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Удаление комментария, затем записи с каскадом
	require.NoError(t, c.journal.DeleteComment(ctx, created.ID, entry.Comments[0].ID))
	entry, _ = c.journal.Entry(created.ID)
	require.Len(t, entry.Comments, 1)

	require.NoError(t, c.journal.DeleteEntry(ctx, created.ID))
	assert.Empty(t, c.journal.Entries())
	require.NoError(t, c.journal.DeleteEntry(ctx, created.ID))

	resp, err = http.Get(backend.server.URL + "/api/v1/dreams/" + created.ID)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var orphans int
	require.NoError(t, backend.store.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM comments").Scan(&orphans))
	assert.Zero(t, orphans)

	// Комментарий к удаленной записи
	_, err = c.journal.SubmitCommentText(ctx, created.ID, "too late")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrEntryNotFound)
}

func TestEndToEnd_ValidationNeverReachesServer(t *testing.T) {
	ctx := context.Background()
	backend := startBackend(t, 15*time.Minute, false)
	c := newTestClient(t, backend.server.URL, filepath.Join(t.TempDir(), "client.db"))

	_, err := c.session.Register(ctx, "alex", "password123", "")
	require.NoError(t, err)
	require.NoError(t, c.session.Login(ctx, "alex", "password123"))

	_, err = c.journal.SubmitEntry(ctx, "", "description")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrValidationFailed)
	assert.Equal(t, "Please fill in the title.", journal.Message(err))

	entries, err := c.api.ListEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEndToEnd_SessionRestoredOnStart(t *testing.T) {
	ctx := context.Background()
	backend := startBackend(t, 15*time.Minute, false)
	dbPath := filepath.Join(t.TempDir(), "client.db")

	first := newTestClient(t, backend.server.URL, dbPath)
	_, err := first.session.Register(ctx, "alex", "password123", "Alex")
	require.NoError(t, err)
	require.NoError(t, first.session.Login(ctx, "alex", "password123"))
	_, err = first.journal.SubmitEntry(ctx, "Flying Dream", "I dreamt I could fly")
	require.NoError(t, err)
	require.NoError(t, first.local.Close())

	// Новый процесс с той же локальной базой
	second := newTestClient(t, backend.server.URL, dbPath)
	var notified []session.State
	second.session.Subscribe(func(ctx context.Context, st session.State) {
		notified = append(notified, st)
	})

	require.NoError(t, second.session.Start(ctx))
	require.Len(t, notified, 1)
	assert.True(t, notified[0].SignedIn())
	assert.Equal(t, "Alex", notified[0].Identity.DisplayName)

	// Синхронизатор загрузил журнал по уведомлению
	require.Len(t, second.journal.Entries(), 1)
}

func TestEndToEnd_RejectedTokenSignsOut(t *testing.T) {
	ctx := context.Background()
	backend := startBackend(t, 15*time.Minute, false)
	dbPath := filepath.Join(t.TempDir(), "client.db")

	c := newTestClient(t, backend.server.URL, dbPath)
	require.NoError(t, c.local.SaveAuth(ctx, &clientstorage.AuthData{
		UserID:       "user-1",
		Username:     "mallory",
		AccessToken:  "forged",
		RefreshToken: "forged",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
	}))

	require.NoError(t, c.session.Start(ctx))
	assert.False(t, c.session.State().SignedIn())

	_, err := c.local.GetAuth(ctx)
	assert.ErrorIs(t, err, clientstorage.ErrAuthNotFound)
}

func TestEndToEnd_TokenRotation(t *testing.T) {
	ctx := context.Background()
	// Access token живет меньше RefreshLeeway, каждая запись обновляет пару
	backend := startBackend(t, 5*time.Second, false)
	c := newTestClient(t, backend.server.URL, filepath.Join(t.TempDir(), "client.db"))

	_, err := c.session.Register(ctx, "alex", "password123", "")
	require.NoError(t, err)
	require.NoError(t, c.session.Login(ctx, "alex", "password123"))

	before, err := c.local.GetAuth(ctx)
	require.NoError(t, err)

	for range 3 {
		_, err := c.journal.SubmitEntry(ctx, "dream", "again")
		require.NoError(t, err)
	}
	assert.Len(t, c.journal.Entries(), 3)

	after, err := c.local.GetAuth(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, before.RefreshToken, after.RefreshToken)

	// Старый refresh token больше не принимается
	_, err = c.api.Refresh(ctx, before.RefreshToken)
	assert.ErrorIs(t, err, api.ErrPermissionDenied)
}

func TestEndToEnd_LogoutBlocksWrites(t *testing.T) {
	ctx := context.Background()
	backend := startBackend(t, 15*time.Minute, false)
	c := newTestClient(t, backend.server.URL, filepath.Join(t.TempDir(), "client.db"))

	_, err := c.session.Register(ctx, "alex", "password123", "")
	require.NoError(t, err)
	require.NoError(t, c.session.Login(ctx, "alex", "password123"))
	auth, err := c.local.GetAuth(ctx)
	require.NoError(t, err)

	require.NoError(t, c.session.Logout(ctx))
	assert.False(t, c.session.State().SignedIn())

	_, err = c.journal.SubmitEntry(ctx, "Flying Dream", "I dreamt I could fly")
	assert.ErrorIs(t, err, journal.ErrNotSignedIn)

	// Refresh token'ы отозваны на сервере
	_, err = c.api.Refresh(ctx, auth.RefreshToken)
	assert.ErrorIs(t, err, api.ErrPermissionDenied)
}

func TestEndToEnd_AnonymousWrites(t *testing.T) {
	ctx := context.Background()
	backend := startBackend(t, 15*time.Minute, true)

	// Ранний вариант без сессии
	client := api.NewClient(backend.server.URL)
	sync := journal.New(client, nil, setupTestLogger(), journal.WithPolicy(journal.ReconcilePatch), journal.WithNickname("Alex"))

	created, err := sync.SubmitEntry(ctx, "Flying Dream", "I dreamt I could fly")
	require.NoError(t, err)
	assert.Empty(t, created.OwnerID)

	_, err = sync.SubmitCommentText(ctx, created.ID, "Nice!")
	require.NoError(t, err)

	// Второй клиент видит те же данные
	reader := journal.New(client, nil, setupTestLogger())
	require.NoError(t, reader.Refresh(ctx))
	entries := reader.Entries()
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Comments, 1)
	assert.Equal(t, "Nice!", entries[0].Comments[0].Text)
}

func TestEndToEnd_ServerRejectsAnonymousWrites(t *testing.T) {
	ctx := context.Background()
	backend := startBackend(t, 15*time.Minute, false)

	client := api.NewClient(backend.server.URL)
	sync := journal.New(client, nil, setupTestLogger())

	_, err := sync.SubmitEntry(ctx, "Flying Dream", "I dreamt I could fly")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrPermissionDenied)
	assert.Empty(t, sync.Entries())
}
