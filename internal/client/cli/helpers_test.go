package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iudanet/dreamjournal/internal/client/iocli"
	"github.com/iudanet/dreamjournal/internal/server"
	"github.com/iudanet/dreamjournal/internal/server/jwt"
	"github.com/iudanet/dreamjournal/internal/server/metrics"
	"github.com/iudanet/dreamjournal/internal/server/storage/sqlite"
)

// scriptedIO отдает заготовленные строки на каждый запрос ввода и копит вывод
type scriptedIO struct {
	*iocli.IOMock
	mu     sync.Mutex
	out    bytes.Buffer
	inputs []string
}

func newScriptedIO(inputs ...string) *scriptedIO {
	s := &scriptedIO{inputs: inputs}
	s.IOMock = &iocli.IOMock{
		PrintlnFunc: func(a ...any) {
			s.mu.Lock()
			defer s.mu.Unlock()
			fmt.Fprintln(&s.out, a...)
		},
		PrintfFunc: func(format string, a ...any) {
			s.mu.Lock()
			defer s.mu.Unlock()
			fmt.Fprintf(&s.out, format, a...)
		},
		WriteFunc: func(p []byte) (int, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			return s.out.Write(p)
		},
		ReadInputFunc:    s.next,
		ReadPasswordFunc: s.next,
	}
	return s
}

func (s *scriptedIO) next(prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out.WriteString(prompt)
	if len(s.inputs) == 0 {
		return "", io.EOF
	}
	line := s.inputs[0]
	s.inputs = s.inputs[1:]
	return line, nil
}

func (s *scriptedIO) Output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.String()
}

type testEnv struct {
	t        *testing.T
	failList *atomic.Bool
	url      string
	dbPath   string
}

// newTestEnv поднимает сервер журнала в памяти и отдельную локальную базу клиента
func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWith(t, false)
}

func newTestEnvWith(t *testing.T, allowAnonymousWrites bool) *testEnv {
	t.Helper()

	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := jwt.NewService([]byte("test-secret-key-at-least-32-bytes-long"), 15*time.Minute, time.Hour)
	router := server.NewRouter(logger, store, tokens, metrics.New(), allowAnonymousWrites, "test")

	// failList роняет чтение журнала, не трогая остальные маршруты
	failList := &atomic.Bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failList.Load() && r.Method == http.MethodGet && r.URL.Path == "/api/v1/dreams" {
			http.Error(w, `{"error":"unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		router.ServeHTTP(w, r)
	}))

	t.Cleanup(func() {
		srv.Close()
		_ = store.Close()
	})

	return &testEnv{
		t:        t,
		failList: failList,
		url:      srv.URL,
		dbPath:   filepath.Join(t.TempDir(), "client.db"),
	}
}

// run выполняет одну команду клиента как отдельный процесс
func (e *testEnv) run(stdio iocli.IO, args ...string) error {
	e.t.Helper()
	cmd := NewRootCmd(stdio, io.Discard, "test")
	cmd.SetArgs(append([]string{"--server", e.url, "--db", e.dbPath}, args...))
	return cmd.ExecuteContext(context.Background())
}

// signUp регистрирует и логинит пользователя
func (e *testEnv) signUp(username, displayName string) {
	e.t.Helper()
	require.NoError(e.t, e.run(newScriptedIO("password123", "password123"),
		"register", username, "--display-name", displayName))
	require.NoError(e.t, e.run(newScriptedIO("password123"), "login", username))
}

// openApp открывает App поверх окружения для тестов без cobra
func (e *testEnv) openApp(stdio iocli.IO) *App {
	e.t.Helper()
	app, err := Open(context.Background(), stdio, io.Discard, Options{
		ServerURL: e.url,
		DBPath:    e.dbPath,
		Policy:    "refetch",
		Timeout:   5 * time.Second,
	})
	require.NoError(e.t, err)
	e.t.Cleanup(func() { _ = app.Close() })
	return app
}
