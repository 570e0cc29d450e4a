package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/dreamjournal/internal/client/api"
	"github.com/iudanet/dreamjournal/internal/client/iocli"
	"github.com/iudanet/dreamjournal/internal/client/journal"
	"github.com/iudanet/dreamjournal/internal/client/session"
	"github.com/iudanet/dreamjournal/internal/client/storage/boltdb"
	"github.com/iudanet/dreamjournal/internal/logging"
	"github.com/iudanet/dreamjournal/internal/models"
)

// Options are the root flags
type Options struct {
	ServerURL string
	DBPath    string
	Nickname  string
	Policy    string
	Timeout   time.Duration
	Debug     bool
	// Anonymous пишет без сессии, сервер должен разрешать анонимную запись
	Anonymous bool
}

// errSignInRequired возвращается командами записи без активной сессии
var errSignInRequired = errors.New("not signed in. Please run 'dreamjournal login' first")

// App wires the client components for one process
type App struct {
	io      iocli.IO
	logger  *slog.Logger
	store   *boltdb.Storage
	client  *api.Client
	session *session.Manager
	journal *journal.Synchronizer
	render  *Renderer
	opts    Options

	mu             sync.Mutex
	lastRefreshErr error
	lastRendered   []models.Entry
}

// Open creates the local store, the remote adapter, the session manager and
// the synchronizer, and subscribes the synchronizer to identity changes.
func Open(ctx context.Context, stdio iocli.IO, logOut io.Writer, opts Options) (*App, error) {
	policy, err := journal.ParsePolicy(opts.Policy)
	if err != nil {
		return nil, err
	}

	logger := logging.NewClient(logOut, opts.Debug)

	store, err := boltdb.New(ctx, opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local database: %w", err)
	}

	client := api.NewClient(opts.ServerURL, api.WithTimeout(opts.Timeout))
	sess := session.NewManager(client, store, logger)

	a := &App{
		io:      stdio,
		logger:  logger,
		store:   store,
		client:  client,
		session: sess,
		render:  NewRenderer(stdio),
		opts:    opts,
	}

	var gate journal.Session = sess
	if opts.Anonymous {
		gate = nil
	}
	a.journal = journal.New(client, gate, logger,
		journal.WithPolicy(policy),
		journal.WithNickname(opts.Nickname),
		journal.WithRefreshHook(a.recordRefresh),
	)
	sess.Subscribe(a.journal.Listener(a.reportRefresh))

	return a, nil
}

// Close releases the local database
func (a *App) Close() error {
	return a.store.Close()
}

// Start restores the session, which also loads the journal. It returns the
// load failure, if any.
func (a *App) Start(ctx context.Context) error {
	a.setRefreshErr(nil)
	if err := a.session.Start(ctx); err != nil {
		return err
	}
	return a.refreshErr()
}

func (a *App) recordRefresh(ctx context.Context, at time.Time) {
	if err := a.store.SaveLastRefresh(ctx, at); err != nil {
		a.logger.WarnContext(ctx, "failed to save last refresh time", "error", err)
	}
}

func (a *App) reportRefresh(err error) {
	a.setRefreshErr(err)
}

func (a *App) setRefreshErr(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastRefreshErr = err
}

func (a *App) refreshErr() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastRefreshErr
}

func (a *App) requireSignedIn() error {
	if a.opts.Anonymous {
		return nil
	}
	if _, ok := a.session.Identity(); !ok {
		return errSignInRequired
	}
	return nil
}
