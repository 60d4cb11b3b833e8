package commands

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/opencode-ai/overseer/internal/config"
	"github.com/opencode-ai/overseer/internal/event"
	"github.com/opencode-ai/overseer/internal/history"
	"github.com/opencode-ai/overseer/internal/logging"
	"github.com/opencode-ai/overseer/internal/overseer"
	"github.com/opencode-ai/overseer/internal/process"
	"github.com/opencode-ai/overseer/internal/provider"
	"github.com/opencode-ai/overseer/internal/session"
	"github.com/opencode-ai/overseer/internal/storage"
	"github.com/opencode-ai/overseer/internal/tool"
)

// app holds the long-lived components shared by the commands.
type app struct {
	cfg   *config.Config
	paths *config.Paths
	log   zerolog.Logger

	bus      *event.Bus
	sessions *session.Manager
	models   *provider.Registry
	overseer *overseer.Overseer
	storage  *storage.Storage

	// history is nil when the index could not be opened.
	history  *history.Store
	recorder *history.Recorder
	watcher  *history.Watcher
}

type appOptions struct {
	// watch starts the transcript watcher when the config enables it.
	watch bool
}

func newApp(ctx context.Context, workDir string, opts appOptions) (*app, error) {
	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(workDir)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		paths:   paths,
		log:     logging.Component("app"),
		bus:     event.NewBus(),
		storage: storage.New(paths.StoragePath()),
	}
	a.sessions = session.NewManager(session.Options{
		MaxSessions:  cfg.Sessions.Max,
		ClaudePath:   cfg.Sessions.ClaudePath,
		DefaultModel: cfg.Sessions.DefaultModel,
		BufferSize:   cfg.Sessions.BufferSize,
		Spawner:      process.NewExecSpawner(),
		Bus:          a.bus,
	})
	a.openHistory(ctx, opts.watch)
	a.models = provider.InitializeProviders(cfg)

	var searcher tool.HistorySearcher
	if a.history != nil {
		searcher = a.history
	}
	a.overseer = overseer.New(overseer.Options{
		Bus:         a.bus,
		Sessions:    a.sessions,
		History:     searcher,
		Models:      a.models,
		Model:       cfg.Overseer.Model,
		ProjectRoot: cfg.ProjectRoot,
		MaxTurns:    cfg.Overseer.MaxTurns,
		Retries:     cfg.Overseer.RetryCount(),
	})
	return a, nil
}

// openHistory opens and syncs the transcript index. Failures only disable
// the history features.
func (a *app) openHistory(ctx context.Context, watch bool) {
	store, err := history.Open(a.cfg.History.DBPath, a.cfg.History.ProjectsDir)
	if err != nil {
		a.log.Warn().Err(err).Str("path", a.cfg.History.DBPath).Msg("history disabled")
		return
	}
	a.history = store

	n, err := store.Sync(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("initial history sync failed")
	} else {
		a.log.Info().Int("sessions", n).Msg("history synced")
	}

	a.recorder = history.RecordSessions(a.bus, store)

	if watch && a.cfg.History.WatchEnabled() {
		w, err := history.NewWatcher(store)
		if err != nil {
			a.log.Warn().Err(err).Msg("transcript watcher disabled")
			return
		}
		w.Start()
		a.watcher = w
	}
}

// Close stops the overseer and sessions, then releases the index.
func (a *app) Close(ctx context.Context) error {
	a.overseer.Abort()

	var errs []error
	if err := a.sessions.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.recorder != nil {
		a.recorder.Stop()
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.bus.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
