// Package app wires a workspace into a ready engine and holds the
// per-session application state.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"path"

	"github.com/sirupsen/logrus"

	"ideaflow/internal/config"
	"ideaflow/internal/db"
	"ideaflow/internal/engine"
	"ideaflow/internal/engine/auth"
	"ideaflow/internal/logging"
	"ideaflow/internal/migrate"
	"ideaflow/internal/storage"
)

type Options struct {
	Workspace string
	// Config overrides the workspace's ideaflow.yml when set.
	Config *config.Config
	Log    *logrus.Logger
}

// Workspace is an opened ideaflow workspace.
type Workspace struct {
	Dir    string
	Config *config.Config
	DB     *sql.DB
	Store  storage.Store
	Log    *logrus.Logger
	Engine engine.Engine
}

// Open loads config, migrates the database and builds the engine.
func Open(ctx context.Context, opts Options) (*Workspace, error) {
	cfg := opts.Config
	if cfg == nil {
		var err error
		cfg, err = config.Load(opts.Workspace)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := opts.Log
	if log == nil {
		var err error
		log, err = logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return nil, err
		}
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	store, err := storage.New(ctx, cfg.Storage, opts.Workspace)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	log.WithFields(logrus.Fields{"workspace": opts.Workspace, "storage": cfg.Storage.Driver}).Debug("workspace opened")
	return &Workspace{
		Dir:    opts.Workspace,
		Config: cfg,
		DB:     conn,
		Store:  store,
		Log:    log,
		Engine: engine.New(conn, cfg, store, log),
	}, nil
}

// Auth builds the authentication service from the auth config section.
func (w *Workspace) Auth() (*auth.Service, error) {
	sessions, err := auth.NewSessionStore(w.Config.Auth.SessionStore, w.Config.Auth.RedisURL)
	if err != nil {
		return nil, err
	}
	svc, err := auth.NewService(w.DB, sessions, w.Config.Auth.JWTSecret, w.Config.Auth.AccessTTL, w.Log)
	if err != nil {
		return nil, err
	}
	svc.Store = w.Store
	svc.MaxAvatarBytes = w.Config.Uploads.MaxBytes
	svc.AvatarRoute = path.Join("/", w.Config.Server.BasePath, "users")
	return svc, nil
}

func (w *Workspace) Close() error {
	if w == nil || w.DB == nil {
		return nil
	}
	return w.DB.Close()
}
