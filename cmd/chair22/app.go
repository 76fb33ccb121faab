package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/vnikonov63/chair22/internal/config"
	"github.com/vnikonov63/chair22/internal/evalclient"
	"github.com/vnikonov63/chair22/internal/session"
	"github.com/vnikonov63/chair22/internal/store"
)

// app holds the wired dependencies shared by every command
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	db         *store.DB
	kv         *store.KV
	client     *evalclient.Client
	dispatcher evalclient.Dispatcher
	binder     *session.Binder

	closers []io.Closer
}

// newApp opens the state database and builds the client and binder. The
// caller owns the logger; closers it hands over are closed by app.Close.
func newApp(cfg *config.Config, logger *slog.Logger, closers ...io.Closer) (*app, error) {
	db, err := store.Open(cfg.StatePath())
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}

	client := evalclient.NewClient(cfg.APIBaseURL(), evalclient.WithTimeout(cfg.RequestTimeout))
	kv := store.NewKV(db)

	return &app{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		kv:         kv,
		client:     client,
		dispatcher: evalclient.Limit(client, cfg.MaxInflight),
		binder:     session.NewBinder(kv, client, logger),
		closers:    append([]io.Closer{db}, closers...),
	}, nil
}

// Close releases the database and any handed-over resources
func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
