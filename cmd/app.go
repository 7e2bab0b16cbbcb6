package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"hr-toolkit/internal/config"
	"hr-toolkit/internal/logger"
	"hr-toolkit/internal/storage"
)

const restTimeout = 30 * time.Second

// app holds what every command needs. Stores are opened here and closed by
// close, in reverse order.
type app struct {
	cfg *config.Config
	log *logger.Logger

	store storage.CollectionStore
	// db is the tool's own Postgres database; nil when none is configured.
	db *storage.Storage
}

func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	log := logger.New("hrtool", logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return cfg, log, nil
}

func newApp() (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &app{cfg: cfg, log: log}
	if cfg.Database.URL != "" {
		db, err := storage.NewStorage(cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to init DB: %w", err)
		}
		db.SetSelectLimit(cfg.Backend.Limit)
		a.db = db
		log.Info("PostgreSQL connected")
	}

	switch cfg.Backend.Kind {
	case config.BackendPostgres:
		a.store = a.db
	case config.BackendREST:
		rest := storage.NewRESTStore(cfg.Backend.URL, cfg.Backend.APIKey, &http.Client{Timeout: restTimeout})
		rest.SetSelectLimit(cfg.Backend.Limit)
		a.store = rest
	case config.BackendMemory:
		a.store = storage.NewMemoryStore()
	}
	log.Info("backend ready", "kind", cfg.Backend.Kind)
	return a, nil
}

func (a *app) close() {
	var errs []error
	if a.store != nil && a.cfg.Backend.Kind != config.BackendPostgres {
		errs = append(errs, a.store.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.log.Warn("close stores", "error", err)
	}
	_ = a.log.Sync()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
