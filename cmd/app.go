package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/barge-dl/barge/internal/config"
	"github.com/barge-dl/barge/internal/engine"
	"github.com/barge-dl/barge/internal/engine/state"
	"github.com/barge-dl/barge/internal/engine/types"
	"github.com/barge-dl/barge/internal/scheduler"
	"github.com/barge-dl/barge/internal/transform"
	"github.com/barge-dl/barge/internal/transport"
	"github.com/barge-dl/barge/internal/utils"
)

// app bundles the collaborators a command needs: settings, logger, record
// store, and (for commands that transfer) the engine behind the instance
// lock.
type app struct {
	settings *config.Settings
	runtime  *types.RuntimeConfig
	logger   *log.Logger
	store    *state.Store
	engine   *engine.Engine

	unlock func()
}

// notifier logs completed downloads; it stands in for the domain-level
// completion collaborator in the CLI.
type notifier struct {
	logger *log.Logger
}

func (n *notifier) DownloadCompleted(rec types.DownloadRecord) {
	n.logger.Info("file available", "file", rec.DestinationFileName, "bytes", rec.DownloadedBytes)
}

// newApp opens settings and the record store. Commands that execute
// transfers pass withEngine to also take the single-instance lock and build
// the engine; read-only commands skip both.
func newApp(withEngine bool) (*app, error) {
	var settings *config.Settings
	var err error
	if configPath != "" {
		settings, err = config.LoadSettingsFrom(configPath)
	} else {
		settings, err = config.LoadSettings()
	}
	if err != nil {
		return nil, err
	}

	logger := utils.NewLogger(os.Stderr)
	if lvl, perr := log.ParseLevel(settings.General.LogLevel); perr == nil && os.Getenv("BARGE_LOG_LEVEL") == "" {
		logger.SetLevel(lvl)
	}

	a := &app{
		settings: settings,
		runtime:  types.ConvertRuntimeConfig(settings.ToRuntimeConfig()),
		logger:   logger,
	}

	if withEngine {
		unlock, err := acquireInstanceLock()
		if err != nil {
			return nil, err
		}
		a.unlock = unlock
	}

	if err := os.MkdirAll(config.StateDir(), 0o755); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	a.store, err = state.Open(filepath.Join(config.StateDir(), "barge.db"))
	if err != nil {
		a.Close()
		return nil, err
	}

	if withEngine {
		a.engine = engine.New(engine.Options{
			Store:     a.store,
			Transport: transport.NewHTTP(a.runtime),
			// CLI processes have no OS background facility; everything runs
			// through the serialized foreground fallback.
			Facility:    scheduler.Unavailable(),
			Notifier:    &notifier{logger: logger},
			Transformer: transform.NewCommandTransformer(a.runtime.GetTransformCommand()),
			Runtime:     a.runtime,
			Logger:      logger.WithPrefix("engine"),
		})
	}

	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Debug("failed to close store", "err", err)
		}
	}
	if a.unlock != nil {
		a.unlock()
	}
}

// wait blocks until every in-flight engine task finished, surfacing events
// as log lines along the way.
func (a *app) wait(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- a.engine.Shutdown(ctx) }()

	for {
		select {
		case err := <-done:
			// Drain anything published between the last receive and shutdown.
			for {
				select {
				case msg := <-a.engine.Events():
					printEvent(a.logger, msg)
				default:
					return err
				}
			}
		case msg := <-a.engine.Events():
			printEvent(a.logger, msg)
		}
	}
}

// resolveRecordID expands a record-ID prefix against the store.
func (a *app) resolveRecordID(prefix string) (string, error) {
	id, err := a.store.ResolvePrefix(prefix)
	if errors.Is(err, state.ErrNotFound) {
		return "", fmt.Errorf("no record matches %q", prefix)
	}
	return id, err
}
