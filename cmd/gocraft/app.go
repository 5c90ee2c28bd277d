package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/basket/go-craft/internal/apiclient"
	"github.com/basket/go-craft/internal/config"
	"github.com/basket/go-craft/internal/identity"
	"github.com/basket/go-craft/internal/persistence"
	"github.com/basket/go-craft/internal/progress"
	"github.com/basket/go-craft/internal/progression"
	"github.com/basket/go-craft/internal/telemetry"
	"github.com/basket/go-craft/internal/workbook"
)

var _ workbook.Remote = (*apiclient.Client)(nil)

// app is what every workbook command works against: the local progress
// store, the active user and the server client.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	wb     *workbook.Workbook
	ident  identity.Context
	client *apiclient.Client

	closers []func() error
}

// openApp loads the config and opens the local progress store. Logs go to
// the log file only so command output stays clean.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	a := &app{cfg: cfg}
	logger, logHandle, err := telemetry.NewLogger(cfg.HomeDir, cfg.LogLevel, true)
	if err != nil {
		return nil, fmt.Errorf("logger init: %w", err)
	}
	a.closers = append(a.closers, logHandle.Close)
	a.logger = logger.With("component", "cli")

	backend, err := a.openBackend()
	if err != nil {
		a.close()
		return nil, err
	}
	store := progress.New(backend, logger)
	a.wb = workbook.New(store, logger)
	a.ident = identity.Resolve(ctx, store, cfg.DefaultUserID)
	a.client = apiclient.New(cfg.APIBaseURL)
	return a, nil
}

func (a *app) openBackend() (progress.Backend, error) {
	switch a.cfg.Progress.Backend {
	case config.ProgressBackendSQLite:
		store, err := persistence.Open(a.cfg.Progress.Path, nil)
		if err != nil {
			return nil, fmt.Errorf("open progress db: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store.ProgressBackend(persistence.ProgressKeyPrefix), nil
	default:
		fb, err := progress.NewFileBackend(a.cfg.Progress.Path)
		if err != nil {
			return nil, fmt.Errorf("open progress file: %w", err)
		}
		return fb, nil
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	a.closers = nil
}

// ledger is the authority for xp awards: the server, or the local mirror
// when running offline.
func (a *app) ledger() progression.Ledger {
	if a.cfg.Progression.Ledger == config.LedgerLocal {
		return a.wb.OfflineLedger()
	}
	return apiclient.NewLedger(a.client)
}

func (a *app) offline() bool {
	return a.cfg.Progression.Ledger == config.LedgerLocal
}

// withApp opens the app, runs fn and maps its error to an exit code.
func withApp(ctx context.Context, fn func(*app) error) int {
	a, err := openApp(ctx)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer a.close()
	if err := fn(a); err != nil {
		var u usageError
		if errors.As(err, &u) {
			fmt.Fprintln(stderr, u.Error())
			return 2
		}
		a.logger.Error("command failed", "error", err)
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// usageError is returned for bad arguments; it maps to exit code 2.
type usageError string

func (u usageError) Error() string { return "usage: " + string(u) }

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func parseID(raw, usage string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, usageError(usage)
	}
	return id, nil
}
