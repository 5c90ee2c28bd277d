package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/basket/go-craft/internal/audit"
	"github.com/basket/go-craft/internal/bus"
	"github.com/basket/go-craft/internal/config"
	"github.com/basket/go-craft/internal/cron"
	"github.com/basket/go-craft/internal/gateway"
	otelPkg "github.com/basket/go-craft/internal/otel"
	"github.com/basket/go-craft/internal/persistence"
	"github.com/basket/go-craft/internal/telemetry"
)

// Version is set via ldflags at build time: -ldflags "-X main.Version=..."
var Version = "v0.1-dev"

// Command output. Tests swap these for buffers.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func printUsage() {
	fmt.Fprintf(stderr, `Usage of %[1]s:

SERVER:
  %[1]s [serve]                 Run the API server (default)
  %[1]s status                  Show server health (/healthz)
  %[1]s doctor [-json]          Run diagnostic checks
  %[1]s seed                    Load the sample masters, work items and quests
  %[1]s backup <dest>           Copy the server database to <dest>

WORKBOOK:
  %[1]s whoami [-set ID]        Show or set the active user (-default, -name, -email)
  %[1]s card <action>           Step 1 work cards: add, list, content, energy, delete
  %[1]s reflect [flags]         Step 2 reflection: -change -emotion -surprise [-pull] [-sync]
  %[1]s select <action>         Step 3 selections: list, toggle, remove, masters, create
  %[1]s assign|unassign         Step 4 tag a card: <card-id> <selection-id>
  %[1]s place|unplace           Step 4 canvas: place <selection-id> <x> <y>, unplace <placement-id>
  %[1]s person <action>         Step 5 people: add, remove
  %[1]s plan <action>           Step 5 plans: person, action, clear
  %[1]s role <action>           Step 6 roles: add, remove, attach, detach, list
  %[1]s actionplan [flags]      Step 7-1 draft: -next -with -obstacles [-sync]
  %[1]s quest <action>          Step 7-2 quests: add, list, remove, complete (-server for server quests)
  %[1]s sync                    Promote the local work items and drafts to the server
  %[1]s dashboard [-json]       Step 8 dashboard; quest board on a terminal
  %[1]s reset                   Clear the local workbook

ENVIRONMENT VARIABLES:
  GOCRAFT_HOME            Data directory (default: ~/.gocraft)
  GOCRAFT_API_BASE_URL    Server API base (default: http://<bind_addr>/api/v1)
  GOCRAFT_LEDGER          remote (server owns xp) or local
`, os.Args[0])
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := flag.Args()
	if len(args) == 0 {
		runServe(ctx)
		return
	}
	os.Exit(dispatch(ctx, args))
}

// dispatch runs one subcommand and returns its exit code.
func dispatch(ctx context.Context, args []string) int {
	rest := args[1:]
	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "-h", "--help":
		printUsage()
		return 0
	case "serve":
		if len(rest) != 0 {
			fmt.Fprintln(stderr, "usage: gocraft serve")
			return 2
		}
		runServe(ctx)
		return 0
	case "status":
		return runStatusCommand(ctx, rest)
	case "doctor":
		return runDoctorCommand(ctx, rest)
	case "seed":
		return runSeedCommand(ctx, rest)
	case "backup":
		return runBackupCommand(ctx, rest)
	case "whoami":
		return runWhoamiCommand(ctx, rest)
	case "card":
		return runCardCommand(ctx, rest)
	case "reflect":
		return runReflectCommand(ctx, rest)
	case "select":
		return runSelectCommand(ctx, rest)
	case "assign", "unassign", "place", "unplace":
		return runCanvasCommand(ctx, args[0], rest)
	case "person":
		return runPersonCommand(ctx, rest)
	case "plan":
		return runPlanCommand(ctx, rest)
	case "role":
		return runRoleCommand(ctx, rest)
	case "actionplan":
		return runActionPlanCommand(ctx, rest)
	case "quest":
		return runQuestCommand(ctx, rest)
	case "sync":
		return runSyncCommand(ctx, rest)
	case "dashboard":
		return runDashboardCommand(ctx, rest)
	case "reset":
		return runResetCommand(ctx, rest)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		printUsage()
		return 2
	}
}

func runServe(ctx context.Context) {
	cfg, err := config.Load()
	if err != nil {
		fatalStartup(nil, "E_CONFIG_LOAD", err)
	}

	logger, logHandle, err := telemetry.NewLogger(cfg.HomeDir, cfg.LogLevel, false)
	if err != nil {
		fatalStartup(nil, "E_LOGGER_INIT", err)
	}
	defer logHandle.Close()
	slog.SetDefault(logger)
	logger.Info("startup phase", "phase", "config_loaded", "home", cfg.HomeDir)
	if host, _, err := net.SplitHostPort(cfg.BindAddr); err == nil {
		h := strings.TrimSpace(strings.ToLower(host))
		loopback := h == "127.0.0.1" || h == "localhost" || h == "::1"
		if !loopback && len(cfg.CORS.AllowedOrigins) == 0 {
			logger.Warn("cors.allowed_origins is empty on non-loopback bind; cross-origin browser connections will be rejected (same-origin only)", "bind_addr", cfg.BindAddr)
		}
	}

	if cfg.NeedsGenesis {
		if err := writeMinimalConfig(cfg.HomeDir); err != nil {
			fatalStartup(logger, "E_CONFIG_WRITE", err)
		}
		logger.Info("config.yaml written with defaults", "home", cfg.HomeDir)
		cfg, err = config.Load()
		if err != nil {
			fatalStartup(logger, "E_CONFIG_RELOAD", err)
		}
	}

	eventBus := bus.New()

	provider, err := otelPkg.Init(ctx, cfg.Telemetry)
	if err != nil {
		fatalStartup(logger, "E_OTEL_INIT", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("otel shutdown failed", "error", err)
		}
	}()
	metrics, err := otelPkg.NewMetrics(provider.Meter)
	if err != nil {
		fatalStartup(logger, "E_OTEL_METRICS", err)
	}
	go otelPkg.RecordProgress(ctx, eventBus, metrics, logger)

	if err := audit.Init(cfg.HomeDir); err != nil {
		fatalStartup(logger, "E_AUDIT_INIT", err)
	}
	defer audit.Close()
	go audit.Follow(ctx, eventBus, logger)

	store, err := persistence.Open(cfg.DBPath, eventBus)
	if err != nil {
		fatalStartup(logger, "E_DB_OPEN", err)
	}
	defer store.Close()
	logger.Info("startup phase", "phase", "db_opened", "path", cfg.DBPath)

	watcher := config.NewWatcher(cfg.HomeDir, logger)
	if err := watcher.Start(ctx); err != nil {
		logger.Warn("config watcher disabled", "error", err)
	} else {
		go func() {
			for ev := range watcher.Events() {
				reloaded, err := config.Load()
				if err != nil {
					logger.Warn("config reload failed", "path", ev.Path, "error", err)
					continue
				}
				level := logHandle.SetLevel(reloaded.LogLevel)
				logger.Info("config reloaded", "path", ev.Path, "log_level", level.String(), "fingerprint", reloaded.Fingerprint())
				if reloaded.BindAddr != cfg.BindAddr || reloaded.DBPath != cfg.DBPath {
					logger.Warn("bind_addr and db_path changes apply on restart")
				}
			}
		}()
	}

	gw, err := gateway.New(gateway.Config{
		Store:             store,
		Bus:               eventBus,
		Logger:            logger,
		Tracer:            provider.Tracer,
		Metrics:           metrics,
		CORS:              cfg.CORS,
		RateLimit:         cfg.RateLimit,
		RequestMaxBytes:   cfg.RequestMaxBytes,
		AllowOrigins:      cfg.CORS.AllowedOrigins,
		ConfigFingerprint: cfg.Fingerprint(),
	})
	if err != nil {
		fatalStartup(logger, "E_GATEWAY_INIT", err)
	}
	gw.StartBackgroundTasks(ctx)

	server := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	lc := &net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				_ = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
			})
		},
	}
	ln, err := lc.Listen(ctx, "tcp", cfg.BindAddr)
	if err != nil {
		if isAddrInUse(err) {
			hint := portOccupantHint(cfg.BindAddr)
			fatalStartup(logger, "E_LISTENER_BIND", fmt.Errorf("%w\n\n  %s", err, hint))
		}
		fatalStartup(logger, "E_LISTENER_BIND", err)
	}
	logger.Info("startup phase", "phase", "listener_bound", "addr", cfg.BindAddr)
	go func() {
		logger.Info("gateway listening", "addr", cfg.BindAddr, "api", "/api/v1", "ws", "/ws")
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	resets := make([]cron.Reset, 0, len(cfg.RecurringResets))
	for _, r := range cfg.RecurringResets {
		resets = append(resets, cron.Reset{PeriodType: r.PeriodType, Cron: r.Cron})
	}
	cronSched, err := cron.NewScheduler(cron.Config{Store: store, Logger: logger, Resets: resets})
	if err != nil {
		fatalStartup(logger, "E_CRON_INIT", err)
	}
	cronSched.Start(ctx)
	defer cronSched.Stop()
	logger.Info("startup phase", "phase", "scheduler_started", "resets", len(resets))

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("gateway server error", "error", err)
	}

	// Stop intake first, then let in-flight requests and stream clients drain.
	drainTimeout := time.Duration(cfg.DrainTimeoutSeconds) * time.Second
	if drainTimeout <= 0 {
		drainTimeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("gateway shutdown incomplete", "error", err)
	}
	logger.Info("shutdown complete")
}

func fatalStartup(logger *slog.Logger, reasonCode string, err error) {
	message := ""
	if err != nil {
		message = err.Error()
	}

	if logger != nil {
		logger.Error("startup failure", "reason_code", reasonCode, "error", message)
	} else {
		fmt.Fprintf(
			os.Stderr,
			`{"timestamp":"%s","level":"ERROR","component":"runtime","trace_id":"-","msg":"startup failure","reason_code":%q,"error":%q}`+"\n",
			time.Now().UTC().Format(time.RFC3339Nano),
			reasonCode,
			message,
		)
	}
	os.Exit(1)
}

func isAddrInUse(err error) bool {
	if opErr, ok := err.(*net.OpError); ok {
		if sysErr, ok := opErr.Err.(*os.SyscallError); ok {
			return sysErr.Err == syscall.EADDRINUSE
		}
	}
	return strings.Contains(err.Error(), "address already in use")
}

func portOccupantHint(addr string) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Sprintf("Another process is using %s. Stop it first or change bind_addr in config.yaml.", addr)
	}
	// lsof names the occupying process on macOS and Linux.
	out, err := execCommand("lsof", "-ti", ":"+port)
	if err == nil && strings.TrimSpace(out) != "" {
		pids := strings.TrimSpace(out)
		return fmt.Sprintf("Port %s is occupied by PID %s. Kill it with: kill %s", port, pids, pids)
	}
	return fmt.Sprintf("Port %s is already in use. Stop the existing process or change bind_addr in config.yaml.", port)
}

func execCommand(name string, args ...string) (string, error) {
	cmd := execCommandFunc(name, args...)
	out, err := cmd.Output()
	return string(out), err
}

var execCommandFunc = newExecCommand

func newExecCommand(name string, args ...string) *exec.Cmd {
	return exec.Command(name, args...)
}

// minimalConfig is the starter config.yaml written on first serve.
type minimalConfig struct {
	BindAddr            string                   `yaml:"bind_addr"`
	LogLevel            string                   `yaml:"log_level"`
	DefaultUserID       int64                    `yaml:"default_user_id"`
	Progress            config.ProgressConfig    `yaml:"progress"`
	Progression         config.ProgressionConfig `yaml:"progression"`
	RecurringResets     []config.RecurringReset  `yaml:"recurring_resets"`
	DrainTimeoutSeconds int                      `yaml:"drain_timeout_seconds"`
}

// writeMinimalConfig writes a config.yaml carrying the defaults, so the
// user has a file to edit.
func writeMinimalConfig(homeDir string) error {
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		return fmt.Errorf("create home: %w", err)
	}

	cfg := minimalConfig{
		BindAddr:            "127.0.0.1:8001",
		LogLevel:            "info",
		DefaultUserID:       1,
		Progress:            config.ProgressConfig{Backend: config.ProgressBackendFile},
		Progression:         config.ProgressionConfig{Ledger: config.LedgerRemote},
		RecurringResets:     config.DefaultRecurringResets(),
		DrainTimeoutSeconds: 5,
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	configPath := filepath.Join(homeDir, "config.yaml")
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("write config.yaml: %w", err)
	}
	return nil
}

func isHelpArg(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "-h", "--help", "help":
		return true
	default:
		return false
	}
}
