package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/basket/go-craft/internal/apiclient"
	"github.com/basket/go-craft/internal/config"
	"github.com/basket/go-craft/internal/cron"
	"github.com/basket/go-craft/internal/persistence"
	"github.com/basket/go-craft/internal/progress"
	"github.com/basket/go-craft/internal/shared"
)

type CheckResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "PASS", "FAIL", "WARN", "SKIP"
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

type Diagnosis struct {
	Timestamp time.Time     `json:"timestamp"`
	System    SystemInfo    `json:"system"`
	Results   []CheckResult `json:"results"`
}

type SystemInfo struct {
	OS      string `json:"os"`
	Arch    string `json:"arch"`
	Go      string `json:"go_version"`
	Version string `json:"version"`
}

// Run executes all diagnostic checks.
func Run(ctx context.Context, cfg *config.Config, version string) Diagnosis {
	d := Diagnosis{
		Timestamp: time.Now().UTC(),
		System: SystemInfo{
			OS:      runtime.GOOS,
			Arch:    runtime.GOARCH,
			Go:      runtime.Version(),
			Version: version,
		},
	}

	checks := []func(context.Context, *config.Config) CheckResult{
		checkConfig,
		checkPermissions,
		checkDatabase,
		checkProgress,
		checkSchedules,
		checkServer,
	}

	for _, check := range checks {
		d.Results = append(d.Results, check(ctx, cfg))
	}

	return d
}

// Failed counts FAIL results.
func (d Diagnosis) Failed() int {
	n := 0
	for _, r := range d.Results {
		if r.Status == "FAIL" {
			n++
		}
	}
	return n
}

func checkConfig(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "Config", Status: "FAIL", Message: "Configuration not loaded"}
	}
	if cfg.NeedsGenesis {
		return CheckResult{
			Name:    "Config",
			Status:  "WARN",
			Message: "config.yaml missing, defaults in use",
			Detail:  "Run `gocraft serve` once to write a starter config",
		}
	}
	return CheckResult{
		Name:    "Config",
		Status:  "PASS",
		Message: fmt.Sprintf("Loaded from %s", config.ConfigPath(cfg.HomeDir)),
		Detail:  envOverrides(os.Environ()),
	}
}

// envOverrides lists the GOCRAFT_* variables in effect, secrets redacted.
func envOverrides(environ []string) string {
	var out []string
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, "GOCRAFT_") {
			continue
		}
		out = append(out, key+"="+shared.RedactEnvValue(key, value))
	}
	sort.Strings(out)
	if len(out) == 0 {
		return ""
	}
	return "env overrides: " + strings.Join(out, ", ")
}

func checkPermissions(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "Permissions", Status: "SKIP", Message: "Config missing"}
	}
	if err := os.MkdirAll(cfg.HomeDir, 0o755); err != nil {
		return CheckResult{Name: "Permissions", Status: "FAIL", Message: fmt.Sprintf("Home dir not creatable: %v", err)}
	}
	testFile := filepath.Join(cfg.HomeDir, ".write_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return CheckResult{Name: "Permissions", Status: "FAIL", Message: fmt.Sprintf("Home dir unwritable: %v", err)}
	}
	os.Remove(testFile)

	return CheckResult{Name: "Permissions", Status: "PASS", Message: "Home directory writable"}
}

func checkDatabase(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "Database", Status: "SKIP", Message: "Config missing"}
	}
	if cfg.Progression.Ledger == config.LedgerRemote && !fileExists(cfg.DBPath) {
		return CheckResult{
			Name:    "Database",
			Status:  "SKIP",
			Message: "No server database on this machine",
			Detail:  cfg.DBPath,
		}
	}

	store, err := persistence.Open(cfg.DBPath, nil)
	if err != nil {
		return CheckResult{Name: "Database", Status: "FAIL", Message: fmt.Sprintf("Connection failed: %v", err)}
	}
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		return CheckResult{Name: "Database", Status: "FAIL", Message: fmt.Sprintf("Ping failed: %v", err)}
	}
	return CheckResult{Name: "Database", Status: "PASS", Message: "Connection and schema valid", Detail: cfg.DBPath}
}

func checkProgress(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "Progress", Status: "SKIP", Message: "Config missing"}
	}

	var backend progress.Backend
	switch cfg.Progress.Backend {
	case config.ProgressBackendSQLite:
		store, err := persistence.Open(cfg.Progress.Path, nil)
		if err != nil {
			return CheckResult{Name: "Progress", Status: "FAIL", Message: fmt.Sprintf("Open %s: %v", cfg.Progress.Path, err)}
		}
		defer store.Close()
		backend = store.ProgressBackend(persistence.ProgressKeyPrefix)
	default:
		fb, err := progress.NewFileBackend(cfg.Progress.Path)
		if err != nil {
			return CheckResult{Name: "Progress", Status: "FAIL", Message: fmt.Sprintf("Open %s: %v", cfg.Progress.Path, err)}
		}
		backend = fb
	}

	if _, _, err := backend.Get(ctx, progress.KeyActiveUserID); err != nil {
		return CheckResult{
			Name:    "Progress",
			Status:  "WARN",
			Message: fmt.Sprintf("Progress store unreadable: %v", err),
			Detail:  "Unreadable keys fall back to empty values",
		}
	}
	return CheckResult{
		Name:    "Progress",
		Status:  "PASS",
		Message: fmt.Sprintf("%s backend readable", cfg.Progress.Backend),
		Detail:  cfg.Progress.Path,
	}
}

func checkSchedules(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "Schedules", Status: "SKIP", Message: "Config missing"}
	}
	if len(cfg.RecurringResets) == 0 {
		return CheckResult{Name: "Schedules", Status: "WARN", Message: "No recurring quest resets configured"}
	}

	now := time.Now()
	var details []string
	for _, r := range cfg.RecurringResets {
		next, err := cron.NextRunTime(r.Cron, now)
		if err != nil {
			return CheckResult{
				Name:    "Schedules",
				Status:  "FAIL",
				Message: fmt.Sprintf("Invalid cron for %s: %q", r.PeriodType, r.Cron),
				Detail:  err.Error(),
			}
		}
		details = append(details, fmt.Sprintf("%s: next %s", r.PeriodType, next.Format(time.RFC3339)))
	}
	return CheckResult{
		Name:    "Schedules",
		Status:  "PASS",
		Message: fmt.Sprintf("%d reset schedules valid", len(cfg.RecurringResets)),
		Detail:  strings.Join(details, ", "),
	}
}

func checkServer(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Name: "Server", Status: "SKIP", Message: "Config missing"}
	}

	reqCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	_, err := apiclient.New(cfg.APIBaseURL).Health(reqCtx)
	latency := time.Since(start)
	if err != nil {
		status := "WARN"
		if cfg.Progression.Ledger == config.LedgerRemote {
			status = "FAIL"
		}
		return CheckResult{
			Name:    "Server",
			Status:  status,
			Message: fmt.Sprintf("API unreachable at %s", cfg.APIBaseURL),
			Detail:  err.Error(),
		}
	}
	return CheckResult{
		Name:    "Server",
		Status:  "PASS",
		Message: fmt.Sprintf("API healthy (%dms)", latency.Milliseconds()),
		Detail:  cfg.APIBaseURL,
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
