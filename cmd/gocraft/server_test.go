package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/basket/go-craft/internal/apiclient"
	"github.com/basket/go-craft/internal/bus"
	"github.com/basket/go-craft/internal/domain"
	"github.com/basket/go-craft/internal/gateway"
	"github.com/basket/go-craft/internal/identity"
	"github.com/basket/go-craft/internal/persistence"
	"github.com/basket/go-craft/internal/progression"
	"github.com/basket/go-craft/internal/selection"
	"github.com/basket/go-craft/internal/workbook"
)

// startGateway serves a real gateway on a temp database.
func startGateway(t *testing.T) *httptest.Server {
	t.Helper()
	b := bus.New()
	store, err := persistence.Open(filepath.Join(t.TempDir(), "server.db"), b)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	srv, err := gateway.New(gateway.Config{Store: store, Bus: b})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestServer_SyncDashboardAndQuest(t *testing.T) {
	ts := startGateway(t)
	ctx := context.Background()
	client := apiclient.New(ts.URL)
	u, err := client.CreateUser(ctx, domain.UserInput{Email: domain.Ptr("cli@example.com")})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	// bind_addr drives the default api_base_url.
	setTestConfig(t, ts.Listener.Addr().String())

	out := mustRun(t, "whoami", "-set", strconv.FormatInt(u.ID, 10))
	if !strings.Contains(out, "cli@example.com") {
		t.Fatalf("whoami should show the server user, got %q", out)
	}

	mustRun(t, "card", "add", "障害対応")
	mustRun(t, "card", "energy", "1", "50")
	mustRun(t, "select", "toggle", "motivation", "成長")
	mustRun(t, "assign", "1", selection.Encode(selection.Motivation, "成長"))

	var report workbook.SyncReport
	if err := json.Unmarshal([]byte(mustRun(t, "sync")), &report); err != nil {
		t.Fatalf("sync output is not JSON: %v", err)
	}
	if report.WorkItems != 1 || report.Tags != 1 {
		t.Fatalf("unexpected sync report %+v", report)
	}
	if err := json.Unmarshal([]byte(mustRun(t, "sync")), &report); err != nil {
		t.Fatalf("sync output is not JSON: %v", err)
	}
	if report.WorkItems != 0 || report.Skipped != 1 {
		t.Fatalf("second sync should skip the existing item, got %+v", report)
	}

	v := dashboardView(t)
	if !v.WorkItemsFromServer || v.User == nil || v.User.ID != u.ID || v.RemoteError != "" {
		t.Fatalf("dashboard should come from the server, got %+v", v)
	}
	if len(v.WorkItems) != 1 || v.WorkItems[0].Energy != 50 || len(v.WorkItems[0].Motivations) != 1 {
		t.Fatalf("unexpected server work items %+v", v.WorkItems)
	}

	quest, err := client.CreateAction(ctx, identity.Context{UserID: u.ID}, domain.ActionInput{
		Name:       domain.Ptr("週次ふりかえり"),
		ActionType: domain.Ptr(domain.ActionQuest),
		Difficulty: domain.Ptr(string(progression.Medium)),
		QuestType:  domain.Ptr(domain.QuestOneTime),
	})
	if err != nil {
		t.Fatalf("create quest: %v", err)
	}
	out = mustRun(t, "quest", "complete", "-server", strconv.FormatInt(quest.ID, 10))
	if !strings.Contains(out, "+30 XP") || !strings.Contains(out, "one-time quest removed") {
		t.Fatalf("unexpected completion output %q", out)
	}

	v = dashboardView(t)
	if v.Progress.ExperiencePoints != 30 || len(v.ServerQuests()) != 0 {
		t.Fatalf("mirror should follow the server ledger, got %+v", v.Progress)
	}
}

func TestServer_UserReflectionAndQuestRemoval(t *testing.T) {
	ts := startGateway(t)
	ctx := context.Background()
	client := apiclient.New(ts.URL)
	u, err := client.CreateUser(ctx, domain.UserInput{Email: domain.Ptr("sato@example.com")})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	ident := identity.Context{UserID: u.ID}
	setTestConfig(t, ts.Listener.Addr().String())
	mustRun(t, "whoami", "-set", strconv.FormatInt(u.ID, 10))

	if out := mustRun(t, "whoami", "-name", "佐藤"); !strings.Contains(out, "佐藤 <sato@example.com> updated") {
		t.Fatalf("unexpected whoami -name output %q", out)
	}
	got, err := client.GetUser(ctx, ident)
	if err != nil || got.Name == nil || *got.Name != "佐藤" {
		t.Fatalf("server user not renamed: %+v, %v", got, err)
	}

	if code, _ := run(t, "reflect", "-pull"); code != 1 {
		t.Fatalf("pulling a missing reflection should exit 1, got %d", code)
	}
	if _, err := client.SaveReflection(ctx, ident, domain.ReflectionInput{
		Question1Change:        domain.Ptr("見方が変わった"),
		Question2EmotionReason: domain.Ptr("任されたから"),
		Question3Surprise:      domain.Ptr("server"),
	}); err != nil {
		t.Fatalf("save reflection: %v", err)
	}
	var r workbook.Reflection
	if err := json.Unmarshal([]byte(mustRun(t, "reflect", "-pull", "-surprise", "local")), &r); err != nil {
		t.Fatalf("reflect output is not JSON: %v", err)
	}
	want := workbook.Reflection{Change: "見方が変わった", EmotionReason: "任されたから", Surprise: "local"}
	if r != want {
		t.Fatalf("pulled reflection = %+v, want %+v", r, want)
	}

	quest, err := client.CreateAction(ctx, ident, domain.ActionInput{
		Name:       domain.Ptr("朝会の進行"),
		ActionType: domain.Ptr(domain.ActionQuest),
		Difficulty: domain.Ptr(string(progression.Easy)),
		QuestType:  domain.Ptr(domain.QuestOneTime),
	})
	if err != nil {
		t.Fatalf("create quest: %v", err)
	}
	id := strconv.FormatInt(quest.ID, 10)
	if out := mustRun(t, "quest", "remove", "-server", id); !strings.Contains(out, "server quest "+id+" removed") {
		t.Fatalf("unexpected remove output %q", out)
	}
	if code, _ := run(t, "quest", "remove", "-server", id); code != 1 {
		t.Fatalf("removing a missing server quest should exit 1, got %d", code)
	}
}

func TestServer_UnknownUserIsFirstTime(t *testing.T) {
	ts := startGateway(t)
	setTestConfig(t, ts.Listener.Addr().String())
	mustRun(t, "whoami", "-set", "9999")

	v := dashboardView(t)
	if !v.FirstTimeUser || v.User != nil || v.RemoteError != "" {
		t.Fatalf("unexpected view %+v", v)
	}
}

func TestServer_SeedAndBackup(t *testing.T) {
	home := setTestConfig(t, "127.0.0.1:1", offlineConfig)

	var first persistence.SeedReport
	if err := json.Unmarshal([]byte(mustRun(t, "seed")), &first); err != nil {
		t.Fatalf("seed output is not JSON: %v", err)
	}
	if !first.UserCreated || first.UserID == 0 || first.Masters == 0 {
		t.Fatalf("unexpected first seed %+v", first)
	}
	if out := mustRun(t, "whoami"); !strings.HasPrefix(out, "user "+strconv.FormatInt(first.UserID, 10)) {
		t.Fatalf("seed should make the demo user active, got %q", out)
	}

	var again persistence.SeedReport
	if err := json.Unmarshal([]byte(mustRun(t, "seed")), &again); err != nil {
		t.Fatalf("seed output is not JSON: %v", err)
	}
	if again.UserCreated || again.Masters != 0 || again.UserID != first.UserID {
		t.Fatalf("reseeding should create nothing, got %+v", again)
	}

	dest := filepath.Join(home, "backup.db")
	mustRun(t, "backup", dest)
	if info, err := os.Stat(dest); err != nil || info.Size() == 0 {
		t.Fatalf("backup not written: %v", err)
	}
	if code, _ := run(t, "backup", dest); code != 1 {
		t.Fatalf("backup over an existing file should fail with 1, got %d", code)
	}
}
