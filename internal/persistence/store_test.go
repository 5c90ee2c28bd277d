package persistence_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/basket/go-craft/internal/bus"
	"github.com/basket/go-craft/internal/domain"
	"github.com/basket/go-craft/internal/persistence"
	"github.com/basket/go-craft/internal/progress"
	"github.com/basket/go-craft/internal/progression"
)

func openTestStore(t *testing.T) (*persistence.Store, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "gocraft.db")
	store, err := persistence.Open(dbPath, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store, dbPath
}

func openWithBus(t *testing.T) (*persistence.Store, *bus.Bus) {
	t.Helper()
	b := bus.New()
	store, err := persistence.Open(filepath.Join(t.TempDir(), "gocraft.db"), b)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, b
}

func createUser(t *testing.T, s *persistence.Store, email string) *domain.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), domain.UserInput{Email: domain.Ptr(email)})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func createQuest(t *testing.T, s *persistence.Store, userID int64, name, difficulty, questType string) *domain.Action {
	t.Helper()
	a, err := s.CreateAction(context.Background(), domain.ActionInput{
		UserID:     userID,
		Name:       domain.Ptr(name),
		ActionType: domain.Ptr(domain.ActionQuest),
		Difficulty: domain.Ptr(difficulty),
		QuestType:  domain.Ptr(questType),
	})
	if err != nil {
		t.Fatalf("create quest: %v", err)
	}
	return a
}

func validationMessages(t *testing.T, err error) []string {
	t.Helper()
	var verr *persistence.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	return verr.Messages
}

func TestStore_OpenConfiguresWALAndSchema(t *testing.T) {
	store, dbPath := openTestStore(t)
	db := store.DB()

	var journal string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journal); err != nil {
		t.Fatalf("pragma journal_mode: %v", err)
	}
	if journal != "wal" {
		t.Fatalf("expected journal_mode=wal, got %q", journal)
	}
	var foreignKeys int
	if err := db.QueryRow("PRAGMA foreign_keys;").Scan(&foreignKeys); err != nil {
		t.Fatalf("pragma foreign_keys: %v", err)
	}
	if foreignKeys != 1 {
		t.Fatalf("expected foreign_keys=1, got %d", foreignKeys)
	}

	for _, table := range []string{
		"schema_migrations", "users", "work_items", "actions", "completion_receipts",
		"action_plans", "reflections", "motivation_masters", "preference_masters",
		"people", "role_categories", "work_item_motivations", "work_item_preferences",
		"work_item_people", "work_item_role_categories", "user_settings", "kv_store",
	} {
		var got string
		if err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", table).Scan(&got); err != nil {
			t.Fatalf("table %s not found: %v", table, err)
		}
	}

	var versions int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&versions); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if versions != 2 {
		t.Fatalf("expected 2 migration rows, got %d", versions)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	reopened, err := persistence.Open(dbPath, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = reopened.Close()
}

func TestStore_RejectsChecksumMismatch(t *testing.T) {
	store, dbPath := openTestStore(t)
	if _, err := store.DB().Exec("UPDATE schema_migrations SET checksum = 'tampered' WHERE version = 2"); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	_ = store.Close()

	_, err := persistence.Open(dbPath, nil)
	if err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Fatalf("expected checksum mismatch, got %v", err)
	}
}

func TestUsers_CreateValidatesAndDefaults(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	u := createUser(t, store, "a@example.com")
	if u.Timezone != persistence.DefaultTimezone || u.Level != 1 || u.ExperiencePoints != 0 {
		t.Fatalf("unexpected defaults %+v", u)
	}
	if u.XPToNextLevel != 100 || u.XPPercentage != 0 {
		t.Fatalf("unexpected gauges %+v", u)
	}

	tests := []struct {
		name string
		in   domain.UserInput
		want []string
	}{
		{"blank", domain.UserInput{}, []string{"Email can't be blank"}},
		{"malformed", domain.UserInput{Email: domain.Ptr("nope")}, []string{"Email is invalid"}},
		{"taken", domain.UserInput{Email: domain.Ptr("a@example.com")}, []string{"Email has already been taken"}},
		{"long_name", domain.UserInput{Email: domain.Ptr("b@example.com"), Name: domain.Ptr(strings.Repeat("名", 101))}, []string{"Name is too long (maximum is 100 characters)"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.CreateUser(ctx, tt.in)
			if diff := cmp.Diff(tt.want, validationMessages(t, err)); diff != "" {
				t.Fatalf("messages (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := store.GetUser(ctx, 999); !errors.Is(err, persistence.ErrNotFound) || err.Error() != "User not found" {
		t.Fatalf("expected User not found, got %v", err)
	}
}

func TestLedger_AwardAccumulatesLevels(t *testing.T) {
	store, b := openWithBus(t)
	ctx := context.Background()
	u := createUser(t, store, "ledger@example.com")
	sub := b.Subscribe(bus.TopicProgress)
	defer b.Unsubscribe(sub)

	p, err := store.Award(ctx, u.ID, 90)
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if p != (progression.Progression{Level: 1, XP: 90}) {
		t.Fatalf("unexpected progression %+v", p)
	}
	p, err = store.Award(ctx, u.ID, 230)
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if p != (progression.Progression{Level: 4, XP: 20}) {
		t.Fatalf("unexpected progression %+v", p)
	}
	cur, err := store.Current(ctx, u.ID)
	if err != nil || cur != p {
		t.Fatalf("Current = %+v, %v", cur, err)
	}

	if _, err := store.Award(ctx, u.ID, -5); !errors.Is(err, progression.ErrNegativeXP) {
		t.Fatalf("expected ErrNegativeXP, got %v", err)
	}
	if _, err := store.Award(ctx, 999, 5); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	var topics []string
	for len(sub.Ch()) > 0 {
		ev := <-sub.Ch()
		topics = append(topics, ev.Topic)
	}
	want := []string{bus.TopicXPAwarded, bus.TopicXPAwarded, bus.TopicLevelUp}
	if diff := cmp.Diff(want, topics); diff != "" {
		t.Fatalf("topics (-want +got):\n%s", diff)
	}
}

func TestActions_DifficultySetsQuestXP(t *testing.T) {
	store, _ := openTestStore(t)
	u := createUser(t, store, "xp@example.com")
	for difficulty, want := range map[string]int{"easy": 10, "medium": 30, "hard": 50} {
		a := createQuest(t, store, u.ID, "quest "+difficulty, difficulty, domain.QuestRecurring)
		if a.XPPoints != want || a.Status != domain.StatusNotStarted {
			t.Fatalf("%s quest = %+v", difficulty, a)
		}
	}

	_, err := store.CreateAction(context.Background(), domain.ActionInput{
		UserID:     u.ID,
		Name:       domain.Ptr(strings.Repeat("a", 141)),
		Difficulty: domain.Ptr("legendary"),
		QuestType:  domain.Ptr("forever"),
	})
	want := []string{
		"Name is too long (maximum is 140 characters)",
		"Difficulty is not included in the list",
		"Quest type is not included in the list",
	}
	if diff := cmp.Diff(want, validationMessages(t, err)); diff != "" {
		t.Fatalf("messages (-want +got):\n%s", diff)
	}
}

func TestActions_ListNewestFirst(t *testing.T) {
	store, _ := openTestStore(t)
	u := createUser(t, store, "order@example.com")
	first := createQuest(t, store, u.ID, "first", "easy", domain.QuestRecurring)
	second := createQuest(t, store, u.ID, "second", "easy", domain.QuestRecurring)

	got, err := store.ListActions(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != second.ID || got[1].ID != first.ID {
		t.Fatalf("unexpected order %+v", got)
	}
}

func TestActions_UpdateFollowsTransitions(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	u := createUser(t, store, "flow@example.com")
	a := createQuest(t, store, u.ID, "flow", "easy", domain.QuestRecurring)

	withdrawn := domain.StatusWithdrawn
	if _, err := store.UpdateAction(ctx, a.ID, domain.ActionInput{Status: &withdrawn}); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	done := domain.StatusDone
	if _, err := store.UpdateAction(ctx, a.ID, domain.ActionInput{Status: &done}); !errors.Is(err, persistence.ErrConflict) {
		t.Fatalf("expected conflict moving withdrawn to done, got %v", err)
	}
	reset := domain.StatusNotStarted
	got, err := store.UpdateAction(ctx, a.ID, domain.ActionInput{Status: &reset})
	if err != nil || got.Status != domain.StatusNotStarted {
		t.Fatalf("reset: %+v, %v", got, err)
	}
}

func TestComplete_Outcomes(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	u := createUser(t, store, "complete@example.com")

	t.Run("recurring_quest_retained", func(t *testing.T) {
		a := createQuest(t, store, u.ID, "daily standup", "medium", domain.QuestRecurring)
		c, replayed, err := store.CompleteAction(ctx, a.ID, "")
		if err != nil || replayed {
			t.Fatalf("complete: %v (replayed=%v)", err, replayed)
		}
		if c.Kind != domain.Retained || c.Message != domain.MessageCompleted || c.XPGained != 30 {
			t.Fatalf("unexpected completion %+v", c)
		}
		if c.Action == nil || c.Action.Status != domain.StatusDone {
			t.Fatalf("expected done action, got %+v", c.Action)
		}
		if c.User.ExperiencePoints != 30 || c.User.XPToNextLevel != 70 {
			t.Fatalf("unexpected user %+v", c.User)
		}

		// Recurring quests can be completed again while done.
		if _, _, err := store.CompleteAction(ctx, a.ID, ""); err != nil {
			t.Fatalf("complete again: %v", err)
		}
	})

	t.Run("one_time_quest_removed", func(t *testing.T) {
		a := createQuest(t, store, u.ID, "ship it", "hard", domain.QuestOneTime)
		c, _, err := store.CompleteAction(ctx, a.ID, "")
		if err != nil {
			t.Fatalf("complete: %v", err)
		}
		if c.Kind != domain.Removed || c.Action != nil || c.Message != domain.MessageCompletedRemoved || c.XPGained != 50 {
			t.Fatalf("unexpected completion %+v", c)
		}
		if _, err := store.GetAction(ctx, a.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected quest deleted, got %v", err)
		}
	})

	t.Run("task_awards_nothing", func(t *testing.T) {
		before, _ := store.Current(ctx, u.ID)
		a, err := store.CreateAction(ctx, domain.ActionInput{UserID: u.ID, Name: domain.Ptr("write notes"), XPPoints: domain.Ptr(40)})
		if err != nil {
			t.Fatalf("create task: %v", err)
		}
		c, _, err := store.CompleteAction(ctx, a.ID, "")
		if err != nil {
			t.Fatalf("complete: %v", err)
		}
		if c.XPGained != 0 || c.User.Progression() != before {
			t.Fatalf("task changed progression: %+v", c)
		}
		if _, _, err := store.CompleteAction(ctx, a.ID, ""); !errors.Is(err, persistence.ErrConflict) {
			t.Fatalf("expected conflict on second completion, got %v", err)
		}
	})

	t.Run("withdrawn_rejected", func(t *testing.T) {
		a := createQuest(t, store, u.ID, "dropped", "easy", domain.QuestRecurring)
		if _, err := store.UpdateAction(ctx, a.ID, domain.ActionInput{Status: domain.Ptr(domain.StatusWithdrawn)}); err != nil {
			t.Fatalf("withdraw: %v", err)
		}
		if _, _, err := store.CompleteAction(ctx, a.ID, ""); !errors.Is(err, persistence.ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		if _, _, err := store.CompleteAction(ctx, 9999, ""); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestComplete_IdempotencyKeyReplays(t *testing.T) {
	store, b := openWithBus(t)
	ctx := context.Background()
	u := createUser(t, store, "idem@example.com")
	a := createQuest(t, store, u.ID, "retry me", "hard", domain.QuestOneTime)
	sub := b.Subscribe(bus.TopicQuestCompleted)
	defer b.Unsubscribe(sub)

	first, replayed, err := store.CompleteAction(ctx, a.ID, "key-1")
	if err != nil || replayed {
		t.Fatalf("first: %v (replayed=%v)", err, replayed)
	}
	second, replayed, err := store.CompleteAction(ctx, a.ID, "key-1")
	if err != nil || !replayed {
		t.Fatalf("second: %v (replayed=%v)", err, replayed)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("replayed response differs (-first +second):\n%s", diff)
	}

	p, _ := store.Current(ctx, u.ID)
	if p.XP != 50 {
		t.Fatalf("xp = %d, want 50 (awarded once)", p.XP)
	}
	if len(sub.Ch()) != 1 {
		t.Fatalf("expected one completion event, got %d", len(sub.Ch()))
	}

	other := createQuest(t, store, u.ID, "other", "easy", domain.QuestRecurring)
	if _, _, err := store.CompleteAction(ctx, other.ID, "key-1"); !errors.Is(err, persistence.ErrConflict) {
		t.Fatalf("expected conflict for key reuse, got %v", err)
	}
}

func TestComplete_ConcurrentOneTimeAwardsOnce(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	u := createUser(t, store, "race@example.com")
	a := createQuest(t, store, u.ID, "race", "hard", domain.QuestOneTime)

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := store.CompleteAction(ctx, a.ID, "")
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			if !errors.Is(err, persistence.ErrNotFound) && !errors.Is(err, persistence.ErrConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful completion, got %d", successes)
	}
	p, err := store.Current(ctx, u.ID)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if p != (progression.Progression{Level: 1, XP: 50}) {
		t.Fatalf("unexpected progression %+v", p)
	}
}

func TestResetRecurringQuests(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	u := createUser(t, store, "reset@example.com")

	daily, err := store.CreateAction(ctx, domain.ActionInput{
		UserID: u.ID, Name: domain.Ptr("daily"), ActionType: domain.Ptr(domain.ActionQuest),
		Difficulty: domain.Ptr("easy"), QuestType: domain.Ptr(domain.QuestRecurring), PeriodType: domain.Ptr(domain.PeriodDaily),
	})
	if err != nil {
		t.Fatalf("create daily: %v", err)
	}
	weekly, err := store.CreateAction(ctx, domain.ActionInput{
		UserID: u.ID, Name: domain.Ptr("weekly"), ActionType: domain.Ptr(domain.ActionQuest),
		Difficulty: domain.Ptr("easy"), QuestType: domain.Ptr(domain.QuestRecurring), PeriodType: domain.Ptr(domain.PeriodWeekly),
	})
	if err != nil {
		t.Fatalf("create weekly: %v", err)
	}
	for _, id := range []int64{daily.ID, weekly.ID} {
		if _, _, err := store.CompleteAction(ctx, id, ""); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}

	n, err := store.ResetRecurringQuests(ctx, domain.PeriodDaily)
	if err != nil || n != 1 {
		t.Fatalf("reset daily = %d, %v", n, err)
	}
	got, _ := store.GetAction(ctx, daily.ID)
	if got.Status != domain.StatusNotStarted {
		t.Fatalf("daily status = %q", got.Status)
	}
	got, _ = store.GetAction(ctx, weekly.ID)
	if got.Status != domain.StatusDone {
		t.Fatalf("weekly status = %q", got.Status)
	}

	n, err = store.ResetRecurringQuests(ctx, "")
	if err != nil || n != 1 {
		t.Fatalf("reset all = %d, %v", n, err)
	}
}

func TestWorkItems_ValidationAndTags(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	u := createUser(t, store, "items@example.com")

	_, err := store.CreateWorkItem(ctx, domain.WorkItemInput{UserID: u.ID, Name: domain.Ptr(" "), EnergyPercentage: domain.Ptr(120.0)})
	want := []string{"Name can't be blank", "Energy percentage must be less than or equal to 100"}
	if diff := cmp.Diff(want, validationMessages(t, err)); diff != "" {
		t.Fatalf("messages (-want +got):\n%s", diff)
	}

	wi, err := store.CreateWorkItem(ctx, domain.WorkItemInput{UserID: u.ID, Name: domain.Ptr("資料作成"), EnergyPercentage: domain.Ptr(40.0)})
	if err != nil {
		t.Fatalf("create work item: %v", err)
	}
	m, err := store.CreateMaster(ctx, domain.MotivationMasters, domain.NamedInput{UserID: u.ID, Name: domain.Ptr("成長する")})
	if err != nil {
		t.Fatalf("create master: %v", err)
	}
	p, err := store.CreatePerson(ctx, domain.NamedInput{UserID: u.ID, Name: domain.Ptr("佐藤さん"), Role: domain.Ptr("上司")})
	if err != nil {
		t.Fatalf("create person: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := store.AttachTag(ctx, wi.ID, domain.TagMotivations, m.ID); err != nil {
			t.Fatalf("attach motivation: %v", err)
		}
	}
	got, err := store.AttachTag(ctx, wi.ID, domain.TagPeople, p.ID)
	if err != nil {
		t.Fatalf("attach person: %v", err)
	}
	if diff := cmp.Diff([]domain.Tag{{ID: m.ID, Name: "成長する"}}, got.Motivations); diff != "" {
		t.Fatalf("motivations (-want +got):\n%s", diff)
	}
	if len(got.People) != 1 || got.People[0].Role == nil || *got.People[0].Role != "上司" {
		t.Fatalf("unexpected people %+v", got.People)
	}
	if _, err := store.AttachTag(ctx, wi.ID, domain.TagRoleCategories, 4242); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected missing role category, got %v", err)
	}

	if err := store.DeleteMaster(ctx, domain.MotivationMasters, m.ID); err != nil {
		t.Fatalf("delete master: %v", err)
	}
	got, _ = store.GetWorkItem(ctx, wi.ID)
	if len(got.Motivations) != 0 {
		t.Fatalf("deleting a master must drop its links: %+v", got.Motivations)
	}
}

func TestWorkItems_DeleteKeepsActions(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	u := createUser(t, store, "nullify@example.com")
	wi, err := store.CreateWorkItem(ctx, domain.WorkItemInput{UserID: u.ID, Name: domain.Ptr("会議"), EnergyPercentage: domain.Ptr(10.0)})
	if err != nil {
		t.Fatalf("create work item: %v", err)
	}
	a, err := store.CreateAction(ctx, domain.ActionInput{UserID: u.ID, Name: domain.Ptr("議事録"), WorkItemID: &wi.ID})
	if err != nil {
		t.Fatalf("create action: %v", err)
	}
	if err := store.DeleteWorkItem(ctx, wi.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := store.GetAction(ctx, a.ID)
	if err != nil {
		t.Fatalf("action lost: %v", err)
	}
	if got.WorkItemID != nil {
		t.Fatalf("expected work_item_id cleared, got %v", *got.WorkItemID)
	}
}

func TestMasters_VisibleIncludesShared(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	if _, err := store.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	u := createUser(t, store, "masters@example.com")
	if _, err := store.CreateMaster(ctx, domain.PreferenceMasters, domain.NamedInput{UserID: u.ID, Name: domain.Ptr("静かな環境")}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := store.CreateMaster(ctx, domain.PreferenceMasters, domain.NamedInput{UserID: u.ID, Name: domain.Ptr("静かな環境")})
	if diff := cmp.Diff([]string{"Name has already been taken"}, validationMessages(t, err)); diff != "" {
		t.Fatalf("messages (-want +got):\n%s", diff)
	}

	visible, err := store.VisibleMasters(ctx, domain.PreferenceMasters, u.ID)
	if err != nil {
		t.Fatalf("visible: %v", err)
	}
	if len(visible) != len(persistence.SharedPreferences)+1 {
		t.Fatalf("expected shared plus own, got %d", len(visible))
	}
	if last := visible[len(visible)-1]; last.Name != "静かな環境" || last.UserID == nil {
		t.Fatalf("own master should sort last by id, got %+v", last)
	}
	own, _ := store.ListMasters(ctx, domain.PreferenceMasters, u.ID)
	if len(own) != 1 {
		t.Fatalf("expected one owned master, got %d", len(own))
	}
	if _, err := store.VisibleMasters(ctx, domain.PreferenceMasters, 777); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestSeed_IsIdempotent(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	first, err := store.Seed(ctx)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !first.UserCreated || first.WorkItems != 3 || first.Quests != 3 {
		t.Fatalf("unexpected first report %+v", first)
	}
	second, err := store.Seed(ctx)
	if err != nil {
		t.Fatalf("reseed: %v", err)
	}
	want := persistence.SeedReport{UserID: first.UserID}
	if diff := cmp.Diff(want, second); diff != "" {
		t.Fatalf("second seed created rows (-want +got):\n%s", diff)
	}
}

func TestDrafts_UpsertPerUser(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	u := createUser(t, store, "drafts@example.com")

	if _, err := store.GetActionPlan(ctx, u.ID); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected no plan, got %v", err)
	}
	if _, err := store.SaveActionPlan(ctx, domain.ActionPlanInput{UserID: u.ID, NextActions: domain.Ptr("週次で振り返る")}); err != nil {
		t.Fatalf("save plan: %v", err)
	}
	plan, err := store.SaveActionPlan(ctx, domain.ActionPlanInput{UserID: u.ID, Collaborators: domain.Ptr("チーム")})
	if err != nil {
		t.Fatalf("update plan: %v", err)
	}
	if plan.NextActions == nil || *plan.NextActions != "週次で振り返る" || *plan.Collaborators != "チーム" {
		t.Fatalf("unexpected plan %+v", plan)
	}

	_, err = store.SaveReflection(ctx, domain.ReflectionInput{UserID: u.ID, Question1Change: domain.Ptr("変化")})
	want := []string{"Question2 emotion reason can't be blank", "Question3 surprise can't be blank"}
	if diff := cmp.Diff(want, validationMessages(t, err)); diff != "" {
		t.Fatalf("messages (-want +got):\n%s", diff)
	}
	r, err := store.SaveReflection(ctx, domain.ReflectionInput{
		UserID: u.ID, Question1Change: domain.Ptr("変化"), Question2EmotionReason: domain.Ptr("理由"), Question3Surprise: domain.Ptr("驚き"),
	})
	if err != nil {
		t.Fatalf("save reflection: %v", err)
	}
	r2, err := store.SaveReflection(ctx, domain.ReflectionInput{UserID: u.ID, Question3Surprise: domain.Ptr("発見")})
	if err != nil {
		t.Fatalf("update reflection: %v", err)
	}
	if r2.ID != r.ID || r2.Question1Change != "変化" || r2.Question3Surprise != "発見" {
		t.Fatalf("unexpected reflection %+v", r2)
	}
}

func TestSnapshot_SkipsWithdrawn(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	u := createUser(t, store, "snap@example.com")
	keep := createQuest(t, store, u.ID, "keep", "easy", domain.QuestRecurring)
	drop := createQuest(t, store, u.ID, "drop", "easy", domain.QuestRecurring)
	if _, err := store.UpdateAction(ctx, drop.ID, domain.ActionInput{Status: domain.Ptr(domain.StatusWithdrawn)}); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	snap, err := store.Snapshot(ctx, u.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Actions) != 1 || snap.Actions[0].ID != keep.ID {
		t.Fatalf("unexpected actions %+v", snap.Actions)
	}
	if snap.ActionPlan != nil {
		t.Fatalf("expected nil action plan, got %+v", snap.ActionPlan)
	}
	if snap.WorkItems == nil {
		t.Fatal("work items must be an empty list, not nil")
	}
	if _, err := store.Snapshot(ctx, 404); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSettings_DefaultsAndValidation(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	u := createUser(t, store, "settings@example.com")

	st, err := store.GetSettings(ctx, u.ID)
	if err != nil || st.WeekStartDay != "Mon" || st.MonthStartDay != 1 {
		t.Fatalf("defaults = %+v, %v", st, err)
	}
	_, err = store.UpdateSettings(ctx, u.ID, domain.SettingsInput{WeekStartDay: domain.Ptr("Funday"), MonthStartDay: domain.Ptr(32)})
	want := []string{"Week start day is not included in the list", "Month start day must be less than or equal to 31"}
	if diff := cmp.Diff(want, validationMessages(t, err)); diff != "" {
		t.Fatalf("messages (-want +got):\n%s", diff)
	}
	st, err = store.UpdateSettings(ctx, u.ID, domain.SettingsInput{WeekStartDay: domain.Ptr("Sun")})
	if err != nil || st.WeekStartDay != "Sun" || st.ID == 0 {
		t.Fatalf("update = %+v, %v", st, err)
	}
}

func TestKVBackend_ServesProgressStore(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()
	local := progress.New(store.ProgressBackend("user:1:"), nil)

	progress.Save(ctx, local, progress.KeyUserLevel, 3)
	if got := progress.Load(ctx, local, progress.KeyUserLevel, 1); got != 3 {
		t.Fatalf("level = %d, want 3", got)
	}
	raw, err := store.KVGet(ctx, "user:1:"+progress.KeyUserLevel)
	if err != nil || raw != "3" {
		t.Fatalf("raw kv = %q, %v", raw, err)
	}
	progress.Remove(ctx, local, progress.KeyUserLevel)
	if _, ok, _ := store.KVLookup(ctx, "user:1:"+progress.KeyUserLevel); ok {
		t.Fatal("key should be deleted")
	}
}

func TestStore_Backup(t *testing.T) {
	store, _ := openTestStore(t)
	createUser(t, store, "backup@example.com")
	dest := filepath.Join(t.TempDir(), "backup.db")
	if err := store.Backup(context.Background(), dest); err != nil {
		t.Fatalf("backup: %v", err)
	}
	if err := store.Backup(context.Background(), dest); err == nil {
		t.Fatal("expected error when destination exists")
	}
	db, err := sql.Open("sqlite3", dest)
	if err != nil {
		t.Fatalf("open backup: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&n); err != nil || n != 1 {
		t.Fatalf("backup users = %d, %v", n, err)
	}
}
