package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/basket/go-craft/internal/apiclient"
	"github.com/basket/go-craft/internal/dashboard"
	"github.com/basket/go-craft/internal/domain"
	"github.com/basket/go-craft/internal/progression"
	"github.com/basket/go-craft/internal/workbook"
)

func sampleView() dashboard.View {
	person := "佐藤"
	return dashboard.View{
		UserID:   1,
		Progress: domain.NewSummary(1, progression.Progression{Level: 2, XP: 40}),
		WorkItems: []workbook.WorkItemView{{
			ID:          1,
			Name:        "設計レビュー",
			Energy:      30,
			Motivations: []string{"成長する"},
			Preferences: []string{"集中力"},
			Plan:        &workbook.Plan{Person: &person, Action: "週1で1on1"},
		}},
		Quests: []workbook.Quest{{ID: 1, Name: "朝会で発言する", XP: 10}},
		Actions: []domain.Action{
			{ID: 9, Name: "新機能の実装", ActionType: domain.ActionQuest, XPPoints: 50, Status: domain.StatusNotStarted},
			{ID: 10, Name: "メール返信", ActionType: domain.ActionTask},
		},
	}
}

func TestBar_Clamps(t *testing.T) {
	tests := []struct {
		pct        int
		wantFilled int
	}{
		{-5, 0}, {0, 0}, {50, 10}, {99, 19}, {100, 20}, {150, 20},
	}
	for _, tt := range tests {
		got := bar(tt.pct)
		if n := strings.Count(got, "█"); n != tt.wantFilled {
			t.Errorf("bar(%d) filled %d, want %d: %s", tt.pct, n, tt.wantFilled, got)
		}
		if n := strings.Count(got, "█") + strings.Count(got, "░"); n != barWidth {
			t.Errorf("bar(%d) width %d, want %d", tt.pct, n, barWidth)
		}
	}
}

func TestRenderDashboard(t *testing.T) {
	out := RenderDashboard(sampleView())
	for _, want := range []string{
		"40 / 100 XP",
		"設計レビュー",
		"30%",
		"#成長する",
		"#集中力",
		"誰に: 佐藤",
		"何をする: 週1で1on1",
		"（役割なし）",
		"朝会で発言する",
		"新機能の実装",
		"+50 XP · server",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected dashboard to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "メール返信") {
		t.Errorf("task actions are not quests:\n%s", out)
	}
}

func TestRenderDashboard_OnboardingAndRemoteError(t *testing.T) {
	v := dashboard.View{
		Progress:    domain.NewSummary(1, progression.Start),
		Onboarding:  true,
		RemoteError: "connection refused",
	}
	out := RenderDashboard(v)
	for _, want := range []string{"ようこそ！", "connection refused", "gocraft card add"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "クエストリスト") {
		t.Errorf("onboarding view should not list quests:\n%s", out)
	}
}

func TestEntries_LocalThenServer(t *testing.T) {
	got := Entries(sampleView())
	if len(got) != 2 || got[0].Server || !got[1].Server || got[1].ID != 9 {
		t.Fatalf("unexpected entries %+v", got)
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// run feeds msg to m and executes any returned command once, feeding its
// message back.
func run(t *testing.T, m boardModel, msg tea.Msg) boardModel {
	t.Helper()
	next, cmd := m.Update(msg)
	bm := next.(boardModel)
	if cmd != nil {
		if out := cmd(); out != nil {
			if _, ok := out.(tea.QuitMsg); ok {
				return bm
			}
			next, _ = bm.Update(out)
			bm = next.(boardModel)
		}
	}
	return bm
}

func TestBoard_CompleteServerQuest(t *testing.T) {
	var completed []QuestEntry
	complete := func(_ context.Context, e QuestEntry) (Outcome, error) {
		completed = append(completed, e)
		return Outcome{
			XPGained:     e.XP,
			LevelsGained: 1,
			Progress:     domain.NewSummary(1, progression.Progression{Level: 3, XP: 0}),
			Removed:      true,
		}, nil
	}
	m := newBoard(context.Background(), sampleView(), complete)

	m = run(t, m, key("down"))
	m = run(t, m, key("down"))
	if m.cursor != 1 {
		t.Fatalf("cursor should stop at the last entry, got %d", m.cursor)
	}
	m = run(t, m, key("enter"))

	if len(completed) != 1 || completed[0].ID != 9 || !completed[0].Server {
		t.Fatalf("expected the server quest to be completed, got %+v", completed)
	}
	if len(m.entries) != 1 || m.cursor != 0 {
		t.Fatalf("removed quest should leave the board, entries=%+v cursor=%d", m.entries, m.cursor)
	}
	view := m.View()
	for _, want := range []string{"達成！ 新機能の実装 +50 XP", "レベルアップ！ → 3", "0 / 100 XP"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in:\n%s", want, view)
		}
	}
}

func TestBoard_LocalQuestStaysAndErrorsShow(t *testing.T) {
	calls := 0
	complete := func(_ context.Context, e QuestEntry) (Outcome, error) {
		calls++
		if calls == 2 {
			return Outcome{}, errors.New("complete quest: api 409: action is withdrawn")
		}
		return Outcome{XPGained: e.XP, Progress: domain.NewSummary(1, progression.Progression{Level: 2, XP: 50})}, nil
	}
	m := newBoard(context.Background(), sampleView(), complete)

	m = run(t, m, key("enter"))
	if len(m.entries) != 2 || m.entries[0].Done {
		t.Fatalf("local quests are repeatable and stay listed, got %+v", m.entries)
	}
	if m.progress.ExperiencePoints != 50 {
		t.Fatalf("progress not updated: %+v", m.progress)
	}

	m = run(t, m, key("enter"))
	if !strings.Contains(m.View(), "Action is withdrawn") {
		t.Fatalf("expected error in view:\n%s", m.View())
	}
	if m.busy {
		t.Fatal("board should accept input again after an error")
	}
}

func TestBoard_QuitAndEmpty(t *testing.T) {
	m := newBoard(context.Background(), dashboard.View{Progress: domain.NewSummary(1, progression.Start)}, nil)
	m = run(t, m, key("enter")) // no entries; the nil completer is never called
	if !strings.Contains(m.View(), "まだクエストが登録されていません") {
		t.Fatalf("expected empty state:\n%s", m.View())
	}
	next, cmd := m.Update(key("q"))
	if cmd == nil || !next.(boardModel).quitting || next.View() != "" {
		t.Fatal("q should quit and clear the view")
	}
}

func TestHumanError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{errors.New("plain"), "plain"},
		{errors.New("sync: api 422: name can't be blank"), "Name can't be blank"},
		{fmt.Errorf("complete server quest 3: %w", &apiclient.APIError{Status: 409, Message: "Action is withdrawn"}), "Action is withdrawn"},
		{fmt.Errorf("complete server quest 3: %w", &apiclient.APIError{Status: 404, Message: "Not Found"}), "クエストが見つかりません"},
		{fmt.Errorf("complete quest 9: %w", workbook.ErrUnknownQuest), "クエストが見つかりません"},
		{fmt.Errorf("complete: %w", context.DeadlineExceeded), "サーバーの応答がありません"},
	}
	for _, tt := range tests {
		if got := humanError(tt.err); got != tt.want {
			t.Errorf("humanError(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
