package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/basket/go-craft/internal/dashboard"
	"github.com/basket/go-craft/internal/domain"
)

// QuestEntry is one row of the quest board: a local step 7-2 quest or a
// server quest action.
type QuestEntry struct {
	ID     int64
	Name   string
	XP     int
	Server bool
	Done   bool
}

func (e QuestEntry) badge() string {
	s := fmt.Sprintf("+%d XP", e.XP)
	if e.Server {
		s += " · server"
	}
	if e.Done {
		s += " · 完了"
	}
	return s
}

// Entries lists the local quests followed by the server quests of v.
func Entries(v dashboard.View) []QuestEntry {
	var out []QuestEntry
	for _, q := range v.Quests {
		out = append(out, QuestEntry{ID: q.ID, Name: q.Name, XP: q.XP})
	}
	for _, a := range v.ServerQuests() {
		out = append(out, QuestEntry{
			ID:     a.ID,
			Name:   a.Name,
			XP:     a.XPPoints,
			Server: true,
			Done:   a.Status == domain.StatusDone,
		})
	}
	return out
}

// Outcome is what the board shows after a completion.
type Outcome struct {
	XPGained     int
	LevelsGained int
	Progress     domain.UserSummary
	// Removed drops the entry from the board (completed one_time quests).
	Removed bool
}

// Completer completes one quest and reports the new progression.
type Completer func(ctx context.Context, e QuestEntry) (Outcome, error)

type completedMsg struct {
	index   int
	outcome Outcome
	err     error
}

type boardModel struct {
	ctx      context.Context
	complete Completer

	progress domain.UserSummary
	entries  []QuestEntry
	cursor   int
	busy     bool
	status   string
	err      string
	quitting bool
}

func newBoard(ctx context.Context, v dashboard.View, complete Completer) boardModel {
	return boardModel{
		ctx:      ctx,
		complete: complete,
		progress: v.Progress,
		entries:  Entries(v),
	}
}

func (m boardModel) Init() tea.Cmd {
	return nil
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.entries)-1 {
				m.cursor++
			}
		case "enter", " ":
			return m.startCompletion()
		}
	case completedMsg:
		return m.finishCompletion(msg), nil
	}
	return m, nil
}

func (m boardModel) startCompletion() (tea.Model, tea.Cmd) {
	if m.busy || len(m.entries) == 0 {
		return m, nil
	}
	m.busy = true
	m.err = ""
	idx, entry := m.cursor, m.entries[m.cursor]
	ctx, complete := m.ctx, m.complete
	return m, func() tea.Msg {
		out, err := complete(ctx, entry)
		return completedMsg{index: idx, outcome: out, err: err}
	}
}

func (m boardModel) finishCompletion(msg completedMsg) boardModel {
	m.busy = false
	if msg.err != nil {
		m.err = humanError(msg.err)
		return m
	}
	if msg.index < 0 || msg.index >= len(m.entries) {
		return m
	}
	name := m.entries[msg.index].Name
	m.progress = msg.outcome.Progress
	m.status = fmt.Sprintf("達成！ %s +%d XP", name, msg.outcome.XPGained)
	if msg.outcome.LevelsGained > 0 {
		m.status += fmt.Sprintf("  レベルアップ！ → %d", m.progress.Level)
	}

	entries := append([]QuestEntry(nil), m.entries...)
	if msg.outcome.Removed {
		entries = append(entries[:msg.index], entries[msg.index+1:]...)
	} else {
		entries[msg.index].Done = entries[msg.index].Server
	}
	m.entries = entries
	if m.cursor >= len(m.entries) && m.cursor > 0 {
		m.cursor = len(m.entries) - 1
	}
	return m
}

func (m boardModel) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n  " + levelLine(m.progress) + "\n\n")
	b.WriteString("  " + titleS.Render("クエストリスト") + "\n\n")
	if len(m.entries) == 0 {
		b.WriteString("  " + dimS.Render("まだクエストが登録されていません") + "\n")
	}
	for i, e := range m.entries {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		b.WriteString(fmt.Sprintf("  %s%-30s %s\n", cursor, e.Name, dimS.Render(e.badge())))
	}
	if m.busy {
		b.WriteString("\n  " + dimS.Render("completing...") + "\n")
	}
	if m.status != "" {
		b.WriteString("\n  " + roleS.Render(m.status) + "\n")
	}
	if m.err != "" {
		b.WriteString("\n  " + errS.Render("⚠ "+m.err) + "\n")
	}
	b.WriteString("\n  [↑↓] Navigate  [Enter] 達成！  [q] Quit\n")
	return b.String()
}

// RunBoard shows the interactive quest board until the user quits or ctx
// is canceled.
func RunBoard(ctx context.Context, v dashboard.View, complete Completer) error {
	defer restoreTerminal()

	p := tea.NewProgram(newBoard(ctx, v, complete))
	done := make(chan error, 1)
	go func() {
		_, err := p.Run()
		done <- err
	}()

	select {
	case <-ctx.Done():
		p.Quit()
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}
