package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/basket/go-craft/internal/dashboard"
	"github.com/basket/go-craft/internal/domain"
	"github.com/basket/go-craft/internal/progression"
	"github.com/basket/go-craft/internal/workbook"
)

const barWidth = 20

var (
	titleS      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	dimS        = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	itemS       = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	errS        = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	motivationS = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	preferenceS = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	roleS       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	planS       = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	cardS       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

// bar renders pct (0..100) as a fixed width gauge.
func bar(pct int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct * barWidth / 100
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled) + "]"
}

// levelLine is the header gauge, e.g. "レベル 3  [████░░…] 40 / 100 XP".
func levelLine(p domain.UserSummary) string {
	return fmt.Sprintf("%s %d  %s %d / %d XP",
		titleS.Render("レベル"), p.Level, bar(p.XPPercentage), p.ExperiencePoints, progression.XPPerLevel)
}

func chips(style lipgloss.Style, labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		out = append(out, style.Render("#"+l))
	}
	return out
}

func renderWorkItem(it workbook.WorkItemView) string {
	var b strings.Builder
	b.WriteString(itemS.Render(it.Name) + "\n")
	b.WriteString(fmt.Sprintf("%s %s %d%%\n", dimS.Render("エネルギー"), bar(it.Energy), it.Energy))

	tags := append(chips(motivationS, it.Motivations), chips(preferenceS, it.Preferences)...)
	if len(tags) > 0 {
		b.WriteString(strings.Join(tags, " ") + "\n")
	}
	if it.Plan != nil {
		if it.Plan.Person != nil && *it.Plan.Person != "" {
			b.WriteString(planS.Render("誰に: "+*it.Plan.Person) + "\n")
		}
		b.WriteString(planS.Render("何をする: "+it.Plan.Action) + "\n")
	}
	if len(it.Roles) == 0 {
		b.WriteString(dimS.Render("（役割なし）"))
	} else {
		b.WriteString(strings.Join(chips(roleS, it.Roles), " "))
	}
	return cardS.Render(b.String())
}

// RenderDashboard renders the step 8 view as styled text.
func RenderDashboard(v dashboard.View) string {
	var b strings.Builder
	b.WriteString(levelLine(v.Progress) + "\n")
	if v.RemoteError != "" {
		b.WriteString(errS.Render("⚠ server unavailable, showing local data: "+v.RemoteError) + "\n")
	}
	b.WriteString("\n")

	if v.Onboarding {
		b.WriteString(titleS.Render("ようこそ！") + "\n")
		b.WriteString("ジョブクラフティングを始めて、あなたの仕事を再設計しましょう。\n")
		b.WriteString(dimS.Render("Start with: gocraft card add \"<your work>\"") + "\n")
		return b.String()
	}

	b.WriteString(titleS.Render("クラフティングマップ") + "\n")
	if len(v.WorkItems) == 0 {
		b.WriteString(dimS.Render("まだクラフティングマップが作成されていません") + "\n")
	}
	for _, it := range v.WorkItems {
		b.WriteString(renderWorkItem(it) + "\n")
	}

	b.WriteString("\n" + titleS.Render("クエストリスト") + "\n")
	entries := Entries(v)
	if len(entries) == 0 {
		b.WriteString(dimS.Render("まだクエストが登録されていません") + "\n")
	}
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("  %s %s\n", itemS.Render(e.Name), dimS.Render(e.badge())))
	}
	return b.String()
}
