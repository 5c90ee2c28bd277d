package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/basket/go-craft/internal/domain"
)

// SharedMotivations and SharedPreferences are the master rows every user sees.
var (
	SharedMotivations = []string{
		"自由を求める", "成長する", "楽しさを求める", "達成感を得る", "権力を求める", "安心を得る",
		"周囲との調和", "伝統を守る", "影響力を高める", "人間性を高める", "人を助ける", "人を導く",
		"とにかく実行する", "新たなものを創造する",
	}
	SharedPreferences = []string{
		"判断力", "よく考える", "創造性", "知恵", "専門性", "学習力", "忍耐力", "集中力", "誠実さ",
		"活力", "寛大さ", "社交性", "趣味のよさ", "楽観性", "ユーモア", "ものごとを整理する",
	}
)

const DemoEmail = "demo@example.com"

type SeedReport struct {
	UserID      int64 `json:"user_id"`
	Masters     int   `json:"masters"`
	WorkItems   int   `json:"work_items"`
	Quests      int   `json:"quests"`
	UserCreated bool  `json:"user_created"`
}

type seedQuest struct {
	name, description, difficulty, questType, period string
	workItem                                         int
}

// Seed creates the shared masters and a demo user with sample work items and
// quests. Running it again creates nothing new.
func (s *Store) Seed(ctx context.Context) (SeedReport, error) {
	var report SeedReport
	for _, m := range []struct {
		kind  domain.MasterKind
		names []string
	}{
		{domain.MotivationMasters, SharedMotivations},
		{domain.PreferenceMasters, SharedPreferences},
	} {
		for _, name := range m.names {
			created, err := s.ensureSharedMaster(ctx, m.kind, name)
			if err != nil {
				return report, fmt.Errorf("seed %s: %w", m.kind, err)
			}
			if created {
				report.Masters++
			}
		}
	}

	var userID int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE email = ?;`, DemoEmail).Scan(&userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		u, err := s.CreateUser(ctx, domain.UserInput{Email: domain.Ptr(DemoEmail), Name: domain.Ptr("デモユーザー")})
		if err != nil {
			return report, fmt.Errorf("seed user: %w", err)
		}
		userID, report.UserCreated = u.ID, true
	case err != nil:
		return report, fmt.Errorf("seed user: %w", err)
	}
	report.UserID = userID

	existing, err := s.ListWorkItems(ctx, userID)
	if err != nil {
		return report, err
	}
	byName := map[string]int64{}
	for _, wi := range existing {
		byName[wi.Name] = wi.ID
	}
	items := []struct {
		name    string
		energy  float64
		reframe string
	}{
		{"プロジェクトマネジメント", 40, "チームを成功に導くリーダーシップ"},
		{"プログラミング", 35, "技術で問題を解決するクリエイター"},
		{"ドキュメント作成", 25, "知識を共有する教育者"},
	}
	ids := make([]int64, len(items))
	for i, it := range items {
		if id, ok := byName[it.name]; ok {
			ids[i] = id
			continue
		}
		wi, err := s.CreateWorkItem(ctx, domain.WorkItemInput{
			UserID: userID, Name: domain.Ptr(it.name), EnergyPercentage: domain.Ptr(it.energy), Reframe: domain.Ptr(it.reframe),
		})
		if err != nil {
			return report, fmt.Errorf("seed work item: %w", err)
		}
		ids[i] = wi.ID
		report.WorkItems++
	}

	actions, err := s.ListActions(ctx, userID)
	if err != nil {
		return report, err
	}
	haveQuest := map[string]bool{}
	for _, a := range actions {
		haveQuest[a.Name] = true
	}
	quests := []seedQuest{
		{"朝のコードレビュー", "チームメンバーのPRをレビューする", "easy", domain.QuestRecurring, domain.PeriodDaily, 1},
		{"週次レポート作成", "プロジェクトの進捗をまとめる", "medium", domain.QuestRecurring, domain.PeriodWeekly, 0},
		{"新機能の実装", "複雑な新機能を実装する", "hard", domain.QuestOneTime, "", 1},
	}
	for _, q := range quests {
		if haveQuest[q.name] {
			continue
		}
		in := domain.ActionInput{
			UserID:      userID,
			Name:        domain.Ptr(q.name),
			Description: domain.Ptr(q.description),
			ActionType:  domain.Ptr(domain.ActionQuest),
			Difficulty:  domain.Ptr(q.difficulty),
			QuestType:   domain.Ptr(q.questType),
			WorkItemID:  domain.Ptr(ids[q.workItem]),
		}
		if q.period != "" {
			in.PeriodType = domain.Ptr(q.period)
		}
		if _, err := s.CreateAction(ctx, in); err != nil {
			return report, fmt.Errorf("seed quest: %w", err)
		}
		report.Quests++
	}
	return report, nil
}
