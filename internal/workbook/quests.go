package workbook

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/basket/go-craft/internal/identity"
	"github.com/basket/go-craft/internal/progress"
	"github.com/basket/go-craft/internal/progression"
)

// QuestCompletion is the outcome of completing a local quest.
type QuestCompletion struct {
	Quest        Quest                   `json:"quest"`
	XPGained     int                     `json:"xp_gained"`
	Before       progression.Progression `json:"before"`
	After        progression.Progression `json:"after"`
	LevelsGained int                     `json:"levels_gained"`
}

// Quests returns the step 7-2 quest list.
func (w *Workbook) Quests(ctx context.Context) []Quest {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loadQuests(ctx)
}

func (w *Workbook) loadQuests(ctx context.Context) []Quest {
	return progress.Load(ctx, w.store, progress.KeyQuests, []Quest{})
}

// AddQuest appends a quest worth the xp of its difficulty (easy, normal or
// hard).
func (w *Workbook) AddQuest(ctx context.Context, name, difficulty string) (Quest, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Quest{}, fmt.Errorf("add quest: %w", ErrEmptyLabel)
	}
	if utf8.RuneCountInString(name) > MaxQuestNameLength {
		return Quest{}, fmt.Errorf("add quest: %w (maximum is %d characters)", ErrLabelTooLong, MaxQuestNameLength)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	quests := w.loadQuests(ctx)
	var next int64 = 1
	for _, q := range quests {
		if q.ID >= next {
			next = q.ID + 1
		}
	}
	q := Quest{ID: next, Name: name, XP: progression.LocalQuestXP(difficulty)}
	progress.Save(ctx, w.store, progress.KeyQuests, append(quests, q))
	return q, nil
}

// RemoveQuest deletes a quest by id.
func (w *Workbook) RemoveQuest(ctx context.Context, id int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	quests := w.loadQuests(ctx)
	n := len(quests)
	quests = slices.DeleteFunc(quests, func(q Quest) bool { return q.ID == id })
	if len(quests) == n {
		return fmt.Errorf("remove quest %d: %w", id, ErrUnknownQuest)
	}
	progress.Save(ctx, w.store, progress.KeyQuests, quests)
	return nil
}

// CompleteQuest awards the quest's xp through ledger and refreshes the local
// mirror from the ledger's answer. Local quests are repeatable and stay in
// the list.
func (w *Workbook) CompleteQuest(ctx context.Context, ident identity.Context, id int64, ledger progression.Ledger) (QuestCompletion, error) {
	w.mu.Lock()
	quests := w.loadQuests(ctx)
	before := w.mirror(ctx)
	w.mu.Unlock()

	i := slices.IndexFunc(quests, func(q Quest) bool { return q.ID == id })
	if i < 0 {
		return QuestCompletion{}, fmt.Errorf("complete quest %d: %w", id, ErrUnknownQuest)
	}
	q := quests[i]

	after, err := ledger.Award(ctx, ident.UserID, q.XP)
	if err != nil {
		return QuestCompletion{}, fmt.Errorf("complete quest %d: %w", id, err)
	}
	w.SyncMirror(ctx, after)

	out := QuestCompletion{
		Quest:        q,
		XPGained:     q.XP,
		Before:       before,
		After:        after,
		LevelsGained: progression.LevelsGained(before, after),
	}
	w.logger.Info("quest completed", "quest_id", q.ID, "xp", q.XP, "level", after.Level, "user_id", ident.UserID)
	return out, nil
}

// Mirror returns the cached level and xp.
func (w *Workbook) Mirror(ctx context.Context) progression.Progression {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mirror(ctx)
}

func (w *Workbook) mirror(ctx context.Context) progression.Progression {
	return progression.Progression{
		Level: progress.Load(ctx, w.store, progress.KeyUserLevel, 1),
		XP:    progress.Load(ctx, w.store, progress.KeyUserXP, 0),
	}.Normalize()
}

// SyncMirror overwrites the cached level and xp with p.
func (w *Workbook) SyncMirror(ctx context.Context, p progression.Progression) {
	p = p.Normalize()
	w.mu.Lock()
	defer w.mu.Unlock()
	progress.Save(ctx, w.store, progress.KeyUserLevel, p.Level)
	progress.Save(ctx, w.store, progress.KeyUserXP, p.XP)
}

// OfflineLedger is the ledger used when no server owns progression. Its state
// lives in the workbook mirror, so the mirror is the ledger rather than a copy
// of it.
type OfflineLedger struct {
	w      *Workbook
	memory *progression.MemoryLedger

	mu sync.Mutex
}

func (w *Workbook) OfflineLedger() *OfflineLedger {
	return &OfflineLedger{w: w, memory: progression.NewMemoryLedger()}
}

func (l *OfflineLedger) Award(ctx context.Context, userID int64, xp int) (progression.Progression, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.memory.Seed(userID, l.w.Mirror(ctx))
	p, err := l.memory.Award(ctx, userID, xp)
	if err != nil {
		return progression.Progression{}, err
	}
	l.w.SyncMirror(ctx, p)
	return p, nil
}

func (l *OfflineLedger) Current(ctx context.Context, _ int64) (progression.Progression, error) {
	return l.w.Mirror(ctx), nil
}
