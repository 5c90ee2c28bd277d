package workbook

import (
	"context"

	"github.com/basket/go-craft/internal/progress"
)

// Reflection returns the saved step 2 answers.
func (w *Workbook) Reflection(ctx context.Context) Reflection {
	w.mu.Lock()
	defer w.mu.Unlock()
	return progress.Load(ctx, w.store, progress.KeyReflection, Reflection{})
}

func (w *Workbook) SaveReflection(ctx context.Context, r Reflection) {
	w.mu.Lock()
	defer w.mu.Unlock()
	progress.Save(ctx, w.store, progress.KeyReflection, r)
}

// ActionPlan returns the saved step 7-1 draft.
func (w *Workbook) ActionPlan(ctx context.Context) ActionPlan {
	w.mu.Lock()
	defer w.mu.Unlock()
	return progress.Load(ctx, w.store, progress.KeyActionPlan, ActionPlan{})
}

func (w *Workbook) SaveActionPlan(ctx context.Context, p ActionPlan) {
	w.mu.Lock()
	defer w.mu.Unlock()
	progress.Save(ctx, w.store, progress.KeyActionPlan, p)
}

// Complete reports whether every answer is filled in.
func (r Reflection) Complete() bool {
	return r.Change != "" && r.EmotionReason != "" && r.Surprise != ""
}

// Empty reports whether nothing was written yet.
func (p ActionPlan) Empty() bool {
	return p.NextActions == "" && p.Collaborators == "" && p.Obstacles == ""
}
