package workbook

import (
	"context"
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/basket/go-craft/internal/progress"
	"github.com/basket/go-craft/internal/selection"
)

// Selections returns the step 3 picks for one category. Legacy plain-label
// entries decode under the category itself.
func (w *Workbook) Selections(ctx context.Context, c selection.Category) []selection.Item {
	w.mu.Lock()
	defer w.mu.Unlock()
	return selection.DecodeAll(w.selectionIDs(ctx, c), c)
}

// Palette is the merged, ordered list of every current selection.
func (w *Workbook) Palette(ctx context.Context) []selection.Item {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.palette(ctx)
}

// ToggleSelection selects label when absent and deselects it when present.
// It reports whether the label is selected afterwards.
func (w *Workbook) ToggleSelection(ctx context.Context, c selection.Category, label string) (bool, error) {
	item, ok := selection.New(c, label)
	if !ok {
		return false, fmt.Errorf("toggle %s selection: %w", c, ErrEmptyLabel)
	}
	if utf8.RuneCountInString(item.Label) > MaxLabelLength {
		return false, fmt.Errorf("toggle %s selection: %w (maximum is %d characters)", c, ErrLabelTooLong, MaxLabelLength)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	current := selection.Merge(selection.DecodeAll(w.selectionIDs(ctx, c), c))
	if i := slices.IndexFunc(current, func(it selection.Item) bool { return it.ID == item.ID }); i >= 0 {
		current = slices.Delete(current, i, i+1)
		w.saveSelections(ctx, c, current)
		return false, nil
	}
	if len(current) >= MaxSelectionsPerCategory {
		return false, fmt.Errorf("toggle %s selection %q: %w (maximum is %d)", c, item.Label, ErrSelectionLimit, MaxSelectionsPerCategory)
	}
	w.saveSelections(ctx, c, append(current, item))
	return true, nil
}

// RemoveSelection drops id from whichever category holds it. Dependent
// placements and assignments disappear on the next reconciled read.
func (w *Workbook) RemoveSelection(ctx context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	removed := false
	for _, c := range []selection.Category{selection.Motivation, selection.Preference} {
		current := selection.Merge(selection.DecodeAll(w.selectionIDs(ctx, c), c))
		n := len(current)
		current = slices.DeleteFunc(current, func(it selection.Item) bool { return it.ID == id })
		if len(current) != n {
			w.saveSelections(ctx, c, current)
			removed = true
		}
	}
	if !removed {
		return fmt.Errorf("remove selection %q: %w", id, ErrUnknownItem)
	}
	return nil
}

// saveSelections writes canonical ids, which also rewrites legacy entries.
func (w *Workbook) saveSelections(ctx context.Context, c selection.Category, items []selection.Item) {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	progress.Save(ctx, w.store, selectionKey(c), ids)
}
