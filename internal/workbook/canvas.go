package workbook

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/basket/go-craft/internal/progress"
	"github.com/basket/go-craft/internal/selection"
)

// CanvasView is the step 4 working state.
type CanvasView struct {
	Cards       []Card           `json:"cards"`
	Palette     []selection.Item `json:"palette"`
	Assignments []Assignment     `json:"assignments"`
	Placements  []Placement      `json:"placements"`
}

// TagsFor returns the selections assigned to cardID in palette order.
func (v CanvasView) TagsFor(cardID int64) []selection.Item {
	assigned := make(map[string]bool)
	for _, a := range v.Assignments {
		if a.CardID == cardID {
			assigned[a.ItemID] = true
		}
	}
	var out []selection.Item
	for _, item := range v.Palette {
		if assigned[item.ID] {
			out = append(out, item)
		}
	}
	return out
}

// Canvas rebuilds the step 4 view.
func (w *Workbook) Canvas(ctx context.Context) CanvasView {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canvas(ctx)
}

func (w *Workbook) canvas(ctx context.Context) CanvasView {
	cards := w.loadCards(ctx)
	palette := w.palette(ctx)
	items := selection.Index(palette)
	return CanvasView{
		Cards:       cards,
		Palette:     palette,
		Assignments: w.reconcileAssignments(ctx, cardIndex(cards), items),
		Placements:  w.reconcilePlacements(ctx, items),
	}
}

// reconcileAssignments drops assignments whose card or item is gone, and
// repeated pairs.
func (w *Workbook) reconcileAssignments(ctx context.Context, cards map[int64]Card, items map[string]selection.Item) []Assignment {
	saved := progress.Load(ctx, w.store, progress.KeyAssignments, []Assignment{})
	seen := make(map[Assignment]struct{}, len(saved))
	kept := make([]Assignment, 0, len(saved))
	for _, a := range saved {
		if _, ok := cards[a.CardID]; !ok {
			continue
		}
		if _, ok := items[a.ItemID]; !ok {
			continue
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		kept = append(kept, a)
	}
	if len(kept) != len(saved) {
		w.logger.Debug("pruned dangling assignments", "dropped", len(saved)-len(kept))
		progress.Save(ctx, w.store, progress.KeyAssignments, kept)
	}
	return kept
}

// reconcilePlacements drops placements whose item is gone and keeps only the
// first placement per item.
func (w *Workbook) reconcilePlacements(ctx context.Context, items map[string]selection.Item) []Placement {
	saved := progress.Load(ctx, w.store, progress.KeyPlacements, []Placement{})
	seen := make(map[string]struct{}, len(saved))
	kept := make([]Placement, 0, len(saved))
	for _, p := range saved {
		if _, ok := items[p.ItemID]; !ok {
			continue
		}
		if _, dup := seen[p.ItemID]; dup {
			continue
		}
		seen[p.ItemID] = struct{}{}
		kept = append(kept, p)
	}
	if len(kept) != len(saved) {
		w.logger.Debug("pruned dangling placements", "dropped", len(saved)-len(kept))
		progress.Save(ctx, w.store, progress.KeyPlacements, kept)
	}
	return kept
}

// Assign binds itemID to cardID. Assigning an existing pair is a no-op.
func (w *Workbook) Assign(ctx context.Context, cardID int64, itemID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	view := w.canvas(ctx)
	if !slices.ContainsFunc(view.Cards, func(c Card) bool { return c.ID == cardID }) {
		return fmt.Errorf("assign to card %d: %w", cardID, ErrUnknownCard)
	}
	if !slices.ContainsFunc(view.Palette, func(it selection.Item) bool { return it.ID == itemID }) {
		return fmt.Errorf("assign %q: %w", itemID, ErrUnknownItem)
	}
	a := Assignment{CardID: cardID, ItemID: itemID}
	if slices.Contains(view.Assignments, a) {
		return nil
	}
	progress.Save(ctx, w.store, progress.KeyAssignments, append(view.Assignments, a))
	return nil
}

// Unassign removes one tag from one card.
func (w *Workbook) Unassign(ctx context.Context, cardID int64, itemID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	view := w.canvas(ctx)
	kept := slices.DeleteFunc(view.Assignments, func(a Assignment) bool {
		return a.CardID == cardID && a.ItemID == itemID
	})
	progress.Save(ctx, w.store, progress.KeyAssignments, kept)
}

// Place drops itemID on the canvas. If the item is already placed, the
// existing placement is moved instead and created is false.
func (w *Workbook) Place(ctx context.Context, itemID string, x, y float64) (p Placement, created bool, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	view := w.canvas(ctx)
	if !slices.ContainsFunc(view.Palette, func(it selection.Item) bool { return it.ID == itemID }) {
		return Placement{}, false, fmt.Errorf("place %q: %w", itemID, ErrUnknownItem)
	}
	placements := view.Placements
	if i := slices.IndexFunc(placements, func(p Placement) bool { return p.ItemID == itemID }); i >= 0 {
		placements[i].X, placements[i].Y = clampUnit(x), clampUnit(y)
		progress.Save(ctx, w.store, progress.KeyPlacements, placements)
		return placements[i], false, nil
	}
	p = Placement{
		ID:     itemID + "::" + strconv.FormatInt(w.now().UnixMilli(), 10),
		ItemID: itemID,
		X:      clampUnit(x),
		Y:      clampUnit(y),
	}
	progress.Save(ctx, w.store, progress.KeyPlacements, append(placements, p))
	return p, true, nil
}

// MovePlacement updates coordinates of an existing placement.
func (w *Workbook) MovePlacement(ctx context.Context, id string, x, y float64) (Placement, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	placements := w.canvas(ctx).Placements
	i := slices.IndexFunc(placements, func(p Placement) bool { return p.ID == id })
	if i < 0 {
		return Placement{}, fmt.Errorf("move placement %q: %w", id, ErrUnknownPlacement)
	}
	placements[i].X, placements[i].Y = clampUnit(x), clampUnit(y)
	progress.Save(ctx, w.store, progress.KeyPlacements, placements)
	return placements[i], nil
}

// RemovePlacement deletes a placement by id.
func (w *Workbook) RemovePlacement(ctx context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	placements := w.canvas(ctx).Placements
	n := len(placements)
	placements = slices.DeleteFunc(placements, func(p Placement) bool { return p.ID == id })
	if len(placements) == n {
		return fmt.Errorf("remove placement %q: %w", id, ErrUnknownPlacement)
	}
	progress.Save(ctx, w.store, progress.KeyPlacements, placements)
	return nil
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
