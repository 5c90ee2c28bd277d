package workbook

import (
	"context"
	"fmt"
	"slices"

	"github.com/basket/go-craft/internal/progress"
)

// Cards returns the step 1 work inventory.
func (w *Workbook) Cards(ctx context.Context) []Card {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loadCards(ctx)
}

// AddCard appends a card with the next free id and no energy allocated.
func (w *Workbook) AddCard(ctx context.Context, content string) Card {
	w.mu.Lock()
	defer w.mu.Unlock()

	cards := w.loadCards(ctx)
	var next int64 = 1
	for _, c := range cards {
		if c.ID >= next {
			next = c.ID + 1
		}
	}
	card := Card{ID: next, Content: content}
	cards = append(cards, card)
	progress.Save(ctx, w.store, progress.KeyCards, cards)
	return card
}

// SetCardContent replaces the text of a card.
func (w *Workbook) SetCardContent(ctx context.Context, id int64, content string) (Card, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	cards := w.loadCards(ctx)
	i := slices.IndexFunc(cards, func(c Card) bool { return c.ID == id })
	if i < 0 {
		return Card{}, fmt.Errorf("set content of card %d: %w", id, ErrUnknownCard)
	}
	cards[i].Content = content
	progress.Save(ctx, w.store, progress.KeyCards, cards)
	return cards[i], nil
}

// SetEnergy changes a card's allocation. An increase is rejected when the
// total across all cards would exceed 100; decreases always apply.
func (w *Workbook) SetEnergy(ctx context.Context, id int64, energy int) (Card, error) {
	if energy < 0 || energy > 100 {
		return Card{}, fmt.Errorf("set energy of card %d to %d: %w", id, energy, ErrEnergyOutOfRange)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	cards := w.loadCards(ctx)
	i := slices.IndexFunc(cards, func(c Card) bool { return c.ID == id })
	if i < 0 {
		return Card{}, fmt.Errorf("set energy of card %d: %w", id, ErrUnknownCard)
	}
	if energy > cards[i].Energy {
		total := energy
		for j, c := range cards {
			if j != i {
				total += c.Energy
			}
		}
		if total > 100 {
			return cards[i], fmt.Errorf("set energy of card %d to %d (total %d): %w", id, energy, total, ErrEnergyExceeded)
		}
	}
	cards[i].Energy = energy
	progress.Save(ctx, w.store, progress.KeyCards, cards)
	return cards[i], nil
}

// TotalEnergy sums the allocation over all cards.
func TotalEnergy(cards []Card) int {
	total := 0
	for _, c := range cards {
		total += c.Energy
	}
	return total
}

// DeleteCard removes a card together with its assignments, plan and step 6
// annotations.
func (w *Workbook) DeleteCard(ctx context.Context, id int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	cards := w.loadCards(ctx)
	i := slices.IndexFunc(cards, func(c Card) bool { return c.ID == id })
	if i < 0 {
		return fmt.Errorf("delete card %d: %w", id, ErrUnknownCard)
	}
	cards = slices.Delete(cards, i, i+1)
	progress.Save(ctx, w.store, progress.KeyCards, cards)

	assignments := progress.Load(ctx, w.store, progress.KeyAssignments, []Assignment{})
	assignments = slices.DeleteFunc(assignments, func(a Assignment) bool { return a.CardID == id })
	progress.Save(ctx, w.store, progress.KeyAssignments, assignments)

	plans := progress.Load(ctx, w.store, progress.KeyCardPlans, map[int64]Plan{})
	if _, ok := plans[id]; ok {
		delete(plans, id)
		progress.Save(ctx, w.store, progress.KeyCardPlans, plans)
	}

	items := progress.Load(ctx, w.store, progress.KeyWorkItems, []WorkItemView{})
	if n := len(items); n > 0 {
		items = slices.DeleteFunc(items, func(v WorkItemView) bool { return v.ID == id })
		if len(items) != n {
			progress.Save(ctx, w.store, progress.KeyWorkItems, items)
		}
	}

	w.logger.Info("card deleted", "card_id", id)
	return nil
}
