package workbook

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/basket/go-craft/internal/progress"
	"github.com/basket/go-craft/internal/selection"
)

// PlanCard is a card as shown on step 5.
type PlanCard struct {
	Card
	Tags []selection.Item `json:"tags"`
	Plan *Plan            `json:"plan"`
}

// PlanView is the step 5 working state. Ready gates moving on: true when
// there are no cards or every card has both a person and an action.
type PlanView struct {
	Cards  []PlanCard `json:"cards"`
	People []string   `json:"people"`
	Ready  bool       `json:"ready"`
}

// PlanBoard rebuilds the step 5 view.
func (w *Workbook) PlanBoard(ctx context.Context) PlanView {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.planBoard(ctx)
}

func (w *Workbook) planBoard(ctx context.Context) PlanView {
	canvas := w.canvas(ctx)
	people := w.loadPeople(ctx)
	plans := w.reconcilePlans(ctx, cardIndex(canvas.Cards), people)

	view := PlanView{People: people, Ready: true}
	for _, c := range canvas.Cards {
		pc := PlanCard{Card: c, Tags: canvas.TagsFor(c.ID)}
		if p, ok := plans[c.ID]; ok {
			p := p
			pc.Plan = &p
		}
		if pc.Plan == nil || !pc.Plan.Ready() {
			view.Ready = false
		}
		view.Cards = append(view.Cards, pc)
	}
	return view
}

func (w *Workbook) loadPeople(ctx context.Context) []string {
	saved := progress.Load(ctx, w.store, progress.KeyPeople, []string{})
	out := make([]string, 0, len(saved))
	for _, name := range saved {
		name = strings.TrimSpace(name)
		if name != "" && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

// reconcilePlans drops plans for missing cards and clears people who left
// the palette. Actions are kept.
func (w *Workbook) reconcilePlans(ctx context.Context, cards map[int64]Card, people []string) map[int64]Plan {
	saved := progress.Load(ctx, w.store, progress.KeyCardPlans, map[int64]Plan{})
	changed := false
	for id, p := range saved {
		if _, ok := cards[id]; !ok {
			delete(saved, id)
			changed = true
			continue
		}
		if p.Person != nil && !slices.Contains(people, *p.Person) {
			p.Person = nil
			saved[id] = p
			changed = true
		}
	}
	if changed {
		progress.Save(ctx, w.store, progress.KeyCardPlans, saved)
	}
	return saved
}

// AddPerson appends name to the people palette. Repeats are ignored and
// reported with added=false.
func (w *Workbook) AddPerson(ctx context.Context, name string) (added bool, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, fmt.Errorf("add person: %w", ErrEmptyLabel)
	}
	if utf8.RuneCountInString(name) > MaxPersonNameLength {
		return false, fmt.Errorf("add person: %w (maximum is %d characters)", ErrLabelTooLong, MaxPersonNameLength)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	people := w.loadPeople(ctx)
	if slices.Contains(people, name) {
		return false, nil
	}
	progress.Save(ctx, w.store, progress.KeyPeople, append(people, name))
	return true, nil
}

// RemovePerson drops name from the palette and from every plan naming it.
func (w *Workbook) RemovePerson(ctx context.Context, name string) {
	name = strings.TrimSpace(name)

	w.mu.Lock()
	defer w.mu.Unlock()

	people := slices.DeleteFunc(w.loadPeople(ctx), func(p string) bool { return p == name })
	progress.Save(ctx, w.store, progress.KeyPeople, people)

	plans := progress.Load(ctx, w.store, progress.KeyCardPlans, map[int64]Plan{})
	for id, p := range plans {
		if p.Person != nil && *p.Person == name {
			p.Person = nil
			plans[id] = p
		}
	}
	progress.Save(ctx, w.store, progress.KeyCardPlans, plans)
}

// SetPlanPerson assigns a palette person to a card, creating the plan if
// needed.
func (w *Workbook) SetPlanPerson(ctx context.Context, cardID int64, name string) (Plan, error) {
	name = strings.TrimSpace(name)
	return w.updatePlan(ctx, cardID, func(p *Plan, people []string) error {
		if !slices.Contains(people, name) {
			return fmt.Errorf("set person %q on card %d: %w", name, cardID, ErrUnknownPerson)
		}
		p.Person = &name
		return nil
	})
}

// ClearPlanPerson removes the person from a card's plan and keeps its action.
func (w *Workbook) ClearPlanPerson(ctx context.Context, cardID int64) (Plan, error) {
	return w.updatePlan(ctx, cardID, func(p *Plan, _ []string) error {
		p.Person = nil
		return nil
	})
}

// SetPlanAction sets the one-line action for a card.
func (w *Workbook) SetPlanAction(ctx context.Context, cardID int64, action string) (Plan, error) {
	return w.updatePlan(ctx, cardID, func(p *Plan, _ []string) error {
		p.Action = action
		return nil
	})
}

func (w *Workbook) updatePlan(ctx context.Context, cardID int64, mutate func(*Plan, []string) error) (Plan, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	cards := cardIndex(w.loadCards(ctx))
	if _, ok := cards[cardID]; !ok {
		return Plan{}, fmt.Errorf("update plan of card %d: %w", cardID, ErrUnknownCard)
	}
	people := w.loadPeople(ctx)
	plans := w.reconcilePlans(ctx, cards, people)
	p := plans[cardID]
	if err := mutate(&p, people); err != nil {
		return Plan{}, err
	}
	plans[cardID] = p
	progress.Save(ctx, w.store, progress.KeyCardPlans, plans)
	return p, nil
}
