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

// RoleView is the step 6 working state.
type RoleView struct {
	Roles     []string       `json:"roles"`
	WorkItems []WorkItemView `json:"workItems"`
	Ready     bool           `json:"ready"`
}

// Roles returns the role palette.
func (w *Workbook) Roles(ctx context.Context) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loadRoles(ctx)
}

func (w *Workbook) loadRoles(ctx context.Context) []string {
	saved := progress.Load(ctx, w.store, progress.KeyRoles, []string{})
	out := make([]string, 0, len(saved))
	for _, r := range saved {
		r = strings.TrimSpace(r)
		if r != "" && !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}

// AddRole appends a role to the palette.
func (w *Workbook) AddRole(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("add role: %w", ErrEmptyLabel)
	}
	if utf8.RuneCountInString(name) > MaxLabelLength {
		return fmt.Errorf("add role: %w (maximum is %d characters)", ErrLabelTooLong, MaxLabelLength)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	roles := w.loadRoles(ctx)
	if slices.Contains(roles, name) {
		return fmt.Errorf("add role %q: %w", name, ErrDuplicateRole)
	}
	if len(roles) >= MaxRoles {
		return fmt.Errorf("add role %q: %w (maximum is %d)", name, ErrRoleLimit, MaxRoles)
	}
	progress.Save(ctx, w.store, progress.KeyRoles, append(roles, name))
	return nil
}

// RemoveRole drops a role from the palette and from every work item.
func (w *Workbook) RemoveRole(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)

	w.mu.Lock()
	defer w.mu.Unlock()

	roles := w.loadRoles(ctx)
	n := len(roles)
	roles = slices.DeleteFunc(roles, func(r string) bool { return r == name })
	if len(roles) == n {
		return fmt.Errorf("remove role %q: %w", name, ErrUnknownRole)
	}
	progress.Save(ctx, w.store, progress.KeyRoles, roles)

	items := progress.Load(ctx, w.store, progress.KeyWorkItems, []WorkItemView{})
	for i := range items {
		items[i].Roles = slices.DeleteFunc(items[i].Roles, func(r string) bool { return r == name })
	}
	progress.Save(ctx, w.store, progress.KeyWorkItems, items)
	return nil
}

// AttachRole adds a palette role to a card. Attaching twice is a no-op.
func (w *Workbook) AttachRole(ctx context.Context, cardID int64, role string) (WorkItemView, error) {
	role = strings.TrimSpace(role)
	return w.updateRoles(ctx, cardID, func(v *WorkItemView, palette []string) error {
		if !slices.Contains(palette, role) {
			return fmt.Errorf("attach role %q to card %d: %w", role, cardID, ErrUnknownRole)
		}
		if !slices.Contains(v.Roles, role) {
			v.Roles = append(v.Roles, role)
		}
		return nil
	})
}

// DetachRole removes a role from a card.
func (w *Workbook) DetachRole(ctx context.Context, cardID int64, role string) (WorkItemView, error) {
	role = strings.TrimSpace(role)
	return w.updateRoles(ctx, cardID, func(v *WorkItemView, _ []string) error {
		v.Roles = slices.DeleteFunc(v.Roles, func(r string) bool { return r == role })
		return nil
	})
}

func (w *Workbook) updateRoles(ctx context.Context, cardID int64, mutate func(*WorkItemView, []string) error) (WorkItemView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	palette := w.loadRoles(ctx)
	items := w.workItems(ctx, palette)
	i := slices.IndexFunc(items, func(v WorkItemView) bool { return v.ID == cardID })
	if i < 0 {
		return WorkItemView{}, fmt.Errorf("update roles of card %d: %w", cardID, ErrUnknownCard)
	}
	if err := mutate(&items[i], palette); err != nil {
		return WorkItemView{}, err
	}
	progress.Save(ctx, w.store, progress.KeyWorkItems, items)
	return items[i], nil
}

// RoleBoard rebuilds the step 6 view.
func (w *Workbook) RoleBoard(ctx context.Context) RoleView {
	w.mu.Lock()
	defer w.mu.Unlock()

	roles := w.loadRoles(ctx)
	items := w.workItems(ctx, roles)
	view := RoleView{Roles: roles, WorkItems: items, Ready: len(w.loadCards(ctx)) == 0}
	for _, it := range items {
		if len(it.Roles) > 0 {
			view.Ready = true
			break
		}
	}
	return view
}

// WorkItems returns the step 6 work items, rebuilt from steps 1, 4 and 5.
func (w *Workbook) WorkItems(ctx context.Context) []WorkItemView {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.workItems(ctx, w.loadRoles(ctx))
}

// workItems rebuilds the view and persists it. Without any cards the saved
// view is returned unchanged.
func (w *Workbook) workItems(ctx context.Context, palette []string) []WorkItemView {
	saved := progress.Load(ctx, w.store, progress.KeyWorkItems, []WorkItemView{})
	plan := w.planBoard(ctx)
	if len(plan.Cards) == 0 {
		return saved
	}

	carried := make(map[int64][]string, len(saved))
	for _, v := range saved {
		carried[v.ID] = v.Roles
	}

	items := make([]WorkItemView, 0, len(plan.Cards))
	for _, c := range plan.Cards {
		v := WorkItemView{
			ID:          c.ID,
			Name:        c.Content,
			Energy:      c.Energy,
			Motivations: []string{},
			Preferences: []string{},
			Plan:        c.Plan,
			Roles:       []string{},
		}
		if strings.TrimSpace(v.Name) == "" {
			v.Name = UnnamedCard
		}
		for _, tag := range c.Tags {
			if tag.Category == selection.Preference {
				v.Preferences = append(v.Preferences, tag.Label)
			} else {
				v.Motivations = append(v.Motivations, tag.Label)
			}
		}
		for _, r := range carried[c.ID] {
			if slices.Contains(palette, r) && !slices.Contains(v.Roles, r) {
				v.Roles = append(v.Roles, r)
			}
		}
		items = append(items, v)
	}
	progress.Save(ctx, w.store, progress.KeyWorkItems, items)
	return items
}
