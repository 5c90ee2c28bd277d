package workbook

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/basket/go-craft/internal/domain"
	"github.com/basket/go-craft/internal/identity"
	"github.com/basket/go-craft/internal/selection"
)

// errNoRecord is reported when the server accepts a create but sends back
// no record to link against.
var errNoRecord = errors.New("server sent no record")

// Remote is the part of the domain API used to promote local drafts.
type Remote interface {
	Masters(ctx context.Context, ident identity.Context, cat selection.Category) ([]domain.Master, error)
	CreateMaster(ctx context.Context, ident identity.Context, cat selection.Category, label string) (*domain.Master, error)
	ListPeople(ctx context.Context, ident identity.Context) ([]domain.Person, error)
	CreatePerson(ctx context.Context, ident identity.Context, name string) (*domain.Person, error)
	ListRoleCategories(ctx context.Context, ident identity.Context) ([]domain.RoleCategory, error)
	CreateRoleCategory(ctx context.Context, ident identity.Context, name string) (*domain.RoleCategory, error)
	ListWorkItems(ctx context.Context, ident identity.Context) ([]domain.WorkItem, error)
	CreateWorkItem(ctx context.Context, ident identity.Context, in domain.WorkItemInput) (*domain.WorkItem, error)
	AttachWorkItemTag(ctx context.Context, ident identity.Context, workItemID int64, kind domain.TagKind, tagID int64) error
	ListActions(ctx context.Context, ident identity.Context) ([]domain.Action, error)
	CreateAction(ctx context.Context, ident identity.Context, in domain.ActionInput) (*domain.Action, error)
	SaveActionPlan(ctx context.Context, ident identity.Context, in domain.ActionPlanInput) (*domain.ActionPlan, error)
	SaveReflection(ctx context.Context, ident identity.Context, in domain.ReflectionInput) (*domain.Reflection, error)
}

// SyncReport counts what a sync created on the server.
type SyncReport struct {
	WorkItems  int  `json:"work_items"`
	Skipped    int  `json:"skipped"`
	Tags       int  `json:"tags"`
	Actions    int  `json:"actions"`
	Quests     int  `json:"quests"`
	ActionPlan bool `json:"action_plan"`
	Reflection bool `json:"reflection"`
}

// Sync promotes the step 6 work items with their tags, people and roles,
// the step 5 actions, the drafts and the local quests to the server. Work
// items and quests whose name already exists remotely are skipped. A failure
// on one record does not stop the others; all failures are joined.
func (w *Workbook) Sync(ctx context.Context, ident identity.Context, remote Remote) (SyncReport, error) {
	items := w.WorkItems(ctx)
	quests := w.Quests(ctx)
	plan := w.ActionPlan(ctx)
	reflection := w.Reflection(ctx)

	var report SyncReport
	var errs []error
	fail := func(err error) { errs = append(errs, err) }

	if len(items) > 0 {
		refs, err := w.resolveRefs(ctx, ident, remote, items)
		if err != nil {
			return report, err
		}
		fail(refs.err)

		existing, err := remote.ListWorkItems(ctx, ident)
		if err != nil {
			return report, fmt.Errorf("sync work items: %w", err)
		}
		known := make(map[string]bool, len(existing))
		for _, wi := range existing {
			known[wi.Name] = true
		}

		for _, it := range items {
			if known[it.Name] {
				report.Skipped++
				continue
			}
			energy := float64(it.Energy)
			name := it.Name
			created, err := remote.CreateWorkItem(ctx, ident, domain.WorkItemInput{Name: &name, EnergyPercentage: &energy})
			if err == nil && created == nil {
				err = errNoRecord
			}
			if err != nil {
				fail(fmt.Errorf("sync work item %q: %w", it.Name, err))
				continue
			}
			report.WorkItems++
			known[it.Name] = true

			for _, link := range refs.linksFor(it) {
				if err := remote.AttachWorkItemTag(ctx, ident, created.ID, link.kind, link.id); err != nil {
					fail(fmt.Errorf("sync %s tag of %q: %w", link.kind, it.Name, err))
					continue
				}
				report.Tags++
			}
			if it.Plan != nil && strings.TrimSpace(it.Plan.Action) != "" {
				if err := createPlanAction(ctx, ident, remote, created.ID, it.Plan.Action); err != nil {
					fail(fmt.Errorf("sync action of %q: %w", it.Name, err))
				} else {
					report.Actions++
				}
			}
		}
	}

	if !plan.Empty() {
		_, err := remote.SaveActionPlan(ctx, ident, domain.ActionPlanInput{
			NextActions:           &plan.NextActions,
			Collaborators:         &plan.Collaborators,
			ObstaclesAndSolutions: &plan.Obstacles,
		})
		if err != nil {
			fail(fmt.Errorf("sync action plan: %w", err))
		} else {
			report.ActionPlan = true
		}
	}

	if reflection.Complete() {
		_, err := remote.SaveReflection(ctx, ident, domain.ReflectionInput{
			Question1Change:        &reflection.Change,
			Question2EmotionReason: &reflection.EmotionReason,
			Question3Surprise:      &reflection.Surprise,
		})
		if err != nil {
			fail(fmt.Errorf("sync reflection: %w", err))
		} else {
			report.Reflection = true
		}
	}

	if len(quests) > 0 {
		n, err := syncQuests(ctx, ident, remote, quests)
		report.Quests = n
		fail(err)
	}

	w.logger.Info("workbook synced",
		"user_id", ident.UserID,
		"work_items", report.WorkItems,
		"skipped", report.Skipped,
		"tags", report.Tags,
		"quests", report.Quests,
	)
	return report, errors.Join(errs...)
}

type tagLink struct {
	kind domain.TagKind
	id   int64
}

// remoteRefs maps local labels to server ids.
type remoteRefs struct {
	motivations map[string]int64
	preferences map[string]int64
	people      map[string]int64
	roles       map[string]int64
	err         error
}

func (r remoteRefs) linksFor(it WorkItemView) []tagLink {
	var out []tagLink
	add := func(kind domain.TagKind, idx map[string]int64, name string) {
		if id, ok := idx[name]; ok {
			out = append(out, tagLink{kind: kind, id: id})
		}
	}
	for _, m := range it.Motivations {
		add(domain.TagMotivations, r.motivations, m)
	}
	for _, p := range it.Preferences {
		add(domain.TagPreferences, r.preferences, p)
	}
	if it.Plan != nil && it.Plan.Person != nil {
		add(domain.TagPeople, r.people, *it.Plan.Person)
	}
	for _, role := range it.Roles {
		add(domain.TagRoleCategories, r.roles, role)
	}
	return out
}

// resolveRefs finds or creates every master, person and role category the
// work items refer to. Listing failures abort; individual create failures
// are collected in err.
func (w *Workbook) resolveRefs(ctx context.Context, ident identity.Context, remote Remote, items []WorkItemView) (remoteRefs, error) {
	refs := remoteRefs{
		motivations: map[string]int64{},
		preferences: map[string]int64{},
		people:      map[string]int64{},
		roles:       map[string]int64{},
	}
	var errs []error

	for _, cat := range []selection.Category{selection.Motivation, selection.Preference} {
		idx := refs.motivations
		if cat == selection.Preference {
			idx = refs.preferences
		}
		masters, err := remote.Masters(ctx, ident, cat)
		if err != nil {
			return refs, fmt.Errorf("sync %s masters: %w", cat, err)
		}
		for _, m := range masters {
			if _, ok := idx[m.Name]; !ok {
				idx[m.Name] = m.ID
			}
		}
		for _, it := range items {
			labels := it.Motivations
			if cat == selection.Preference {
				labels = it.Preferences
			}
			for _, label := range labels {
				if _, ok := idx[label]; ok {
					continue
				}
				m, err := remote.CreateMaster(ctx, ident, cat, label)
				if err == nil && m == nil {
					err = errNoRecord
				}
				if err != nil {
					errs = append(errs, fmt.Errorf("sync %s master %q: %w", cat, label, err))
					continue
				}
				idx[label] = m.ID
			}
		}
	}

	people, err := remote.ListPeople(ctx, ident)
	if err != nil {
		return refs, fmt.Errorf("sync people: %w", err)
	}
	for _, p := range people {
		refs.people[p.Name] = p.ID
	}
	roles, err := remote.ListRoleCategories(ctx, ident)
	if err != nil {
		return refs, fmt.Errorf("sync role categories: %w", err)
	}
	for _, r := range roles {
		refs.roles[r.Name] = r.ID
	}

	for _, it := range items {
		if it.Plan != nil && it.Plan.Person != nil {
			name := *it.Plan.Person
			if _, ok := refs.people[name]; !ok {
				p, err := remote.CreatePerson(ctx, ident, name)
				if err == nil && p == nil {
					err = errNoRecord
				}
				if err != nil {
					errs = append(errs, fmt.Errorf("sync person %q: %w", name, err))
				} else {
					refs.people[name] = p.ID
				}
			}
		}
		for _, role := range it.Roles {
			if _, ok := refs.roles[role]; ok {
				continue
			}
			r, err := remote.CreateRoleCategory(ctx, ident, role)
			if err == nil && r == nil {
				err = errNoRecord
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("sync role %q: %w", role, err))
				continue
			}
			refs.roles[role] = r.ID
		}
	}

	refs.err = errors.Join(errs...)
	return refs, nil
}

func createPlanAction(ctx context.Context, ident identity.Context, remote Remote, workItemID int64, action string) error {
	name := truncateRunes(strings.TrimSpace(action), MaxQuestNameLength)
	task := domain.ActionTask
	_, err := remote.CreateAction(ctx, ident, domain.ActionInput{
		Name:       &name,
		ActionType: &task,
		WorkItemID: &workItemID,
	})
	return err
}

// syncQuests turns local quests into recurring server quests. The local xp
// picks the server difficulty so the server derives the same reward.
func syncQuests(ctx context.Context, ident identity.Context, remote Remote, quests []Quest) (int, error) {
	existing, err := remote.ListActions(ctx, ident)
	if err != nil {
		return 0, fmt.Errorf("sync quests: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, a := range existing {
		if a.IsQuest() {
			known[a.Name] = true
		}
	}

	var errs []error
	created := 0
	for _, q := range quests {
		if known[q.Name] {
			continue
		}
		name := q.Name
		questType := domain.QuestRecurring
		kind := domain.ActionQuest
		difficulty := difficultyForXP(q.XP)
		_, err := remote.CreateAction(ctx, ident, domain.ActionInput{
			Name:       &name,
			ActionType: &kind,
			Difficulty: &difficulty,
			QuestType:  &questType,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("sync quest %q: %w", q.Name, err))
			continue
		}
		known[q.Name] = true
		created++
	}
	return created, errors.Join(errs...)
}

func difficultyForXP(xp int) string {
	switch {
	case xp <= 10:
		return "easy"
	case xp >= 50:
		return "hard"
	default:
		return "medium"
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
