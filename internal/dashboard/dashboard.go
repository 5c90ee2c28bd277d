// Package dashboard assembles the step 8 view from the server snapshot and
// the local workbook.
package dashboard

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/basket/go-craft/internal/apiclient"
	"github.com/basket/go-craft/internal/domain"
	"github.com/basket/go-craft/internal/identity"
	"github.com/basket/go-craft/internal/workbook"
)

// Source fetches the server snapshot. *apiclient.Client implements it.
type Source interface {
	Dashboard(ctx context.Context, ident identity.Context) (*domain.Snapshot, error)
}

var _ Source = (*apiclient.Client)(nil)

// View is everything the dashboard renders.
type View struct {
	UserID   int64              `json:"user_id"`
	Progress domain.UserSummary `json:"progress"`

	// User is nil when the server is not configured, unreachable, or does
	// not know the user yet.
	User *domain.User `json:"user,omitempty"`

	WorkItems  []workbook.WorkItemView `json:"work_items"`
	Quests     []workbook.Quest        `json:"quests"`
	Actions    []domain.Action         `json:"actions"`
	ActionPlan *domain.ActionPlan      `json:"action_plan,omitempty"`

	// WorkItemsFromServer is false when the map comes from step 6.
	WorkItemsFromServer bool   `json:"work_items_from_server"`
	FirstTimeUser       bool   `json:"first_time_user"`
	Onboarding          bool   `json:"onboarding"`
	RemoteError         string `json:"remote_error,omitempty"`
}

// ServerQuests returns the quest actions of the snapshot.
func (v View) ServerQuests() []domain.Action {
	var out []domain.Action
	for _, a := range v.Actions {
		if a.IsQuest() {
			out = append(out, a)
		}
	}
	return out
}

type Aggregator struct {
	wb     *workbook.Workbook
	source Source
	logger *slog.Logger
}

// New builds an aggregator. source may be nil for offline use.
func New(wb *workbook.Workbook, source Source, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{wb: wb, source: source, logger: logger.With("component", "dashboard")}
}

// Build never fails because of the server: a missing user is reported as
// FirstTimeUser and a transport failure as RemoteError, both falling back to
// local data. An empty answer leaves the level mirror as it was.
func (a *Aggregator) Build(ctx context.Context, ident identity.Context) (View, error) {
	if err := ctx.Err(); err != nil {
		return View{}, err
	}
	v := View{
		UserID: ident.UserID,
		Quests: a.wb.Quests(ctx),
	}

	var snap *domain.Snapshot
	if a.source != nil {
		var err error
		snap, err = a.source.Dashboard(ctx, ident)
		switch {
		case err == nil && snap == nil:
			a.logger.Info("dashboard: server sent no snapshot", "user_id", ident.UserID)
		case err == nil:
		case apiclient.IsNotFound(err):
			v.FirstTimeUser = true
			a.logger.Info("dashboard: user not found on server", "user_id", ident.UserID)
		default:
			if ctx.Err() != nil {
				return View{}, ctx.Err()
			}
			v.RemoteError = err.Error()
			a.logger.Warn("dashboard: server snapshot unavailable", "user_id", ident.UserID, "error", err)
		}
	}

	if snap != nil {
		user := snap.User
		v.User = &user
		v.Actions = snap.Actions
		v.ActionPlan = snap.ActionPlan
		// The mirror is a cache of the server ledger.
		a.wb.SyncMirror(ctx, user.Progression())
	}
	v.Progress = domain.NewSummary(ident.UserID, a.wb.Mirror(ctx))

	if snap != nil && len(snap.WorkItems) > 0 {
		v.WorkItems = fromServer(snap.WorkItems, snap.Actions)
		v.WorkItemsFromServer = true
	} else {
		v.WorkItems = a.wb.WorkItems(ctx)
	}

	v.Onboarding = len(v.WorkItems) == 0 && len(v.Quests) == 0 && len(v.ServerQuests()) == 0
	return v, nil
}

// fromServer maps server work items onto the step 6 shape. The plan is the
// first linked person and the task action created for the item, if any.
func fromServer(items []domain.WorkItem, actions []domain.Action) []workbook.WorkItemView {
	planAction := make(map[int64]string)
	for _, a := range actions {
		if a.IsQuest() || a.WorkItemID == nil {
			continue
		}
		if _, ok := planAction[*a.WorkItemID]; !ok {
			planAction[*a.WorkItemID] = a.Name
		}
	}

	out := make([]workbook.WorkItemView, 0, len(items))
	for _, wi := range items {
		name := strings.TrimSpace(wi.Name)
		if name == "" {
			name = workbook.UnnamedCard
		}
		view := workbook.WorkItemView{
			ID:          wi.ID,
			Name:        name,
			Energy:      int(math.Round(wi.EnergyPercentage)),
			Motivations: tagNames(wi.Motivations),
			Preferences: tagNames(wi.Preferences),
			Roles:       tagNames(wi.RoleCategories),
		}
		action, hasAction := planAction[wi.ID]
		if len(wi.People) > 0 || hasAction {
			plan := &workbook.Plan{Action: action}
			if len(wi.People) > 0 {
				person := wi.People[0].Name
				plan.Person = &person
			}
			view.Plan = plan
		}
		out = append(out, view)
	}
	return out
}

func tagNames(tags []domain.Tag) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.Name)
	}
	return out
}
