package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/basket/go-craft/internal/domain"
	"github.com/basket/go-craft/internal/identity"
	"github.com/basket/go-craft/internal/selection"
)

func userQuery(ident identity.Context) url.Values {
	return url.Values{"user_id": {ident.String()}}
}

func idPath(prefix string, id int64) string {
	return prefix + "/" + strconv.FormatInt(id, 10)
}

// Health calls /healthz on the server root.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	_, err := c.send(ctx, http.MethodGet, c.rootURL()+"/healthz", "/healthz", nil, nil, &out, nil)
	return out, err
}

// Users

func (c *Client) GetUser(ctx context.Context, ident identity.Context) (*domain.User, error) {
	return record[domain.User](ctx, c, http.MethodGet, idPath("/users", ident.UserID), nil, nil, nil)
}

func (c *Client) CreateUser(ctx context.Context, in domain.UserInput) (*domain.User, error) {
	return record[domain.User](ctx, c, http.MethodPost, "/users", nil, map[string]any{"user": in}, nil)
}

func (c *Client) UpdateUser(ctx context.Context, ident identity.Context, in domain.UserInput) (*domain.User, error) {
	return record[domain.User](ctx, c, http.MethodPatch, idPath("/users", ident.UserID), nil, map[string]any{"user": in}, nil)
}

// Dashboard fetches the server snapshot for the user.
func (c *Client) Dashboard(ctx context.Context, ident identity.Context) (*domain.Snapshot, error) {
	return record[domain.Snapshot](ctx, c, http.MethodGet, idPath("/users", ident.UserID)+"/dashboard", nil, nil, nil)
}

// Award adds xp to the user's server-side progression. The new progression
// is required; an empty answer is an error.
func (c *Client) Award(ctx context.Context, ident identity.Context, xp int) (domain.UserSummary, error) {
	out, err := record[domain.UserSummary](ctx, c, http.MethodPost, idPath("/users", ident.UserID)+"/award", nil, map[string]int{"xp": xp}, nil)
	if err != nil {
		return domain.UserSummary{}, err
	}
	if out == nil {
		return domain.UserSummary{}, fmt.Errorf("award user %d: %w", ident.UserID, errNoProgression)
	}
	return *out, nil
}

// Masters

func masterPath(cat selection.Category) (list string, kind domain.MasterKind, envelope string) {
	if cat == selection.Preference {
		return "/masters/preferences", domain.PreferenceMasters, "preference_master"
	}
	return "/masters/motivations", domain.MotivationMasters, "motivation_master"
}

// Masters lists the shared masters plus the user's own, ordered by id.
func (c *Client) Masters(ctx context.Context, ident identity.Context, cat selection.Category) ([]domain.Master, error) {
	list, _, _ := masterPath(cat)
	var out []domain.Master
	if err := c.do(ctx, http.MethodGet, list, userQuery(ident), nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

// ListMasters returns the masters as selection items. Blank names are
// skipped.
func (c *Client) ListMasters(ctx context.Context, ident identity.Context, cat selection.Category) ([]selection.Item, error) {
	masters, err := c.Masters(ctx, ident, cat)
	if err != nil {
		return nil, err
	}
	items := make([]selection.Item, 0, len(masters))
	for _, m := range masters {
		if it, ok := selection.New(cat, m.Name); ok {
			items = append(items, it)
		}
	}
	return selection.Merge(items), nil
}

func (c *Client) CreateMaster(ctx context.Context, ident identity.Context, cat selection.Category, label string) (*domain.Master, error) {
	_, kind, envelope := masterPath(cat)
	body := map[string]any{envelope: domain.NamedInput{UserID: ident.UserID, Name: &label}}
	return record[domain.Master](ctx, c, http.MethodPost, "/"+string(kind), nil, body, nil)
}

// People and role categories

func (c *Client) ListPeople(ctx context.Context, ident identity.Context) ([]domain.Person, error) {
	var out []domain.Person
	if err := c.do(ctx, http.MethodGet, "/people", userQuery(ident), nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreatePerson(ctx context.Context, ident identity.Context, name string) (*domain.Person, error) {
	body := map[string]any{"person": domain.NamedInput{UserID: ident.UserID, Name: &name}}
	return record[domain.Person](ctx, c, http.MethodPost, "/people", nil, body, nil)
}

func (c *Client) ListRoleCategories(ctx context.Context, ident identity.Context) ([]domain.RoleCategory, error) {
	var out []domain.RoleCategory
	if err := c.do(ctx, http.MethodGet, "/role_categories", userQuery(ident), nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateRoleCategory(ctx context.Context, ident identity.Context, name string) (*domain.RoleCategory, error) {
	body := map[string]any{"role_category": domain.NamedInput{UserID: ident.UserID, Name: &name}}
	return record[domain.RoleCategory](ctx, c, http.MethodPost, "/role_categories", nil, body, nil)
}

// Work items

func (c *Client) ListWorkItems(ctx context.Context, ident identity.Context) ([]domain.WorkItem, error) {
	var out []domain.WorkItem
	if err := c.do(ctx, http.MethodGet, "/work_items", userQuery(ident), nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateWorkItem(ctx context.Context, ident identity.Context, in domain.WorkItemInput) (*domain.WorkItem, error) {
	in.UserID = ident.UserID
	return record[domain.WorkItem](ctx, c, http.MethodPost, "/work_items", nil, map[string]any{"work_item": in}, nil)
}

func (c *Client) DeleteWorkItem(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, idPath("/work_items", id), nil, nil, nil, nil)
}

// AttachWorkItemTag links an existing master, person or role category to a
// work item. Attaching twice is not an error.
func (c *Client) AttachWorkItemTag(ctx context.Context, ident identity.Context, workItemID int64, kind domain.TagKind, tagID int64) error {
	if !kind.Valid() {
		return fmt.Errorf("attach work item tag: unknown kind %q", kind)
	}
	body := map[string]int64{"user_id": ident.UserID, "tag_id": tagID}
	return c.do(ctx, http.MethodPost, idPath("/work_items", workItemID)+"/"+string(kind), nil, body, nil, nil)
}

// Actions

func (c *Client) ListActions(ctx context.Context, ident identity.Context) ([]domain.Action, error) {
	var out []domain.Action
	if err := c.do(ctx, http.MethodGet, "/actions", userQuery(ident), nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateAction(ctx context.Context, ident identity.Context, in domain.ActionInput) (*domain.Action, error) {
	in.UserID = ident.UserID
	return record[domain.Action](ctx, c, http.MethodPost, "/actions", nil, map[string]any{"action": in}, nil)
}

func (c *Client) UpdateAction(ctx context.Context, id int64, in domain.ActionInput) (*domain.Action, error) {
	return record[domain.Action](ctx, c, http.MethodPatch, idPath("/actions", id), nil, map[string]any{"action": in}, nil)
}

func (c *Client) DeleteAction(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, idPath("/actions", id), nil, nil, nil, nil)
}

// CompleteAction completes an action. A non-empty idempotencyKey makes
// retries safe: the server replays the first result instead of awarding
// again.
func (c *Client) CompleteAction(ctx context.Context, id int64, idempotencyKey string) (*domain.Completion, error) {
	var header http.Header
	if idempotencyKey != "" {
		header = http.Header{"Idempotency-Key": {idempotencyKey}}
	}
	return record[domain.Completion](ctx, c, http.MethodPost, idPath("/actions", id)+"/complete", nil, nil, header)
}

// Drafts

func (c *Client) GetActionPlan(ctx context.Context, ident identity.Context) (*domain.ActionPlan, error) {
	return record[domain.ActionPlan](ctx, c, http.MethodGet, idPath("/action_plans", ident.UserID), nil, nil, nil)
}

// SaveActionPlan creates or replaces the user's action plan.
func (c *Client) SaveActionPlan(ctx context.Context, ident identity.Context, in domain.ActionPlanInput) (*domain.ActionPlan, error) {
	in.UserID = ident.UserID
	return record[domain.ActionPlan](ctx, c, http.MethodPost, "/action_plans", nil, map[string]any{"action_plan": in}, nil)
}

func (c *Client) GetReflection(ctx context.Context, ident identity.Context) (*domain.Reflection, error) {
	return record[domain.Reflection](ctx, c, http.MethodGet, idPath("/reflections", ident.UserID), nil, nil, nil)
}

// SaveReflection creates or replaces the user's reflection.
func (c *Client) SaveReflection(ctx context.Context, ident identity.Context, in domain.ReflectionInput) (*domain.Reflection, error) {
	in.UserID = ident.UserID
	return record[domain.Reflection](ctx, c, http.MethodPost, "/reflections", nil, map[string]any{"reflection": in}, nil)
}
