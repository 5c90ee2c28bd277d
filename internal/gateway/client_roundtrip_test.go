package gateway_test

import (
	"context"
	"testing"

	"github.com/basket/go-craft/internal/apiclient"
	"github.com/basket/go-craft/internal/domain"
	"github.com/basket/go-craft/internal/identity"
	"github.com/basket/go-craft/internal/progression"
)

func TestClientRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := apiclient.New(env.ts.URL)

	health, err := c.Health(ctx)
	if err != nil || health["healthy"] != true {
		t.Fatalf("health: %v %v", health, err)
	}

	u, err := c.CreateUser(ctx, domain.UserInput{Email: domain.Ptr("client@example.com")})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	ident := identity.Context{UserID: u.ID}

	if _, err := c.CreateWorkItem(ctx, ident, domain.WorkItemInput{
		Name:             domain.Ptr("障害対応"),
		EnergyPercentage: domain.Ptr(40.0),
	}); err != nil {
		t.Fatalf("create work item: %v", err)
	}
	quest, err := c.CreateAction(ctx, ident, domain.ActionInput{
		Name:       domain.Ptr("ふりかえり会の準備"),
		ActionType: domain.Ptr(domain.ActionQuest),
		Difficulty: domain.Ptr(string(progression.Medium)),
		QuestType:  domain.Ptr(domain.QuestOneTime),
	})
	if err != nil {
		t.Fatalf("create quest: %v", err)
	}

	first, err := c.CompleteAction(ctx, quest.ID, "client-key")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if first.Kind != domain.Removed || first.XPGained != 30 {
		t.Fatalf("unexpected completion %+v", first)
	}
	// The quest is gone, but the retry with the same key still succeeds.
	again, err := c.CompleteAction(ctx, quest.ID, "client-key")
	if err != nil {
		t.Fatalf("replayed complete: %v", err)
	}
	if again.User.ExperiencePoints != 30 {
		t.Fatalf("replay should not award again, got %+v", again.User)
	}

	snap, err := c.Dashboard(ctx, ident)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if len(snap.WorkItems) != 1 || len(snap.Actions) != 0 || snap.User.ExperiencePoints != 30 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	p, err := apiclient.NewLedger(c).Award(ctx, u.ID, 80)
	if err != nil {
		t.Fatalf("ledger award: %v", err)
	}
	if p != (progression.Progression{Level: 2, XP: 10}) {
		t.Fatalf("unexpected progression %+v", p)
	}

	_, err = c.GetUser(ctx, identity.Context{UserID: 424242})
	if !apiclient.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
