package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/basket/go-craft/internal/apiclient"
	"github.com/basket/go-craft/internal/dashboard"
	"github.com/basket/go-craft/internal/domain"
	"github.com/basket/go-craft/internal/progression"
	"github.com/basket/go-craft/internal/shared"
	"github.com/basket/go-craft/internal/tui"
)

const questUsage = "gocraft quest <add|list|remove|complete> ..."

func runQuestCommand(ctx context.Context, args []string) int {
	if len(args) == 0 || isHelpArg(args[0]) {
		fmt.Fprintln(stderr, "usage: "+questUsage)
		return 2
	}
	sub, rest := strings.ToLower(args[0]), args[1:]

	var server bool
	if sub == "complete" || sub == "remove" {
		fs := flag.NewFlagSet("gocraft quest "+sub, flag.ContinueOnError)
		fs.SetOutput(stderr)
		fs.BoolVar(&server, "server", false, sub+" a server quest action instead of a local quest")
		if err := fs.Parse(rest); err != nil {
			return 2
		}
		rest = fs.Args()
	}

	return withApp(ctx, func(a *app) error {
		switch sub {
		case "add":
			const u = "gocraft quest add <easy|normal|hard> <name>"
			if len(rest) < 2 {
				return usageError(u)
			}
			q, err := a.wb.AddQuest(ctx, strings.Join(rest[1:], " "), strings.ToLower(rest[0]))
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "quest %d added: %s (+%d XP)\n", q.ID, q.Name, q.XP)
			return nil
		case "list":
			quests := a.wb.Quests(ctx)
			if len(quests) == 0 {
				fmt.Fprintln(stdout, "まだクエストが登録されていません")
				return nil
			}
			for _, q := range quests {
				fmt.Fprintf(stdout, "%3d  +%-3d XP  %s\n", q.ID, q.XP, q.Name)
			}
			return nil
		case "remove":
			const u = "gocraft quest remove [-server] <id>"
			if len(rest) != 1 {
				return usageError(u)
			}
			id, err := parseID(rest[0], u)
			if err != nil {
				return err
			}
			if server {
				return a.removeServerQuest(ctx, id)
			}
			if err := a.wb.RemoveQuest(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "quest %d removed\n", id)
			return nil
		case "complete":
			if len(rest) != 1 {
				return usageError("gocraft quest complete [-server] <id>")
			}
			id, err := parseID(rest[0], "gocraft quest complete [-server] <id>")
			if err != nil {
				return err
			}
			out, err := a.completeQuest(ctx, tui.QuestEntry{ID: id, Server: server})
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "達成！ +%d XP  レベル %d  %d / %d XP\n",
				out.XPGained, out.Progress.Level, out.Progress.ExperiencePoints, progression.XPPerLevel)
			if out.LevelsGained > 0 {
				fmt.Fprintf(stdout, "レベルアップ！ → %d\n", out.Progress.Level)
			}
			if out.Removed {
				fmt.Fprintln(stdout, "one-time quest removed")
			}
			return nil
		default:
			return usageError(questUsage)
		}
	})
}

// removeServerQuest deletes a quest action on the server.
func (a *app) removeServerQuest(ctx context.Context, id int64) error {
	if a.offline() {
		return fmt.Errorf("server quests need progression.ledger: remote")
	}
	if err := a.client.DeleteAction(ctx, id); err != nil {
		if apiclient.StatusOf(err) == http.StatusNotFound {
			return fmt.Errorf("no server quest %d", id)
		}
		return fmt.Errorf("remove server quest %d: %w", id, err)
	}
	a.logger.Info("server quest removed", "action_id", id)
	fmt.Fprintf(stdout, "server quest %d removed\n", id)
	return nil
}

// completeQuest awards a local quest through the configured ledger, or
// completes a server quest action with a fresh idempotency key. Both paths
// refresh the local level mirror.
func (a *app) completeQuest(ctx context.Context, e tui.QuestEntry) (tui.Outcome, error) {
	if !e.Server {
		c, err := a.wb.CompleteQuest(ctx, a.ident, e.ID, a.ledger())
		if err != nil {
			return tui.Outcome{}, err
		}
		return tui.Outcome{
			XPGained:     c.XPGained,
			LevelsGained: c.LevelsGained,
			Progress:     domain.NewSummary(a.ident.UserID, c.After),
		}, nil
	}

	if a.offline() {
		return tui.Outcome{}, fmt.Errorf("server quests need progression.ledger: remote")
	}
	before := a.wb.Mirror(ctx)
	key := shared.NewIdempotencyKey()
	c, err := a.client.CompleteAction(ctx, e.ID, key)
	if err != nil {
		return tui.Outcome{}, fmt.Errorf("complete server quest %d: %w", e.ID, err)
	}
	if c == nil {
		return tui.Outcome{}, fmt.Errorf("complete server quest %d: server sent no result", e.ID)
	}
	after := progression.Progression{Level: c.User.Level, XP: c.User.ExperiencePoints}
	a.wb.SyncMirror(ctx, after)
	a.logger.Info("server quest completed", "action_id", e.ID, "xp", c.XPGained, "level", after.Level, "idempotency_key", key)
	return tui.Outcome{
		XPGained:     c.XPGained,
		LevelsGained: progression.LevelsGained(before, after),
		Progress:     c.User,
		Removed:      c.Kind == domain.Removed,
	}, nil
}

func runSyncCommand(ctx context.Context, args []string) int {
	if len(args) != 0 {
		fmt.Fprintln(stderr, "usage: gocraft sync")
		return 2
	}
	return withApp(ctx, func(a *app) error {
		report, err := a.wb.Sync(ctx, a.ident, a.client)
		if perr := printJSON(report); perr != nil {
			return perr
		}
		if err != nil {
			return fmt.Errorf("sync incomplete: %w", err)
		}
		return nil
	})
}

func runDashboardCommand(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("gocraft dashboard", flag.ContinueOnError)
	fs.SetOutput(stderr)
	asJSON := fs.Bool("json", false, "print the dashboard view as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if len(fs.Args()) != 0 {
		fmt.Fprintln(stderr, "usage: gocraft dashboard [-json]")
		return 2
	}

	return withApp(ctx, func(a *app) error {
		var source dashboard.Source
		if !a.offline() {
			source = a.client
		}
		v, err := dashboard.New(a.wb, source, a.logger).Build(ctx, a.ident)
		if err != nil {
			return err
		}

		switch {
		case *asJSON:
			return printJSON(v)
		case stdout == os.Stdout && isatty.IsTerminal(os.Stdout.Fd()):
			return tui.RunBoard(ctx, v, a.completeQuest)
		default:
			fmt.Fprint(stdout, tui.RenderDashboard(v))
			return nil
		}
	})
}
