package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/basket/go-craft/internal/apiclient"
	"github.com/basket/go-craft/internal/config"
	"github.com/basket/go-craft/internal/domain"
	"github.com/basket/go-craft/internal/identity"
	"github.com/basket/go-craft/internal/persistence"
)

func runWhoamiCommand(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("gocraft whoami", flag.ContinueOnError)
	fs.SetOutput(stderr)
	set := fs.Int64("set", 0, "make this user id the active user")
	asDefault := fs.Bool("default", false, "with -set, also write it to config.yaml as default_user_id")
	name := fs.String("name", "", "update the display name on the server")
	email := fs.String("email", "", "update the email on the server")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if len(fs.Args()) != 0 || *set < 0 || (*asDefault && *set == 0) {
		fmt.Fprintln(stderr, "usage: gocraft whoami [-set ID [-default]] [-name NAME] [-email EMAIL]")
		return 2
	}
	var update domain.UserInput
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			update.Name = name
		case "email":
			update.Email = email
		}
	})
	updating := update.Name != nil || update.Email != nil

	return withApp(ctx, func(a *app) error {
		if *set > 0 {
			a.ident = identity.Remember(ctx, a.wb.Store(), *set)
			if *asDefault {
				if err := config.SetValue(a.cfg.HomeDir, "default_user_id", *set); err != nil {
					return fmt.Errorf("save default user: %w", err)
				}
			}
		}
		fmt.Fprintf(stdout, "user %s\n", a.ident)
		if updating {
			u, err := a.client.UpdateUser(ctx, a.ident, update)
			switch {
			case apiclient.IsNotFound(err):
				return fmt.Errorf("user %s is not registered on the server", a.ident)
			case err != nil:
				return fmt.Errorf("update user: %w", err)
			case u == nil:
				fmt.Fprintln(stdout, "user update sent to server")
			default:
				label := u.Email
				if u.Name != nil && *u.Name != "" {
					label = *u.Name + " <" + u.Email + ">"
				}
				fmt.Fprintf(stdout, "%s updated\n", label)
			}
			return nil
		}
		if a.offline() {
			return nil
		}

		u, err := a.client.GetUser(ctx, a.ident)
		switch {
		case err == nil && u == nil:
			fmt.Fprintln(stdout, "server sent no user record")
		case err == nil:
			fmt.Fprintf(stdout, "%s  レベル %d  %d XP\n", u.Email, u.Level, u.ExperiencePoints)
		case apiclient.IsNotFound(err):
			fmt.Fprintln(stdout, "not registered on the server yet")
		default:
			fmt.Fprintf(stdout, "server unavailable: %v\n", err)
		}
		return nil
	})
}

func runResetCommand(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("gocraft reset", flag.ContinueOnError)
	fs.SetOutput(stderr)
	yes := fs.Bool("yes", false, "skip the confirmation")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if len(fs.Args()) != 0 {
		fmt.Fprintln(stderr, "usage: gocraft reset -yes")
		return 2
	}
	if !*yes {
		fmt.Fprintln(stderr, "reset clears every local workbook step; rerun with -yes to confirm")
		return 2
	}
	return withApp(ctx, func(a *app) error {
		a.wb.Reset(ctx)
		fmt.Fprintf(stdout, "local workbook cleared (user %s kept)\n", a.ident)
		return nil
	})
}

func runSeedCommand(ctx context.Context, args []string) int {
	if len(args) != 0 {
		fmt.Fprintln(stderr, "usage: gocraft seed")
		return 2
	}
	return withApp(ctx, func(a *app) error {
		store, err := persistence.Open(a.cfg.DBPath, nil)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer store.Close()

		report, err := store.Seed(ctx)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		identity.Remember(ctx, a.wb.Store(), report.UserID)
		a.logger.Info("seed complete", "user_id", report.UserID, "masters", report.Masters, "quests", report.Quests)
		return printJSON(report)
	})
}

func runBackupCommand(ctx context.Context, args []string) int {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		fmt.Fprintln(stderr, "usage: gocraft backup <dest>")
		return 2
	}
	return withApp(ctx, func(a *app) error {
		store, err := persistence.Open(a.cfg.DBPath, nil)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer store.Close()

		if err := store.Backup(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "backup written to %s\n", args[0])
		return nil
	})
}
