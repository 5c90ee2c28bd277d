package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/basket/go-craft/internal/apiclient"
	"github.com/basket/go-craft/internal/domain"
	"github.com/basket/go-craft/internal/workbook"
)

const cardUsage = "gocraft card <add|list|content|energy|delete> ..."

func runCardCommand(ctx context.Context, args []string) int {
	if len(args) == 0 || isHelpArg(args[0]) {
		fmt.Fprintln(stderr, "usage: "+cardUsage)
		return 2
	}
	sub, rest := strings.ToLower(args[0]), args[1:]
	return withApp(ctx, func(a *app) error {
		switch sub {
		case "add":
			if len(rest) == 0 {
				return usageError("gocraft card add <content>")
			}
			card := a.wb.AddCard(ctx, strings.Join(rest, " "))
			fmt.Fprintf(stdout, "card %d added\n", card.ID)
			return nil
		case "list":
			return printCards(a.wb.Cards(ctx))
		case "content":
			if len(rest) < 2 {
				return usageError("gocraft card content <id> <content>")
			}
			id, err := parseID(rest[0], "gocraft card content <id> <content>")
			if err != nil {
				return err
			}
			card, err := a.wb.SetCardContent(ctx, id, strings.Join(rest[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "card %d: %s\n", card.ID, card.Content)
			return nil
		case "energy":
			if len(rest) != 2 {
				return usageError("gocraft card energy <id> <0-100>")
			}
			id, err := parseID(rest[0], "gocraft card energy <id> <0-100>")
			if err != nil {
				return err
			}
			energy, err := strconv.Atoi(rest[1])
			if err != nil {
				return usageError("gocraft card energy <id> <0-100>")
			}
			card, err := a.wb.SetEnergy(ctx, id, energy)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "card %d: %d%% (total %d%%)\n", card.ID, card.Energy, workbook.TotalEnergy(a.wb.Cards(ctx)))
			return nil
		case "delete":
			if len(rest) != 1 {
				return usageError("gocraft card delete <id>")
			}
			id, err := parseID(rest[0], "gocraft card delete <id>")
			if err != nil {
				return err
			}
			if err := a.wb.DeleteCard(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "card %d deleted\n", id)
			return nil
		default:
			return usageError(cardUsage)
		}
	})
}

func printCards(cards []workbook.Card) error {
	if len(cards) == 0 {
		fmt.Fprintln(stdout, "no cards yet")
		return nil
	}
	for _, c := range cards {
		content := c.Content
		if strings.TrimSpace(content) == "" {
			content = workbook.UnnamedCard
		}
		fmt.Fprintf(stdout, "%3d  %3d%%  %s\n", c.ID, c.Energy, content)
	}
	fmt.Fprintf(stdout, "total energy: %d%%\n", workbook.TotalEnergy(cards))
	return nil
}

func runReflectCommand(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("gocraft reflect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	change := fs.String("change", "", "what changed in how you see your work")
	emotion := fs.String("emotion", "", "why you felt that way")
	surprise := fs.String("surprise", "", "what surprised you")
	sync := fs.Bool("sync", false, "also save the reflection on the server")
	pull := fs.Bool("pull", false, "start from the server copy instead of the local draft")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if len(fs.Args()) != 0 {
		fmt.Fprintln(stderr, "usage: gocraft reflect [-pull] [-change ..] [-emotion ..] [-surprise ..] [-sync]")
		return 2
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	return withApp(ctx, func(a *app) error {
		r := a.wb.Reflection(ctx)
		if *pull {
			ref, err := a.client.GetReflection(ctx, a.ident)
			switch {
			case apiclient.IsNotFound(err):
				return fmt.Errorf("no reflection on the server for user %s", a.ident)
			case err != nil:
				return fmt.Errorf("pull reflection: %w", err)
			case ref == nil:
				fmt.Fprintln(stderr, "server sent no reflection; keeping the local draft")
			default:
				r.Change = ref.Question1Change
				r.EmotionReason = ref.Question2EmotionReason
				r.Surprise = ref.Question3Surprise
			}
		}
		if set["change"] {
			r.Change = *change
		}
		if set["emotion"] {
			r.EmotionReason = *emotion
		}
		if set["surprise"] {
			r.Surprise = *surprise
		}
		a.wb.SaveReflection(ctx, r)

		if err := printJSON(r); err != nil {
			return err
		}
		if !*sync {
			return nil
		}
		if !r.Complete() {
			return fmt.Errorf("answer all three questions before syncing")
		}
		saved, err := a.client.SaveReflection(ctx, a.ident, domain.ReflectionInput{
			UserID:                 a.ident.UserID,
			Question1Change:        &r.Change,
			Question2EmotionReason: &r.EmotionReason,
			Question3Surprise:      &r.Surprise,
		})
		if err != nil {
			return fmt.Errorf("sync reflection: %w", err)
		}
		if saved == nil {
			fmt.Fprintln(stdout, "reflection sent to server")
			return nil
		}
		fmt.Fprintf(stdout, "reflection %d saved on server\n", saved.ID)
		return nil
	})
}
