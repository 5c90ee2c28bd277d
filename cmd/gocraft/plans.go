package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/basket/go-craft/internal/domain"
	"github.com/basket/go-craft/internal/workbook"
)

func runPersonCommand(ctx context.Context, args []string) int {
	const usage = "gocraft person <add|remove> <name>"
	if len(args) < 2 || isHelpArg(args[0]) {
		fmt.Fprintln(stderr, "usage: "+usage)
		return 2
	}
	sub, name := strings.ToLower(args[0]), strings.Join(args[1:], " ")
	return withApp(ctx, func(a *app) error {
		switch sub {
		case "add":
			added, err := a.wb.AddPerson(ctx, name)
			if err != nil {
				return err
			}
			if !added {
				fmt.Fprintf(stdout, "%s is already in the palette\n", name)
				return nil
			}
			fmt.Fprintf(stdout, "%s added\n", name)
			return nil
		case "remove":
			a.wb.RemovePerson(ctx, name)
			fmt.Fprintf(stdout, "%s removed\n", name)
			return nil
		default:
			return usageError(usage)
		}
	})
}

func runPlanCommand(ctx context.Context, args []string) int {
	const usage = "gocraft plan <list|person|action|clear> ..."
	if len(args) == 0 || isHelpArg(args[0]) {
		fmt.Fprintln(stderr, "usage: "+usage)
		return 2
	}
	sub, rest := strings.ToLower(args[0]), args[1:]
	return withApp(ctx, func(a *app) error {
		if sub == "list" {
			return printPlanBoard(a.wb.PlanBoard(ctx))
		}

		var (
			plan workbook.Plan
			err  error
		)
		switch sub {
		case "person", "action":
			u := "gocraft plan " + sub + " <card-id> <text>"
			if len(rest) < 2 {
				return usageError(u)
			}
			cardID, perr := parseID(rest[0], u)
			if perr != nil {
				return perr
			}
			text := strings.Join(rest[1:], " ")
			if sub == "person" {
				plan, err = a.wb.SetPlanPerson(ctx, cardID, text)
			} else {
				plan, err = a.wb.SetPlanAction(ctx, cardID, text)
			}
		case "clear":
			if len(rest) != 1 {
				return usageError("gocraft plan clear <card-id>")
			}
			cardID, perr := parseID(rest[0], "gocraft plan clear <card-id>")
			if perr != nil {
				return perr
			}
			plan, err = a.wb.ClearPlanPerson(ctx, cardID)
		default:
			return usageError(usage)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, formatPlan(plan))
		return nil
	})
}

func formatPlan(p workbook.Plan) string {
	person := "-"
	if p.Person != nil && *p.Person != "" {
		person = *p.Person
	}
	action := p.Action
	if action == "" {
		action = "-"
	}
	ready := ""
	if p.Ready() {
		ready = "  ✓"
	}
	return fmt.Sprintf("誰に: %s  何をする: %s%s", person, action, ready)
}

func printPlanBoard(v workbook.PlanView) error {
	fmt.Fprintf(stdout, "people: %s\n", strings.Join(v.People, ", "))
	for _, c := range v.Cards {
		content := c.Content
		if strings.TrimSpace(content) == "" {
			content = workbook.UnnamedCard
		}
		plan := workbook.Plan{}
		if c.Plan != nil {
			plan = *c.Plan
		}
		fmt.Fprintf(stdout, "%3d  %s\n     %s\n", c.ID, content, formatPlan(plan))
	}
	if !v.Ready {
		fmt.Fprintln(stdout, "every card needs a person and an action before step 6")
	}
	return nil
}

func runRoleCommand(ctx context.Context, args []string) int {
	const usage = "gocraft role <list|add|remove|attach|detach> ..."
	if len(args) == 0 || isHelpArg(args[0]) {
		fmt.Fprintln(stderr, "usage: "+usage)
		return 2
	}
	sub, rest := strings.ToLower(args[0]), args[1:]
	return withApp(ctx, func(a *app) error {
		switch sub {
		case "list":
			board := a.wb.RoleBoard(ctx)
			fmt.Fprintf(stdout, "roles (%d/%d): %s\n", len(board.Roles), workbook.MaxRoles, strings.Join(board.Roles, ", "))
			for _, it := range board.WorkItems {
				roles := "（役割なし）"
				if len(it.Roles) > 0 {
					roles = strings.Join(it.Roles, ", ")
				}
				fmt.Fprintf(stdout, "%3d  %s  [%s]\n", it.ID, it.Name, roles)
			}
			return nil
		case "add", "remove":
			if len(rest) == 0 {
				return usageError("gocraft role " + sub + " <name>")
			}
			name := strings.Join(rest, " ")
			if sub == "add" {
				if err := a.wb.AddRole(ctx, name); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "role %s added\n", name)
				return nil
			}
			if err := a.wb.RemoveRole(ctx, name); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "role %s removed\n", name)
			return nil
		case "attach", "detach":
			u := "gocraft role " + sub + " <card-id> <role>"
			if len(rest) < 2 {
				return usageError(u)
			}
			cardID, err := parseID(rest[0], u)
			if err != nil {
				return err
			}
			role := strings.Join(rest[1:], " ")
			var it workbook.WorkItemView
			if sub == "attach" {
				it, err = a.wb.AttachRole(ctx, cardID, role)
			} else {
				it, err = a.wb.DetachRole(ctx, cardID, role)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%s: [%s]\n", it.Name, strings.Join(it.Roles, ", "))
			return nil
		default:
			return usageError(usage)
		}
	})
}

func runActionPlanCommand(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("gocraft actionplan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	next := fs.String("next", "", "next actions")
	with := fs.String("with", "", "collaborators")
	obstacles := fs.String("obstacles", "", "obstacles and how to get past them")
	sync := fs.Bool("sync", false, "also save the plan on the server")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if len(fs.Args()) != 0 {
		fmt.Fprintln(stderr, "usage: gocraft actionplan [-next ..] [-with ..] [-obstacles ..] [-sync]")
		return 2
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	return withApp(ctx, func(a *app) error {
		p := a.wb.ActionPlan(ctx)
		if set["next"] {
			p.NextActions = *next
		}
		if set["with"] {
			p.Collaborators = *with
		}
		if set["obstacles"] {
			p.Obstacles = *obstacles
		}
		a.wb.SaveActionPlan(ctx, p)

		if err := printJSON(p); err != nil {
			return err
		}
		if !*sync {
			return nil
		}
		if p.Empty() {
			return fmt.Errorf("the action plan is empty")
		}
		saved, err := a.client.SaveActionPlan(ctx, a.ident, domain.ActionPlanInput{
			UserID:                a.ident.UserID,
			NextActions:           &p.NextActions,
			Collaborators:         &p.Collaborators,
			ObstaclesAndSolutions: &p.Obstacles,
		})
		if err != nil {
			return fmt.Errorf("sync action plan: %w", err)
		}
		if saved == nil {
			fmt.Fprintln(stdout, "action plan sent to server")
			return nil
		}
		fmt.Fprintf(stdout, "action plan %d saved on server\n", saved.ID)
		return nil
	})
}
