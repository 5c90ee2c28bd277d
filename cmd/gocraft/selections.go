package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/basket/go-craft/internal/selection"
	"github.com/basket/go-craft/internal/workbook"
)

const selectUsage = "gocraft select <list|toggle|remove|masters|create> ..."

func parseCategory(raw string) (selection.Category, bool) {
	c := selection.Category(strings.ToLower(strings.TrimSpace(raw)))
	return c, c.Valid()
}

func runSelectCommand(ctx context.Context, args []string) int {
	if len(args) == 0 || isHelpArg(args[0]) {
		fmt.Fprintln(stderr, "usage: "+selectUsage)
		return 2
	}
	sub, rest := strings.ToLower(args[0]), args[1:]
	return withApp(ctx, func(a *app) error {
		switch sub {
		case "list":
			var items []selection.Item
			switch len(rest) {
			case 0:
				items = a.wb.Palette(ctx)
			case 1:
				c, ok := parseCategory(rest[0])
				if !ok {
					return usageError("gocraft select list [motivation|preference]")
				}
				items = a.wb.Selections(ctx, c)
			default:
				return usageError("gocraft select list [motivation|preference]")
			}
			printItems(items)
			return nil
		case "toggle":
			if len(rest) < 2 {
				return usageError("gocraft select toggle <motivation|preference> <label>")
			}
			c, ok := parseCategory(rest[0])
			if !ok {
				return usageError("gocraft select toggle <motivation|preference> <label>")
			}
			label := strings.Join(rest[1:], " ")
			selected, err := a.wb.ToggleSelection(ctx, c, label)
			if err != nil {
				return err
			}
			state := "deselected"
			if selected {
				state = "selected"
			}
			fmt.Fprintf(stdout, "%s %s: %s (%d/%d)\n", state, c, label, len(a.wb.Selections(ctx, c)), workbook.MaxSelectionsPerCategory)
			return nil
		case "remove":
			if len(rest) != 1 {
				return usageError("gocraft select remove <selection-id>")
			}
			if err := a.wb.RemoveSelection(ctx, rest[0]); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "removed %s\n", rest[0])
			return nil
		case "masters":
			if len(rest) != 1 {
				return usageError("gocraft select masters <motivation|preference>")
			}
			c, ok := parseCategory(rest[0])
			if !ok {
				return usageError("gocraft select masters <motivation|preference>")
			}
			items, err := a.client.ListMasters(ctx, a.ident, c)
			if err != nil {
				return fmt.Errorf("list %s masters: %w", c, err)
			}
			selected := selection.Index(a.wb.Selections(ctx, c))
			for _, it := range items {
				mark := " "
				if _, ok := selected[it.ID]; ok {
					mark = "*"
				}
				fmt.Fprintf(stdout, "%s %s\n", mark, it.Label)
			}
			return nil
		case "create":
			if len(rest) < 2 {
				return usageError("gocraft select create <motivation|preference> <label>")
			}
			c, ok := parseCategory(rest[0])
			if !ok {
				return usageError("gocraft select create <motivation|preference> <label>")
			}
			m, err := a.client.CreateMaster(ctx, a.ident, c, strings.Join(rest[1:], " "))
			if err != nil {
				return fmt.Errorf("create %s master: %w", c, err)
			}
			if m == nil {
				return fmt.Errorf("create %s master: server sent no record", c)
			}
			fmt.Fprintf(stdout, "%s master %d created: %s\n", c, m.ID, m.Name)
			return nil
		default:
			return usageError(selectUsage)
		}
	})
}

func printItems(items []selection.Item) {
	if len(items) == 0 {
		fmt.Fprintln(stdout, "nothing selected yet")
		return
	}
	for _, it := range items {
		fmt.Fprintf(stdout, "%-10s %s\t[%s]\n", it.Category, it.Label, it.ID)
	}
}
