package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

func runCanvasCommand(ctx context.Context, verb string, args []string) int {
	verb = strings.ToLower(verb)
	if len(args) > 0 && isHelpArg(args[0]) {
		fmt.Fprintln(stderr, "usage: gocraft assign|unassign <card-id> <selection-id>, place <selection-id> <x> <y>, unplace <placement-id>")
		return 2
	}
	return withApp(ctx, func(a *app) error {
		switch verb {
		case "assign", "unassign":
			usage := "gocraft " + verb + " <card-id> <selection-id>"
			if len(args) != 2 {
				return usageError(usage)
			}
			cardID, err := parseID(args[0], usage)
			if err != nil {
				return err
			}
			if verb == "unassign" {
				a.wb.Unassign(ctx, cardID, args[1])
				fmt.Fprintf(stdout, "card %d: %s unassigned\n", cardID, args[1])
				return nil
			}
			if err := a.wb.Assign(ctx, cardID, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "card %d: %s assigned\n", cardID, args[1])
			return nil
		case "place":
			usage := "gocraft place <selection-id> <x 0..1> <y 0..1>"
			if len(args) != 3 {
				return usageError(usage)
			}
			x, errX := strconv.ParseFloat(args[1], 64)
			y, errY := strconv.ParseFloat(args[2], 64)
			if errX != nil || errY != nil {
				return usageError(usage)
			}
			p, created, err := a.wb.Place(ctx, args[0], x, y)
			if err != nil {
				return err
			}
			what := "moved"
			if created {
				what = "placed"
			}
			fmt.Fprintf(stdout, "%s %s at (%.2f, %.2f) [%s]\n", what, p.ItemID, p.X, p.Y, p.ID)
			return nil
		case "unplace":
			if len(args) != 1 {
				return usageError("gocraft unplace <placement-id>")
			}
			if err := a.wb.RemovePlacement(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "placement %s removed\n", args[0])
			return nil
		default:
			return usageError("gocraft assign|unassign|place|unplace ...")
		}
	})
}
