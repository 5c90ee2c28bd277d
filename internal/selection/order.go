package selection

import (
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// categoryRank puts motivations ahead of preferences.
var categoryRank = map[Category]int{
	Motivation: 0,
	Preference: 1,
}

// Merge concatenates lists and drops repeated ids, keeping the first one seen.
func Merge(lists ...[]Item) []Item {
	seen := make(map[string]struct{})
	var out []Item
	for _, list := range lists {
		for _, item := range list {
			if _, dup := seen[item.ID]; dup {
				continue
			}
			seen[item.ID] = struct{}{}
			out = append(out, item)
		}
	}
	return out
}

// Sort orders items by category, then by label under Japanese collation.
// Ties fall back to the id so the order never depends on input order.
func Sort(items []Item) {
	// Collators keep scratch buffers and are not safe to share.
	c := collate.New(language.Japanese)
	slices.SortStableFunc(items, func(a, b Item) int {
		if ra, rb := categoryRank[a.Category], categoryRank[b.Category]; ra != rb {
			return ra - rb
		}
		if n := c.CompareString(a.Label, b.Label); n != 0 {
			return n
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}

// Palette merges motivation and preference lists into the display order
// used on every step.
func Palette(motivations, preferences []Item) []Item {
	items := Merge(motivations, preferences)
	Sort(items)
	return items
}

// Index maps ids to items.
func Index(items []Item) map[string]Item {
	idx := make(map[string]Item, len(items))
	for _, item := range items {
		idx[item.ID] = item
	}
	return idx
}
