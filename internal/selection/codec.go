// Package selection encodes tagged vocabulary items (motivations and
// preferences) into the opaque ids shared by every workbook step.
package selection

import (
	"net/url"
	"strings"
)

// Category is the vocabulary a selection belongs to.
type Category string

const (
	Motivation Category = "motivation"
	Preference Category = "preference"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == Motivation || c == Preference
}

// Item is a tagged selection. ID is always Encode(Category, Label).
type Item struct {
	ID       string   `json:"id"`
	Category Category `json:"type"`
	Label    string   `json:"label"`
}

const separator = ":"

// uriComponentUnescape restores the characters encodeURIComponent leaves
// alone but url.QueryEscape encodes. Literal '+' in the input is already
// escaped to %2B by QueryEscape, so only spaces produce '+'.
var uriComponentUnescape = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EscapeLabel percent-encodes label the way encodeURIComponent does.
func EscapeLabel(label string) string {
	return uriComponentUnescape.Replace(url.QueryEscape(label))
}

// Encode returns the id for (category, label).
func Encode(category Category, label string) string {
	return string(category) + separator + EscapeLabel(label)
}

// New builds an Item from a raw label. ok is false for blank labels.
func New(category Category, label string) (Item, bool) {
	label = strings.TrimSpace(label)
	if label == "" || !category.Valid() {
		return Item{}, false
	}
	return Item{ID: Encode(category, label), Category: category, Label: label}, true
}

// Decode parses an id. A recognized category prefix wins and the rest is
// percent-decoded; anything else is a raw label under fallback, taken as is.
// Blank labels and malformed percent-encoding after a prefix return ok=false.
func Decode(id string, fallback Category) (Item, bool) {
	if prefix, rest, found := strings.Cut(id, separator); found {
		if c := Category(prefix); c.Valid() {
			label, err := url.PathUnescape(rest)
			if err != nil {
				return Item{}, false
			}
			return New(c, label)
		}
	}
	return New(fallback, id)
}

// DecodeAll decodes ids, dropping any that do not decode.
func DecodeAll(ids []string, fallback Category) []Item {
	out := make([]Item, 0, len(ids))
	for _, id := range ids {
		if item, ok := Decode(id, fallback); ok {
			out = append(out, item)
		}
	}
	return out
}
