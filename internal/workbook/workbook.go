// Package workbook implements the eight-step job crafting workbook on top of
// the local progress store.
//
// Every step keeps its own collection under its own key and refers to
// upstream collections only by id. Each view rebuilds itself by loading the
// upstream collections, dropping references that no longer resolve, and
// writing the pruned collection back so the next load starts clean.
package workbook

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/basket/go-craft/internal/progress"
	"github.com/basket/go-craft/internal/selection"
)

const (
	MaxSelectionsPerCategory = 4
	MaxLabelLength           = 60
	MaxRoles                 = 3
	MaxPersonNameLength      = 120
	MaxQuestNameLength       = 140

	// UnnamedCard is shown for cards whose content is still blank.
	UnnamedCard = "（未入力）"
)

var (
	ErrEnergyExceeded   = errors.New("total energy allocation would exceed 100")
	ErrEnergyOutOfRange = errors.New("energy allocation must be between 0 and 100")
	ErrSelectionLimit   = errors.New("selection limit reached for category")
	ErrLabelTooLong     = errors.New("label is too long")
	ErrEmptyLabel       = errors.New("label must not be blank")
	ErrUnknownCard      = errors.New("card not found")
	ErrUnknownItem      = errors.New("selection not found")
	ErrUnknownPerson    = errors.New("person not in palette")
	ErrUnknownRole      = errors.New("role not in palette")
	ErrRoleLimit        = errors.New("role limit reached")
	ErrDuplicateRole    = errors.New("role already exists")
	ErrUnknownQuest     = errors.New("quest not found")
	ErrUnknownPlacement = errors.New("placement not found")
)

// Card is a unit of the user's current work inventory.
type Card struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
	Energy  int    `json:"energyPercentage"`
}

// Assignment binds a selection to a card.
type Assignment struct {
	CardID int64  `json:"cardId"`
	ItemID string `json:"itemId"`
}

// Placement anchors a selection on the 2D canvas. X and Y are in [0,1].
type Placement struct {
	ID     string  `json:"id"`
	ItemID string  `json:"itemId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// Plan is the who and what for one card.
type Plan struct {
	Person *string `json:"person"`
	Action string  `json:"action"`
}

// Ready reports whether both person and action are filled in.
func (p Plan) Ready() bool {
	return p.Person != nil && strings.TrimSpace(*p.Person) != "" && strings.TrimSpace(p.Action) != ""
}

// WorkItemView is a card with every annotation collected up to step 6.
type WorkItemView struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Energy      int      `json:"energyPercentage"`
	Motivations []string `json:"motivations"`
	Preferences []string `json:"preferences"`
	Plan        *Plan    `json:"plan"`
	Roles       []string `json:"roles"`
}

// Quest is an entry of the locally tracked quest list.
type Quest struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	XP   int    `json:"xp"`
}

// Reflection holds the step 2 answers.
type Reflection struct {
	Change        string `json:"question1Change"`
	EmotionReason string `json:"question2EmotionReason"`
	Surprise      string `json:"question3Surprise"`
}

// ActionPlan is the step 7-1 draft.
type ActionPlan struct {
	NextActions   string `json:"nextActions"`
	Collaborators string `json:"collaborators"`
	Obstacles     string `json:"obstacles"`
}

// Workbook serializes all read-modify-write cycles on the store.
type Workbook struct {
	store  *progress.Store
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
}

type Option func(*Workbook)

// WithClock overrides the time source used for placement ids.
func WithClock(now func() time.Time) Option {
	return func(w *Workbook) { w.now = now }
}

func New(store *progress.Store, logger *slog.Logger, opts ...Option) *Workbook {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Workbook{
		store:  store,
		logger: logger.With("component", "workbook"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Store exposes the underlying progress store.
func (w *Workbook) Store() *progress.Store { return w.store }

// Reset clears every workbook key.
func (w *Workbook) Reset(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	progress.Remove(ctx, w.store, progress.WorkbookKeys...)
	w.logger.Info("workbook reset")
}

func (w *Workbook) loadCards(ctx context.Context) []Card {
	return progress.Load(ctx, w.store, progress.KeyCards, []Card{})
}

func (w *Workbook) selectionIDs(ctx context.Context, c selection.Category) []string {
	return progress.Load(ctx, w.store, selectionKey(c), []string{})
}

func (w *Workbook) palette(ctx context.Context) []selection.Item {
	return selection.Palette(
		selection.DecodeAll(w.selectionIDs(ctx, selection.Motivation), selection.Motivation),
		selection.DecodeAll(w.selectionIDs(ctx, selection.Preference), selection.Preference),
	)
}

func cardIndex(cards []Card) map[int64]Card {
	idx := make(map[int64]Card, len(cards))
	for _, c := range cards {
		idx[c.ID] = c
	}
	return idx
}

func selectionKey(c selection.Category) string {
	if c == selection.Preference {
		return progress.KeyPreferences
	}
	return progress.KeyMotivations
}
