package apiclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/basket/go-craft/internal/identity"
	"github.com/basket/go-craft/internal/progression"
)

var errNoProgression = errors.New("server returned no progression")

// Ledger reaches the server-side progression ledger.
type Ledger struct {
	client *Client
}

func NewLedger(c *Client) *Ledger { return &Ledger{client: c} }

func (l *Ledger) Award(ctx context.Context, userID int64, xp int) (progression.Progression, error) {
	if xp < 0 {
		return progression.Progression{}, progression.ErrNegativeXP
	}
	s, err := l.client.Award(ctx, identity.Context{UserID: userID}, xp)
	if err != nil {
		return progression.Progression{}, err
	}
	return s.Progression(), nil
}

func (l *Ledger) Current(ctx context.Context, userID int64) (progression.Progression, error) {
	u, err := l.client.GetUser(ctx, identity.Context{UserID: userID})
	if err != nil {
		return progression.Progression{}, err
	}
	if u == nil {
		return progression.Progression{}, fmt.Errorf("user %d: %w", userID, errNoProgression)
	}
	return u.Progression(), nil
}

var _ progression.Ledger = (*Ledger)(nil)
