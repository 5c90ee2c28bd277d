// Package progression holds the experience point and level rules shared by
// the server ledger and the workbook's cached projection of it.
package progression

import (
	"context"
	"errors"
	"math"
)

// XPPerLevel is the number of experience points converted into one level.
const XPPerLevel = 100

var ErrNegativeXP = errors.New("xp award must not be negative")

// Progression is a user's level and experience points. After Normalize,
// Level >= 1 and 0 <= XP < XPPerLevel.
type Progression struct {
	Level int `json:"level"`
	XP    int `json:"experience_points"`
}

// Start is the progression of a new user.
var Start = Progression{Level: 1, XP: 0}

// Normalize folds whole levels out of XP and clamps the lower bounds.
func (p Progression) Normalize() Progression {
	if p.Level < 1 {
		p.Level = 1
	}
	if p.XP < 0 {
		p.XP = 0
	}
	return Apply(p, 0)
}

// ToNextLevel is the number of points still needed for the next level.
func (p Progression) ToNextLevel() int {
	return XPPerLevel - p.XP
}

// Percentage is the progress gauge toward the next level, rounded.
func (p Progression) Percentage() int {
	return int(math.Round(float64(p.XP) / XPPerLevel * 100))
}

// Apply adds xp and converts every full hundred into a level.
func Apply(p Progression, xp int) Progression {
	total := p.XP + xp
	p.Level += total / XPPerLevel
	p.XP = total % XPPerLevel
	return p
}

// ApplyStepwise adds xp one level at a time. It agrees with Apply for every
// non-negative award.
func ApplyStepwise(p Progression, xp int) Progression {
	next := p.XP + xp
	for next >= XPPerLevel {
		next -= XPPerLevel
		p.Level++
	}
	p.XP = next
	return p
}

// LevelsGained reports how many levels separate before and after.
func LevelsGained(before, after Progression) int {
	if after.Level <= before.Level {
		return 0
	}
	return after.Level - before.Level
}

// Ledger is the single owner of progression state.
type Ledger interface {
	Award(ctx context.Context, userID int64, xp int) (Progression, error)
	Current(ctx context.Context, userID int64) (Progression, error)
}
