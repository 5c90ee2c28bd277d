package progression

import (
	"context"
	"sync"
)

// MemoryLedger keeps progression per user in memory. It is the ledger for
// offline use, where no server owns the state.
type MemoryLedger struct {
	mu    sync.Mutex
	users map[int64]Progression
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{users: make(map[int64]Progression)}
}

// Seed sets the starting progression for userID.
func (l *MemoryLedger) Seed(userID int64, p Progression) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.users[userID] = p.Normalize()
}

func (l *MemoryLedger) Award(_ context.Context, userID int64, xp int) (Progression, error) {
	if xp < 0 {
		return Progression{}, ErrNegativeXP
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.users[userID]
	if !ok {
		p = Start
	}
	p = ApplyStepwise(p, xp)
	l.users[userID] = p
	return p, nil
}

func (l *MemoryLedger) Current(_ context.Context, userID int64) (Progression, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.users[userID]; ok {
		return p, nil
	}
	return Start, nil
}
