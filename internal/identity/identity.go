// Package identity resolves which user the workbook acts for. There is no
// authentication layer; the active user id is a local preference.
package identity

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/basket/go-craft/internal/progress"
)

// DefaultUserID is used when nothing else is configured.
const DefaultUserID int64 = 1

// Context is passed explicitly to every operation that touches per-user
// remote state.
type Context struct {
	UserID int64
}

func (c Context) Valid() bool { return c.UserID > 0 }

// String renders the user id for URLs and logs.
func (c Context) String() string { return strconv.FormatInt(c.UserID, 10) }

// Resolve reads the active user id, then the legacy key, then returns
// fallback (or DefaultUserID when fallback is not positive).
func Resolve(ctx context.Context, store *progress.Store, fallback int64) Context {
	if fallback <= 0 {
		fallback = DefaultUserID
	}
	for _, key := range []string{progress.KeyActiveUserID, progress.KeyLegacyUserID} {
		raw := progress.Load(ctx, store, key, json.RawMessage(nil))
		if id, ok := parseID(raw); ok {
			return Context{UserID: id}
		}
	}
	return Context{UserID: fallback}
}

// Remember stores id as the active user.
func Remember(ctx context.Context, store *progress.Store, id int64) Context {
	progress.Save(ctx, store, progress.KeyActiveUserID, id)
	return Context{UserID: id}
}

// parseID accepts numbers and quoted numbers, which both occur in stored data.
func parseID(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
