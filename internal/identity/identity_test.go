package identity

import (
	"context"
	"testing"

	"github.com/basket/go-craft/internal/progress"
)

func TestResolve(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name     string
		values   map[string]string
		fallback int64
		want     int64
	}{
		{"empty_uses_fallback", nil, 7, 7},
		{"non_positive_fallback_uses_default", nil, 0, DefaultUserID},
		{"active_number", map[string]string{progress.KeyActiveUserID: "12"}, 1, 12},
		{"active_quoted", map[string]string{progress.KeyActiveUserID: `"5"`}, 1, 5},
		{"legacy_key", map[string]string{progress.KeyLegacyUserID: "3"}, 1, 3},
		{"active_beats_legacy", map[string]string{progress.KeyActiveUserID: "4", progress.KeyLegacyUserID: "3"}, 1, 4},
		{"garbage_ignored", map[string]string{progress.KeyActiveUserID: "abc", progress.KeyLegacyUserID: "-2"}, 9, 9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := progress.NewMemoryBackend()
			for k, v := range tc.values {
				_ = backend.Set(ctx, k, v)
			}
			got := Resolve(ctx, progress.New(backend, nil), tc.fallback)
			if got.UserID != tc.want {
				t.Fatalf("Resolve = %d, want %d", got.UserID, tc.want)
			}
		})
	}
}

func TestRemember(t *testing.T) {
	ctx := context.Background()
	store := progress.New(progress.NewMemoryBackend(), nil)
	Remember(ctx, store, 42)
	if got := Resolve(ctx, store, 1); got.UserID != 42 || got.String() != "42" {
		t.Fatalf("unexpected identity %+v", got)
	}
}
