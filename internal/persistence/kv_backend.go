package persistence

import (
	"context"

	"github.com/basket/go-craft/internal/progress"
)

// ProgressKeyPrefix namespaces workbook keys inside kv_store.
const ProgressKeyPrefix = "progress:"

// KVBackend stores local progress keys in kv_store under a prefix, so one
// database can hold the drafts of several workbooks.
type KVBackend struct {
	store  *Store
	prefix string
}

var _ progress.Backend = (*KVBackend)(nil)

func (s *Store) ProgressBackend(prefix string) *KVBackend {
	return &KVBackend{store: s, prefix: prefix}
}

func (b *KVBackend) Get(ctx context.Context, key string) (string, bool, error) {
	return b.store.KVLookup(ctx, b.prefix+key)
}

func (b *KVBackend) Set(ctx context.Context, key, value string) error {
	return b.store.KVSet(ctx, b.prefix+key, value)
}

func (b *KVBackend) Delete(ctx context.Context, key string) error {
	return b.store.KVDelete(ctx, b.prefix+key)
}
