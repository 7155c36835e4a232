package cache

import (
	"strings"
)

// Views caches rendered per-user views. Keys are user-scoped so a single
// user's entries can be dropped when that user's ledger changes.
type Views[T any] struct {
	store Cache[T]
}

func NewViews[T any](store Cache[T]) *Views[T] {
	return &Views[T]{store: store}
}

// Key builds "user|view|p1|p2...".
func Key(userID, view string, params ...string) string {
	parts := make([]string, 0, len(params)+2)
	parts = append(parts, userID, view)
	parts = append(parts, params...)
	return strings.Join(parts, "|")
}

func (v *Views[T]) Get(userID, view string, params ...string) (T, bool) {
	return v.store.Get(Key(userID, view, params...))
}

func (v *Views[T]) Set(data T, userID, view string, params ...string) {
	v.store.Set(Key(userID, view, params...), data)
}

// InvalidateUser drops every cached view for userID.
func (v *Views[T]) InvalidateUser(userID string) int {
	return v.store.DeletePrefix(userID + "|")
}
