package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")

// Store is a string key-value store with last-write-wins semantics.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

type namespaced struct {
	inner  Store
	prefix string
}

// Namespace returns a view of s where every key is prefixed.
func Namespace(s Store, prefix string) Store {
	return &namespaced{inner: s, prefix: prefix}
}

func (n *namespaced) Get(ctx context.Context, key string) (string, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key, value string) error {
	return n.inner.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Remove(ctx context.Context, key string) error {
	return n.inner.Remove(ctx, n.prefix+key)
}
