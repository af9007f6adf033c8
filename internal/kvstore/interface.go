// Package kvstore is a generic key-value table inside the notebook
// database. Earlier releases stored whole notebooks under well-known keys
// here; today it carries legacy payloads awaiting import and small session
// flags such as the one-time calendar index rebuild marker.
package kvstore

import (
	"context"
)

// Repository describes access to the key-value table. Get returns
// (nil, nil) when the key is absent.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
