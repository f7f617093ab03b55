package localstore

import (
	"context"

	"github.com/goccy/go-json"
)

// Namespaces used by the storefront caches.
const (
	NamespaceCart     = "cart"
	NamespaceWishlist = "wishlist"
	NamespaceOrders   = "orders"
	NamespaceReviews  = "reviews"
	NamespaceSession  = "session"
)

// KV is the durable local store the storefront owns. It is a cache, not a
// system of record: readers must treat a missing or unparsable value as
// "no prior state" and never as a failure.
type KV interface {
	// Get decodes the stored value into dest. It returns false when the key
	// is absent or the stored payload cannot be decoded.
	Get(ctx context.Context, namespace, key string, dest any) (bool, error)
	// Put serializes the value and stores it under namespace/key.
	Put(ctx context.Context, namespace, key string, value any) error
	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, namespace, key string) error
	// Close releases the underlying store.
	Close() error
}

func encode(value any) ([]byte, error) {
	return json.Marshal(value)
}

// decode applies the parse-or-default contract: a payload that fails to
// unmarshal reports absent instead of an error.
func decode(payload []byte, dest any) bool {
	if len(payload) == 0 {
		return false
	}
	return json.Unmarshal(payload, dest) == nil
}
