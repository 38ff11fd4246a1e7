// Package checkpoint persists serialized enumerator state across restarts.
package checkpoint

import "context"

// EnumeratorStateStore is the durable-checkpoint contract
// implies by naming "optional prior state" as a construction input and
// "Persisted state layout" as a forwards-compatible concern: store and
// load the serializer's byte output, keyed by (streamARN, enumeratorID).
type EnumeratorStateStore interface {
	Load(ctx context.Context, streamARN, enumeratorID string) (data []byte, version int, found bool, err error)
	Save(ctx context.Context, streamARN, enumeratorID string, data []byte, version int) error
}
