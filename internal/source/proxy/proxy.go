// Package proxy adapts the upstream shard-listing APIs (Kinesis ListShards,
// DynamoDB Streams DescribeStream) behind a single StreamProxy contract.
package proxy

import (
	"context"

	"github.com/usedatabrew/streamshard/internal/source/types"
)

// StreamProxy is the symmetric listing contract required of
// both backends: every shard the listing returns (implementations follow
// all pages), optionally anchored after a given shard id, plus the stream's
// current lifecycle status.
type StreamProxy interface {
	ListShards(ctx context.Context, streamARN, startShardIDExclusive string) (shards []types.Shard, status types.StreamStatus, err error)

	// Close releases the underlying client. The enumerator owns the
	// StreamProxy exclusively and calls Close exactly once, from its own
	// Close.
	Close() error
}
