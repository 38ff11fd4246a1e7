package proxy

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodbstreams"
	"github.com/aws/aws-sdk-go/service/dynamodbstreams/dynamodbstreamsiface"

	"github.com/usedatabrew/streamshard/internal/source/types"
)

// DynamoDBStreamsProxy adapts DescribeStream to the StreamProxy contract.
// DynamoDB Streams has no ListShards API; DescribeStream's
// Shards+LastEvaluatedShardId page cursor plays the anchoring role Kinesis's
// ListShards ShardFilter/NextToken play.
type DynamoDBStreamsProxy struct {
	svc dynamodbstreamsiface.DynamoDBStreamsAPI
}

// NewDynamoDBStreamsProxy builds a proxy backed by sess.
func NewDynamoDBStreamsProxy(sess *session.Session) *DynamoDBStreamsProxy {
	return &DynamoDBStreamsProxy{svc: dynamodbstreams.New(sess)}
}

// ListShards implements StreamProxy. DescribeStream's output carries no
// stream-level status field at all (unlike Kinesis's StreamDescriptionSummary),
// so StreamStatusEnabled is reported unconditionally; the ShardGraphTracker
// resolution loop's DISABLED early-exit simply never triggers for this
// backend, same as for Kinesis (see mapKinesisStreamStatus).
func (p *DynamoDBStreamsProxy) ListShards(ctx context.Context, streamARN, startShardIDExclusive string) ([]types.Shard, types.StreamStatus, error) {
	var shards []types.Shard
	exclusiveStart := startShardIDExclusive

	for {
		input := &dynamodbstreams.DescribeStreamInput{
			StreamArn: aws.String(streamARN),
		}
		if exclusiveStart != "" {
			input.ExclusiveStartShardId = aws.String(exclusiveStart)
		}

		out, err := p.svc.DescribeStreamWithContext(ctx, input)
		if err != nil {
			return nil, "", fmt.Errorf("dynamodbstreams DescribeStream: %w", err)
		}
		if out.StreamDescription == nil {
			break
		}
		for _, s := range out.StreamDescription.Shards {
			shards = append(shards, convertDynamoDBShard(s))
		}
		if out.StreamDescription.LastEvaluatedShardId == nil || *out.StreamDescription.LastEvaluatedShardId == "" {
			break
		}
		exclusiveStart = *out.StreamDescription.LastEvaluatedShardId
	}

	return shards, types.StreamStatusEnabled, nil
}

// Close implements StreamProxy. The v1 DynamoDB Streams client holds no
// connection or goroutine of its own to release; Close is a no-op kept to
// satisfy exclusive-ownership semantics with the Kinesis backend.
func (p *DynamoDBStreamsProxy) Close() error {
	return nil
}

func convertDynamoDBShard(s *dynamodbstreams.Shard) types.Shard {
	shard := types.Shard{}
	if s.ShardId != nil {
		shard.ShardID = *s.ShardId
	}
	if s.ParentShardId != nil {
		shard.ParentShardID = s.ParentShardId
	}
	if s.SequenceNumberRange != nil {
		if s.SequenceNumberRange.StartingSequenceNumber != nil {
			shard.SequenceNumberRange.StartingSequenceNumber = *s.SequenceNumberRange.StartingSequenceNumber
		}
		shard.SequenceNumberRange.EndingSequenceNumber = s.SequenceNumberRange.EndingSequenceNumber
	}
	return shard
}
