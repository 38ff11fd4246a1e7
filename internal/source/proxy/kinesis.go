package proxy

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/kinesis/kinesisiface"

	"github.com/usedatabrew/streamshard/internal/source/types"
)

// KinesisProxy adapts kinesisiface.KinesisAPI's ListShards/
// DescribeStreamSummary calls to the StreamProxy contract.
type KinesisProxy struct {
	svc kinesisiface.KinesisAPI
}

// NewKinesisProxy builds a proxy backed by sess.
func NewKinesisProxy(sess *session.Session) *KinesisProxy {
	return &KinesisProxy{svc: kinesis.New(sess)}
}

// ListShards implements StreamProxy. streamARN is sent as the StreamARN
// parameter of ListShards and DescribeStreamSummary, and every page that
// ListShards returns is followed via NextToken.
func (p *KinesisProxy) ListShards(ctx context.Context, streamARN, startShardIDExclusive string) ([]types.Shard, types.StreamStatus, error) {
	input := &kinesis.ListShardsInput{
		StreamARN: aws.String(streamARN),
	}
	if startShardIDExclusive != "" {
		input.ShardFilter = &kinesis.ShardFilter{
			Type:                 aws.String(kinesis.ShardFilterTypeAfterShardId),
			ShardId:              aws.String(startShardIDExclusive),
		}
	}

	var shards []types.Shard
	nextToken := ""
	for {
		if nextToken != "" {
			input = &kinesis.ListShardsInput{NextToken: aws.String(nextToken)}
		}
		out, err := p.svc.ListShardsWithContext(ctx, input)
		if err != nil {
			return nil, "", fmt.Errorf("kinesis ListShards: %w", err)
		}
		for _, s := range out.Shards {
			shards = append(shards, convertKinesisShard(s))
		}
		if out.NextToken == nil || *out.NextToken == "" {
			break
		}
		nextToken = *out.NextToken
	}

	status, err := p.streamStatus(ctx, streamARN)
	if err != nil {
		return nil, "", err
	}

	return shards, status, nil
}

// Close implements StreamProxy. The v1 Kinesis client holds no connection
// or goroutine of its own to release; Close is a no-op kept to satisfy
// exclusive-ownership semantics with the DynamoDB Streams backend.
func (p *KinesisProxy) Close() error {
	return nil
}

func (p *KinesisProxy) streamStatus(ctx context.Context, streamARN string) (types.StreamStatus, error) {
	out, err := p.svc.DescribeStreamSummaryWithContext(ctx, &kinesis.DescribeStreamSummaryInput{
		StreamARN: aws.String(streamARN),
	})
	if err != nil {
		return "", fmt.Errorf("kinesis DescribeStreamSummary: %w", err)
	}
	if out.StreamDescriptionSummary == nil || out.StreamDescriptionSummary.StreamStatus == nil {
		return types.StreamStatusEnabled, nil
	}
	return mapKinesisStreamStatus(*out.StreamDescriptionSummary.StreamStatus), nil
}

// mapKinesisStreamStatus translates Kinesis's own lifecycle vocabulary
// (ACTIVE/CREATING/UPDATING/DELETING) onto the ENABLED/ENABLING/DISABLING/
// DISABLED abstraction the ShardGraphTracker resolution loop understands.
// Kinesis has no state equivalent to a fully DISABLED-but-still-listable
// stream (a deleted stream simply stops existing, surfacing as a
// ResourceNotFoundException from ListShards); DISABLED is therefore never
// produced by this mapping today, but is kept available for a future
// StreamProxy backend that does have that state.
func mapKinesisStreamStatus(raw string) types.StreamStatus {
	switch raw {
	case kinesis.StreamStatusCreating:
		return types.StreamStatusEnabling
	case kinesis.StreamStatusDeleting:
		return types.StreamStatusDisabling
	default:
		return types.StreamStatusEnabled
	}
}

func convertKinesisShard(s *kinesis.Shard) types.Shard {
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
