package proxy

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodbstreams"
	"github.com/aws/aws-sdk-go/service/dynamodbstreams/dynamodbstreamsiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usedatabrew/streamshard/internal/source/types"
)

type fakeDynamoDBStreamsAPI struct {
	dynamodbstreamsiface.DynamoDBStreamsAPI
	pages map[string][]*dynamodbstreams.Shard // keyed by ExclusiveStartShardId ("" for first page)
}

func (f *fakeDynamoDBStreamsAPI) DescribeStreamWithContext(_ aws.Context, in *dynamodbstreams.DescribeStreamInput, _ ...request.Option) (*dynamodbstreams.DescribeStreamOutput, error) {
	key := ""
	if in.ExclusiveStartShardId != nil {
		key = *in.ExclusiveStartShardId
	}
	shards := f.pages[key]

	out := &dynamodbstreams.DescribeStreamOutput{
		StreamDescription: &dynamodbstreams.StreamDescription{
			Shards: shards,
		},
	}
	if key == "" {
		out.StreamDescription.LastEvaluatedShardId = aws.String("shardId-000000000000")
	}
	return out, nil
}

func TestDynamoDBStreamsProxy_ListShards_FollowsLastEvaluatedShardId(t *testing.T) {
	api := &fakeDynamoDBStreamsAPI{
		pages: map[string][]*dynamodbstreams.Shard{
			"": {{
				ShardId: aws.String("shardId-000000000000"),
				SequenceNumberRange: &dynamodbstreams.SequenceNumberRange{
					StartingSequenceNumber: aws.String("100"),
				},
			}},
			"shardId-000000000000": {{
				ShardId:       aws.String("shardId-000000000001"),
				ParentShardId: aws.String("shardId-000000000000"),
				SequenceNumberRange: &dynamodbstreams.SequenceNumberRange{
					StartingSequenceNumber: aws.String("200"),
				},
			}},
		},
	}
	p := &DynamoDBStreamsProxy{svc: api}

	shards, status, err := p.ListShards(context.Background(), "arn:aws:dynamodb:us-east-1:1:table/orders/stream/2024", "")
	require.NoError(t, err)
	assert.Equal(t, types.StreamStatusEnabled, status)
	require.Len(t, shards, 2)
	assert.Equal(t, "shardId-000000000000", shards[0].ShardID)
	assert.Equal(t, "shardId-000000000001", shards[1].ShardID)
	require.NotNil(t, shards[1].ParentShardID)
	assert.Equal(t, "shardId-000000000000", *shards[1].ParentShardID)
}
