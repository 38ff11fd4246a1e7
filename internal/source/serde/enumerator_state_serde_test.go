package serde

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usedatabrew/streamshard/internal/source/types"
)

func TestRoundTrip_EnumeratorState(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	state := EnumeratorState{
		StartTimestamp: start,
		Splits: []types.Split{
			{
				StreamARN:        "arn:aws:kinesis:us-east-1:1:stream/orders",
				ShardID:          "shardId-000000000000",
				StartingPosition: types.NewTrimHorizon(),
			},
			{
				StreamARN:        "arn:aws:kinesis:us-east-1:1:stream/orders",
				ShardID:          "shardId-000000000001",
				StartingPosition: types.NewAfterSequenceNumber("100"),
				ParentShardID:    parentOf("shardId-000000000000"),
				IsFinished:       true,
			},
		},
	}

	data, err := SerializeEnumeratorState(state, CurrentVersion)
	require.NoError(t, err)

	got, err := DeserializeEnumeratorState(data, CurrentVersion)
	require.NoError(t, err)
	assert.True(t, got.StartTimestamp.Equal(start))
	require.Len(t, got.Splits, 2)
	assert.Equal(t, "shardId-000000000000", got.Splits[0].ShardID)
	assert.Equal(t, "shardId-000000000001", got.Splits[1].ShardID)
	assert.True(t, got.Splits[1].IsFinished)
}

func TestRoundTrip_EnumeratorState_Empty(t *testing.T) {
	state := EnumeratorState{StartTimestamp: time.Unix(0, 0).UTC()}

	data, err := SerializeEnumeratorState(state, CurrentVersion)
	require.NoError(t, err)

	got, err := DeserializeEnumeratorState(data, CurrentVersion)
	require.NoError(t, err)
	assert.Empty(t, got.Splits)
}

func TestDeserializeEnumeratorState_RejectsUnsupportedVersion(t *testing.T) {
	_, err := DeserializeEnumeratorState([]byte{0, 0, 0, 0}, 7)
	assert.ErrorIs(t, err, ErrVersionMismatch)
}
