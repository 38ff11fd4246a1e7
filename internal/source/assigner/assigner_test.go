package assigner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usedatabrew/streamshard/internal/source/types"
)

func split(id string) types.Split {
	return types.Split{ShardID: id, StartingPosition: types.NewTrimHorizon()}
}

func TestUniform_PicksFewestSplits(t *testing.T) {
	ctx := Context{
		Committed: map[int]map[string]types.Split{
			0: {"a": split("a"), "b": split("b")},
			1: {"c": split("c")},
		},
		RegisteredReaders: []int{0, 1},
	}
	subtask, err := Uniform{}.Assign(split("d"), ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, subtask)
}

func TestUniform_TiesBreakOnLowestID(t *testing.T) {
	ctx := Context{RegisteredReaders: []int{2, 0, 1}}
	subtask, err := Uniform{}.Assign(split("a"), ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, subtask)
}

func TestUniform_ConsidersPendingBatch(t *testing.T) {
	ctx := Context{
		Pending: map[int][]types.Split{
			0: {split("a"), split("b")},
		},
		RegisteredReaders: []int{0, 1},
	}
	subtask, err := Uniform{}.Assign(split("c"), ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, subtask)
}

func TestUniform_NoReaders(t *testing.T) {
	_, err := Uniform{}.Assign(split("a"), Context{})
	assert.ErrorIs(t, err, ErrNoRegisteredReaders)
}

func TestSticky_PrefersParentHolder(t *testing.T) {
	parent := "p0"
	child := types.Split{ShardID: "c0", ParentShardID: &parent}

	ctx := Context{
		Committed: map[int]map[string]types.Split{
			0: {"p0": split("p0")},
			1: {},
		},
		RegisteredReaders: []int{0, 1},
	}
	subtask, err := NewSticky().Assign(child, ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, subtask)
}

func TestSticky_FallsBackWhenHolderGone(t *testing.T) {
	parent := "p0"
	child := types.Split{ShardID: "c0", ParentShardID: &parent}

	ctx := Context{
		Committed: map[int]map[string]types.Split{
			0: {"p0": split("p0"), "x": split("x")},
		},
		RegisteredReaders: []int{1}, // subtask 0 no longer registered
	}
	subtask, err := NewSticky().Assign(child, ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, subtask)
}
