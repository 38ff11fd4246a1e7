package splittracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usedatabrew/streamshard/internal/source/types"
)

func ptr(s string) *string { return &s }

func shardWithCreation(id string, created time.Time, parent *string, closed bool) types.Shard {
	s := types.Shard{
		ShardID:       id,
		ParentShardID: parent,
		SequenceNumberRange: types.SequenceNumberRange{
			StartingSequenceNumber: "start-" + id,
		},
	}
	if closed {
		end := "end-" + id
		s.SequenceNumberRange.EndingSequenceNumber = &end
	}
	_ = created
	return s
}

// idAt builds a shard id whose CreationTime decodes to t.
func idAt(label string, t time.Time) string {
	ms := t.UnixMilli()
	digits := []byte{}
	v := ms
	for v > 0 {
		digits = append([]byte{byte('0' + v%10)}, digits...)
		v /= 10
	}
	for len(digits) < 15 {
		digits = append([]byte{'0'}, digits...)
	}
	return "shardId-" + string(digits) + "-" + label
}

func TestAddSplits_TrimHorizon_LinearAncestry(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s0 := idAt("s0", base)
	s1 := idAt("s1", base.Add(time.Hour))

	tr := New("arn:aws:kinesis:us-east-1:123456789012:stream/orders", ModeTrimHorizon, base, 24*time.Hour)
	tr.AddSplits([]types.Shard{
		shardWithCreation(s0, base, nil, true),
		shardWithCreation(s1, base.Add(time.Hour), ptr(s0), false),
	})

	avail := tr.SplitsAvailableForAssignment()
	ids := map[string]bool{}
	for _, s := range avail {
		ids[s.ShardID] = true
		assert.Equal(t, "arn:aws:kinesis:us-east-1:123456789012:stream/orders", s.StreamARN)
	}
	assert.True(t, ids[s0])
	assert.False(t, ids[s1], "s1 stays blocked until its parent s0 is finished")
	assert.Equal(t, 2, tr.Len())
}

func TestAddSplits_Latest_AnchorsAtFirstShardBeforeStart(t *testing.T) {
	jobStart := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s0 := idAt("s0", jobStart.Add(-time.Hour)) // created before job start
	s1 := idAt("s1", jobStart.Add(time.Hour))  // split after job start

	tr := New("arn:aws:kinesis:us-east-1:123456789012:stream/orders", ModeLatest, jobStart, 24*time.Hour)
	tr.AddSplits([]types.Shard{
		shardWithCreation(s0, jobStart.Add(-time.Hour), nil, true),
		shardWithCreation(s1, jobStart.Add(time.Hour), ptr(s0), false),
	})

	snap := tr.SnapshotState(0)
	byID := map[string]SplitAndStatus{}
	for _, e := range snap {
		byID[e.Split.ShardID] = e
	}
	require.Contains(t, byID, s0)
	require.Contains(t, byID, s1)
	assert.Equal(t, types.Latest, byID[s0].Split.StartingPosition.Kind)
	assert.Equal(t, types.TrimHorizon, byID[s1].Split.StartingPosition.Kind)
}

func TestAddSplits_Idempotent(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s0 := idAt("s0", base)
	shards := []types.Shard{shardWithCreation(s0, base, nil, false)}

	tr := New("arn:aws:kinesis:us-east-1:123456789012:stream/orders", ModeTrimHorizon, base, 24*time.Hour)
	tr.AddSplits(shards)
	before := tr.SnapshotState(0)
	tr.AddSplits(shards)
	after := tr.SnapshotState(0)

	assert.Equal(t, before, after)
	assert.Equal(t, 1, tr.Len())
}

func TestAssignAndFinishTransitions(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s0 := idAt("s0", base)

	tr := New("arn:aws:kinesis:us-east-1:123456789012:stream/orders", ModeTrimHorizon, base, 24*time.Hour)
	tr.AddSplits([]types.Shard{shardWithCreation(s0, base, nil, false)})

	tr.MarkAsAssigned([]string{s0})
	assert.Empty(t, tr.SplitsAvailableForAssignment())

	tr.MarkAsFinished([]string{s0})
	assert.Empty(t, tr.SplitsAvailableForAssignment())

	_, assigned, finished := tr.CountByStatus()
	assert.Equal(t, 0, assigned)
	assert.Equal(t, 1, finished)
}

func TestChildBlockedUntilParentFinished(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s0 := idAt("s0", base)
	s1 := idAt("s1", base.Add(time.Minute))

	tr := New("arn:aws:kinesis:us-east-1:123456789012:stream/orders", ModeTrimHorizon, base, 24*time.Hour)
	tr.AddSplits([]types.Shard{shardWithCreation(s0, base, nil, false)})
	tr.MarkAsAssigned([]string{s0})

	tr.AddChildSplits([]types.ChildSplit{{ShardID: s1, ParentShardID: ptr(s0)}})
	assert.Empty(t, tr.SplitsAvailableForAssignment(), "child must not be assignable before parent finishes")

	tr.MarkAsFinished([]string{s0})
	avail := tr.SplitsAvailableForAssignment()
	require.Len(t, avail, 1)
	assert.Equal(t, s1, avail[0].ShardID)
	assert.Equal(t, "arn:aws:kinesis:us-east-1:123456789012:stream/orders", avail[0].StreamARN)

	fast := tr.GetUnassignedChildSplits([]string{s0})
	require.Len(t, fast, 1)
	assert.Equal(t, s1, fast[0].ShardID)
}

func TestChildObservedBeforeParent_NotAssignable(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s0 := idAt("s0", base)
	s1 := idAt("s1", base.Add(time.Minute))

	tr := New("arn:aws:kinesis:us-east-1:123456789012:stream/orders", ModeTrimHorizon, base, 24*time.Hour)
	// s1 arrives with a parent id that has never been observed.
	tr.AddSplits([]types.Shard{shardWithCreation(s1, base.Add(time.Minute), ptr(s0), false)})

	assert.Empty(t, tr.SplitsAvailableForAssignment())
}

func TestCleanUpOldFinishedSplits(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s0 := idAt("s0", base)

	tr := New("arn:aws:kinesis:us-east-1:123456789012:stream/orders", ModeTrimHorizon, base, time.Hour)
	tr.now = func() time.Time { return base.Add(48 * time.Hour) }

	// s0 has no tracked child: the simple garbage-collection case.
	tr.AddSplits([]types.Shard{
		shardWithCreation(s0, base, nil, false),
	})
	tr.MarkAsFinished([]string{s0})

	// Still discovered: must not be evicted even though retention has passed.
	tr.CleanUpOldFinishedSplits([]string{s0})
	assert.Equal(t, 1, tr.Len())

	// No longer discovered and retention exceeded: evicted.
	tr.CleanUpOldFinishedSplits(nil)
	assert.Equal(t, 0, tr.Len())
}

func TestCleanUpOldFinishedSplits_EvictsFinishedParentAndChild(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s0 := idAt("s0", base)
	s1 := idAt("s1", base.Add(time.Minute))

	tr := New("arn:aws:kinesis:us-east-1:123456789012:stream/orders", ModeTrimHorizon, base, time.Hour)
	tr.now = func() time.Time { return base.Add(48 * time.Hour) }

	tr.AddSplits([]types.Shard{shardWithCreation(s0, base, nil, false)})
	tr.AddChildSplits([]types.ChildSplit{{ShardID: s1, ParentShardID: ptr(s0)}})
	tr.MarkAsFinished([]string{s0})
	// Finish s1 too so s0 has no unfinished tracked child and is gc'able.
	tr.MarkAsFinished([]string{s1})

	tr.CleanUpOldFinishedSplits(nil)
	assert.Equal(t, 0, tr.Len(), "both finished, retention-expired, undiscovered splits are evicted")
}

func TestCleanUpOldFinishedSplits_NeverEvictsWhileChildUnfinished(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s0 := idAt("s0", base)
	s1 := idAt("s1", base.Add(time.Minute))

	tr := New("arn:aws:kinesis:us-east-1:123456789012:stream/orders", ModeTrimHorizon, base, time.Hour)
	tr.now = func() time.Time { return base.Add(48 * time.Hour) }

	tr.AddSplits([]types.Shard{shardWithCreation(s0, base, nil, false)})
	tr.AddChildSplits([]types.ChildSplit{{ShardID: s1, ParentShardID: ptr(s0)}})
	tr.MarkAsFinished([]string{s0})
	tr.MarkAsAssigned([]string{s1})

	// Even with retention exceeded and s0 no longer discovered, s0's direct
	// child s1 is still known and unfinished: invariant 5 forbids evicting
	// s0 in this state, so nothing is removed yet.
	tr.CleanUpOldFinishedSplits(nil)
	assert.Equal(t, 2, tr.Len(), "s0 is not evicted while its child is tracked and unfinished")

	snap := tr.SnapshotState(0)
	require.Len(t, snap, 2)
}

func TestRestore_BlocksAssignedParentsChild(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s0, s1, s2 := idAt("s0", base), idAt("s1", base), idAt("s2", base)

	snapshot := []SplitAndStatus{
		{Split: types.Split{ShardID: s0, StartingPosition: types.NewTrimHorizon()}, Status: types.Finished},
		{Split: types.Split{ShardID: s1, StartingPosition: types.NewTrimHorizon(), ParentShardID: ptr(s0)}, Status: types.Assigned},
		{Split: types.Split{ShardID: s2, StartingPosition: types.NewTrimHorizon(), ParentShardID: ptr(s1)}, Status: types.Unassigned},
	}

	tr := Restore("arn:aws:kinesis:us-east-1:123456789012:stream/orders", ModeTrimHorizon, base, 24*time.Hour, snapshot)
	assert.Empty(t, tr.SplitsAvailableForAssignment(), "s1 still assigned, s2 blocked on s1")

	tr.MarkAsFinished([]string{s1})
	avail := tr.SplitsAvailableForAssignment()
	require.Len(t, avail, 1)
	assert.Equal(t, s2, avail[0].ShardID)
}
