// Package splittracker holds the canonical registry of known splits and
// their assignment status: this is the largest single
// share of the implementation budget to (§2, 35%).
package splittracker

import (
	"sort"
	"sync"
	"time"

	"github.com/usedatabrew/streamshard/internal/source/types"
)

// InitialPositionMode selects the policy addSplits uses for newly
// discovered shards.
type InitialPositionMode int

const (
	ModeTrimHorizon InitialPositionMode = iota
	ModeLatest
	ModeAtTimestamp
)

// SplitAndStatus is the snapshot element returned by SnapshotState and
// used to restore a Tracker after a restart.
type SplitAndStatus struct {
	Split  types.Split
	Status types.SplitAssignmentStatus
}

// Tracker is the canonical split registry. All mutation is expected to run
// on the enumerator's single coordinator goroutine; the
// internal mutex exists only so SnapshotState can be called safely from the
// checkpointing path without observing a partially-applied batch.
type Tracker struct {
	mu sync.RWMutex

	streamARN string
	mode      InitialPositionMode
	anchor    time.Time // job start, or the AT_TIMESTAMP value
	retention time.Duration
	now       func() time.Time

	knownSplits      map[string]types.Split
	assignedSplits   map[string]struct{}
	finishedSplits   map[string]struct{}
	parentChildIndex map[string]map[string]struct{}
}

// New builds an empty Tracker for streamARN. retention bounds
// cleanUpOldFinishedSplits; anchor is the job start timestamp (Latest mode)
// or the configured AT_TIMESTAMP value.
func New(streamARN string, mode InitialPositionMode, anchor time.Time, retention time.Duration) *Tracker {
	return &Tracker{
		streamARN:        streamARN,
		mode:             mode,
		anchor:           anchor,
		retention:        retention,
		now:              time.Now,
		knownSplits:      make(map[string]types.Split),
		assignedSplits:   make(map[string]struct{}),
		finishedSplits:   make(map[string]struct{}),
		parentChildIndex: make(map[string]map[string]struct{}),
	}
}

// Restore rebuilds a Tracker from a checkpointed snapshot
// restart semantics: full state is replayed, partial recovery is not
// supported).
func Restore(streamARN string, mode InitialPositionMode, anchor time.Time, retention time.Duration, snapshot []SplitAndStatus) *Tracker {
	t := New(streamARN, mode, anchor, retention)
	for _, e := range snapshot {
		t.insertKnown(e.Split)
		switch e.Status {
		case types.Assigned:
			t.assignedSplits[e.Split.SplitID()] = struct{}{}
		case types.Finished:
			t.finishedSplits[e.Split.SplitID()] = struct{}{}
		}
	}
	return t
}

func (t *Tracker) insertKnown(s types.Split) {
	s.StreamARN = t.streamARN
	t.knownSplits[s.SplitID()] = s
	if s.ParentShardID != nil {
		children := t.parentChildIndex[*s.ParentShardID]
		if children == nil {
			children = make(map[string]struct{})
			t.parentChildIndex[*s.ParentShardID] = children
		}
		children[s.SplitID()] = struct{}{}
	}
}

// AddSplits merges a newly discovered shard batch, honoring the configured
// InitialPositionMode. It is idempotent: shards already in
// knownSplits are left untouched.
func (t *Tracker) AddSplits(shards []types.Shard) {
	t.mu.Lock()
	defer t.mu.Unlock()

	byID := make(map[string]types.Shard, len(shards))
	for _, s := range shards {
		byID[s.ShardID] = s
	}

	switch t.mode {
	case ModeTrimHorizon:
		for _, s := range shards {
			t.addTrimHorizon(s)
		}
	default:
		for _, s := range shards {
			t.addWithAnchor(s, byID)
		}
	}
}

func (t *Tracker) addTrimHorizon(s types.Shard) {
	if _, ok := t.knownSplits[s.ShardID]; ok {
		return
	}
	t.insertKnown(types.Split{
		ShardID:          s.ShardID,
		StartingPosition: types.NewTrimHorizon(),
		ParentShardID:    s.ParentShardID,
	})
}

// addWithAnchor implements the Latest/AtTimestamp merge policy: only open
// shards not yet known trigger the ancestor walk; every shard touched along
// the way (ancestor-ward and descendant-ward) is inserted if missing.
func (t *Tracker) addWithAnchor(s types.Shard, batch map[string]types.Shard) {
	if s.Closed() {
		// Closed shards never start an ancestor walk: they are inserted only
		// when an open descendant's walk reaches them. A closed shard that no
		// open shard's walk reaches is not tracked.
		return
	}
	if _, ok := t.knownSplits[s.ShardID]; ok {
		return
	}

	// Walk ancestors upward collecting the descendant chain, until we find
	// a shard whose creation time is at or before the anchor, or until we
	// run out of known ancestry.
	var chain []types.Shard
	cur := s
	anchorID := s.ShardID
	for {
		chain = append(chain, cur)
		created, err := types.CreationTime(cur.ShardID)
		if err == nil && !created.After(t.anchor) {
			anchorID = cur.ShardID
			break
		}
		if cur.ParentShardID == nil {
			anchorID = cur.ShardID
			break
		}
		parent, ok := batch[*cur.ParentShardID]
		if !ok {
			if _, ok := t.knownSplits[*cur.ParentShardID]; ok {
				// Parent already tracked: the anchor decision was made on
				// an earlier discovery cycle. anchorID now names a shard
				// outside chain, so every chain member below gets
				// TrimHorizon, which is correct: they're descendants of an
				// already-anchored ancestor.
				anchorID = *cur.ParentShardID
				break
			}
			// Parent not observed at all (yet): best effort, treat the
			// oldest shard we could see as the anchor.
			anchorID = cur.ShardID
			break
		}
		cur = parent
	}

	for _, shard := range chain {
		if _, ok := t.knownSplits[shard.ShardID]; ok {
			continue
		}
		pos := types.NewTrimHorizon()
		if shard.ShardID == anchorID {
			pos = types.NewLatest()
			if t.mode == ModeAtTimestamp {
				pos = types.NewAtTimestamp(t.anchor)
			}
		}
		t.insertKnown(types.Split{
			ShardID:          shard.ShardID,
			StartingPosition: pos,
			ParentShardID:    shard.ParentShardID,
		})
	}
}

// AddChildSplits appends children announced via a SplitsFinishedEvent.
// Children always start from their beginning.
func (t *Tracker) AddChildSplits(children []types.ChildSplit) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range children {
		if _, ok := t.knownSplits[c.ShardID]; ok {
			continue
		}
		t.insertKnown(types.Split{
			ShardID:          c.ShardID,
			StartingPosition: types.NewTrimHorizon(),
			ParentShardID:    c.ParentShardID,
		})
	}
}

// MarkAsAssigned transitions the given splits UNASSIGNED -> ASSIGNED.
func (t *Tracker) MarkAsAssigned(splitIDs []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range splitIDs {
		t.assignedSplits[id] = struct{}{}
	}
}

// MarkAsFinished transitions the given splits to FINISHED, removing them
// from ASSIGNED (invariant 1: assignedSplits ∩ finishedSplits = ∅). Ids
// not in knownSplits are ignored.
func (t *Tracker) MarkAsFinished(splitIDs []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range splitIDs {
		s, ok := t.knownSplits[id]
		if !ok {
			continue
		}
		delete(t.assignedSplits, id)
		t.finishedSplits[id] = struct{}{}
		if !s.IsFinished {
			t.knownSplits[id] = s.WithFinished(s.ChildSplits)
		}
	}
}

func (t *Tracker) parentIsFinishedOrGone(s types.Split) bool {
	if s.ParentShardID == nil {
		return true
	}
	if _, finished := t.finishedSplits[*s.ParentShardID]; finished {
		return true
	}
	_, known := t.knownSplits[*s.ParentShardID]
	return !known
}

func (t *Tracker) canAssign(s types.Split) bool {
	id := s.SplitID()
	if _, assigned := t.assignedSplits[id]; assigned {
		return false
	}
	if _, finished := t.finishedSplits[id]; finished {
		return false
	}
	return t.parentIsFinishedOrGone(s)
}

// SplitsAvailableForAssignment returns every known split eligible for
// assignment right now.
func (t *Tracker) SplitsAvailableForAssignment() []types.Split {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]types.Split, 0)
	for _, s := range t.knownSplits {
		if t.canAssign(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShardID < out[j].ShardID })
	return out
}

// GetUnassignedChildSplits is the low-latency fast path used right after a
// parent finishes: it walks only parentChildIndex, not the full split set.
func (t *Tracker) GetUnassignedChildSplits(parentIDs []string) []types.Split {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]types.Split, 0)
	for _, pid := range parentIDs {
		for childID := range t.parentChildIndex[pid] {
			s, ok := t.knownSplits[childID]
			if ok && t.canAssign(s) {
				out = append(out, s)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShardID < out[j].ShardID })
	return out
}

// SnapshotState materializes a deterministic (Split, Status) pair for
// every known split. checkpointID is accepted for interface symmetry with
// the enumerator's checkpoint call but doesn't otherwise affect output.
func (t *Tracker) SnapshotState(checkpointID int64) []SplitAndStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]SplitAndStatus, 0, len(t.knownSplits))
	for id, s := range t.knownSplits {
		status := types.Unassigned
		if _, ok := t.finishedSplits[id]; ok {
			status = types.Finished
		} else if _, ok := t.assignedSplits[id]; ok {
			status = types.Assigned
		}
		out = append(out, SplitAndStatus{Split: s, Status: status})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Split.ShardID < out[j].Split.ShardID })
	return out
}

// CleanUpOldFinishedSplits evicts finished splits that are safe to forget:
// the parent is finished-or-gone, the upstream listing no longer returns
// the shard, and its encoded creation time exceeds retention. This is the
// strict precedence form, chosen deliberately over the
// legacy looser variant (see DESIGN.md Open Question #2).
func (t *Tracker) CleanUpOldFinishedSplits(discoveredIDs []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	discovered := make(map[string]struct{}, len(discoveredIDs))
	for _, id := range discoveredIDs {
		discovered[id] = struct{}{}
	}

	now := t.now()
	for id := range t.finishedSplits {
		s, ok := t.knownSplits[id]
		if !ok {
			continue
		}
		if !t.parentIsFinishedOrGone(s) {
			continue
		}
		if _, stillDiscovered := discovered[id]; stillDiscovered {
			continue
		}
		if !types.AgeExceedsRetention(id, t.retention, now) {
			continue
		}
		if t.hasUnfinishedTrackedChild(id) {
			// Never remove a split whose direct
			// child is still tracked and not yet finished.
			continue
		}
		t.evict(id, s)
	}
}

func (t *Tracker) hasUnfinishedTrackedChild(parentID string) bool {
	for childID := range t.parentChildIndex[parentID] {
		if _, finished := t.finishedSplits[childID]; finished {
			continue
		}
		if _, known := t.knownSplits[childID]; known {
			return true
		}
	}
	return false
}

func (t *Tracker) evict(id string, s types.Split) {
	delete(t.knownSplits, id)
	delete(t.finishedSplits, id)
	if s.ParentShardID != nil {
		if children := t.parentChildIndex[*s.ParentShardID]; children != nil {
			delete(children, id)
			if len(children) == 0 {
				delete(t.parentChildIndex, *s.ParentShardID)
			}
		}
	}
	delete(t.parentChildIndex, id)
}

// Len reports the number of known splits.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.knownSplits)
}

// CountByStatus reports the known-split count per status, for metrics.
func (t *Tracker) CountByStatus() (unassigned, assigned, finished int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	assigned = len(t.assignedSplits)
	finished = len(t.finishedSplits)
	unassigned = len(t.knownSplits) - assigned - finished
	return
}
