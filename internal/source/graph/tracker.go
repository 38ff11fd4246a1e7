// Package graph resolves the inconsistent listings the upstream
// DescribeStream-style API can return: a child shard observed without its
// parent (fine, just incomplete) versus a closed shard observed without any
// child at all (a listing inconsistency, since a closed shard must have
// split into at least one child somewhere).
package graph

import (
	"sort"

	"github.com/usedatabrew/streamshard/internal/source/types"
)

// Tracker accumulates shard observations across one or more listing rounds
// and reports whether the accumulated view is graph-consistent.
//
// It is not safe for concurrent use; a Tracker is built fresh per discovery
// cycle and driven by a single goroutine.
type Tracker struct {
	nodes         map[string]types.Shard
	closedLeafIDs map[string]struct{}
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{
		nodes:         make(map[string]types.Shard),
		closedLeafIDs: make(map[string]struct{}),
	}
}

// AddNodes upserts a batch of shards, as returned by one listShards call.
func (t *Tracker) AddNodes(shards []types.Shard) {
	for _, s := range shards {
		t.addNode(s)
	}
}

func (t *Tracker) addNode(s types.Shard) {
	t.nodes[s.ShardID] = s

	if s.Closed() {
		t.closedLeafIDs[s.ShardID] = struct{}{}
	}
	if s.ParentShardID != nil {
		// This shard is itself a child, so its parent (if it was marked as a
		// closed leaf) now has an observed child and is no longer a leaf.
		delete(t.closedLeafIDs, *s.ParentShardID)
	}
}

// Consistent reports whether there is no closed leaf: every closed shard
// has at least one observed child.
func (t *Tracker) Consistent() bool {
	return len(t.closedLeafIDs) == 0
}

// EarliestClosedLeaf returns the lexicographically-smallest closed-leaf
// shard id, which doubles as creation-time order for the shard id schemes
// this core decodes (see types.CreationTime). Returns ("", false) when the
// graph is already consistent.
func (t *Tracker) EarliestClosedLeaf() (string, bool) {
	if len(t.closedLeafIDs) == 0 {
		return "", false
	}
	ids := make([]string, 0, len(t.closedLeafIDs))
	for id := range t.closedLeafIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids[0], true
}

// Nodes returns the accumulated shard set. The returned slice is a fresh
// copy; callers may not observe subsequent mutation of the tracker through
// it.
func (t *Tracker) Nodes() []types.Shard {
	out := make([]types.Shard, 0, len(t.nodes))
	for _, s := range t.nodes {
		out = append(out, s)
	}
	return out
}

// Lister is the narrow slice of StreamProxy the resolution loop needs: one
// listing call, optionally anchored after a given shard id.
type Lister interface {
	ListShards(startShardIDExclusive string) (shards []types.Shard, streamStatus types.StreamStatus, err error)
}

// Resolve seeds the tracker with an
// unanchored listing, then repeatedly re-list from the earliest closed leaf
// until the graph is consistent, the stream is reported DISABLED (no
// further children will ever appear), or maxRetries is exhausted.
//
// It returns the best-effort node set accumulated and whether the graph
// remains inconsistent.
func Resolve(lister Lister, maxRetries int) (nodes []types.Shard, inconsistent bool, err error) {
	t := New()

	shards, status, err := lister.ListShards("")
	if err != nil {
		return nil, false, err
	}
	t.AddNodes(shards)

	for i := 0; i < maxRetries; i++ {
		if t.Consistent() {
			break
		}
		if status == types.StreamStatusDisabled {
			break
		}
		anchor, ok := t.EarliestClosedLeaf()
		if !ok {
			break
		}
		shards, status, err = lister.ListShards(anchor)
		if err != nil {
			return nil, false, err
		}
		t.AddNodes(shards)
	}

	return t.Nodes(), !t.Consistent(), nil
}
