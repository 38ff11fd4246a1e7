// Package assigner implements the pluggable policy that maps a ready split
// onto a worker subtask.
package assigner

import (
	"sort"

	"github.com/usedatabrew/streamshard/internal/source/types"
)

// Context exposes everything an Assigner is allowed to look at: it must be
// a pure function of (split, context), nothing else.
type Context struct {
	// Committed is the assignment map already acknowledged by workers.
	Committed map[int]map[string]types.Split
	// Pending is the in-progress batch not yet committed, so an assigner
	// can balance within a single assignAll call.
	Pending map[int][]types.Split
	// RegisteredReaders lists subtask ids currently registered.
	RegisteredReaders []int
}

func (c Context) splitCount(subtask int) int {
	return len(c.Committed[subtask]) + len(c.Pending[subtask])
}

// Assigner maps a split to a subtask id. Implementations must be pure
// functions of (split, context): no hidden state, no randomness.
type Assigner interface {
	Assign(split types.Split, ctx Context) (subtaskID int, err error)
}

// Uniform picks the subtask with the fewest committed+pending splits,
// breaking ties on the lowest subtask id. This is the default policy.
type Uniform struct{}

// Assign implements Assigner.
func (Uniform) Assign(_ types.Split, ctx Context) (int, error) {
	readers := append([]int(nil), ctx.RegisteredReaders...)
	sort.Ints(readers)

	if len(readers) == 0 {
		return 0, ErrNoRegisteredReaders
	}

	best := readers[0]
	bestCount := ctx.splitCount(best)
	for _, r := range readers[1:] {
		if c := ctx.splitCount(r); c < bestCount {
			best, bestCount = r, c
		}
	}
	return best, nil
}

// Sticky assigns a child split to whichever subtask currently holds its
// parent, provided that subtask is still registered; otherwise it falls
// back to Uniform. Grounded on the shard-affinity rationale
// gives for deferring assignment until all readers register.
type Sticky struct {
	fallback Assigner
}

// NewSticky returns a Sticky assigner falling back to Uniform.
func NewSticky() Sticky {
	return Sticky{fallback: Uniform{}}
}

// Assign implements Assigner.
func (s Sticky) Assign(split types.Split, ctx Context) (int, error) {
	if split.ParentShardID != nil {
		if subtask, ok := holderOf(ctx, *split.ParentShardID); ok {
			if isRegistered(ctx.RegisteredReaders, subtask) {
				return subtask, nil
			}
		}
	}
	return s.fallback.Assign(split, ctx)
}

func holderOf(ctx Context, splitID string) (int, bool) {
	for subtask, splits := range ctx.Committed {
		if _, ok := splits[splitID]; ok {
			return subtask, true
		}
	}
	for subtask, splits := range ctx.Pending {
		for _, s := range splits {
			if s.SplitID() == splitID {
				return subtask, true
			}
		}
	}
	return 0, false
}

func isRegistered(readers []int, subtask int) bool {
	for _, r := range readers {
		if r == subtask {
			return true
		}
	}
	return false
}
