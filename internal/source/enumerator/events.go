package enumerator

import "github.com/usedatabrew/streamshard/internal/source/types"

// FinishedSplit is one element of a SplitsFinishedEvent: the split that
// completed, plus the children it announces.
type FinishedSplit struct {
	SplitID     string
	ChildShards []types.ChildSplit
}

// SplitsFinishedEvent is the only event a worker subtask reports back to
// the enumerator.
type SplitsFinishedEvent struct {
	SubtaskID int
	Finished  []FinishedSplit
}

func (e SplitsFinishedEvent) splitIDs() []string {
	out := make([]string, len(e.Finished))
	for i, f := range e.Finished {
		out[i] = f.SplitID
	}
	return out
}

func (e SplitsFinishedEvent) childShards() []types.ChildSplit {
	var out []types.ChildSplit
	for _, f := range e.Finished {
		out = append(out, f.ChildShards...)
	}
	return out
}

// SplitsAssignment is the batch pushed to workers by assignAll/assignChildren,
// keyed by subtask id.
type SplitsAssignment struct {
	Assignment map[int][]types.Split
}
