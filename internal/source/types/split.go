package types

// SplitAssignmentStatus is a closed sum type: UNASSIGNED -> ASSIGNED ->
// FINISHED. No other transition is valid.
type SplitAssignmentStatus int

const (
	Unassigned SplitAssignmentStatus = iota
	Assigned
	Finished
)

func (s SplitAssignmentStatus) String() string {
	switch s {
	case Unassigned:
		return "UNASSIGNED"
	case Assigned:
		return "ASSIGNED"
	case Finished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// ChildSplit is the minimal shape a finished split announces about a child:
// enough to construct a Split once merged into the tracker.
type ChildSplit struct {
	ShardID             string
	ParentShardID       *string
	SequenceNumberRange SequenceNumberRange
}

// Split is the unit of assignable work, one-to-one with a shard. Splits are
// immutable once constructed; IsFinished and ChildSplits are only ever
// changed by constructing a new Split via WithFinished.
type Split struct {
	StreamARN        string
	ShardID          string
	StartingPosition StartingPosition
	ParentShardID    *string
	IsFinished       bool
	ChildSplits      []ChildSplit
}

// SplitID returns the split's identity, equal to its shard id by
// definition: splitId == shardId.
func (s Split) SplitID() string {
	return s.ShardID
}

// WithFinished returns a new Split with IsFinished set and the given
// children attached. The receiver is left untouched.
func (s Split) WithFinished(children []ChildSplit) Split {
	out := s
	out.IsFinished = true
	out.ChildSplits = append([]ChildSplit(nil), children...)
	return out
}
