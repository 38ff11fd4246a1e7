package enumerator

import "errors"

// ErrRecoveryUnsupported is raised by AddSplitsBack. The enumerator requires
// full re-enumeration on failover; partial split hand-back is not a
// supported recovery path.
var ErrRecoveryUnsupported = errors.New("enumerator: split recovery via addSplitsBack is not supported, restart from checkpoint instead")

// ErrNoAssignmentRecord is the internal sentinel logged (never returned to
// a caller) when a SplitsFinishedEvent arrives for a subtask with no
// in-memory assignment record, a restart race this package
// describes. Children from that event are left for the next periodic
// discovery rather than scheduled immediately.
var ErrNoAssignmentRecord = errors.New("enumerator: no assignment record for subtask")
