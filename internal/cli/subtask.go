// Package cli provides the SubtaskContext that cmd/shard-enumerator wires
// into the enumerator for manual and operational use. It intentionally
// stops short of a real distributed worker pool: readers are simulated, and
// assignments are only logged rather than pushed to real worker processes.
package cli

import (
	"sync"

	"github.com/usedatabrew/streamshard/internal/logging"
	"github.com/usedatabrew/streamshard/internal/source/types"
)

// LoggingSubtaskContext is a SubtaskContext that simulates parallelism
// readers, all permanently registered, and reports every assignment batch
// through the logger rather than pushing it to real worker processes.
type LoggingSubtaskContext struct {
	mu        sync.Mutex
	readerIDs []int
	log       logging.Logger
}

// NewLoggingSubtaskContext returns a context with parallelism readers
// registered at ids 0..parallelism-1.
func NewLoggingSubtaskContext(parallelism int, log logging.Logger) *LoggingSubtaskContext {
	ids := make([]int, parallelism)
	for i := range ids {
		ids[i] = i
	}
	return &LoggingSubtaskContext{readerIDs: ids, log: log}
}

// RegisteredReaders implements enumerator.SubtaskContext.
func (l *LoggingSubtaskContext) RegisteredReaders() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]int, len(l.readerIDs))
	copy(out, l.readerIDs)
	return out
}

// AssignSplits implements enumerator.SubtaskContext by logging the batch.
// A real deployment would instead push this assignment to the corresponding
// worker subtask over whatever transport the surrounding job framework uses.
func (l *LoggingSubtaskContext) AssignSplits(assignment map[int][]types.Split) error {
	for subtaskID, splits := range assignment {
		ids := make([]string, len(splits))
		for i, s := range splits {
			ids[i] = s.SplitID()
		}
		l.log.WithField("subtask_id", subtaskID).WithField("split_ids", ids).Infof("assigned %d split(s)", len(ids))
	}
	return nil
}
