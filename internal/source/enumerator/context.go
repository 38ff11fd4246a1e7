package enumerator

import (
	"sync"

	"github.com/usedatabrew/streamshard/internal/source/types"
)

// SubtaskContext is the enumerator's view of the coordinator runtime: which
// subtasks are registered, and the sink splits are pushed to.
type SubtaskContext interface {
	RegisteredReaders() []int
	AssignSplits(assignment map[int][]types.Split) error
}

// AsyncExecutor runs a blocking task off the coordinator goroutine and
// delivers its result back through callback, invoked on whatever goroutine
// the executor chooses — the Enumerator is responsible for re-marshaling
// that result onto its own single event-loop goroutine before touching any
// shared state.
type AsyncExecutor interface {
	Execute(task func() (interface{}, error), callback func(interface{}, error))
}

// serialExecutor runs at most one task at a time on a dedicated goroutine.
type serialExecutor struct {
	tasks chan func()
	once  sync.Once
	done  chan struct{}
}

// NewSerialExecutor starts the executor's worker goroutine. Callers must
// call Close when done to stop it.
func NewSerialExecutor() *serialExecutor {
	e := &serialExecutor{
		tasks: make(chan func()),
		done:  make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *serialExecutor) run() {
	for {
		select {
		case task := <-e.tasks:
			task()
		case <-e.done:
			return
		}
	}
}

func (e *serialExecutor) Execute(task func() (interface{}, error), callback func(interface{}, error)) {
	submission := func() {
		result, err := task()
		callback(result, err)
	}
	select {
	case e.tasks <- submission:
	case <-e.done:
	}
}

// Close stops the worker goroutine. In-flight tasks still run to
// completion; queued-but-not-started submissions are dropped.
func (e *serialExecutor) Close() {
	e.once.Do(func() { close(e.done) })
}
