// Package enumerator orchestrates periodic shard discovery, listing-
// inconsistency resolution, split tracking and assignment, and worker
// completion events.
package enumerator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid"

	"github.com/usedatabrew/streamshard/internal/logging"
	"github.com/usedatabrew/streamshard/internal/metrics"
	"github.com/usedatabrew/streamshard/internal/source/assigner"
	"github.com/usedatabrew/streamshard/internal/source/graph"
	"github.com/usedatabrew/streamshard/internal/source/proxy"
	"github.com/usedatabrew/streamshard/internal/source/serde"
	"github.com/usedatabrew/streamshard/internal/source/splittracker"
	"github.com/usedatabrew/streamshard/internal/source/types"
)

// Config carries the enumerator's tunables, sourced from internal/config:
// stream identity and initial position, discovery interval, retry budget,
// split retention and parallelism.
type Config struct {
	StreamARN                string
	InitialPosition          splittracker.InitialPositionMode
	AtTimestamp              time.Time
	ShardDiscoveryInterval   time.Duration
	InconsistencyRetryCount  int
	SplitRetention           time.Duration
	Parallelism              int
}

// Enumerator is the coordinator-side orchestration component. All mutable
// state except the SplitTracker's own lock is owned exclusively by the
// single goroutine running runEventLoop; every other method either reads
// through the tracker's lock-protected accessors or submits work onto the
// event loop's channels.
type Enumerator struct {
	cfg        Config
	instanceID string
	proxy      proxy.StreamProxy
	assign     assigner.Assigner
	tracker    *splittracker.Tracker
	subtask    SubtaskContext
	exec       AsyncExecutor
	log        logging.Logger
	metrics    metrics.Recorder

	startTimestamp time.Time

	discoveryResultChan chan discoveryResult
	finishedEventChan    chan SplitsFinishedEvent
	closeChan            chan struct{}
	closeOnce            sync.Once
	loopDone             chan struct{}
	started              atomic.Bool

	discoveryInFlight bool

	// splitAssignment mirrors, per subtask, the set of split ids currently
	// pushed to that subtask but not yet reported FINISHED. Mutated only
	// from the event-loop goroutine.
	splitAssignment map[int]map[string]struct{}
}

type discoveryResult struct {
	shards       []types.Shard
	inconsistent bool
	err          error
}

// New constructs an Enumerator. When prior is non-nil, the tracker and
// startTimestamp are restored from it. When prior state is present,
// startTimestamp is restored from it; otherwise startTimestamp := now().
func New(
	cfg Config,
	p proxy.StreamProxy,
	a assigner.Assigner,
	subtask SubtaskContext,
	exec AsyncExecutor,
	log logging.Logger,
	rec metrics.Recorder,
	prior *serde.EnumeratorState,
) *Enumerator {
	instanceID := "unknown"
	if u4, err := uuid.NewV4(); err == nil {
		instanceID = u4.String()
	}

	e := &Enumerator{
		cfg:                 cfg,
		instanceID:          instanceID,
		proxy:               p,
		assign:              a,
		subtask:             subtask,
		exec:                exec,
		log:                 log.WithField("instance_id", instanceID),
		metrics:             rec,
		discoveryResultChan: make(chan discoveryResult, 1),
		finishedEventChan:   make(chan SplitsFinishedEvent, 32),
		closeChan:           make(chan struct{}),
		loopDone:            make(chan struct{}),
		splitAssignment:     make(map[int]map[string]struct{}),
	}

	if prior != nil {
		e.startTimestamp = prior.StartTimestamp
		snapshot := make([]splittracker.SplitAndStatus, 0, len(prior.Splits))
		for _, s := range prior.Splits {
			status := types.Unassigned
			if s.IsFinished {
				status = types.Finished
			}
			snapshot = append(snapshot, splittracker.SplitAndStatus{Split: s, Status: status})
		}
		e.tracker = splittracker.Restore(cfg.StreamARN, cfg.InitialPosition, anchorFor(cfg, e.startTimestamp), cfg.SplitRetention, snapshot)
		// splitAssignment (which subtask currently holds which split) is
		// deliberately left empty: subtask ids are reassigned on restart and
		// addSplitsBack is unsupported, so previously-assigned splits simply
		// wait for the next assignAll to re-place them.
	} else {
		e.startTimestamp = time.Now()
		e.tracker = splittracker.New(cfg.StreamARN, cfg.InitialPosition, anchorFor(cfg, e.startTimestamp), cfg.SplitRetention)
	}

	return e
}

// InstanceID returns the random identifier generated for this coordinator
// process, used to correlate log lines across restarts.
func (e *Enumerator) InstanceID() string {
	return e.instanceID
}

func anchorFor(cfg Config, startTimestamp time.Time) time.Time {
	if cfg.InitialPosition == splittracker.ModeAtTimestamp {
		return cfg.AtTimestamp
	}
	return startTimestamp
}

// Start launches the event loop and the immediate discovery trigger.
// Callers must eventually call Close.
func (e *Enumerator) Start(ctx context.Context) {
	e.started.Store(true)
	go e.runEventLoop(ctx)
}

// Close stops the event loop. No further discovery completions or worker
// events are processed after Close returns; any in-flight discovery result
// delivered afterward is discarded. On an Enumerator that was never started,
// Close only closes the stream proxy.
func (e *Enumerator) Close() {
	e.closeOnce.Do(func() { close(e.closeChan) })
	if e.started.Load() {
		<-e.loopDone
	}
	if err := e.proxy.Close(); err != nil {
		e.log.WithError(err).Errorf("closing stream proxy failed")
	}
}

// NotifySplitsFinished enqueues a worker completion event for processing on
// the event loop.
func (e *Enumerator) NotifySplitsFinished(ev SplitsFinishedEvent) {
	select {
	case e.finishedEventChan <- ev:
	case <-e.closeChan:
	}
}

// AddSplitsBack always fails: full re-enumeration from checkpoint is the
// only supported recovery path.
func (e *Enumerator) AddSplitsBack(splitIDs []string, subtaskID int) error {
	return fmt.Errorf("%w: subtask %d, %d splits", ErrRecoveryUnsupported, subtaskID, len(splitIDs))
}

// SnapshotState returns the checkpointable pair:
// (splitTracker.snapshotState(cpId), startTimestamp).
func (e *Enumerator) SnapshotState(checkpointID int64) serde.EnumeratorState {
	rows := e.tracker.SnapshotState(checkpointID)
	splits := make([]types.Split, len(rows))
	for i, r := range rows {
		splits[i] = r.Split
	}
	return serde.EnumeratorState{Splits: splits, StartTimestamp: e.startTimestamp}
}

func (e *Enumerator) runEventLoop(ctx context.Context) {
	defer close(e.loopDone)

	ticker := time.NewTicker(e.cfg.ShardDiscoveryInterval)
	defer ticker.Stop()

	// Immediate discovery trigger: run on this goroutine so discoveryInFlight
	// and every other mutable field stay single-writer.
	e.triggerDiscovery(ctx)

	for {
		select {
		case <-e.closeChan:
			return
		case <-ticker.C:
			e.triggerDiscovery(ctx)
		case res := <-e.discoveryResultChan:
			e.onDiscoveryComplete(res)
		case ev := <-e.finishedEventChan:
			e.onSplitsFinished(ev)
		}
	}
}

// triggerDiscovery submits a listShards+resolution round to the async
// executor, coalescing with a boolean in-flight guard so a slow round never
// overlaps with another.
func (e *Enumerator) triggerDiscovery(ctx context.Context) {
	if e.discoveryInFlight {
		return
	}
	e.discoveryInFlight = true

	start := time.Now()
	e.exec.Execute(
		func() (interface{}, error) {
			shards, inconsistent, err := graph.Resolve(e.lister(ctx), e.cfg.InconsistencyRetryCount)
			return discoveryResult{shards: shards, inconsistent: inconsistent, err: err}, err
		},
		func(res interface{}, err error) {
			e.metrics.ObserveDiscoveryDuration(time.Since(start).Seconds())
			dr, _ := res.(discoveryResult)
			if err != nil {
				dr.err = err
			}
			select {
			case e.discoveryResultChan <- dr:
			case <-e.closeChan:
			}
		},
	)
}

// lister adapts proxy.StreamProxy, which needs a context, to graph.Lister,
// which doesn't carry one: the context is fixed for the lifetime of one
// discovery round.
func (e *Enumerator) lister(ctx context.Context) graph.Lister {
	return listerFunc(func(startShardIDExclusive string) ([]types.Shard, types.StreamStatus, error) {
		return e.proxy.ListShards(ctx, e.cfg.StreamARN, startShardIDExclusive)
	})
}

type listerFunc func(startShardIDExclusive string) ([]types.Shard, types.StreamStatus, error)

func (f listerFunc) ListShards(startShardIDExclusive string) ([]types.Shard, types.StreamStatus, error) {
	return f(startShardIDExclusive)
}

// onDiscoveryComplete runs the discovery-result handling sequence, always
// back on the single event-loop goroutine.
func (e *Enumerator) onDiscoveryComplete(res discoveryResult) {
	e.discoveryInFlight = false

	if res.err != nil {
		e.log.WithError(res.err).Errorf("shard discovery failed")
		return
	}

	// Step 1: an unresolved inconsistency leaves state untouched.
	if res.inconsistent {
		e.metrics.IncInconsistency()
		e.log.Warnf("shard listing remained inconsistent after retry budget, skipping this cycle")
		return
	}

	// Step 2.
	e.tracker.AddSplits(res.shards)

	// Step 3.
	discoveredIDs := make([]string, len(res.shards))
	for i, s := range res.shards {
		discoveredIDs[i] = s.ShardID
	}
	e.tracker.CleanUpOldFinishedSplits(discoveredIDs)

	e.reportGauges()

	// Step 4: defer assignment until every registered parallel instance has
	// checked in, so the assigner's locality assumptions hold.
	if len(e.subtask.RegisteredReaders()) < e.cfg.Parallelism {
		e.log.Debugf("deferring assignment: %d/%d readers registered", len(e.subtask.RegisteredReaders()), e.cfg.Parallelism)
		return
	}

	// Step 5.
	if err := e.assignAll(); err != nil {
		e.log.WithError(err).Errorf("assignAll failed")
	}
}

// assignAll implements the batch-assignment procedure: request
// every currently assignable split, run each through the ShardAssigner with
// a context exposing both committed and in-batch-pending placement, commit
// the whole batch in one call, then mark the splits ASSIGNED.
func (e *Enumerator) assignAll() error {
	ready := e.tracker.SplitsAvailableForAssignment()
	if len(ready) == 0 {
		return nil
	}
	return e.assignBatch(ready)
}

func (e *Enumerator) assignBatch(ready []types.Split) error {
	ctx := assigner.Context{
		Committed:         e.committedBySubtask(),
		Pending:           make(map[int][]types.Split),
		RegisteredReaders: e.subtask.RegisteredReaders(),
	}

	for _, split := range ready {
		subtaskID, err := e.assign.Assign(split, ctx)
		if err != nil {
			return fmt.Errorf("assigner rejected split %s: %w", split.SplitID(), err)
		}
		ctx.Pending[subtaskID] = append(ctx.Pending[subtaskID], split)
	}

	if err := e.subtask.AssignSplits(ctx.Pending); err != nil {
		return fmt.Errorf("pushing assignment batch: %w", err)
	}

	splitIDs := make([]string, 0, len(ready))
	total := 0
	for subtaskID, splits := range ctx.Pending {
		if e.splitAssignment[subtaskID] == nil {
			e.splitAssignment[subtaskID] = make(map[string]struct{})
		}
		for _, s := range splits {
			e.splitAssignment[subtaskID][s.SplitID()] = struct{}{}
			splitIDs = append(splitIDs, s.SplitID())
			total++
		}
	}
	e.tracker.MarkAsAssigned(splitIDs)
	e.metrics.ObserveAssignmentBatchSize(float64(total))
	return nil
}

func (e *Enumerator) committedBySubtask() map[int]map[string]types.Split {
	rows := e.tracker.SnapshotState(0)
	out := make(map[int]map[string]types.Split)
	for subtaskID, ids := range e.splitAssignment {
		bucket := make(map[string]types.Split)
		for _, r := range rows {
			if _, held := ids[r.Split.SplitID()]; held && r.Status == types.Assigned {
				bucket[r.Split.SplitID()] = r.Split
			}
		}
		out[subtaskID] = bucket
	}
	return out
}

// onSplitsFinished implements the worker-completion event handling.
func (e *Enumerator) onSplitsFinished(ev SplitsFinishedEvent) {
	ids := ev.splitIDs()
	e.tracker.MarkAsFinished(ids)
	e.tracker.AddChildSplits(ev.childShards())

	held, ok := e.splitAssignment[ev.SubtaskID]
	if !ok {
		// Restart race: the event arrived before the reader re-registered
		// its assignment record. Log and swallow; the next periodic
		// discovery will pick the now-unblocked children back up.
		e.log.WithError(ErrNoAssignmentRecord).Warnf("no assignment record for subtask %d, deferring children to next discovery", ev.SubtaskID)
		e.reportGauges()
		return
	}

	for _, id := range ids {
		delete(held, id)
	}

	ready := e.tracker.GetUnassignedChildSplits(ids)
	if len(ready) > 0 {
		if err := e.assignBatch(ready); err != nil {
			e.log.WithError(err).Errorf("assignChildren failed")
		}
	}

	e.reportGauges()
}

func (e *Enumerator) reportGauges() {
	unassigned, assigned, finished := e.tracker.CountByStatus()
	_ = unassigned
	e.metrics.SetKnownSplits(float64(e.tracker.Len()))
	e.metrics.SetAssignedSplits(float64(assigned))
	e.metrics.SetFinishedSplits(float64(finished))
}
