// Package blocking detects synchronous windows of the event loop that run
// longer than a threshold and explains them by the causal chain of
// asynchronous operations that led to them.
package blocking

import (
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/xid"
	"github.com/sarchlab/stallscope/hooking"
	"github.com/sarchlab/stallscope/stack"
)

// Runtime is the host that delivers lifecycle signals to the Detector
// through hooks and answers which operation is running.
type Runtime interface {
	hooking.Hookable

	// ExecutionID returns the operation that is currently running.
	ExecutionID() OperationID

	// TriggerID returns the trigger of the operation that is currently
	// running.
	TriggerID() OperationID

	// ReportError hands an error to the runtime's unhandled-error path.
	ReportError(err error)
}

// Stats is a snapshot of the Detector tables. It is safe to read from any
// goroutine.
type Stats struct {
	TrackedOperations int   `json:"tracked_operations"`
	SkippedOperations int   `json:"skipped_operations"`
	OpenWindows       int   `json:"open_windows"`
	ContextEntries    int   `json:"context_entries"`
	Subscribers       int   `json:"subscribers"`
	BlockedEvents     int64 `json:"blocked_events"`
}

// A Detector watches the synchronous windows of a Runtime.
//
// All methods except Stats must be called on the runtime's goroutine.
type Detector struct {
	runtime   Runtime
	clock     clock.Clock
	capturer  *stack.Capturer
	threshold time.Duration

	captureStacks bool
	enabled       bool
	hooked        bool
	suspendDepth  int

	graph     *flowGraph
	skipped   skipSet
	windows   timingTable
	contexts  contextStore
	callbacks callbackRegistry

	numTracked   atomic.Int64
	numSkipped   atomic.Int64
	numWindows   atomic.Int64
	numContexts  atomic.Int64
	numCallbacks atomic.Int64
	numEvents    atomic.Int64
}

// Threshold returns the configured threshold.
func (d *Detector) Threshold() time.Duration {
	return d.threshold
}

// Start makes the Detector process lifecycle signals. Calling Start on a
// running Detector has no effect.
func (d *Detector) Start() {
	if !d.hooked {
		d.runtime.AcceptHook(d)
		d.hooked = true
	}

	d.enabled = true
}

// Stop makes the Detector ignore lifecycle signals and forgets every tracked
// operation, since their destroy signals will not be seen. Calling Stop on a
// stopped Detector has no effect.
func (d *Detector) Stop() {
	if !d.enabled {
		return
	}

	d.enabled = false
	d.resetTables()
}

// Running tells if the Detector processes lifecycle signals.
func (d *Detector) Running() bool {
	return d.enabled
}

// SetUseAsyncStackTraces turns creation-time stack capture on or off.
// Operations created before capture was turned on keep an empty stack.
func (d *Detector) SetUseAsyncStackTraces(enabled bool) {
	d.captureStacks = enabled
}

// OnBlocked registers a callback for every BlockedEvent. Callbacks run in
// registration order.
func (d *Detector) OnBlocked(cb Callback) *Subscription {
	return d.callbacks.add(cb)
}

// Func dispatches the operation lifecycle hooks of the runtime.
func (d *Detector) Func(ctx hooking.HookCtx) {
	info, ok := ctx.Item.(hooking.OperationInfo)
	if !ok {
		return
	}

	switch ctx.Pos {
	case hooking.HookPosOperationInit:
		d.Created(info.ID, info.Type, info.TriggerID)
	case hooking.HookPosOperationBefore:
		d.BeforeRun(info.ID)
	case hooking.HookPosOperationAfter:
		d.AfterRun(info.ID)
	case hooking.HookPosOperationDestroy:
		d.Destroyed(info.ID)
	}
}

// Created records a new operation. Operations created while tracing is
// suspended, or created by a skipped operation, are skipped as well.
func (d *Detector) Created(id OperationID, kind string, trigger OperationID) {
	if !d.enabled {
		return
	}

	defer d.publishStats()

	if d.suspendDepth > 0 || d.skipped.has(trigger) || d.skipped.has(id) {
		d.skipped.add(id)
		return
	}

	n := &Node{
		ID:        id,
		Type:      kind,
		TriggerID: trigger,
		FollowsID: d.runtime.ExecutionID(),
	}

	if d.captureStacks {
		n.Stack = d.capturer.Capture(0, nil)
	}

	d.graph.insert(n)
	d.contexts.link(id, d.inheritedFrame(n))
}

// inheritedFrame returns the context frame a new operation reads through:
// the one of its trigger if it has one, otherwise the one of the operation
// it follows.
func (d *Detector) inheritedFrame(n *Node) *contextFrame {
	if f := d.contexts.frame(n.TriggerID); f != nil {
		return f
	}

	if n.FollowsID != 0 {
		return d.contexts.ensure(n.FollowsID)
	}

	if n.TriggerID != 0 {
		return d.contexts.ensure(n.TriggerID)
	}

	return nil
}

// BeforeRun opens the synchronous window of an operation.
func (d *Detector) BeforeRun(id OperationID) {
	if !d.enabled || d.skipped.has(id) {
		return
	}

	d.windows.open(id, d.clock.Now())
	d.publishStats()
}

// AfterRun closes the synchronous window of an operation and reports it if
// it ran longer than the threshold.
func (d *Detector) AfterRun(id OperationID) {
	if !d.enabled {
		return
	}

	start, ok := d.windows.close(id)
	if !ok {
		return
	}

	d.publishStats()

	elapsed := d.clock.Since(start)
	if elapsed <= d.threshold || d.callbacks.len() == 0 {
		return
	}

	d.withoutTracing(func() {
		d.notify(d.newBlockedEvent(id, elapsed))
	})
}

// Destroyed forgets everything about an operation.
func (d *Detector) Destroyed(id OperationID) {
	if !d.enabled {
		return
	}

	d.skipped.remove(id)
	d.graph.remove(id)
	d.windows.remove(id)
	d.contexts.remove(id)
	d.publishStats()
}

func (d *Detector) newBlockedEvent(
	id OperationID,
	elapsed time.Duration,
) BlockedEvent {
	evt := BlockedEvent{
		ID:          xid.New().String(),
		OperationID: id,
		DetectedAt:  d.clock.Now(),
		Duration:    elapsed,
		Stacks:      d.buildStackSet(id, nil),
	}

	if n, ok := d.graph.get(id); ok {
		evt.OperationType = n.Type
	}

	return evt
}

func (d *Detector) notify(evt BlockedEvent) {
	d.numEvents.Add(1)

	for _, s := range d.callbacks.snapshot() {
		d.deliver(s, evt)
	}
}

func (d *Detector) deliver(s *Subscription, evt BlockedEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.runtime.ReportError(&SubscriberError{EventID: evt.ID, Value: r})
		}
	}()

	s.callback(evt)
}

// buildStackSet returns the creation stacks along the causal path of id,
// newest first, after the leading stack.
func (d *Detector) buildStackSet(
	id OperationID,
	leading []stack.Frame,
) [][]stack.Frame {
	stacks := make([][]stack.Frame, 0)
	if len(leading) > 0 {
		stacks = append(stacks, leading)
	}

	d.walkLineage(id, func(_ OperationID, n *Node) bool {
		if n != nil && len(n.Stack) > 0 {
			stacks = append(stacks, n.Stack)
		}

		return true
	})

	return stacks
}

// walkLineage visits id and its causal ancestors. Tracked operations are
// passed with their node. Once no tracked parent is left, the trigger and
// follows IDs of the last node are visited with a nil node. Every ID is
// visited at most once, so the walk ends even if the graph has a cycle.
func (d *Detector) walkLineage(
	id OperationID,
	visit func(id OperationID, n *Node) bool,
) {
	visited := make(map[OperationID]struct{})

	for {
		if _, seen := visited[id]; seen {
			return
		}

		visited[id] = struct{}{}

		n, tracked := d.graph.get(id)
		if !visit(id, n) || !tracked {
			return
		}

		next, ok := d.graph.causalParent(n)
		if ok {
			id = next
			continue
		}

		for _, tail := range []OperationID{n.TriggerID, n.FollowsID} {
			if _, seen := visited[tail]; seen || tail == 0 {
				continue
			}

			visited[tail] = struct{}{}

			if !visit(tail, nil) {
				return
			}
		}

		return
	}
}

// ExecuteWithoutTracing runs fn synchronously. Operations created while fn
// runs, and everything they create, are not tracked.
func (d *Detector) ExecuteWithoutTracing(fn func()) error {
	if fn == nil {
		return ErrNilFunc
	}

	d.withoutTracing(fn)

	return nil
}

func (d *Detector) withoutTracing(fn func()) {
	d.suspendDepth++
	defer func() { d.suspendDepth-- }()

	fn()
}

// Set stores a value for the running operation. Operations created by it,
// and their descendants, inherit the value unless they set their own. The
// value stays visible to them after the running operation is destroyed.
func (d *Detector) Set(key string, value any) {
	d.contexts.set(d.runtime.ExecutionID(), key, value)
	d.publishStats()
}

// Get returns the value stored for key by the running operation or by the
// nearest causal ancestor. Values are read when Get is called, so an ancestor
// that sets a value after creating an operation is seen by it.
func (d *Detector) Get(key string) (any, bool) {
	return d.contexts.lookup(d.runtime.ExecutionID(), key)
}

// CurrentTrace returns the causal trace of the caller. If marker is a
// function on the current stack, frames up to its most recent call are left
// out.
func (d *Detector) CurrentTrace(marker any) *Trace {
	return d.currentTrace(1, marker)
}

// CaptureStackTrace attaches the causal trace of the caller to receiver.
func (d *Detector) CaptureStackTrace(receiver TraceReceiver, marker any) {
	receiver.SetCausalTrace(d.currentTrace(1, marker))
}

// WrapError returns err with the causal trace of the caller attached.
func (d *Detector) WrapError(err error) error {
	if err == nil {
		return nil
	}

	traced := &TracedError{Err: err}
	traced.SetCausalTrace(d.currentTrace(1, nil))

	return traced
}

func (d *Detector) currentTrace(skip int, marker any) *Trace {
	leading := d.capturer.Capture(skip+1, marker)

	t := &Trace{}
	d.withoutTracing(func() {
		t.stacks = d.buildStackSet(d.runtime.ExecutionID(), leading)
	})

	return t
}

func (d *Detector) resetTables() {
	d.graph = newFlowGraph()
	d.skipped = make(skipSet)
	d.windows = make(timingTable)
	d.contexts = newContextStore()
	d.publishStats()
}

func (d *Detector) publishStats() {
	d.numTracked.Store(int64(d.graph.len()))
	d.numSkipped.Store(int64(len(d.skipped)))
	d.numWindows.Store(int64(len(d.windows)))
	d.numContexts.Store(int64(d.contexts.len()))
	d.numCallbacks.Store(int64(d.callbacks.len()))
}

// Stats returns the current size of the Detector tables.
func (d *Detector) Stats() Stats {
	return Stats{
		TrackedOperations: int(d.numTracked.Load()),
		SkippedOperations: int(d.numSkipped.Load()),
		OpenWindows:       int(d.numWindows.Load()),
		ContextEntries:    int(d.numContexts.Load()),
		Subscribers:       int(d.numCallbacks.Load()),
		BlockedEvents:     d.numEvents.Load(),
	}
}
