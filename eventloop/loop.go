package eventloop

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/eapache/queue"
	"github.com/sarchlab/stallscope/hooking"
	"github.com/sarchlab/stallscope/idgen"
)

// A Loop runs operations one after another on the goroutine that calls Run.
//
// Scheduling methods must be called from that goroutine, or before Run
// starts. Only Pause and Continue may be called from other goroutines.
type Loop struct {
	hooking.HookableBase

	clock clock.Clock
	ids   idgen.Generator

	timers        *timerQueue
	timerByID     map[OperationID]*operation
	immediates    *queue.Queue
	continuations *queue.Queue
	destroyQueue  []OperationInfo
	rejections    []*Future
	nextSeq       uint64

	executionID OperationID
	triggerID   OperationID

	errorHandler func(err error)

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	singleRunLock sync.Mutex
}

// NewLoop creates a Loop that uses the wall clock.
func NewLoop() *Loop {
	l := &Loop{
		clock:         clock.New(),
		ids:           idgen.NewStartingAt(idgen.ID(RootOperationID) + 1),
		timers:        newTimerQueue(),
		timerByID:     make(map[OperationID]*operation),
		immediates:    queue.New(),
		continuations: queue.New(),
		executionID:   RootOperationID,
	}

	l.errorHandler = func(err error) {
		log.Printf("eventloop: unhandled error: %v", err)
	}

	return l
}

// WithClock replaces the clock that drives timers.
func (l *Loop) WithClock(c clock.Clock) *Loop {
	l.clock = c
	return l
}

// WithErrorHandler sets the function that receives errors returned by tasks
// and errors reported through ReportError.
func (l *Loop) WithErrorHandler(handler func(err error)) *Loop {
	if handler == nil {
		panic("error handler must not be nil")
	}

	l.errorHandler = handler

	return l
}

// Name returns the name of the loop.
func (l *Loop) Name() string {
	return "EventLoop"
}

// Now returns the current time of the loop clock.
func (l *Loop) Now() time.Time {
	return l.clock.Now()
}

// ExecutionID returns the operation whose task is currently running, or
// RootOperationID for top-level code.
func (l *Loop) ExecutionID() OperationID {
	return l.executionID
}

// TriggerID returns the operation that caused the currently running
// operation to be created.
func (l *Loop) TriggerID() OperationID {
	return l.triggerID
}

// ReportError hands an error to the unhandled-error handler.
func (l *Loop) ReportError(err error) {
	if err == nil {
		return
	}

	l.errorHandler(err)
}

// PendingOperations returns the number of scheduled operations that have not
// run yet.
func (l *Loop) PendingOperations() int {
	return l.timers.Len() + l.immediates.Length() + l.continuations.Length()
}

// SetTimeout schedules task to run once delay has passed.
func (l *Loop) SetTimeout(delay time.Duration, task Task) OperationID {
	if delay < 0 {
		delay = 0
	}

	op := l.newOperation(TypeTimeout, l.executionID, task)
	op.destroyAfterRun = true
	op.deadline = l.clock.Now().Add(delay).UnixNano()
	op.seq = l.nextSeq
	l.nextSeq++

	l.timers.Push(op)
	l.timerByID[op.info.ID] = op

	return op.info.ID
}

// ClearTimeout cancels a timer that has not run yet. It reports whether a
// timer was cancelled.
func (l *Loop) ClearTimeout(id OperationID) bool {
	op, ok := l.timerByID[id]
	if !ok {
		return false
	}

	l.timers.Remove(op)
	delete(l.timerByID, id)
	l.scheduleDestroy(op.info)

	return true
}

// SetImmediate schedules task to run after the timers that are currently due.
func (l *Loop) SetImmediate(task Task) OperationID {
	op := l.newOperation(TypeImmediate, l.executionID, task)
	op.destroyAfterRun = true
	l.immediates.Add(op)

	return op.info.ID
}

// QueueContinuation schedules task to run as soon as the current task
// finishes, before any other timer or immediate.
func (l *Loop) QueueContinuation(task Task) OperationID {
	op := l.newOperation(TypeContinuation, l.executionID, task)
	op.destroyAfterRun = true
	l.continuations.Add(op)

	return op.info.ID
}

func (l *Loop) newOperation(
	kind string,
	trigger OperationID,
	task Task,
) *operation {
	if task == nil {
		panic("task must not be nil")
	}

	op := &operation{
		info: OperationInfo{
			ID:        OperationID(l.ids.Generate()),
			Type:      kind,
			TriggerID: trigger,
		},
		task: task,
	}

	l.invokeLifecycleHook(HookPosInit, op.info)

	return op
}

func (l *Loop) invokeLifecycleHook(pos *hooking.HookPos, info OperationInfo) {
	if l.NumHooks() == 0 {
		return
	}

	l.InvokeHook(hooking.HookCtx{
		Domain: l,
		Pos:    pos,
		Item:   info,
	})
}

// Run processes operations until there is nothing left to run or ctx is
// done.
func (l *Loop) Run(ctx context.Context) error {
	l.singleRunLock.Lock()
	defer l.singleRunLock.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		l.pauseLock.Lock()
		progressed := l.runOnce()
		l.pauseLock.Unlock()

		if progressed {
			continue
		}

		if l.timers.Len() == 0 {
			return nil
		}

		if err := l.waitForNextTimer(ctx); err != nil {
			return err
		}
	}
}

func (l *Loop) runOnce() bool {
	progressed := l.drainContinuations()

	if l.runDueTimers() {
		progressed = true
	}

	if l.runImmediates() {
		progressed = true
	}

	return progressed
}

func (l *Loop) runDueTimers() bool {
	progressed := false
	now := l.clock.Now().UnixNano()

	for l.timers.Len() > 0 && l.timers.Peek().deadline <= now {
		op := l.timers.Pop()
		delete(l.timerByID, op.info.ID)

		l.runMacrotask(op)

		progressed = true
	}

	return progressed
}

// runImmediates only runs the immediates that were queued before the phase
// started. Immediates scheduled by them wait for the next iteration.
func (l *Loop) runImmediates() bool {
	n := l.immediates.Length()

	for i := 0; i < n; i++ {
		op := l.immediates.Remove().(*operation)
		l.runMacrotask(op)
	}

	return n > 0
}

func (l *Loop) runMacrotask(op *operation) {
	l.runOperation(op)
	l.drainContinuations()
}

func (l *Loop) drainContinuations() bool {
	progressed := false

	for l.continuations.Length() > 0 {
		op := l.continuations.Remove().(*operation)
		l.runOperation(op)

		progressed = true
	}

	l.flushDestroyQueue()

	return progressed
}

func (l *Loop) runOperation(op *operation) {
	prevExecutionID, prevTriggerID := l.executionID, l.triggerID
	l.executionID, l.triggerID = op.info.ID, op.info.TriggerID

	l.invokeLifecycleHook(HookPosBefore, op.info)
	err := op.task()
	l.invokeLifecycleHook(HookPosAfter, op.info)

	l.executionID, l.triggerID = prevExecutionID, prevTriggerID

	if op.destroyAfterRun {
		l.scheduleDestroy(op.info)
	}

	l.ReportError(err)
}

// Destroy signals are delivered once the continuation queue is empty, so an
// operation stays observable while the continuations it spawned run.
func (l *Loop) scheduleDestroy(info OperationInfo) {
	l.destroyQueue = append(l.destroyQueue, info)
}

func (l *Loop) flushDestroyQueue() {
	for len(l.destroyQueue) > 0 {
		pending := l.destroyQueue
		l.destroyQueue = nil

		for _, info := range pending {
			l.invokeLifecycleHook(HookPosDestroy, info)
		}
	}

	l.reportUnhandledRejections()
}

func (l *Loop) reportUnhandledRejections() {
	pending := l.rejections
	l.rejections = nil

	for _, f := range pending {
		if !f.handled {
			l.ReportError(f.err)
		}
	}
}

func (l *Loop) waitForNextTimer(ctx context.Context) error {
	next := time.Unix(0, l.timers.Peek().deadline)

	wait := next.Sub(l.clock.Now())
	if wait <= 0 {
		return nil
	}

	timer := l.clock.Timer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Pause prevents the Loop from running more operations.
func (l *Loop) Pause() {
	l.isPausedLock.Lock()
	defer l.isPausedLock.Unlock()

	if l.isPaused {
		return
	}

	l.pauseLock.Lock()
	l.isPaused = true
}

// Continue allows the Loop to run operations again.
func (l *Loop) Continue() {
	l.isPausedLock.Lock()
	defer l.isPausedLock.Unlock()

	if !l.isPaused {
		return
	}

	l.pauseLock.Unlock()
	l.isPaused = false
}
