// Package eventloop provides a single-goroutine event loop that runs timers,
// immediates, continuations and futures, and reports the lifecycle of every
// asynchronous operation through hooks.
package eventloop

import (
	"github.com/sarchlab/stallscope/hooking"
)

// OperationID identifies one asynchronous operation for its lifetime.
type OperationID = hooking.OperationID

// RootOperationID is the operation that top-level code runs as, outside of
// any scheduled task.
const RootOperationID OperationID = 1

// Operation types reported in OperationInfo.Type.
const (
	TypeTimeout      = "Timeout"
	TypeImmediate    = "Immediate"
	TypeContinuation = "Continuation"
	TypeFuture       = "Future"
)

// OperationInfo is the item carried by every lifecycle hook.
type OperationInfo = hooking.OperationInfo

// Lifecycle hook positions of the loop.
var (
	HookPosInit    = hooking.HookPosOperationInit
	HookPosBefore  = hooking.HookPosOperationBefore
	HookPosAfter   = hooking.HookPosOperationAfter
	HookPosDestroy = hooking.HookPosOperationDestroy
)

// A Task is the synchronous body of an operation. A returned error is
// reported to the loop's unhandled-error handler.
type Task func() error

type operation struct {
	info            OperationInfo
	task            Task
	destroyAfterRun bool

	// timer fields
	deadline int64
	seq      uint64
	index    int
}
