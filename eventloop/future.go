package eventloop

type futureState int

const (
	futurePending futureState = iota
	futureFulfilled
	futureRejected
)

// A Future is a value that becomes available later. Reactions registered
// with Then and Catch run as continuations once the future settles.
//
// A future is an operation on its own: it is created when NewFuture, Then or
// Catch is called and destroyed once it settles. A reaction registered on a
// future that has already settled keeps the settled future as its trigger,
// even though that operation is gone.
type Future struct {
	loop  *Loop
	info  OperationInfo
	state futureState
	value any
	err   error

	reactions []*Future
	handled   bool
	parent    *Future
	onFulfill func(value any) (any, error)
	onReject  func(err error) (any, error)
}

// NewFuture creates a pending future triggered by the running operation.
func (l *Loop) NewFuture() *Future {
	return l.newFuture(TypeFuture, l.executionID)
}

func (l *Loop) newFuture(kind string, trigger OperationID) *Future {
	f := &Future{
		loop: l,
		info: OperationInfo{
			ID:        OperationID(l.ids.Generate()),
			Type:      kind,
			TriggerID: trigger,
		},
	}

	l.invokeLifecycleHook(HookPosInit, f.info)

	return f
}

// ID returns the operation ID of the future.
func (f *Future) ID() OperationID {
	return f.info.ID
}

// Settled tells if the future has been resolved or rejected.
func (f *Future) Settled() bool {
	return f.state != futurePending
}

// Result returns the value or the error the future settled with.
func (f *Future) Result() (any, error) {
	return f.value, f.err
}

// Resolve fulfills the future with value. It reports false if the future had
// already settled.
func (f *Future) Resolve(value any) bool {
	return f.settle(value, nil)
}

// Reject rejects the future with err. It reports false if the future had
// already settled.
func (f *Future) Reject(err error) bool {
	if err == nil {
		panic("rejection error must not be nil")
	}

	return f.settle(nil, err)
}

func (f *Future) settle(value any, err error) bool {
	if f.state != futurePending {
		return false
	}

	f.value = value
	f.err = err

	f.state = futureFulfilled
	if err != nil {
		f.state = futureRejected
	}

	for _, reaction := range f.reactions {
		f.loop.continuations.Add(reaction.reactionOperation())
	}

	f.reactions = nil
	f.loop.scheduleDestroy(f.info)

	if err != nil {
		f.loop.rejections = append(f.loop.rejections, f)
	}

	return true
}

// Then registers onFulfill to run with the value of f. The returned future
// settles with the result of onFulfill. If f is rejected, onFulfill is not
// called and the returned future is rejected with the same error.
func (f *Future) Then(onFulfill func(value any) (any, error)) *Future {
	if onFulfill == nil {
		panic("reaction must not be nil")
	}

	return f.react(onFulfill, nil)
}

// Catch registers onReject to run with the error of f. A fulfilled value
// passes through unchanged.
//
// A rejected future that has no reaction by the time the continuation queue
// drains is reported to the loop's unhandled-error handler.
func (f *Future) Catch(onReject func(err error) (any, error)) *Future {
	if onReject == nil {
		panic("reaction must not be nil")
	}

	return f.react(nil, onReject)
}

func (f *Future) react(
	onFulfill func(value any) (any, error),
	onReject func(err error) (any, error),
) *Future {
	child := f.loop.newFuture(TypeContinuation, f.info.ID)
	child.parent = f
	child.onFulfill = onFulfill
	child.onReject = onReject
	f.handled = true

	if f.Settled() {
		f.loop.continuations.Add(child.reactionOperation())
		return child
	}

	f.reactions = append(f.reactions, child)

	return child
}

func (f *Future) reactionOperation() *operation {
	return &operation{
		info: f.info,
		task: f.runReaction,
	}
}

func (f *Future) runReaction() error {
	value, err := f.parent.Result()

	switch {
	case err == nil && f.onFulfill != nil:
		value, err = f.onFulfill(value)
	case err != nil && f.onReject != nil:
		value, err = f.onReject(err)
	}

	f.settle(value, err)

	return nil
}
