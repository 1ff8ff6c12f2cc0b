package blocking

import (
	"strings"
	"sync"

	"github.com/sarchlab/stallscope/stack"
)

// A Trace is a causal stack trace. Its text is rendered on first use.
type Trace struct {
	stacks [][]stack.Frame

	once sync.Once
	text string
}

// Stacks returns the segments of the trace, newest first.
func (t *Trace) Stacks() [][]stack.Frame {
	return t.stacks
}

func (t *Trace) String() string {
	t.once.Do(func() {
		b := new(strings.Builder)
		writeSegments(b, t.stacks)
		t.text = strings.TrimPrefix(b.String(), "\n")
	})

	return t.text
}

// A TraceReceiver is an object that can carry a causal stack trace.
type TraceReceiver interface {
	SetCausalTrace(t *Trace)
}

// A TracedError is an error that carries the causal trace of where it was
// wrapped.
type TracedError struct {
	Err   error
	trace *Trace
}

func (e *TracedError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e *TracedError) Unwrap() error {
	return e.Err
}

// SetCausalTrace attaches the trace to the error.
func (e *TracedError) SetCausalTrace(t *Trace) {
	e.trace = t
}

// Trace returns the attached trace, or nil.
func (e *TracedError) Trace() *Trace {
	return e.trace
}
