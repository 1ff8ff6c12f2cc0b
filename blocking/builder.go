package blocking

import (
	"fmt"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sarchlab/stallscope/stack"
)

// Builder can be used to build a Detector.
type Builder struct {
	threshold        time.Duration
	thresholdSet     bool
	thresholdInvalid bool
	captureStacks    bool
	clock            clock.Clock
	capturer         *stack.Capturer
}

// MakeBuilder creates a new builder. A threshold must be set before Build.
func MakeBuilder() Builder {
	return Builder{}
}

// WithThreshold sets how long a synchronous window may run before it is
// reported.
func (b Builder) WithThreshold(threshold time.Duration) Builder {
	b.threshold = threshold
	b.thresholdSet = true
	b.thresholdInvalid = false

	return b
}

// WithThresholdMS sets the threshold in milliseconds.
func (b Builder) WithThresholdMS(ms float64) Builder {
	b.thresholdSet = true
	b.thresholdInvalid = math.IsNaN(ms) || math.IsInf(ms, 0)

	if !b.thresholdInvalid {
		b.threshold = time.Duration(ms * float64(time.Millisecond))
	}

	return b
}

// WithAsyncStackTraces enables or disables capturing the stack of every
// operation when it is created. Capturing stacks is expensive.
func (b Builder) WithAsyncStackTraces(enabled bool) Builder {
	b.captureStacks = enabled
	return b
}

// WithClock sets the clock used to measure windows.
func (b Builder) WithClock(c clock.Clock) Builder {
	b.clock = c
	return b
}

// WithCapturer sets how stacks are captured.
func (b Builder) WithCapturer(c *stack.Capturer) Builder {
	b.capturer = c
	return b
}

func (b Builder) parametersMustBeValid() error {
	switch {
	case !b.thresholdSet:
		return ErrThresholdRequired
	case b.thresholdInvalid:
		return ErrInvalidThreshold
	case b.threshold < 0:
		return fmt.Errorf("%w: got %v", ErrNegativeThreshold, b.threshold)
	}

	return nil
}

// Build creates a stopped Detector that observes rt.
func (b Builder) Build(rt Runtime) (*Detector, error) {
	if err := b.parametersMustBeValid(); err != nil {
		return nil, err
	}

	if rt == nil {
		return nil, ErrNilRuntime
	}

	d := &Detector{
		runtime:       rt,
		threshold:     b.threshold,
		captureStacks: b.captureStacks,
		clock:         b.clock,
		capturer:      b.capturer,
	}

	if d.clock == nil {
		d.clock = clock.New()
	}

	if d.capturer == nil {
		d.capturer = stack.NewCapturer()
	}

	d.callbacks.onChange = d.publishStats
	d.resetTables()

	return d, nil
}
