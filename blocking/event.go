package blocking

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sarchlab/stallscope/stack"
)

// A BlockedEvent describes one synchronous window that ran longer than the
// threshold.
type BlockedEvent struct {
	ID            string
	OperationID   OperationID
	OperationType string
	DetectedAt    time.Time

	// Duration is how long the window ran.
	Duration time.Duration

	// Stacks holds one segment per operation on the causal path, newest
	// first.
	Stacks [][]stack.Frame
}

// DurationMS returns the duration rounded to whole milliseconds.
func (e BlockedEvent) DurationMS() int64 {
	return int64(math.Round(float64(e.Duration) / float64(time.Millisecond)))
}

// String renders the event as a human readable report.
func (e BlockedEvent) String() string {
	b := new(strings.Builder)

	fmt.Fprintf(b, "Slow synchronous block (%dms):", e.DurationMS())
	writeSegments(b, e.Stacks)

	return b.String()
}

func writeSegments(b *strings.Builder, segments [][]stack.Frame) {
	for _, segment := range segments {
		if !isPrintable(segment) {
			continue
		}

		b.WriteString("\n--> ")
		b.WriteString(stack.Render(segment))
	}
}

func isPrintable(segment []stack.Frame) bool {
	switch len(segment) {
	case 0:
		return false
	case 1:
		return !segment[0].IsAnonymous()
	default:
		return true
	}
}
