package stack

import (
	"reflect"
	"regexp"
	"runtime"
	"strings"
)

// DefaultMaxDepth is the number of program counters a Capturer reads by
// default.
const DefaultMaxDepth = 64

// DefaultExcludePattern matches the functions that dispatch lifecycle
// signals from the event loop to the instrumentation.
var DefaultExcludePattern = regexp.MustCompile(
	`^github\.com/sarchlab/stallscope/(hooking|eventloop|blocking|stack)\.`)

// A Capturer walks the stack of the calling goroutine.
type Capturer struct {
	exclude  *regexp.Regexp
	maxDepth int
}

// NewCapturer creates a Capturer that excludes the default dispatch frames.
func NewCapturer() *Capturer {
	return &Capturer{
		exclude:  DefaultExcludePattern,
		maxDepth: DefaultMaxDepth,
	}
}

// WithExcludePattern sets the pattern that is matched against fully
// qualified function names. Matching frames are dropped. A nil pattern keeps
// every frame.
func (c *Capturer) WithExcludePattern(pattern *regexp.Regexp) *Capturer {
	c.exclude = pattern
	return c
}

// WithMaxDepth limits the number of frames read from the stack.
func (c *Capturer) WithMaxDepth(depth int) *Capturer {
	if depth <= 0 {
		panic("max depth must be positive")
	}

	c.maxDepth = depth

	return c
}

// Capture returns the frames of the calling goroutine, innermost first.
//
// The skip innermost frames above the caller of Capture are dropped. If
// marker is a function that appears on the stack, every frame up to and
// including its most recent call is dropped as well. A marker that does not
// appear on the stack is ignored.
func (c *Capturer) Capture(skip int, marker any) []Frame {
	pcs := make([]uintptr, c.maxDepth)
	n := runtime.Callers(skip+2, pcs)

	raw := make([]runtime.Frame, 0, n)
	iter := runtime.CallersFrames(pcs[:n])

	for {
		rf, more := iter.Next()
		raw = append(raw, rf)

		if !more {
			break
		}
	}

	raw = dropThroughMarker(raw, marker)

	frames := make([]Frame, 0, len(raw))
	for _, rf := range raw {
		if !c.keep(rf) {
			continue
		}

		frames = append(frames, fromRuntimeFrame(rf))
	}

	return frames
}

func (c *Capturer) keep(rf runtime.Frame) bool {
	if rf.File == "" {
		return false
	}

	if c.exclude != nil && c.exclude.MatchString(rf.Function) {
		return false
	}

	return true
}

func dropThroughMarker(raw []runtime.Frame, marker any) []runtime.Frame {
	name := functionName(marker)
	if name == "" {
		return raw
	}

	for i, rf := range raw {
		if rf.Function == name {
			return raw[i+1:]
		}
	}

	return raw
}

func functionName(fn any) string {
	if fn == nil {
		return ""
	}

	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return ""
	}

	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return ""
	}

	return strings.TrimSuffix(f.Name(), "-fm")
}

// Render joins the frames with the continuation indent used in reports.
func Render(frames []Frame) string {
	texts := make([]string, 0, len(frames))
	for _, f := range frames {
		texts = append(texts, f.Text)
	}

	return strings.Join(texts, "\n    ")
}
