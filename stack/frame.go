// Package stack captures the call stack of the running goroutine as a list of
// immutable Frame values.
package stack

import (
	"fmt"
	"runtime"
	"strings"
)

// AnonymousText is the rendering of a frame that has neither a function name
// nor a source location.
const AnonymousText = "<anonymous>"

// A Frame describes one location on a call stack.
type Frame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Package  string `json:"package"`
	Function string `json:"function"`
	Method   string `json:"method"`
	TypeName string `json:"type_name"`

	// IsConstructor marks package-level functions named New* or Make*.
	IsConstructor bool `json:"is_constructor"`

	// IsEval marks compiler-generated wrapper code that has no real source
	// file.
	IsEval bool `json:"is_eval"`

	// IsNative marks frames that belong to the Go runtime itself.
	IsNative bool `json:"is_native"`

	// IsToplevel marks plain package-level functions and their closures.
	IsToplevel bool `json:"is_toplevel"`

	// IsMethodCall is always !(IsToplevel || IsConstructor).
	IsMethodCall bool `json:"is_method_call"`

	Text string `json:"text"`
}

// IsAnonymous tells if the frame renders as the anonymous placeholder.
func (f Frame) IsAnonymous() bool {
	return f.Text == AnonymousText
}

// String returns the preformatted rendering of the frame.
func (f Frame) String() string {
	return f.Text
}

// NewFrame builds a Frame from a fully qualified Go function name and a
// source location.
func NewFrame(qualifiedName, file string, line int) Frame {
	f := Frame{
		File: file,
		Line: line,
	}

	f.parseName(qualifiedName)
	f.classify(qualifiedName)
	f.Text = render(qualifiedName, file, line)

	return f
}

func fromRuntimeFrame(rf runtime.Frame) Frame {
	return NewFrame(rf.Function, rf.File, rf.Line)
}

// parseName splits names such as "example.com/a/pkg.(*T).Method.func1" into
// package, receiver type and method/function parts.
func (f *Frame) parseName(name string) {
	if name == "" {
		return
	}

	lastSlash := strings.LastIndex(name, "/")
	dot := strings.Index(name[lastSlash+1:], ".")

	if dot < 0 {
		f.Function = name
		return
	}

	f.Package = name[:lastSlash+1+dot]
	rest := strings.ReplaceAll(name[lastSlash+1+dot+1:], "[...]", "")
	f.Function = rest

	if strings.HasPrefix(rest, "(") {
		closing := strings.Index(rest, ")")
		if closing < 0 || closing+2 > len(rest) {
			return
		}

		f.TypeName = strings.TrimPrefix(rest[1:closing], "*")
		f.Method = strings.TrimSuffix(firstPart(rest[closing+2:]), "-fm")

		return
	}

	parts := strings.Split(rest, ".")
	if len(parts) < 2 || parts[1] == "" || isClosureName(parts[1]) {
		return
	}

	f.TypeName = parts[0]
	f.Method = strings.TrimSuffix(parts[1], "-fm")
}

func (f *Frame) classify(name string) {
	f.IsNative = f.Package == "runtime" || strings.HasPrefix(name, "runtime.")
	f.IsEval = f.File == "<autogenerated>"

	if f.TypeName == "" {
		base := firstPart(f.Function)
		f.IsConstructor = strings.HasPrefix(base, "New") ||
			strings.HasPrefix(base, "Make")
		f.IsToplevel = !f.IsConstructor
	}

	f.IsMethodCall = !(f.IsToplevel || f.IsConstructor)
}

func firstPart(s string) string {
	if i := strings.Index(s, "."); i >= 0 {
		return s[:i]
	}

	return s
}

func isClosureName(s string) bool {
	for _, prefix := range []string{"func", "gowrap", "deferwrap"} {
		if strings.HasPrefix(s, prefix) && len(s) > len(prefix) &&
			s[len(prefix)] >= '0' && s[len(prefix)] <= '9' {
			return true
		}
	}

	return false
}

func render(name, file string, line int) string {
	switch {
	case name == "" && file == "":
		return AnonymousText
	case name == "":
		return fmt.Sprintf("%s (%s:%d)", AnonymousText, file, line)
	case file == "":
		return name
	default:
		return fmt.Sprintf("%s (%s:%d)", name, file, line)
	}
}
