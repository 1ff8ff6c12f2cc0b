package stack

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Frame", func() {
	It("should parse pointer receiver methods", func() {
		f := NewFrame("github.com/a/pkg.(*Loop).Run", "/src/loop.go", 12)

		Expect(f.Package).To(Equal("github.com/a/pkg"))
		Expect(f.TypeName).To(Equal("Loop"))
		Expect(f.Method).To(Equal("Run"))
		Expect(f.Function).To(Equal("(*Loop).Run"))
		Expect(f.IsMethodCall).To(BeTrue())
		Expect(f.IsToplevel).To(BeFalse())
		Expect(f.Text).To(Equal("github.com/a/pkg.(*Loop).Run (/src/loop.go:12)"))
	})

	It("should parse value receiver methods", func() {
		f := NewFrame("github.com/a/pkg.Event.Time", "/src/event.go", 3)

		Expect(f.TypeName).To(Equal("Event"))
		Expect(f.Method).To(Equal("Time"))
		Expect(f.IsMethodCall).To(BeTrue())
	})

	It("should classify constructors", func() {
		f := NewFrame("github.com/a/pkg.NewLoop", "/src/loop.go", 40)

		Expect(f.IsConstructor).To(BeTrue())
		Expect(f.IsToplevel).To(BeFalse())
		Expect(f.IsMethodCall).To(BeFalse())
	})

	It("should treat closures as top-level code", func() {
		f := NewFrame("github.com/a/pkg.helper.func1", "/src/h.go", 7)

		Expect(f.TypeName).To(BeEmpty())
		Expect(f.Function).To(Equal("helper.func1"))
		Expect(f.IsToplevel).To(BeTrue())
		Expect(f.IsMethodCall).To(BeFalse())
	})

	It("should strip generic markers", func() {
		f := NewFrame("github.com/a/pkg.Map[...]", "/src/m.go", 1)

		Expect(f.Function).To(Equal("Map"))
		Expect(f.IsToplevel).To(BeTrue())
	})

	It("should mark runtime frames as native", func() {
		f := NewFrame("runtime.goexit", "/go/src/runtime/asm_amd64.s", 1700)

		Expect(f.Package).To(Equal("runtime"))
		Expect(f.IsNative).To(BeTrue())
	})

	It("should mark generated wrappers", func() {
		f := NewFrame("github.com/a/pkg.(*T).M", "<autogenerated>", 1)

		Expect(f.IsEval).To(BeTrue())
	})

	It("should render the anonymous placeholder", func() {
		f := NewFrame("", "", 0)

		Expect(f.IsAnonymous()).To(BeTrue())
		Expect(f.String()).To(Equal(AnonymousText))
	})

	It("should render nameless frames with a location", func() {
		f := NewFrame("", "/src/x.go", 9)

		Expect(f.IsAnonymous()).To(BeFalse())
		Expect(f.Text).To(Equal("<anonymous> (/src/x.go:9)"))
	})
})
