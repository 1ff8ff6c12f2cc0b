package blocking

import (
	"errors"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/stallscope/hooking"
	"github.com/sarchlab/stallscope/stack"
	"go.uber.org/mock/gomock"
)

const (
	rootID OperationID = 1

	typeTimeout      = "Timeout"
	typeImmediate    = "Immediate"
	typeContinuation = "Continuation"
)

var _ = Describe("Builder", func() {
	var (
		mockCtrl *gomock.Controller
		rt       *MockRuntime
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		rt = NewMockRuntime(mockCtrl)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should require a threshold", func() {
		d, err := MakeBuilder().Build(rt)

		Expect(d).To(BeNil())
		Expect(err).To(MatchError(ErrThresholdRequired))
	})

	It("should reject negative thresholds", func() {
		_, err := MakeBuilder().WithThreshold(-time.Millisecond).Build(rt)

		Expect(errors.Is(err, ErrNegativeThreshold)).To(BeTrue())
	})

	It("should reject thresholds that are not finite", func() {
		_, err := MakeBuilder().WithThresholdMS(math.NaN()).Build(rt)

		Expect(err).To(MatchError(ErrInvalidThreshold))
	})

	It("should reject a missing runtime", func() {
		_, err := MakeBuilder().WithThreshold(0).Build(nil)

		Expect(err).To(MatchError(ErrNilRuntime))
	})

	It("should convert milliseconds", func() {
		d, err := MakeBuilder().WithThresholdMS(1.5).Build(rt)

		Expect(err).NotTo(HaveOccurred())
		Expect(d.Threshold()).To(Equal(1500 * time.Microsecond))
		Expect(d.Running()).To(BeFalse())
	})
})

var _ = Describe("Detector", func() {
	var (
		mockCtrl  *gomock.Controller
		rt        *MockRuntime
		mockClock *clock.Mock
		current   OperationID
		reported  []error
		d         *Detector
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		rt = NewMockRuntime(mockCtrl)
		mockClock = clock.NewMock()
		current = rootID
		reported = nil

		rt.EXPECT().ExecutionID().
			DoAndReturn(func() OperationID { return current }).
			AnyTimes()
		rt.EXPECT().ReportError(gomock.Any()).
			Do(func(err error) { reported = append(reported, err) }).
			AnyTimes()
		rt.EXPECT().AcceptHook(gomock.Any()).Times(1)

		var err error
		d, err = MakeBuilder().
			WithThreshold(100 * time.Millisecond).
			WithClock(mockClock).
			WithCapturer(stack.NewCapturer().WithExcludePattern(nil)).
			Build(rt)
		Expect(err).NotTo(HaveOccurred())

		d.Start()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	runFor := func(id OperationID, duration time.Duration) {
		prev := current
		current = id
		d.BeforeRun(id)
		mockClock.Add(duration)
		d.AfterRun(id)
		current = prev
	}

	collect := func() *[]BlockedEvent {
		events := new([]BlockedEvent)
		d.OnBlocked(func(evt BlockedEvent) {
			*events = append(*events, evt)
		})

		return events
	}

	Context("lifecycle", func() {
		It("should register its hook only once", func() {
			d.Start()
			d.Stop()
			d.Stop()
			d.Start()

			Expect(d.Running()).To(BeTrue())
		})

		It("should track created operations", func() {
			current = 7
			d.Created(10, typeTimeout, 3)

			n, ok := d.graph.get(10)
			Expect(ok).To(BeTrue())
			Expect(n.Type).To(Equal(typeTimeout))
			Expect(n.TriggerID).To(Equal(OperationID(3)))
			Expect(n.FollowsID).To(Equal(OperationID(7)))
			Expect(n.Stack).To(BeEmpty())
			Expect(d.Stats().TrackedOperations).To(Equal(1))
		})

		It("should forget destroyed operations", func() {
			d.Created(10, typeTimeout, 1)
			d.BeforeRun(10)
			d.Destroyed(10)
			d.Destroyed(10)

			Expect(d.graph.len()).To(Equal(0))
			Expect(d.windows).To(BeEmpty())
			Expect(d.Stats().OpenWindows).To(Equal(0))
		})

		It("should ignore signals while stopped", func() {
			d.Stop()

			d.Created(10, typeTimeout, 1)

			Expect(d.graph.len()).To(Equal(0))
		})

		It("should forget everything when stopped", func() {
			d.Created(10, typeTimeout, 1)
			d.BeforeRun(10)

			d.Stop()
			d.Start()

			Expect(d.Stats()).To(Equal(Stats{}))
		})

		It("should dispatch loop hooks", func() {
			info := hooking.OperationInfo{
				ID: 4, Type: typeImmediate, TriggerID: 1,
			}

			d.Func(hooking.HookCtx{Pos: hooking.HookPosOperationInit, Item: info})
			Expect(d.graph.len()).To(Equal(1))

			d.Func(hooking.HookCtx{Pos: hooking.HookPosOperationBefore, Item: info})
			Expect(d.windows).To(HaveKey(OperationID(4)))

			d.Func(hooking.HookCtx{Pos: hooking.HookPosOperationAfter, Item: info})
			Expect(d.windows).To(BeEmpty())

			d.Func(hooking.HookCtx{Pos: hooking.HookPosOperationDestroy, Item: info})
			Expect(d.graph.len()).To(Equal(0))

			d.Func(hooking.HookCtx{Pos: hooking.HookPosOperationInit, Item: "other"})
			Expect(d.graph.len()).To(Equal(0))
		})
	})

	Context("skipping", func() {
		It("should skip operations created without tracing", func() {
			Expect(d.ExecuteWithoutTracing(func() {
				d.Created(10, typeTimeout, 1)
			})).To(Succeed())

			Expect(d.skipped.has(10)).To(BeTrue())
			Expect(d.graph.len()).To(Equal(0))
		})

		It("should propagate skipping to descendants", func() {
			_ = d.ExecuteWithoutTracing(func() {
				d.Created(10, typeTimeout, 1)
			})

			d.Created(11, typeContinuation, 10)
			d.Created(12, typeContinuation, 11)

			Expect(d.skipped.has(11)).To(BeTrue())
			Expect(d.skipped.has(12)).To(BeTrue())
			Expect(d.Stats().SkippedOperations).To(Equal(3))
		})

		It("should resume tracing after a panic", func() {
			Expect(func() {
				_ = d.ExecuteWithoutTracing(func() { panic("boom") })
			}).To(PanicWith("boom"))

			d.Created(10, typeTimeout, 1)

			Expect(d.graph.len()).To(Equal(1))
		})

		It("should support nested suspension", func() {
			_ = d.ExecuteWithoutTracing(func() {
				_ = d.ExecuteWithoutTracing(func() {})
				d.Created(10, typeTimeout, 1)
			})

			Expect(d.skipped.has(10)).To(BeTrue())
		})

		It("should reject a nil function", func() {
			Expect(d.ExecuteWithoutTracing(nil)).To(MatchError(ErrNilFunc))
		})

		It("should not time skipped operations", func() {
			events := collect()
			_ = d.ExecuteWithoutTracing(func() {
				d.Created(10, typeTimeout, 1)
			})

			runFor(10, time.Second)

			Expect(*events).To(BeEmpty())
		})

		It("should clear skipping on destroy", func() {
			_ = d.ExecuteWithoutTracing(func() {
				d.Created(10, typeTimeout, 1)
			})

			d.Destroyed(10)

			Expect(d.skipped.has(10)).To(BeFalse())
		})
	})

	Context("threshold", func() {
		It("should report windows longer than the threshold", func() {
			events := collect()
			d.Created(10, typeTimeout, 1)

			runFor(10, 150*time.Millisecond)

			Expect(*events).To(HaveLen(1))
			evt := (*events)[0]
			Expect(evt.Duration).To(Equal(150 * time.Millisecond))
			Expect(evt.Duration.Nanoseconds()).To(BeNumerically(">", 100_000_000))
			Expect(evt.OperationID).To(Equal(OperationID(10)))
			Expect(evt.OperationType).To(Equal(typeTimeout))
			Expect(evt.ID).NotTo(BeEmpty())
			Expect(d.Stats().BlockedEvents).To(Equal(int64(1)))
		})

		It("should not report windows at the threshold", func() {
			events := collect()
			d.Created(10, typeTimeout, 1)

			runFor(10, 100*time.Millisecond)

			Expect(*events).To(BeEmpty())
		})

		It("should measure every window on its own", func() {
			events := collect()
			d.Created(10, typeTimeout, 1)
			d.Created(11, typeTimeout, 1)

			runFor(10, 60*time.Millisecond)
			runFor(11, 60*time.Millisecond)
			runFor(10, 60*time.Millisecond)

			Expect(*events).To(BeEmpty())
		})

		It("should restart a window on a repeated before signal", func() {
			events := collect()
			d.Created(10, typeTimeout, 1)

			d.BeforeRun(10)
			mockClock.Add(90 * time.Millisecond)
			d.BeforeRun(10)
			mockClock.Add(90 * time.Millisecond)
			d.AfterRun(10)

			Expect(*events).To(BeEmpty())
		})

		It("should time operations created before the detector started", func() {
			events := collect()

			runFor(42, 200*time.Millisecond)

			Expect(*events).To(HaveLen(1))
			Expect((*events)[0].Stacks).To(BeEmpty())
		})

		It("should ignore unmatched after signals", func() {
			events := collect()

			d.AfterRun(10)

			Expect(*events).To(BeEmpty())
		})

		It("should not build events without subscribers", func() {
			d.Created(10, typeTimeout, 1)

			runFor(10, time.Second)

			Expect(d.Stats().BlockedEvents).To(Equal(int64(0)))
			Expect(d.windows).To(BeEmpty())
		})
	})

	Context("subscribers", func() {
		It("should deliver in registration order", func() {
			var order []int
			d.OnBlocked(func(BlockedEvent) { order = append(order, 1) })
			d.OnBlocked(func(BlockedEvent) { order = append(order, 2) })
			d.OnBlocked(func(BlockedEvent) { order = append(order, 3) })

			runFor(10, time.Second)

			Expect(order).To(Equal([]int{1, 2, 3}))
			Expect(d.Stats().Subscribers).To(Equal(3))
		})

		It("should keep delivering after a subscriber panics", func() {
			failure := errors.New("subscriber failed")
			delivered := false
			d.OnBlocked(func(BlockedEvent) { panic(failure) })
			d.OnBlocked(func(BlockedEvent) { delivered = true })

			runFor(10, time.Second)

			Expect(delivered).To(BeTrue())
			Expect(reported).To(HaveLen(1))

			var subErr *SubscriberError
			Expect(errors.As(reported[0], &subErr)).To(BeTrue())
			Expect(errors.Is(reported[0], failure)).To(BeTrue())
			Expect(d.suspendDepth).To(Equal(0))
		})

		It("should stop delivering to disposed subscribers", func() {
			count := 0
			s := d.OnBlocked(func(BlockedEvent) { count++ })

			runFor(10, time.Second)
			s.Dispose()
			s.Dispose()
			runFor(11, time.Second)

			Expect(count).To(Equal(1))
			Expect(d.Stats().Subscribers).To(Equal(0))
		})

		It("should let subscribers dispose themselves", func() {
			var order []int
			var s *Subscription
			s = d.OnBlocked(func(BlockedEvent) {
				order = append(order, 1)
				s.Dispose()
			})
			d.OnBlocked(func(BlockedEvent) { order = append(order, 2) })

			runFor(10, time.Second)
			runFor(11, time.Second)

			Expect(order).To(Equal([]int{1, 2, 2}))
		})

		It("should not track operations created by subscribers", func() {
			d.OnBlocked(func(BlockedEvent) {
				d.Created(99, typeTimeout, current)
			})
			d.Created(10, typeTimeout, 1)

			runFor(10, time.Second)

			Expect(d.skipped.has(99)).To(BeTrue())
			_, tracked := d.graph.get(99)
			Expect(tracked).To(BeFalse())
		})

		It("should reject a nil callback", func() {
			Expect(func() { d.OnBlocked(nil) }).To(Panic())
		})
	})

	Context("causal stacks", func() {
		frame := func(name string) []stack.Frame {
			return []stack.Frame{stack.NewFrame("pkg."+name, "/"+name+".go", 1)}
		}

		It("should walk triggers newest first", func() {
			d.graph.insert(&Node{ID: 10, TriggerID: 1, Stack: frame("a")})
			d.graph.insert(&Node{ID: 11, TriggerID: 10, Stack: frame("b")})
			d.graph.insert(&Node{ID: 12, TriggerID: 11, Stack: frame("c")})

			stacks := d.buildStackSet(12, nil)

			Expect(stacks).To(Equal([][]stack.Frame{
				frame("c"), frame("b"), frame("a"),
			}))
		})

		It("should put the leading stack first", func() {
			d.graph.insert(&Node{ID: 10, TriggerID: 1, Stack: frame("a")})

			stacks := d.buildStackSet(10, frame("now"))

			Expect(stacks).To(Equal([][]stack.Frame{frame("now"), frame("a")}))
		})

		It("should fall back to the followed operation", func() {
			d.graph.insert(&Node{ID: 10, TriggerID: 1, Stack: frame("a")})
			d.graph.insert(&Node{
				ID: 12, TriggerID: 11, FollowsID: 10, Stack: frame("c"),
			})

			stacks := d.buildStackSet(12, nil)

			Expect(stacks).To(Equal([][]stack.Frame{frame("c"), frame("a")}))
		})

		It("should walk through operations without stacks", func() {
			d.graph.insert(&Node{ID: 10, TriggerID: 1, Stack: frame("a")})
			d.graph.insert(&Node{ID: 11, TriggerID: 10})
			d.graph.insert(&Node{ID: 12, TriggerID: 11, Stack: frame("c")})

			stacks := d.buildStackSet(12, nil)

			Expect(stacks).To(Equal([][]stack.Frame{frame("c"), frame("a")}))
		})

		It("should terminate on cycles", func() {
			d.graph.insert(&Node{ID: 10, TriggerID: 12, Stack: frame("a")})
			d.graph.insert(&Node{ID: 11, TriggerID: 10, Stack: frame("b")})
			d.graph.insert(&Node{ID: 12, TriggerID: 11, Stack: frame("c")})

			var visits []OperationID
			d.walkLineage(12, func(id OperationID, _ *Node) bool {
				visits = append(visits, id)
				return true
			})

			Expect(visits).To(Equal([]OperationID{12, 11, 10}))
			Expect(d.buildStackSet(12, nil)).To(HaveLen(3))
		})

		It("should terminate on self references", func() {
			d.graph.insert(&Node{ID: 10, TriggerID: 10, FollowsID: 10})

			Expect(d.buildStackSet(10, nil)).To(BeEmpty())
		})

		It("should capture creation stacks when enabled", func() {
			d.SetUseAsyncStackTraces(true)
			d.Created(10, typeTimeout, 1)

			n, _ := d.graph.get(10)
			Expect(n.Stack).NotTo(BeEmpty())
		})

		It("should not capture stacks retroactively", func() {
			d.Created(10, typeTimeout, 1)
			d.SetUseAsyncStackTraces(true)
			d.Created(11, typeTimeout, 10)

			events := collect()
			runFor(11, time.Second)

			Expect((*events)[0].Stacks).To(HaveLen(1))
			n, _ := d.graph.get(10)
			Expect(n.Stack).To(BeEmpty())
		})
	})

	Context("context state", func() {
		It("should read back a value in the same operation", func() {
			current = 10
			d.Set("user", "alice")

			v, ok := d.Get("user")
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal("alice"))
		})

		It("should inherit from the nearest ancestor", func() {
			d.Created(10, typeTimeout, 1)
			d.Created(11, typeTimeout, 10)
			d.Created(12, typeTimeout, 11)

			current = 10
			d.Set("k", "from-10")
			current = 11
			d.Set("k", "from-11")

			current = 12
			v, ok := d.Get("k")
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal("from-11"))
		})

		It("should inherit values written at the top level", func() {
			d.Set("k", "root")
			d.Created(10, typeTimeout, rootID)

			current = 10
			v, ok := d.Get("k")

			Expect(ok).To(BeTrue())
			Expect(v).To(Equal("root"))
		})

		It("should hide values from siblings and ancestors", func() {
			d.Created(10, typeTimeout, 1)
			d.Created(11, typeTimeout, 1)

			current = 10
			d.Set("k", "v")

			current = 11
			_, ok := d.Get("k")
			Expect(ok).To(BeFalse())

			current = rootID
			_, ok = d.Get("k")
			Expect(ok).To(BeFalse())
		})

		It("should keep values for children of destroyed operations", func() {
			d.Created(10, typeTimeout, rootID)

			current = 10
			d.Set("request", "r-1")
			d.Created(11, typeTimeout, 10)
			d.Destroyed(10)

			current = 11
			d.Created(12, typeTimeout, 11)
			d.Destroyed(11)

			current = 12
			v, ok := d.Get("request")
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal("r-1"))
		})

		It("should see values written after a child was created", func() {
			d.Created(10, typeTimeout, rootID)
			d.Created(11, typeTimeout, 10)

			current = 10
			d.Set("k", "late")

			current = 11
			v, ok := d.Get("k")
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal("late"))
		})

		It("should not hold on to empty frames of destroyed operations", func() {
			d.Created(10, typeTimeout, rootID)

			current = 10
			d.Created(11, typeTimeout, 10)
			d.Destroyed(10)

			current = 11
			d.Created(12, typeTimeout, 11)

			Expect(d.contexts.frame(12).parent).To(BeIdenticalTo(d.contexts.frame(11)))
			Expect(d.contexts.frame(11).parent).
				To(BeIdenticalTo(d.contexts.frame(rootID)))
		})

		It("should drop values of destroyed operations", func() {
			current = 10
			d.Set("k", "v")
			d.Destroyed(10)

			_, ok := d.Get("k")
			Expect(ok).To(BeFalse())
			Expect(d.Stats().ContextEntries).To(Equal(0))
		})
	})

	Context("traces", func() {
		It("should lead with the current stack", func() {
			d.graph.insert(&Node{
				ID: 10, TriggerID: 1,
				Stack: []stack.Frame{stack.NewFrame("pkg.a", "/a.go", 1)},
			})
			current = 10

			t := d.CurrentTrace(nil)

			Expect(t.Stacks()).To(HaveLen(2))
			Expect(t.String()).To(HavePrefix("--> "))
			Expect(t.String()).To(ContainSubstring("--> pkg.a (/a.go:1)"))
		})

		It("should attach traces to receivers", func() {
			err := d.WrapError(errors.New("failed"))

			var traced *TracedError
			Expect(errors.As(err, &traced)).To(BeTrue())
			Expect(traced.Error()).To(Equal("failed"))
			Expect(traced.Trace().Stacks()).To(HaveLen(1))
			Expect(d.WrapError(nil)).To(BeNil())
		})

		It("should capture into any receiver", func() {
			traced := &TracedError{Err: errors.New("x")}

			d.CaptureStackTrace(traced, nil)

			Expect(traced.Trace()).NotTo(BeNil())
		})
	})
})
