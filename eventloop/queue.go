package eventloop

import (
	"container/heap"
)

// timerQueue orders timers by deadline. Timers with the same deadline run in
// the order they were scheduled.
type timerQueue struct {
	timers timerHeap
}

func newTimerQueue() *timerQueue {
	q := new(timerQueue)
	q.timers = make([]*operation, 0)
	heap.Init(&q.timers)

	return q
}

func (q *timerQueue) Push(op *operation) {
	heap.Push(&q.timers, op)
}

func (q *timerQueue) Pop() *operation {
	return heap.Pop(&q.timers).(*operation)
}

func (q *timerQueue) Remove(op *operation) {
	heap.Remove(&q.timers, op.index)
}

func (q *timerQueue) Len() int {
	return q.timers.Len()
}

// Peek returns the next timer without removing it from the queue.
func (q *timerQueue) Peek() *operation {
	return q.timers[0]
}

type timerHeap []*operation

func (h timerHeap) Len() int {
	return len(h)
}

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline != h[j].deadline {
		return h[i].deadline < h[j].deadline
	}

	return h[i].seq < h[j].seq
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x interface{}) {
	op := x.(*operation)
	op.index = len(*h)
	*h = append(*h, op)
}

func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	op := old[n-1]
	old[n-1] = nil
	op.index = -1
	*h = old[0 : n-1]

	return op
}
