package blocking

import (
	"github.com/sarchlab/stallscope/hooking"
	"github.com/sarchlab/stallscope/stack"
)

// OperationID identifies an asynchronous operation of the runtime.
type OperationID = hooking.OperationID

// A Node is the record of one live, tracked operation.
type Node struct {
	ID   OperationID
	Type string

	// TriggerID is the operation that caused this one to be created.
	TriggerID OperationID

	// FollowsID is the operation that was running when this one was
	// created. It is used when the trigger is no longer tracked.
	FollowsID OperationID

	// Stack is where the operation was created. It is empty if stack capture
	// was off at that moment.
	Stack []stack.Frame
}

// flowGraph maps live operations to their nodes. IDs are opaque handles.
type flowGraph struct {
	nodes map[OperationID]*Node
}

func newFlowGraph() *flowGraph {
	return &flowGraph{nodes: make(map[OperationID]*Node)}
}

func (g *flowGraph) insert(n *Node) {
	g.nodes[n.ID] = n
}

func (g *flowGraph) get(id OperationID) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

func (g *flowGraph) remove(id OperationID) {
	delete(g.nodes, id)
}

func (g *flowGraph) len() int {
	return len(g.nodes)
}

// causalParent returns the trigger of n if it is tracked, otherwise the
// operation n follows if that one is tracked.
func (g *flowGraph) causalParent(n *Node) (OperationID, bool) {
	if _, ok := g.nodes[n.TriggerID]; ok {
		return n.TriggerID, true
	}

	if _, ok := g.nodes[n.FollowsID]; ok {
		return n.FollowsID, true
	}

	return 0, false
}

// skipSet holds operations whose causal chain is not tracked.
type skipSet map[OperationID]struct{}

func (s skipSet) add(id OperationID) {
	s[id] = struct{}{}
}

func (s skipSet) has(id OperationID) bool {
	_, ok := s[id]
	return ok
}

func (s skipSet) remove(id OperationID) {
	delete(s, id)
}
