package blocking

import "time"

// timingTable holds the start of the synchronous window of every operation
// that is currently running.
type timingTable map[OperationID]time.Time

// open starts a window, replacing any window already open for id.
func (t timingTable) open(id OperationID, start time.Time) {
	t[id] = start
}

// close ends the window of id and returns when it started.
func (t timingTable) close(id OperationID) (time.Time, bool) {
	start, ok := t[id]
	if ok {
		delete(t, id)
	}

	return start, ok
}

func (t timingTable) remove(id OperationID) {
	delete(t, id)
}
