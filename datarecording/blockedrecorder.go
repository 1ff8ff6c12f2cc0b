package datarecording

import (
	"github.com/sarchlab/stallscope/blocking"
)

// Table names used by BlockedEventRecorder.
const (
	BlockedEventTable = "blocked_event"
	BlockedFrameTable = "blocked_frame"
)

// EventEntry is one row of the blocked_event table.
type EventEntry struct {
	ID            string
	OperationID   uint64
	OperationType string
	DetectedAt    int64
	DurationMS    int64
	NumSegments   int
	Report        string
}

// FrameEntry is one row of the blocked_frame table.
type FrameEntry struct {
	EventID      string
	SegmentIndex int
	FrameIndex   int
	Package      string
	Function     string
	File         string
	Line         int
}

// A BlockedEventRecorder writes every blocked event it receives into a
// DataRecorder.
type BlockedEventRecorder struct {
	recorder DataRecorder
}

// NewBlockedEventRecorder creates the event tables in recorder.
func NewBlockedEventRecorder(recorder DataRecorder) *BlockedEventRecorder {
	recorder.CreateTable(BlockedEventTable, EventEntry{})
	recorder.CreateTable(BlockedFrameTable, FrameEntry{})

	return &BlockedEventRecorder{recorder: recorder}
}

// Record buffers the rows of one event. It can be passed to
// Detector.OnBlocked directly.
func (r *BlockedEventRecorder) Record(evt blocking.BlockedEvent) {
	r.recorder.InsertData(BlockedEventTable, EventEntry{
		ID:            evt.ID,
		OperationID:   uint64(evt.OperationID),
		OperationType: evt.OperationType,
		DetectedAt:    evt.DetectedAt.UnixNano(),
		DurationMS:    evt.DurationMS(),
		NumSegments:   len(evt.Stacks),
		Report:        evt.String(),
	})

	for s, segment := range evt.Stacks {
		for f, frame := range segment {
			r.recorder.InsertData(BlockedFrameTable, FrameEntry{
				EventID:      evt.ID,
				SegmentIndex: s,
				FrameIndex:   f,
				Package:      frame.Package,
				Function:     frame.Function,
				File:         frame.File,
				Line:         frame.Line,
			})
		}
	}
}

// Flush writes the buffered rows.
func (r *BlockedEventRecorder) Flush() {
	r.recorder.Flush()
}
