package datarecording

import (
	"os"
	"strings"
	"time"
)

// ExecInfoTable is the table that holds run metadata.
const ExecInfoTable = "exec_info"

// ExecInfo is one property of a run.
type ExecInfo struct {
	Property string
	Value    string
}

const execTimeFormat = "2006-01-02 15:04:05.000000000"

// An ExecRecorder records when and how a run was started and ended.
type ExecRecorder struct {
	recorder DataRecorder
	entries  []ExecInfo
}

// NewExecRecorder creates the exec_info table in recorder.
func NewExecRecorder(recorder DataRecorder) *ExecRecorder {
	recorder.CreateTable(ExecInfoTable, ExecInfo{})

	return &ExecRecorder{recorder: recorder}
}

// Start remembers the start time, the command line and the working
// directory, plus any extra properties.
func (e *ExecRecorder) Start(extra map[string]string) {
	e.entries = append(e.entries,
		ExecInfo{"Start Time", time.Now().Format(execTimeFormat)},
		ExecInfo{"Command", strings.Join(os.Args, " ")},
	)

	if cwd, err := os.Getwd(); err == nil {
		e.entries = append(e.entries, ExecInfo{"Working Directory", cwd})
	}

	for k, v := range extra {
		e.entries = append(e.entries, ExecInfo{k, v})
	}
}

// End writes the remembered properties along with the end time.
func (e *ExecRecorder) End() {
	for _, entry := range e.entries {
		e.recorder.InsertData(ExecInfoTable, entry)
	}

	e.recorder.InsertData(ExecInfoTable,
		ExecInfo{"End Time", time.Now().Format(execTimeFormat)})

	e.entries = nil

	e.recorder.Flush()
}
