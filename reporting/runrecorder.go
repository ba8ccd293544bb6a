package reporting

import (
	"os"
	"strings"
	"time"
)

// A RunEntry is one property of an analysis run.
type RunEntry struct {
	Property string
	Value    string
}

// RunInfoTable holds one RunEntry row per run property.
const RunInfoTable = "run_info"

// A RunRecorder logs when and how one analysis run happened next to the
// decisions it produced.
type RunRecorder struct {
	recorder DataRecorder
	entries  []RunEntry
}

// NewRunRecorder creates a RunRecorder writing into the given recorder.
func NewRunRecorder(recorder DataRecorder) *RunRecorder {
	r := &RunRecorder{recorder: recorder}

	r.recorder.CreateTable(RunInfoTable, RunEntry{})

	return r
}

// Start logs the start time, the command line, and the working directory.
func (r *RunRecorder) Start() {
	startTime := time.Now().Format("2006-01-02 15:04:05.000000000")
	r.entries = append(r.entries, RunEntry{"Start Time", startTime})

	cmd := strings.Join(os.Args, " ")
	r.entries = append(r.entries, RunEntry{"Command", cmd})

	cwd, err := os.Getwd()
	if err != nil {
		panic(err)
	}

	r.entries = append(r.entries, RunEntry{"Working Directory", cwd})
}

// End writes the collected run information along with the end time.
func (r *RunRecorder) End() {
	for _, entry := range r.entries {
		r.recorder.InsertData(RunInfoTable, entry)
	}

	endTime := time.Now().Format("2006-01-02 15:04:05.000000000")
	r.recorder.InsertData(RunInfoTable, RunEntry{"End Time", endTime})

	r.entries = nil

	r.recorder.Flush()
}
