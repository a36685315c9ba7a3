package types

// JobState is the lifecycle state of one asynchronous proving job.
type JobState string

const (
	JobPending JobState = "pending"
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobError   JobState = "error"
)

// Terminal reports whether the state is final. Terminal states never change.
func (s JobState) Terminal() bool {
	return s == JobDone || s == JobError
}

// JobStatus is a point-in-time snapshot of a job, as returned by polling and
// emitted on status streams.
type JobStatus struct {
	JobID    string       `json:"jobId,omitempty"`
	State    JobState     `json:"state"`
	Progress int          `json:"progress"`
	Result   *ProofResult `json:"result,omitempty"`
	Error    string       `json:"error,omitempty"`
}
