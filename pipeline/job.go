package pipeline

import (
	"sync"

	"github.com/victorrobotxt/toting/circuits"
	"github.com/victorrobotxt/toting/types"
)

// job is the mutable unit of work tracked by the pipeline. All field access
// after creation goes through the methods below.
type job struct {
	mu        sync.RWMutex
	id        string
	circuit   *circuits.Resolved
	canonical []byte
	state     types.JobState
	progress  int
	result    *types.ProofResult
	errMsg    string
}

func (j *job) setRunning() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.state = types.JobRunning
}

func (j *job) setProgress(p int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	j.progress = p
}

func (j *job) setDone(result *types.ProofResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.state = types.JobDone
	j.progress = 100
	j.result = result
}

func (j *job) setError(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.state = types.JobError
	j.errMsg = msg
}

// snapshot returns a point-in-time copy of the job status.
func (j *job) snapshot() types.JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return types.JobStatus{
		JobID:    j.id,
		State:    j.state,
		Progress: j.progress,
		Result:   j.result,
		Error:    j.errMsg,
	}
}

// jobStore tracks jobs by id for the process lifetime. Jobs are volatile:
// a restart forgets in-flight work, and clients resubmit (the result cache
// makes the retry cheap).
type jobStore struct {
	mu   sync.RWMutex
	jobs map[string]*job
}

func newJobStore() *jobStore {
	return &jobStore{jobs: make(map[string]*job)}
}

func (s *jobStore) add(j *job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.id] = j
}

func (s *jobStore) get(id string) *job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs[id]
}
