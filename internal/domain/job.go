package domain

import "time"

// JobState enumerates job lifecycle states.
type JobState string

const (
	JobStateQueued     JobState = "queued"
	JobStateProcessing JobState = "processing"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
	JobStateCancelled  JobState = "cancelled"
)

// Terminal reports whether no further transitions may leave the state.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateCompleted, JobStateFailed, JobStateCancelled:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal state
// machine transition. Terminal states accept nothing.
func (s JobState) CanTransition(next JobState) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case JobStateQueued:
		return next == JobStateProcessing || next == JobStateCancelled || next == JobStateFailed
	case JobStateProcessing:
		return next == JobStateCompleted || next == JobStateFailed || next == JobStateCancelled
	}
	return false
}

// Job tracks one avatar video generation request through its lifecycle.
// Records are mutated only by the orchestrator worker that owns the job.
type Job struct {
	ID          string    `json:"job_id"`
	State       JobState  `json:"status"`
	Stage       string    `json:"stage,omitempty"`
	Progress    float64   `json:"progress"`
	ResultRef   string    `json:"result_ref,omitempty"`
	Error       string    `json:"error,omitempty"`
	Params      Params    `json:"params,omitzero"`
	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
}
