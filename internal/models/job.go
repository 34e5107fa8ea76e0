package models

type JobState string

const (
	JobPending    JobState = "pending"
	JobProcessing JobState = "processing"
	JobDone       JobState = "done"
	JobFailed     JobState = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s JobState) Terminal() bool {
	return s == JobDone || s == JobFailed
}

type JobStatus struct {
	ID        string   `json:"id"`
	Status    JobState `json:"status"`
	Progress  *int     `json:"progress,omitempty"`
	ResultURL string   `json:"resultUrl,omitempty"`
	Error     string   `json:"error,omitempty"`
}
