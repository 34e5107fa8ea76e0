package evolve

import (
	"errors"
	"fmt"

	"evolv/internal/models"
)

var (
	// ErrSubmissionInFlight is returned when the artwork already has an
	// unsettled submission. The cache is left untouched.
	ErrSubmissionInFlight = errors.New("an evolution is already in progress for this artwork")

	ErrInvalidRequest = errors.New("artwork id and a non-blank prompt are required")

	// ErrMissingResult marks a job that finished without a result reference.
	ErrMissingResult = errors.New("job finished without a result")
)

// SubmissionError means the job could not be created.
type SubmissionError struct {
	ArtworkID string
	Err       error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("failed to submit evolution for artwork %s: %v", e.ArtworkID, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// EvolutionFailedError means the job was created but produced no usable
// result: it failed, finished without a result, or could not be observed.
type EvolutionFailedError struct {
	ArtworkID string
	JobID     string
	Status    models.JobState
	Err       error
}

func (e *EvolutionFailedError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("evolution job %s for artwork %s %s: %v", e.JobID, e.ArtworkID, e.Status, e.Err)
	}
	return fmt.Sprintf("evolution job %s for artwork %s failed: %v", e.JobID, e.ArtworkID, e.Err)
}

func (e *EvolutionFailedError) Unwrap() error { return e.Err }
