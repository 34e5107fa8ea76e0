package jobs

import (
	"context"
	"fmt"

	"evolv/internal/placeholder"
)

const resultSize = 512

// PlaceholderResults points finished jobs at the API's own placeholder
// renderer instead of storing anything.
type PlaceholderResults struct{}

func (PlaceholderResults) SaveResult(ctx context.Context, job Job) (string, error) {
	return placeholder.URL(resultSize, resultSize, ResultText(job)), nil
}

// ResultText is the caption rendered into a job's result image.
func ResultText(job Job) string {
	return fmt.Sprintf("%s (%s)", job.Prompt, job.ID)
}
