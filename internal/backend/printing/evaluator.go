package printing

import (
	"context"
	"fmt"

	"github.com/jo-hoe/boothprint/internal/backend/database"
)

// SubmissionReader lists pending submissions, oldest first
type SubmissionReader interface {
	GetUnprintedSubmissions(ctx context.Context) ([]*database.Submission, error)
}

// Evaluation is the outcome of checking whether a sheet can be printed
type Evaluation struct {
	Ready      bool
	Candidates []*database.Submission
}

// ImageURLs returns the candidate image URLs, oldest first
func (e *Evaluation) ImageURLs() []string {
	urls := make([]string, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		urls = append(urls, c.ImageURL)
	}
	return urls
}

type BatchEvaluator struct {
	store     SubmissionReader
	batchSize int
}

func NewBatchEvaluator(store SubmissionReader, batchSize int) *BatchEvaluator {
	return &BatchEvaluator{store: store, batchSize: batchSize}
}

// Evaluate reports readiness and the full candidate list. It never writes.
func (e *BatchEvaluator) Evaluate(ctx context.Context) (*Evaluation, error) {
	candidates, err := e.store.GetUnprintedSubmissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprinted submissions: %w", err)
	}
	return &Evaluation{
		Ready:      len(candidates) >= e.batchSize,
		Candidates: candidates,
	}, nil
}
