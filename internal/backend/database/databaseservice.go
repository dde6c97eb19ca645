package database

import (
	"context"
	"database/sql"
	"errors"
)

// ErrBatchConflict is returned when rows selected for a batch were claimed or printed
// by another request before the claim could be written.
var ErrBatchConflict = errors.New("batch rows changed while claiming")

type DatabaseService interface {
	CreateDatabase() (*sql.DB, error)
	DoesDatabaseExist() bool
	Close() error

	// CreateSubmission stores the submitter and the submission in a single transaction.
	CreateSubmission(ctx context.Context, submission NewSubmission) (*Submission, error)
	GetSubmissionByID(ctx context.Context, id string) (*Submission, error)
	// GetUnprintedSubmissions returns every submission with printed = false, oldest first.
	GetUnprintedSubmissions(ctx context.Context) ([]*Submission, error)

	// ClaimBatch reserves the oldest size unprinted, unclaimed submissions under a new batch ID.
	// It returns nil when fewer than size submissions can be claimed.
	ClaimBatch(ctx context.Context, size int) (*BatchClaim, error)
	ReleaseBatch(ctx context.Context, batchID string) error
	ReleaseUnprintedClaims(ctx context.Context) (int64, error)
	// MarkBatchPrinted applies all printed images of a batch in one transaction. Images are
	// matched to rows by submission id; an image outside the batch rolls everything back.
	MarkBatchPrinted(ctx context.Context, batchID string, images []PrintedImage, printStatus string) error

	CreatePromptCompletion(ctx context.Context, prompt, generatedText string) (string, error)
}
