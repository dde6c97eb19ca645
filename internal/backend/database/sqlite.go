package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const submissionColumns = "id, ts, email, image_url, printed, file_name, batch_id, print_status"

type SQLiteDatabase struct {
	db               *sql.DB
	connectionString string
	now              func() time.Time
}

func NewSQLiteDatabase(connectionString string) (DatabaseService, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	return &SQLiteDatabase{
		db:               db,
		connectionString: connectionString,
		now:              time.Now,
	}, nil
}

func (s *SQLiteDatabase) CreateDatabase() (*sql.DB, error) {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		company TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS generated_images (
		id TEXT PRIMARY KEY,
		ts INTEGER NOT NULL,
		email TEXT NOT NULL,
		image_url TEXT NOT NULL,
		printed INTEGER NOT NULL DEFAULT 0,
		file_name TEXT,
		batch_id TEXT,
		print_status TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_generated_images_pending ON generated_images (printed, ts);
	CREATE TABLE IF NOT EXISTS prompt_completions (
		id TEXT PRIMARY KEY,
		prompt TEXT NOT NULL,
		generated_text TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		return nil, err
	}

	return s.db, nil
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDatabase) DoesDatabaseExist() bool {
	// In SQLite, the database file is created when you connect to it.
	// So we can assume it exists if we can successfully ping the database.
	err := s.db.Ping()
	return err == nil
}

func (s *SQLiteDatabase) CreateSubmission(ctx context.Context, submission NewSubmission) (*Submission, error) {
	id, err := generateID()
	if err != nil {
		return nil, err
	}
	ts := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback() // no-op after a successful commit
	}()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO users (name, email, company, created_at) VALUES (?, ?, ?, ?)",
		submission.Name, submission.Email, submission.Company, ts.UnixNano()); err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO generated_images (id, ts, email, image_url, printed) VALUES (?, ?, ?, ?, 0)",
		id, ts.UnixNano(), submission.Email, submission.ImageURL); err != nil {
		return nil, fmt.Errorf("failed to insert submission: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &Submission{
		ID:        id,
		Timestamp: ts,
		Email:     submission.Email,
		ImageURL:  submission.ImageURL,
	}, nil
}

func (s *SQLiteDatabase) GetSubmissionByID(ctx context.Context, id string) (*Submission, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+submissionColumns+" FROM generated_images WHERE id = ?", id)
	submission, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return submission, nil
}

func (s *SQLiteDatabase) GetUnprintedSubmissions(ctx context.Context) ([]*Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+submissionColumns+" FROM generated_images WHERE printed = 0 ORDER BY ts ASC, rowid ASC")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close() // Explicitly ignore error as we're already returning an error from the function
	}()
	return scanSubmissions(rows)
}

func (s *SQLiteDatabase) ClaimBatch(ctx context.Context, size int) (*BatchClaim, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", size)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx,
		"SELECT "+submissionColumns+" FROM generated_images WHERE printed = 0 AND batch_id IS NULL ORDER BY ts ASC, rowid ASC LIMIT ?",
		size)
	if err != nil {
		return nil, err
	}
	submissions, err := scanSubmissions(rows)
	_ = rows.Close()
	if err != nil {
		return nil, err
	}
	if len(submissions) < size {
		return nil, nil
	}

	batchID, err := generateID()
	if err != nil {
		return nil, err
	}
	for _, submission := range submissions {
		res, err := tx.ExecContext(ctx,
			"UPDATE generated_images SET batch_id = ? WHERE id = ? AND printed = 0 AND batch_id IS NULL",
			batchID, submission.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to claim submission %s: %w", submission.ID, err)
		}
		if n, err := res.RowsAffected(); err != nil || n != 1 {
			return nil, ErrBatchConflict
		}
		submission.BatchID = batchID
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Debug("claimed batch", "batch_id", batchID, "size", len(submissions))
	return &BatchClaim{ID: batchID, Submissions: submissions}, nil
}

func (s *SQLiteDatabase) ReleaseBatch(ctx context.Context, batchID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE generated_images SET batch_id = NULL WHERE batch_id = ? AND printed = 0", batchID)
	return err
}

// ReleaseUnprintedClaims clears claims left behind by an interrupted print cycle.
func (s *SQLiteDatabase) ReleaseUnprintedClaims(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE generated_images SET batch_id = NULL WHERE batch_id IS NOT NULL AND printed = 0")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteDatabase) MarkBatchPrinted(ctx context.Context, batchID string, images []PrintedImage, printStatus string) error {
	if strings.TrimSpace(batchID) == "" {
		return errors.New("batch id must not be empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// rows are addressed by id; one batch may hold the same image url twice
	for _, img := range images {
		if img.SubmissionID == "" {
			return fmt.Errorf("printed image %s has no submission id", img.ImageURL)
		}
		res, err := tx.ExecContext(ctx,
			"UPDATE generated_images SET printed = 1, file_name = ?, print_status = ? WHERE batch_id = ? AND id = ?",
			img.FileName, printStatus, batchID, img.SubmissionID)
		if err != nil {
			return fmt.Errorf("failed to mark %s as printed: %w", img.SubmissionID, err)
		}
		if n, err := res.RowsAffected(); err != nil || n != 1 {
			return fmt.Errorf("submission %s is not part of batch %s", img.SubmissionID, batchID)
		}
	}
	return tx.Commit()
}

func (s *SQLiteDatabase) CreatePromptCompletion(ctx context.Context, prompt, generatedText string) (string, error) {
	id, err := generateID()
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO prompt_completions (id, prompt, generated_text, created_at) VALUES (?, ?, ?, ?)",
		id, prompt, generatedText, s.now().UnixNano())
	if err != nil {
		return "", err
	}
	return id, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*Submission, error) {
	var (
		submission  Submission
		ts          int64
		fileName    sql.NullString
		batchID     sql.NullString
		printStatus sql.NullString
	)
	if err := row.Scan(&submission.ID, &ts, &submission.Email, &submission.ImageURL,
		&submission.Printed, &fileName, &batchID, &printStatus); err != nil {
		return nil, err
	}
	submission.Timestamp = time.Unix(0, ts)
	submission.FileName = fileName.String
	submission.BatchID = batchID.String
	submission.PrintStatus = printStatus.String
	return &submission, nil
}

func scanSubmissions(rows *sql.Rows) ([]*Submission, error) {
	var submissions []*Submission
	for rows.Next() {
		submission, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, submission)
	}
	return submissions, rows.Err()
}
