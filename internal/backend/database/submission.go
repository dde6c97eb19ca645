package database

import "time"

// NewSubmission carries the fields supplied by a visitor
type NewSubmission struct {
	Name     string
	Email    string
	Company  string
	ImageURL string
}

type Submission struct {
	ID          string    `db:"id"`
	Timestamp   time.Time `db:"ts"`
	Email       string    `db:"email"`
	ImageURL    string    `db:"image_url"`
	Printed     bool      `db:"printed"`
	FileName    string    `db:"file_name"`    // archived copy, empty until printed
	BatchID     string    `db:"batch_id"`     // set while claimed for a sheet
	PrintStatus string    `db:"print_status"` // print queue outcome recorded when marked
}

// BatchClaim is a set of submissions reserved for one sheet, oldest first.
type BatchClaim struct {
	ID          string
	Submissions []*Submission
}

// ImageURLs returns the claimed image URLs in claim order.
func (c *BatchClaim) ImageURLs() []string {
	urls := make([]string, 0, len(c.Submissions))
	for _, s := range c.Submissions {
		urls = append(urls, s.ImageURL)
	}
	return urls
}

// PrintedImage links a claimed submission to the archived file placed on the sheet
type PrintedImage struct {
	SubmissionID string
	ImageURL     string
	FileName     string
}
