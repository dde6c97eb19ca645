package printing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jo-hoe/boothprint/internal/backend/database"
)

// ErrNoSheet is returned when there is nothing to dispatch
var ErrNoSheet = errors.New("no sheet to dispatch")

// BatchMarker persists the outcome of a printed batch
type BatchMarker interface {
	MarkBatchPrinted(ctx context.Context, batchID string, images []database.PrintedImage, printStatus string) error
}

type Dispatcher struct {
	queue   PrintQueue
	store   BatchMarker
	options []string
}

func NewDispatcher(queue PrintQueue, store BatchMarker) *Dispatcher {
	return &Dispatcher{queue: queue, store: store, options: DefaultPrintOptions}
}

// Dispatch sends the sheet to the print queue and, when markPrinted is set, records every
// slot of the claimed batch as printed in one transaction. A failed print is reported in the
// result but still marks the batch so the same stickers are not printed twice.
func (d *Dispatcher) Dispatch(ctx context.Context, sheet *Sheet, batchID string, markPrinted bool) (PrintResult, error) {
	if sheet == nil || sheet.DocumentPath == "" {
		return PrintResult{}, ErrNoSheet
	}
	if markPrinted && batchID == "" {
		return PrintResult{}, errors.New("a batch id is required to mark a sheet as printed")
	}
	if markPrinted && len(sheet.PrintedImages()) == 0 {
		return PrintResult{}, errors.New("sheet has no submissions to mark as printed")
	}

	result := d.queue.Submit(ctx, sheet.DocumentPath, d.options)
	switch result.Status {
	case StatusFailed:
		slog.Error("print submission failed",
			"document", sheet.DocumentPath,
			"output", result.Output,
			"error", result.Err)
	default:
		slog.Info("print submitted",
			"document", sheet.DocumentPath,
			"status", result.Status,
			"job_id", result.JobID)
	}

	if !markPrinted {
		return result, nil
	}

	if err := d.store.MarkBatchPrinted(ctx, batchID, sheet.PrintedImages(), string(result.Status)); err != nil {
		return result, fmt.Errorf("failed to mark batch %s as printed: %w", batchID, err)
	}
	slog.Info("batch marked as printed", "batch_id", batchID, "images", len(sheet.Slots))
	return result, nil
}
