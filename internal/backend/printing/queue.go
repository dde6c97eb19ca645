package printing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

type PrintStatus string

const (
	StatusSubmitted PrintStatus = "submitted"
	StatusFailed    PrintStatus = "failed"
	// StatusUnknown means the queue accepted the document without reporting a job id
	StatusUnknown PrintStatus = "unknown"
)

// PrintResult is the explicit outcome of handing a document to the print queue
type PrintResult struct {
	Status PrintStatus
	JobID  string
	Output string
	Err    error
}

// DefaultPrintOptions scale the sheet onto the page one-sided at best quality
var DefaultPrintOptions = []string{
	"-o", "fit-to-page",
	"-o", "scale=100",
	"-o", "sides=one-sided",
	"-o", "quality=best",
}

// PrintQueue hands a document to the local printing system
type PrintQueue interface {
	Submit(ctx context.Context, documentPath string, options []string) PrintResult
}

var requestIDPattern = regexp.MustCompile(`request id is (\S+)`)

// LPQueue submits documents through the CUPS lp command
type LPQueue struct {
	command     string
	destination string
	timeout     time.Duration
}

// NewLPQueue creates a queue running command (usually "lp"). An empty destination uses the
// system default printer.
func NewLPQueue(command, destination string, timeout time.Duration) *LPQueue {
	if command == "" {
		command = "lp"
	}
	return &LPQueue{command: command, destination: destination, timeout: timeout}
}

func (q *LPQueue) Submit(ctx context.Context, documentPath string, options []string) PrintResult {
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	args := append([]string{}, options...)
	if q.destination != "" {
		args = append(args, "-d", q.destination)
	}
	args = append(args, documentPath)

	slog.Info("submitting job to printer", "command", q.command, "args", args)
	cmd := exec.CommandContext(ctx, q.command, args...)
	// children holding the output pipe must not outlive the timeout
	cmd.WaitDelay = time.Second
	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			err = fmt.Errorf("%s exited with code %d: %w", q.command, exitErr.ExitCode(), err)
		}
		return PrintResult{Status: StatusFailed, Output: output, Err: err}
	}

	if m := requestIDPattern.FindStringSubmatch(output); m != nil {
		return PrintResult{Status: StatusSubmitted, JobID: m[1], Output: output}
	}
	return PrintResult{Status: StatusUnknown, Output: output}
}
