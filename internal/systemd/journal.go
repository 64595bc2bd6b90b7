package systemd

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const noEntriesMarker = "-- No entries --"

// Fetcher reads bounded journal output for a unit by shelling out to
// journalctl. It takes no registry dependency; the logs-enabled gate lives
// with the caller.
type Fetcher struct {
	timeout time.Duration
	run     runner
}

// NewFetcher builds a fetcher whose invocations are bounded by timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{timeout: timeout, run: runCommand}
}

// Fetch returns up to maxLines of the newest journal output for unit. The
// chunk is marked Truncated when the unit had more lines than requested.
func (f *Fetcher) Fetch(ctx context.Context, unit string, maxLines int) (*LogChunk, error) {
	if maxLines <= 0 {
		maxLines = 100
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	// Ask for one line past the bound so truncation is detectable without
	// ever pulling an unbounded amount from a chatty unit.
	out, err := f.run(ctx, "journalctl", "-u", unit,
		"-n", strconv.Itoa(maxLines+1), "--no-pager", "--output", "short-iso")
	if err != nil {
		return nil, classifyJournalError(ctx, unit, err)
	}

	lines := splitJournalLines(out)
	chunk := &LogChunk{Unit: unit, Lines: lines}
	if len(lines) > maxLines {
		// journalctl -n returns the newest lines; drop the oldest extra.
		chunk.Lines = lines[len(lines)-maxLines:]
		chunk.Truncated = true
	}
	return chunk, nil
}

func splitJournalLines(out []byte) []string {
	text := strings.TrimRight(string(out), "\n")
	if text == "" || text == noEntriesMarker {
		return nil
	}
	return strings.Split(text, "\n")
}

func classifyJournalError(ctx context.Context, unit string, err error) error {
	switch {
	case errors.Is(err, exec.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrLogToolUnavailable, err)
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %s", ErrLogFetchTimedOut, unit)
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Invalid unit name"):
		return fmt.Errorf("%w: %s", ErrUnitNotFound, unit)
	case strings.Contains(msg, "Access denied") || strings.Contains(msg, "Permission denied"):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %v", ErrLogToolUnavailable, err)
}
