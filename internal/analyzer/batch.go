package analyzer

import (
	"errors"
	"fmt"

	"github.com/wonny/newsquant/internal/contracts"
)

var (
	// ErrLengthMismatch is returned when the response length differs from the batch length
	ErrLengthMismatch = errors.New("response length mismatch")

	// ErrMalformedResponse is returned when a response element is not an object
	ErrMalformedResponse = errors.New("malformed response")
)

// BatchFailure describes why one batch produced no signals
type BatchFailure struct {
	Index    int
	Size     int
	Attempts int
	Err      error
}

func (f *BatchFailure) Error() string {
	return fmt.Sprintf("batch %d (%d titles) failed after %d attempt(s): %v", f.Index, f.Size, f.Attempts, f.Err)
}

func (f *BatchFailure) Unwrap() error {
	return f.Err
}

// BatchResult is either the parsed signals of a batch or its failure, never both.
// Signals has exactly Size elements when Failure is nil.
type BatchResult struct {
	Index   int
	Size    int
	Signals []contracts.Signal
	Failure *BatchFailure
}

// OK reports whether the batch parsed
func (r BatchResult) OK() bool {
	return r.Failure == nil
}

// Flatten concatenates the signals of parsed batches in batch order and
// counts failed batches by FailureReason
func Flatten(results []BatchResult) ([]contracts.Signal, map[string]int) {
	signals := make([]contracts.Signal, 0)
	failures := make(map[string]int)
	for _, r := range results {
		if !r.OK() {
			failures[FailureReason(r.Failure.Err)]++
			continue
		}
		signals = append(signals, r.Signals...)
	}
	return signals, failures
}

// parseBatch validates a raw response against the batch it answers
func parseBatch(titles []string, raw []map[string]any) ([]contracts.Signal, error) {
	if len(raw) != len(titles) {
		return nil, fmt.Errorf("%w: sent %d, got %d", ErrLengthMismatch, len(titles), len(raw))
	}

	out := make([]contracts.Signal, len(raw))
	for i, elem := range raw {
		if elem == nil {
			return nil, fmt.Errorf("%w: element %d is not an object", ErrMalformedResponse, i)
		}
		out[i] = NormalizeElement(elem)
	}
	return out, nil
}

// splitBatches chunks titles into batches of at most size
func splitBatches(titles []string, size int) [][]string {
	if len(titles) == 0 {
		return nil
	}
	batches := make([][]string, 0, (len(titles)+size-1)/size)
	for start := 0; start < len(titles); start += size {
		end := start + size
		if end > len(titles) {
			end = len(titles)
		}
		batches = append(batches, titles[start:end])
	}
	return batches
}
