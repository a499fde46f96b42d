package errors

import (
	"fmt"
	"sort"
	"strings"
)

// BatchError reports a multi-batch write where at least one batch failed to
// commit. Committed batches are not rolled back.
type BatchError struct {
	Total     int
	Committed []int
	Failed    map[int]error
}

func (e *BatchError) Error() string {
	idx := make([]int, 0, len(e.Failed))
	for i := range e.Failed {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	parts := make([]string, 0, len(idx))
	for _, i := range idx {
		parts = append(parts, fmt.Sprintf("batch %d: %v", i, e.Failed[i]))
	}
	return fmt.Sprintf("%d of %d batches failed to commit (%s)", len(e.Failed), e.Total, strings.Join(parts, "; "))
}

// Unwrap exposes the individual batch errors to errors.Is / errors.As.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		errs = append(errs, err)
	}
	return errs
}

// FailedBatches returns the failed batch indexes in ascending order.
func (e *BatchError) FailedBatches() []int {
	idx := make([]int, 0, len(e.Failed))
	for i := range e.Failed {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}
