package index

import (
	"fmt"

	"github.com/kailas-cloud/brokerdex/internal/domain"
	"github.com/kailas-cloud/brokerdex/internal/domain/batch"
)

// BulkError reports a bulk ingestion in which some entries were not stored.
// Accepted entries are durable; Failed lists the rest in input order.
type BulkError struct {
	Accepted int
	Failed   []batch.Result
}

func (e *BulkError) Error() string {
	msg := fmt.Sprintf("%s: %d stored, %d failed", domain.ErrBulkPartial.Error(), e.Accepted, len(e.Failed))
	if len(e.Failed) > 0 {
		first := e.Failed[0]
		msg += fmt.Sprintf(" (first %q: %v)", first.ID(), first.Err())
	}
	return msg
}

// Is matches domain.ErrBulkPartial.
func (e *BulkError) Is(target error) bool { return target == domain.ErrBulkPartial }

// Unwrap exposes the per-item causes.
func (e *BulkError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, r := range e.Failed {
		if r.Err() != nil {
			errs = append(errs, r.Err())
		}
	}
	return errs
}
