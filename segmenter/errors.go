package segmenter

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is wrapped by configuration validation failures.
var ErrInvalidConfig = errors.New("segmenter: invalid configuration")

// ErrUnsortedInput is wrapped by UnsortedInputError; callers can test
// for it with errors.Is regardless of which ssvid/timestamps offended.
var ErrUnsortedInput = errors.New("segmenter: unsorted input")

// UnsortedInputError reports a fatal violation of the "non-decreasing
// timestamps within one ssvid" input contract.
type UnsortedInputError struct {
	SSVID    int64
	Previous time.Time
	Next     time.Time
}

func (e *UnsortedInputError) Error() string {
	return fmt.Sprintf("segmenter: unsorted input for ssvid %d: %s arrived after %s",
		e.SSVID, e.Next.Format(time.RFC3339Nano), e.Previous.Format(time.RFC3339Nano))
}

func (e *UnsortedInputError) Unwrap() error {
	return ErrUnsortedInput
}
