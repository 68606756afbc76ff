package adaptor

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrOffsetOutOfRange matches every *OffsetOutOfRangeError.
	ErrOffsetOutOfRange = errors.New("offset out of range")
	// ErrStaleIterator is returned by an allocation iterator whose adaptor
	// has rebuilt its entries since the iterator was created.
	ErrStaleIterator = errors.New("allocation iterator is stale")
)

// OffsetOutOfRangeError reports a virtual offset no file covers.
type OffsetOutOfRangeError struct {
	Offset int64
}

func (e *OffsetOutOfRangeError) Error() string {
	return fmt.Sprintf("file offset out of range: %d", e.Offset)
}

func (e *OffsetOutOfRangeError) Is(target error) bool {
	return target == ErrOffsetOutOfRange
}
