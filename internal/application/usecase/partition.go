package usecase

import (
	"fmt"
	"iter"
)

// DefaultLotSize is the number of records committed per transaction.
const DefaultLotSize = 500

// Partition yields contiguous sub-slices of items of at most size elements,
// in order. The last lot may be shorter. A nil or empty input yields nothing.
// Each lot is capped so appending to it cannot overwrite the next one.
func Partition[T any](items []T, size int) iter.Seq[[]T] {
	if size <= 0 {
		panic(fmt.Sprintf("usecase: lot size must be positive, got %d", size))
	}
	return func(yield func([]T) bool) {
		for start := 0; start < len(items); start += size {
			end := min(start+size, len(items))
			if !yield(items[start:end:end]) {
				return
			}
		}
	}
}
