package orderedbuffer

import (
	"errors"
	"sort"
)

var ErrClosedBuffer = errors.New("buffer is closed")

type CompareFunc[T any] func(a, b T) int

// OrderedBoundedBuffer keeps at most maxBufLen values sorted by compare.
// Inserting into a full buffer evicts the smallest value.
//
// It is not safe for concurrent use; a stream pulls it from one fiber.
type OrderedBoundedBuffer[T any] struct {
	data      []T
	maxBufLen int
	compare   CompareFunc[T]
	closed    bool
}

func NewOrderedBoundedBuffer[T any](maxBufLen int, cmp CompareFunc[T]) *OrderedBoundedBuffer[T] {
	if maxBufLen < 1 {
		maxBufLen = 1
	}
	return &OrderedBoundedBuffer[T]{
		data:      make([]T, 0, maxBufLen+1),
		maxBufLen: maxBufLen,
		compare:   cmp,
	}
}

// Insert adds val. When the buffer overflows, the smallest value is
// removed and returned with evicted set.
func (b *OrderedBoundedBuffer[T]) Insert(val T) (out T, evicted bool, err error) {
	if b.closed {
		return out, false, ErrClosedBuffer
	}

	// equal values keep their insertion order
	idx := sort.Search(len(b.data), func(i int) bool {
		return b.compare(val, b.data[i]) < 0
	})
	b.data = append(b.data, val)
	copy(b.data[idx+1:], b.data[idx:])
	b.data[idx] = val

	if len(b.data) > b.maxBufLen {
		out = b.data[0]
		var zero T
		b.data[0] = zero
		b.data = b.data[1:]
		return out, true, nil
	}
	return out, false, nil
}

func (b *OrderedBoundedBuffer[T]) Len() int { return len(b.data) }

// Close closes the buffer and returns what is left, in order. Later calls
// return nothing.
func (b *OrderedBoundedBuffer[T]) Close() []T {
	if b.closed {
		return nil
	}
	b.closed = true
	rest := b.data
	b.data = nil
	return rest
}
