// Package arena provides a flat, single-allocation buffer that hands out
// sequential sub-ranges and is released only as a whole.
package arena

import (
	"fmt"
	"unsafe"

	"github.com/pkg/errors"
)

// MaxElements bounds a single arena allocation.
const MaxElements = 1 << 31

var (
	// ErrAllocation reports that the backing allocation could not be obtained.
	ErrAllocation = errors.New("arena: allocation failed")
	// ErrCapacityExceeded is the panic value raised when Push runs past capacity.
	ErrCapacityExceeded = errors.New("arena: capacity exceeded")
)

// Element is the set of element types an arena may hold.
type Element interface {
	~float32 | ~uint8
}

// Range is a half-open index range [Off, Off+Len) inside a Buffer.
type Range struct {
	Off int
	Len int
}

// End returns the first index past the range.
func (r Range) End() int { return r.Off + r.Len }

// Buffer owns one contiguous allocation of T.
type Buffer[T Element] struct {
	label string
	data  []T
	size  int
}

// New allocates a buffer able to hold exactly capacity elements.
func New[T Element](capacity int, label string) (*Buffer[T], error) {
	b := &Buffer[T]{}
	if err := b.Create(capacity, label); err != nil {
		return nil, err
	}
	return b, nil
}

// Create allocates the backing storage. On failure the buffer stays unusable.
func (b *Buffer[T]) Create(capacity int, label string) (err error) {
	if capacity < 0 || capacity > MaxElements {
		return errors.Wrapf(ErrAllocation, "%s: %d elements", label, capacity)
	}
	defer func() {
		if r := recover(); r != nil {
			b.data, b.size = nil, 0
			err = errors.Wrapf(ErrAllocation, "%s: %v", label, r)
		}
	}()
	b.label = label
	b.data = make([]T, capacity)
	b.size = 0
	return nil
}

// Push reserves the next n elements and returns their range.
// Pushing past capacity is a bug in the caller's size computation and panics.
func (b *Buffer[T]) Push(n int) Range {
	if n < 0 || b.size+n > len(b.data) {
		panic(errors.Wrap(ErrCapacityExceeded, fmt.Sprintf("%s: push %d at %d/%d", b.label, n, b.size, len(b.data))))
	}
	r := Range{Off: b.size, Len: n}
	b.size += n
	return r
}

// PushSlice reserves the next n elements and returns them directly.
func (b *Buffer[T]) PushSlice(n int) []T {
	return b.Slice(b.Push(n))
}

// Slice returns the elements of r. The result cannot be appended into a neighbour.
func (b *Buffer[T]) Slice(r Range) []T {
	end := r.End()
	return b.data[r.Off:end:end]
}

// Destroy releases the allocation. Safe on a never-created buffer.
func (b *Buffer[T]) Destroy() {
	if b == nil {
		return
	}
	b.data = nil
	b.size = 0
}

// Ok reports whether the buffer currently holds an allocation.
func (b *Buffer[T]) Ok() bool { return b != nil && b.data != nil }

// Size is the number of elements handed out so far.
func (b *Buffer[T]) Size() int { return b.size }

// Capacity is the number of elements allocated.
func (b *Buffer[T]) Capacity() int { return len(b.data) }

// Label names the buffer in error messages.
func (b *Buffer[T]) Label() string { return b.label }

// Bytes reports the consumed size in bytes.
func (b *Buffer[T]) Bytes() int {
	var zero T
	return b.size * int(unsafe.Sizeof(zero))
}

// ElementSize is the size of one T in bytes.
func ElementSize[T Element]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}
