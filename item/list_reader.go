package item

import (
	"context"
	"io"
)

// ListReader reads items from a fixed in-memory list. It is not safe for concurrent use.
type ListReader[T any] struct {
	items []T
	pos   int
}

func NewListReader[T any](items ...T) *ListReader[T] {
	return &ListReader[T]{
		items: append([]T{}, items...),
	}
}

func (r *ListReader[T]) Read(context.Context) (item T, err error) {
	if r.pos >= len(r.items) {
		return item, io.EOF
	}
	item = r.items[r.pos]
	r.pos++
	return item, nil
}
