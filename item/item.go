// Package item defines how a chunk-oriented step reads, processes and writes items.
package item

import (
	"context"
)

// Reader reads items one at a time. It returns io.EOF when the input is exhausted.
type Reader[T any] interface {
	Read(ctx context.Context) (T, error)
}

// Processor transforms an item. Returning keep=false filters the item out of the chunk.
type Processor[I, O any] interface {
	Process(ctx context.Context, in I) (out O, keep bool, err error)
}

// Writer writes a chunk of items at once.
type Writer[T any] interface {
	Write(ctx context.Context, items []T) error
}

// Stream is implemented by readers and writers holding resources for the duration of a step.
type Stream interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error
}

type ReaderFunc[T any] func(ctx context.Context) (T, error)

func (f ReaderFunc[T]) Read(ctx context.Context) (T, error) {
	return f(ctx)
}

type ProcessorFunc[I, O any] func(ctx context.Context, in I) (O, bool, error)

func (f ProcessorFunc[I, O]) Process(ctx context.Context, in I) (O, bool, error) {
	return f(ctx, in)
}

type WriterFunc[T any] func(ctx context.Context, items []T) error

func (f WriterFunc[T]) Write(ctx context.Context, items []T) error {
	return f(ctx, items)
}
