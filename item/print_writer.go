package item

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// PrintWriter writes each item as an "item = <value>" line.
type PrintWriter[T any] struct {
	out io.Writer
}

func NewPrintWriter[T any](out io.Writer) *PrintWriter[T] {
	return &PrintWriter[T]{out: out}
}

func (w *PrintWriter[T]) Write(_ context.Context, items []T) error {
	for _, it := range items {
		if _, err := fmt.Fprintf(w.out, "item = %v\n", it); err != nil {
			return errors.Wrap(err, "print item")
		}
	}
	return nil
}
