// Package iocontext carries the command's I/O streams in a context so tests
// can substitute buffers for the process streams.
package iocontext

import (
	"context"
	"io"
	"os"
)

// IO holds the input/output streams for commands.
type IO struct {
	Out    io.Writer // stdout
	ErrOut io.Writer // stderr
	In     io.Reader // stdin
}

// DefaultIO returns the standard IO streams.
func DefaultIO() *IO {
	return &IO{
		Out:    os.Stdout,
		ErrOut: os.Stderr,
		In:     os.Stdin,
	}
}

// Quiet returns a copy whose stderr is discarded.
func (s *IO) Quiet() *IO {
	return &IO{Out: s.Out, ErrOut: io.Discard, In: s.In}
}

type ioKey struct{}

// WithIO adds IO streams to a context.
func WithIO(ctx context.Context, streams *IO) context.Context {
	return context.WithValue(ctx, ioKey{}, streams)
}

// GetIO retrieves IO streams from context, defaulting to standard streams.
// Missing fields of a stored IO are filled with the process streams.
func GetIO(ctx context.Context) *IO {
	streams, ok := ctx.Value(ioKey{}).(*IO)
	if !ok || streams == nil {
		return DefaultIO()
	}
	out := *streams
	def := DefaultIO()
	if out.Out == nil {
		out.Out = def.Out
	}
	if out.ErrOut == nil {
		out.ErrOut = def.ErrOut
	}
	if out.In == nil {
		out.In = def.In
	}
	return &out
}
