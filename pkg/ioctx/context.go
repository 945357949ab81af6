// Package ioctx carries the standard streams on a context.Context so that
// commands can be run against buffers in tests.
package ioctx

import (
	"context"
	"io"
	"strings"
)

type stdinKey struct{}
type stdoutKey struct{}
type stderrKey struct{}

// StdinFromContext returns the input stream, or an empty reader if none was
// set.
func StdinFromContext(ctx context.Context) io.Reader {
	r := ctx.Value(stdinKey{})
	if r == nil {
		r = strings.NewReader("")
	}

	return r.(io.Reader)
}

func StdinToContext(ctx context.Context, r io.Reader) context.Context {
	return context.WithValue(ctx, stdinKey{}, r)
}

func StderrFromContext(ctx context.Context) io.Writer {
	w := ctx.Value(stderrKey{})
	if w == nil {
		w = io.Discard
	}

	return w.(io.Writer)
}

func StderrToContext(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, stderrKey{}, w)
}

func StdoutFromContext(ctx context.Context) io.Writer {
	w := ctx.Value(stdoutKey{})
	if w == nil {
		w = io.Discard
	}

	return w.(io.Writer)
}

func StdoutToContext(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, stdoutKey{}, w)
}
