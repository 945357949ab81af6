package ioctx

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	ctx := context.Background()

	in, err := io.ReadAll(StdinFromContext(ctx))
	require.NoError(t, err)
	require.Empty(t, in)
	require.Equal(t, io.Discard, StdoutFromContext(ctx))
	require.Equal(t, io.Discard, StderrFromContext(ctx))
}

func TestRoundTrip(t *testing.T) {
	var stdout, stderr bytes.Buffer
	ctx := context.Background()
	ctx = StdinToContext(ctx, strings.NewReader("let x = 1 in x"))
	ctx = StdoutToContext(ctx, &stdout)
	ctx = StderrToContext(ctx, &stderr)

	in, err := io.ReadAll(StdinFromContext(ctx))
	require.NoError(t, err)
	require.Equal(t, "let x = 1 in x", string(in))

	io.WriteString(StdoutFromContext(ctx), "out")
	io.WriteString(StderrFromContext(ctx), "err")
	require.Equal(t, "out", stdout.String())
	require.Equal(t, "err", stderr.String())
}
