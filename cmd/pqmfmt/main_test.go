package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vito/pqm/pkg/ioctx"
)

const (
	messy     = "let x=1,y=2 in x+y"
	formatted = "let\n    x = 1,\n    y = 2\nin\n    x + y\n"
)

type runResult struct {
	stdout string
	stderr string
	err    error
}

// run executes the root command against buffers, in dir.
func run(t *testing.T, dir, stdin string, args ...string) runResult {
	t.Helper()
	t.Chdir(dir)

	var stdout, stderr bytes.Buffer
	ctx := context.Background()
	ctx = ioctx.StdinToContext(ctx, strings.NewReader(stdin))
	ctx = ioctx.StdoutToContext(ctx, &stdout)
	ctx = ioctx.StderrToContext(ctx, &stderr)

	cmd := rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	err := cmd.ExecuteContext(ctx)

	return runResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(content)
}

func TestFormatStdin(t *testing.T) {
	res := run(t, t.TempDir(), messy)
	require.NoError(t, res.err)
	assert.Equal(t, formatted, res.stdout)
}

func TestFormatStdinCompact(t *testing.T) {
	res := run(t, t.TempDir(), messy, "--compact")
	require.NoError(t, res.err)
	assert.Equal(t, "let x = 1, y = 2 in x + y\n", res.stdout)
}

func TestFormatStdinIndentOverride(t *testing.T) {
	res := run(t, t.TempDir(), messy, "--indent", "2")
	require.NoError(t, res.err)
	assert.Equal(t, "let\n  x = 1,\n  y = 2\nin\n  x + y\n", res.stdout)
}

func TestFormatStdinParseError(t *testing.T) {
	res := run(t, t.TempDir(), "[A = 1")
	require.Error(t, res.err)
	assert.Equal(t, `Line 1: expected "]", found end of input`, res.err.Error())
	assert.Empty(t, res.stdout)
}

func TestCheckStdin(t *testing.T) {
	dir := t.TempDir()

	res := run(t, dir, messy, "--check")
	require.Error(t, res.err)
	assert.Equal(t, "input is not formatted", res.err.Error())

	res = run(t, dir, formatted, "--check")
	require.NoError(t, res.err)
}

func TestWriteRequiresFiles(t *testing.T) {
	res := run(t, t.TempDir(), messy, "--write")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "--write requires file arguments")
}

func TestWriteFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.pq"), messy)
	writeFile(t, filepath.Join(dir, "nested", "b.m"), formatted)
	writeFile(t, filepath.Join(dir, "nested", "notes.txt"), messy)

	res := run(t, dir, "", "-w", ".")
	require.NoError(t, res.err)

	assert.Equal(t, formatted, readFile(t, filepath.Join(dir, "a.pq")))
	assert.Equal(t, formatted, readFile(t, filepath.Join(dir, "nested", "b.m")))
	assert.Equal(t, messy, readFile(t, filepath.Join(dir, "nested", "notes.txt")))
	assert.Equal(t, "Formatted: a.pq\n", res.stderr)
}

func TestCheckFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.pq"), messy)
	writeFile(t, filepath.Join(dir, "b.pq"), formatted)

	res := run(t, dir, "", "--check", "a.pq", "b.pq")
	require.Error(t, res.err)
	assert.Equal(t, "1 of 2 files not formatted", res.err.Error())
	assert.Equal(t, "a.pq: not formatted\n", res.stdout)
}

func TestFormatFilesKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.pq"), "{1,2}")
	writeFile(t, filepath.Join(dir, "b.pq"), "f(x)")

	res := run(t, dir, "", "b.pq", "a.pq")
	require.NoError(t, res.err)
	assert.Equal(t, "f(x)\n{1, 2}\n", res.stdout)
}

func TestFormatFilesCollectsErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.pq"), "[A = 1")
	writeFile(t, filepath.Join(dir, "good.pq"), "{1,2}")

	res := run(t, dir, "", "bad.pq", "good.pq")
	require.Error(t, res.err)
	assert.Equal(t, `bad.pq: Line 1: expected "]", found end of input`, res.err.Error())
	assert.Equal(t, "{1, 2}\n", res.stdout)
}

func TestOutputFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.pq"), messy)

	res := run(t, dir, "", "a.pq", "-o", "out.pq")
	require.NoError(t, res.err)
	assert.Empty(t, res.stdout)
	assert.Equal(t, formatted, readFile(t, filepath.Join(dir, "out.pq")))
	assert.Equal(t, messy, readFile(t, filepath.Join(dir, "a.pq")))
}

func TestOutputRequiresSingleFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.pq"), messy)
	writeFile(t, filepath.Join(dir, "b.pq"), messy)

	res := run(t, dir, "", "a.pq", "b.pq", "-o", "out.pq")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "single input file")
}

func TestDiscoveredConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".pqm.toml"), "indent_size = 2\n")

	res := run(t, dir, messy)
	require.NoError(t, res.err)
	assert.Equal(t, "let\n  x = 1,\n  y = 2\nin\n  x + y\n", res.stdout)
}

func TestPresetFlagKeepsFileSettings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".pqm.toml"), "indent_size = 2\n")

	res := run(t, dir, "[A=1]", "--expanded")
	require.NoError(t, res.err)
	assert.Equal(t, "[\n  A = 1\n]\n", res.stdout)

	writeFile(t, filepath.Join(dir, "style.yaml"), "preset: expanded\nspace_in_parens: true\n")
	res = run(t, dir, "let x = (1 + 2) * 3 in x", "--compact", "--config", "style.yaml")
	require.NoError(t, res.err)
	assert.Equal(t, "let x = ( 1 + 2 ) * 3 in x\n", res.stdout)
}

func TestExplicitConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "style.yaml"), "use_tabs: true\n")

	res := run(t, dir, messy, "--config", "style.yaml")
	require.NoError(t, res.err)
	assert.Equal(t, "let\n\tx = 1,\n\ty = 2\nin\n\tx + y\n", res.stdout)
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "good.pq"), messy)
	writeFile(t, filepath.Join(dir, "bad.pq"), "let x = 1")

	res := run(t, dir, "", "validate", "good.pq")
	require.NoError(t, res.err)

	res = run(t, dir, "", "validate", "good.pq", "bad.pq")
	require.Error(t, res.err)
	assert.True(t, strings.HasPrefix(res.err.Error(), "bad.pq: Line 1: "), res.err.Error())

	res = run(t, dir, "(1 +", "validate")
	require.Error(t, res.err)
}

func TestASTCommand(t *testing.T) {
	res := run(t, t.TempDir(), "[A = 1]", "ast")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Document")
	assert.Contains(t, res.stdout, `"A"`)
}

func TestConfigCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".pqm.yml"), "max_line_length: 80\n")

	res := run(t, dir, "", "config", "--tabs")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "max_line_length = 80")
	assert.Contains(t, res.stdout, "use_tabs = true")
}
