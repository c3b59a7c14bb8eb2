package discovery_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xunhq/xun/core/discovery"
)

// writeExitModule writes a standalone main package (its own go.mod, so
// `go run` never touches this repo's module graph) that exits with a code
// derived from XUN_MODE, letting these tests exercise Run's exit-code
// propagation without a real xun module.
func writeExitModule(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module discoveryfixture\n\ngo 1.24\n"), 0o644))
	main := `package main

import "os"

func main() {
	switch os.Getenv("XUN_MODE") {
	case "exec", "graph":
		os.Exit(0)
	case "fail":
		os.Exit(1)
	default:
		os.Exit(2)
	}
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte(main), 0o644))
	return dir
}

func TestRunPropagatesSuccessExitCode(t *testing.T) {
	dir := writeExitModule(t)
	code, err := discovery.Run(context.Background(), dir, discovery.ModeExec, "f(1)", "text")
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestRunPropagatesFailureExitCode(t *testing.T) {
	dir := writeExitModule(t)
	code, err := discovery.Run(context.Background(), dir, discovery.Mode("fail"), "f(1)", "text")
	require.NoError(t, err)
	assert.Equal(t, 1, code)
}

func TestRunPropagatesInvalidUsageExitCode(t *testing.T) {
	dir := writeExitModule(t)
	code, err := discovery.Run(context.Background(), dir, discovery.Mode("bogus"), "f(1)", "text")
	require.NoError(t, err)
	assert.Equal(t, 2, code)
}
