// Package discovery is the CLI side of the runner handshake
// (core/runner): it re-execs `go run <module-path>` with the mode,
// call-expression, and output format the user asked for passed through
// environment variables, and reports back the exit code the subprocess's
// core/runner.Main produced.
//
// A xun module is Go source: there is no bytecode interpreter here to
// load a module's functions and then ask it "which Environment did you
// bind". The module must actually run, which means actually compiling
// it, which is exactly what `go run` already does — reimplementing that
// with the plugin package would buy nothing but a stricter toolchain
// version match requirement.
package discovery

import (
	"context"
	"os"
	"os/exec"

	"github.com/xunhq/xun/core/runner"
)

// Mode selects which of core/runner's dispatch paths the subprocess runs.
type Mode string

const (
	ModeExec  Mode = runner.ModeExec
	ModeGraph Mode = runner.ModeGraph
)

// Run re-execs the Go package at modulePath with the given mode, call
// expression, and (for ModeGraph) output format, streaming its stdout and
// stderr through unmodified. It returns the subprocess's exit code.
func Run(ctx context.Context, modulePath string, mode Mode, callExpr string, format string) (int, error) {
	cmd := exec.CommandContext(ctx, "go", "run", modulePath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(),
		"XUN_MODE="+string(mode),
		"XUN_CALL="+callExpr,
		"XUN_FORMAT="+format,
	)

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if ok := asExitError(err, &exitErr); ok {
		return exitErr.ExitCode(), nil
	}
	return 0, err
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}
