// Package runner is what a module's own main() calls into once it has
// registered its xun functions and bound its Environment: it reads the
// mode and call-expression the `xun` CLI passed via environment
// variables, runs the requested operation, and exits with the code §6
// fixes for the CLI surface. cmd/xun never imports user code directly —
// it re-execs `go run <module-path>` with these variables set, and this
// package is the other half of that handshake.
package runner

import (
	"context"
	"fmt"
	"os"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/xunhq/xun/core/blueprint"
	"github.com/xunhq/xun/core/callexpr"
	"github.com/xunhq/xun/core/xerrors"
	"github.com/xunhq/xun/xun"
)

// Environment variable names the cmd/xun <-> module subprocess handshake
// uses. Unexported: a module never reads these directly, only through
// Main.
const (
	envMode   = "XUN_MODE"
	envCall   = "XUN_CALL"
	envFormat = "XUN_FORMAT"
)

const (
	ModeExec  = "exec"
	ModeGraph = "graph"
)

// Exit codes per §6: 0 success, 1 user-visible failure, 2 invalid usage.
const (
	ExitSuccess      = 0
	ExitUserFailure  = 1
	ExitInvalidUsage = 2
)

// Main dispatches on the environment variables cmd/xun's exec/graph
// subcommands set, then calls os.Exit with the resulting code. It never
// returns.
func Main() {
	os.Exit(run(context.Background(), os.Stderr))
}

func run(ctx context.Context, stderr *os.File) int {
	env, ok := xun.BoundEnvironment()
	if !ok {
		fmt.Fprintln(stderr, "ContextError: module does not bind a xun.Environment")
		return ExitInvalidUsage
	}

	mode := os.Getenv(envMode)
	call, err := callexpr.Parse(os.Getenv(envCall))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitInvalidUsage
	}

	planner := blueprint.New()
	bp, err := planner.Plan(ctx, call.Name, call.Args, call.Kwargs)
	if err != nil {
		fmt.Fprintln(stderr, err)
		if xerrors.Is(err, xerrors.NotFound) {
			if suggestion, ok := suggestFunctionName(call.Name); ok {
				fmt.Fprintf(stderr, "did you mean %q?\n", suggestion)
			}
		}
		return exitCodeFor(err)
	}

	switch mode {
	case ModeGraph:
		return runGraph(bp, os.Getenv(envFormat))
	case ModeExec:
		return runExec(ctx, env, bp, stderr)
	default:
		fmt.Fprintf(stderr, "ContextError: unknown mode %q\n", mode)
		return ExitInvalidUsage
	}
}

func runGraph(bp *blueprint.Blueprint, format string) int {
	switch format {
	case "dot":
		fmt.Print(bp.DOT())
	default:
		fmt.Print(bp.Describe())
	}
	return ExitSuccess
}

func runExec(ctx context.Context, env *xun.Environment, bp *blueprint.Blueprint, stderr *os.File) int {
	if _, err := env.Driver.Run(ctx, bp, env.Store); err != nil {
		fmt.Fprintln(stderr, err)
		return exitCodeFor(err)
	}
	return ExitSuccess
}

// exitCodeFor maps an engine error to a CLI exit code. ContextError is
// the only kind that means "this module-path argument doesn't point at a
// usable module"; everything else is a failure surfaced while running or
// planning a specific call.
func exitCodeFor(err error) int {
	if xerrors.Is(err, xerrors.ContextError) {
		return ExitInvalidUsage
	}
	return ExitUserFailure
}

// suggestFunctionName finds the closest registered name to an unknown one
// the CLI was asked to call.
func suggestFunctionName(name string) (string, bool) {
	candidates := xun.Registered()
	if len(candidates) == 0 {
		return "", false
	}
	ranks := fuzzy.RankFindFold(name, candidates)
	if len(ranks) == 0 {
		return "", false
	}
	return ranks[0].Target, true
}
