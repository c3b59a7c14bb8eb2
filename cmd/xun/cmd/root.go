package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "xun",
	Short: "Run and introspect content-addressed xun function graphs",
	Long: `xun compiles a call to a registered xun function into a Blueprint — a
content-addressed DAG of memoized calls — and either runs it against a
store and driver, or renders the DAG for inspection.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. The returned error is already a
// usageError where appropriate; main.go maps it to an exit code with
// ExitCodeFor.
func Execute() error {
	return rootCmd.Execute()
}
