package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xunhq/xun/core/discovery"
)

var execCmd = &cobra.Command{
	Use:   "exec <module-path> <call-expression>",
	Short: "Run a call expression against the module's bound environment",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 2 {
			return newUsageError("exec requires exactly 2 arguments: <module-path> <call-expression>")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		modulePath, callExpr := args[0], args[1]
		code, err := discovery.Run(cmd.Context(), modulePath, discovery.ModeExec, callExpr, "")
		if err != nil {
			return fmt.Errorf("running module %s: %w", modulePath, err)
		}
		if code != 0 {
			os.Exit(code)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(execCmd)
}
