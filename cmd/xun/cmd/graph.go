package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xunhq/xun/core/discovery"
)

var graphFormat string

var graphCmd = &cobra.Command{
	Use:   "graph <module-path> <call-expression>",
	Short: "Render the Blueprint compiled for a call expression",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 2 {
			return newUsageError("graph requires exactly 2 arguments: <module-path> <call-expression>")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if graphFormat != "text" && graphFormat != "dot" {
			return newUsageError("unsupported --format %q, want \"text\" or \"dot\"", graphFormat)
		}
		modulePath, callExpr := args[0], args[1]
		code, err := discovery.Run(cmd.Context(), modulePath, discovery.ModeGraph, callExpr, graphFormat)
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
	graphCmd.Flags().StringVar(&graphFormat, "format", "text", "Output format: text or dot")
	rootCmd.AddCommand(graphCmd)
}
