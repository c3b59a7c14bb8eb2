package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xunhq/xun/core/config"
	"github.com/xunhq/xun/core/mount"
	"github.com/xunhq/xun/core/tagquery"
)

var mountCmd = &cobra.Command{
	Use:   "mount <store-spec> <query-string> <mountpoint>",
	Short: "Render a read-only tag-query view of a store as a directory tree",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 3 {
			return newUsageError("mount requires exactly 3 arguments: <store-spec> <query-string> <mountpoint>")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		storeSpecJSON, queryString, mountpoint := args[0], args[1], args[2]

		spec, err := config.ParseStoreSpec([]byte(storeSpecJSON))
		if err != nil {
			return newUsageError("invalid store spec: %v", err)
		}
		st, err := config.BuildStore(spec)
		if err != nil {
			return fmt.Errorf("building store: %w", err)
		}
		q, err := tagquery.Parse(queryString)
		if err != nil {
			return newUsageError("invalid query string: %v", err)
		}

		m := mount.NewMounter(st, q, mountpoint)
		if err := m.RenderOnce(cmd.Context()); err != nil {
			return fmt.Errorf("rendering mount: %w", err)
		}

		var watchDirs []string
		for _, root := range diskRootsOf(spec) {
			watchDirs = append(watchDirs, filepath.Join(root, "tags"), filepath.Join(root, "values"))
		}
		if len(watchDirs) == 0 {
			return nil
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		if err := m.Watch(ctx, watchDirs...); err != nil && ctx.Err() == nil {
			return fmt.Errorf("watching store: %w", err)
		}
		return nil
	},
}

// diskRootsOf collects every disk-backed layer's root directory reachable
// from spec, so mount's Watch knows which directories fsnotify should
// follow. A store with no disk layer (pure memory/lru) has nothing to
// watch — mount still renders once, just never updates.
func diskRootsOf(spec config.StoreSpec) []string {
	switch spec.Kind {
	case "disk":
		return []string{spec.Root}
	case "layered":
		var roots []string
		for _, layer := range spec.Layers {
			roots = append(roots, diskRootsOf(layer)...)
		}
		return roots
	default:
		return nil
	}
}

func init() {
	rootCmd.AddCommand(mountCmd)
}
