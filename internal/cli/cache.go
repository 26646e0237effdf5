package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/layerstack/pkg/cache"
)

func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the image and artifact cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())
	cmd.AddCommand(c.cacheStatsCommand())

	return cmd
}

func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached image and artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := c.newCache(ctx, false)
			if err != nil {
				return err
			}
			defer store.Close()

			entries := -1
			if fc, ok := store.(*cache.FileCache); ok {
				entries, _, _ = fc.Usage()
			}
			if err := cache.Clear(ctx, store); err != nil {
				if errors.Is(err, cache.ErrClearUnsupported) {
					return fmt.Errorf("the %s backend cannot be cleared from here", c.backend())
				}
				return err
			}

			if entries >= 0 {
				printSuccess("Cleared %d cached entries", entries)
			} else {
				printSuccess("Cleared the %s cache", c.backend())
			}
			if fc, ok := store.(*cache.FileCache); ok {
				printDetail("Directory: %s", fc.Dir())
			}
			return nil
		},
	}
}

func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the file cache directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := c.config.Cache.Dir
			if dir == "" {
				var err error
				if dir, err = cacheDir(); err != nil {
					return fmt.Errorf("get cache dir: %w", err)
				}
			}
			fmt.Fprintln(out, dir)
			return nil
		},
	}
}

func (c *CLI) cacheStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache backend and usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.newCache(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer store.Close()

			printKeyValue("Backend", c.backend())
			fc, ok := store.(*cache.FileCache)
			if !ok {
				printDetail("usage is only reported for the file backend")
				return nil
			}
			entries, size, err := fc.Usage()
			if err != nil {
				return err
			}
			printKeyValue("Directory", fc.Dir())
			printKeyValue("Entries", fmt.Sprint(entries))
			printKeyValue("Size", formatBytes(size))
			return nil
		},
	}
}

func (c *CLI) backend() string {
	if c.config.Cache.Backend == "" {
		return backendFile
	}
	return c.config.Cache.Backend
}
