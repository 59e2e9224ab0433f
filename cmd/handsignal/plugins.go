package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/handsignal/internal/plugin"
)

func pluginsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List installed action plugins",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := plugin.NewManager(opts.settings.Plugins.Dir, opts.logger)
			if err := mgr.Discover(); err != nil {
				return fmt.Errorf("discover plugins in %s: %w", opts.settings.Plugins.Dir, err)
			}

			plugins := mgr.List()
			if len(plugins) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no plugins in %s\n", mgr.PluginDir())
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tVERSION\tACTIONS")
			for _, p := range plugins {
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.Manifest.Name, p.Manifest.Version, strings.Join(p.Manifest.Actions, ","))
			}
			return w.Flush()
		},
	}
}
