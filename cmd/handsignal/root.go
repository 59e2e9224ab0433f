package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ayusman/handsignal/internal/config"
)

// options are the flags shared by every subcommand.
type options struct {
	configPath string
	debug      bool

	settings *config.Settings
	logger   *slog.Logger
}

func rootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "handsignal",
		Short:         "Hand gesture call control",
		Long:          "handsignal watches the camera for hand gestures and turns them into mute, camera and hang-up actions for the current call.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.debug {
				settings.Log.Level = "debug"
			}
			opts.settings = settings
			opts.logger = newLogger(os.Stderr, settings)
			slog.SetDefault(opts.logger)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to config.yaml (default: search ~/.config/handsignal, /etc/handsignal and .)")
	rootCmd.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "Enable debug output")

	rootCmd.AddCommand(
		runCommand(opts),
		pluginsCommand(opts),
	)
	return rootCmd
}

func newLogger(w io.Writer, settings *config.Settings) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(settings.Log.Level)); err != nil {
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if settings.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// ensureDir creates the parent directory of path.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}
