package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/ayusman/handsignal/internal/app"
	"github.com/ayusman/handsignal/internal/capture"
	"github.com/ayusman/handsignal/internal/config"
	"github.com/ayusman/handsignal/internal/gesture"
	"github.com/ayusman/handsignal/internal/metrics"
	"github.com/ayusman/handsignal/internal/scheduler"
	"github.com/ayusman/handsignal/internal/server"
	"github.com/ayusman/handsignal/internal/store"
	"github.com/ayusman/handsignal/internal/tray"
)

const shutdownTimeout = 5 * time.Second

func runCommand(opts *options) *cobra.Command {
	var noTray bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start gesture call control",
		Long:  "Open the camera, begin a call session and act on gestures until hang-up or interrupt.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if noTray {
				opts.settings.Tray.Enabled = false
			}
			return run(cmd.Context(), opts.settings, opts.logger)
		},
	}

	cmd.Flags().BoolVar(&noTray, "no-tray", false, "Run without the system tray menu")
	return cmd
}

func run(ctx context.Context, settings *config.Settings, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ensureDir(settings.Store.Path); err != nil {
		return err
	}
	st, err := store.New(settings.Store.Path)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(registry)
	if err != nil {
		return err
	}

	camera := capture.NewCamera(settings.Camera.DeviceID)
	camera.SetFPS(settings.Camera.FPS)

	application := app.New(app.Config{
		Store:           st,
		PluginDir:       settings.Plugins.Dir,
		PluginTimeout:   settings.Plugins.Timeout,
		Camera:          camera,
		DetectorConfig:  settings.DetectorConfig(),
		OverlayInterval: settings.Overlay.Interval,
		SchedulerOptions: []scheduler.Option{
			scheduler.WithFrameInterval(settings.Gesture.FrameInterval),
			scheduler.WithCooldown(settings.Gesture.Cooldown),
			scheduler.WithInitTimeout(settings.Detector.InitTimeout),
			scheduler.WithClassifier(gesture.Classifier{EndCallDistance: settings.Gesture.EndCallDistance}),
		},
		Metrics: m,
		Logger:  logger,
	})

	if err := application.DiscoverPlugins(); err != nil {
		logger.Warn("plugin discovery failed", "dir", settings.Plugins.Dir, "error", err)
	}

	go application.Bridge().Run(ctx)

	if settings.Server.Enabled {
		srv := server.New(server.Config{
			StaticDir: findWebDir(),
			Store:     st,
			Overlay:   application.Bridge(),
			Plugins:   application.PluginManager(),
			Metrics:   registry,
			Logger:    logger,
		})
		httpSrv := &http.Server{
			Addr:              settings.Server.Addr,
			Handler:           srv,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			logger.Info("starting server", "addr", settings.Server.Addr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server failed", "error", err)
				stop()
			}
		}()
		defer func() {
			srv.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("server shutdown", "error", err)
			}
		}()
	}

	if err := application.Start(ctx); err != nil {
		return err
	}
	defer application.Stop()

	if !settings.Tray.Enabled {
		<-ctx.Done()
		logger.Info("shutting down")
		return nil
	}

	runTray(ctx, stop, application, settings, logger)
	logger.Info("shutting down")
	return nil
}

// runTray blocks in the tray event loop until Quit or ctx is done.
func runTray(ctx context.Context, stop context.CancelFunc, application *app.App, settings *config.Settings, logger *slog.Logger) {
	tr := tray.New()
	tr.OnToggle(func(enabled bool) {
		if err := application.SetEnabled(ctx, enabled); err != nil {
			logger.Error("failed to switch gesture control", "enabled", enabled, "error", err)
		}
	})
	tr.OnOverlay(func() {
		if !settings.Server.Enabled {
			logger.Warn("overlay needs the server enabled")
			return
		}
		url := "http://" + settings.Server.Addr + "/"
		if err := openBrowser(url); err != nil {
			logger.Warn("failed to open browser", "url", url, "error", err)
		}
	})
	tr.OnQuit(stop)

	snapshots, unsubscribe := application.Bridge().Subscribe()
	defer unsubscribe()
	go tr.Watch(ctx, snapshots, application.IsEnabled)

	go func() {
		<-ctx.Done()
		tr.Quit()
	}()

	tr.Run()
}
