package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dooshek/vumeter/internal/audio"
	"github.com/dooshek/vumeter/internal/config"
	"github.com/dooshek/vumeter/internal/dbus"
	"github.com/dooshek/vumeter/internal/fileops"
	"github.com/dooshek/vumeter/internal/logger"
	"github.com/dooshek/vumeter/internal/meter"
	"github.com/dooshek/vumeter/internal/notification"
	"github.com/dooshek/vumeter/internal/render"
	"github.com/dooshek/vumeter/internal/types"
	"github.com/fatih/color"
)

func init() {
	// Set custom usage message to show -- prefix
	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "Usage of %s:\n", os.Args[0])
		flag.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(out, "  --%s", f.Name)
			name, usage := flag.UnquoteUsage(f)
			if len(name) > 0 {
				fmt.Fprintf(out, " %s", name)
			}
			fmt.Fprintf(out, "\n    \t%s", usage)
			if f.DefValue != "" && f.DefValue != "false" {
				fmt.Fprintf(out, " (default %q)", f.DefValue)
			}
			fmt.Fprintf(out, "\n")
		})
	}
}

func main() {
	configPath := flag.String("config", "", "Config file (default ~/.config/vumeter/vumeter.yaml)")
	initConfig := flag.Bool("init-config", false, "Write the default config file and exit")
	logLevel := flag.String("log-level", "", "Set log level (debug|info|warn|error)")
	logFilename := flag.String("log-filename", "", "Log to file instead of stderr")
	replay := flag.String("file", "", "Replay an audio file instead of capturing the microphone")
	fps := flag.Int("fps", 0, "Display refresh rate")
	wsAddr := flag.String("ws-addr", "", "Serve frames over WebSocket on this address, e.g. :8088")
	noConsole := flag.Bool("no-console", false, "Do not draw the terminal gauge")
	enableDBus := flag.Bool("dbus", false, "Publish levels on the D-Bus session bus")
	flag.Parse()

	fileOps, configName, err := resolveConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving config: %v\n", err)
		os.Exit(1)
	}

	if *initConfig {
		if err := config.SaveConfig(fileOps, configName, config.Default()); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing config: %v\n", err)
			os.Exit(1)
		}
		color.New(color.FgGreen).Printf("✓ Wrote %s\n", fileOps.GetConfigPath(configName))
		return
	}

	cfg, err := config.LoadConfig(fileOps, configName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	applyFlags(cfg, *logLevel, *logFilename, *fps, *wsAddr, *noConsole, *enableDBus)
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error in options: %v\n", err)
		os.Exit(1)
	}

	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Error setting log level: %v\n", err)
		os.Exit(1)
	}
	if cfg.Log.Filename != "" {
		if err := logger.SetOutputFile(cfg.Log.Filename); err != nil {
			fmt.Fprintf(os.Stderr, "Error setting log file: %v\n", err)
			os.Exit(1)
		}
		defer logger.CloseLogFile()
	}

	if err := run(cfg, *replay); err != nil {
		logger.Error("VU meter stopped", err)
		logger.CloseLogFile()
		os.Exit(1)
	}
}

// resolveConfig maps --config onto a config directory and file name.
func resolveConfig(path string) (fileops.FileOps, string, error) {
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, "", err
		}
		return fileops.NewFileOps(filepath.Dir(abs)), filepath.Base(abs), nil
	}
	fileOps, err := fileops.NewDefaultFileOps()
	if err != nil {
		return nil, "", err
	}
	return fileOps, config.ConfigFilename, nil
}

func applyFlags(cfg *types.Config, logLevel, logFilename string, fps int, wsAddr string, noConsole, enableDBus bool) {
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFilename != "" {
		cfg.Log.Filename = logFilename
	}
	if fps > 0 {
		cfg.Display.FPS = fps
	}
	if wsAddr != "" {
		cfg.Display.WebSocketAddr = wsAddr
	}
	if noConsole {
		cfg.Display.Console = false
	}
	if enableDBus {
		cfg.DBus.Enabled = true
	}
}

func run(cfg *types.Config, replay string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier := notification.New()
	m := meter.New(cfg.Meter)

	var source audio.Source
	if replay != "" {
		source = audio.NewFileSource(replay, cfg.Audio.BlockFrames)
	} else {
		source = audio.NewMicSource(cfg.Audio.BlockFrames)
	}

	var sinks []render.Sink
	if cfg.Display.Console {
		sinks = append(sinks, render.NewConsole(os.Stdout, cfg.Meter.Calibration, cfg.Display.ConsoleWidth))
	}

	if cfg.Display.WebSocketAddr != "" {
		ws := render.NewWebSocket(cfg.Display.AllowedOrigins)
		defer ws.Close()

		mux := http.NewServeMux()
		mux.Handle("/ws", ws)
		srv := &http.Server{Addr: cfg.Display.WebSocketAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("WebSocket server failed", err)
			}
		}()
		defer srv.Close()

		logger.Infof("🌐 Streaming frames on ws://%s/ws", cfg.Display.WebSocketAddr)
		sinks = append(sinks, ws)
	}

	if cfg.DBus.Enabled {
		server := dbus.NewServer(m)
		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start D-Bus service: %w", err)
		}
		defer server.Stop()
	}

	pipeline := meter.NewPipeline(m, source)
	if err := pipeline.Start(ctx); err != nil {
		notifyFault(notifier, err)
		return err
	}

	renderDone := make(chan error, 1)
	if len(sinks) > 0 {
		go func() {
			renderDone <- render.Loop(ctx, m, cfg.Display.FPS, sinks...)
		}()
	}

	renderRunning := len(sinks) > 0
	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case <-pipeline.Done():
	case err := <-renderDone:
		renderRunning = false
		if err != nil {
			logger.Error("Display loop ended", err)
		}
	}
	interrupted := ctx.Err() != nil

	err := pipeline.Stop()
	stop()
	if renderRunning {
		<-renderDone
	}
	if cfg.Display.Console {
		fmt.Fprintln(os.Stdout)
	}

	if err != nil {
		notifyFault(notifier, err)
		return err
	}
	if replay != "" && !interrupted {
		if nerr := notifier.NotifyReplayFinished(replay); nerr != nil {
			logger.Error("Failed to send notification", nerr)
		}
	}
	return nil
}

func notifyFault(notifier notification.Notifier, err error) {
	if nerr := notifier.NotifyCaptureFault(err); nerr != nil {
		logger.Error("Failed to send notification", nerr)
	}
}
