package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/samiralibabic/mcpterm/internal/config"
	"github.com/samiralibabic/mcpterm/internal/llm"
	"github.com/samiralibabic/mcpterm/internal/logging"
	"github.com/samiralibabic/mcpterm/internal/server"
	"github.com/samiralibabic/mcpterm/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "mcpterm:", err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "mcpterm", "config.toml")
}

func run() error {
	var (
		cfgPath    string
		stdio      bool
		httpListen string
		useTUI     bool
		logLevel   string
		scriptPath string
	)
	flag.StringVar(&cfgPath, "config", defaultConfigPath(), "path to mcpterm config")
	flag.BoolVar(&stdio, "stdio", false, "serve JSON-RPC on stdio")
	flag.StringVar(&httpListen, "http", "", "listen address for the HTTP/WS transport")
	flag.BoolVar(&useTUI, "tui", false, "run the terminal UI")
	flag.StringVar(&logLevel, "log-level", "", "override the configured log level")
	flag.StringVar(&scriptPath, "script", "", "replay model replies from a TOML script")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if httpListen != "" {
		cfg.Server.HTTPListen = httpListen
		cfg.Server.Stdio = stdio
	} else if stdio {
		cfg.Server.Stdio = true
	}
	if useTUI && (cfg.Logging.Output == "" || cfg.Logging.Output == "stderr" || cfg.Logging.Output == "stdout") {
		// The UI owns the terminal.
		cfg.Logging.Output = filepath.Join(os.TempDir(), "mcpterm.log")
	}
	if cfg.Server.Stdio && cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	var client llm.Client
	if scriptPath != "" {
		scripted, err := llm.LoadScript(scriptPath)
		if err != nil {
			return err
		}
		client = scripted
	}

	svc, err := server.NewService(cfg, client, log)
	if err != nil {
		return errors.Wrap(err, "create service")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	svc.Start(ctx)
	defer svc.Close()

	log.Info("starting",
		zap.String("version", server.ServerVersion),
		zap.Bool("tui", useTUI),
		zap.Bool("stdio", cfg.Server.Stdio),
		zap.String("http", cfg.Server.HTTPListen),
	)

	switch {
	case useTUI:
		if cfg.Server.HTTPListen != "" {
			go func() {
				if err := server.RunHTTP(ctx, svc); err != nil {
					log.Error("http server failed", zap.Error(err))
				}
			}()
		}
		return tui.Run(ctx, svc.Bus())
	case cfg.Server.HTTPListen != "" && !cfg.Server.Stdio:
		return server.RunHTTP(ctx, svc)
	case cfg.Server.Stdio:
		if cfg.Server.HTTPListen != "" {
			go func() {
				if err := server.RunHTTP(ctx, svc); err != nil {
					log.Error("http server failed", zap.Error(err))
				}
			}()
		}
		return server.RunStdio(ctx, svc, os.Stdin, os.Stdout)
	}
	return errors.New("one of --stdio, --http or --tui is required")
}
