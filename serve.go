package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/MikkoParkkola/MistralOCR/core"
	"github.com/MikkoParkkola/MistralOCR/logging"
	"github.com/MikkoParkkola/MistralOCR/mistral"
	"github.com/MikkoParkkola/MistralOCR/relay"
	"github.com/MikkoParkkola/MistralOCR/usage"
)

// serveOptions holds the parsed serve-mode flags.
type serveOptions struct {
	host       string
	port       int
	configPath string
	logLevel   string
	usageDB    string
	service    string
}

func parseServeFlags(args []string) (*serveOptions, error) {
	opts := &serveOptions{}
	fs := flag.NewFlagSet("mistral-ocr serve", flag.ContinueOnError)
	fs.StringVar(&opts.host, "host", "", "address to bind (default 127.0.0.1)")
	fs.IntVar(&opts.port, "port", 0, "port to listen on (default 5000)")
	fs.StringVar(&opts.configPath, "config", "", "config file path (default ~/.mistral-ocr.yaml)")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, or error")
	fs.StringVar(&opts.usageDB, "usage-db", "", "usage ledger database path (empty disables recording)")
	fs.StringVar(&opts.service, "service", "", "service command: install, uninstall, start, or stop")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

func runServe(args []string) int {
	opts, err := parseServeFlags(args)
	if err != nil {
		return core.ExitCodeError
	}

	if opts.service != "" {
		if err := handleServiceCommand(opts.service); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return core.ExitCodeError
		}
		return core.ExitCodeSuccess
	}

	// When launched by the service manager this blocks until the service
	// is stopped; interactive launches fall through.
	if ranAsService, err := runAsServiceIfNeeded(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return core.ExitCodeError
	} else if ranAsService {
		return core.ExitCodeSuccess
	}

	return runRelay(context.Background(), opts)
}

// runRelay starts the relay and blocks until an interrupt arrives or
// the parent context is cancelled (the service manager's stop path).
func runRelay(parent context.Context, opts *serveOptions) int {
	configPath := opts.configPath
	if configPath == "" {
		configPath = core.DefaultConfigPath()
	}
	cfg, err := core.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return core.ExitCodeError
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.usageDB != "" {
		cfg.UsageDBPath = opts.usageDB
	}
	host := cfg.RelayHost
	if opts.host != "" {
		host = opts.host
	}
	port := cfg.RelayPort
	if opts.port != 0 {
		port = opts.port
	}

	level := logging.ParseLogLevelString(cfg.LogLevel, logging.InfoLevel)
	logger := logging.NewLogger(level, cfg.LogFile, cfg.DevMode)
	defer logger.Sync()

	var ledger *usage.Ledger
	if cfg.UsageDBPath != "" {
		ledger, err = usage.Open(cfg.UsageDBPath)
		if err != nil {
			logger.Warn("usage ledger unavailable", zap.Error(err))
		} else {
			defer ledger.Close()
		}
	}

	serverCfg := relay.DefaultServerConfig()
	serverCfg.Host = host
	serverCfg.Port = port
	serverCfg.Upstream = mistral.ClientConfig{BaseURL: cfg.BaseURL, Model: cfg.Model}
	serverCfg.Retry = mistral.RetryConfig{
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		Multiplier:   2.0,
	}
	serverCfg.HTTPClient = core.GetHTTPClient(cfg.Timeout)

	server, err := relay.NewServer(serverCfg, logger, ledger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return core.ExitCodeError
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("relay server failed", zap.Error(err))
			return core.ExitCodeError
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
			return core.ExitCodeError
		}
		<-errCh
	}
	return core.ExitCodeSuccess
}
