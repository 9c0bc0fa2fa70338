package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/MikkoParkkola/MistralOCR/core"
	"github.com/MikkoParkkola/MistralOCR/inspect"
	"github.com/MikkoParkkola/MistralOCR/logging"
	"github.com/MikkoParkkola/MistralOCR/mistral"
	"github.com/MikkoParkkola/MistralOCR/usage"
)

// cliOptions holds the parsed batch-mode flags.
type cliOptions struct {
	apiKey       string
	outputFormat string
	language     string
	model        string
	configPath   string
	logLevel     string
	usageDB      string
	timeout      time.Duration
	patterns     []string
}

func parseCLIFlags(args []string) (*cliOptions, error) {
	opts := &cliOptions{}
	fs := flag.NewFlagSet("mistral-ocr", flag.ContinueOnError)
	fs.StringVar(&opts.apiKey, "api-key", "", "Mistral API key (overrides config and environment)")
	fs.StringVar(&opts.outputFormat, "output-format", "", "output format: markdown, text, or json")
	fs.StringVar(&opts.language, "language", "", "language hint forwarded to the OCR model")
	fs.StringVar(&opts.model, "model", "", "OCR model name")
	fs.StringVar(&opts.configPath, "config", "", "config file path (default ~/.mistral-ocr.yaml)")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, or error")
	fs.StringVar(&opts.usageDB, "usage-db", "", "usage ledger database path (empty disables recording)")
	fs.DurationVar(&opts.timeout, "timeout", 0, "per-request HTTP timeout")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: mistral-ocr [flags] <file-or-glob>...\n")
		fmt.Fprintf(fs.Output(), "       mistral-ocr serve [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	opts.patterns = fs.Args()
	return opts, nil
}

// applyFlagOverrides layers non-empty flag values over the loaded config.
func applyFlagOverrides(cfg *core.Config, opts *cliOptions) {
	if opts.apiKey != "" {
		cfg.APIKey = opts.apiKey
	}
	if opts.outputFormat != "" {
		cfg.OutputFormat = opts.outputFormat
	}
	if opts.language != "" {
		cfg.Language = opts.language
	}
	if opts.model != "" {
		cfg.Model = opts.model
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.usageDB != "" {
		cfg.UsageDBPath = opts.usageDB
	}
	if opts.timeout > 0 {
		cfg.Timeout = opts.timeout
	}
}

func runCLI(args []string) int {
	opts, err := parseCLIFlags(args)
	if err != nil {
		// flag package already printed the problem
		return core.ExitCodeError
	}

	configPath := opts.configPath
	if configPath == "" {
		configPath = core.DefaultConfigPath()
	}
	if err := core.EnsureConfigTemplate(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create config template: %v\n", err)
	}

	cfg, err := core.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return core.ExitCodeError
	}
	applyFlagOverrides(cfg, opts)

	if err := core.ValidateOutputFormat(cfg.OutputFormat); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return core.ExitCodeError
	}

	level := logging.ParseLogLevelString(cfg.LogLevel, logging.InfoLevel)
	logger := logging.NewLogger(level, cfg.LogFile, cfg.DevMode)
	defer logger.Sync()

	if len(opts.patterns) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no input files given; pass file paths or glob patterns")
		return core.ExitCodeError
	}

	files, err := expandPatterns(opts.patterns)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return core.ExitCodeError
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "Error: %v\n", core.ErrNoFilesMatched())
		return core.ExitCodeError
	}

	if cfg.APIKey == "" {
		key, save, promptErr := promptForAPIKey(os.Stdin, os.Stderr)
		if promptErr != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", promptErr)
			return core.ExitCodeError
		}
		cfg.APIKey = key
		if key != "" && save {
			if saveErr := core.SaveConfig(cfg, configPath); saveErr != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not save config: %v\n", saveErr)
			} else {
				fmt.Fprintf(os.Stderr, "API key saved to %s\n", configPath)
			}
		}
	}
	if cfg.APIKey == "" {
		fmt.Fprintf(os.Stderr, "Error: %v\n", core.ErrMissingAPIKey())
		return core.ExitCodeError
	}

	client, err := mistral.NewClient(cfg.APIKey, core.GetHTTPClient(cfg.Timeout), logger, mistral.ClientConfig{
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return core.ExitCodeError
	}

	var ledger *usage.Ledger
	if cfg.UsageDBPath != "" {
		ledger, err = usage.Open(cfg.UsageDBPath)
		if err != nil {
			logger.Warn("usage ledger unavailable", zap.Error(err))
		} else {
			defer ledger.Close()
		}
	}

	retryCfg := mistral.RetryConfig{
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		Multiplier:   2.0,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	batch := batchTotals{}
	for _, path := range files {
		result, err := processFile(ctx, client, cfg, retryCfg, logger, ledger, path)
		if err != nil {
			color.New(color.FgRed).Fprintf(os.Stderr, "Failed: %s: %v\n", path, err)
			printSummary(os.Stdout, batch)
			return core.ExitCodeError
		}
		batch.files++
		batch.tokens += result.Tokens
		batch.cost += result.Cost
		fmt.Printf("%s -> %s (%d tokens)\n", path, outputPath(path, cfg.OutputFormat), result.Tokens)
	}

	printSummary(os.Stdout, batch)
	return core.ExitCodeSuccess
}

type batchTotals struct {
	files  int
	tokens int
	cost   float64
}

// processFile runs the full pipeline for one input: preflight inspection,
// extraction with retry, output write, and ledger recording.
func processFile(ctx context.Context, client *mistral.Client, cfg *core.Config, retryCfg mistral.RetryConfig, logger *logging.Logger, ledger *usage.Ledger, path string) (*mistral.ExtractionResult, error) {
	report, err := inspect.Inspect(path, inspect.DefaultMaxFileSize)
	if err != nil {
		recordCLIUsage(ctx, logger, ledger, usage.Record{
			Source:   usage.SourceCLI,
			FileName: filepath.Base(path),
			Model:    cfg.Model,
			Status:   usage.StatusError,
		})
		return nil, err
	}
	logger.Info("processing file",
		zap.String("path", path),
		zap.String("mime_type", report.MIME),
		zap.Int64("size_bytes", report.Size),
		zap.Int("pdf_pages", report.PDFPages),
		zap.Int("width", report.Width),
		zap.Int("height", report.Height),
	)

	start := time.Now()
	result, err := client.ExtractWithRetry(ctx, mistral.ExtractionRequest{
		Path:         path,
		MIME:         report.MIME,
		Language:     cfg.Language,
		OutputFormat: cfg.OutputFormat,
	}, retryCfg)
	if err != nil {
		recordCLIUsage(ctx, logger, ledger, usage.Record{
			Source:   usage.SourceCLI,
			FileName: filepath.Base(path),
			MIME:     report.MIME,
			Model:    cfg.Model,
			Duration: time.Since(start),
			Status:   usage.StatusError,
		})
		return nil, err
	}

	if err := writeOutput(path, cfg.OutputFormat, result.Text); err != nil {
		return nil, err
	}

	recordCLIUsage(ctx, logger, ledger, usage.Record{
		Source:   usage.SourceCLI,
		FileName: filepath.Base(path),
		MIME:     report.MIME,
		Model:    cfg.Model,
		Tokens:   result.Tokens,
		Cost:     result.Cost,
		Duration: time.Since(start),
	})
	return result, nil
}

func recordCLIUsage(ctx context.Context, logger *logging.Logger, ledger *usage.Ledger, rec usage.Record) {
	if ledger == nil {
		return
	}
	if err := ledger.Add(ctx, rec); err != nil {
		logger.Warn("usage record failed", zap.Error(err))
	}
}

// expandPatterns resolves glob patterns to a sorted, deduplicated file
// list. Literal paths match themselves.
func expandPatterns(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || info.IsDir() {
				continue
			}
			if !seen[match] {
				seen[match] = true
				files = append(files, match)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// outputPath derives the result file path next to the input, with the
// extension chosen by the output format.
func outputPath(input, format string) string {
	ext := ".md"
	switch format {
	case core.FormatText:
		ext = ".txt"
	case core.FormatJSON:
		ext = ".json"
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ext
}

func writeOutput(input, format, text string) error {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	out := outputPath(input, format)
	if err := os.WriteFile(out, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// promptForAPIKey interactively asks for a credential and whether to
// persist it. Saving requires an explicit yes; anything else means the
// key is used for this run only.
func promptForAPIKey(in io.Reader, out io.Writer) (key string, save bool, err error) {
	reader := bufio.NewReader(in)

	fmt.Fprint(out, "Enter Mistral API key: ")
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", false, fmt.Errorf("failed to read API key: %w", err)
	}
	key = strings.TrimSpace(line)
	if key == "" {
		return "", false, nil
	}
	if err := mistral.ValidateAPIKey(key); err != nil {
		return "", false, err
	}

	fmt.Fprint(out, "Save key to config file? [y/N]: ")
	answer, _ := reader.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		save = true
	}
	return key, save, nil
}

// printSummary prints batch totals.
func printSummary(out io.Writer, batch batchTotals) {
	if batch.files == 0 {
		return
	}
	color.New(color.FgGreen, color.Bold).Fprintf(out, "Processed %d file(s)", batch.files)
	color.New(color.FgHiBlack).Fprintf(out, " (%d tokens, $%.4f)\n", batch.tokens, batch.cost)
}

// runUsageReport prints lifetime totals and recent records from the
// usage ledger.
func runUsageReport(args []string) int {
	fs := flag.NewFlagSet("mistral-ocr usage", flag.ContinueOnError)
	var dbPath, configPath string
	var limit int
	fs.StringVar(&dbPath, "usage-db", "", "usage ledger database path (default from config)")
	fs.StringVar(&configPath, "config", "", "config file path (default ~/.mistral-ocr.yaml)")
	fs.IntVar(&limit, "limit", 10, "number of recent records to show")
	if err := fs.Parse(args); err != nil {
		return core.ExitCodeError
	}

	if dbPath == "" {
		if configPath == "" {
			configPath = core.DefaultConfigPath()
		}
		cfg, err := core.LoadConfig(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return core.ExitCodeError
		}
		dbPath = cfg.UsageDBPath
	}
	if dbPath == "" {
		fmt.Fprintln(os.Stderr, "Error: no usage database configured; pass -usage-db or set it in the config file")
		return core.ExitCodeError
	}

	ledger, err := usage.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return core.ExitCodeError
	}
	defer ledger.Close()

	if err := writeUsageReport(context.Background(), os.Stdout, ledger, limit); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return core.ExitCodeError
	}
	return core.ExitCodeSuccess
}

// writeUsageReport renders ledger totals followed by the most recent
// records, newest first.
func writeUsageReport(ctx context.Context, out io.Writer, ledger *usage.Ledger, limit int) error {
	totals, err := ledger.Sum(ctx)
	if err != nil {
		return err
	}
	color.New(color.FgGreen, color.Bold).Fprintf(out, "Total: %d call(s)", totals.Calls)
	color.New(color.FgHiBlack).Fprintf(out, " (%d tokens, $%.4f)\n", totals.Tokens, totals.Cost)

	records, err := ledger.Recent(ctx, limit)
	if err != nil {
		return err
	}
	for _, rec := range records {
		name := rec.FileName
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(out, "%s  %-5s  %-5s  %s (%d tokens, $%.4f)\n",
			rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.Source, rec.Status, name, rec.Tokens, rec.Cost)
	}
	return nil
}
