package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MikkoParkkola/MistralOCR/core"
	"github.com/MikkoParkkola/MistralOCR/usage"
)

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		format string
		want   string
	}{
		{name: "markdown default", input: "scan.pdf", format: core.FormatMarkdown, want: "scan.md"},
		{name: "text", input: "scan.pdf", format: core.FormatText, want: "scan.txt"},
		{name: "json", input: "scan.pdf", format: core.FormatJSON, want: "scan.json"},
		{name: "nested path", input: "docs/in/report.png", format: core.FormatMarkdown, want: "docs/in/report.md"},
		{name: "no extension", input: "README", format: core.FormatText, want: "README.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outputPath(tt.input, tt.format); got != tt.want {
				t.Errorf("outputPath(%q, %q) = %q, want %q", tt.input, tt.format, got, tt.want)
			}
		})
	}
}

func TestExpandPatterns(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.pdf", "b.pdf", "c.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("failed to create file: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.pdf"), 0o755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}

	t.Run("glob match", func(t *testing.T) {
		files, err := expandPatterns([]string{filepath.Join(dir, "*.pdf")})
		if err != nil {
			t.Fatalf("expandPatterns failed: %v", err)
		}
		if len(files) != 2 {
			t.Fatalf("got %d files, want 2 (directories excluded): %v", len(files), files)
		}
		if filepath.Base(files[0]) != "a.pdf" || filepath.Base(files[1]) != "b.pdf" {
			t.Errorf("unexpected order: %v", files)
		}
	})

	t.Run("literal path", func(t *testing.T) {
		files, err := expandPatterns([]string{filepath.Join(dir, "c.png")})
		if err != nil {
			t.Fatalf("expandPatterns failed: %v", err)
		}
		if len(files) != 1 {
			t.Fatalf("got %d files, want 1", len(files))
		}
	})

	t.Run("overlapping patterns deduplicated", func(t *testing.T) {
		files, err := expandPatterns([]string{
			filepath.Join(dir, "*.pdf"),
			filepath.Join(dir, "a.pdf"),
		})
		if err != nil {
			t.Fatalf("expandPatterns failed: %v", err)
		}
		if len(files) != 2 {
			t.Errorf("got %d files, want 2 after dedup: %v", len(files), files)
		}
	})

	t.Run("no matches", func(t *testing.T) {
		files, err := expandPatterns([]string{filepath.Join(dir, "*.tiff")})
		if err != nil {
			t.Fatalf("expandPatterns failed: %v", err)
		}
		if len(files) != 0 {
			t.Errorf("got %d files, want 0", len(files))
		}
	})
}

func TestPromptForAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKey  string
		wantSave bool
	}{
		{name: "key and save", input: "my-key\ny\n", wantKey: "my-key", wantSave: true},
		{name: "key and explicit yes", input: "my-key\nyes\n", wantKey: "my-key", wantSave: true},
		{name: "key declined save", input: "my-key\nn\n", wantKey: "my-key", wantSave: false},
		{name: "save defaults to no", input: "my-key\n\n", wantKey: "my-key", wantSave: false},
		{name: "key trimmed", input: "  my-key  \nN\n", wantKey: "my-key", wantSave: false},
		{name: "empty entry", input: "\n", wantKey: "", wantSave: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			key, save, err := promptForAPIKey(strings.NewReader(tt.input), &out)
			if err != nil {
				t.Fatalf("promptForAPIKey failed: %v", err)
			}
			if key != tt.wantKey {
				t.Errorf("key = %q, want %q", key, tt.wantKey)
			}
			if save != tt.wantSave {
				t.Errorf("save = %v, want %v", save, tt.wantSave)
			}
			if !strings.Contains(out.String(), "Enter Mistral API key") {
				t.Errorf("prompt text missing: %q", out.String())
			}
		})
	}
}

func TestWriteOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "scan.pdf")

	if err := writeOutput(input, core.FormatMarkdown, "# Result"); err != nil {
		t.Fatalf("writeOutput failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "scan.md"))
	if err != nil {
		t.Fatalf("output file not written: %v", err)
	}
	if string(data) != "# Result\n" {
		t.Errorf("output = %q, want trailing newline added", data)
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.APIKey = "from-config"

	applyFlagOverrides(cfg, &cliOptions{
		apiKey:       "from-flag",
		outputFormat: core.FormatJSON,
		language:     "fi",
	})

	if cfg.APIKey != "from-flag" {
		t.Errorf("APIKey = %q, flag should win", cfg.APIKey)
	}
	if cfg.OutputFormat != core.FormatJSON {
		t.Errorf("OutputFormat = %q, want json", cfg.OutputFormat)
	}
	if cfg.Language != "fi" {
		t.Errorf("Language = %q, want fi", cfg.Language)
	}
	if cfg.Model != core.DefaultModel {
		t.Errorf("Model = %q, unset flag must not clobber", cfg.Model)
	}
}

func TestParseCLIFlags(t *testing.T) {
	opts, err := parseCLIFlags([]string{"-output-format", "text", "-language", "en", "*.pdf", "extra.png"})
	if err != nil {
		t.Fatalf("parseCLIFlags failed: %v", err)
	}
	if opts.outputFormat != "text" {
		t.Errorf("outputFormat = %q, want text", opts.outputFormat)
	}
	if len(opts.patterns) != 2 {
		t.Errorf("patterns = %v, want two positional args", opts.patterns)
	}
}

func TestWriteUsageReport(t *testing.T) {
	ledger, err := usage.Open(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("usage.Open failed: %v", err)
	}
	defer ledger.Close()

	ctx := context.Background()
	if err := ledger.Add(ctx, usage.Record{
		Source:   usage.SourceCLI,
		FileName: "scan.pdf",
		Tokens:   120,
		Cost:     0.05,
	}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := ledger.Add(ctx, usage.Record{
		Source: usage.SourceRelay,
		Tokens: 30,
		Cost:   0.01,
	}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := ledger.Add(ctx, usage.Record{
		Source: usage.SourceCLI,
		Status: usage.StatusError,
	}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	var buf bytes.Buffer
	if err := writeUsageReport(ctx, &buf, ledger, 10); err != nil {
		t.Fatalf("writeUsageReport failed: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "Total: 2 call(s)") {
		t.Errorf("report missing successful-call total:\n%s", out)
	}
	if !strings.Contains(out, "150 tokens") {
		t.Errorf("report missing token total:\n%s", out)
	}
	if !strings.Contains(out, "scan.pdf") {
		t.Errorf("report missing recent record file name:\n%s", out)
	}
	if !strings.Contains(out, "error") {
		t.Errorf("report should list failed records too:\n%s", out)
	}
	if lines := strings.Count(out, "\n"); lines != 4 {
		t.Errorf("report lines = %d, want totals line plus three records", lines)
	}
}
