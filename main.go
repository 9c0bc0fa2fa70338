// Command mistral-ocr extracts text from PDFs and images through the
// hosted Mistral OCR API. Run with file patterns for batch extraction,
// with the "serve" subcommand to start the local relay used by the
// browser extension, or with the "usage" subcommand to report recorded
// token and cost accounting.
package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env if present; absence is fine.
	godotenv.Load()

	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "serve":
			os.Exit(runServe(args[1:]))
		case "usage":
			os.Exit(runUsageReport(args[1:]))
		}
	}
	os.Exit(runCLI(args))
}
