// Package inspect examines input documents before they are submitted for
// extraction: it guards against oversized files and reports page counts
// and image dimensions for the CLI summary.
package inspect

import (
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/ledongthuc/pdf"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/MikkoParkkola/MistralOCR/mistral"
)

// DefaultMaxFileSize caps inputs at 50 MB, matching the upstream API's
// documented request limit.
const DefaultMaxFileSize = 50 * 1024 * 1024

// ErrFileTooLarge indicates an input exceeding the configured size limit.
var ErrFileTooLarge = errors.New("inspect: file exceeds size limit")

// Report describes one input document.
type Report struct {
	// Path is the inspected file.
	Path string

	// MIME is the type guessed from the file extension.
	MIME string

	// Size is the file size in bytes.
	Size int64

	// PDFPages is the page count for PDF inputs, zero otherwise.
	PDFPages int

	// Width and Height are the pixel dimensions for image inputs that
	// could be decoded, zero otherwise.
	Width  int
	Height int
}

// Inspect stats and examines a document. A maxSize of zero or less
// disables the size guard. PDF inputs that cannot be parsed return an
// error so corrupt files are caught before an upload is paid for; image
// headers that cannot be decoded leave the dimensions at zero.
func Inspect(path string, maxSize int64) (*Report, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("inspect: failed to stat file: %w", err)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrFileTooLarge, path, info.Size(), maxSize)
	}

	report := &Report{
		Path: path,
		MIME: mistral.GuessMIME(path),
		Size: info.Size(),
	}

	switch {
	case report.MIME == "application/pdf":
		pages, err := countPDFPages(path)
		if err != nil {
			return nil, err
		}
		report.PDFPages = pages
	case mistral.IsImageMIME(report.MIME):
		report.Width, report.Height = imageDimensions(path)
	}

	return report, nil
}

func countPDFPages(path string) (int, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("inspect: failed to parse PDF: %w", err)
	}
	defer f.Close()
	return reader.NumPage(), nil
}

func imageDimensions(path string) (width, height int) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0
	}
	defer f.Close()

	config, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0
	}
	return config.Width, config.Height
}
