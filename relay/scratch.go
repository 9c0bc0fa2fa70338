package relay

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/MikkoParkkola/MistralOCR/mistral"
)

// writeScratchFile persists decoded document bytes to a uniquely named
// temporary file whose extension matches the MIME type, so downstream
// MIME guessing sees the right kind of file. The returned cleanup removes
// the file and must be called on every exit path.
func writeScratchFile(dir, mimeType string, data []byte) (path string, cleanup func(), err error) {
	if dir == "" {
		dir = os.TempDir()
	}

	name := "mistral-ocr-" + uuid.NewString() + mistral.ExtensionForMIME(mimeType)
	path = filepath.Join(dir, name)

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", nil, fmt.Errorf("relay: failed to write scratch file: %w", err)
	}
	return path, func() { os.Remove(path) }, nil
}
