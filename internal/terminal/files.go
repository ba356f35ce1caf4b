package terminal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/spigell/resume-tuner/internal/resume"
)

// LoadFile builds a selection from a file on disk. The MIME type is sniffed
// from content. Files above the upload limit are not read, only sized.
func LoadFile(path string) (*resume.FileSelection, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat resume file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("resume file %q is a directory", path)
	}

	detected, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("detect resume file type: %w", err)
	}

	selection := &resume.FileSelection{
		Name:     filepath.Base(path),
		MIMEType: detected.String(),
		Size:     info.Size(),
	}

	if info.Size() > resume.MaxUploadSize || !resume.AllowedMIMEType(selection.MIMEType) {
		return selection, nil
	}

	selection.Data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resume file: %w", err)
	}

	return selection, nil
}
