package usecases

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
)

const (
	MaxUploadBytes      = 20 * 1024 * 1024
	MinDocumentRunes    = 10
	MinInstructionRunes = 10
)

var allowedExtensions = map[string]bool{
	".txt":  true,
	".docx": true,
	".pdf":  true,
}

var editableExtensions = map[string]bool{
	".txt":  true,
	".docx": true,
}

// ValidateUpload checks an upload's metadata for the given mode and returns
// its normalized extension. It runs before any download.
func ValidateUpload(mode entities.Mode, name string, size int64) (string, error) {
	if size > MaxUploadBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrFileTooLarge, size)
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if mode == entities.ModeAwaitingEditUpload && !editableExtensions[ext] {
		return "", fmt.Errorf("%w: %q", ErrNotEditable, ext)
	}
	return ext, nil
}

// ValidateInstructions checks a create-document description.
func ValidateInstructions(s string) (string, error) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) < MinInstructionRunes {
		return "", ErrEmptyInstructions
	}
	return s, nil
}

// SanitizeFileName keeps only the base name and drops control characters.
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if name == "." || name == "/" || name == "" {
		return "document"
	}
	return name
}
