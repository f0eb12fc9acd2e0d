package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conorfennell/memodeck/internal/domain"
)

// ErrUnsupportedFormat is returned for files that are neither row exports
// nor Markdown notes.
var ErrUnsupportedFormat = errors.New("unsupported deck format")

// Supported reports whether ParseFile understands the file's extension.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".md":
		return true
	}
	return false
}

// ParseFile reads a file from the given path and extracts all rows.
func ParseFile(path string) ([]domain.Row, error) {
	if !Supported(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ParseExport(file)
	}
	return Parse(file)
}
