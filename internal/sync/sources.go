package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conorfennell/memodeck/internal/gitsource"
	"github.com/conorfennell/memodeck/internal/storage"
)

var (
	ErrSourceExists   = errors.New("source already exists")
	ErrSourceNotFound = errors.New("source directory does not exist")
)

// AddSource registers a local directory or git URL as a deck source.
// Local paths are stored in absolute form.
func AddSource(ctx context.Context, db *storage.DB, path string) (*storage.Source, error) {
	if path == "" {
		return nil, errors.New("path cannot be empty")
	}

	sourceType := storage.SourceLocal
	if gitsource.IsGitURL(path) {
		sourceType = storage.SourceGit
	} else {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("could not resolve path %s: %w", path, err)
		}
		fi, err := os.Stat(abs)
		if err != nil || !fi.IsDir() {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, abs)
		}
		path = abs
	}

	existing, err := db.FindSourceByPath(ctx, path)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrSourceExists, path)
	}

	id, err := db.InsertSource(ctx, path, sourceType)
	if err != nil {
		return nil, err
	}
	return &storage.Source{ID: id, Path: path, Type: sourceType}, nil
}
