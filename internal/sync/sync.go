package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/conorfennell/memodeck/internal/gitsource"
	"github.com/conorfennell/memodeck/internal/knol"
	"github.com/conorfennell/memodeck/internal/library"
	"github.com/conorfennell/memodeck/internal/parser"
	"github.com/conorfennell/memodeck/internal/storage"
)

// Summary counts what a sync run changed.
type Summary struct {
	Sources  int
	Parsed   int
	Imported int
	Deleted  int
	Errors   int
}

// RunSync iterates over all sources and reconciles their deck files with
// the library. Git sources are cloned or pulled into reposDir first.
func RunSync(ctx context.Context, db *storage.DB, lib *library.Library, reposDir string) (Summary, error) {
	var summary Summary
	slog.Info("Starting sync process for all sources...")
	sources, err := db.GetAllSources(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to get sources: %w", err)
	}

	if len(sources) == 0 {
		slog.Info("No sources configured. Add one with: memodeck sources add <path/or/url.git>")
		return summary, nil
	}

	var errs []error
	for _, source := range sources {
		slog.Info("Syncing source", "id", source.ID, "type", source.Type, "path", source.Path)
		summary.Sources++

		root := source.Path
		if source.Type == storage.SourceGit {
			localRepoPath, err := gitURLToLocalPath(reposDir, source.Path)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if err := os.MkdirAll(filepath.Dir(localRepoPath), 0o755); err != nil {
				errs = append(errs, fmt.Errorf("failed to create repos directory: %w", err))
				continue
			}
			if err := gitsource.Sync(ctx, source.Path, localRepoPath, nil); err != nil {
				errs = append(errs, err)
				continue
			}
			root = localRepoPath
		}

		if err := reconcileSource(ctx, db, lib, source, root, &summary); err != nil {
			errs = append(errs, err)
		}
	}
	summary.Errors += len(errs)
	slog.Info("Sync process complete.", "imported", summary.Imported, "deleted", summary.Deleted, "errors", summary.Errors)
	return summary, errors.Join(errs...)
}

func reconcileSource(ctx context.Context, db *storage.DB, lib *library.Library, source storage.Source, root string, summary *Summary) error {
	var parseErrors []error
	found := make(map[string]bool)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !parser.Supported(path) {
			return nil
		}

		rows, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			parseErrors = append(parseErrors, fmt.Errorf("parsing %s: %w", path, parseErr))
			return nil
		}
		if len(rows) == 0 {
			return nil
		}
		summary.Parsed++

		name := deckName(root, path)
		found[name] = true
		changed, importErr := lib.Import(ctx, name, rows, source.ID, knol.Hash(rows))
		if importErr != nil {
			parseErrors = append(parseErrors, fmt.Errorf("import %s: %w", name, importErr))
			return nil
		}
		if changed {
			summary.Imported++
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("error walking directory %s: %w", root, walkErr)
	}

	decks, err := db.Decks(ctx)
	if err != nil {
		return fmt.Errorf("error getting decks for source %d: %w", source.ID, err)
	}
	var orphaned int
	for _, d := range decks {
		if d.SourceID != source.ID || found[d.Name] {
			continue
		}
		slog.Info("Orphaned deck, deleting", "name", d.Name)
		if err := lib.Delete(ctx, d.Name); err != nil {
			slog.Warn("Failed to delete orphaned deck", "name", d.Name, "error", err)
			continue
		}
		orphaned++
	}
	summary.Deleted += orphaned

	if err := db.UpdateSourceLastScanned(ctx, source.ID); err != nil {
		slog.Warn("Failed to update last scanned for source", "source_id", source.ID, "error", err)
	}

	for _, e := range parseErrors {
		slog.Warn("sync error", "error", e)
	}
	summary.Errors += len(parseErrors)

	slog.Info("reconciliation complete",
		"path", source.Path,
		"found_decks", len(found),
		"orphaned_deleted", orphaned,
		"errors", len(parseErrors),
	)
	return nil
}

// deckName names a deck by its slash-separated path within the source.
func deckName(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}

func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http") {
		if strings.Contains(repoURL, "@") {
			parts := strings.Split(repoURL, ":")
			if len(parts) == 2 {
				hostAndUser := strings.Split(parts[0], "@")
				if len(hostAndUser) == 2 {
					host := hostAndUser[1]
					repoPath := strings.TrimSuffix(parts[1], ".git")
					return filepath.Join(baseDir, host, repoPath), nil
				}
			}
		}
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	sanitizedPath := strings.TrimSuffix(parsedURL.Path, ".git")
	return filepath.Join(baseDir, parsedURL.Host, sanitizedPath), nil
}
