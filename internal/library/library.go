// Package library manages the set of decks: uploads through the remote
// parser, imports from sources, deletion and the deck registry counts.
package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/conorfennell/memodeck/internal/domain"
	"github.com/conorfennell/memodeck/internal/knol"
	"github.com/conorfennell/memodeck/internal/review"
	"github.com/conorfennell/memodeck/internal/storage"
)

var (
	ErrNotSpreadsheet = errors.New("only .xlsx and .xls files can be uploaded")
	ErrDuplicateDeck  = errors.New("a deck with this name already exists")
	ErrEmptyDeck      = errors.New("the file contains no rows")
)

var spreadsheetName = regexp.MustCompile(`(?i)\.(xlsx|xls)$`)

// Parser turns uploaded spreadsheet bytes into rows.
type Parser interface {
	Parse(ctx context.Context, data []byte) ([]domain.Row, error)
}

// Library wraps the deck store with the deck management operations.
type Library struct {
	db     *storage.DB
	parser Parser
	logger *slog.Logger
}

// New creates a Library. parser may be nil when uploads are not offered.
func New(db *storage.DB, parser Parser) *Library {
	return &Library{db: db, parser: parser, logger: slog.Default()}
}

// Upload parses a spreadsheet remotely and stores it as a new deck named
// after the file. Nothing is stored when parsing fails.
func (l *Library) Upload(ctx context.Context, fileName string, data []byte) (domain.DeckInfo, error) {
	if !spreadsheetName.MatchString(fileName) {
		return domain.DeckInfo{}, ErrNotSpreadsheet
	}
	existing, err := l.db.FindDeck(ctx, fileName)
	if err != nil {
		return domain.DeckInfo{}, err
	}
	if existing != nil {
		return domain.DeckInfo{}, fmt.Errorf("%w: %s", ErrDuplicateDeck, fileName)
	}
	if l.parser == nil {
		return domain.DeckInfo{}, errors.New("no spreadsheet parser configured")
	}

	rows, err := l.parser.Parse(ctx, data)
	if err != nil {
		return domain.DeckInfo{}, err
	}
	if len(rows) == 0 {
		return domain.DeckInfo{}, ErrEmptyDeck
	}
	rows, err = domain.NormalizeIndexes(rows)
	if err != nil {
		return domain.DeckInfo{}, err
	}

	info := domain.NewDeckInfo(fileName, len(rows))
	info.Hash = knol.Hash(rows)
	if err := l.db.CreateDeck(ctx, info, rows); err != nil {
		if errors.Is(err, storage.ErrDeckExists) {
			return domain.DeckInfo{}, fmt.Errorf("%w: %s", ErrDuplicateDeck, fileName)
		}
		return domain.DeckInfo{}, err
	}
	l.logger.Info("deck uploaded", "name", fileName, "rows", len(rows))
	return info, nil
}

// Import creates the named deck from rows, or reconciles an existing deck
// whose content hash changed: rows keep their remembered state when their
// index survives, new indexes start out remaining and vanished indexes are
// dropped. It reports whether anything was written.
func (l *Library) Import(ctx context.Context, name string, rows []domain.Row, sourceID int64, hash string) (bool, error) {
	rows, err := domain.NormalizeIndexes(rows)
	if err != nil {
		return false, fmt.Errorf("deck %s: %w", name, err)
	}

	existing, err := l.db.FindDeck(ctx, name)
	if err != nil {
		return false, err
	}
	if existing == nil {
		info := domain.NewDeckInfo(name, len(rows))
		info.SourceID = sourceID
		info.Hash = hash
		if err := l.db.CreateDeck(ctx, info, rows); err != nil {
			return false, err
		}
		l.logger.Info("deck imported", "name", name, "rows", len(rows))
		return true, nil
	}
	if existing.SourceID != sourceID {
		return false, fmt.Errorf("%w: %s belongs to another source", ErrDuplicateDeck, name)
	}
	if existing.Hash == hash {
		return false, nil
	}

	current, err := l.db.Pools(ctx, name)
	if err != nil {
		return false, err
	}
	remembered := make(map[int]bool, len(current.Remembered))
	for _, r := range current.Remembered {
		remembered[r.Index] = true
	}
	var next domain.Pools
	for _, r := range rows {
		if remembered[r.Index] {
			next.Remembered = append(next.Remembered, r)
		} else {
			next.Remaining = append(next.Remaining, r)
		}
	}

	info := *existing
	info.SourceID = sourceID
	info.Hash = hash
	if err := l.db.ReplaceDeck(ctx, info, next); err != nil {
		return false, err
	}
	l.logger.Info("deck reconciled", "name", name, "remaining", len(next.Remaining), "remembered", len(next.Remembered))
	return true, nil
}

// Delete removes a deck and both of its pools.
func (l *Library) Delete(ctx context.Context, name string) error {
	if err := l.db.DeleteDeck(ctx, name); err != nil {
		return err
	}
	l.logger.Info("deck deleted", "name", name)
	return nil
}

// List returns the registry with counts refreshed from the pools.
func (l *Library) List(ctx context.Context) ([]domain.DeckInfo, error) {
	decks, err := l.db.Decks(ctx)
	if err != nil {
		return nil, err
	}
	for i := range decks {
		pools, err := l.db.Pools(ctx, decks[i].Name)
		if err != nil {
			l.logger.Warn("failed to refresh deck progress", "name", decks[i].Name, "error", err)
			decks[i].RememberedCount = 0
			continue
		}
		decks[i].RememberedCount = len(pools.Remembered)
		if total := pools.Total(); total > 0 {
			decks[i].Total = total
		}
	}
	return decks, nil
}

// Observe keeps the registry counts in step with review sessions. The
// counts are recounted from the pools rather than taken from the event, so
// events delivered out of order never leave a stale count behind.
func (l *Library) Observe(ev review.Event) {
	if ev.Kind != review.EventDeckCountChanged {
		return
	}
	ctx := context.Background()
	pools, err := l.db.Pools(ctx, ev.Deck)
	if err != nil {
		l.logger.Warn("failed to recount deck", "name", ev.Deck, "error", err)
		return
	}
	err = l.db.UpdateRememberedCount(ctx, ev.Deck, len(pools.Remembered), pools.Total())
	if err != nil && !errors.Is(err, storage.ErrDeckNotFound) {
		l.logger.Warn("failed to update deck counts", "name", ev.Deck, "error", err)
	}
}
