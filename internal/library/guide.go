package library

import (
	"context"

	"github.com/conorfennell/memodeck/internal/domain"
)

// GuideDeckName is the deck offered to first-time users.
const GuideDeckName = "Getting started"

func guideRows() []domain.Row {
	pairs := [][2]string{
		{"Tap the card", "Pauses the automatic advance"},
		{"Long press", "Moves the row between not remembered and remembered"},
		{"Short press", "Shows the next row without changing its state"},
		{"Upload a spreadsheet", "Adds it as a new deck"},
		{"Delete a deck", "Removes it together with its progress"},
		{"Settings: interval", "Sets the automatic advance time"},
		{"Settings: play mode", "Loop through rows in order or pick them at random"},
		{"Settings: font size", "Sets the text size"},
	}
	rows := make([]domain.Row, len(pairs))
	for i, p := range pairs {
		rows[i] = domain.NewRow(i, "0", p[0], "1", p[1])
	}
	return rows
}

// SeedGuide stores the guide deck when the registry is empty and the guide
// was never offered before. It reports whether the deck was created.
func (l *Library) SeedGuide(ctx context.Context) (bool, error) {
	seen, err := l.db.GuideSeen(ctx)
	if err != nil || seen {
		return false, err
	}
	decks, err := l.db.Decks(ctx)
	if err != nil {
		return false, err
	}
	if len(decks) == 0 {
		rows := guideRows()
		if err := l.db.CreateDeck(ctx, domain.NewDeckInfo(GuideDeckName, len(rows)), rows); err != nil {
			return false, err
		}
	}
	if err := l.db.MarkGuideSeen(ctx); err != nil {
		return false, err
	}
	return len(decks) == 0, nil
}
