package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/conorfennell/memodeck/internal/domain"
)

// Preference keys shared with the deck keys in the kv table.
const (
	IntervalKey  = "timerInterval"
	PlayModeKey  = "playMode"
	FontSizeKey  = "fontSize"
	GuideFlagKey = "needShowWiki"
)

// Preferences returns the stored user preferences, falling back to the
// defaults for anything never written.
func (db *DB) Preferences(ctx context.Context) (domain.Preferences, error) {
	prefs := domain.DefaultPreferences()

	if _, err := db.getJSON(ctx, IntervalKey, &prefs.IntervalSeconds); err != nil {
		return prefs, err
	}
	if _, err := db.getJSON(ctx, FontSizeKey, &prefs.FontSize); err != nil {
		return prefs, err
	}
	var mode string
	ok, err := db.getJSON(ctx, PlayModeKey, &mode)
	if err != nil {
		return prefs, err
	}
	if ok {
		policy, err := domain.ParsePolicy(mode)
		if err != nil {
			return prefs, fmt.Errorf("stored %s: %w", PlayModeKey, err)
		}
		prefs.Policy = policy
	}
	return prefs, nil
}

// SavePreferences validates and stores all preferences together.
func (db *DB) SavePreferences(ctx context.Context, prefs domain.Preferences) error {
	if err := prefs.Validate(); err != nil {
		return err
	}
	entries := make(map[string][]byte, 3)
	for key, v := range map[string]any{
		IntervalKey: prefs.IntervalSeconds,
		PlayModeKey: prefs.Policy.PlayMode(),
		FontSizeKey: prefs.FontSize,
	} {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", key, err)
		}
		entries[key] = raw
	}
	return db.PutMany(ctx, entries)
}

// GuideSeen reports whether the built-in guide deck was already offered.
func (db *DB) GuideSeen(ctx context.Context) (bool, error) {
	show := true
	if _, err := db.getJSON(ctx, GuideFlagKey, &show); err != nil {
		return false, err
	}
	return !show, nil
}

// MarkGuideSeen records that the guide deck must not be seeded again.
func (db *DB) MarkGuideSeen(ctx context.Context) error {
	return db.Put(ctx, GuideFlagKey, []byte("false"))
}

func (db *DB) getJSON(ctx context.Context, key string, v any) (bool, error) {
	raw, err := db.Get(ctx, key)
	if err != nil || raw == nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}
