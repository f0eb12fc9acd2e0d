package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/conorfennell/memodeck/internal/domain"
)

// RegistryKey holds the list of known decks.
const RegistryKey = "files"

var (
	ErrDeckExists   = errors.New("deck already exists")
	ErrDeckNotFound = errors.New("deck not found")
)

// RemainingKey is the key of a deck's not-yet-remembered pool.
func RemainingKey(name string) string { return name + "_remaining" }

// RememberedKey is the key of a deck's remembered pool.
func RememberedKey(name string) string { return name + "_remembered" }

func encodeCollection(rows []domain.Row) ([]byte, error) {
	if rows == nil {
		rows = []domain.Row{}
	}
	return json.Marshal(domain.Collection{Data: rows})
}

func getCollection(ctx context.Context, q querier, key string) ([]domain.Row, error) {
	raw, err := get(ctx, q, key)
	if err != nil || raw == nil {
		return nil, err
	}
	var c domain.Collection
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return c.Data, nil
}

// Pools reads both collections of a deck. A missing deck yields empty pools.
func (db *DB) Pools(ctx context.Context, name string) (domain.Pools, error) {
	remaining, err := getCollection(ctx, db.conn, RemainingKey(name))
	if err != nil {
		return domain.Pools{}, err
	}
	remembered, err := getCollection(ctx, db.conn, RememberedKey(name))
	if err != nil {
		return domain.Pools{}, err
	}
	return domain.Pools{Remaining: remaining, Remembered: remembered}, nil
}

// SavePools writes both collections of a deck atomically.
func (db *DB) SavePools(ctx context.Context, name string, pools domain.Pools) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return savePools(ctx, tx, name, pools)
	})
}

func savePools(ctx context.Context, q querier, name string, pools domain.Pools) error {
	remaining, err := encodeCollection(pools.Remaining)
	if err != nil {
		return err
	}
	remembered, err := encodeCollection(pools.Remembered)
	if err != nil {
		return err
	}
	if err := put(ctx, q, RemainingKey(name), remaining); err != nil {
		return err
	}
	return put(ctx, q, RememberedKey(name), remembered)
}

// CreateDeck stores a new deck: every row starts in the remaining pool and
// the deck is appended to the registry.
func (db *DB) CreateDeck(ctx context.Context, info domain.DeckInfo, rows []domain.Row) error {
	if err := info.Validate(); err != nil {
		return err
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		decks, err := decks(ctx, tx)
		if err != nil {
			return err
		}
		if findDeck(decks, info.Name) >= 0 {
			return fmt.Errorf("%w: %s", ErrDeckExists, info.Name)
		}
		if err := savePools(ctx, tx, info.Name, domain.Pools{Remaining: rows}); err != nil {
			return err
		}
		info.Total = len(rows)
		info.RememberedCount = 0
		return saveDecks(ctx, tx, append(decks, info))
	})
}

// ReplaceDeck overwrites both pools of a deck and upserts its registry entry.
func (db *DB) ReplaceDeck(ctx context.Context, info domain.DeckInfo, pools domain.Pools) error {
	if err := info.Validate(); err != nil {
		return err
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		decks, err := decks(ctx, tx)
		if err != nil {
			return err
		}
		if err := savePools(ctx, tx, info.Name, pools); err != nil {
			return err
		}
		info.Total = pools.Total()
		info.RememberedCount = len(pools.Remembered)
		if i := findDeck(decks, info.Name); i >= 0 {
			decks[i] = info
		} else {
			decks = append(decks, info)
		}
		return saveDecks(ctx, tx, decks)
	})
}

// DeleteDeck removes both pools and the registry entry of a deck.
func (db *DB) DeleteDeck(ctx context.Context, name string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		decks, err := decks(ctx, tx)
		if err != nil {
			return err
		}
		i := findDeck(decks, name)
		if i < 0 {
			// Pools without a registry entry are still removed.
			raw, err := get(ctx, tx, RemainingKey(name))
			if err != nil {
				return err
			}
			if raw == nil {
				return fmt.Errorf("%w: %s", ErrDeckNotFound, name)
			}
		}
		if err := remove(ctx, tx, RemainingKey(name), RememberedKey(name)); err != nil {
			return err
		}
		if i < 0 {
			return nil
		}
		return saveDecks(ctx, tx, append(decks[:i], decks[i+1:]...))
	})
}

// Decks returns the deck registry in insertion order.
func (db *DB) Decks(ctx context.Context) ([]domain.DeckInfo, error) {
	return decks(ctx, db.conn)
}

// FindDeck returns the registry entry for name, or nil if there is none.
func (db *DB) FindDeck(ctx context.Context, name string) (*domain.DeckInfo, error) {
	all, err := db.Decks(ctx)
	if err != nil {
		return nil, err
	}
	if i := findDeck(all, name); i >= 0 {
		return &all[i], nil
	}
	return nil, nil
}

// SaveDecks overwrites the deck registry.
func (db *DB) SaveDecks(ctx context.Context, list []domain.DeckInfo) error {
	return saveDecks(ctx, db.conn, list)
}

// UpdateRememberedCount sets the remembered count shown for a deck.
func (db *DB) UpdateRememberedCount(ctx context.Context, name string, remembered, total int) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		decks, err := decks(ctx, tx)
		if err != nil {
			return err
		}
		i := findDeck(decks, name)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrDeckNotFound, name)
		}
		decks[i].RememberedCount = remembered
		decks[i].Total = total
		return saveDecks(ctx, tx, decks)
	})
}

func decks(ctx context.Context, q querier) ([]domain.DeckInfo, error) {
	raw, err := get(ctx, q, RegistryKey)
	if err != nil || raw == nil {
		return nil, err
	}
	var list []domain.DeckInfo
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("failed to decode deck registry: %w", err)
	}
	return list, nil
}

func saveDecks(ctx context.Context, q querier, list []domain.DeckInfo) error {
	if list == nil {
		list = []domain.DeckInfo{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to encode deck registry: %w", err)
	}
	return put(ctx, q, RegistryKey, raw)
}

func findDeck(list []domain.DeckInfo, name string) int {
	for i, d := range list {
		if d.Name == name {
			return i
		}
	}
	return -1
}
