package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/conorfennell/memodeck/internal/domain"
)

// DiaryKey holds the diary entries, newest first.
const DiaryKey = "diaries"

var ErrDiaryNotFound = errors.New("diary entry not found")

// Diaries returns every diary entry, newest first.
func (db *DB) Diaries(ctx context.Context) ([]domain.DiaryEntry, error) {
	return diaries(ctx, db.conn)
}

// AddDiary stores entry ahead of the existing ones.
func (db *DB) AddDiary(ctx context.Context, entry domain.DiaryEntry) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		list, err := diaries(ctx, tx)
		if err != nil {
			return err
		}
		return saveDiaries(ctx, tx, append([]domain.DiaryEntry{entry}, list...))
	})
}

// DeleteDiary removes the entry with the given id.
func (db *DB) DeleteDiary(ctx context.Context, id string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		list, err := diaries(ctx, tx)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(list, func(e domain.DiaryEntry) bool { return e.ID == id })
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrDiaryNotFound, id)
		}
		return saveDiaries(ctx, tx, slices.Delete(list, i, i+1))
	})
}

func diaries(ctx context.Context, q querier) ([]domain.DiaryEntry, error) {
	raw, err := get(ctx, q, DiaryKey)
	if err != nil || raw == nil {
		return []domain.DiaryEntry{}, err
	}
	var list []domain.DiaryEntry
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", DiaryKey, err)
	}
	return list, nil
}

func saveDiaries(ctx context.Context, q querier, list []domain.DiaryEntry) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", DiaryKey, err)
	}
	return put(ctx, q, DiaryKey, raw)
}
