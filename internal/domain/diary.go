package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrEmptyDiary = errors.New("diary entry has no text")

// DiaryEntry is a dated note kept beside the decks. Images holds references
// to pictures attached elsewhere; the entry never carries their bytes.
type DiaryEntry struct {
	ID     string    `json:"id"`
	Text   string    `json:"text"`
	Images []string  `json:"images"`
	Time   time.Time `json:"time"`
}

// NewDiaryEntry builds an entry written at now under a fresh id. Text that
// is blank once trimmed is rejected.
func NewDiaryEntry(text string, images []string, now time.Time) (DiaryEntry, error) {
	if strings.TrimSpace(text) == "" {
		return DiaryEntry{}, ErrEmptyDiary
	}
	if images == nil {
		images = []string{}
	}
	return DiaryEntry{ID: uuid.NewString(), Text: text, Images: images, Time: now.UTC().Truncate(time.Second)}, nil
}
