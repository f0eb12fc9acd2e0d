package domain

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Tab names one of the two pools of a deck.
type Tab string

const (
	Learning   Tab = "learning"
	Remembered Tab = "remembered"
)

// Other returns the opposite tab.
func (t Tab) Other() Tab {
	if t == Remembered {
		return Learning
	}
	return Remembered
}

// ParseTab accepts "learning" or "remembered".
func ParseTab(s string) (Tab, error) {
	switch Tab(s) {
	case Learning, Remembered:
		return Tab(s), nil
	}
	return "", fmt.Errorf("unknown tab %q", s)
}

// Policy decides which row is shown next.
type Policy string

const (
	Sequential Policy = "sequential"
	Random     Policy = "random"
)

// PlayMode returns the stored preference value for the policy.
func (p Policy) PlayMode() string {
	if p == Random {
		return "random"
	}
	return "loop"
}

// ParsePolicy accepts both policy names and stored play modes.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "loop", string(Sequential):
		return Sequential, nil
	case string(Random):
		return Random, nil
	}
	return "", fmt.Errorf("unknown play mode %q", s)
}

// Pools holds the two disjoint collections of a deck.
type Pools struct {
	Remaining  []Row
	Remembered []Row
}

// For returns the pool shown under the given tab.
func (p Pools) For(tab Tab) []Row {
	if tab == Remembered {
		return p.Remembered
	}
	return p.Remaining
}

// Total is the number of rows across both pools.
func (p Pools) Total() int {
	return len(p.Remaining) + len(p.Remembered)
}

// DeckInfo is one entry of the deck registry.
type DeckInfo struct {
	Name            string `json:"name" validate:"required"`
	UploadTime      string `json:"uploadTime"`
	Total           int    `json:"total" validate:"min=0"`
	RememberedCount int    `json:"rememberedCount"`
	SourceID        int64  `json:"sourceId,omitempty"`
	Hash            string `json:"hash,omitempty"`
}

// NewDeckInfo returns a registry entry stamped with the current time.
func NewDeckInfo(name string, total int) DeckInfo {
	return DeckInfo{
		Name:       name,
		UploadTime: time.Now().Format(time.RFC3339),
		Total:      total,
	}
}

// Preferences are the user settings that survive across sessions.
type Preferences struct {
	IntervalSeconds int    `json:"timerInterval" validate:"min=1,max=3600"`
	Policy          Policy `json:"playMode" validate:"oneof=sequential random"`
	FontSize        int    `json:"fontSize" validate:"min=10,max=48"`
}

// DefaultPreferences are used for any preference that was never stored.
func DefaultPreferences() Preferences {
	return Preferences{
		IntervalSeconds: 10,
		Policy:          Sequential,
		FontSize:        16,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the preferences against their allowed ranges.
func (p Preferences) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid preferences: %w", err)
	}
	return nil
}

// Validate checks a registry entry before it is stored.
func (d DeckInfo) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("invalid deck %q: %w", d.Name, err)
	}
	return nil
}
